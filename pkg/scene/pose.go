package scene

import "github.com/go-gl/mathgl/mgl32"

// PoseContext is the explicit handle on an armature object's mutable
// playback state: current frame, assigned action and track mutes. The
// animation sampler re-poses the rig through it one frame at a time; the
// export pipeline is strictly sequential, so no locking is involved.
type PoseContext struct {
	obj   *Object
	frame float32

	// per-bone posed matrices in armature space, rebuilt on SetFrame
	pose map[*Bone]mgl32.Mat4
}

// NewPoseContext wraps an armature object. Panics if the object carries no
// armature; mesh objects have no pose.
func NewPoseContext(obj *Object) *PoseContext {
	if obj.Armature == nil {
		panic("scene: pose context requires an armature object")
	}
	p := &PoseContext{obj: obj}
	p.SetFrame(0)
	return p
}

// PoseState is a snapshot of playback state for scope-guaranteed restore.
type PoseState struct {
	ctx    *PoseContext
	frame  float32
	action *Action
	mutes  []bool
}

// Snapshot captures the current playback state. Restore the returned state
// with defer so the scene is left untouched on every exit path.
func (p *PoseContext) Snapshot() *PoseState {
	s := &PoseState{ctx: p, frame: p.frame}
	if p.obj.Anim != nil {
		s.action = p.obj.Anim.Action
		s.mutes = make([]bool, len(p.obj.Anim.Tracks))
		for i, tr := range p.obj.Anim.Tracks {
			s.mutes[i] = tr.Mute
		}
	}
	return s
}

// Restore reinstates the snapshotted playback state.
func (s *PoseState) Restore() {
	p := s.ctx
	if p.obj.Anim != nil {
		p.obj.Anim.Action = s.action
		for i, tr := range p.obj.Anim.Tracks {
			if i < len(s.mutes) {
				tr.Mute = s.mutes[i]
			}
		}
	}
	p.SetFrame(s.frame)
}

// SetAction assigns the action the rig plays back.
func (p *PoseContext) SetAction(a *Action) {
	if p.obj.Anim == nil {
		p.obj.Anim = &AnimData{}
	}
	p.obj.Anim.Action = a
	p.SetFrame(p.frame)
}

// Action returns the currently assigned action, or nil.
func (p *PoseContext) Action() *Action {
	if p.obj.Anim == nil {
		return nil
	}
	return p.obj.Anim.Action
}

// Object returns the underlying armature object.
func (p *PoseContext) Object() *Object {
	return p.obj
}

// Frame returns the current (sub)frame time.
func (p *PoseContext) Frame() float32 {
	return p.frame
}

// SetFrame moves the playback cursor and re-evaluates every bone's pose.
// Sub-frame times interpolate between keyframes.
func (p *PoseContext) SetFrame(frame float32) {
	p.frame = frame
	p.pose = make(map[*Bone]mgl32.Mat4, len(p.obj.Armature.Bones))

	var action *Action
	if p.obj.Anim != nil {
		action = p.obj.Anim.Action
	}

	// Bones are ordered parents-first, so a single pass accumulates the
	// hierarchy.
	for _, b := range p.obj.Armature.Bones {
		rel := b.Matrix
		if b.Parent != nil {
			rel = b.Parent.Matrix.Inv().Mul4(b.Matrix)
		}
		local := rel.Mul4(animLocal(action, b, frame))
		if b.Parent != nil {
			p.pose[b] = p.pose[b.Parent].Mul4(local)
		} else {
			p.pose[b] = local
		}
	}
}

// BoneMatrix returns the posed armature-space matrix of a bone at the
// current frame.
func (p *PoseContext) BoneMatrix(b *Bone) mgl32.Mat4 {
	return p.pose[b]
}

// BoneHead returns the live head position of a bone at the current frame.
func (p *PoseContext) BoneHead(b *Bone) mgl32.Vec3 {
	m := p.pose[b]
	return mgl32.Vec3{m.At(0, 3), m.At(1, 3), m.At(2, 3)}
}

// BoneTail returns the live tail position of a bone at the current frame.
// Bone matrices run the bone along local +Y, so the tail sits at bone
// length along that axis.
func (p *PoseContext) BoneTail(b *Bone) mgl32.Vec3 {
	v := p.pose[b].Mul4x1(mgl32.Vec4{0, b.Length(), 0, 1})
	return mgl32.Vec3{v[0], v[1], v[2]}
}

// animLocal evaluates the action's curves for one bone into a local pose
// transform. Without curves the result is identity (rest pose).
func animLocal(action *Action, b *Bone, frame float32) mgl32.Mat4 {
	if action == nil {
		return mgl32.Ident4()
	}
	curves := action.boneCurves(b.Name)
	if len(curves) == 0 {
		return mgl32.Ident4()
	}

	quat := [4]float32{1, 0, 0, 0} // W, X, Y, Z
	var loc mgl32.Vec3
	for _, c := range curves {
		switch c.Channel {
		case ChannelRotation:
			if c.Index >= 0 && c.Index < 4 {
				quat[c.Index] = c.Evaluate(frame)
			}
		case ChannelLocation:
			if c.Index >= 0 && c.Index < 3 {
				loc[c.Index] = c.Evaluate(frame)
			}
		}
	}

	q := mgl32.Quat{W: quat[0], V: mgl32.Vec3{quat[1], quat[2], quat[3]}}.Normalize()
	m := q.Mat4()
	m.SetCol(3, mgl32.Vec4{loc[0], loc[1], loc[2], 1})
	return m
}
