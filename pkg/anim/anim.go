// Package anim samples keyframed actions into per-frame node transform
// arrays ready for the SMF animation chunk. Sampling re-poses the rig
// through a scene.PoseContext one time step at a time and restores the
// original playback state on every exit path.
package anim

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/Faultbox/smf-go/pkg/dq"
	"github.com/Faultbox/smf-go/pkg/rig"
	"github.com/Faultbox/smf-go/pkg/scene"
)

// Interpolation is the playback interpolation hint stored per animation.
type Interpolation uint8

const (
	InterpKeyframe Interpolation = iota
	InterpLinear
	InterpQuadratic
)

// SampleMode selects where sample times come from.
type SampleMode int

const (
	// SampleKeyframes samples at the union of the action's keyframe times.
	SampleKeyframes SampleMode = iota
	// SampleFixed samples at subdivisions+1 evenly spaced times across the
	// action's frame range.
	SampleFixed
)

// CollectMode selects which actions of the armature object get exported.
type CollectMode int

const (
	// CollectCurrentAction exports only the currently assigned action.
	CollectCurrentAction CollectMode = iota
	// CollectLinkedActions exports every action reachable through the
	// object's animation tracks, deduplicated.
	CollectLinkedActions
	// CollectPerTrack exports one animation per track, soloing each track
	// during its sampling pass.
	CollectPerTrack
)

// Frame is one sampled animation frame: a normalized time in [0, 1] plus
// one dual quaternion per rig node.
type Frame struct {
	Time       float32
	Transforms []dq.DQ
}

// Animation is a fully sampled animation ready for encoding.
type Animation struct {
	Name             string
	Loop             bool
	PlayTimeMS       float32
	Interpolation    Interpolation
	SampleMultiplier uint8
	Frames           []Frame
}

// Options configures a sampling run.
type Options struct {
	Mode             SampleMode
	Collect          CollectMode
	Subdivisions     int // SampleFixed: number of intervals, times = Subdivisions+1
	Interpolation    Interpolation
	SampleMultiplier uint8 // opaque playback hint, passed through unchanged
	FPS              float32
}

// SampleTimes computes the frame times a sampling run visits. Keyframe mode
// returns the sorted union of the action's keyframe times; fixed mode
// returns subdivisions+1 evenly spaced times over the action's frame range.
func SampleTimes(action *scene.Action, mode SampleMode, subdivisions int) []float32 {
	if mode == SampleKeyframes {
		return action.KeyframeTimes()
	}
	first, last := action.FrameRange()
	if subdivisions < 1 {
		subdivisions = 1
	}
	times := make([]float32, subdivisions+1)
	span := last - first
	for i := range times {
		times[i] = first + span*float32(i)/float32(subdivisions)
	}
	return times
}

// Sample exports the armature object's animations per the collect mode.
// The object's playback state (action, frame, track mutes) is restored
// before returning, on success and on error alike.
func Sample(p *scene.PoseContext, nodes []rig.Node, world mgl32.Mat4, opts Options) ([]*Animation, error) {
	units := collectUnits(p.Object(), opts.Collect)
	if len(units) == 0 {
		return nil, nil
	}

	state := p.Snapshot()
	defer state.Restore()

	out := make([]*Animation, 0, len(units))
	for _, u := range units {
		if u.solo != nil {
			soloTrack(p.Object().Anim.Tracks, u.solo)
		}
		a, err := sampleAction(p, nodes, world, u.name, u.action, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// SampleAction samples a single action. Playback state is restored before
// returning.
func SampleAction(p *scene.PoseContext, nodes []rig.Node, world mgl32.Mat4, action *scene.Action, opts Options) (*Animation, error) {
	state := p.Snapshot()
	defer state.Restore()
	return sampleAction(p, nodes, world, action.Name, action, opts)
}

func sampleAction(p *scene.PoseContext, nodes []rig.Node, world mgl32.Mat4, name string, action *scene.Action, opts Options) (*Animation, error) {
	p.SetAction(action)

	times := SampleTimes(action, opts.Mode, opts.Subdivisions)
	_, frameMax := action.FrameRange()
	denom := frameMax
	if denom <= 0 {
		denom = 1
	}
	fps := opts.FPS
	if fps <= 0 {
		fps = 24
	}

	anim := &Animation{
		Name:             name,
		Loop:             true,
		PlayTimeMS:       frameMax / fps * 1000,
		Interpolation:    opts.Interpolation,
		SampleMultiplier: opts.SampleMultiplier,
		Frames:           make([]Frame, 0, len(times)),
	}

	// Previous frame's transforms, for hemisphere continuity across frames.
	prev := make([]dq.DQ, len(nodes))
	hasPrev := false

	for _, t := range times {
		p.SetFrame(t)

		frame := Frame{
			Time:       t / denom,
			Transforms: make([]dq.DQ, len(nodes)),
		}
		for i, n := range nodes {
			var local mgl32.Mat4
			var tr mgl32.Vec3
			if n.IsBone() {
				local = p.BoneMatrix(n.Bone)
				tr = p.BoneTail(n.Bone)
			} else {
				// Synthetic head nodes carry no rotation of their own; they
				// just track the owning bone's live head.
				local = mgl32.Ident4()
				tr = p.BoneHead(n.Bone)
			}
			m, err := rig.ToSMFBasis(local, world, tr)
			if err != nil {
				return nil, errors.Wrapf(err, "animation %q: node %d at frame %v", name, i, t)
			}
			d := dq.FromMatrix(m).Normalize().Negate()
			if hasPrev && d.Dot(prev[i]) < 0 {
				d = d.Negate()
			}
			prev[i] = d
			frame.Transforms[i] = d
		}
		hasPrev = true
		anim.Frames = append(anim.Frames, frame)
	}
	return anim, nil
}

// unit is one animation to sample: a display name, the source action and,
// in per-track mode, the track to solo while sampling.
type unit struct {
	name   string
	action *scene.Action
	solo   *scene.Track
}

func collectUnits(obj *scene.Object, mode CollectMode) []unit {
	if obj.Anim == nil {
		return nil
	}
	switch mode {
	case CollectLinkedActions:
		var out []unit
		seen := make(map[*scene.Action]struct{})
		for _, tr := range obj.Anim.Tracks {
			for _, s := range tr.Strips {
				if s.Action == nil {
					continue
				}
				if _, ok := seen[s.Action]; ok {
					continue
				}
				seen[s.Action] = struct{}{}
				out = append(out, unit{name: s.Action.Name, action: s.Action})
			}
		}
		return out
	case CollectPerTrack:
		var out []unit
		for _, tr := range obj.Anim.Tracks {
			if len(tr.Strips) == 0 || tr.Strips[0].Action == nil {
				continue
			}
			out = append(out, unit{name: tr.Name, action: tr.Strips[0].Action, solo: tr})
		}
		return out
	default:
		if obj.Anim.Action == nil {
			return nil
		}
		return []unit{{name: obj.Anim.Action.Name, action: obj.Anim.Action}}
	}
}

// soloTrack mutes every track except the given one. Sampling itself is
// already isolated to the track's action through SetAction; the mute flags
// mirror that state on the object for anything inspecting it mid-run, and
// Snapshot/Restore puts them back afterwards.
func soloTrack(tracks []*scene.Track, solo *scene.Track) {
	for _, tr := range tracks {
		tr.Mute = tr != solo
	}
}
