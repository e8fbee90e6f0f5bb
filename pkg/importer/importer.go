// Package importer rebuilds an in-memory scene from a decoded SMF file:
// models become mesh objects in the source tool's right-handed space, the
// rig chunk becomes an armature, and sampled animations become actions
// keyed on a normalized 0..1 frame axis.
package importer

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/smf-go/pkg/dq"
	"github.com/Faultbox/smf-go/pkg/scene"
	"github.com/Faultbox/smf-go/pkg/smf"
)

// Import converts a decoded file into a scene.
func Import(f *smf.File) (*scene.Scene, error) {
	for i := range f.Nodes {
		if int(f.Nodes[i].Parent) >= len(f.Nodes) {
			return nil, fmt.Errorf("rig node %d parent %d out of range", i, f.Nodes[i].Parent)
		}
	}

	sc := &scene.Scene{FPS: 30}

	arm, boneNodes := buildArmature(f)
	var groupNames []string
	if arm != nil {
		groupNames = make([]string, len(arm.Bones))
		for i, b := range arm.Bones {
			groupNames[i] = b.Name
		}
	}

	for mi := range f.Models {
		obj, err := buildMeshObject(f, mi, groupNames)
		if err != nil {
			return nil, err
		}
		sc.Objects = append(sc.Objects, obj)
	}

	if arm != nil {
		obj := &scene.Object{
			Name:     "armature",
			World:    mgl32.Ident4(),
			Visible:  true,
			Armature: arm,
		}
		if len(f.Animations) > 0 {
			obj.Anim = &scene.AnimData{}
			for ai := range f.Animations {
				action, err := buildAction(f, &f.Animations[ai], arm, boneNodes)
				if err != nil {
					return nil, err
				}
				if obj.Anim.Action == nil {
					obj.Anim.Action = action
				}
				obj.Anim.Tracks = append(obj.Anim.Tracks, &scene.Track{
					Name:   action.Name,
					Strips: []*scene.Strip{{Action: action}},
				})
			}
		}
		sc.Objects = append(sc.Objects, obj)
	}
	return sc, nil
}

// yMirror undoes the exporter's left-handed conversion; it is its own
// inverse.
var yMirror = mgl32.Diag4(mgl32.Vec4{1, -1, 1, 1})

// fromSMFBasis undoes the rig basis change: negate the entire second row
// (the exporter's Y mirror covers the translation too), then swap the first
// two basis columns back.
func fromSMFBasis(m mgl32.Mat4) mgl32.Mat4 {
	m.SetRow(1, m.Row(1).Mul(-1))
	c0, c1 := m.Col(0), m.Col(1)
	m.SetCol(0, c1)
	m.SetCol(1, mgl32.Vec4{c0[0], c0[1], c0[2], 0})
	return m
}

// nodeMatrix converts a node transform to an armature-space matrix in the
// source convention.
func nodeMatrix(d dq.DQ) mgl32.Mat4 {
	return fromSMFBasis(d.Normalize().Mat4())
}

// buildArmature reconstructs bones from the rig chunk. Only connected
// nodes carry a bone (the segment from the parent node's position to their
// own); detached nodes are positional anchors, the way synthetic head
// nodes and root tails were written. boneNodes maps bone index to node
// index, which is also the skin-index order.
func buildArmature(f *smf.File) (*scene.Armature, []int) {
	if len(f.Nodes) == 0 {
		return nil, nil
	}

	positions := make([]mgl32.Vec3, len(f.Nodes))
	matrices := make([]mgl32.Mat4, len(f.Nodes))
	for i := range f.Nodes {
		m := nodeMatrix(f.Nodes[i].Transform)
		matrices[i] = m
		positions[i] = mgl32.Vec3{m.At(0, 3), m.At(1, 3), m.At(2, 3)}
	}

	arm := &scene.Armature{Name: "armature"}
	var boneNodes []int
	boneAt := make(map[int]*scene.Bone) // node index -> bone ending there

	for i := range f.Nodes {
		n := &f.Nodes[i]
		if !n.Connected {
			continue
		}
		parent := int(n.Parent)
		head := positions[parent]

		b := &scene.Bone{
			Name: fmt.Sprintf("node_%d", i),
			Head: head,
			Tail: positions[i],
		}
		m := matrices[i]
		m.SetCol(3, mgl32.Vec4{head[0], head[1], head[2], 1})
		b.Matrix = m

		// Attach to the bone ending at the parent node; a detached parent
		// node means the chain restarts there, so follow its own parent
		// reference to find the owning bone.
		if pb, ok := boneAt[parent]; ok {
			b.Parent = pb
			b.Connected = true
		} else if pb, ok := boneAt[int(f.Nodes[parent].Parent)]; ok && parent != i {
			b.Parent = pb
			b.Connected = false
		}

		arm.Bones = append(arm.Bones, b)
		boneNodes = append(boneNodes, i)
		boneAt[i] = b
	}

	if len(arm.Bones) == 0 {
		return nil, nil
	}
	return arm, boneNodes
}

// buildMeshObject converts one model sub-block into a mesh object in the
// source tool's space: Y un-mirrored, winding and normals restored.
func buildMeshObject(f *smf.File, mi int, groupNames []string) (*scene.Object, error) {
	m := &f.Models[mi]
	if len(m.Vertices)%3 != 0 {
		return nil, fmt.Errorf("%w: model %d has %d vertices", smf.ErrInvalidVertexData, mi, len(m.Vertices))
	}

	mesh := &scene.Mesh{
		Name:         fmt.Sprintf("model_%d", mi),
		VertexGroups: groupNames,
	}
	if m.MaterialName != "" {
		mat := &scene.Material{Name: m.MaterialName}
		if tex := f.FindTexture(m.TextureName); tex != nil {
			mat.Image = &scene.Image{
				Name:   tex.Name,
				Width:  int(tex.Width),
				Height: int(tex.Height),
				Pixels: tex.Pixels,
			}
		}
		mesh.Materials = []*scene.Material{mat}
	}

	mesh.Vertices = make([]scene.Vertex, len(m.Vertices))
	for i := range m.Vertices {
		rec := &m.Vertices[i]
		p := yMirror.Mul4x1(mgl32.Vec4{rec.Position[0], rec.Position[1], rec.Position[2], 1})
		v := scene.Vertex{Position: p.Vec3()}
		for k := 0; k < 4; k++ {
			if rec.Weights[k] == 0 {
				continue
			}
			if int(rec.Indices[k]) >= len(groupNames) {
				continue
			}
			v.Groups = append(v.Groups, scene.GroupWeight{
				Group:  int(rec.Indices[k]),
				Weight: float32(rec.Weights[k]) / 255,
			})
		}
		mesh.Vertices[i] = v
	}

	triCount := len(m.Vertices) / 3
	mesh.Triangles = make([]scene.Triangle, triCount)
	for t := 0; t < triCount; t++ {
		var tri scene.Triangle
		for j := 0; j < 3; j++ {
			rec := &m.Vertices[t*3+(2-j)] // records were written in reverse
			n := yMirror.Mul4x1(mgl32.Vec4{rec.Normal[0], rec.Normal[1], rec.Normal[2], 0}).Vec3().Mul(-1)
			tan := yMirror.Mul4x1(mgl32.Vec4{
				smf.DequantizeTangent(rec.Tangent[0], f.Version),
				smf.DequantizeTangent(rec.Tangent[1], f.Version),
				smf.DequantizeTangent(rec.Tangent[2], f.Version),
				0,
			}).Vec3()
			tri.Loops[j] = scene.Loop{
				VertexIndex: t*3 + (2 - j),
				Normal:      n,
				UV:          mgl32.Vec2{rec.UV[0], rec.UV[1]},
				Tangent:     tan,
			}
		}
		mesh.Triangles[t] = tri
	}

	return &scene.Object{
		Name:    mesh.Name,
		World:   mgl32.Ident4(),
		Visible: m.Visible,
		Mesh:    mesh,
	}, nil
}

// buildAction lifts one sampled animation back into per-bone keyframed
// curves on a normalized 0..1 frame axis. Each frame's armature-space pose
// is decomposed into the local pose offsets the pose context reapplies.
func buildAction(f *smf.File, a *smf.Animation, arm *scene.Armature, boneNodes []int) (*scene.Action, error) {
	action := &scene.Action{Name: a.Name}

	type boneCurves struct {
		rot [4]*scene.FCurve
		loc [3]*scene.FCurve
	}
	curves := make([]boneCurves, len(arm.Bones))
	for bi, b := range arm.Bones {
		for k := 0; k < 4; k++ {
			c := &scene.FCurve{Bone: b.Name, Channel: scene.ChannelRotation, Index: k}
			curves[bi].rot[k] = c
			action.Curves = append(action.Curves, c)
		}
		for k := 0; k < 3; k++ {
			c := &scene.FCurve{Bone: b.Name, Channel: scene.ChannelLocation, Index: k}
			curves[bi].loc[k] = c
			action.Curves = append(action.Curves, c)
		}
	}

	// Bone index of each bone's parent bone, -1 for roots.
	parentBone := make([]int, len(arm.Bones))
	boneIndexAt := make(map[*scene.Bone]int, len(arm.Bones))
	for bi, b := range arm.Bones {
		boneIndexAt[b] = bi
	}
	for bi, b := range arm.Bones {
		parentBone[bi] = -1
		if b.Parent != nil {
			parentBone[bi] = boneIndexAt[b.Parent]
		}
	}

	for fi := range a.Frames {
		fr := &a.Frames[fi]
		if len(fr.Transforms) != len(f.Nodes) {
			return nil, fmt.Errorf("animation %q frame %d has %d transforms for %d nodes",
				a.Name, fi, len(fr.Transforms), len(f.Nodes))
		}
		posed := make([]mgl32.Mat4, len(f.Nodes))
		for i := range fr.Transforms {
			posed[i] = nodeMatrix(fr.Transforms[i])
		}

		// Posed bone matrices use the bone's head as origin, the way the
		// pose context builds them. The node stores the tail, so the head
		// sits one bone length back along the posed local Y axis.
		posedBone := make([]mgl32.Mat4, len(arm.Bones))
		for bi, ni := range boneNodes {
			m := posed[ni]
			tail := mgl32.Vec3{m.At(0, 3), m.At(1, 3), m.At(2, 3)}
			along := m.Mul4x1(mgl32.Vec4{0, arm.Bones[bi].Length(), 0, 0}).Vec3()
			head := tail.Sub(along)
			m.SetCol(3, mgl32.Vec4{head[0], head[1], head[2], 1})
			posedBone[bi] = m
		}

		for bi := range boneNodes {
			restBone := arm.Bones[bi].Matrix
			parentRest := mgl32.Ident4()
			parentPosed := mgl32.Ident4()
			if pi := parentBone[bi]; pi >= 0 {
				parentRest = arm.Bones[pi].Matrix
				parentPosed = posedBone[pi]
			}
			rel := parentRest.Inv().Mul4(restBone)
			local := parentPosed.Mul4(rel).Inv().Mul4(posedBone[bi])

			q := dq.RotationQuat(local)
			vals := [4]float32{q.W, q.V[0], q.V[1], q.V[2]}
			for k := 0; k < 4; k++ {
				c := curves[bi].rot[k]
				c.Keyframes = append(c.Keyframes, scene.Keyframe{Frame: fr.Time, Value: vals[k]})
			}
			for k := 0; k < 3; k++ {
				c := curves[bi].loc[k]
				c.Keyframes = append(c.Keyframes, scene.Keyframe{Frame: fr.Time, Value: local.At(k, 3)})
			}
		}
	}
	return action, nil
}
