package importer

import (
	"bytes"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/smf-go/pkg/exporter"
	"github.com/Faultbox/smf-go/pkg/scene"
	"github.com/Faultbox/smf-go/pkg/smf"
)

// buildTriangleScene mirrors the exporter's minimal test scene: one
// triangle bound at full weight to a single parented bone.
func buildTriangleScene() *scene.Scene {
	root := &scene.Bone{Name: "root", Matrix: mgl32.Ident4(), Tail: mgl32.Vec3{0, 1, 0}}

	armMat := mgl32.Ident4()
	armMat.SetCol(3, mgl32.Vec4{0, 1, 0, 1})
	arm := &scene.Bone{
		Name: "arm", Parent: root, Connected: true,
		Matrix: armMat, Head: mgl32.Vec3{0, 1, 0}, Tail: mgl32.Vec3{0, 2, 0},
	}

	mat := &scene.Material{Name: "body", Image: &scene.Image{
		Name: "skin", Width: 2, Height: 2,
		Pixels: bytes.Repeat([]byte{10, 20, 30, 255}, 4),
	}}

	mesh := &scene.Mesh{
		Name: "tri",
		Vertices: []scene.Vertex{
			{Position: mgl32.Vec3{0, 0, 0}, Groups: []scene.GroupWeight{{Group: 0, Weight: 1}}},
			{Position: mgl32.Vec3{1, 0, 0}, Groups: []scene.GroupWeight{{Group: 0, Weight: 1}}},
			{Position: mgl32.Vec3{0, 1, 0}, Groups: []scene.GroupWeight{{Group: 0, Weight: 1}}},
		},
		VertexGroups: []string{"arm"},
		Materials:    []*scene.Material{mat},
	}
	tri := scene.Triangle{}
	for i := 0; i < 3; i++ {
		tri.Loops[i] = scene.Loop{
			VertexIndex: i,
			Normal:      mgl32.Vec3{0, 0, 1},
			UV:          mgl32.Vec2{float32(i) * 0.5, 0.25},
			Tangent:     mgl32.Vec3{1, 0, 0},
		}
	}
	mesh.Triangles = []scene.Triangle{tri}

	return &scene.Scene{
		FPS: 30,
		Objects: []*scene.Object{
			{Name: "tri", World: mgl32.Ident4(), Visible: true, Mesh: mesh},
			{Name: "rig", World: mgl32.Ident4(), Visible: true,
				Armature: &scene.Armature{Name: "rig", Bones: []*scene.Bone{root, arm}}},
		},
	}
}

// exportImport pushes the scene through the full pipeline: export, encode,
// parse, import.
func exportImport(t *testing.T, sc *scene.Scene, opts exporter.Options) *scene.Scene {
	t.Helper()
	f, _, err := exporter.Export(sc, opts)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	data, err := f.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	back, err := smf.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out, err := Import(back)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	return out
}

func TestImport_MeshRoundTrip(t *testing.T) {
	src := buildTriangleScene()
	out := exportImport(t, src, exporter.Options{Version: smf.V11, ExportTextures: true})

	meshes := out.MeshObjects()
	if len(meshes) != 1 {
		t.Fatalf("mesh objects = %d, want 1", len(meshes))
	}
	mesh := meshes[0].Mesh
	if len(mesh.Triangles) != 1 {
		t.Fatalf("triangles = %d, want 1", len(mesh.Triangles))
	}

	srcMesh := src.Objects[0].Mesh
	tri := mesh.Triangles[0]
	for j := 0; j < 3; j++ {
		got := mesh.Vertices[tri.Loops[j].VertexIndex].Position
		want := srcMesh.Vertices[srcMesh.Triangles[0].Loops[j].VertexIndex].Position
		if !got.ApproxEqualThreshold(want, 1e-6) {
			t.Errorf("corner %d position = %v, want %v", j, got, want)
		}
		if !tri.Loops[j].Normal.ApproxEqualThreshold(mgl32.Vec3{0, 0, 1}, 1e-6) {
			t.Errorf("corner %d normal = %v, want +Z restored", j, tri.Loops[j].Normal)
		}
		if uv := tri.Loops[j].UV; uv != srcMesh.Triangles[0].Loops[j].UV {
			t.Errorf("corner %d uv = %v, want %v", j, uv, srcMesh.Triangles[0].Loops[j].UV)
		}
	}

	for i, v := range mesh.Vertices {
		if len(v.Groups) != 1 || v.Groups[0].Group != 0 {
			t.Fatalf("vertex %d groups = %+v, want one full-weight group", i, v.Groups)
		}
		if w := v.Groups[0].Weight; math.Abs(float64(w-1)) > 0.01 {
			t.Errorf("vertex %d weight = %v, want 1", i, w)
		}
	}

	if len(mesh.Materials) != 1 || mesh.Materials[0].Name != "body" {
		t.Fatalf("materials = %+v, want body", mesh.Materials)
	}
	img := mesh.Materials[0].Image
	if img == nil || img.Name != "skin" || !img.HasData() {
		t.Errorf("image = %+v, want skin with pixels", img)
	}
}

func TestImport_ArmatureReconstruction(t *testing.T) {
	src := buildTriangleScene()
	out := exportImport(t, src, exporter.Options{Version: smf.V11})

	arms := out.ArmatureObjects()
	if len(arms) != 1 {
		t.Fatalf("armature objects = %d, want 1", len(arms))
	}
	arm := arms[0].Armature

	// Only connected nodes come back as bones; the root tail is an anchor.
	if len(arm.Bones) != 1 {
		t.Fatalf("bones = %d, want 1", len(arm.Bones))
	}
	b := arm.Bones[0]
	if !b.Head.ApproxEqualThreshold(mgl32.Vec3{0, 1, 0}, 1e-5) {
		t.Errorf("bone head = %v, want {0 1 0}", b.Head)
	}
	if !b.Tail.ApproxEqualThreshold(mgl32.Vec3{0, 2, 0}, 1e-5) {
		t.Errorf("bone tail = %v, want {0 2 0}", b.Tail)
	}

	// The skin group of the imported meshes names this bone.
	mesh := out.MeshObjects()[0].Mesh
	if len(mesh.VertexGroups) != 1 || mesh.VertexGroups[0] != b.Name {
		t.Errorf("vertex groups = %v, want [%s]", mesh.VertexGroups, b.Name)
	}
}

func TestImport_DisconnectedBoneTopology(t *testing.T) {
	src := buildTriangleScene()
	bones := src.Objects[1].Armature.Bones
	// Detach the child and move its head off the root's tail.
	bones[1].Connected = false
	bones[1].Head = mgl32.Vec3{1, 1, 0}
	bones[1].Tail = mgl32.Vec3{1, 2, 0}
	m := mgl32.Ident4()
	m.SetCol(3, mgl32.Vec4{1, 1, 0, 1})
	bones[1].Matrix = m

	out := exportImport(t, src, exporter.Options{Version: smf.V11})
	arm := out.ArmatureObjects()[0].Armature

	if len(arm.Bones) != 1 {
		t.Fatalf("bones = %d, want 1 (the detached child)", len(arm.Bones))
	}
	b := arm.Bones[0]
	if !b.Head.ApproxEqualThreshold(mgl32.Vec3{1, 1, 0}, 1e-5) {
		t.Errorf("bone head = %v, want the synthetic anchor {1 1 0}", b.Head)
	}
	if !b.Tail.ApproxEqualThreshold(mgl32.Vec3{1, 2, 0}, 1e-5) {
		t.Errorf("bone tail = %v, want {1 2 0}", b.Tail)
	}
}

func TestImport_AnimationReplay(t *testing.T) {
	src := buildTriangleScene()
	src.Objects[1].Anim = &scene.AnimData{
		Action: &scene.Action{
			Name: "wave",
			Curves: []*scene.FCurve{
				{Bone: "arm", Channel: scene.ChannelLocation, Index: 2,
					Keyframes: []scene.Keyframe{{Frame: 0, Value: 0}, {Frame: 100, Value: 1}}},
			},
		},
	}

	out := exportImport(t, src, exporter.Options{
		Version:      smf.V11,
		ExportType:   1, // fixed-interval sampling
		Subdivisions: 4,
	})

	armObj := out.ArmatureObjects()[0]
	if armObj.Anim == nil || armObj.Anim.Action == nil {
		t.Fatal("imported armature has no action")
	}
	action := armObj.Anim.Action
	if action.Name != "wave" {
		t.Errorf("action name = %q, want wave", action.Name)
	}

	// Imported keyframes live on a normalized 0..1 frame axis.
	first, last := action.FrameRange()
	if first != 0 || last != 1 {
		t.Errorf("frame range = [%v, %v], want [0, 1]", first, last)
	}

	// Replaying the action reproduces the sampled pose: at the final frame
	// the bone tail has moved one unit along Z.
	p := scene.NewPoseContext(armObj)
	p.SetAction(action)
	p.SetFrame(1)
	tail := p.BoneTail(armObj.Armature.Bones[0])
	if !tail.ApproxEqualThreshold(mgl32.Vec3{0, 2, 1}, 1e-3) {
		t.Errorf("replayed tail = %v, want {0 2 1}", tail)
	}
}

func TestImport_NoRig(t *testing.T) {
	src := buildTriangleScene()
	src.Objects = src.Objects[:1] // mesh only

	out := exportImport(t, src, exporter.Options{Version: smf.V10})
	if len(out.ArmatureObjects()) != 0 {
		t.Error("unexpected armature for a rigless file")
	}
	mesh := out.MeshObjects()[0].Mesh
	for i, v := range mesh.Vertices {
		if len(v.Groups) != 0 {
			t.Errorf("vertex %d has groups %v without a rig", i, v.Groups)
		}
	}
}
