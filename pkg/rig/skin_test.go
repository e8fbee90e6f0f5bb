package rig

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/smf-go/pkg/scene"
)

func TestBuildBindmap_SkipsRootAndSynthetic(t *testing.T) {
	root := makeBone("root", nil, false, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	a := makeBone("a", root, true, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 2, 0})
	b := makeBone("b", a, false, mgl32.Vec3{1, 2, 0}, mgl32.Vec3{1, 3, 0})
	nodes := BuildNodeList(&scene.Armature{Bones: []*scene.Bone{root, a, b}})

	bm := BuildBindmap(nodes)
	if len(bm) != 2 {
		t.Fatalf("bindmap size = %d, want 2 (root excluded, synthetic excluded)", len(bm))
	}
	if _, ok := bm["root"]; ok {
		t.Error("root bone must not appear in the bindmap")
	}
	if bm["a"] != 0 || bm["b"] != 1 {
		t.Errorf("bindmap = %v, want a=0 b=1", bm)
	}
}

func TestBuildBindmap_Contiguous(t *testing.T) {
	root := makeBone("root", nil, false, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	bones := []*scene.Bone{root}
	prev := root
	for _, name := range []string{"a", "b", "c", "d"} {
		// Alternate connected and disconnected children so synthetic nodes
		// interleave with bone nodes.
		conn := len(bones)%2 == 0
		b := makeBone(name, prev, conn, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
		bones = append(bones, b)
		prev = b
	}
	bm := BuildBindmap(BuildNodeList(&scene.Armature{Bones: bones}))

	seen := make([]bool, len(bm))
	for _, idx := range bm {
		if idx < 0 || idx >= len(bm) {
			t.Fatalf("index %d out of range [0, %d)", idx, len(bm))
		}
		if seen[idx] {
			t.Fatalf("index %d assigned twice", idx)
		}
		seen[idx] = true
	}
}

func TestGroupIndexMap(t *testing.T) {
	bm := Bindmap{"a": 0, "b": 1}
	m := bm.GroupIndexMap([]string{"b", "hair", "a"})
	if len(m) != 2 {
		t.Fatalf("map size = %d, want 2", len(m))
	}
	if m[0] != 1 || m[2] != 0 {
		t.Errorf("map = %v, want {0:1 2:0}", m)
	}
}

func TestResolveSkin(t *testing.T) {
	indexMap := map[int]int{0: 0, 1: 1, 2: 2, 3: 3, 4: 4}

	tests := []struct {
		name          string
		groups        []scene.GroupWeight
		maxInfluences int
		want          SkinBinding
	}{
		{
			name:          "no groups falls back to rigid",
			groups:        nil,
			maxInfluences: 4,
			want:          RigidBinding(),
		},
		{
			name:          "zero weight discarded",
			groups:        []scene.GroupWeight{{Group: 1, Weight: 0}},
			maxInfluences: 4,
			want:          RigidBinding(),
		},
		{
			name:          "single full weight",
			groups:        []scene.GroupWeight{{Group: 2, Weight: 0.4}},
			maxInfluences: 4,
			want:          SkinBinding{Indices: [4]uint8{2}, Weights: [4]uint8{255}},
		},
		{
			name: "equal pair splits evenly",
			groups: []scene.GroupWeight{
				{Group: 1, Weight: 0.5},
				{Group: 2, Weight: 0.5},
			},
			maxInfluences: 4,
			want: SkinBinding{
				Indices: [4]uint8{1, 2},
				Weights: [4]uint8{128, 128},
			},
		},
		{
			name: "weakest dropped past the cap",
			groups: []scene.GroupWeight{
				{Group: 0, Weight: 0.1},
				{Group: 1, Weight: 0.2},
				{Group: 2, Weight: 0.3},
			},
			maxInfluences: 2,
			want: SkinBinding{
				Indices: [4]uint8{1, 2},
				Weights: [4]uint8{102, 153},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveSkin(tt.groups, indexMap, tt.maxInfluences)
			if got != tt.want {
				t.Errorf("ResolveSkin() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestResolveSkin_WeightsSumNear255(t *testing.T) {
	indexMap := map[int]int{0: 0, 1: 1, 2: 2, 3: 3}
	groups := []scene.GroupWeight{
		{Group: 0, Weight: 0.17},
		{Group: 1, Weight: 0.33},
		{Group: 2, Weight: 0.29},
		{Group: 3, Weight: 0.21},
	}
	b := ResolveSkin(groups, indexMap, 4)

	var sum int
	for _, w := range b.Weights {
		sum += int(w)
	}
	if sum < 253 || sum > 257 {
		t.Errorf("weight sum = %d, want 255 within rounding slack", sum)
	}
}

func TestResolveSkin_GroupNotInMapIgnored(t *testing.T) {
	indexMap := map[int]int{1: 0}
	groups := []scene.GroupWeight{
		{Group: 7, Weight: 0.9}, // not a bone group
		{Group: 1, Weight: 0.1},
	}
	b := ResolveSkin(groups, indexMap, 4)
	want := SkinBinding{Indices: [4]uint8{0}, Weights: [4]uint8{255}}
	if b != want {
		t.Errorf("binding = %+v, want %+v", b, want)
	}
}
