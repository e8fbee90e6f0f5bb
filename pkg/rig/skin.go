package rig

import (
	"math"
	"sort"

	"github.com/Faultbox/smf-go/pkg/scene"
)

// MaxInfluences is the hard cap on bone influences per vertex in the SMF
// vertex format.
const MaxInfluences = 4

// SkinBinding is the quantized per-vertex skinning data: up to four
// (index, weight) byte pairs. Weights of a skinned vertex sum to 255 up to
// rounding.
type SkinBinding struct {
	Indices [4]uint8
	Weights [4]uint8
}

// RigidBinding is the fallback for vertices with no valid skin group: a
// full-weight bind to node 0.
func RigidBinding() SkinBinding {
	return SkinBinding{Weights: [4]uint8{255, 0, 0, 0}}
}

// ResolveSkin maps one vertex's group assignments through a pre-resolved
// group-index map into a quantized binding. Groups absent from the map or
// with non-positive weight are discarded; the strongest maxInfluences
// survive, are renormalized and quantized to bytes. maxInfluences is
// clamped to [1, 4].
func ResolveSkin(groups []scene.GroupWeight, indexMap map[int]int, maxInfluences int) SkinBinding {
	if maxInfluences < 1 {
		maxInfluences = 1
	}
	if maxInfluences > MaxInfluences {
		maxInfluences = MaxInfluences
	}

	kept := make([]scene.GroupWeight, 0, len(groups))
	for _, g := range groups {
		if _, ok := indexMap[g.Group]; !ok {
			continue
		}
		if g.Weight <= 0 {
			continue
		}
		kept = append(kept, g)
	}
	if len(kept) == 0 {
		return RigidBinding()
	}

	// Weakest first; the strongest maxInfluences sit at the tail.
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Weight < kept[j].Weight })
	if len(kept) > maxInfluences {
		kept = kept[len(kept)-maxInfluences:]
	}

	var sum float32
	for _, g := range kept {
		sum += g.Weight
	}

	var out SkinBinding
	for i, g := range kept {
		w := math.Round(float64(g.Weight) / float64(sum) * 255)
		if w > 255 {
			w = 255
		}
		out.Indices[i] = uint8(indexMap[g.Group])
		out.Weights[i] = uint8(w)
	}
	return out
}

// ResolveMeshSkin resolves every vertex of a mesh in one pass.
func ResolveMeshSkin(mesh *scene.Mesh, indexMap map[int]int, maxInfluences int) []SkinBinding {
	out := make([]SkinBinding, len(mesh.Vertices))
	for i := range mesh.Vertices {
		out[i] = ResolveSkin(mesh.Vertices[i].Groups, indexMap, maxInfluences)
	}
	return out
}
