package rig

// Bindmap maps bone names to the contiguous skin indices the runtime shader
// addresses. Only real, parented bones receive an index: root and synthetic
// nodes never skin vertices. Indices are assigned in node-array order
// starting at 0, with no gaps, so the numbering is reproducible from the
// node list alone.
type Bindmap map[string]int

// BuildBindmap derives the bindmap from a node list.
func BuildBindmap(nodes []Node) Bindmap {
	bm := make(Bindmap)
	next := 0
	for _, n := range nodes {
		if n.Kind != KindBone || n.Bone.Parent == nil {
			continue
		}
		bm[n.Bone.Name] = next
		next++
	}
	return bm
}

// GroupIndexMap pre-resolves a mesh's vertex-group indices against the
// bindmap: group index -> skin index. Groups whose name is not in the
// bindmap are absent from the result and ignored during skinning.
func (bm Bindmap) GroupIndexMap(groupNames []string) map[int]int {
	out := make(map[int]int)
	for i, name := range groupNames {
		if skin, ok := bm[name]; ok {
			out[i] = skin
		}
	}
	return out
}
