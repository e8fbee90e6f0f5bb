package rig

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/smf-go/pkg/dq"
	"github.com/Faultbox/smf-go/pkg/scene"
)

// Kind distinguishes the two node flavors in the flat rig array.
type Kind int

const (
	// KindBone is a node representing a real bone's tail.
	KindBone Kind = iota
	// KindSynthetic is an inserted node representing the head of a bone
	// that is not physically attached to its parent's tail.
	KindSynthetic
)

// Node is one entry of the flat rig array. A synthetic node references the
// bone whose head it represents; a bone node references the bone whose tail
// it represents.
type Node struct {
	Kind      Kind
	Bone      *scene.Bone
	Parent    int
	Connected bool
}

// IsBone reports whether the node is a real bone tail.
func (n Node) IsBone() bool {
	return n.Kind == KindBone
}

// BuildNodeList flattens an armature's bone list into the SMF node array.
// A synthetic head node is inserted immediately before every bone that has
// a parent but is not connected to it; the bone itself then attaches to the
// synthetic node and is marked connected. Root bones attach to index 0 by
// convention (index 0 doubles as the implicit virtual root).
func BuildNodeList(arm *scene.Armature) []Node {
	var nodes []Node
	for _, b := range arm.Bones {
		if b.Parent != nil && !b.Connected {
			nodes = append(nodes, Node{Kind: KindSynthetic, Bone: b})
		}
		nodes = append(nodes, Node{Kind: KindBone, Bone: b})
	}

	// Tail-node index per bone, needed to resolve parent references.
	tail := make(map[*scene.Bone]int, len(arm.Bones))
	for i, n := range nodes {
		if n.Kind == KindBone {
			tail[n.Bone] = i
		}
	}

	for i := range nodes {
		n := &nodes[i]
		b := n.Bone
		switch {
		case n.Kind == KindSynthetic:
			// The head node attaches one level up, to the parent bone's
			// tail (or the virtual root).
			if b.Parent != nil {
				n.Parent = tail[b.Parent]
			}
			n.Connected = b.Connected
		case b.Parent == nil:
			n.Parent = 0
			n.Connected = b.Connected
		case !b.Connected:
			// A synthetic head was inserted right before this node; attach
			// to it and force the connected flag.
			n.Parent = i - 1
			n.Connected = true
		default:
			n.Parent = tail[b.Parent]
			n.Connected = true
		}
	}
	return nodes
}

// RestTransform computes a node's rest-pose transform in SMF's convention
// as an (always negated) dual quaternion. Bone nodes sit at the bone's
// tail, synthetic nodes at the owning bone's head.
func RestTransform(n Node, world mgl32.Mat4) (dq.DQ, error) {
	translation := n.Bone.Tail
	if n.Kind == KindSynthetic {
		translation = n.Bone.Head
	}
	m, err := ToSMFBasis(n.Bone.Matrix, world, translation)
	if err != nil {
		return dq.DQ{}, err
	}
	return dq.FromMatrix(m).Normalize().Negate(), nil
}
