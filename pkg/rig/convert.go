// Package rig flattens a bone hierarchy into SMF's node array and resolves
// the per-vertex skinning data that refers into it.
package rig

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"
)

// Conversion errors.
var (
	// ErrReflectiveTransform is returned when a transform decomposes to a
	// reflection (negative determinant). SMF has no convention for mirrored
	// bones, so such rigs are rejected instead of silently exporting wrong
	// geometry.
	ErrReflectiveTransform = errors.New("rig: transform contains a reflection (negative determinant)")
	// ErrDegenerateTransform is returned when a basis vector of the
	// transform has zero length.
	ErrDegenerateTransform = errors.New("rig: transform has a zero-length basis vector")
)

// ToSMFBasis converts an armature-space transform into SMF's left-handed
// convention. translation overrides the local matrix's own translation
// column before the world transform is applied (SMF stores a bone's tail,
// not its matrix origin).
//
// Steps: compose world and local, decompose to discard scale, swap the
// first two basis columns, re-attach the decomposed translation, then
// mirror along Y by negating the entire second row. The row negation
// covers the translation too, keeping nodes in the same left-handed space
// as the Y-mirrored mesh vertices.
// Pure function: equal inputs give equal outputs.
func ToSMFBasis(local, world mgl32.Mat4, translation mgl32.Vec3) (mgl32.Mat4, error) {
	l := local
	l.SetCol(3, mgl32.Vec4{translation[0], translation[1], translation[2], 1})
	m := world.Mul4(l)

	t := mgl32.Vec3{m.At(0, 3), m.At(1, 3), m.At(2, 3)}
	rot, err := stripScale(m)
	if err != nil {
		return mgl32.Mat4{}, err
	}

	c0, c1 := rot.Col(0), rot.Col(1)
	rot.SetCol(0, c1)
	rot.SetCol(1, c0)

	rot.SetCol(3, mgl32.Vec4{t[0], t[1], t[2], 1})
	rot.SetRow(1, rot.Row(1).Mul(-1))
	return rot, nil
}

// stripScale normalizes the basis vectors of the upper 3x3, discarding
// uniform and non-uniform scale. Reflections and degenerate bases are
// rejected.
func stripScale(m mgl32.Mat4) (mgl32.Mat4, error) {
	out := mgl32.Ident4()
	for c := 0; c < 3; c++ {
		v := mgl32.Vec3{m.At(0, c), m.At(1, c), m.At(2, c)}
		l := v.Len()
		if l < 1e-8 {
			return mgl32.Mat4{}, ErrDegenerateTransform
		}
		v = v.Mul(1 / l)
		out.SetCol(c, mgl32.Vec4{v[0], v[1], v[2], 0})
	}
	if out.Det() < 0 {
		return mgl32.Mat4{}, ErrReflectiveTransform
	}
	return out, nil
}
