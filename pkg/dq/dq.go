// Package dq implements dual quaternion algebra for rigid 3D transforms.
// A dual quaternion packs a rotation and a translation into two quaternions
// (real and dual) and is the transform representation SMF rigs and
// animations are stored in.
package dq

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// DQ is a dual quaternion: the real part carries the rotation, the dual
// part encodes the translation as 0.5 * (0, t) * real.
type DQ struct {
	Real mgl32.Quat
	Dual mgl32.Quat
}

// Identity returns the identity dual quaternion (no rotation, no translation).
func Identity() DQ {
	return DQ{
		Real: mgl32.QuatIdent(),
		Dual: mgl32.Quat{},
	}
}

// FromRotation returns a pure rotation DQ, i.e. with no translation.
func FromRotation(q mgl32.Quat) DQ {
	return DQ{Real: q, Dual: mgl32.Quat{}}
}

// FromAxisAngle returns a pure rotation DQ from an axis/angle rotation.
// axis should be normalized, angle is in radians.
func FromAxisAngle(axis mgl32.Vec3, angle float32) DQ {
	return FromRotation(mgl32.QuatRotate(angle, axis))
}

// FromTranslation returns a pure translation DQ, i.e. with no rotation.
func FromTranslation(x, y, z float32) DQ {
	return DQ{
		Real: mgl32.QuatIdent(),
		Dual: mgl32.Quat{W: 0, V: mgl32.Vec3{x / 2, y / 2, z / 2}},
	}
}

// FromQuatVector builds a DQ from a rotation quaternion and a separate
// translation vector. This is the primitive the rig encoder uses: SMF stores
// the bone tail as the node translation rather than the translation column of
// the bone matrix itself.
func FromQuatVector(q mgl32.Quat, t mgl32.Vec3) DQ {
	tq := mgl32.Quat{W: 0, V: t}
	return DQ{
		Real: q,
		Dual: tq.Mul(q).Scale(0.5),
	}
}

// FromMatrixVector builds a DQ from the rotation part of a 4x4 matrix and a
// separate translation vector. The matrix translation column is ignored.
func FromMatrixVector(m mgl32.Mat4, t mgl32.Vec3) DQ {
	return FromQuatVector(RotationQuat(m), t)
}

// FromMatrix builds a DQ from a rigid 4x4 transform, taking the translation
// from the matrix's fourth column.
func FromMatrix(m mgl32.Mat4) DQ {
	t := mgl32.Vec3{m.At(0, 3), m.At(1, 3), m.At(2, 3)}
	return FromQuatVector(RotationQuat(m), t)
}

// Mul returns the dual quaternion product d ∘ other. The product is
// non-commutative: the real parts multiply normally while the dual part is
// real1*dual2 + dual1*real2.
func (d DQ) Mul(other DQ) DQ {
	return DQ{
		Real: d.Real.Mul(other.Real),
		Dual: d.Real.Mul(other.Dual).Add(d.Dual.Mul(other.Real)),
	}
}

// Conjugate returns the DQ with both components conjugated independently.
// For a unit DQ this is the inverse transform. Not to be confused with
// Negate, which flips signs and represents the same transform.
func (d DQ) Conjugate() DQ {
	return DQ{
		Real: d.Real.Conjugate(),
		Dual: d.Dual.Conjugate(),
	}
}

// Negate flips the sign of all eight scalars. q and -q represent the same
// rotation (quaternion double cover); the animation encoder negates frames
// so consecutive keyframes interpolate along the short path.
func (d DQ) Negate() DQ {
	return DQ{
		Real: d.Real.Scale(-1),
		Dual: d.Dual.Scale(-1),
	}
}

// Dot returns the dot product of the real parts. A negative value means the
// two DQs sit on opposite sides of the quaternion double cover.
func (d DQ) Dot(other DQ) float32 {
	return d.Real.Dot(other.Real)
}

// Normalize scales the DQ by the inverse magnitude of the real part and
// orthogonalizes the dual part against the real part. A degenerate DQ with a
// near-zero real part is returned unchanged; callers must guard against
// feeding in zero rotations.
func (d DQ) Normalize() DQ {
	l := d.Real.Len()
	if l < 1e-8 {
		return d
	}
	inv := 1 / l
	real := d.Real.Scale(inv)
	dot := real.Dot(d.Dual)
	dual := d.Dual.Sub(real.Scale(dot)).Scale(inv)
	return DQ{Real: real, Dual: dual}
}

// Translation extracts the translation vector, t = 2 * dual * conj(real).
func (d DQ) Translation() mgl32.Vec3 {
	t := d.Dual.Scale(2).Mul(d.Real.Conjugate())
	return t.V
}

// Mat4 expands the DQ to a rigid 4x4 transform.
func (d DQ) Mat4() mgl32.Mat4 {
	m := d.Real.Mat4()
	t := d.Translation()
	m.SetCol(3, mgl32.Vec4{t[0], t[1], t[2], 1})
	return m
}

// Floats returns the eight scalars in SMF order: real xyzw then dual xyzw.
func (d DQ) Floats() [8]float32 {
	return [8]float32{
		d.Real.V[0], d.Real.V[1], d.Real.V[2], d.Real.W,
		d.Dual.V[0], d.Dual.V[1], d.Dual.V[2], d.Dual.W,
	}
}

// FromFloats builds a DQ from eight scalars in SMF order (w last).
func FromFloats(f [8]float32) DQ {
	return DQ{
		Real: mgl32.Quat{W: f[3], V: mgl32.Vec3{f[0], f[1], f[2]}},
		Dual: mgl32.Quat{W: f[7], V: mgl32.Vec3{f[4], f[5], f[6]}},
	}
}

// RotationQuat extracts the rotation quaternion from the upper 3x3 of a
// rigid transform. The matrix is assumed to be orthonormal; strip scale
// before calling.
func RotationQuat(m mgl32.Mat4) mgl32.Quat {
	tr := m.At(0, 0) + m.At(1, 1) + m.At(2, 2)
	var q mgl32.Quat
	switch {
	case tr > 0:
		s := float32(math.Sqrt(float64(tr+1))) * 2
		q.W = s / 4
		q.V = mgl32.Vec3{
			(m.At(2, 1) - m.At(1, 2)) / s,
			(m.At(0, 2) - m.At(2, 0)) / s,
			(m.At(1, 0) - m.At(0, 1)) / s,
		}
	case m.At(0, 0) > m.At(1, 1) && m.At(0, 0) > m.At(2, 2):
		s := float32(math.Sqrt(float64(1+m.At(0, 0)-m.At(1, 1)-m.At(2, 2)))) * 2
		q.W = (m.At(2, 1) - m.At(1, 2)) / s
		q.V = mgl32.Vec3{
			s / 4,
			(m.At(0, 1) + m.At(1, 0)) / s,
			(m.At(0, 2) + m.At(2, 0)) / s,
		}
	case m.At(1, 1) > m.At(2, 2):
		s := float32(math.Sqrt(float64(1+m.At(1, 1)-m.At(0, 0)-m.At(2, 2)))) * 2
		q.W = (m.At(0, 2) - m.At(2, 0)) / s
		q.V = mgl32.Vec3{
			(m.At(0, 1) + m.At(1, 0)) / s,
			s / 4,
			(m.At(1, 2) + m.At(2, 1)) / s,
		}
	default:
		s := float32(math.Sqrt(float64(1+m.At(2, 2)-m.At(0, 0)-m.At(1, 1)))) * 2
		q.W = (m.At(1, 0) - m.At(0, 1)) / s
		q.V = mgl32.Vec3{
			(m.At(0, 2) + m.At(2, 0)) / s,
			(m.At(1, 2) + m.At(2, 1)) / s,
			s / 4,
		}
	}
	return q.Normalize()
}
