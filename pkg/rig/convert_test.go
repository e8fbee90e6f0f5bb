package rig

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestToSMFBasis_IdentityAxes(t *testing.T) {
	got, err := ToSMFBasis(mgl32.Ident4(), mgl32.Ident4(), mgl32.Vec3{})
	if err != nil {
		t.Fatalf("ToSMFBasis: %v", err)
	}

	// Identity in: the first two basis columns swap and the Y row of the
	// rotation flips sign.
	want := mgl32.Mat4{
		0, -1, 0, 0, // col 0
		1, 0, 0, 0, // col 1
		0, 0, 1, 0, // col 2
		0, 0, 0, 1, // col 3
	}
	if !got.ApproxEqualThreshold(want, 1e-6) {
		t.Errorf("basis = %v, want %v", got, want)
	}
}

func TestToSMFBasis_TranslationOverride(t *testing.T) {
	local := mgl32.Translate3D(9, 9, 9)
	got, err := ToSMFBasis(local, mgl32.Ident4(), mgl32.Vec3{1, 2, 3})
	if err != nil {
		t.Fatalf("ToSMFBasis: %v", err)
	}
	tr := got.Col(3)
	if tr.Vec3() != (mgl32.Vec3{1, -2, 3}) {
		t.Errorf("translation = %v, want the mirrored override {1 -2 3}, not the matrix's own", tr.Vec3())
	}
}

func TestToSMFBasis_TranslationMirrored(t *testing.T) {
	world := mgl32.Translate3D(0, 5, 0)
	got, err := ToSMFBasis(mgl32.Ident4(), world, mgl32.Vec3{0, 1, 0})
	if err != nil {
		t.Fatalf("ToSMFBasis: %v", err)
	}
	// Composed translation is (0, 6, 0); the Y mirror negates the whole
	// second row, translation included, so nodes land in the same space as
	// the mirrored mesh vertices.
	tr := got.Col(3).Vec3()
	if !tr.ApproxEqualThreshold(mgl32.Vec3{0, -6, 0}, 1e-6) {
		t.Errorf("translation = %v, want {0 -6 0}", tr)
	}
}

func TestToSMFBasis_StripsScale(t *testing.T) {
	local := mgl32.Scale3D(3, 3, 3)
	got, err := ToSMFBasis(local, mgl32.Ident4(), mgl32.Vec3{})
	if err != nil {
		t.Fatalf("ToSMFBasis: %v", err)
	}
	for c := 0; c < 3; c++ {
		l := got.Col(c).Vec3().Len()
		if math.Abs(float64(l)-1) > 1e-5 {
			t.Errorf("basis column %d has length %v after scale strip, want 1", c, l)
		}
	}
}

func TestToSMFBasis_Pure(t *testing.T) {
	local := mgl32.HomogRotate3DZ(0.7).Mul4(mgl32.Translate3D(1, 2, 3))
	world := mgl32.HomogRotate3DX(-0.3)

	a, err := ToSMFBasis(local, world, mgl32.Vec3{4, 5, 6})
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	b, err := ToSMFBasis(local, world, mgl32.Vec3{4, 5, 6})
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if a != b {
		t.Error("repeated calls with equal inputs disagree")
	}
}

func TestToSMFBasis_RejectsReflection(t *testing.T) {
	local := mgl32.Scale3D(-1, 1, 1)
	_, err := ToSMFBasis(local, mgl32.Ident4(), mgl32.Vec3{})
	if !errors.Is(err, ErrReflectiveTransform) {
		t.Errorf("err = %v, want ErrReflectiveTransform", err)
	}
}

func TestToSMFBasis_RejectsDegenerate(t *testing.T) {
	local := mgl32.Scale3D(0, 1, 1)
	_, err := ToSMFBasis(local, mgl32.Ident4(), mgl32.Vec3{})
	if !errors.Is(err, ErrDegenerateTransform) {
		t.Errorf("err = %v, want ErrDegenerateTransform", err)
	}
}
