package smf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/smf-go/pkg/dq"
)

// makeTestFile builds a small but fully populated file for the given
// version: one 2x2 texture, one triangle model, a two-node rig and one
// two-frame animation.
func makeTestFile(v Version) *File {
	f := &File{Version: v}

	f.Textures = []Texture{{
		Name:   "skin",
		Width:  2,
		Height: 2,
		Pixels: bytes.Repeat([]byte{255, 128, 0, 255}, 4),
	}}

	if v == V7 {
		f.Materials = []Material{
			{Name: "flat", Type: 0},
			{Name: "shaded", Type: 2, Params: [8]uint8{100, 50, 1, 0, 0, 0, 0, 0}},
		}
		f.Center = [3]float32{0, 0.5, 0}
		f.Size = 2
		f.Ambient = [3]uint8{20, 20, 30}
	}

	tri := make([]Vertex, 3)
	for i := range tri {
		tri[i] = Vertex{
			Position: [3]float32{float32(i), 0, 0},
			Normal:   [3]float32{0, 0, 1},
			UV:       [2]float32{float32(i) * 0.5, 0.5},
			Tangent:  [4]uint8{127, 127, 254, 0},
			Indices:  [4]uint8{0, 1, 0, 0},
			Weights:  [4]uint8{200, 55, 0, 0},
		}
	}
	f.Models = []Model{{
		Vertices:     tri,
		MaterialName: "shaded",
		TextureName:  "skin",
		Visible:      true,
	}}

	root := dq.FromTranslation(0, 0, 1).Negate()
	child := dq.FromQuatVector(mgl32.QuatRotate(0.5, mgl32.Vec3{0, 0, 1}), mgl32.Vec3{0, 0, 2}).Negate()
	f.Nodes = []Node{
		{Transform: root, Parent: 0, Connected: false},
		{Transform: child, Parent: 0, Connected: true},
	}
	if v != V7 {
		f.Nodes[1].Locked = true
		f.Nodes[1].IKAxis = [3]float32{0, 1, 0}
	}

	anim := Animation{
		Name:       "walk",
		Loop:       true,
		PlayTimeMS: 1000,
	}
	if v != V7 {
		anim.Interpolation = 1
		anim.SampleMultiplier = 4
	}
	for _, t := range []float32{0, 1} {
		anim.Frames = append(anim.Frames, Frame{
			Time:       t,
			Transforms: []dq.DQ{root, child},
		})
	}
	f.Animations = []Animation{anim}
	return f
}

func TestDetectVersion(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    Version
		wantErr error
	}{
		{
			name: "v7",
			data: mustEncode(t, makeTestFile(V7)),
			want: V7,
		},
		{
			name: "v10",
			data: mustEncode(t, makeTestFile(V10)),
			want: V10,
		},
		{
			name: "v11",
			data: mustEncode(t, makeTestFile(V11)),
			want: V11,
		},
		{
			name:    "wrong magic",
			data:    []byte("NotAModelFormatAtAll\x00 with some trailing bytes"),
			wantErr: ErrInvalidMagic,
		},
		{
			name:    "unknown version tag",
			data:    legacyHeaderWithTag(8),
			wantErr: ErrUnsupportedVersion,
		},
		{
			name:    "magic only",
			data:    []byte(magicLegacy),
			wantErr: ErrTruncatedData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectVersion(tt.data)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DetectVersion: %v", err)
			}
			if got != tt.want {
				t.Errorf("version = %s, want %s", got, tt.want)
			}
		})
	}
}

func legacyHeaderWithTag(tag float32) []byte {
	data := []byte(magicLegacy)
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], math.Float32bits(tag))
	return append(data, b[:]...)
}

func mustEncode(t *testing.T, f *File) []byte {
	t.Helper()
	data, err := f.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return data
}

func TestRoundTrip(t *testing.T) {
	for _, v := range []Version{V7, V10, V11} {
		t.Run(v.String(), func(t *testing.T) {
			orig := makeTestFile(v)
			data := mustEncode(t, orig)

			f, err := Parse(data)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}

			if f.Version != v {
				t.Errorf("version = %s, want %s", f.Version, v)
			}
			if len(f.Textures) != 1 || f.Textures[0].Name != "skin" ||
				f.Textures[0].Width != 2 || len(f.Textures[0].Pixels) != 16 {
				t.Errorf("texture not preserved: %+v", f.Textures)
			}
			if len(f.Models) != 1 {
				t.Fatalf("model count = %d, want 1", len(f.Models))
			}
			m := f.Models[0]
			if len(m.Vertices) != 3 || m.MaterialName != "shaded" || m.TextureName != "skin" || !m.Visible {
				t.Errorf("model not preserved: %d verts, mat %q, tex %q, visible %v",
					len(m.Vertices), m.MaterialName, m.TextureName, m.Visible)
			}
			if m.Vertices[2] != orig.Models[0].Vertices[2] {
				t.Errorf("vertex record changed: %+v", m.Vertices[2])
			}
			if len(f.Nodes) != 2 {
				t.Fatalf("node count = %d, want 2", len(f.Nodes))
			}
			if f.Nodes[1].Transform != orig.Nodes[1].Transform {
				t.Errorf("node transform changed: %+v", f.Nodes[1].Transform)
			}
			if !f.Nodes[1].Connected {
				t.Error("connected flag lost")
			}
			if v != V7 {
				if !f.Nodes[1].Locked || f.Nodes[1].IKAxis != orig.Nodes[1].IKAxis {
					t.Error("locked flag or IK axis lost")
				}
			}
			if len(f.Animations) != 1 {
				t.Fatalf("animation count = %d, want 1", len(f.Animations))
			}
			a := f.Animations[0]
			if a.Name != "walk" || !a.Loop || a.PlayTimeMS != 1000 || len(a.Frames) != 2 {
				t.Errorf("animation not preserved: %+v", a)
			}
			if v != V7 && (a.Interpolation != 1 || a.SampleMultiplier != 4) {
				t.Errorf("interpolation hints lost: %d %d", a.Interpolation, a.SampleMultiplier)
			}
			if a.Frames[1].Transforms[1] != orig.Animations[0].Frames[1].Transforms[1] {
				t.Error("frame transform changed")
			}
			if v == V7 {
				if len(f.Materials) != 2 || f.Materials[1].Params != orig.Materials[1].Params {
					t.Errorf("materials not preserved: %+v", f.Materials)
				}
				if f.Center != orig.Center || f.Size != orig.Size || f.Ambient != orig.Ambient {
					t.Error("v7 header extras lost")
				}
			}

			// Decode-encode must reproduce the input byte for byte.
			again, err := f.Encode()
			if err != nil {
				t.Fatalf("re-encode: %v", err)
			}
			if !bytes.Equal(data, again) {
				t.Error("re-encoded bytes differ from the original encoding")
			}
		})
	}
}

func TestEncode_OffsetTable(t *testing.T) {
	f := makeTestFile(V11)
	data := mustEncode(t, f)

	offsets := make([]uint32, 4)
	for i := range offsets {
		offsets[i] = binary.LittleEndian.Uint32(data[len(magicV11)+i*4:])
	}

	if offsets[0] != headerSizeV11 {
		t.Errorf("first chunk at %d, want %d (right after the header)", offsets[0], headerSizeV11)
	}
	for i := 1; i < len(offsets); i++ {
		if offsets[i] < offsets[i-1] {
			t.Errorf("offsets not monotonic: %v", offsets)
		}
	}

	// Chunk sizes recomputed independently must match the offset deltas.
	texSize := uint32(len(encodeTextures(f)))
	if offsets[1]-offsets[0] != texSize {
		t.Errorf("texture chunk spans %d bytes, want %d", offsets[1]-offsets[0], texSize)
	}
	aniSize := uint32(len(encodeAnimations(f)))
	if uint32(len(data))-offsets[3] != aniSize {
		t.Errorf("animation chunk spans %d bytes, want %d", uint32(len(data))-offsets[3], aniSize)
	}
}

func TestOffsetTable(t *testing.T) {
	tests := []struct {
		version Version
		entries int
		header  uint32
	}{
		{V7, 8, headerSizeV7},
		{V10, 4, headerSizeV10},
		{V11, 4, headerSizeV11},
	}
	for _, tt := range tests {
		t.Run(tt.version.String(), func(t *testing.T) {
			data := mustEncode(t, makeTestFile(tt.version))
			ver, offsets, err := OffsetTable(data)
			if err != nil {
				t.Fatalf("OffsetTable: %v", err)
			}
			if ver != tt.version {
				t.Errorf("version = %s, want %s", ver, tt.version)
			}
			if len(offsets) != tt.entries {
				t.Fatalf("entries = %d, want %d", len(offsets), tt.entries)
			}
			if offsets[0] != tt.header {
				t.Errorf("first offset = %d, want %d", offsets[0], tt.header)
			}
		})
	}

	if _, _, err := OffsetTable([]byte("not an smf file")); err == nil {
		t.Error("expected error for junk input")
	}
}

func TestParse_Truncated(t *testing.T) {
	for _, v := range []Version{V7, V10, V11} {
		t.Run(v.String(), func(t *testing.T) {
			data := mustEncode(t, makeTestFile(v))
			// Cutting anywhere past the magic must produce a clean error,
			// never a panic.
			for _, n := range []int{len(magicV11), 40, 80, len(data) / 2, len(data) - 1} {
				if n >= len(data) {
					continue
				}
				_, err := Parse(data[:n])
				if err == nil {
					t.Errorf("Parse of %d/%d bytes succeeded", n, len(data))
				}
			}
		})
	}
}

func TestParse_BadVertexBufferSize(t *testing.T) {
	data := mustEncode(t, makeTestFile(V10))

	modPos := binary.LittleEndian.Uint32(data[len(magicLegacy)+4+4:])
	// Vertex buffer size sits right after the model count byte.
	binary.LittleEndian.PutUint32(data[modPos+1:], 10)

	_, err := Parse(data)
	if !errors.Is(err, ErrInvalidVertexData) {
		t.Errorf("err = %v, want ErrInvalidVertexData", err)
	}
}

func TestEncode_CountLimits(t *testing.T) {
	f := makeTestFile(V10)
	f.Nodes = make([]Node, 300)
	if _, err := f.Encode(); !errors.Is(err, ErrChunkOverflow) {
		t.Errorf("v10 with 300 nodes: err = %v, want ErrChunkOverflow", err)
	}

	f.Version = V11
	f.Animations = nil
	if _, err := f.Encode(); err != nil {
		t.Errorf("v11 with 300 nodes: %v (wide count field should accept this)", err)
	}

	f7 := makeTestFile(V7)
	f7.Nodes[1].Parent = 300
	if _, err := f7.Encode(); !errors.Is(err, ErrChunkOverflow) {
		t.Errorf("v7 with wide parent: err = %v, want ErrChunkOverflow", err)
	}
}

func TestQuantizeTangent(t *testing.T) {
	tests := []struct {
		c    float32
		v    Version
		want uint8
	}{
		{0, V7, 0},
		{1, V7, 255},
		{0.5, V7, 127},
		{-2, V7, 0}, // clamped
		{-1, V10, 0},
		{0, V10, 127},
		{1, V10, 254},
		{2, V11, 254}, // clamped
	}
	for _, tt := range tests {
		if got := QuantizeTangent(tt.c, tt.v); got != tt.want {
			t.Errorf("QuantizeTangent(%v, %s) = %d, want %d", tt.c, tt.v, got, tt.want)
		}
	}
}

func TestDequantizeTangent_Inverse(t *testing.T) {
	for _, v := range []Version{V7, V10} {
		for _, c := range []float32{0, 0.25, 0.5, 0.75, 1} {
			got := DequantizeTangent(QuantizeTangent(c, v), v)
			if diff := got - c; diff > 0.01 || diff < -0.01 {
				t.Errorf("%s: dequantize(quantize(%v)) = %v", v, c, got)
			}
		}
	}
}

func TestFindTexture(t *testing.T) {
	f := makeTestFile(V11)
	if tex := f.FindTexture("skin"); tex == nil || tex.Width != 2 {
		t.Errorf("FindTexture(skin) = %+v", tex)
	}
	if tex := f.FindTexture("missing"); tex != nil {
		t.Errorf("FindTexture(missing) = %+v, want nil", tex)
	}
}
