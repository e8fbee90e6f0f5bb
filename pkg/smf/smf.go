// Package smf implements the SnidrsModelFormat binary container: an
// offset-indexed file holding textures, vertex buffers, a skeletal rig of
// dual-quaternion nodes and sampled animations. Three format revisions are
// supported (v7, v10, v11) through one version-parameterized codec.
package smf

import (
	"errors"
	"fmt"

	"github.com/Faultbox/smf-go/pkg/dq"
)

// SMF format errors.
var (
	ErrInvalidMagic       = errors.New("invalid SMF magic")
	ErrUnsupportedVersion = errors.New("unsupported SMF version")
	ErrTruncatedData      = errors.New("truncated SMF data")
	ErrInvalidCount       = errors.New("implausible SMF element count")
	ErrInvalidVertexData  = errors.New("invalid SMF vertex buffer size")
	ErrChunkOverflow      = errors.New("SMF element count exceeds format limit")
)

// Version identifies an SMF format revision.
type Version int

const (
	// V7 is the legacy revision: "SnidrsModelFormat" magic, eight-entry
	// offset table, material/scene-node/collision/selection chunks.
	V7 Version = 7
	// V10 drops everything but textures, models, rig and animations and
	// adds locked/IK node fields plus animation interpolation hints.
	V10 Version = 10
	// V11 changes the magic and widens the rig node count to uint32.
	V11 Version = 11
)

// String returns a human-readable version name.
func (v Version) String() string {
	switch v {
	case V7, V10, V11:
		return fmt.Sprintf("v%d", int(v))
	default:
		return fmt.Sprintf("Unknown(%d)", int(v))
	}
}

// Supported returns true for a version this codec reads and writes.
func (v Version) Supported() bool {
	return v == V7 || v == V10 || v == V11
}

// Magic strings. The legacy magic is shared by v7 and v10, disambiguated by
// the float version tag that follows; v11 replaced it outright.
const (
	magicLegacy = "SnidrsModelFormat\x00"         // 18 bytes
	magicV11    = "SMF_v11_by_Snidr_and_Bart\x00" // 26 bytes
)

// Header sizes per version. The offset table counts from the start of the
// file, so the first chunk begins right after the header.
const (
	headerSizeV7  = 79 // magic + f32 tag + 8 offsets + 2 reserved + count + center + size
	headerSizeV10 = 42 // magic + f32 tag + 4 offsets + reserved
	headerSizeV11 = 46 // magic + 4 offsets + reserved
)

// Plausibility caps for decoded counts. Files are small game assets; counts
// beyond these indicate corrupt data rather than a big model.
const (
	maxNodes     = 1 << 16
	maxFrames    = 1 << 20
	maxCollision = 1 << 26
)

// Texture is an embedded RGBA8 image.
type Texture struct {
	Name   string
	Width  uint16
	Height uint16
	Pixels []byte // Width*Height*4 bytes, row-major RGBA
}

// Material is a v7-only shading description. Params are written only for
// types above 0.
type Material struct {
	Name   string
	Type   uint8    // 0 = shadeless, 2 = per-fragment
	Params [8]uint8 // specular reflectance/damping, cel steps, rim, maps, outline
}

// Model is one vertex buffer with its material and texture bindings.
type Model struct {
	Vertices     []Vertex
	MaterialName string
	TextureName  string
	Visible      bool
}

// Node is one rig node. Parent indexes into the node array; Locked and
// IKAxis exist in v10+ only and are dropped when encoding v7.
type Node struct {
	Transform dq.DQ
	Parent    uint32
	Connected bool
	Locked    bool
	IKAxis    [3]float32
}

// Frame is one sampled animation frame: a time normalized to [0, 1] and one
// transform per rig node, in node order.
type Frame struct {
	Time       float32
	Transforms []dq.DQ
}

// Animation is a named sampled animation.
type Animation struct {
	Name             string
	Loop             bool
	PlayTimeMS       float32
	Interpolation    uint8 // 0 keyframe, 1 linear, 2 quadratic (v10+)
	SampleMultiplier uint8 // opaque playback hint (v10+)
	Frames           []Frame
}

// File is a fully decoded SMF file.
type File struct {
	Version    Version
	Textures   []Texture
	Materials  []Material // v7 only
	Models     []Model
	Nodes      []Node
	Animations []Animation

	// v7 header extras
	Center [3]float32
	Size   float32

	// v7 scene-node chunk ambient color
	Ambient [3]uint8

	// v7 collision buffer, kept as raw bytes
	Collision []byte
}

// FindTexture returns the embedded texture with the given name, or nil.
func (f *File) FindTexture(name string) *Texture {
	for i := range f.Textures {
		if f.Textures[i].Name == name {
			return &f.Textures[i]
		}
	}
	return nil
}

// FindMaterial returns the v7 material with the given name, or nil.
func (f *File) FindMaterial(name string) *Material {
	for i := range f.Materials {
		if f.Materials[i].Name == name {
			return &f.Materials[i]
		}
	}
	return nil
}
