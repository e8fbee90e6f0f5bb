package smf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/Faultbox/smf-go/pkg/dq"
)

// cursor reads fixed-width little-endian values out of a byte slice with
// sticky error handling: after the first out-of-bounds read every further
// read returns zero values and the error is reported once at the end.
type cursor struct {
	data []byte
	pos  int
	err  error
}

func (c *cursor) fail() {
	if c.err == nil {
		c.err = ErrTruncatedData
	}
}

func (c *cursor) seek(off uint32) {
	if int64(off) > int64(len(c.data)) {
		c.fail()
		return
	}
	c.pos = int(off)
}

func (c *cursor) take(n int) []byte {
	if c.err != nil || n < 0 || c.pos+n > len(c.data) {
		c.fail()
		return nil
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b
}

func (c *cursor) read(dst []byte) {
	b := c.take(len(dst))
	if b != nil {
		copy(dst, b)
	}
}

func (c *cursor) u8() uint8 {
	b := c.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (c *cursor) u16() uint16 {
	b := c.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (c *cursor) u32() uint32 {
	b := c.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (c *cursor) f32() float32 {
	return math.Float32frombits(c.u32())
}

// str scans forward to the next zero byte. SMF strings carry no length
// prefix.
func (c *cursor) str() string {
	if c.err != nil {
		return ""
	}
	end := bytes.IndexByte(c.data[c.pos:], 0)
	if end < 0 {
		c.fail()
		return ""
	}
	s := string(c.data[c.pos : c.pos+end])
	c.pos += end + 1
	return s
}

func (c *cursor) dq() (d [8]float32) {
	for i := range d {
		d[i] = c.f32()
	}
	return d
}

// DetectVersion identifies the format revision from the file header without
// decoding any chunk.
func DetectVersion(data []byte) (Version, error) {
	if bytes.HasPrefix(data, []byte(magicV11)) {
		return V11, nil
	}
	if !bytes.HasPrefix(data, []byte(magicLegacy)) {
		return 0, ErrInvalidMagic
	}
	if len(data) < len(magicLegacy)+4 {
		return 0, ErrTruncatedData
	}
	tag := math.Float32frombits(binary.LittleEndian.Uint32(data[len(magicLegacy):]))
	switch int(tag) {
	case 7:
		return V7, nil
	case 10:
		return V10, nil
	default:
		return 0, fmt.Errorf("%w: version tag %g", ErrUnsupportedVersion, tag)
	}
}

// OffsetTable reads the header's chunk offsets without decoding any chunk:
// eight entries for v7 (textures, materials, models, scene nodes, collision,
// rig, animations, selections), four for v10/v11 (textures, models, rig,
// animations).
func OffsetTable(data []byte) (Version, []uint32, error) {
	ver, err := DetectVersion(data)
	if err != nil {
		return 0, nil, err
	}

	c := &cursor{data: data}
	entries := 4
	switch ver {
	case V7:
		entries = 8
		c.seek(uint32(len(magicLegacy) + 4))
	case V10:
		c.seek(uint32(len(magicLegacy) + 4))
	default:
		c.seek(uint32(len(magicV11)))
	}

	offsets := make([]uint32, entries)
	for i := range offsets {
		offsets[i] = c.u32()
	}
	if c.err != nil {
		return 0, nil, c.err
	}
	return ver, offsets, nil
}

// Parse decodes SMF data from a byte slice.
func Parse(data []byte) (*File, error) {
	ver, err := DetectVersion(data)
	if err != nil {
		return nil, err
	}

	f := &File{Version: ver}
	c := &cursor{data: data}

	if ver == V7 {
		err = parseV7(c, f)
	} else {
		err = parseModern(c, f)
	}
	if err != nil {
		return nil, err
	}
	if c.err != nil {
		return nil, c.err
	}
	return f, nil
}

// ParseFile reads and decodes an SMF file from disk.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return f, nil
}

// parseV7 decodes the legacy layout: eight chunk offsets, model count and
// bounds in the header, DQ rig nodes with byte-wide parent indices.
func parseV7(c *cursor, f *File) error {
	c.seek(uint32(len(magicLegacy) + 4))

	texPos := c.u32()
	matPos := c.u32()
	modPos := c.u32()
	nodPos := c.u32()
	colPos := c.u32()
	rigPos := c.u32()
	aniPos := c.u32()
	c.u32() // selection offset, chunk always empty
	c.u32() // reserved
	c.u32() // reserved

	modelCount := c.u8()
	for i := range f.Center {
		f.Center[i] = c.f32()
	}
	f.Size = c.f32()
	if c.err != nil {
		return c.err
	}

	// Textures
	c.seek(texPos)
	if err := parseTextures(c, f); err != nil {
		return err
	}

	// Materials
	c.seek(matPos)
	matCount := int(c.u8())
	f.Materials = make([]Material, 0, matCount)
	for i := 0; i < matCount && c.err == nil; i++ {
		var m Material
		m.Name = c.str()
		m.Type = c.u8()
		if m.Type > 0 {
			c.read(m.Params[:])
		}
		f.Materials = append(f.Materials, m)
	}

	// Models; the count lives in the header, not the chunk
	c.seek(modPos)
	if err := parseModels(c, f, int(modelCount), true); err != nil {
		return err
	}

	// Scene nodes: type list then node list, then ambient color. No writer
	// ever produced node entries, so their payload layout is undefined; a
	// nonzero count means the ambient bytes cannot be located.
	c.seek(nodPos)
	typeCount := int(c.u8())
	for i := 0; i < typeCount && c.err == nil; i++ {
		c.str()
		c.f32()
	}
	if c.u8() == 0 {
		c.read(f.Ambient[:])
	}

	// Collision buffer, raw
	c.seek(colPos)
	colSize := c.u32()
	if colSize > maxCollision {
		return fmt.Errorf("%w: collision buffer %d bytes", ErrInvalidCount, colSize)
	}
	if colSize > 0 {
		f.Collision = append([]byte(nil), c.take(int(colSize))...)
	}

	// Rig
	c.seek(rigPos)
	nodeCount := int(c.u8())
	f.Nodes = make([]Node, 0, nodeCount)
	for i := 0; i < nodeCount && c.err == nil; i++ {
		var n Node
		n.Transform = dq.FromFloats(c.dq())
		n.Parent = uint32(c.u8())
		n.Connected = c.u8() != 0
		f.Nodes = append(f.Nodes, n)
	}

	// Animations
	c.seek(aniPos)
	return parseAnimations(c, f)
}

// parseModern decodes the v10/v11 layout: four chunk offsets, a model count
// byte at the start of the model chunk, full rig node records.
func parseModern(c *cursor, f *File) error {
	if f.Version == V11 {
		c.seek(uint32(len(magicV11)))
	} else {
		c.seek(uint32(len(magicLegacy) + 4))
	}

	texPos := c.u32()
	modPos := c.u32()
	rigPos := c.u32()
	aniPos := c.u32()
	c.u32() // reserved
	if c.err != nil {
		return c.err
	}

	c.seek(texPos)
	if err := parseTextures(c, f); err != nil {
		return err
	}

	c.seek(modPos)
	modelCount := int(c.u8())
	if err := parseModels(c, f, modelCount, false); err != nil {
		return err
	}

	c.seek(rigPos)
	var nodeCount int
	if f.Version == V11 {
		nodeCount = int(c.u32())
	} else {
		nodeCount = int(c.u8())
	}
	if nodeCount > maxNodes {
		return fmt.Errorf("%w: %d rig nodes", ErrInvalidCount, nodeCount)
	}
	f.Nodes = make([]Node, 0, nodeCount)
	for i := 0; i < nodeCount && c.err == nil; i++ {
		var n Node
		n.Transform = dq.FromFloats(c.dq())
		n.Parent = c.u32()
		n.Connected = c.u8() != 0
		n.Locked = c.u8() != 0
		for j := range n.IKAxis {
			n.IKAxis[j] = c.f32()
		}
		f.Nodes = append(f.Nodes, n)
	}

	c.seek(aniPos)
	return parseAnimations(c, f)
}

func parseTextures(c *cursor, f *File) error {
	count := int(c.u8())
	f.Textures = make([]Texture, 0, count)
	for i := 0; i < count && c.err == nil; i++ {
		var t Texture
		t.Name = c.str()
		t.Width = c.u16()
		t.Height = c.u16()
		size := int(t.Width) * int(t.Height) * 4
		t.Pixels = append([]byte(nil), c.take(size)...)
		f.Textures = append(f.Textures, t)
	}
	return c.err
}

func parseModels(c *cursor, f *File, count int, legacy bool) error {
	f.Models = make([]Model, 0, count)
	for i := 0; i < count && c.err == nil; i++ {
		var m Model
		byteSize := c.u32()
		if byteSize%VertexSize != 0 {
			return fmt.Errorf("%w: model %d buffer is %d bytes", ErrInvalidVertexData, i, byteSize)
		}
		vertCount := int(byteSize) / VertexSize
		if c.pos+int(byteSize) > len(c.data) {
			return ErrTruncatedData
		}
		m.Vertices = make([]Vertex, vertCount)
		for j := range m.Vertices {
			m.Vertices[j].decode(c)
		}
		m.MaterialName = c.str()
		m.TextureName = c.str()
		m.Visible = c.u8() != 0
		if legacy {
			c.u32() // reserved skinning info
			c.u32()
		}
		f.Models = append(f.Models, m)
	}
	return c.err
}

func parseAnimations(c *cursor, f *File) error {
	count := int(c.u8())
	nodeCount := len(f.Nodes)
	modern := f.Version != V7

	f.Animations = make([]Animation, 0, count)
	for i := 0; i < count && c.err == nil; i++ {
		var a Animation
		a.Name = c.str()
		a.Loop = c.u8() != 0
		a.PlayTimeMS = c.f32()
		if modern {
			a.Interpolation = c.u8()
			a.SampleMultiplier = c.u8()
		}
		frameCount := int(c.u32())
		if frameCount > maxFrames {
			return fmt.Errorf("%w: animation %q has %d frames", ErrInvalidCount, a.Name, frameCount)
		}
		a.Frames = make([]Frame, 0, frameCount)
		for j := 0; j < frameCount && c.err == nil; j++ {
			frame := Frame{Time: c.f32()}
			frame.Transforms = make([]dq.DQ, 0, nodeCount)
			for k := 0; k < nodeCount && c.err == nil; k++ {
				frame.Transforms = append(frame.Transforms, dq.FromFloats(c.dq()))
			}
			a.Frames = append(a.Frames, frame)
		}
		f.Animations = append(f.Animations, a)
	}
	return c.err
}
