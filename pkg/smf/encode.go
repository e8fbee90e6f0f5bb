package smf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/Faultbox/smf-go/pkg/dq"
)

// writer appends fixed-width little-endian values to a chunk buffer.
type writer struct {
	buf bytes.Buffer
}

func (w *writer) u8(v uint8) { w.buf.WriteByte(v) }

func (w *writer) bytes(b []byte) { w.buf.Write(b) }

func (w *writer) u16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w *writer) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *writer) f32(v float32) { w.u32(math.Float32bits(v)) }

// str writes the raw bytes plus the zero terminator.
func (w *writer) str(s string) {
	w.buf.WriteString(s)
	w.buf.WriteByte(0)
}

func (w *writer) dq(d dq.DQ) {
	for _, v := range d.Floats() {
		w.f32(v)
	}
}

func (w *writer) flag(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

// Encode serializes the file. Chunks are built into separate buffers first;
// the header's offset table is computed from their sizes and written last.
func (f *File) Encode() ([]byte, error) {
	if !f.Version.Supported() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedVersion, f.Version)
	}
	if err := f.checkLimits(); err != nil {
		return nil, err
	}

	tex := encodeTextures(f)
	mod := encodeModels(f)
	rig := encodeRig(f)
	ani := encodeAnimations(f)

	if f.Version == V7 {
		return assembleV7(f, tex, mod, rig, ani)
	}
	return assembleModern(f, tex, mod, rig, ani)
}

// EncodeFile serializes the file and writes it to disk.
func (f *File) EncodeFile(path string) error {
	data, err := f.Encode()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// checkLimits rejects element counts that do not fit the version's count
// field widths.
func (f *File) checkLimits() error {
	if len(f.Textures) > 255 {
		return fmt.Errorf("%w: %d textures", ErrChunkOverflow, len(f.Textures))
	}
	if len(f.Materials) > 255 {
		return fmt.Errorf("%w: %d materials", ErrChunkOverflow, len(f.Materials))
	}
	if len(f.Models) > 255 {
		return fmt.Errorf("%w: %d models", ErrChunkOverflow, len(f.Models))
	}
	if len(f.Animations) > 255 {
		return fmt.Errorf("%w: %d animations", ErrChunkOverflow, len(f.Animations))
	}
	if f.Version != V11 && len(f.Nodes) > 255 {
		return fmt.Errorf("%w: %d rig nodes in %s", ErrChunkOverflow, len(f.Nodes), f.Version)
	}
	if f.Version == V7 {
		for i, n := range f.Nodes {
			if n.Parent > 255 {
				return fmt.Errorf("%w: node %d parent %d in v7", ErrChunkOverflow, i, n.Parent)
			}
		}
	}
	// The decoder derives frame layout from the node count, so every frame
	// must carry exactly one transform per node.
	for ai := range f.Animations {
		a := &f.Animations[ai]
		for fi := range a.Frames {
			if len(a.Frames[fi].Transforms) != len(f.Nodes) {
				return fmt.Errorf("smf: animation %q frame %d has %d transforms for %d nodes",
					a.Name, fi, len(a.Frames[fi].Transforms), len(f.Nodes))
			}
		}
	}
	return nil
}

func encodeTextures(f *File) []byte {
	var w writer
	w.u8(uint8(len(f.Textures)))
	for i := range f.Textures {
		t := &f.Textures[i]
		w.str(t.Name)
		w.u16(t.Width)
		w.u16(t.Height)
		w.bytes(t.Pixels)
	}
	return w.buf.Bytes()
}

func encodeMaterials(f *File) []byte {
	var w writer
	w.u8(uint8(len(f.Materials)))
	for i := range f.Materials {
		m := &f.Materials[i]
		w.str(m.Name)
		w.u8(m.Type)
		if m.Type > 0 {
			w.bytes(m.Params[:])
		}
	}
	return w.buf.Bytes()
}

func encodeModels(f *File) []byte {
	var w writer
	// v7 keeps the model count in the header
	if f.Version != V7 {
		w.u8(uint8(len(f.Models)))
	}
	for i := range f.Models {
		m := &f.Models[i]
		w.u32(uint32(len(m.Vertices) * VertexSize))
		for j := range m.Vertices {
			m.Vertices[j].encode(&w)
		}
		w.str(m.MaterialName)
		w.str(m.TextureName)
		w.flag(m.Visible)
		if f.Version == V7 {
			w.u32(0) // reserved skinning info
			w.u32(0)
		}
	}
	return w.buf.Bytes()
}

func encodeRig(f *File) []byte {
	var w writer
	if f.Version == V11 {
		w.u32(uint32(len(f.Nodes)))
	} else {
		w.u8(uint8(len(f.Nodes)))
	}
	for _, n := range f.Nodes {
		w.dq(n.Transform)
		if f.Version == V7 {
			w.u8(uint8(n.Parent))
			w.flag(n.Connected)
			continue
		}
		w.u32(n.Parent)
		w.flag(n.Connected)
		w.flag(n.Locked)
		w.f32(n.IKAxis[0])
		w.f32(n.IKAxis[1])
		w.f32(n.IKAxis[2])
	}
	return w.buf.Bytes()
}

func encodeAnimations(f *File) []byte {
	var w writer
	w.u8(uint8(len(f.Animations)))
	for i := range f.Animations {
		a := &f.Animations[i]
		w.str(a.Name)
		w.flag(a.Loop)
		w.f32(a.PlayTimeMS)
		if f.Version != V7 {
			w.u8(a.Interpolation)
			w.u8(a.SampleMultiplier)
		}
		w.u32(uint32(len(a.Frames)))
		for j := range a.Frames {
			fr := &a.Frames[j]
			w.f32(fr.Time)
			for _, d := range fr.Transforms {
				w.dq(d)
			}
		}
	}
	return w.buf.Bytes()
}

// assembleV7 lays out the eight-chunk legacy file. The scene-node,
// collision and selection chunks are carried for layout compatibility.
func assembleV7(f *File, tex, mod, rig, ani []byte) ([]byte, error) {
	mat := encodeMaterials(f)

	var nod writer
	nod.u8(0) // scene node types
	nod.u8(0) // scene nodes
	nod.bytes(f.Ambient[:])

	var col writer
	col.u32(uint32(len(f.Collision)))
	col.bytes(f.Collision)

	var sel writer
	sel.u8(0) // saved selections

	chunks := [][]byte{tex, mat, mod, nod.buf.Bytes(), col.buf.Bytes(), rig, ani, sel.buf.Bytes()}

	var w writer
	w.str(magicLegacy[:len(magicLegacy)-1])
	w.f32(float32(f.Version))
	off := uint32(headerSizeV7)
	for _, chunk := range chunks {
		w.u32(off)
		off += uint32(len(chunk))
	}
	w.u32(0) // reserved
	w.u32(0)
	w.u8(uint8(len(f.Models)))
	w.f32(f.Center[0])
	w.f32(f.Center[1])
	w.f32(f.Center[2])
	w.f32(f.Size)

	if w.buf.Len() != headerSizeV7 {
		return nil, fmt.Errorf("smf: v7 header is %d bytes, want %d", w.buf.Len(), headerSizeV7)
	}
	for _, chunk := range chunks {
		w.bytes(chunk)
	}
	return w.buf.Bytes(), nil
}

// assembleModern lays out the four-chunk v10/v11 file.
func assembleModern(f *File, tex, mod, rig, ani []byte) ([]byte, error) {
	headerSize := headerSizeV10
	var w writer
	if f.Version == V11 {
		headerSize = headerSizeV11
		w.str(magicV11[:len(magicV11)-1])
	} else {
		w.str(magicLegacy[:len(magicLegacy)-1])
		w.f32(float32(f.Version))
	}

	chunks := [][]byte{tex, mod, rig, ani}
	off := uint32(headerSize)
	for _, chunk := range chunks {
		w.u32(off)
		off += uint32(len(chunk))
	}
	w.u32(0) // reserved

	if w.buf.Len() != headerSize {
		return nil, fmt.Errorf("smf: %s header is %d bytes, want %d", f.Version, w.buf.Len(), headerSize)
	}
	for _, chunk := range chunks {
		w.bytes(chunk)
	}
	return w.buf.Bytes(), nil
}
