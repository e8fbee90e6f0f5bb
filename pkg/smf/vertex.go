package smf

// VertexSize is the byte size of one packed vertex record.
const VertexSize = 44

// Vertex is one 44-byte vertex record. Triangles are three consecutive
// records; there is no index buffer.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	UV       [2]float32
	Tangent  [4]uint8 // quantized tangent, fourth byte unused
	Indices  [4]uint8 // bindmap skin indices
	Weights  [4]uint8 // skin weights, summing to 255 for skinned vertices
}

// QuantizeTangent packs a tangent component to a byte. v7 assumed
// components in [0, 1]; later revisions map [-1, 1] onto the byte range.
func QuantizeTangent(c float32, v Version) uint8 {
	if v == V7 {
		if c < 0 {
			c = 0
		}
		if c > 1 {
			c = 1
		}
		return uint8(c * 255)
	}
	if c < -1 {
		c = -1
	}
	if c > 1 {
		c = 1
	}
	return uint8((c + 1) * 127)
}

// DequantizeTangent is the inverse of QuantizeTangent, up to quantization
// error.
func DequantizeTangent(b uint8, v Version) float32 {
	if v == V7 {
		return float32(b) / 255
	}
	return float32(b)/127 - 1
}

func (vt *Vertex) encode(w *writer) {
	w.f32(vt.Position[0])
	w.f32(vt.Position[1])
	w.f32(vt.Position[2])
	w.f32(vt.Normal[0])
	w.f32(vt.Normal[1])
	w.f32(vt.Normal[2])
	w.f32(vt.UV[0])
	w.f32(vt.UV[1])
	w.bytes(vt.Tangent[:])
	w.bytes(vt.Indices[:])
	w.bytes(vt.Weights[:])
}

func (vt *Vertex) decode(c *cursor) {
	vt.Position[0] = c.f32()
	vt.Position[1] = c.f32()
	vt.Position[2] = c.f32()
	vt.Normal[0] = c.f32()
	vt.Normal[1] = c.f32()
	vt.Normal[2] = c.f32()
	vt.UV[0] = c.f32()
	vt.UV[1] = c.f32()
	c.read(vt.Tangent[:])
	c.read(vt.Indices[:])
	c.read(vt.Weights[:])
}
