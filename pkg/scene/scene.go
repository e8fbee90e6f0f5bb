// Package scene holds the in-memory model the SMF pipelines consume and
// produce: triangulated meshes with per-loop attributes, materials with an
// optional base-color image, and armatures with rest-pose bones and
// keyframed actions. It plays the role the authoring tool's scene graph
// plays for the original exporter, with everything pre-resolved to plain
// data.
package scene

import "github.com/go-gl/mathgl/mgl32"

// GroupWeight is a single vertex-group assignment on a vertex.
type GroupWeight struct {
	Group  int     // index into Mesh.VertexGroups
	Weight float32
}

// Vertex is a mesh vertex: a position plus its skin group assignments.
// Normals, UVs and tangents live on loops, not vertices.
type Vertex struct {
	Position mgl32.Vec3
	Groups   []GroupWeight
}

// Loop is one corner of a triangle with its per-corner attributes.
type Loop struct {
	VertexIndex int
	Normal      mgl32.Vec3
	UV          mgl32.Vec2
	Tangent     mgl32.Vec3
}

// Triangle is a triangulated face. MaterialIndex selects the material slot.
type Triangle struct {
	Loops         [3]Loop
	MaterialIndex int
}

// Mesh is a triangulated mesh with tangents already computed. Triangulation
// and tangent generation are preconditions, not something this package does.
type Mesh struct {
	Name         string
	Vertices     []Vertex
	Triangles    []Triangle
	VertexGroups []string // group index -> name, matched against bone names
	Materials    []*Material
}

// Material optionally resolves to a single base-color image.
type Material struct {
	Name  string
	Image *Image
}

// Image is a raw RGBA8 pixel buffer. Pixels may be nil for an image whose
// data was never loaded; exporters treat that as "no texture" with a warning.
type Image struct {
	Name   string
	Width  int
	Height int
	Pixels []byte // len == Width*Height*4 when loaded
}

// HasData reports whether the image carries a pixel buffer of the expected
// size.
func (img *Image) HasData() bool {
	return img != nil && len(img.Pixels) == img.Width*img.Height*4
}

// TextureResolver is the narrow capability interface standing in for the
// authoring tool's shader node graph: given a material, return zero or one
// base-color image.
type TextureResolver interface {
	ResolveBaseColorImage(m *Material) (*Image, bool)
}

// DirectResolver resolves a material to the image attached to it, if any.
type DirectResolver struct{}

// ResolveBaseColorImage implements TextureResolver.
func (DirectResolver) ResolveBaseColorImage(m *Material) (*Image, bool) {
	if m == nil || m.Image == nil {
		return nil, false
	}
	return m.Image, true
}

// Bone is a single bone of an armature in its rest pose. All transforms are
// in armature space.
type Bone struct {
	Name      string
	Parent    *Bone
	Connected bool // head coincides with the parent's tail
	Matrix    mgl32.Mat4
	Head      mgl32.Vec3
	Tail      mgl32.Vec3
}

// Length returns the rest-pose bone length.
func (b *Bone) Length() float32 {
	return b.Tail.Sub(b.Head).Len()
}

// Armature is an ordered bone list. Order is parents-before-children, the
// way authoring tools hand it out.
type Armature struct {
	Name  string
	Bones []*Bone
}

// FindBone returns the bone with the given name, or nil.
func (a *Armature) FindBone(name string) *Bone {
	for _, b := range a.Bones {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// Object is a scene object: either a mesh carrier or an armature carrier,
// with a world transform.
type Object struct {
	Name     string
	World    mgl32.Mat4
	Visible  bool
	Mesh     *Mesh
	Armature *Armature
	Anim     *AnimData
}

// Scene is a flat object list, standing in for "the current selection".
type Scene struct {
	Objects []*Object
	FPS     float32 // render frame rate used for play-time computation
}

// MeshObjects returns the objects carrying a mesh, in scene order.
func (s *Scene) MeshObjects() []*Object {
	var out []*Object
	for _, o := range s.Objects {
		if o.Mesh != nil {
			out = append(out, o)
		}
	}
	return out
}

// ArmatureObjects returns the objects carrying an armature, in scene order.
func (s *Scene) ArmatureObjects() []*Object {
	var out []*Object
	for _, o := range s.Objects {
		if o.Armature != nil {
			out = append(out, o)
		}
	}
	return out
}
