// Package exporter turns an in-memory scene into an SMF file: meshes are
// transformed into SMF's left-handed space and split per material slot, the
// armature becomes the flat rig node array, and actions are sampled into
// per-frame transform arrays.
package exporter

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/Faultbox/smf-go/pkg/anim"
	"github.com/Faultbox/smf-go/pkg/rig"
	"github.com/Faultbox/smf-go/pkg/scene"
	"github.com/Faultbox/smf-go/pkg/smf"
)

// Options configures an export run. Zero values select the defaults: v11,
// four bone influences, scale 1, direct texture resolution.
type Options struct {
	Version          smf.Version
	ExportTextures   bool
	AnimMode         anim.CollectMode
	ExportType       anim.SampleMode
	Subdivisions     int
	SampleMultiplier uint8
	Interpolation    anim.Interpolation
	InvertUV         bool
	MaxInfluences    int
	Scale            float32
	Resolver         scene.TextureResolver
}

func (o Options) withDefaults() Options {
	if o.Version == 0 {
		o.Version = smf.V11
	}
	if o.MaxInfluences == 0 {
		o.MaxInfluences = rig.MaxInfluences
	}
	if o.Scale == 0 {
		o.Scale = 1
	}
	if o.Resolver == nil {
		o.Resolver = scene.DirectResolver{}
	}
	return o
}

// Result carries the non-fatal findings of an export run. Only I/O and
// format errors abort an export; everything else becomes a warning.
type Result struct {
	Warnings []string
}

func (r *Result) warnf(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Export builds an SMF file from the scene.
func Export(sc *scene.Scene, opts Options) (*smf.File, *Result, error) {
	opts = opts.withDefaults()
	if !opts.Version.Supported() {
		return nil, nil, fmt.Errorf("%w: %s", smf.ErrUnsupportedVersion, opts.Version)
	}
	if opts.Scale <= 0 {
		return nil, nil, errors.Errorf("exporter: scale %g is not positive", opts.Scale)
	}

	res := &Result{}
	f := &smf.File{Version: opts.Version}
	scaleMat := mgl32.Scale3D(opts.Scale, opts.Scale, opts.Scale)

	// One armature per file. Extra armatures in the selection are ignored
	// with a warning, matching the single-rig container layout.
	var armObj *scene.Object
	var nodes []rig.Node
	var bindmap rig.Bindmap
	if armObjs := sc.ArmatureObjects(); len(armObjs) > 0 {
		if len(armObjs) > 1 {
			res.warnf("selection has %d armatures, only %q is exported", len(armObjs), armObjs[0].Name)
		}
		armObj = armObjs[0]
		nodes = rig.BuildNodeList(armObj.Armature)
		bindmap = rig.BuildBindmap(nodes)

		rigWorld := scaleMat.Mul4(armObj.World)
		f.Nodes = make([]smf.Node, len(nodes))
		for i, n := range nodes {
			d, err := rig.RestTransform(n, rigWorld)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "rig node %d (%s)", i, n.Bone.Name)
			}
			f.Nodes[i] = smf.Node{
				Transform: d,
				Parent:    uint32(n.Parent),
				Connected: n.Connected,
			}
		}
	}

	g := newGatherer(opts, res)
	for _, obj := range sc.MeshObjects() {
		if err := g.addMesh(f, obj, scaleMat.Mul4(obj.World), bindmap); err != nil {
			return nil, nil, err
		}
	}
	g.finish(f)

	if armObj != nil && armObj.Anim != nil {
		p := scene.NewPoseContext(armObj)
		anims, err := anim.Sample(p, nodes, scaleMat.Mul4(armObj.World), anim.Options{
			Mode:             opts.ExportType,
			Collect:          opts.AnimMode,
			Subdivisions:     opts.Subdivisions,
			Interpolation:    opts.Interpolation,
			SampleMultiplier: opts.SampleMultiplier,
			FPS:              sc.FPS,
		})
		if err != nil {
			return nil, nil, err
		}
		f.Animations = make([]smf.Animation, len(anims))
		for i, a := range anims {
			f.Animations[i] = smf.Animation{
				Name:             a.Name,
				Loop:             a.Loop,
				PlayTimeMS:       a.PlayTimeMS,
				Interpolation:    uint8(a.Interpolation),
				SampleMultiplier: a.SampleMultiplier,
				Frames:           make([]smf.Frame, len(a.Frames)),
			}
			for j, fr := range a.Frames {
				f.Animations[i].Frames[j] = smf.Frame{Time: fr.Time, Transforms: fr.Transforms}
			}
		}
	}

	return f, res, nil
}

// yMirror converts from the source tool's right-handed space into SMF's
// left-handed one.
var yMirror = mgl32.Diag4(mgl32.Vec4{1, -1, 1, 1})

// gatherer accumulates models plus the materials and images they
// reference, in first-use order.
type gatherer struct {
	opts Options
	res  *Result

	matOrder []string
	images   map[string]*scene.Image
	imgOrder []string
}

func newGatherer(opts Options, res *Result) *gatherer {
	return &gatherer{opts: opts, res: res, images: make(map[string]*scene.Image)}
}

// addMesh splits one mesh object into SMF models, one per material slot
// that has at least one face.
func (g *gatherer) addMesh(f *smf.File, obj *scene.Object, world mgl32.Mat4, bindmap rig.Bindmap) error {
	mesh := obj.Mesh
	xform := yMirror.Mul4(world)

	indexMap := bindmap.GroupIndexMap(mesh.VertexGroups)
	skins := rig.ResolveMeshSkin(mesh, indexMap, g.opts.MaxInfluences)

	slots := len(mesh.Materials)
	if slots == 0 {
		slots = 1
	}
	buffers := make([][]smf.Vertex, slots)

	for ti := range mesh.Triangles {
		tri := &mesh.Triangles[ti]
		slot := tri.MaterialIndex
		if slot < 0 || slot >= slots {
			return errors.Errorf("exporter: mesh %q triangle %d uses material slot %d of %d",
				mesh.Name, ti, slot, slots)
		}
		// The Y mirror inverts the winding; emitting loops in reverse
		// restores front faces, with normals negated to match.
		for li := 2; li >= 0; li-- {
			buffers[slot] = append(buffers[slot], g.packVertex(mesh, &tri.Loops[li], xform, skins))
		}
	}

	for slot, verts := range buffers {
		if len(verts) == 0 {
			continue
		}
		var mat *scene.Material
		if slot < len(mesh.Materials) {
			mat = mesh.Materials[slot]
		}
		matName, texName := g.resolveMaterial(mat)
		f.Models = append(f.Models, smf.Model{
			Vertices:     verts,
			MaterialName: matName,
			TextureName:  texName,
			Visible:      obj.Visible,
		})
	}
	return nil
}

func (g *gatherer) packVertex(mesh *scene.Mesh, loop *scene.Loop, xform mgl32.Mat4, skins []rig.SkinBinding) smf.Vertex {
	var v smf.Vertex

	src := mesh.Vertices[loop.VertexIndex]
	pos := xform.Mul4x1(mgl32.Vec4{src.Position[0], src.Position[1], src.Position[2], 1})
	v.Position = [3]float32{pos[0], pos[1], pos[2]}

	n := xform.Mul4x1(mgl32.Vec4{loop.Normal[0], loop.Normal[1], loop.Normal[2], 0}).Vec3().Mul(-1)
	if l := n.Len(); l > 1e-8 {
		n = n.Mul(1 / l)
	}
	v.Normal = [3]float32{n[0], n[1], n[2]}

	uv := loop.UV
	if g.opts.InvertUV {
		uv[1] = 1 - uv[1]
	}
	v.UV = [2]float32{uv[0], uv[1]}

	t := xform.Mul4x1(mgl32.Vec4{loop.Tangent[0], loop.Tangent[1], loop.Tangent[2], 0}).Vec3()
	if l := t.Len(); l > 1e-8 {
		t = t.Mul(1 / l)
	}
	for i := 0; i < 3; i++ {
		v.Tangent[i] = smf.QuantizeTangent(t[i], g.opts.Version)
	}

	skin := skins[loop.VertexIndex]
	v.Indices = skin.Indices
	v.Weights = skin.Weights
	return v
}

// resolveMaterial records the material and its base-color image and
// returns the names the model sub-block stores.
func (g *gatherer) resolveMaterial(mat *scene.Material) (matName, texName string) {
	if mat == nil {
		return "", ""
	}
	matName = mat.Name
	if !seen(g.matOrder, mat.Name) {
		g.matOrder = append(g.matOrder, mat.Name)
	}

	img, ok := g.opts.Resolver.ResolveBaseColorImage(mat)
	if !ok {
		return matName, ""
	}
	texName = img.Name
	if _, dup := g.images[img.Name]; !dup {
		g.images[img.Name] = img
		g.imgOrder = append(g.imgOrder, img.Name)
	}
	return matName, texName
}

// finish writes the gathered textures, the v7 material list and the v7
// model bounds into the file.
func (g *gatherer) finish(f *smf.File) {
	if g.opts.ExportTextures {
		for _, name := range g.imgOrder {
			img := g.images[name]
			if !img.HasData() {
				g.res.warnf("texture %q has no pixel data, skipped", name)
				continue
			}
			if !powerOfTwo(img.Width) || !powerOfTwo(img.Height) {
				g.res.warnf("texture %q is %dx%d, not power-of-two", name, img.Width, img.Height)
			}
			f.Textures = append(f.Textures, smf.Texture{
				Name:   img.Name,
				Width:  uint16(img.Width),
				Height: uint16(img.Height),
				Pixels: img.Pixels,
			})
		}
	}

	if f.Version == smf.V7 {
		for _, name := range g.matOrder {
			f.Materials = append(f.Materials, smf.Material{Name: name})
		}
		f.Center, f.Size = modelBounds(f.Models)
	}
}

func seen(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func powerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// modelBounds computes the bounding box center and the largest extent
// across every exported vertex.
func modelBounds(models []smf.Model) ([3]float32, float32) {
	var min, max [3]float32
	first := true
	for mi := range models {
		for vi := range models[mi].Vertices {
			p := models[mi].Vertices[vi].Position
			if first {
				min, max = p, p
				first = false
				continue
			}
			for i := 0; i < 3; i++ {
				if p[i] < min[i] {
					min[i] = p[i]
				}
				if p[i] > max[i] {
					max[i] = p[i]
				}
			}
		}
	}
	if first {
		return [3]float32{}, 1
	}
	var center [3]float32
	var size float32
	for i := 0; i < 3; i++ {
		center[i] = (min[i] + max[i]) / 2
		if ext := max[i] - min[i]; ext > size {
			size = ext
		}
	}
	if size == 0 {
		size = 1
	}
	return center, size
}
