package formats

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// DecodeGLTF reads a binary GLB or a self-contained glTF document from memory.
// Images referenced by relative URI are fetched through resolve.
func DecodeGLTF(name string, data []byte, resolve Resolver) (*Model, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(bytes.NewReader(data)).Decode(doc); err != nil {
		return nil, fmt.Errorf("decoding glTF: %w", err)
	}
	return FromGLTF(name, doc, resolve)
}

// OpenGLTF reads a glTF or GLB file from disk, following relative URIs.
func OpenGLTF(path string) (*Model, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening glTF %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	return FromGLTF(filepath.Base(path), doc, func(name string) ([]byte, error) {
		return os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
	})
}

// FromGLTF converts a decoded glTF document. Only triangle primitives are kept.
func FromGLTF(name string, doc *gltf.Document, resolve Resolver) (*Model, error) {
	m := &Model{Name: name}

	for i, mat := range doc.Materials {
		m.Materials = append(m.Materials, gltfMaterial(doc, i, mat, resolve))
	}

	for _, mesh := range doc.Meshes {
		out := Mesh{Name: mesh.Name}
		for pi, prim := range mesh.Primitives {
			if prim.Mode != gltf.PrimitiveTriangles {
				continue
			}
			p, err := gltfPrimitive(doc, prim)
			if err != nil {
				return nil, fmt.Errorf("mesh %q primitive %d: %w", mesh.Name, pi, err)
			}
			out.Primitives = append(out.Primitives, p)
		}
		m.Meshes = append(m.Meshes, out)
	}

	for _, n := range doc.Nodes {
		m.Nodes = append(m.Nodes, gltfNode(n))
	}
	m.Roots = gltfRoots(doc)

	if m.TriangleCount() == 0 {
		return nil, ErrNoGeometry
	}
	return m, nil
}

func gltfPrimitive(doc *gltf.Document, prim *gltf.Primitive) (Primitive, error) {
	p := Primitive{Material: -1}
	if prim.Material != nil {
		p.Material = *prim.Material
	}

	pos, ok := prim.Attributes["POSITION"]
	if !ok || pos >= len(doc.Accessors) {
		return p, fmt.Errorf("%w: missing POSITION", ErrNoGeometry)
	}
	positions, err := modeler.ReadPosition(doc, doc.Accessors[pos], nil)
	if err != nil {
		return p, fmt.Errorf("reading positions: %w", err)
	}
	p.Positions = positions

	if uv, ok := prim.Attributes["TEXCOORD_0"]; ok && uv < len(doc.Accessors) {
		uvs, err := modeler.ReadTextureCoord(doc, doc.Accessors[uv], nil)
		if err != nil {
			return p, fmt.Errorf("reading texcoords: %w", err)
		}
		p.UVs = uvs
	}

	if prim.Indices != nil {
		if *prim.Indices >= len(doc.Accessors) {
			return p, ErrIndexOutOfRange
		}
		indices, err := modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
		if err != nil {
			return p, fmt.Errorf("reading indices: %w", err)
		}
		p.Indices = indices
	}
	return p, nil
}

func gltfMaterial(doc *gltf.Document, idx int, mat *gltf.Material, resolve Resolver) Material {
	name := mat.Name
	if name == "" {
		name = fmt.Sprintf("material_%d", idx)
	}
	out := defaultMaterial(name)
	out.Metalness = 1

	pbr := mat.PBRMetallicRoughness
	if pbr == nil {
		return out
	}
	if f := pbr.BaseColorFactor; f != nil {
		out.BaseColor = [4]float32{float32(f[0]), float32(f[1]), float32(f[2]), float32(f[3])}
	}
	if pbr.MetallicFactor != nil {
		out.Metalness = float32(*pbr.MetallicFactor)
	}
	if pbr.RoughnessFactor != nil {
		out.Roughness = float32(*pbr.RoughnessFactor)
	}
	if info := pbr.BaseColorTexture; info != nil && info.Index < len(doc.Textures) {
		if src := doc.Textures[info.Index].Source; src != nil && *src < len(doc.Images) {
			img := doc.Images[*src]
			out.TextureName = img.URI
			if img.Name != "" {
				out.TextureName = img.Name
			}
			out.Texture = gltfImage(doc, img, resolve)
		}
	}
	return out
}

// gltfImage returns the encoded image bytes, or nil when they are unavailable.
func gltfImage(doc *gltf.Document, img *gltf.Image, resolve Resolver) []byte {
	switch {
	case img.BufferView != nil && *img.BufferView < len(doc.BufferViews):
		data, err := modeler.ReadBufferView(doc, doc.BufferViews[*img.BufferView])
		if err == nil {
			return data
		}
	case img.IsEmbeddedResource():
		data, err := img.MarshalData()
		if err == nil {
			return data
		}
	case img.URI != "" && resolve != nil:
		data, err := resolve(img.URI)
		if err == nil {
			return data
		}
	}
	return nil
}

func gltfNode(n *gltf.Node) Node {
	out := identityNode(n.Name, -1)
	if n.Mesh != nil {
		out.Mesh = *n.Mesh
	}
	out.Children = append(out.Children, n.Children...)
	for i := 0; i < 3; i++ {
		out.Translation[i] = float32(n.Translation[i])
	}
	if n.Rotation != [4]float64{} {
		for i := 0; i < 4; i++ {
			out.Rotation[i] = float32(n.Rotation[i])
		}
	}
	if n.Scale != [3]float64{} {
		for i := 0; i < 3; i++ {
			out.Scale[i] = float32(n.Scale[i])
		}
	}
	identity := [16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}
	if n.Matrix != identity && n.Matrix != [16]float64{} {
		var mat [16]float32
		for i := range mat {
			mat[i] = float32(n.Matrix[i])
		}
		out.Matrix = &mat
	}
	return out
}

// gltfRoots returns the root nodes of the default scene, or every node
// without a parent when the document declares no scene.
func gltfRoots(doc *gltf.Document) []int {
	if len(doc.Scenes) > 0 {
		s := 0
		if doc.Scene != nil && *doc.Scene < len(doc.Scenes) {
			s = *doc.Scene
		}
		return append([]int(nil), doc.Scenes[s].Nodes...)
	}

	child := make(map[int]bool)
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			child[c] = true
		}
	}
	var roots []int
	for i := range doc.Nodes {
		if !child[i] {
			roots = append(roots, i)
		}
	}
	return roots
}

// Load picks a reader from the file name extension.
func Load(name string, data []byte, resolve Resolver) (*Model, error) {
	switch ext := filepath.Ext(name); ext {
	case ".obj", ".OBJ":
		return ParseOBJ(name, data, resolve)
	case ".glb", ".gltf", ".GLB", ".GLTF":
		return DecodeGLTF(name, data, resolve)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}
