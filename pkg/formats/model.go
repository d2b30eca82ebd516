// Package formats reads garment model files (Wavefront OBJ/MTL and glTF/GLB)
// into a format-neutral Model.
package formats

import "errors"

// Shared model errors.
var (
	ErrNoGeometry        = errors.New("model contains no triangles")
	ErrIndexOutOfRange   = errors.New("vertex index out of range")
	ErrUnsupportedFormat = errors.New("unsupported model format")
)

// Resolver fetches a file referenced by a model (an MTL library, a texture
// image, an external buffer) relative to the model's location.
type Resolver func(name string) ([]byte, error)

// Model is a parsed model: a node hierarchy referencing meshes and materials.
type Model struct {
	Name      string
	Materials []Material
	Meshes    []Mesh
	Nodes     []Node
	Roots     []int
}

// Material is the subset of surface properties the configurator edits.
type Material struct {
	Name        string
	BaseColor   [4]float32 // linear RGBA in [0,1]
	Roughness   float32
	Metalness   float32
	TextureName string
	Texture     []byte // encoded image; nil when the material has no map
}

// Mesh is a named list of primitives, one per material.
type Mesh struct {
	Name       string
	Primitives []Primitive
}

// Primitive is a triangle list. Indices is nil for non-indexed geometry;
// UVs is nil when the primitive carries no texture coordinates.
type Primitive struct {
	Positions [][3]float32
	UVs       [][2]float32
	Indices   []uint32
	Material  int // -1 for none
}

// Node places a mesh in the hierarchy. Matrix, when set, overrides
// the translation/rotation/scale triple.
type Node struct {
	Name        string
	Mesh        int // -1 for none
	Translation [3]float32
	Rotation    [4]float32 // quaternion x, y, z, w
	Scale       [3]float32
	Matrix      *[16]float32
	Children    []int
}

// TriangleCount returns the number of triangles across all primitives.
func (m *Model) TriangleCount() int {
	n := 0
	for _, mesh := range m.Meshes {
		for _, p := range mesh.Primitives {
			if p.Indices != nil {
				n += len(p.Indices) / 3
			} else {
				n += len(p.Positions) / 3
			}
		}
	}
	return n
}

func defaultMaterial(name string) Material {
	return Material{Name: name, BaseColor: [4]float32{1, 1, 1, 1}, Roughness: 1}
}

func identityNode(name string, mesh int) Node {
	return Node{Name: name, Mesh: mesh, Rotation: [4]float32{0, 0, 0, 1}, Scale: [3]float32{1, 1, 1}}
}
