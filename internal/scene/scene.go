// Package scene is the in-memory scene graph the configurator edits:
// nodes with transforms, meshes with geometry and materials, and the backdrop.
package scene

import (
	"image/color"

	"github.com/Faultbox/garment-studio/internal/texture"
	"github.com/Faultbox/garment-studio/pkg/math"
)

// Transform is a node's local position, XYZ Euler rotation (radians) and scale.
type Transform struct {
	Position math.Vec3
	Rotation math.Vec3
	Scale    math.Vec3
}

// IdentityTransform returns a transform that leaves points unchanged.
func IdentityTransform() Transform {
	return Transform{Scale: math.Vec3{X: 1, Y: 1, Z: 1}}
}

// Matrix returns translate * rotate * scale.
func (t Transform) Matrix() math.Mat4 {
	return math.Compose(t.Position, t.Rotation, t.Scale)
}

// Group maps a range of the index buffer (or of the vertex list for
// non-indexed geometry) to a material slot.
type Group struct {
	Start    int
	Count    int
	Material int
}

// Geometry is a triangle list. Indices is nil for non-indexed geometry;
// UVs is nil when no texture coordinates were authored.
type Geometry struct {
	Positions []math.Vec3
	UVs       []math.Vec2
	Indices   []uint32
	Groups    []Group
}

// HasUVs reports whether the geometry carries a UV attribute.
func (g *Geometry) HasUVs() bool {
	return len(g.UVs) > 0
}

// IndexCount returns the number of triangle corners.
func (g *Geometry) IndexCount() int {
	if g.Indices != nil {
		return len(g.Indices)
	}
	return len(g.Positions)
}

// Index returns the vertex referenced by corner i. Non-indexed geometry
// uses sequential indices.
func (g *Geometry) Index(i int) uint32 {
	if g.Indices != nil {
		return g.Indices[i]
	}
	return uint32(i)
}

// Ranges returns the index ranges drawn with material slot. Geometry
// without groups draws everything with slot 0.
func (g *Geometry) Ranges(slot int) []Group {
	if len(g.Groups) == 0 {
		if slot != 0 {
			return nil
		}
		return []Group{{Start: 0, Count: g.IndexCount()}}
	}
	var out []Group
	for _, grp := range g.Groups {
		if grp.Material == slot {
			out = append(out, grp)
		}
	}
	return out
}

// Bounds returns the local-space bounding box.
func (g *Geometry) Bounds() math.Box {
	b := math.EmptyBox()
	for _, p := range g.Positions {
		b = b.Extend(p)
	}
	return b
}

// Normals returns smooth per-vertex normals, the normalized sum of the
// face normals around each vertex. Out-of-range corners are skipped.
func (g *Geometry) Normals() []math.Vec3 {
	out := make([]math.Vec3, len(g.Positions))
	n := g.IndexCount()
	for i := 0; i+2 < n; i += 3 {
		a, b, c := g.Index(i), g.Index(i+1), g.Index(i+2)
		if int(a) >= len(out) || int(b) >= len(out) || int(c) >= len(out) {
			continue
		}
		pa, pb, pc := g.Positions[a], g.Positions[b], g.Positions[c]
		face := pb.Sub(pa).Cross(pc.Sub(pa))
		out[a] = out[a].Add(face)
		out[b] = out[b].Add(face)
		out[c] = out[c].Add(face)
	}
	for i := range out {
		out[i] = out[i].Normalize()
	}
	return out
}

// Material holds the surface properties of one material slot.
type Material struct {
	Name      string
	BaseColor color.NRGBA
	Map       *texture.Texture
	Roughness float32
	Metalness float32
}

// SetMap assigns a texture map, releasing the previous one first when it
// is owned. Assigning the current map again is a no-op.
func (m *Material) SetMap(t *texture.Texture) {
	if m.Map == t {
		return
	}
	if m.Map != nil {
		m.Map.Release()
	}
	m.Map = t
}

// ClearOwnedMap drops and releases a synthesized map. Authored maps stay.
func (m *Material) ClearOwnedMap() {
	if m.Map != nil && m.Map.Owned() {
		m.SetMap(nil)
	}
}

// Mesh is renderable geometry with one material per slot.
type Mesh struct {
	Geometry  *Geometry
	Materials []*Material
}

// Node is an element of the scene graph.
type Node struct {
	Name      string
	Transform Transform
	// Local, when set, replaces Transform as the node's local matrix.
	Local    *math.Mat4
	Mesh     *Mesh
	Children []*Node
}

// NewNode creates an empty node with an identity transform.
func NewNode(name string) *Node {
	return &Node{Name: name, Transform: IdentityTransform()}
}

// Add appends child to the node's children.
func (n *Node) Add(child *Node) {
	n.Children = append(n.Children, child)
}

// LocalMatrix returns the node's matrix relative to its parent.
func (n *Node) LocalMatrix() math.Mat4 {
	if n.Local != nil {
		return n.Transform.Matrix().Mul(*n.Local)
	}
	return n.Transform.Matrix()
}

// Traverse visits the subtree depth-first, parents before children,
// passing each node's world matrix. Returning false skips the children.
func (n *Node) Traverse(fn func(node *Node, world math.Mat4) bool) {
	n.traverse(math.Identity(), fn)
}

func (n *Node) traverse(parent math.Mat4, fn func(*Node, math.Mat4) bool) {
	world := parent.Mul(n.LocalMatrix())
	if !fn(n, world) {
		return
	}
	for _, c := range n.Children {
		c.traverse(world, fn)
	}
}

// Meshes returns every mesh node in traversal order.
func (n *Node) Meshes() []*Node {
	var out []*Node
	n.Traverse(func(node *Node, _ math.Mat4) bool {
		if node.Mesh != nil {
			out = append(out, node)
		}
		return true
	})
	return out
}

// Materials returns each distinct material once, in traversal order.
func (n *Node) Materials() []*Material {
	seen := make(map[*Material]bool)
	var out []*Material
	for _, node := range n.Meshes() {
		for _, m := range node.Mesh.Materials {
			if m != nil && !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out
}

// Bounds returns the world-space bounding box of all mesh geometry.
func (n *Node) Bounds() math.Box {
	box := math.EmptyBox()
	n.Traverse(func(node *Node, world math.Mat4) bool {
		if node.Mesh == nil || node.Mesh.Geometry == nil {
			return true
		}
		for _, p := range node.Mesh.Geometry.Positions {
			box = box.Extend(world.TransformPoint(p))
		}
		return true
	})
	return box
}

// Release frees every owned texture in the subtree.
func (n *Node) Release() {
	for _, m := range n.Materials() {
		m.ClearOwnedMap()
	}
}
