package scene

import (
	"fmt"
	"image/color"

	"go.uber.org/zap"

	"github.com/Faultbox/garment-studio/internal/texture"
	"github.com/Faultbox/garment-studio/pkg/formats"
	"github.com/Faultbox/garment-studio/pkg/math"
)

// Build converts a parsed model into a scene subtree rooted at a node named
// after the model. Primitives of one mesh are merged into a single geometry
// with one group per primitive. Texture decode failures are logged and the
// material keeps its base color.
func Build(m *formats.Model, log *zap.Logger) (*Node, error) {
	if log == nil {
		log = zap.NewNop()
	}

	b := builder{model: m, log: log, materials: make(map[int]*Material)}
	root := NewNode(m.Name)

	for _, idx := range m.Roots {
		child, err := b.node(idx, 0)
		if err != nil {
			return nil, err
		}
		root.Add(child)
	}
	if len(root.Meshes()) == 0 {
		return nil, formats.ErrNoGeometry
	}
	return root, nil
}

type builder struct {
	model     *formats.Model
	log       *zap.Logger
	materials map[int]*Material
}

// maxDepth guards against cyclic child references.
const maxDepth = 64

func (b *builder) node(idx, depth int) (*Node, error) {
	if idx < 0 || idx >= len(b.model.Nodes) {
		return nil, fmt.Errorf("node %d: %w", idx, formats.ErrIndexOutOfRange)
	}
	if depth > maxDepth {
		return nil, fmt.Errorf("node %d: hierarchy deeper than %d", idx, maxDepth)
	}

	src := b.model.Nodes[idx]
	n := NewNode(src.Name)
	n.Transform = Transform{
		Position: vec3(src.Translation),
		Rotation: math.Quat{X: src.Rotation[0], Y: src.Rotation[1], Z: src.Rotation[2], W: src.Rotation[3]}.Euler(),
		Scale:    vec3(src.Scale),
	}
	if src.Matrix != nil {
		local := math.Mat4(*src.Matrix)
		n.Transform = IdentityTransform()
		n.Local = &local
	}

	if src.Mesh >= 0 && src.Mesh < len(b.model.Meshes) {
		n.Mesh = b.mesh(b.model.Meshes[src.Mesh])
	}

	for _, c := range src.Children {
		child, err := b.node(c, depth+1)
		if err != nil {
			return nil, err
		}
		n.Add(child)
	}
	return n, nil
}

func (b *builder) mesh(src formats.Mesh) *Mesh {
	g := &Geometry{}
	out := &Mesh{Geometry: g}

	indexed := false
	hasUVs := len(src.Primitives) > 0
	for _, p := range src.Primitives {
		indexed = indexed || p.Indices != nil
		hasUVs = hasUVs && len(p.UVs) == len(p.Positions)
	}

	for slot, p := range src.Primitives {
		base := uint32(len(g.Positions))
		start := len(g.Positions)
		if indexed {
			start = len(g.Indices)
		}

		for _, pos := range p.Positions {
			g.Positions = append(g.Positions, vec3(pos))
		}
		if hasUVs {
			for _, uv := range p.UVs {
				g.UVs = append(g.UVs, math.Vec2{X: uv[0], Y: uv[1]})
			}
		}

		count := len(p.Positions)
		if indexed {
			if p.Indices != nil {
				count = len(p.Indices)
				for _, i := range p.Indices {
					g.Indices = append(g.Indices, base+i)
				}
			} else {
				for i := range p.Positions {
					g.Indices = append(g.Indices, base+uint32(i))
				}
			}
		}

		g.Groups = append(g.Groups, Group{Start: start, Count: count, Material: slot})
		out.Materials = append(out.Materials, b.material(p.Material))
	}

	if len(g.Groups) == 1 {
		g.Groups = nil
	}
	return out
}

// material returns the shared scene material for a model material index.
func (b *builder) material(idx int) *Material {
	if m, ok := b.materials[idx]; ok {
		return m
	}

	src := formats.Material{Name: "default", BaseColor: [4]float32{1, 1, 1, 1}, Roughness: 1}
	if idx >= 0 && idx < len(b.model.Materials) {
		src = b.model.Materials[idx]
	}

	m := &Material{
		Name:      src.Name,
		BaseColor: toNRGBA(src.BaseColor),
		Roughness: src.Roughness,
		Metalness: src.Metalness,
	}
	if len(src.Texture) > 0 {
		tex, err := texture.Load(src.TextureName, src.Texture)
		if err != nil {
			b.log.Warn("texture decode failed",
				zap.String("material", src.Name),
				zap.String("texture", src.TextureName),
				zap.Error(err))
		} else {
			tex.WrapS, tex.WrapT = texture.WrapRepeat, texture.WrapRepeat
			m.Map = tex
		}
	}

	b.materials[idx] = m
	return m
}

func vec3(v [3]float32) math.Vec3 {
	return math.Vec3{X: v[0], Y: v[1], Z: v[2]}
}

func toNRGBA(c [4]float32) color.NRGBA {
	ch := func(f float32) uint8 {
		return uint8(max(0, min(1, f))*255 + 0.5)
	}
	return color.NRGBA{R: ch(c[0]), G: ch(c[1]), B: ch(c[2]), A: ch(c[3])}
}
