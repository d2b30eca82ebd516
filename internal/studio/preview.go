package studio

import (
	"image"
	"image/color"
	gomath "math"
	"sort"

	"github.com/fogleman/gg"

	"github.com/Faultbox/garment-studio/internal/overlay"
	"github.com/Faultbox/garment-studio/internal/scene"
	"github.com/Faultbox/garment-studio/pkg/math"
)

// Default preview size.
const (
	DefaultPreviewWidth  = 1280
	DefaultPreviewHeight = 960
)

// light is the key light direction in world space.
var light = math.Vec3{X: 0.3, Y: 0.6, Z: 1}.Normalize()

// Preview is a flat-shaded software renderer used when no GPU frame source
// is attached. Triangles are depth sorted and filled with the material's
// base color modulated by its map at the triangle's UV centroid.
type Preview struct {
	Width, Height int
}

// NewPreview creates a preview renderer; non-positive sizes use defaults.
func NewPreview(w, h int) *Preview {
	if w <= 0 {
		w = DefaultPreviewWidth
	}
	if h <= 0 {
		h = DefaultPreviewHeight
	}
	return &Preview{Width: w, Height: h}
}

type facet struct {
	pts   [3]math.Vec3 // screen x, y and ndc depth
	depth float32
	col   color.NRGBA
}

// Render draws v into a new image.
func (p *Preview) Render(v View) *image.RGBA {
	dc := gg.NewContext(p.Width, p.Height)
	p.drawBackground(dc, v.Background)

	if v.Root != nil && v.Camera != nil {
		aspect := float32(p.Width) / float32(p.Height)
		vp := v.Camera.ProjectionMatrix(aspect).Mul(v.Camera.ViewMatrix())
		p.drawModel(dc, vp, v.Root)
		p.drawBillboards(dc, vp, v)
	}

	if img, ok := dc.Image().(*image.RGBA); ok {
		return img
	}
	return nil
}

func (p *Preview) drawBackground(dc *gg.Context, bg scene.Background) {
	dc.SetColor(bg.Color)
	dc.Clear()
	if bg.Type != scene.BackgroundImage || bg.Image == nil || bg.Image.Image == nil {
		return
	}
	// cover: scale to fill, centered
	w, h := bg.Image.Size()
	s := gomath.Max(float64(p.Width)/float64(w), float64(p.Height)/float64(h))
	dc.Push()
	dc.Translate(float64(p.Width)/2, float64(p.Height)/2)
	dc.Scale(s, s)
	dc.DrawImageAnchored(bg.Image.Image, 0, 0, 0.5, 0.5)
	dc.Pop()
}

func (p *Preview) toScreen(ndc math.Vec3) math.Vec3 {
	return math.Vec3{
		X: (ndc.X + 1) / 2 * float32(p.Width),
		Y: (1 - ndc.Y) / 2 * float32(p.Height),
		Z: ndc.Z,
	}
}

func (p *Preview) drawModel(dc *gg.Context, vp math.Mat4, root *scene.Node) {
	var facets []facet
	root.Traverse(func(n *scene.Node, world math.Mat4) bool {
		if n.Mesh == nil || n.Mesh.Geometry == nil {
			return true
		}
		facets = p.collect(facets, vp, world, n.Mesh)
		return true
	})

	sort.SliceStable(facets, func(i, j int) bool { return facets[i].depth > facets[j].depth })
	for _, f := range facets {
		dc.MoveTo(float64(f.pts[0].X), float64(f.pts[0].Y))
		dc.LineTo(float64(f.pts[1].X), float64(f.pts[1].Y))
		dc.LineTo(float64(f.pts[2].X), float64(f.pts[2].Y))
		dc.ClosePath()
		dc.SetColor(f.col)
		dc.Fill()
	}
}

func (p *Preview) collect(out []facet, vp, world math.Mat4, mesh *scene.Mesh) []facet {
	g := mesh.Geometry
	mvp := vp.Mul(world)
	for slot, mat := range mesh.Materials {
		for _, r := range g.Ranges(slot) {
			end := min(r.Start+r.Count, g.IndexCount())
			for i := max(r.Start, 0); i+2 < end; i += 3 {
				ia, ib, ic := g.Index(i), g.Index(i+1), g.Index(i+2)
				if int(ia) >= len(g.Positions) || int(ib) >= len(g.Positions) || int(ic) >= len(g.Positions) {
					continue
				}
				var f facet
				visible := true
				for k, idx := range [3]uint32{ia, ib, ic} {
					ndc, w := mvp.Project(g.Positions[idx])
					if w <= 0 {
						visible = false
						break
					}
					f.pts[k] = p.toScreen(ndc)
					f.depth += ndc.Z / 3
				}
				if !visible {
					continue
				}

				a := world.TransformPoint(g.Positions[ia])
				b := world.TransformPoint(g.Positions[ib])
				c := world.TransformPoint(g.Positions[ic])
				normal := b.Sub(a).Cross(c.Sub(a)).Normalize()
				shade := 0.35 + 0.65*float32(gomath.Abs(float64(normal.Dot(light))))

				base := surfaceColor(mat, g, ia, ib, ic)
				f.col = color.NRGBA{
					R: uint8(float32(base.R) * shade),
					G: uint8(float32(base.G) * shade),
					B: uint8(float32(base.B) * shade),
					A: base.A,
				}
				out = append(out, f)
			}
		}
	}
	return out
}

// surfaceColor samples the material map at the triangle's UV centroid.
func surfaceColor(mat *scene.Material, g *scene.Geometry, ia, ib, ic uint32) color.NRGBA {
	base := mat.BaseColor
	if mat.Map == nil || mat.Map.Image == nil || len(g.UVs) != len(g.Positions) {
		return base
	}
	uv := g.UVs[ia].Add(g.UVs[ib]).Add(g.UVs[ic]).Scale(1.0 / 3)
	w, h := mat.Map.Size()
	x := wrap(float64(uv.X), w)
	y := wrap(float64(1-uv.Y), h)
	t := mat.Map.Image.RGBAAt(x, y)
	return color.NRGBA{
		R: uint8(uint16(base.R) * uint16(t.R) / 255),
		G: uint8(uint16(base.G) * uint16(t.G) / 255),
		B: uint8(uint16(base.B) * uint16(t.B) / 255),
		A: base.A,
	}
}

func wrap(v float64, size int) int {
	v -= gomath.Floor(v)
	i := int(v * float64(size))
	if i >= size {
		i = size - 1
	}
	return i
}

func (p *Preview) drawBillboards(dc *gg.Context, vp math.Mat4, v View) {
	boards := v.Billboards
	if len(boards) == 0 {
		return
	}
	anchor := overlay.Anchor(v.Root.Bounds())
	eye := v.Camera.Position()
	for _, bb := range boards {
		if bb.Texture == nil || bb.Texture.Image == nil {
			continue
		}
		m := bb.WorldMatrix(anchor, eye)
		center, w0 := vp.Project(m.TransformPoint(math.Vec3{}))
		edge, w1 := vp.Project(m.TransformPoint(math.Vec3{X: 0.5}))
		if w0 <= 0 || w1 <= 0 {
			continue
		}
		c := p.toScreen(center)
		e := p.toScreen(edge)
		halfPx := gomath.Hypot(float64(e.X-c.X), float64(e.Y-c.Y))
		tw, _ := bb.Texture.Size()
		if tw == 0 || halfPx == 0 {
			continue
		}
		s := 2 * halfPx / float64(tw)
		dc.Push()
		dc.Translate(float64(c.X), float64(c.Y))
		dc.Scale(s, s)
		dc.DrawImageAnchored(bb.Texture.Image, 0, 0, 0.5, 0.5)
		dc.Pop()
	}
}
