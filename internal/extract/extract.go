// Package extract walks a loaded scene and derives, for every mesh and
// material slot, the surface texture and a rasterized UV wireframe.
package extract

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync/atomic"

	"github.com/fogleman/gg"
	"go.uber.org/zap"

	"github.com/Faultbox/garment-studio/internal/scene"
	"github.com/Faultbox/garment-studio/internal/texture"
	"github.com/Faultbox/garment-studio/pkg/math"
)

// Extraction errors.
var (
	ErrBusy     = errors.New("extraction already in progress")
	ErrNilScene = errors.New("no scene to extract")
	ErrMesh     = errors.New("malformed mesh")
)

// Options controls texture and UV map rasterization.
type Options struct {
	TextureResolution int
	UVMapResolution   int
	ShowGrid          bool
	GridColor         color.NRGBA
	UVLineColor       color.NRGBA
	UVLineWidth       float64
	// TriangleStride draws every Nth triangle of a slot. 1 draws all of them.
	TriangleStride int
	// Background fills the UV map before drawing. Zero leaves it transparent.
	Background color.NRGBA
}

// DefaultOptions returns 512px textures and 1024px UV maps with white 1px lines.
func DefaultOptions() Options {
	return Options{
		TextureResolution: 512,
		UVMapResolution:   1024,
		GridColor:         color.NRGBA{0x44, 0x44, 0x44, 0xff},
		UVLineColor:       color.NRGBA{0xff, 0xff, 0xff, 0xff},
		UVLineWidth:       1,
		TriangleStride:    1,
	}
}

func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.TextureResolution <= 0 {
		o.TextureResolution = d.TextureResolution
	}
	if o.UVMapResolution <= 0 {
		o.UVMapResolution = d.UVMapResolution
	}
	if o.UVLineWidth <= 0 {
		o.UVLineWidth = d.UVLineWidth
	}
	if o.TriangleStride < 1 {
		o.TriangleStride = 1
	}
	return o
}

// Slot identifies one mesh/material pair in traversal order.
type Slot struct {
	Node     string
	Mesh     int // index among mesh nodes
	Material int // material slot on that mesh
	Name     string
}

// ExtractedTexture is the surface image of a slot. Flat is set when the
// texture is a color canvas created by the pass; otherwise it is the
// material's own map, shared with the scene.
type ExtractedTexture struct {
	Slot
	Texture *texture.Texture
	Flat    bool
}

// Point is a position in UV map pixel space.
type Point struct {
	X, Y float64
}

// UVMap is the wireframe of a slot's UV layout.
type UVMap struct {
	Slot
	Image      *image.RGBA
	Resolution int
	Triangles  [][3]Point
}

// Result is the output of one extraction pass.
type Result struct {
	Textures []ExtractedTexture
	UVMaps   []UVMap
	// Err is the last per-mesh failure; Failures counts them.
	Err      error
	Failures int
}

// Release frees the flat color canvases created by the pass.
func (r *Result) Release() {
	if r == nil {
		return
	}
	for _, t := range r.Textures {
		if t.Flat {
			t.Texture.Release()
		}
	}
}

// Extractor runs extraction passes, one at a time.
type Extractor struct {
	opts Options
	log  *zap.Logger
	busy atomic.Bool
}

// New creates an extractor. A nil logger discards output.
func New(opts Options, log *zap.Logger) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{opts: opts.normalized(), log: log}
}

// Options returns the effective options.
func (e *Extractor) Options() Options {
	return e.opts
}

// Extract runs a pass over root. It fails with ErrBusy while another pass
// is running. Malformed meshes are skipped and recorded in Result.Err;
// the source scene is never modified.
func (e *Extractor) Extract(root *scene.Node) (*Result, error) {
	if root == nil {
		return nil, ErrNilScene
	}
	if !e.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer e.busy.Store(false)

	res := &Result{}
	for i, node := range root.Meshes() {
		if err := e.extractMesh(res, node, i); err != nil {
			res.Err = err
			res.Failures++
			e.log.Warn("mesh extraction failed", zap.String("node", node.Name), zap.Error(err))
		}
	}

	e.log.Debug("extraction complete",
		zap.Int("textures", len(res.Textures)),
		zap.Int("uvmaps", len(res.UVMaps)),
		zap.Int("failures", res.Failures))
	return res, nil
}

// extractMesh validates the whole mesh before producing anything so that a
// failing mesh contributes no partial output.
func (e *Extractor) extractMesh(res *Result, node *scene.Node, meshIdx int) error {
	mesh := node.Mesh
	if err := validate(mesh); err != nil {
		return fmt.Errorf("%s: %w", node.Name, err)
	}

	for slot, mat := range mesh.Materials {
		s := Slot{Node: node.Name, Mesh: meshIdx, Material: slot, Name: mat.Name}
		res.Textures = append(res.Textures, e.surface(s, mat))

		if mesh.Geometry.HasUVs() {
			res.UVMaps = append(res.UVMaps, e.uvMap(s, mesh.Geometry))
		}
	}
	return nil
}

func validate(mesh *scene.Mesh) error {
	g := mesh.Geometry
	if g == nil || len(g.Positions) == 0 {
		return fmt.Errorf("%w: missing geometry", ErrMesh)
	}
	if len(mesh.Materials) == 0 {
		return fmt.Errorf("%w: no materials", ErrMesh)
	}
	for i, m := range mesh.Materials {
		if m == nil {
			return fmt.Errorf("%w: material slot %d is empty", ErrMesh, i)
		}
	}
	if g.HasUVs() && len(g.UVs) != len(g.Positions) {
		return fmt.Errorf("%w: %d UVs for %d vertices", ErrMesh, len(g.UVs), len(g.Positions))
	}
	if g.IndexCount()%3 != 0 {
		return fmt.Errorf("%w: %d indices is not a triangle list", ErrMesh, g.IndexCount())
	}
	for _, idx := range g.Indices {
		if int(idx) >= len(g.Positions) {
			return fmt.Errorf("%w: index %d out of range (%d vertices)", ErrMesh, idx, len(g.Positions))
		}
	}
	for _, grp := range g.Groups {
		if grp.Start < 0 || grp.Count < 0 || grp.Start+grp.Count > g.IndexCount() {
			return fmt.Errorf("%w: group [%d,+%d) exceeds %d indices", ErrMesh, grp.Start, grp.Count, g.IndexCount())
		}
	}
	return nil
}

// surface returns the material's map, or a flat canvas of its base color.
func (e *Extractor) surface(s Slot, mat *scene.Material) ExtractedTexture {
	if mat.Map != nil && !mat.Map.Released() {
		return ExtractedTexture{Slot: s, Texture: mat.Map}
	}
	tex := texture.NewSolid(s.Name, e.opts.TextureResolution, mat.BaseColor)
	tex.WrapS, tex.WrapT = texture.WrapRepeat, texture.WrapRepeat
	return ExtractedTexture{Slot: s, Texture: tex, Flat: true}
}

// uvMap strokes every sampled triangle of the slot as a closed outline.
func (e *Extractor) uvMap(s Slot, g *scene.Geometry) UVMap {
	res := e.opts.UVMapResolution
	dc := gg.NewContext(res, res)

	if e.opts.Background.A > 0 {
		dc.SetColor(e.opts.Background)
		dc.Clear()
	}
	if e.opts.ShowGrid {
		drawGrid(dc, res, e.opts.GridColor)
	}

	out := UVMap{Slot: s, Resolution: res}
	for _, grp := range g.Ranges(s.Material) {
		tris := grp.Count / 3
		for t := 0; t < tris; t += e.opts.TriangleStride {
			var tri [3]Point
			for c := 0; c < 3; c++ {
				tri[c] = pixel(g.UVs[g.Index(grp.Start+t*3+c)], res)
			}
			out.Triangles = append(out.Triangles, tri)

			dc.MoveTo(tri[0].X, tri[0].Y)
			dc.LineTo(tri[1].X, tri[1].Y)
			dc.LineTo(tri[2].X, tri[2].Y)
			dc.ClosePath()
		}
	}

	dc.SetColor(e.opts.UVLineColor)
	dc.SetLineWidth(e.opts.UVLineWidth)
	dc.Stroke()

	out.Image = texture.ToRGBA(dc.Image())
	return out
}

// drawGrid draws 8 divisions along each axis.
func drawGrid(dc *gg.Context, res int, c color.NRGBA) {
	step := float64(res) / 8
	for i := 0; i <= 8; i++ {
		p := float64(i) * step
		dc.DrawLine(p, 0, p, float64(res))
		dc.DrawLine(0, p, float64(res), p)
	}
	dc.SetColor(c)
	dc.SetLineWidth(1)
	dc.Stroke()
}

func pixel(uv math.Vec2, res int) Point {
	x, y := uv.Pixel(res)
	return Point{X: x, Y: y}
}
