// Package renderer draws the studio view with OpenGL into an offscreen
// framebuffer that doubles as the capture frame source.
package renderer

import (
	"fmt"
	"image"
	"image/color"
	gomath "math"
	"sync"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/garment-studio/internal/engine/framebuffer"
	"github.com/Faultbox/garment-studio/internal/engine/shader"
	"github.com/Faultbox/garment-studio/internal/overlay"
	"github.com/Faultbox/garment-studio/internal/scene"
	"github.com/Faultbox/garment-studio/internal/studio"
	"github.com/Faultbox/garment-studio/internal/texture"
	"github.com/Faultbox/garment-studio/pkg/math"
)

// Config holds renderer configuration. Width and Height size the
// offscreen target, which is also the capture resolution.
type Config struct {
	Width  int
	Height int
}

// light is the key light direction in world space.
var light = math.Vec3{X: 0.3, Y: 0.6, Z: 1}.Normalize()

// Renderer handles all OpenGL rendering.
type Renderer struct {
	config Config
	log    *zap.Logger

	fb      *framebuffer.Framebuffer
	garment *shader.Program
	quad    *shader.Program
	quadVAO uint32
	quadVBO uint32

	meshes   map[*scene.Geometry]*gpuMesh
	textures map[*texture.Texture]uint32
	used     map[any]bool

	// GPU textures whose source was released, deleted on the next frame
	mu   sync.Mutex
	dead []uint32
}

// New creates a renderer. It must be called after the GL context exists.
func New(cfg Config, log *zap.Logger) (*Renderer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Renderer{
		config:   cfg,
		log:      log,
		meshes:   make(map[*scene.Geometry]*gpuMesh),
		textures: make(map[*texture.Texture]uint32),
		used:     make(map[any]bool),
	}

	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	log.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)

	var err error
	if r.garment, err = shader.New(shader.GarmentVertex, shader.GarmentFragment); err != nil {
		return nil, fmt.Errorf("garment shader: %w", err)
	}
	if r.quad, err = shader.New(shader.QuadVertex, shader.QuadFragment); err != nil {
		r.garment.Delete()
		return nil, fmt.Errorf("quad shader: %w", err)
	}
	if r.fb, err = framebuffer.New(int32(cfg.Width), int32(cfg.Height)); err != nil {
		r.garment.Delete()
		r.quad.Delete()
		return nil, err
	}
	r.createQuad()

	gl.DepthFunc(gl.LESS)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	return r, nil
}

// Capture returns the last rendered frame.
func (r *Renderer) Capture() (*image.RGBA, error) {
	return r.fb.Capture()
}

// Resize changes the offscreen target size.
func (r *Renderer) Resize(width, height int) {
	r.config.Width = width
	r.config.Height = height
	r.fb.Resize(int32(width), int32(height))
	r.log.Debug("renderer resized", zap.Int("width", width), zap.Int("height", height))
}

// Present copies the last frame to the window's default framebuffer.
func (r *Renderer) Present(width, height int) {
	r.fb.BlitToScreen(int32(width), int32(height))
}

// Render draws v into the offscreen target.
func (r *Renderer) Render(v studio.View) {
	r.collect()
	clear(r.used)

	r.fb.Bind()
	bg := v.Background.Color
	r.fb.Clear(color.NRGBA{R: bg.R, G: bg.G, B: bg.B, A: 0xff})

	r.drawBackground(v.Background)
	if v.Root != nil && v.Camera != nil {
		aspect := float32(r.config.Width) / float32(max(1, r.config.Height))
		vp := v.Camera.ProjectionMatrix(aspect).Mul(v.Camera.ViewMatrix())
		r.drawGarment(vp, v.Root)
		r.drawBillboards(vp, v)
	}

	r.fb.Unbind()
	r.sweep()
}

func (r *Renderer) drawBackground(bg scene.Background) {
	if bg.Type != scene.BackgroundImage || bg.Image == nil || bg.Image.Image == nil {
		return
	}
	tex := r.texture(bg.Image)
	w, h := bg.Image.Size()
	imgAspect := float64(w) / float64(h)
	viewAspect := float64(r.config.Width) / float64(max(1, r.config.Height))
	// cover: fill the view, cropping the longer axis
	sx := 2 * gomath.Max(1, imgAspect/viewAspect)
	sy := 2 * gomath.Max(1, viewAspect/imgAspect)
	mvp := math.Scale(math.Vec3{X: float32(sx), Y: float32(sy), Z: 1})

	gl.Disable(gl.DEPTH_TEST)
	r.drawQuad(mvp, tex)
}

func (r *Renderer) drawGarment(vp math.Mat4, root *scene.Node) {
	gl.Enable(gl.DEPTH_TEST)
	gl.Disable(gl.BLEND)

	r.garment.Use()
	gl.UniformMatrix4fv(r.garment.Uniform("uViewProj"), 1, false, vp.Ptr())
	gl.Uniform3f(r.garment.Uniform("uLightDir"), light.X, light.Y, light.Z)
	gl.Uniform1i(r.garment.Uniform("uMap"), 0)

	root.Traverse(func(n *scene.Node, world math.Mat4) bool {
		if n.Mesh == nil || n.Mesh.Geometry == nil {
			return true
		}
		gm := r.mesh(n.Mesh.Geometry)
		gl.UniformMatrix4fv(r.garment.Uniform("uModel"), 1, false, world.Ptr())
		gl.BindVertexArray(gm.vao)

		for slot, mat := range n.Mesh.Materials {
			if mat == nil {
				continue
			}
			c := mat.BaseColor
			gl.Uniform4f(r.garment.Uniform("uBaseColor"),
				float32(c.R)/255, float32(c.G)/255, float32(c.B)/255, float32(c.A)/255)
			hasMap := mat.Map != nil && mat.Map.Image != nil && gm.hasUVs
			if hasMap {
				gl.ActiveTexture(gl.TEXTURE0)
				gl.BindTexture(gl.TEXTURE_2D, r.texture(mat.Map))
				gl.Uniform1i(r.garment.Uniform("uHasMap"), 1)
			} else {
				gl.Uniform1i(r.garment.Uniform("uHasMap"), 0)
			}

			for _, rg := range n.Mesh.Geometry.Ranges(slot) {
				start, end := max(rg.Start, 0), min(rg.Start+rg.Count, gm.count)
				if end <= start {
					continue
				}
				gl.DrawElementsWithOffset(gl.TRIANGLES, int32(end-start), gl.UNSIGNED_INT, uintptr(start*4))
			}
		}
		return true
	})
	gl.BindVertexArray(0)
}

func (r *Renderer) drawBillboards(vp math.Mat4, v studio.View) {
	if len(v.Billboards) == 0 {
		return
	}
	anchor := overlay.Anchor(v.Root.Bounds())
	eye := v.Camera.Position()

	gl.Enable(gl.DEPTH_TEST)
	gl.Enable(gl.BLEND)
	for _, bb := range v.Billboards {
		if bb.Texture == nil || bb.Texture.Image == nil {
			continue
		}
		r.drawQuad(vp.Mul(bb.WorldMatrix(anchor, eye)), r.texture(bb.Texture))
	}
	gl.Disable(gl.BLEND)
}

func (r *Renderer) drawQuad(mvp math.Mat4, tex uint32) {
	r.quad.Use()
	gl.UniformMatrix4fv(r.quad.Uniform("uMVP"), 1, false, mvp.Ptr())
	gl.Uniform1i(r.quad.Uniform("uTexture"), 0)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, tex)
	gl.BindVertexArray(r.quadVAO)
	gl.DrawArrays(gl.TRIANGLE_STRIP, 0, 4)
	gl.BindVertexArray(0)
}

// Close frees all GPU resources.
func (r *Renderer) Close() {
	r.log.Info("closing renderer")
	clear(r.used)
	r.sweep()
	r.collect()
	for t, id := range r.textures {
		gl.DeleteTextures(1, &id)
		delete(r.textures, t)
	}
	if r.quadVAO != 0 {
		gl.DeleteVertexArrays(1, &r.quadVAO)
	}
	if r.quadVBO != 0 {
		gl.DeleteBuffers(1, &r.quadVBO)
	}
	r.garment.Delete()
	r.quad.Delete()
	r.fb.Destroy()
}
