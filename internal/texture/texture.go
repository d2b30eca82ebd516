// Package texture holds decoded surface images and tracks who owns them.
//
// A texture is either owned (created by this process, for example a baked
// gradient or a flat color canvas) or borrowed (authored upstream and shared
// with the scene). Only owned textures are released when replaced.
package texture

import (
	"image"
	"image/color"
	"image/draw"
	"sync"
)

// Wrap selects how sampling behaves outside the [0,1] UV range.
type Wrap int

// Wrap modes.
const (
	WrapClamp Wrap = iota
	WrapRepeat
)

// Texture is an RGBA image plus sampling and ownership state.
type Texture struct {
	Name  string
	Image *image.RGBA
	WrapS Wrap
	WrapT Wrap

	owned bool

	mu        sync.Mutex
	released  bool
	onRelease []func()
}

// New wraps img as a texture. owned marks textures this process created.
func New(name string, img *image.RGBA, owned bool) *Texture {
	return &Texture{Name: name, Image: img, owned: owned}
}

// NewSolid creates an owned square texture filled with c.
func NewSolid(name string, size int, c color.Color) *Texture {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return New(name, img, true)
}

// Owned reports whether releasing this texture frees its backing image.
func (t *Texture) Owned() bool {
	return t.owned
}

// Size returns the texture dimensions.
func (t *Texture) Size() (int, int) {
	if t.Image == nil {
		return 0, 0
	}
	b := t.Image.Bounds()
	return b.Dx(), b.Dy()
}

// OnRelease registers fn to run when the texture is released.
// The renderer uses this to delete the matching GPU texture.
func (t *Texture) OnRelease(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onRelease = append(t.onRelease, fn)
}

// Release frees an owned texture. Borrowed textures are left untouched.
// Calling Release more than once is a no-op.
func (t *Texture) Release() {
	if t == nil || !t.owned {
		return
	}

	t.mu.Lock()
	if t.released {
		t.mu.Unlock()
		return
	}
	t.released = true
	hooks := t.onRelease
	t.onRelease = nil
	t.Image = nil
	t.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// Released reports whether Release has freed the texture.
func (t *Texture) Released() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.released
}

// ToRGBA converts any image to *image.RGBA with its origin at (0,0).
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}

	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}
