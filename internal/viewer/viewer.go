// Package viewer runs the interactive window: it pumps the studio once per
// frame, draws its view with OpenGL and maps mouse input to the orbit camera.
package viewer

import (
	"context"
	"fmt"
	"time"

	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/garment-studio/internal/capture"
	"github.com/Faultbox/garment-studio/internal/engine/input"
	"github.com/Faultbox/garment-studio/internal/engine/renderer"
	"github.com/Faultbox/garment-studio/internal/engine/window"
	"github.com/Faultbox/garment-studio/internal/studio"
)

// Config holds viewer configuration.
type Config struct {
	Title        string
	Width        int
	Height       int
	Fullscreen   bool
	VSync        bool
	Samples      int
	CanvasWidth  int
	CanvasHeight int
	// Screenshots taken with F12 are written here.
	OutputDir  string
	FilePrefix string
	Still      capture.StillOptions
}

// Viewer owns the window and the GL renderer.
type Viewer struct {
	config   Config
	log      *zap.Logger
	window   *window.Window
	renderer *renderer.Renderer
	input    *input.Input
}

// New creates the window and renderer. Call it from the main goroutine.
func New(cfg Config, log *zap.Logger) (*Viewer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	v := &Viewer{config: cfg, log: log, input: input.New()}

	var err error
	v.window, err = window.New(window.Config{
		Title:      cfg.Title,
		Width:      cfg.Width,
		Height:     cfg.Height,
		Fullscreen: cfg.Fullscreen,
		VSync:      cfg.VSync,
		Samples:    cfg.Samples,
	}, log.Named("window"))
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	// the GL context must exist before the renderer
	v.renderer, err = renderer.New(renderer.Config{
		Width:  cfg.CanvasWidth,
		Height: cfg.CanvasHeight,
	}, log.Named("renderer"))
	if err != nil {
		v.window.Close()
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	return v, nil
}

// Source returns the frame source stills and recordings read from.
func (v *Viewer) Source() capture.FrameSource {
	return v.renderer
}

// Run drives st until the window closes or ctx is cancelled.
func (v *Viewer) Run(ctx context.Context, st *studio.Studio) error {
	frameCount := 0
	fpsTimer := time.Now()

	v.log.Info("starting viewer loop")
	for ctx.Err() == nil {
		if v.input.Update() {
			break
		}
		v.input.Orbit(st.Camera())
		if v.input.IsKeyPressed(sdl.SCANCODE_F12) {
			go v.screenshot(ctx, st)
		}

		now := time.Now()
		st.Frame(now)
		v.renderer.Render(st.View())
		w, h := v.window.Size()
		v.renderer.Present(w, h)
		v.window.SwapBuffers()

		frameCount++
		if time.Since(fpsTimer) >= time.Second {
			v.window.SetTitle(fmt.Sprintf("%s - %d fps", v.config.Title, frameCount))
			v.log.Debug("fps", zap.Int("count", frameCount))
			frameCount = 0
			fpsTimer = time.Now()
		}
	}
	return nil
}

// screenshot runs off the frame goroutine because Do waits for Frame.
func (v *Viewer) screenshot(ctx context.Context, st *studio.Studio) {
	res, err := st.Do(ctx, studio.ExportStill{Options: v.config.Still})
	if err != nil {
		v.log.Warn("screenshot failed", zap.Error(err))
		return
	}
	path, err := capture.Save(v.config.OutputDir, v.config.FilePrefix, res.(capture.Blob), time.Now())
	if err != nil {
		v.log.Warn("screenshot not saved", zap.Error(err))
		return
	}
	v.log.Info("screenshot saved", zap.String("path", path))
}

// Close frees GPU resources and the window.
func (v *Viewer) Close() {
	v.log.Info("closing viewer")
	if v.renderer != nil {
		v.renderer.Close()
	}
	if v.window != nil {
		v.window.Close()
	}
}
