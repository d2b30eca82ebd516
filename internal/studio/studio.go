// Package studio owns the configurator state and applies typed commands to
// it once per frame. All mutable state lives on the goroutine that calls
// Frame; slow work runs on goroutines whose results are applied by Frame.
package studio

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/garment-studio/internal/animation"
	"github.com/Faultbox/garment-studio/internal/assets"
	"github.com/Faultbox/garment-studio/internal/capture"
	"github.com/Faultbox/garment-studio/internal/engine/camera"
	"github.com/Faultbox/garment-studio/internal/extract"
	"github.com/Faultbox/garment-studio/internal/material"
	"github.com/Faultbox/garment-studio/internal/overlay"
	"github.com/Faultbox/garment-studio/internal/scene"
)

// Studio errors.
var (
	ErrClosed         = errors.New("studio closed")
	ErrQueueFull      = errors.New("command queue full")
	ErrNoModel        = errors.New("no model loaded")
	ErrLoadInProgress = errors.New("model load already in progress")
	ErrInvalidCommand = errors.New("invalid command")
	ErrNotFound       = errors.New("not found")
)

// DefaultQueueSize is the command channel capacity.
const DefaultQueueSize = 64

// Options configures a Studio.
type Options struct {
	Assets             *assets.Manager
	Extraction         extract.Options
	GradientResolution int
	OverlayBaseWidth   int
	OverlayLimits      overlay.Limits
	FontDirs           []string
	// Animations is the preset registry; nil uses the built-in presets.
	Animations *animation.Registry
	Recorder   capture.Options
	// Source renders frames for capture. Nil uses the software preview.
	Source        capture.FrameSource
	PreviewWidth  int
	PreviewHeight int
	QueueSize     int
	Logger        *zap.Logger
}

// View is the state a renderer draws each frame.
type View struct {
	Root       *scene.Node
	Background scene.Background
	Billboards []*overlay.Billboard
	Camera     *camera.OrbitCamera
}

// Studio is the configurator core.
type Studio struct {
	log       *zap.Logger
	assets    *assets.Manager
	extractor *extract.Extractor
	synth     *material.Synthesizer
	placer    *overlay.Placer
	driver    *animation.Driver
	recorder  *capture.Recorder
	camera    *camera.OrbitCamera
	preview   *Preview
	source    capture.FrameSource

	commands chan request
	results  chan func()
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	runMu   sync.Mutex
	runDone chan struct{}

	start      time.Time
	now        time.Time
	frames     uint64
	root       *scene.Node
	modelRef   string
	loading    bool
	loadErr    error
	style      *material.ColorSpec
	background scene.Background
	extraction *extract.Result
	clip       *capture.Clip
}

type request struct {
	cmd   Command
	reply chan reply
}

type reply struct {
	value any
	err   error
}

func (r request) done(v any, err error) {
	if r.reply != nil {
		r.reply <- reply{value: v, err: err}
	}
}

// New creates a studio. Call Close to stop background work.
func New(opts Options) *Studio {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Assets == nil {
		opts.Assets = assets.NewManager(assets.Options{Logger: log})
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Recorder.Logger == nil {
		opts.Recorder.Logger = log
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Studio{
		log:        log,
		assets:     opts.Assets,
		extractor:  extract.New(opts.Extraction, log),
		synth:      material.NewSynthesizer(opts.GradientResolution, log),
		placer:     overlay.NewPlacer(opts.Assets, overlay.NewFontSet(opts.FontDirs...), opts.OverlayBaseWidth, log),
		driver:     animation.NewDriver(opts.Animations),
		recorder:   capture.NewRecorder(opts.Recorder),
		camera:     camera.NewOrbitCamera(),
		preview:    NewPreview(opts.PreviewWidth, opts.PreviewHeight),
		source:     opts.Source,
		commands:   make(chan request, opts.QueueSize),
		results:    make(chan func(), opts.QueueSize),
		ctx:        ctx,
		cancel:     cancel,
		background: scene.DefaultBackground(),
	}
	s.placer.SetLimits(opts.OverlayLimits)
	if s.source == nil {
		s.source = capture.FrameSourceFunc(func() (*image.RGBA, error) {
			return s.preview.Render(s.View()), nil
		})
	}
	return s
}

// Do sends cmd and waits for its reply.
func (s *Studio) Do(ctx context.Context, cmd Command) (any, error) {
	req := request{cmd: cmd, reply: make(chan reply, 1)}
	select {
	case s.commands <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.ctx.Done():
		return nil, ErrClosed
	}
	select {
	case r := <-req.reply:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.ctx.Done():
		return nil, ErrClosed
	}
}

// Send queues cmd without waiting. Failures are logged by Frame.
func (s *Studio) Send(cmd Command) error {
	if s.ctx.Err() != nil {
		return ErrClosed
	}
	select {
	case s.commands <- request{cmd: cmd}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Frame applies finished background work and queued commands, advances the
// animation and samples the recorder. now is wall-clock time; the first
// call fixes the animation epoch.
func (s *Studio) Frame(now time.Time) {
	if s.start.IsZero() {
		s.start = now
	}
	s.now = now
	s.frames++

	s.drainResults()
	for n := len(s.commands); n > 0; n-- {
		req := <-s.commands
		v, err := s.handle(req)
		if err == errDeferred {
			continue
		}
		if err != nil && req.reply == nil {
			s.log.Warn("command failed", zap.String("command", fmt.Sprintf("%T", req.cmd)), zap.Error(err))
		}
		req.done(v, err)
	}

	if s.root != nil {
		s.driver.Update(&s.root.Transform, now.Sub(s.start).Seconds())
	}
	if err := s.recorder.Tick(now); err != nil {
		s.log.Debug("recorder tick", zap.Error(err))
	}
	select {
	case c := <-s.recorder.Results():
		s.clip = &c
	default:
	}
}

func (s *Studio) drainResults() {
	for {
		select {
		case apply := <-s.results:
			apply()
		default:
			return
		}
	}
}

// Run calls Frame at the given rate until ctx is done or the studio is
// closed. Close waits for Run to return.
func (s *Studio) Run(ctx context.Context, fps int) {
	s.runMu.Lock()
	if s.ctx.Err() != nil {
		s.runMu.Unlock()
		return
	}
	done := make(chan struct{})
	s.runDone = done
	s.runMu.Unlock()
	defer close(done)

	if fps <= 0 {
		fps = capture.DefaultFPS
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			s.Frame(now)
		}
	}
}

// errDeferred marks a command whose reply is sent by background work.
var errDeferred = errors.New("reply deferred")

// async runs job off the frame goroutine and applies its result on the
// next Frame.
func (s *Studio) async(job func(ctx context.Context) func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		apply := job(s.ctx)
		select {
		case s.results <- apply:
		case <-s.ctx.Done():
		}
	}()
}

// View returns the state to draw. Call it on the frame goroutine.
func (s *Studio) View() View {
	return View{
		Root:       s.root,
		Background: s.background,
		Billboards: s.placer.Billboards(),
		Camera:     s.camera,
	}
}

// Camera returns the orbit camera.
func (s *Studio) Camera() *camera.OrbitCamera {
	return s.camera
}

// Close stops Run, cancels background work and releases every owned
// texture. It must not be called from the goroutine running Run.
func (s *Studio) Close() {
	s.cancel()
	s.runMu.Lock()
	done := s.runDone
	s.runMu.Unlock()
	if done != nil {
		<-done
	}
	s.recorder.Cancel()
	s.recorder.Wait()
	s.wg.Wait()
	s.extraction.Release()
	if s.root != nil {
		s.root.Release()
	}
	s.placer.Release()
	s.background.Image.Release()
}
