// Package server exposes the studio over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Faultbox/garment-studio/internal/animation"
	"github.com/Faultbox/garment-studio/internal/assets"
	"github.com/Faultbox/garment-studio/internal/capture"
	"github.com/Faultbox/garment-studio/internal/extract"
	"github.com/Faultbox/garment-studio/internal/material"
	"github.com/Faultbox/garment-studio/internal/overlay"
	"github.com/Faultbox/garment-studio/internal/scene"
	"github.com/Faultbox/garment-studio/internal/studio"
	"github.com/Faultbox/garment-studio/internal/texture"
	"github.com/Faultbox/garment-studio/pkg/formats"
)

// Commander executes studio commands.
type Commander interface {
	Do(ctx context.Context, cmd studio.Command) (any, error)
}

// Options configures a Server.
type Options struct {
	// Timeout bounds every request, including waiting for the frame loop.
	Timeout time.Duration
	// MaxBody limits request bodies; image data URLs can be large.
	MaxBody int64
	// FilePrefix names downloaded artifacts.
	FilePrefix string
	// Still holds the export defaults a request body overrides.
	Still capture.StillOptions
	// ClipLength and ClipFormat are the defaults for POST /record/clip.
	ClipLength time.Duration
	ClipFormat string
	// MaxClipLength caps the seconds a clip request may ask for.
	MaxClipLength time.Duration
}

// Server routes HTTP requests to a Commander.
type Server struct {
	studio Commander
	log    *zap.Logger
	opts   Options
	router chi.Router
	now    func() time.Time
}

// New creates a server.
func New(st Commander, log *zap.Logger, opts Options) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxBody <= 0 {
		opts.MaxBody = 32 << 20
	}
	if opts.FilePrefix == "" {
		opts.FilePrefix = "shirt"
	}
	if opts.Still.Format == "" {
		opts.Still.Format = "png"
	}
	if opts.Still.Quality <= 0 {
		opts.Still.Quality = capture.DefaultQuality
	}
	if opts.ClipLength <= 0 {
		opts.ClipLength = capture.DefaultClipLength
	}
	if opts.ClipFormat == "" {
		opts.ClipFormat = capture.DefaultClipFormat
	}
	if opts.MaxClipLength <= 0 {
		opts.MaxClipLength = capture.DefaultMaxClipLength
	}
	s := &Server{studio: st, log: log, opts: opts, now: time.Now}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(middleware.Timeout(s.opts.Timeout))

	r.Post("/model", s.handleModel)
	r.Post("/style", s.handleStyle)
	r.Post("/background", s.handleBackground)
	r.Route("/content", func(r chi.Router) {
		r.Post("/image", s.handleImage)
		r.Post("/text", s.handleText)
		r.Delete("/{kind}", s.handleRemoveContent)
	})
	r.Post("/animation", s.handleAnimation)
	r.Get("/animation/presets", s.handlePresets)
	r.Post("/export/still", s.handleStill)
	r.Route("/record", func(r chi.Router) {
		r.Post("/start", s.handleRecordStart)
		r.Post("/stop", s.handleRecordStop)
		r.Post("/clip", s.handleRecordClip)
		r.Get("/clip", s.handleClipDownload)
		r.Post("/cancel", s.handleRecordCancel)
	})
	r.Post("/extract", s.handleExtract)
	r.Get("/status", s.handleStatus)
	r.Route("/extraction", func(r chi.Router) {
		r.Get("/", s.handleExtraction)
		r.Get("/uvmaps/{index}.png", s.handleExtractionImage(studio.ImageUVMap))
		r.Get("/textures/{index}.png", s.handleExtractionImage(studio.ImageTexture))
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.log.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

var (
	badRequest = []error{
		studio.ErrInvalidCommand,
		material.ErrGradientParse,
		material.ErrInvalidColor,
		capture.ErrInvalidResolution,
		capture.ErrUnsupportedFormat,
		animation.ErrBadSpeed,
		overlay.ErrEmptySource,
		overlay.ErrBadScale,
		overlay.ErrBadDataURL,
		overlay.ErrEmptyText,
		scene.ErrUnknownBackground,
		texture.ErrUnsupportedImage,
		formats.ErrUnsupportedFormat,
		formats.ErrNoGeometry,
		formats.ErrMalformedOBJ,
		formats.ErrIndexOutOfRange,
		errBadBody,
	}
	notFound = []error{
		assets.ErrNotFound,
		studio.ErrNotFound,
		studio.ErrNoModel,
	}
	tooLarge = []error{
		assets.ErrTooLarge,
		capture.ErrTooLarge,
		overlay.ErrTooLarge,
		texture.ErrTooLarge,
	}
	conflict = []error{
		capture.ErrRecordingUnavailable,
		capture.ErrNotRecording,
		capture.ErrNoFrames,
		studio.ErrLoadInProgress,
		extract.ErrBusy,
	}
)

func statusFor(err error) int {
	is := func(targets []error) bool {
		for _, t := range targets {
			if errors.Is(err, t) {
				return true
			}
		}
		return false
	}
	switch {
	case is(badRequest):
		return http.StatusBadRequest
	case is(notFound):
		return http.StatusNotFound
	case is(conflict):
		return http.StatusConflict
	case is(tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, studio.ErrQueueFull), errors.Is(err, studio.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
