// Package main is the entry point for the garment studio: an HTTP control
// API over the configurator core, with an optional OpenGL viewer window.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Faultbox/garment-studio/internal/assets"
	"github.com/Faultbox/garment-studio/internal/capture"
	"github.com/Faultbox/garment-studio/internal/config"
	"github.com/Faultbox/garment-studio/internal/extract"
	"github.com/Faultbox/garment-studio/internal/logger"
	"github.com/Faultbox/garment-studio/internal/overlay"
	"github.com/Faultbox/garment-studio/internal/server"
	"github.com/Faultbox/garment-studio/internal/studio"
	"github.com/Faultbox/garment-studio/internal/viewer"
)

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := initLogging(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if config.SaveRequested() {
		if err := cfg.Save(); err != nil {
			logger.Error("saving config", zap.Error(err))
			os.Exit(1)
		}
		logger.Info("config saved", zap.String("dir", config.ConfigDir()))
	}

	logger.Info("=== Garment Studio ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	if err := run(cfg); err != nil {
		logger.Error("studio error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("studio closed normally")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var view *viewer.Viewer
	opts := studioOptions(cfg)
	if !cfg.Window.Headless {
		var err error
		view, err = viewer.New(viewerConfig(cfg), logger.Named("viewer"))
		if err != nil {
			return err
		}
		defer view.Close()
		opts.Source = view.Source()
	}

	st := studio.New(opts)
	defer st.Close()

	if cfg.Material.DefaultStyle != "" {
		if err := st.Send(studio.ApplyStyle{Spec: cfg.Material.DefaultStyle}); err != nil {
			return err
		}
	}

	srv := server.New(st, logger.Named("http"), server.Options{
		Timeout:    cfg.Server.RequestTimeout,
		MaxBody:    cfg.Server.MaxBody,
		FilePrefix: cfg.Capture.FilePrefix,
		Still:      stillOptions(cfg),
		ClipLength: cfg.Capture.ClipLength,
		ClipFormat: cfg.Capture.ClipFormat,

		MaxClipLength: cfg.Capture.MaxClipLength,
	})
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(ctx, cfg.Server.Addr)
	}()

	// the frame loop owns the GL context, so it stays on the main goroutine
	if view != nil {
		if err := view.Run(ctx, st); err != nil {
			return err
		}
		stop()
	} else {
		logger.Info("running headless", zap.Int("fps", cfg.Canvas.FPS))
		// st.Close waits for this loop to return
		go st.Run(ctx, cfg.Canvas.FPS)
		select {
		case <-ctx.Done():
		case err := <-errCh:
			return err
		}
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func initLogging(l config.LoggingConfig) error {
	if l.LogFile == "" {
		return logger.Init(l.Level, "")
	}
	fc := logger.DefaultFileConfig(l.LogFile)
	fc.JSON = l.JSON
	return logger.InitWithFileConfig(l.Level, fc, true)
}

func studioOptions(cfg *config.Config) studio.Options {
	ext := extract.DefaultOptions()
	ext.TextureResolution = cfg.Extraction.TextureResolution
	ext.UVMapResolution = cfg.Extraction.UVMapResolution
	ext.ShowGrid = cfg.Extraction.ShowGrid
	ext.UVLineWidth = cfg.Extraction.LineWidth
	ext.TriangleStride = cfg.Extraction.TriangleStride

	return studio.Options{
		Assets: assets.NewManager(assets.Options{
			Dirs:     cfg.Assets.Dirs,
			Timeout:  cfg.Assets.Timeout,
			MaxBytes: cfg.Assets.MaxBytes,
			Logger:   logger.Named("assets"),
		}),
		Extraction:         ext,
		GradientResolution: cfg.Material.GradientResolution,
		OverlayBaseWidth:   cfg.Overlay.BaseWidth,
		OverlayLimits: overlay.Limits{
			MaxScale:     cfg.Overlay.MaxScale,
			MaxTextPt:    cfg.Overlay.MaxTextPt,
			MaxDimension: cfg.Overlay.MaxDimension,
		},
		FontDirs: cfg.Overlay.FontDirs,
		Recorder: capture.Options{
			FPS:           cfg.Capture.FPS,
			JPEGQuality:   cfg.Capture.JPEGQuality,
			TempDir:       cfg.Capture.TempDir,
			MaxClipLength: cfg.Capture.MaxClipLength,
			Transcoder:    &capture.FFmpeg{Binary: cfg.Capture.FFmpeg, TempDir: cfg.Capture.TempDir},
			Logger:        logger.Named("capture"),
		},
		PreviewWidth:  cfg.Canvas.Width,
		PreviewHeight: cfg.Canvas.Height,
		Logger:        logger.Named("studio"),
	}
}

func stillOptions(cfg *config.Config) capture.StillOptions {
	return capture.StillOptions{
		Format:       cfg.Capture.StillFormat,
		Quality:      cfg.Capture.Quality,
		Resolution:   cfg.Capture.Resolution,
		MaxDimension: cfg.Capture.MaxResolution,
	}
}

func viewerConfig(cfg *config.Config) viewer.Config {
	return viewer.Config{
		Title:        "Garment Studio",
		Width:        cfg.Window.Width,
		Height:       cfg.Window.Height,
		Fullscreen:   cfg.Window.Fullscreen,
		VSync:        cfg.Window.VSync,
		Samples:      cfg.Window.Samples,
		CanvasWidth:  cfg.Canvas.Width,
		CanvasHeight: cfg.Canvas.Height,
		OutputDir:    cfg.Capture.OutputDir,
		FilePrefix:   cfg.Capture.FilePrefix,
		Still:        stillOptions(cfg),
	}
}
