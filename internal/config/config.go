// Package config handles studio configuration loading and management.
package config

import (
	"time"

	"github.com/Faultbox/garment-studio/internal/capture"
)

// Config holds all studio settings.
type Config struct {
	Window     WindowConfig     `yaml:"window"`
	Canvas     CanvasConfig     `yaml:"canvas"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Material   MaterialConfig   `yaml:"material"`
	Overlay    OverlayConfig    `yaml:"overlay"`
	Capture    CaptureConfig    `yaml:"capture"`
	Assets     AssetsConfig     `yaml:"assets"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// WindowConfig holds the interactive viewer window settings.
type WindowConfig struct {
	Width      int  `yaml:"width"`
	Height     int  `yaml:"height"`
	Fullscreen bool `yaml:"fullscreen"`
	VSync      bool `yaml:"vsync"`
	Samples    int  `yaml:"samples"`
	// Headless skips the window and renders frames in software.
	Headless bool `yaml:"headless"`
}

// CanvasConfig sizes the rendered frame that stills and clips capture.
type CanvasConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	FPS    int `yaml:"fps"`
}

// ExtractionConfig controls texture and UV map extraction.
type ExtractionConfig struct {
	TextureResolution int     `yaml:"texture_resolution"`
	UVMapResolution   int     `yaml:"uvmap_resolution"`
	ShowGrid          bool    `yaml:"show_grid"`
	LineWidth         float64 `yaml:"line_width"`
	TriangleStride    int     `yaml:"triangle_stride"`
}

// MaterialConfig holds procedural material settings.
type MaterialConfig struct {
	GradientResolution int    `yaml:"gradient_resolution"`
	DefaultStyle       string `yaml:"default_style"`
}

// OverlayConfig holds content overlay settings.
type OverlayConfig struct {
	BaseWidth    int      `yaml:"base_width"`
	FontDirs     []string `yaml:"font_dirs"`
	MaxScale     float64  `yaml:"max_scale"`
	MaxTextPt    float64  `yaml:"max_text_pt"`
	MaxDimension int      `yaml:"max_dimension"`
}

// CaptureConfig holds still export and recording settings.
type CaptureConfig struct {
	OutputDir   string        `yaml:"output_dir"`
	FilePrefix  string        `yaml:"file_prefix"`
	StillFormat string        `yaml:"still_format"`
	Quality     float64       `yaml:"quality"`
	Resolution  string        `yaml:"resolution"`
	FPS         int           `yaml:"fps"`
	JPEGQuality int           `yaml:"jpeg_quality"`
	ClipLength  time.Duration `yaml:"clip_length"`
	ClipFormat  string        `yaml:"clip_format"`
	FFmpeg      string        `yaml:"ffmpeg"`
	TempDir     string        `yaml:"temp_dir"`
	// Upper bounds on what a client may request.
	MaxResolution int           `yaml:"max_resolution"`
	MaxClipLength time.Duration `yaml:"max_clip_length"`
}

// AssetsConfig holds model and image lookup settings.
type AssetsConfig struct {
	Dirs     []string      `yaml:"dirs"`
	Timeout  time.Duration `yaml:"timeout"`
	MaxBytes int64         `yaml:"max_bytes"`
}

// ServerConfig holds the HTTP control API settings.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxBody        int64         `yaml:"max_body"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
	// JSON switches the log file to structured records.
	JSON bool `yaml:"json"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Width:   1280,
			Height:  960,
			VSync:   true,
			Samples: 4,
		},
		Canvas: CanvasConfig{
			Width:  1280,
			Height: 960,
			FPS:    60,
		},
		Extraction: ExtractionConfig{
			TextureResolution: 512,
			UVMapResolution:   1024,
			LineWidth:         1,
			TriangleStride:    1,
		},
		Material: MaterialConfig{
			GradientResolution: 512,
		},
		Overlay: OverlayConfig{
			BaseWidth:    200,
			MaxScale:     10,
			MaxTextPt:    256,
			MaxDimension: 4096,
		},
		Capture: CaptureConfig{
			OutputDir:   ".",
			FilePrefix:  "shirt",
			StillFormat: "png",
			Quality:     0.9,
			Resolution:  "1920x1080",
			FPS:         30,
			JPEGQuality: 85,
			ClipLength:  5 * time.Second,
			ClipFormat:  "mp4",
			FFmpeg:      "ffmpeg",

			MaxResolution: capture.DefaultMaxDimension,
			MaxClipLength: capture.DefaultMaxClipLength,
		},
		Assets: AssetsConfig{
			Dirs:     []string{"assets"},
			Timeout:  30 * time.Second,
			MaxBytes: 64 << 20,
		},
		Server: ServerConfig{
			Addr:           "127.0.0.1:8080",
			RequestTimeout: 60 * time.Second,
			MaxBody:        32 << 20,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
