package config

import (
	"errors"
	"fmt"

	"github.com/Faultbox/garment-studio/internal/capture"
)

// ErrInvalid wraps every validation failure returned by Load.
var ErrInvalid = errors.New("invalid config")

// Load builds the configuration from defaults, then the config file, then
// command-line flags, and validates the result.
func Load() (*Config, error) {
	cfg := Default()

	path := ConfigPath()
	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	}

	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first setting the studio cannot start with.
func (c *Config) Validate() error {
	switch {
	case c.Canvas.Width <= 0 || c.Canvas.Height <= 0:
		return fmt.Errorf("%w: canvas %dx%d", ErrInvalid, c.Canvas.Width, c.Canvas.Height)
	case c.Canvas.FPS <= 0:
		return fmt.Errorf("%w: canvas fps %d", ErrInvalid, c.Canvas.FPS)
	case c.Capture.FPS <= 0:
		return fmt.Errorf("%w: capture fps %d", ErrInvalid, c.Capture.FPS)
	case c.Capture.Quality <= 0 || c.Capture.Quality > 1:
		return fmt.Errorf("%w: still quality %v outside (0,1]", ErrInvalid, c.Capture.Quality)
	case c.Capture.JPEGQuality < 1 || c.Capture.JPEGQuality > 100:
		return fmt.Errorf("%w: jpeg quality %d outside [1,100]", ErrInvalid, c.Capture.JPEGQuality)
	case c.Capture.ClipLength <= 0:
		return fmt.Errorf("%w: clip length %v", ErrInvalid, c.Capture.ClipLength)
	case c.Capture.MaxResolution <= 0 || c.Capture.MaxClipLength <= 0:
		return fmt.Errorf("%w: capture limits must be positive", ErrInvalid)
	case c.Capture.ClipLength > c.Capture.MaxClipLength:
		return fmt.Errorf("%w: clip length %v above max %v", ErrInvalid, c.Capture.ClipLength, c.Capture.MaxClipLength)
	case c.Overlay.MaxScale <= 0 || c.Overlay.MaxTextPt <= 0 || c.Overlay.MaxDimension <= 0:
		return fmt.Errorf("%w: overlay limits must be positive", ErrInvalid)
	case c.Server.Addr == "" && c.Window.Headless:
		return fmt.Errorf("%w: headless mode needs a server address", ErrInvalid)
	}
	if c.Capture.Resolution != "" {
		if _, _, err := capture.ParseResolutionLimit(c.Capture.Resolution, c.Capture.MaxResolution); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	return nil
}
