package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Window.Width != 1280 || cfg.Window.Height != 960 {
		t.Errorf("expected window 1280x960, got %dx%d", cfg.Window.Width, cfg.Window.Height)
	}
	if cfg.Window.Fullscreen {
		t.Error("expected fullscreen to be false by default")
	}
	if cfg.Window.Headless {
		t.Error("expected headless to be false by default")
	}

	if cfg.Extraction.TextureResolution != 512 {
		t.Errorf("expected texture resolution 512, got %d", cfg.Extraction.TextureResolution)
	}
	if cfg.Extraction.UVMapResolution != 1024 {
		t.Errorf("expected uv map resolution 1024, got %d", cfg.Extraction.UVMapResolution)
	}
	if cfg.Material.GradientResolution != 512 {
		t.Errorf("expected gradient resolution 512, got %d", cfg.Material.GradientResolution)
	}
	if cfg.Overlay.BaseWidth != 200 {
		t.Errorf("expected overlay base width 200, got %d", cfg.Overlay.BaseWidth)
	}

	if cfg.Capture.Quality != 0.9 {
		t.Errorf("expected quality 0.9, got %f", cfg.Capture.Quality)
	}
	if cfg.Capture.Resolution != "1920x1080" {
		t.Errorf("expected resolution 1920x1080, got %s", cfg.Capture.Resolution)
	}
	if cfg.Capture.ClipLength != 5*time.Second {
		t.Errorf("expected clip length 5s, got %v", cfg.Capture.ClipLength)
	}
	if cfg.Capture.FPS != 30 {
		t.Errorf("expected capture fps 30, got %d", cfg.Capture.FPS)
	}

	if cfg.Server.Addr != "127.0.0.1:8080" {
		t.Errorf("expected addr 127.0.0.1:8080, got %s", cfg.Server.Addr)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "" {
		t.Errorf("expected empty log file, got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
window:
  width: 1920
  height: 1080
  fullscreen: true
  headless: true

extraction:
  uvmap_resolution: 2048
  triangle_stride: 4

capture:
  still_format: "webp"
  clip_length: 8s
  clip_format: "webm"

assets:
  dirs: ["models", "logos"]

server:
  addr: ":9090"
  request_timeout: 2m

logging:
  level: "debug"
  log_file: "studio.log"
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Window.Width != 1920 {
		t.Errorf("expected width 1920, got %d", cfg.Window.Width)
	}
	if !cfg.Window.Fullscreen {
		t.Error("expected fullscreen to be true")
	}
	if !cfg.Window.Headless {
		t.Error("expected headless to be true")
	}
	if !cfg.Window.VSync {
		t.Error("expected vsync default to survive")
	}

	if cfg.Extraction.UVMapResolution != 2048 {
		t.Errorf("expected uv map resolution 2048, got %d", cfg.Extraction.UVMapResolution)
	}
	if cfg.Extraction.TriangleStride != 4 {
		t.Errorf("expected triangle stride 4, got %d", cfg.Extraction.TriangleStride)
	}
	if cfg.Extraction.TextureResolution != 512 {
		t.Errorf("expected texture resolution default 512, got %d", cfg.Extraction.TextureResolution)
	}

	if cfg.Capture.StillFormat != "webp" {
		t.Errorf("expected still format webp, got %s", cfg.Capture.StillFormat)
	}
	if cfg.Capture.ClipLength != 8*time.Second {
		t.Errorf("expected clip length 8s, got %v", cfg.Capture.ClipLength)
	}

	if len(cfg.Assets.Dirs) != 2 || cfg.Assets.Dirs[1] != "logos" {
		t.Errorf("expected asset dirs [models logos], got %v", cfg.Assets.Dirs)
	}

	if cfg.Server.Addr != ":9090" {
		t.Errorf("expected addr :9090, got %s", cfg.Server.Addr)
	}
	if cfg.Server.RequestTimeout != 2*time.Minute {
		t.Errorf("expected request timeout 2m, got %v", cfg.Server.RequestTimeout)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "studio.log" {
		t.Errorf("expected log file 'studio.log', got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
window:
  width: not a number
  invalid syntax here
`

	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	if err := loadFromFile(cfg, "/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSaveTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Server.Addr = ":7000"
	cfg.Assets.Dirs = []string{"a", "b"}
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.Server.Addr != ":7000" {
		t.Errorf("expected addr :7000, got %s", loaded.Server.Addr)
	}
	if len(loaded.Assets.Dirs) != 2 {
		t.Errorf("expected 2 asset dirs, got %v", loaded.Assets.Dirs)
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()
	if dir == "" {
		t.Error("expected non-empty config dir")
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		verify   func(t *testing.T, cfg *Config)
		teardown func()
	}{
		{
			name:  "debug flag",
			setup: func() { *flagDebug = true },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected debug level, got %s", cfg.Logging.Level)
				}
			},
			teardown: func() { *flagDebug = false },
		},
		{
			name:  "addr flag",
			setup: func() { *flagAddr = ":9999" },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Server.Addr != ":9999" {
					t.Errorf("expected addr :9999, got %s", cfg.Server.Addr)
				}
			},
			teardown: func() { *flagAddr = "" },
		},
		{
			name:  "headless flag",
			setup: func() { *flagHeadless = true },
			verify: func(t *testing.T, cfg *Config) {
				if !cfg.Window.Headless {
					t.Error("expected headless with headless flag")
				}
			},
			teardown: func() { *flagHeadless = false },
		},
		{
			name:  "fullscreen flag",
			setup: func() { *flagFullscreen = true },
			verify: func(t *testing.T, cfg *Config) {
				if !cfg.Window.Fullscreen {
					t.Error("expected fullscreen to be true with fullscreen flag")
				}
			},
			teardown: func() { *flagFullscreen = false },
		},
		{
			name: "width and height flags",
			setup: func() {
				*flagWidth = 2560
				*flagHeight = 1440
			},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Window.Width != 2560 || cfg.Window.Height != 1440 {
					t.Errorf("expected 2560x1440, got %dx%d", cfg.Window.Width, cfg.Window.Height)
				}
			},
			teardown: func() {
				*flagWidth = 0
				*flagHeight = 0
			},
		},
		{
			name:  "assets flag appends",
			setup: func() { *flagAssets = "/srv/models" },
			verify: func(t *testing.T, cfg *Config) {
				dirs := cfg.Assets.Dirs
				if len(dirs) != 2 || dirs[1] != "/srv/models" {
					t.Errorf("expected appended asset dir, got %v", dirs)
				}
			},
			teardown: func() { *flagAssets = "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer tt.teardown()

			cfg := Default()
			applyFlags(cfg)
			tt.verify(t, cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
window:
  width: 1600
  height: 900
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	*flagWidth = 1920
	defer func() {
		*flagConfig = ""
		*flagWidth = 0
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// flag beats file
	if cfg.Window.Width != 1920 {
		t.Errorf("expected width 1920 from flag, got %d", cfg.Window.Width)
	}
	if cfg.Window.Height != 900 {
		t.Errorf("expected height 900 from file, got %d", cfg.Window.Height)
	}
}

func TestLoadFromFileUnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("window:\n  widht: 10\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := loadFromFile(Default(), path); err == nil {
		t.Error("expected error for misspelled key")
	}
}

func TestLoadFromFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := Default()
	if err := loadFromFile(cfg, path); err != nil {
		t.Fatalf("empty file: %v", err)
	}
	if cfg.Canvas.Width != 1280 {
		t.Errorf("expected defaults to survive, got canvas width %d", cfg.Canvas.Width)
	}
}

func TestFindConfigFileEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studio.yaml")
	if err := os.WriteFile(path, []byte("canvas:\n  fps: 24\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvConfig, path)

	if got := findConfigFile(); got != path {
		t.Errorf("findConfigFile() = %q, want %q", got, path)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"zero canvas", func(c *Config) { c.Canvas.Width = 0 }, false},
		{"zero fps", func(c *Config) { c.Canvas.FPS = 0 }, false},
		{"quality above one", func(c *Config) { c.Capture.Quality = 1.5 }, false},
		{"jpeg quality zero", func(c *Config) { c.Capture.JPEGQuality = 0 }, false},
		{"negative clip", func(c *Config) { c.Capture.ClipLength = -time.Second }, false},
		{"bad resolution", func(c *Config) { c.Capture.Resolution = "wide" }, false},
		{"resolution above max", func(c *Config) { c.Capture.MaxResolution = 1024 }, false},
		{"clip above max", func(c *Config) { c.Capture.ClipLength = 2 * time.Minute }, false},
		{"raised clip max", func(c *Config) {
			c.Capture.ClipLength = 2 * time.Minute
			c.Capture.MaxClipLength = 5 * time.Minute
		}, true},
		{"zero max resolution", func(c *Config) { c.Capture.MaxResolution = 0 }, false},
		{"zero overlay scale", func(c *Config) { c.Overlay.MaxScale = 0 }, false},
		{"negative text limit", func(c *Config) { c.Overlay.MaxTextPt = -1 }, false},
		{"headless without addr", func(c *Config) {
			c.Window.Headless = true
			c.Server.Addr = ""
		}, false},
		{"windowed without addr", func(c *Config) { c.Server.Addr = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}
