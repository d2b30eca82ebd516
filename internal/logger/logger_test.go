package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func initFile(t *testing.T, level string, cfg FileConfig) string {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = filepath.Join(t.TempDir(), "studio.log")
	}
	if cfg.MaxSizeMB == 0 {
		cfg.MaxSizeMB = 10
	}
	if err := InitWithFileConfig(level, cfg, false); err != nil {
		t.Fatalf("InitWithFileConfig: %v", err)
	}
	return cfg.Path
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	Sync()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	return string(content)
}

func TestRotation(t *testing.T) {
	dir := t.TempDir()
	path := initFile(t, "info", FileConfig{Path: filepath.Join(dir, "studio.log"), MaxSizeMB: 1, MaxBackups: 2})

	// ~3MB of records forces at least one rollover at 1MB
	payload := strings.Repeat("x", 200)
	for i := 0; i < 15000; i++ {
		Sugar.Infof("frame %d: %s", i, payload)
	}
	Sync()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("active log missing: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var backups []string
	for _, e := range entries {
		// backups look like studio-2006-01-02T15-04-05.000.log
		if e.Name() != "studio.log" && strings.HasPrefix(e.Name(), "studio-20") {
			backups = append(backups, e.Name())
		}
	}
	if len(backups) == 0 {
		t.Errorf("no rotated backups in %v", entries)
	}
}

func TestLogLevels(t *testing.T) {
	all := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	tests := []struct {
		level  string
		lowest int // index into all of the first level that must appear
	}{
		{"debug", 0},
		{"info", 1},
		{"warn", 2},
		{"error", 3},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			path := initFile(t, tt.level, FileConfig{})

			Debug("debug message")
			Info("info message")
			Warn("warn message")
			Error("error message")

			out := readLog(t, path)
			for i, lvl := range all {
				got := strings.Contains(out, lvl+" ")
				if want := i >= tt.lowest; got != want {
					t.Errorf("level %s: %s present = %v, want %v", tt.level, lvl, got, want)
				}
			}
		})
	}
}

func TestJSONFile(t *testing.T) {
	path := initFile(t, "info", FileConfig{JSON: true})
	Named("server").Info("listening")

	line := strings.TrimSpace(readLog(t, path))
	var rec map[string]any
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		t.Fatalf("record %q is not JSON: %v", line, err)
	}
	if rec["msg"] != "listening" || rec["logger"] != "server" || rec["level"] != "INFO" {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestInvalidMaxSize(t *testing.T) {
	err := InitWithFileConfig("info", FileConfig{Path: filepath.Join(t.TempDir(), "x.log")}, false)
	if err == nil {
		t.Fatal("expected error for zero max size")
	}
}

func TestDefaultFileConfig(t *testing.T) {
	got := DefaultFileConfig("/tmp/studio.log")
	want := FileConfig{Path: "/tmp/studio.log", MaxSizeMB: 50, MaxBackups: 3, MaxAgeDays: 7, Compress: true}
	if got != want {
		t.Errorf("DefaultFileConfig = %+v, want %+v", got, want)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]string{
		"debug":   "debug",
		" WARN ":  "warn",
		"Error":   "error",
		"info":    "info",
		"verbose": "info",
		"":        "info",
	}
	for in, want := range tests {
		if got := parseLevel(in).String(); got != want {
			t.Errorf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestNamed(t *testing.T) {
	saved := Log
	defer func() { Log = saved }()

	Log = nil
	if l := Named("capture"); l == nil {
		t.Fatal("expected no-op logger before Init")
	}

	path := initFile(t, "info", FileConfig{})
	Named("capture").Info("frame captured")

	if out := readLog(t, path); !strings.Contains(out, "capture") {
		t.Errorf("expected logger name in output, got %q", out)
	}
}
