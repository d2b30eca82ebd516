package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

const fileName = "config.yaml"

// EnvConfig names an environment variable pointing at a config file. The
// --config flag takes precedence over it.
const EnvConfig = "GARMENT_STUDIO_CONFIG"

// findConfigFile returns the first existing config file among the working
// directory, EnvConfig and ConfigDir.
func findConfigFile() string {
	candidates := []string{filepath.Join(".", fileName)}
	if env := os.Getenv(EnvConfig); env != "" {
		candidates = append([]string{env}, candidates...)
	}
	candidates = append(candidates, filepath.Join(ConfigDir(), fileName))

	for _, path := range candidates {
		if st, err := os.Stat(path); err == nil && !st.IsDir() {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "GarmentStudio")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "GarmentStudio")
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "garment-studio")
	}
	return filepath.Join(home, ".config", "garment-studio")
}

// loadFromFile merges a YAML file over cfg. Unknown keys are rejected so
// that typos do not silently fall back to defaults. An empty file is valid.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Save writes the config to ConfigDir.
func (c *Config) Save() error {
	return c.SaveTo(filepath.Join(ConfigDir(), fileName))
}

// SaveTo writes the config as YAML, creating parent directories.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
