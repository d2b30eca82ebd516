// Package animation drives the model root transform from a named preset.
// Every preset is a pure function of the scaled time, so evaluating the same
// frame twice leaves the same transform.
package animation

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/Faultbox/garment-studio/internal/scene"
)

// ErrBadSpeed is returned for non-positive speed multipliers.
var ErrBadSpeed = errors.New("animation speed must be positive")

// Preset writes the transform for time t, already scaled by speed.
// Presets only touch the components they animate.
type Preset func(tr *scene.Transform, t float64)

// Preset names.
const (
	RotateY  = "rotateY"
	RotateX  = "rotateX"
	Float    = "float"
	Pulse    = "pulse"
	Swing    = "swing"
	Bounce   = "bounce"
	Showcase = "showcase"
	Wobble   = "wobble"
)

func sin(t float64) float32 { return float32(math.Sin(t)) }
func cos(t float64) float32 { return float32(math.Cos(t)) }

var builtins = map[string]Preset{
	RotateY: func(tr *scene.Transform, t float64) {
		tr.Rotation.Y = float32(t)
	},
	RotateX: func(tr *scene.Transform, t float64) {
		tr.Rotation.X = sin(t) * 0.3
	},
	Float: func(tr *scene.Transform, t float64) {
		tr.Position.Y = sin(t) * 0.5
	},
	Pulse: func(tr *scene.Transform, t float64) {
		s := 1 + sin(t*2)*0.1
		tr.Scale.X, tr.Scale.Y, tr.Scale.Z = s, s, s
	},
	Swing: func(tr *scene.Transform, t float64) {
		tr.Rotation.Z = sin(t) * 0.2
	},
	Bounce: func(tr *scene.Transform, t float64) {
		tr.Position.Y = float32(math.Abs(math.Sin(t*2))) * 0.5
	},
	Showcase: func(tr *scene.Transform, t float64) {
		tr.Rotation.Y = float32(t * 0.5)
		tr.Position.Y = sin(t) * 0.2
		tr.Rotation.X = sin(t*0.7) * 0.1
	},
	Wobble: func(tr *scene.Transform, t float64) {
		tr.Rotation.Z = sin(t*3) * 0.1
		tr.Rotation.X = cos(t*2) * 0.05
	},
}

// Registry maps preset names to functions.
type Registry struct {
	mu      sync.RWMutex
	presets map[string]Preset
}

// NewRegistry returns a registry holding the built-in presets.
func NewRegistry() *Registry {
	r := &Registry{presets: make(map[string]Preset, len(builtins))}
	for name, fn := range builtins {
		r.presets[name] = fn
	}
	return r
}

// Register adds or replaces a preset.
func (r *Registry) Register(name string, fn Preset) error {
	if name == "" || fn == nil {
		return fmt.Errorf("invalid preset %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presets[name] = fn
	return nil
}

// Lookup returns the preset registered under name.
func (r *Registry) Lookup(name string) (Preset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.presets[name]
	return fn, ok
}

// Presets returns the registered preset names, sorted.
func (r *Registry) Presets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.presets))
	for name := range r.presets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// State is the externally controlled animation setting.
type State struct {
	Enabled bool    `json:"enabled"`
	Preset  string  `json:"preset"`
	Speed   float64 `json:"speed"`
}

// Validate checks the speed multiplier.
func (s State) Validate() error {
	if !(s.Speed > 0) {
		return fmt.Errorf("%w: %v", ErrBadSpeed, s.Speed)
	}
	return nil
}

// Apply evaluates the state's preset at elapsed seconds. It reports whether
// a preset ran; disabled states and unknown presets leave tr untouched.
func Apply(reg *Registry, s State, tr *scene.Transform, elapsed float64) bool {
	if !s.Enabled || tr == nil {
		return false
	}
	fn, ok := reg.Lookup(s.Preset)
	if !ok {
		return false
	}
	fn(tr, elapsed*s.Speed)
	return true
}
