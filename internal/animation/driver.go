package animation

import "github.com/Faultbox/garment-studio/internal/scene"

// Phase is the driver state.
type Phase int

// Driver phases.
const (
	Idle Phase = iota
	Playing
)

func (p Phase) String() string {
	if p == Playing {
		return "playing"
	}
	return "idle"
}

// Driver owns the animation state and applies it once per frame.
// Stopping leaves the transform where the last frame put it.
type Driver struct {
	reg   *Registry
	state State
}

// NewDriver creates an idle driver. A nil registry uses the built-ins.
func NewDriver(reg *Registry) *Driver {
	if reg == nil {
		reg = NewRegistry()
	}
	return &Driver{reg: reg, state: State{Preset: RotateY, Speed: 1}}
}

// Registry returns the preset registry.
func (d *Driver) Registry() *Registry {
	return d.reg
}

// Set replaces the state. Enabling moves Idle to Playing, disabling moves
// back. A preset switch takes effect on the next Update.
func (d *Driver) Set(s State) error {
	if err := s.Validate(); err != nil {
		return err
	}
	d.state = s
	return nil
}

// State returns the current state.
func (d *Driver) State() State {
	return d.state
}

// Phase reports whether the driver is playing.
func (d *Driver) Phase() Phase {
	if d.state.Enabled {
		return Playing
	}
	return Idle
}

// Update applies the current preset to tr at elapsed seconds.
func (d *Driver) Update(tr *scene.Transform, elapsed float64) bool {
	return Apply(d.reg, d.state, tr, elapsed)
}
