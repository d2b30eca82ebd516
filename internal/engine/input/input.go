// Package input turns SDL2 events into viewer actions.
package input

import (
	"github.com/veandco/go-sdl2/sdl"

	"github.com/Faultbox/garment-studio/internal/engine/camera"
)

// EventType classifies a processed event.
type EventType int

const (
	EventNone EventType = iota
	EventQuit
	EventWindowResize
	EventKeyDown
	EventMouseMove
	EventMouseDown
	EventMouseUp
	EventWheel
)

// Event represents a processed input event.
type Event struct {
	Type   EventType
	Key    sdl.Scancode
	Width  int
	Height int
	MouseX int
	MouseY int
	DeltaX int
	DeltaY int
	Button uint8
	Wheel  float32
}

// Input polls SDL and drives the orbit camera with the left mouse button
// and the scroll wheel.
type Input struct {
	events   []Event
	dragging bool
}

// New creates a new input handler.
func New() *Input {
	return &Input{events: make([]Event, 0, 16)}
}

// Update polls SDL events. It returns true when the viewer should quit.
func (i *Input) Update() bool {
	i.events = i.events[:0]

	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			i.events = append(i.events, Event{Type: EventQuit})
			return true

		case *sdl.WindowEvent:
			if e.Event == sdl.WINDOWEVENT_SIZE_CHANGED {
				i.events = append(i.events, Event{Type: EventWindowResize, Width: int(e.Data1), Height: int(e.Data2)})
			}

		case *sdl.KeyboardEvent:
			if e.Type != sdl.KEYDOWN {
				continue
			}
			if e.Keysym.Scancode == sdl.SCANCODE_ESCAPE {
				i.events = append(i.events, Event{Type: EventQuit})
				return true
			}
			i.events = append(i.events, Event{Type: EventKeyDown, Key: e.Keysym.Scancode})

		case *sdl.MouseMotionEvent:
			i.events = append(i.events, Event{
				Type:   EventMouseMove,
				MouseX: int(e.X),
				MouseY: int(e.Y),
				DeltaX: int(e.XRel),
				DeltaY: int(e.YRel),
			})

		case *sdl.MouseButtonEvent:
			typ := EventMouseUp
			if e.Type == sdl.MOUSEBUTTONDOWN {
				typ = EventMouseDown
			}
			i.events = append(i.events, Event{Type: typ, MouseX: int(e.X), MouseY: int(e.Y), Button: e.Button})

		case *sdl.MouseWheelEvent:
			i.events = append(i.events, Event{Type: EventWheel, Wheel: float32(e.Y)})
		}
	}

	return false
}

// Events returns the events from the last Update.
func (i *Input) Events() []Event {
	return i.events
}

// Orbit applies this frame's drag and wheel events to cam.
func (i *Input) Orbit(cam *camera.OrbitCamera) {
	for _, e := range i.events {
		switch e.Type {
		case EventMouseDown:
			i.dragging = i.dragging || e.Button == sdl.BUTTON_LEFT
		case EventMouseUp:
			if e.Button == sdl.BUTTON_LEFT {
				i.dragging = false
			}
		case EventMouseMove:
			if i.dragging {
				cam.HandleDrag(float32(e.DeltaX), float32(e.DeltaY))
			}
		case EventWheel:
			cam.HandleZoom(e.Wheel)
		}
	}
}

// IsKeyPressed checks if a specific key was pressed this frame.
func (i *Input) IsKeyPressed(scancode sdl.Scancode) bool {
	for _, e := range i.events {
		if e.Type == EventKeyDown && e.Key == scancode {
			return true
		}
	}
	return false
}
