package render

import (
	"fmt"
	"time"
)

// Target describes the surface a renderer must produce.
type Target struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Orientation is the physical rotation of the display in degrees.
type Orientation int

// Supported orientations.
const (
	Rotate0   Orientation = 0
	Rotate90  Orientation = 90
	Rotate180 Orientation = 180
	Rotate270 Orientation = 270
)

// ParseOrientation validates a rotation in degrees.
func ParseOrientation(deg int) (Orientation, error) {
	switch o := Orientation(deg); o {
	case Rotate0, Rotate90, Rotate180, Rotate270:
		return o, nil
	default:
		return 0, fmt.Errorf("orientation must be 0, 90, 180 or 270, got %d", deg)
	}
}

// Layout carries display geometry that renderers may adapt to.
type Layout struct {
	Orientation Orientation `json:"orientation"`
}

// Tick marks the frame being rendered.
type Tick struct {
	Frame uint64
	Time  time.Time
	Delta time.Duration
}

// Renderer produces one surface per frame. Returning a nil surface and a
// nil error declines to draw for that frame. Surfaces must match the target
// size. A renderer is never called concurrently with itself by the
// pipeline.
type Renderer interface {
	Name() string
	Render(target Target, tick Tick, layout Layout) (*Surface, error)
}

// RendererFunc adapts a named function to the Renderer interface.
type RendererFunc struct {
	ID string
	Fn func(target Target, tick Tick, layout Layout) (*Surface, error)
}

// Name returns the renderer name.
func (r RendererFunc) Name() string { return r.ID }

// Render calls the wrapped function.
func (r RendererFunc) Render(target Target, tick Tick, layout Layout) (*Surface, error) {
	return r.Fn(target, tick, layout)
}

// Names returns the names of renderers in stack order.
func Names(renderers []Renderer) []string {
	names := make([]string, len(renderers))
	for i, r := range renderers {
		names[i] = r.Name()
	}
	return names
}
