package demo

import (
	"math"

	"github.com/Iron-Ham/prism/internal/event"
	"github.com/Iron-Ham/prism/internal/render"
	"github.com/Iron-Ham/prism/internal/virtual"
)

// Background fills the whole panel with c.
func Background(c render.Color) render.Renderer {
	return render.RendererFunc{ID: "background", Fn: func(t render.Target, _ render.Tick, _ render.Layout) (*render.Surface, error) {
		return render.NewSurface(t.Width, t.Height).Fill(c), nil
	}}
}

// Rainbow draws a horizontal hue gradient that scrolls one full turn per
// period frames.
func Rainbow(period uint64) render.Renderer {
	if period == 0 {
		period = 1
	}
	return render.RendererFunc{ID: "rainbow", Fn: func(t render.Target, tick render.Tick, _ render.Layout) (*render.Surface, error) {
		s := render.NewSurface(t.Width, t.Height)
		shift := float64(tick.Frame%period) / float64(period)
		for x := range t.Width {
			hue := math.Mod(float64(x)/float64(max(t.Width, 1))+shift, 1)
			c := hsv(hue, 1, 0.6)
			for y := range t.Height {
				s.Set(x, y, c)
			}
		}
		return s, nil
	}}
}

// LevelBar draws a bottom-aligned bar whose height follows the latest
// value of eventType, mapped from [lo, hi] onto the panel height. It
// declines until the event has been seen.
func LevelBar(name string, store *event.StateStore, eventType string, lo, hi float64, c render.Color) render.Renderer {
	return render.RendererFunc{ID: name, Fn: func(t render.Target, _ render.Tick, _ render.Layout) (*render.Surface, error) {
		entry, ok := store.Latest(eventType)
		if !ok {
			return nil, nil
		}
		v, ok := virtual.ToFloat(entry.Data)
		if !ok || hi <= lo {
			return nil, nil
		}
		frac := math.Min(math.Max((v-lo)/(hi-lo), 0), 1)
		rows := int(math.Round(frac * float64(t.Height)))

		s := render.NewSurface(t.Width, t.Height)
		for y := t.Height - rows; y < t.Height; y++ {
			for x := range t.Width {
				s.Set(x, y, c)
			}
		}
		return s, nil
	}}
}

// hsv converts hue, saturation and value in [0, 1] to an opaque color.
func hsv(h, s, v float64) render.Color {
	i := math.Floor(h * 6)
	f := h*6 - i
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)

	var r, g, b float64
	switch int(i) % 6 {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}
	return render.RGB(uint8(r*255), uint8(g*255), uint8(b*255))
}
