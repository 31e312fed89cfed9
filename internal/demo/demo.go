package demo

import (
	"fmt"
	"time"

	"github.com/Iron-Ham/prism/internal/event"
	"github.com/Iron-Ham/prism/internal/render"
	"github.com/Iron-Ham/prism/internal/runtime"
	"github.com/Iron-Ham/prism/internal/virtual"
)

// Event types derived by the demo virtual peripherals.
const (
	EventTemp     = "sensor.temp"
	EventHumidity = "sensor.humidity"
	EventComfort  = "derived.comfort"
	EventLevel    = "derived.level"
	EventPeak     = "derived.peak"
)

// Definitions returns the virtual peripherals of the demo scene.
func Definitions() []virtual.Definition {
	return []virtual.Definition{
		{
			Name:    "temp",
			Sources: []string{EventReport},
			Factory: virtual.JSONField(EventTemp, "temp"),
		},
		{
			Name:    "humidity",
			Sources: []string{EventReport},
			Factory: virtual.JSONField(EventHumidity, "humidity"),
		},
		{
			// Apparent temperature, rounded so small drifts do not re-emit.
			Name:    "comfort",
			Sources: []string{EventTemp, EventHumidity},
			Factory: virtual.CombineLatest("derived.comfort.raw", []string{EventTemp, EventHumidity}, Comfort),
		},
		{
			Name:    "comfort-distinct",
			Sources: []string{"derived.comfort.raw"},
			Factory: virtual.DistinctUntilChanged(EventComfort, nil),
		},
		{
			// Map the wave from [-1, 1] to [0, 1].
			Name:    "level",
			Sources: []string{EventWave},
			Factory: virtual.Calibrate(EventLevel, 0.5, 0.5),
		},
		{
			Name:    "peak",
			Sources: []string{EventLevel},
			Factory: virtual.Scan(EventPeak, 0.0, func(acc any, in event.Input) any {
				v, _ := virtual.ToFloat(in.Data)
				return max(acc.(float64)*0.98, v)
			}),
		},
	}
}

// Comfort is a crude apparent temperature: humid air feels warmer. The
// result is rounded to half a degree.
func Comfort(latest map[string]any) any {
	temp, _ := virtual.ToFloat(latest[EventTemp])
	humidity, _ := virtual.ToFloat(latest[EventHumidity])
	apparent := temp + 0.05*(humidity-40)
	return float64(int(apparent*2+0.5)) / 2
}

// Install adds the demo peripherals, virtual peripherals and renderer stack
// to rt.
func Install(rt *runtime.Runtime) error {
	peripherals := []runtime.Peripheral{
		Oscillator{ID: "oscillator", EventType: EventWave, Period: 4 * time.Second, Interval: 50 * time.Millisecond},
		Climate{ID: "climate", Interval: time.Second},
	}
	for _, p := range peripherals {
		if _, err := rt.AddPeripheral(p); err != nil {
			return fmt.Errorf("demo peripheral %s: %w", p.Name(), err)
		}
	}
	for _, def := range Definitions() {
		if err := rt.Registry().Register(def); err != nil {
			return err
		}
	}

	store := rt.Bus().Store()
	rt.SetRenderers([]render.Renderer{
		Background(render.RGB(4, 4, 12)),
		Rainbow(240),
		LevelBar("level", store, EventLevel, 0, 1, render.RGB(255, 255, 255)),
		LevelBar("comfort", store, EventComfort, 16, 30, render.RGB(255, 96, 0)),
	})
	return nil
}
