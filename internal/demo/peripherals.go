package demo

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Iron-Ham/prism/internal/runtime"
)

// Event types produced by the demo peripherals.
const (
	EventWave   = "demo.wave"
	EventReport = "sensor.report"
)

// Oscillator emits sin(2πt/Period) on EventType every Interval.
type Oscillator struct {
	ID        string
	EventType string
	Period    time.Duration
	Interval  time.Duration
}

// Name returns the peripheral name.
func (o Oscillator) Name() string { return o.ID }

// Run emits samples until ctx is done.
func (o Oscillator) Run(ctx context.Context, emit runtime.Emitter) error {
	ticker := time.NewTicker(o.Interval)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			emit.Emit(o.EventType, Wave(now.Sub(start), o.Period))
		}
	}
}

// Wave returns sin(2π·elapsed/period), in [-1, 1].
func Wave(elapsed, period time.Duration) float64 {
	if period <= 0 {
		return 0
	}
	return math.Sin(2 * math.Pi * float64(elapsed) / float64(period))
}

// Climate reports temperature and humidity as a JSON document every
// Interval, the way many serial sensors do.
type Climate struct {
	ID       string
	Interval time.Duration
}

// Name returns the peripheral name.
func (c Climate) Name() string { return c.ID }

// Run emits reports until ctx is done.
func (c Climate) Run(ctx context.Context, emit runtime.Emitter) error {
	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			emit.Emit(EventReport, Report(now.Sub(start)))
		}
	}
}

// Report builds the climate document for a point in time. Temperature
// drifts between 18 and 26 °C over ten minutes; humidity between 30 and 60 %.
func Report(elapsed time.Duration) []byte {
	temp := 22 + 4*Wave(elapsed, 10*time.Minute)
	humidity := 45 + 15*Wave(elapsed, 7*time.Minute)
	return fmt.Appendf(nil, `{"temp":%.2f,"humidity":%.1f,"unit":"C"}`, temp, humidity)
}
