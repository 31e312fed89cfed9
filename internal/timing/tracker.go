package timing

import (
	"fmt"
	"slices"
	"sync"
	"time"
)

// Strategy selects how a renderer's average cost is maintained.
type Strategy string

const (
	// StrategyEMA keeps an exponential moving average seeded with the
	// first observed duration.
	StrategyEMA Strategy = "ema"

	// StrategySMA keeps the arithmetic mean of the most recent samples.
	StrategySMA Strategy = "sma"
)

// Default tracker values.
const (
	DefaultAlpha  = 0.2
	DefaultWindow = 30
)

// ParseStrategy converts a configuration string to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyEMA, StrategySMA:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("unknown timing strategy %q", s)
	}
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithStrategy sets the averaging strategy.
func WithStrategy(s Strategy) Option {
	return func(t *Tracker) { t.strategy = s }
}

// WithAlpha sets the EMA smoothing factor. Values outside (0, 1] are
// ignored.
func WithAlpha(alpha float64) Option {
	return func(t *Tracker) {
		if alpha > 0 && alpha <= 1 {
			t.alpha = alpha
		}
	}
}

// WithWindow sets the SMA window size. Non-positive values are ignored.
func WithWindow(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.window = n
		}
	}
}

type series struct {
	last    float64
	average float64
	count   int

	// ring holds the SMA window; unused under EMA.
	ring []float64
	next int
	sum  float64
}

// Tracker keeps a per-renderer cost model. Samples are never discarded
// automatically; only Reset clears a renderer's history.
// It is safe for concurrent use.
type Tracker struct {
	mu       sync.RWMutex
	strategy Strategy
	alpha    float64
	window   int
	series   map[string]*series
}

// NewTracker creates a Tracker. Unset options use an EMA with DefaultAlpha.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		strategy: StrategyEMA,
		alpha:    DefaultAlpha,
		window:   DefaultWindow,
		series:   make(map[string]*series),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Strategy returns the averaging strategy in use.
func (t *Tracker) Strategy() Strategy { return t.strategy }

// Record adds a duration sample for the named renderer.
func (t *Tracker) Record(name string, d time.Duration) {
	t.RecordMs(name, float64(d)/float64(time.Millisecond))
}

// RecordMs adds a sample expressed in milliseconds.
func (t *Tracker) RecordMs(name string, ms float64) {
	if ms < 0 {
		ms = 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.series[name]
	if !ok {
		s = &series{}
		if t.strategy == StrategySMA {
			s.ring = make([]float64, 0, t.window)
		}
		t.series[name] = s
	}

	s.last = ms
	s.count++

	if t.strategy == StrategySMA {
		if len(s.ring) < t.window {
			s.ring = append(s.ring, ms)
		} else {
			s.sum -= s.ring[s.next]
			s.ring[s.next] = ms
			s.next = (s.next + 1) % t.window
		}
		s.sum += ms
		s.average = s.sum / float64(len(s.ring))
		return
	}

	if s.count == 1 {
		s.average = ms
		return
	}
	s.average = t.alpha*ms + (1-t.alpha)*s.average
}

// Estimate sums the current averages of names. hasSamples is false when
// any renderer has no history, in which case total covers only the
// renderers that do and must not be trusted.
func (t *Tracker) Estimate(names []string) (totalMs float64, hasSamples bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	hasSamples = true
	for _, name := range names {
		s, ok := t.series[name]
		if !ok {
			hasSamples = false
			continue
		}
		totalMs += s.average
	}
	return totalMs, hasSamples
}

// Average returns the current average for name.
func (t *Tracker) Average(name string) (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.series[name]
	if !ok {
		return 0, false
	}
	return s.average, true
}

// Reset discards the history of name.
func (t *Tracker) Reset(name string) {
	t.mu.Lock()
	delete(t.series, name)
	t.mu.Unlock()
}

// Names returns every renderer with history, sorted.
func (t *Tracker) Names() []string {
	t.mu.RLock()
	names := make([]string, 0, len(t.series))
	for name := range t.series {
		names = append(names, name)
	}
	t.mu.RUnlock()
	slices.Sort(names)
	return names
}
