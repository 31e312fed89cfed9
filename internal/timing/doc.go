// Package timing maintains a per-renderer cost model used to decide how a
// frame is rendered.
//
// A [Tracker] records the wall time of every render call, keyed by renderer
// name, and keeps either an exponential moving average or a simple moving
// average over a fixed window. [Tracker.Estimate] sums the averages for a
// renderer stack and reports whether every renderer has history; a stack
// with any cold renderer must be treated conservatively.
//
//	tracker := timing.NewTracker(timing.WithAlpha(0.2))
//	tracker.Record("plasma", 3*time.Millisecond)
//	total, ok := tracker.Estimate([]string{"plasma", "text"})
//
// All types in this package are safe for concurrent use.
package timing
