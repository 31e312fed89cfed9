package planner

import (
	"fmt"
	"time"

	"github.com/Iron-Ham/prism/internal/timing"
)

// Variant is how renderers are executed within a frame.
type Variant string

const (
	// VariantIterative runs renderers one after another on the caller.
	VariantIterative Variant = "iterative"

	// VariantBinary dispatches renderers to the worker pool.
	VariantBinary Variant = "binary"
)

// String returns the string representation of the variant.
func (v Variant) String() string {
	return string(v)
}

// Merge is how renderer surfaces are composed.
type Merge string

const (
	// MergeInPlace folds surfaces left to right into one accumulator.
	MergeInPlace Merge = "in_place"

	// MergeBatched merges surfaces pairwise as a balanced tree.
	MergeBatched Merge = "batched"
)

// String returns the string representation of the merge strategy.
func (m Merge) String() string {
	return string(m)
}

// ParseVariant converts a flag or config value to a Variant.
// The empty string and "auto" yield nil.
func ParseVariant(s string) (*Variant, error) {
	switch s {
	case "", "auto":
		return nil, nil
	case string(VariantIterative), string(VariantBinary):
		v := Variant(s)
		return &v, nil
	default:
		return nil, fmt.Errorf("unknown execution variant %q", s)
	}
}

// ParseMerge converts a flag or config value to a Merge.
// The empty string and "auto" yield nil.
func ParseMerge(s string) (*Merge, error) {
	switch s {
	case "", "auto":
		return nil, nil
	case string(MergeInPlace), string(MergeBatched):
		m := Merge(s)
		return &m, nil
	default:
		return nil, fmt.Errorf("unknown merge strategy %q", s)
	}
}

// Plan is the execution and merge choice for one frame.
type Plan struct {
	Variant Variant `json:"variant"`
	Merge   Merge   `json:"merge"`
}

// Conservative is the plan used for small or unmeasured stacks.
var Conservative = Plan{Variant: VariantIterative, Merge: MergeInPlace}

// Thresholds gate the upgrade to the aggressive option on each axis.
// A cost threshold of zero upgrades on count alone.
type Thresholds struct {
	ParallelCount  int     `json:"parallel_renderer_count_threshold"`
	ParallelCostMs float64 `json:"parallel_cost_threshold_ms"`
	MergeCount     int     `json:"merge_surface_count_threshold"`
	MergeCostMs    float64 `json:"merge_cost_threshold_ms"`
}

// DefaultThresholds returns the thresholds used when none are configured.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ParallelCount:  4,
		ParallelCostMs: 8,
		MergeCount:     4,
		MergeCostMs:    4,
	}
}

// Override forces one or both axes. The zero value is full auto.
type Override struct {
	Variant *Variant
	Merge   *Merge
}

// IsAuto reports whether the override forces nothing.
func (o Override) IsAuto() bool {
	return o.Variant == nil && o.Merge == nil
}

// Key returns a stable string for cache keys.
func (o Override) Key() string {
	v, m := "auto", "auto"
	if o.Variant != nil {
		v = string(*o.Variant)
	}
	if o.Merge != nil {
		m = string(*o.Merge)
	}
	return v + "/" + m
}

// ForceVariant returns an override pinning only the execution variant.
func ForceVariant(v Variant) Override {
	return Override{Variant: &v}
}

// ForceMerge returns an override pinning only the merge strategy.
func ForceMerge(m Merge) Override {
	return Override{Merge: &m}
}

// Estimate is the cost model input to a decision.
type Estimate struct {
	TotalMs    float64 `json:"total_ms"`
	HasSamples bool    `json:"has_samples"`
}

// Observation is the side-channel record of a decision. It is produced for
// logging and inspection and is never read back by Decide.
type Observation struct {
	At         time.Time       `json:"at"`
	Renderers  []string        `json:"renderers"`
	Plan       Plan            `json:"plan"`
	Estimate   Estimate        `json:"estimate"`
	Thresholds Thresholds      `json:"thresholds"`
	Override   string          `json:"override"`
	Timing     timing.Snapshot `json:"timing"`
	Reasons    []string        `json:"reasons"`
	Cached     bool            `json:"cached"`
}
