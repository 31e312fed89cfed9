package planner

import (
	"fmt"
	"slices"
	"time"

	"github.com/Iron-Ham/prism/internal/timing"
)

// Decide chooses a plan for a stack of count renderers. It is a pure
// function: the same inputs always produce the same plan.
//
// Each axis starts conservative. At or above its count threshold it
// upgrades when the cost threshold is zero, or when every renderer has
// history and the estimate meets the cost threshold. An override wins on
// the axis it names.
func Decide(count int, est Estimate, th Thresholds, ov Override) Plan {
	plan, _ := explain(count, est, th, ov)
	return plan
}

// Observe builds the side-channel record for a decision. The timing
// snapshot is attached for inspection only.
func Observe(names []string, est Estimate, th Thresholds, ov Override, snap timing.Snapshot, now time.Time) Observation {
	plan, reasons := explain(len(names), est, th, ov)
	return Observation{
		At:         now,
		Renderers:  slices.Clone(names),
		Plan:       plan,
		Estimate:   est,
		Thresholds: th,
		Override:   ov.Key(),
		Timing:     snap,
		Reasons:    reasons,
	}
}

func explain(count int, est Estimate, th Thresholds, ov Override) (Plan, []string) {
	plan := Conservative
	reasons := make([]string, 0, 2)

	if ov.Variant != nil {
		plan.Variant = *ov.Variant
		reasons = append(reasons, "variant: override "+string(*ov.Variant))
	} else {
		upgrade, why := axis("variant", count, est, th.ParallelCount, th.ParallelCostMs)
		if upgrade {
			plan.Variant = VariantBinary
		}
		reasons = append(reasons, why)
	}

	if ov.Merge != nil {
		plan.Merge = *ov.Merge
		reasons = append(reasons, "merge: override "+string(*ov.Merge))
	} else {
		upgrade, why := axis("merge", count, est, th.MergeCount, th.MergeCostMs)
		if upgrade {
			plan.Merge = MergeBatched
		}
		reasons = append(reasons, why)
	}

	return plan, reasons
}

func axis(label string, count int, est Estimate, countThreshold int, costThreshold float64) (bool, string) {
	switch {
	case count < countThreshold:
		return false, fmt.Sprintf("%s: %d renderers below count threshold %d", label, count, countThreshold)
	case costThreshold == 0:
		return true, fmt.Sprintf("%s: count %d >= %d with no cost threshold", label, count, countThreshold)
	case !est.HasSamples:
		return false, fmt.Sprintf("%s: cold start, renderer history incomplete", label)
	case est.TotalMs >= costThreshold:
		return true, fmt.Sprintf("%s: estimated %.2fms >= %.2fms", label, est.TotalMs, costThreshold)
	default:
		return false, fmt.Sprintf("%s: estimated %.2fms below %.2fms", label, est.TotalMs, costThreshold)
	}
}
