package planner

import (
	"strings"
	"testing"
	"time"

	"github.com/Iron-Ham/prism/internal/timing"
)

func TestDecide_Variant(t *testing.T) {
	th := Thresholds{ParallelCount: 4, ParallelCostMs: 10, MergeCount: 100, MergeCostMs: 0}

	tests := []struct {
		name  string
		count int
		est   Estimate
		th    Thresholds
		want  Variant
	}{
		{"below count ignores cost", 3, Estimate{TotalMs: 1000, HasSamples: true}, th, VariantIterative},
		{"above count cold start", 5, Estimate{TotalMs: 1000, HasSamples: false}, th, VariantIterative},
		{"above count cheap", 5, Estimate{TotalMs: 9.9, HasSamples: true}, th, VariantIterative},
		{"above count at cost", 5, Estimate{TotalMs: 10, HasSamples: true}, th, VariantBinary},
		{"at count expensive", 4, Estimate{TotalMs: 50, HasSamples: true}, th, VariantBinary},
		{
			"zero cost threshold upgrades cold",
			5,
			Estimate{},
			Thresholds{ParallelCount: 4, ParallelCostMs: 0, MergeCount: 100},
			VariantBinary,
		},
		{
			"zero cost threshold still respects count",
			3,
			Estimate{},
			Thresholds{ParallelCount: 4, ParallelCostMs: 0, MergeCount: 100},
			VariantIterative,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.count, tt.est, tt.th, Override{})
			if got.Variant != tt.want {
				t.Errorf("Variant = %s, want %s", got.Variant, tt.want)
			}
		})
	}
}

func TestDecide_MergeIsIndependent(t *testing.T) {
	th := Thresholds{ParallelCount: 10, ParallelCostMs: 5, MergeCount: 2, MergeCostMs: 3}
	est := Estimate{TotalMs: 4, HasSamples: true}

	got := Decide(3, est, th, Override{})
	want := Plan{Variant: VariantIterative, Merge: MergeBatched}
	if got != want {
		t.Errorf("Decide = %+v, want %+v", got, want)
	}
}

func TestDecide_Override(t *testing.T) {
	th := DefaultThresholds()
	hot := Estimate{TotalMs: 100, HasSamples: true}

	tests := []struct {
		name  string
		count int
		ov    Override
		want  Plan
	}{
		{"force binary small stack", 1, ForceVariant(VariantBinary), Plan{VariantBinary, MergeInPlace}},
		{"force iterative hot stack", 10, ForceVariant(VariantIterative), Plan{VariantIterative, MergeBatched}},
		{"force merge only", 10, ForceMerge(MergeInPlace), Plan{VariantBinary, MergeInPlace}},
		{"auto", 10, Override{}, Plan{VariantBinary, MergeBatched}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.count, hot, th, tt.ov); got != tt.want {
				t.Errorf("Decide = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestObserve(t *testing.T) {
	tr := timing.NewTracker()
	tr.RecordMs("a", 2)
	names := []string{"a", "b"}
	total, ok := tr.Estimate(names)
	est := Estimate{TotalMs: total, HasSamples: ok}
	now := time.Unix(1700000000, 0)

	obs := Observe(names, est, DefaultThresholds(), Override{}, tr.Snapshot(names), now)

	if obs.Plan != Decide(len(names), est, DefaultThresholds(), Override{}) {
		t.Errorf("Observe plan %+v differs from Decide", obs.Plan)
	}
	if len(obs.Reasons) != 2 || !strings.HasPrefix(obs.Reasons[0], "variant:") {
		t.Errorf("Reasons = %v", obs.Reasons)
	}
	if len(obs.Timing.Missing) != 1 || obs.Timing.Missing[0] != "b" {
		t.Errorf("Timing.Missing = %v", obs.Timing.Missing)
	}
	if obs.Override != "auto/auto" || !obs.At.Equal(now) {
		t.Errorf("Override = %q At = %v", obs.Override, obs.At)
	}

	names[0] = "mutated"
	if obs.Renderers[0] != "a" {
		t.Error("Observation shares the caller's slice")
	}
}

func TestParseOverrides(t *testing.T) {
	v, err := ParseVariant("binary")
	if err != nil || v == nil || *v != VariantBinary {
		t.Errorf("ParseVariant(binary) = %v, %v", v, err)
	}
	if v, err := ParseVariant("auto"); v != nil || err != nil {
		t.Errorf("ParseVariant(auto) = %v, %v", v, err)
	}
	if _, err := ParseVariant("threads"); err == nil {
		t.Error("ParseVariant(threads) should fail")
	}

	m, err := ParseMerge("in_place")
	if err != nil || m == nil || *m != MergeInPlace {
		t.Errorf("ParseMerge(in_place) = %v, %v", m, err)
	}
	if _, err := ParseMerge("zip"); err == nil {
		t.Error("ParseMerge(zip) should fail")
	}

	if key := (Override{Variant: v, Merge: m}).Key(); key != "binary/in_place" {
		t.Errorf("Key() = %q", key)
	}
}
