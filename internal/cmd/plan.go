package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Iron-Ham/prism/internal/config"
	"github.com/Iron-Ham/prism/internal/planner"
	"github.com/Iron-Ham/prism/internal/timing"
	"github.com/Iron-Ham/prism/internal/util"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show which render plan each stack size would get",
	Long: `Dry-run the render planner over synthetic timings.

For every stack size from 1 to --renderers, each renderer is assumed to
cost --cost milliseconds. The table shows the plan the configured
thresholds produce and why. Use --cold to see the decision before any
renderer has been timed.`,
	RunE: runPlan,
}

var (
	planRenderers int
	planCost      float64
	planCold      bool
	planVariant   string
	planMerge     string
	planWidth     int
)

func init() {
	planCmd.Flags().IntVarP(&planRenderers, "renderers", "n", 8, "Largest stack size to plan")
	planCmd.Flags().Float64Var(&planCost, "cost", 2, "Assumed cost of each renderer in milliseconds")
	planCmd.Flags().BoolVar(&planCold, "cold", false, "Plan without timing samples")
	planCmd.Flags().StringVar(&planVariant, "variant", "auto", "Force the execution variant (auto, iterative, binary)")
	planCmd.Flags().StringVar(&planMerge, "merge", "auto", "Force the merge strategy (auto, in_place, batched)")
	planCmd.Flags().IntVar(&planWidth, "width", 120, "Maximum line width")
	rootCmd.AddCommand(planCmd)
}

var (
	planHeaderStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	planUpgradeCell = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	planPlainCell   = lipgloss.NewStyle()
)

// planRow is one line of the plan table.
type planRow struct {
	count   int
	totalMs float64
	sampled bool
	plan    planner.Plan
	reasons []string
}

func runPlan(cmd *cobra.Command, args []string) error {
	if planRenderers < 1 {
		return fmt.Errorf("--renderers must be at least 1")
	}
	if planCost < 0 {
		return fmt.Errorf("--cost must be non-negative")
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	ov, err := parseOverride(planVariant, planMerge)
	if err != nil {
		return err
	}

	rows := simulatePlans(cfg.Render.Thresholds(), ov, planRenderers, planCost, !planCold)
	writePlanTable(cmd.OutOrStdout(), cfg.Render.Thresholds(), ov, rows, planWidth)
	return nil
}

// simulatePlans plans stacks of 1..n renderers of equal cost.
func simulatePlans(th planner.Thresholds, ov planner.Override, n int, costMs float64, sampled bool) []planRow {
	tracker := timing.NewTracker()
	names := make([]string, 0, n)
	rows := make([]planRow, 0, n)
	now := time.Now()

	for i := range n {
		name := fmt.Sprintf("renderer-%d", i+1)
		names = append(names, name)
		if sampled {
			tracker.RecordMs(name, costMs)
		}

		total, has := tracker.Estimate(names)
		est := planner.Estimate{TotalMs: total, HasSamples: has}
		obs := planner.Observe(names, est, th, ov, tracker.Snapshot(names), now)
		rows = append(rows, planRow{
			count:   len(names),
			totalMs: total,
			sampled: has,
			plan:    obs.Plan,
			reasons: obs.Reasons,
		})
	}
	return rows
}

func writePlanTable(w io.Writer, th planner.Thresholds, ov planner.Override, rows []planRow, width int) {
	fmt.Fprintf(w, "Thresholds: parallel count=%d cost=%.1fms, merge count=%d cost=%.1fms; override %s\n\n",
		th.ParallelCount, th.ParallelCostMs, th.MergeCount, th.MergeCostMs, ov.Key())

	cols := []int{6, 10, 10, 9, 0}
	header := []string{"COUNT", "EST MS", "VARIANT", "MERGE", "REASONS"}
	var sb strings.Builder
	for i, h := range header {
		sb.WriteString(cell(planHeaderStyle, h, cols[i]))
	}
	fmt.Fprintln(w, util.TruncateANSI(sb.String(), width))

	for _, row := range rows {
		est := "cold"
		if row.sampled {
			est = fmt.Sprintf("%.1f", row.totalMs)
		}

		variantStyle, mergeStyle := planPlainCell, planPlainCell
		if row.plan.Variant == planner.VariantBinary {
			variantStyle = planUpgradeCell
		}
		if row.plan.Merge == planner.MergeBatched {
			mergeStyle = planUpgradeCell
		}

		sb.Reset()
		sb.WriteString(cell(planPlainCell, fmt.Sprint(row.count), cols[0]))
		sb.WriteString(cell(planPlainCell, est, cols[1]))
		sb.WriteString(cell(variantStyle, string(row.plan.Variant), cols[2]))
		sb.WriteString(cell(mergeStyle, string(row.plan.Merge), cols[3]))
		sb.WriteString(strings.Join(row.reasons, "; "))
		fmt.Fprintln(w, util.TruncateANSI(sb.String(), width))
	}
}

// cell renders s in style, padded to width columns plus a gutter. A zero
// width leaves s unpadded.
func cell(style lipgloss.Style, s string, width int) string {
	if width > 0 {
		style = style.Width(width)
	}
	return style.Render(s) + " "
}
