package render

import (
	"context"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	perrors "github.com/Iron-Ham/prism/internal/errors"
	"github.com/Iron-Ham/prism/internal/logging"
	"github.com/Iron-Ham/prism/internal/planner"
	"github.com/Iron-Ham/prism/internal/timing"
)

// DefaultMaxWorkers is the pool bound used when none is configured.
const DefaultMaxWorkers = 4

// Observer receives every fresh planning decision.
type Observer func(planner.Observation)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithThresholds sets the planner thresholds.
func WithThresholds(th planner.Thresholds) Option {
	return func(p *Pipeline) { p.thresholds = th }
}

// WithMaxWorkers bounds the worker pool.
func WithMaxWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxWorkers = n
		}
	}
}

// WithPlanRefresh sets how long a cached plan stays valid. Zero disables
// caching.
func WithPlanRefresh(d time.Duration) Option {
	return func(p *Pipeline) { p.planRefresh = d }
}

// WithLogger sets the pipeline logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Pipeline) { p.logger = l.WithComponent("render") }
}

// WithObserver registers a callback for planning decisions.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// Stats holds pipeline counters.
type Stats struct {
	Frames    uint64 `json:"frames"`
	Empty     uint64 `json:"empty"`
	Declined  uint64 `json:"declined"`
	Failures  uint64 `json:"failures"`
	PlanHits  uint64 `json:"plan_cache_hits"`
	PlanMiss  uint64 `json:"plan_cache_misses"`
	Iterative uint64 `json:"iterative"`
	Binary    uint64 `json:"binary"`
}

type cachedPlan struct {
	obs     planner.Observation
	expires time.Time
}

// Pipeline renders a stack of renderers into one composed surface per
// frame, choosing serial or pooled execution and the merge strategy from
// the live cost model.
//
// Render may be called from several goroutines, but the frame loop
// normally calls it from one.
type Pipeline struct {
	target      Target
	tracker     *timing.Tracker
	thresholds  planner.Thresholds
	maxWorkers  int
	planRefresh time.Duration
	logger      *logging.Logger
	observer    Observer
	now         func() time.Time

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
	workers  *workers
	cache    map[string]cachedPlan
	lastObs  *planner.Observation

	frames    atomic.Uint64
	empty     atomic.Uint64
	declined  atomic.Uint64
	failures  atomic.Uint64
	planHits  atomic.Uint64
	planMiss  atomic.Uint64
	iterative atomic.Uint64
	binary    atomic.Uint64
}

// NewPipeline creates a pipeline drawing surfaces of size target and
// recording renderer costs into tracker.
func NewPipeline(target Target, tracker *timing.Tracker, opts ...Option) *Pipeline {
	p := &Pipeline{
		target:     target,
		tracker:    tracker,
		thresholds: planner.DefaultThresholds(),
		maxWorkers: DefaultMaxWorkers,
		logger:     logging.NopLogger(),
		now:        time.Now,
		cache:      make(map[string]cachedPlan),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.tracker == nil {
		p.tracker = timing.NewTracker()
	}
	return p
}

// Target returns the surface size renderers must produce.
func (p *Pipeline) Target() Target { return p.target }

// SetThresholds replaces the planner thresholds and drops cached plans.
func (p *Pipeline) SetThresholds(th planner.Thresholds) {
	p.mu.Lock()
	p.thresholds = th
	clear(p.cache)
	p.mu.Unlock()
	p.logger.Info("render thresholds updated",
		"parallel_count", th.ParallelCount, "parallel_cost_ms", th.ParallelCostMs,
		"merge_count", th.MergeCount, "merge_cost_ms", th.MergeCostMs)
}

// Thresholds returns the planner thresholds in use.
func (p *Pipeline) Thresholds() planner.Thresholds {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.thresholds
}

// LastObservation returns the decision behind the most recent frame. Its
// Cached field reports whether the plan came from the plan cache.
func (p *Pipeline) LastObservation() (planner.Observation, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastObs == nil {
		return planner.Observation{}, false
	}
	return *p.lastObs, true
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Frames:    p.frames.Load(),
		Empty:     p.empty.Load(),
		Declined:  p.declined.Load(),
		Failures:  p.failures.Load(),
		PlanHits:  p.planHits.Load(),
		PlanMiss:  p.planMiss.Load(),
		Iterative: p.iterative.Load(),
		Binary:    p.binary.Load(),
	}
}

// Render runs renderers (back to front) for one frame and composes their
// surfaces. It returns nil when every renderer declined. A failing or
// panicking renderer is logged and treated as declining. After Shutdown,
// Render returns a LifecycleError wrapping ErrPipelineClosed.
func (p *Pipeline) Render(ctx context.Context, renderers []Renderer, tick Tick, layout Layout, ov planner.Override) (*Surface, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.inflight.Done()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.frames.Add(1)
	if len(renderers) == 0 {
		p.empty.Add(1)
		return nil, nil
	}

	plan := p.plan(Names(renderers), ov)

	var (
		surfaces []*Surface
		err      error
	)
	if plan.Variant == planner.VariantBinary {
		p.binary.Add(1)
		surfaces, err = p.collectPooled(ctx, renderers, tick, layout)
	} else {
		p.iterative.Add(1)
		surfaces, err = p.collectSerial(ctx, renderers, tick, layout)
	}
	if err != nil {
		return nil, err
	}

	surfaces = compact(surfaces)
	if len(surfaces) == 0 {
		p.empty.Add(1)
		return nil, nil
	}

	if plan.Merge == planner.MergeBatched {
		return p.mergeBatched(surfaces)
	}
	return mergeInPlace(surfaces)
}

func (p *Pipeline) enter() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return perrors.NewLifecycleError("pipeline", "render", perrors.ErrPipelineClosed)
	}
	p.inflight.Add(1)
	return nil
}

// Shutdown stops accepting frames, waits for in-flight frames until ctx is
// done, and releases the worker pool. It is idempotent.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	already := p.closed
	p.closed = true
	w := p.workers
	p.mu.Unlock()
	if already {
		return nil
	}

	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = perrors.Wrap(ctx.Err(), "render pipeline shutdown")
		p.logger.Warn("render pipeline shutdown timed out with frames in flight")
	}
	if w != nil {
		w.close()
	}
	return err
}

func (p *Pipeline) pool() *workers {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.workers == nil {
		p.workers = newWorkers(p.maxWorkers)
	}
	return p.workers
}

func (p *Pipeline) plan(names []string, ov planner.Override) planner.Plan {
	now := p.now()
	key := strings.Join(names, "\x00") + "|" + ov.Key()

	p.mu.Lock()
	th := p.thresholds
	if p.planRefresh > 0 {
		if c, ok := p.cache[key]; ok && now.Before(c.expires) {
			obs := c.obs
			obs.Cached = true
			p.lastObs = &obs
			p.mu.Unlock()
			p.planHits.Add(1)
			return obs.Plan
		}
	}
	p.mu.Unlock()
	p.planMiss.Add(1)

	total, ok := p.tracker.Estimate(names)
	est := planner.Estimate{TotalMs: total, HasSamples: ok}
	obs := planner.Observe(names, est, th, ov, p.tracker.Snapshot(names), now)
	plan := obs.Plan

	p.mu.Lock()
	if p.planRefresh > 0 {
		for k, c := range p.cache {
			if !now.Before(c.expires) {
				delete(p.cache, k)
			}
		}
		p.cache[key] = cachedPlan{obs: obs, expires: now.Add(p.planRefresh)}
	}
	p.lastObs = &obs
	observer := p.observer
	p.mu.Unlock()

	if p.logger.Enabled(logging.LevelDebug) {
		p.logger.Debug("render plan",
			"variant", plan.Variant.String(), "merge", plan.Merge.String(),
			"renderers", len(names), "estimate_ms", est.TotalMs, "has_samples", est.HasSamples,
			"reasons", obs.Reasons)
	}
	if observer != nil {
		observer(obs)
	}
	return plan
}

func (p *Pipeline) collectSerial(ctx context.Context, renderers []Renderer, tick Tick, layout Layout) ([]*Surface, error) {
	out := make([]*Surface, len(renderers))
	for i, r := range renderers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = p.renderOne(r, tick, layout)
	}
	return out, nil
}

// collectPooled runs each distinct renderer on the pool. A renderer listed
// more than once gets a single task that fills its slots in stack order,
// so no instance runs concurrently with itself. Results land in the slot
// of the renderer's stack position, so completion order never affects
// paint order.
func (p *Pipeline) collectPooled(ctx context.Context, renderers []Renderer, tick Tick, layout Layout) ([]*Surface, error) {
	out := make([]*Surface, len(renderers))
	groups := groupInstances(renderers)
	tasks := make([]func(), len(groups))
	for i, slots := range groups {
		r := renderers[slots[0]]
		tasks[i] = func() {
			for _, slot := range slots {
				if ctx.Err() != nil {
					return
				}
				out[slot] = p.renderOne(r, tick, layout)
			}
		}
	}
	if !p.pool().run(tasks) {
		return nil, perrors.NewLifecycleError("pipeline", "render", perrors.ErrPipelineClosed)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// nameKey groups renderers whose values cannot be compared. Sharing a
// name only serializes them.
type nameKey string

// groupInstances returns the stack positions of each distinct renderer, in
// order of first appearance.
func groupInstances(renderers []Renderer) [][]int {
	index := make(map[any]int, len(renderers))
	groups := make([][]int, 0, len(renderers))
	for i, r := range renderers {
		var key any = nameKey(r.Name())
		if v := reflect.ValueOf(r); v.Comparable() {
			key = r
		}
		g, ok := index[key]
		if !ok {
			g = len(groups)
			index[key] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}

// renderOne calls one renderer, records its cost, and converts failures
// into a decline.
func (p *Pipeline) renderOne(r Renderer, tick Tick, layout Layout) *Surface {
	name := r.Name()
	start := p.now()
	surface, err := safeRender(r, p.target, tick, layout)
	p.tracker.Record(name, p.now().Sub(start))

	if err == nil && surface != nil && (surface.Width != p.target.Width || surface.Height != p.target.Height) {
		err = perrors.Wrapf(ErrSizeMismatch, "got %dx%d, want %dx%d",
			surface.Width, surface.Height, p.target.Width, p.target.Height)
	}
	if err != nil {
		p.failures.Add(1)
		rerr := perrors.NewRendererError(name, err).WithFrame(tick.Frame)
		args := []any{"renderer", name, "frame", tick.Frame, "error", rerr.Error()}
		var perr *perrors.PanicError
		if perrors.As(err, &perr) {
			args = append(args, "stack", perr.Stack)
		}
		p.logger.Warn("renderer failed", args...)
		return nil
	}
	if surface == nil {
		p.declined.Add(1)
	}
	return surface
}

func safeRender(r Renderer, target Target, tick Tick, layout Layout) (s *Surface, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			s, err = nil, perrors.Recovered(rec)
		}
	}()
	return r.Render(target, tick, layout)
}

func compact(surfaces []*Surface) []*Surface {
	out := surfaces[:0]
	for _, s := range surfaces {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// mergeInPlace folds the stack left to right into a copy of the bottom
// surface.
func mergeInPlace(surfaces []*Surface) (*Surface, error) {
	acc := surfaces[0].Clone()
	for _, s := range surfaces[1:] {
		if err := acc.Draw(s); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// mergeBatched merges the stack as a balanced tree: each level pairs
// (0,1), (2,3), ... and carries an odd tail element up unchanged. Levels
// with more than one pair run on the pool, and the pool's Wait is the
// barrier between levels.
func (p *Pipeline) mergeBatched(surfaces []*Surface) (*Surface, error) {
	level := surfaces
	owned := make([]bool, len(level))

	for len(level) > 1 {
		pairs := len(level) / 2
		next := make([]*Surface, (len(level)+1)/2)
		nextOwned := make([]bool, len(next))
		errs := make([]error, pairs)

		mergePair := func(i int) {
			left, right := level[2*i], level[2*i+1]
			if !owned[2*i] {
				left = left.Clone()
			}
			errs[i] = left.Draw(right)
			next[i], nextOwned[i] = left, true
		}

		if pairs > 1 {
			tasks := make([]func(), pairs)
			for i := range pairs {
				tasks[i] = func() { mergePair(i) }
			}
			if !p.pool().run(tasks) {
				return nil, perrors.NewLifecycleError("pipeline", "merge", perrors.ErrPipelineClosed)
			}
		} else {
			mergePair(0)
		}

		if err := perrors.Join(errs...); err != nil {
			return nil, err
		}
		if len(level)%2 == 1 {
			next[len(next)-1] = level[len(level)-1]
			nextOwned[len(next)-1] = owned[len(level)-1]
		}
		level, owned = next, nextOwned
	}

	if !owned[0] {
		return level[0].Clone(), nil
	}
	return level[0], nil
}
