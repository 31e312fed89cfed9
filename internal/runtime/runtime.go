package runtime

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/Iron-Ham/prism/internal/broadcast"
	"github.com/Iron-Ham/prism/internal/config"
	perrors "github.com/Iron-Ham/prism/internal/errors"
	"github.com/Iron-Ham/prism/internal/event"
	"github.com/Iron-Ham/prism/internal/logging"
	"github.com/Iron-Ham/prism/internal/planner"
	"github.com/Iron-Ham/prism/internal/render"
	"github.com/Iron-Ham/prism/internal/timing"
	"github.com/Iron-Ham/prism/internal/virtual"
)

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger shared by every component.
func WithLogger(l *logging.Logger) Option {
	return func(r *Runtime) { r.logger = l }
}

// WithOverride forces planner decisions for every frame.
func WithOverride(ov planner.Override) Option {
	return func(r *Runtime) { r.override = ov }
}

// WithPlanObserver receives each fresh planning decision.
func WithPlanObserver(o render.Observer) Option {
	return func(r *Runtime) { r.observer = o }
}

// Runtime owns the bus, the virtual registry, the timing tracker, the render
// pipeline and the broadcast queue, and drives them from a frame loop.
type Runtime struct {
	cfg      *config.Config
	logger   *logging.Logger
	observer render.Observer

	bus      *event.Bus
	registry *virtual.Registry
	tracker  *timing.Tracker
	pipeline *render.Pipeline
	queue    *broadcast.Queue
	layout   render.Layout
	interval time.Duration
	tap      *event.Subscription

	mu           sync.RWMutex
	renderers    []render.Renderer
	override     planner.Override
	pending      []peripheralState
	names        map[string]bool
	nextProducer int
	ctx          context.Context
	cancel       context.CancelFunc
	started      bool
	closed       bool
	stop         chan struct{}

	peripherals conc.WaitGroup
	frames      atomic.Uint64
	lastTick    atomic.Int64
}

// New builds a runtime from cfg. The configuration is assumed to have been
// validated; New still rejects values the components cannot work with.
func New(cfg *config.Config, opts ...Option) (*Runtime, error) {
	r := &Runtime{
		cfg:          cfg,
		logger:       logging.NopLogger(),
		names:        make(map[string]bool),
		nextProducer: 1,
		stop:         make(chan struct{}),
		interval:     cfg.Display.FrameInterval(),
	}
	for _, opt := range opts {
		opt(r)
	}

	strategy, err := timing.ParseStrategy(cfg.Timing.Strategy)
	if err != nil {
		return nil, err
	}
	orientation, err := render.ParseOrientation(cfg.Display.Orientation)
	if err != nil {
		return nil, err
	}
	policy, err := broadcast.ParsePolicy(cfg.Queue.OverflowPolicy)
	if err != nil {
		return nil, err
	}

	r.bus = event.NewBus(event.WithLogger(r.logger))
	r.registry = virtual.NewRegistry(r.bus, virtual.WithLogger(r.logger))
	r.tracker = timing.NewTracker(
		timing.WithStrategy(strategy),
		timing.WithAlpha(cfg.Timing.EMAAlpha),
		timing.WithWindow(cfg.Timing.SMAWindow),
	)

	pipelineOpts := []render.Option{
		render.WithThresholds(cfg.Render.Thresholds()),
		render.WithMaxWorkers(cfg.Render.MaxWorkers),
		render.WithPlanRefresh(cfg.Render.PlanRefresh()),
		render.WithLogger(r.logger),
	}
	if r.observer != nil {
		pipelineOpts = append(pipelineOpts, render.WithObserver(r.observer))
	}
	target := render.Target{Width: cfg.Display.Width, Height: cfg.Display.Height}
	r.pipeline = render.NewPipeline(target, r.tracker, pipelineOpts...)
	r.layout = render.Layout{Orientation: orientation}

	r.queue, err = broadcast.NewQueue(cfg.Queue.Capacity, policy,
		broadcast.WithAckTimeout(cfg.Queue.AckTimeout()),
		broadcast.WithLogger(r.logger),
	)
	if err != nil {
		return nil, err
	}

	if cfg.Logging.EventFilter != "" {
		r.tap, err = installTap(r.bus, cfg.Logging.EventFilter, r.logger)
		if err != nil {
			return nil, err
		}
	}

	r.logger = r.logger.WithComponent("runtime")
	return r, nil
}

// Config returns the configuration the runtime was built with.
func (r *Runtime) Config() *config.Config { return r.cfg }

// Bus returns the event bus.
func (r *Runtime) Bus() *event.Bus { return r.bus }

// Registry returns the virtual peripheral registry.
func (r *Runtime) Registry() *virtual.Registry { return r.registry }

// Tracker returns the renderer timing tracker.
func (r *Runtime) Tracker() *timing.Tracker { return r.tracker }

// Pipeline returns the render pipeline.
func (r *Runtime) Pipeline() *render.Pipeline { return r.pipeline }

// Queue returns the frame broadcast queue.
func (r *Runtime) Queue() *broadcast.Queue { return r.queue }

// Layout returns the display layout passed to renderers.
func (r *Runtime) Layout() render.Layout { return r.layout }

// FrameSize returns the dimensions of each encoded frame.
func (r *Runtime) FrameSize() (width, height int) {
	return render.FrameSize(r.pipeline.Target(), r.layout.Orientation)
}

// Frames returns the number of frames rendered so far.
func (r *Runtime) Frames() uint64 { return r.frames.Load() }

// AddRenderer appends renderer to the top of the stack.
func (r *Runtime) AddRenderer(renderer render.Renderer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Copy so frames already holding the old stack are unaffected.
	next := make([]render.Renderer, 0, len(r.renderers)+1)
	next = append(next, r.renderers...)
	r.renderers = append(next, renderer)
}

// SetRenderers replaces the whole stack, back to front.
func (r *Runtime) SetRenderers(renderers []render.Renderer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renderers = slices.Clone(renderers)
}

// Renderers returns the current stack, back to front.
func (r *Runtime) Renderers() []render.Renderer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.renderers)
}

// SetOverride replaces the planner override used for subsequent frames.
func (r *Runtime) SetOverride(ov planner.Override) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.override = ov
}

// Override returns the current planner override.
func (r *Runtime) Override() planner.Override {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.override
}

// ApplyConfig applies the settings that can change while running. Only the
// render thresholds are hot reloaded; everything else needs a restart.
func (r *Runtime) ApplyConfig(cfg *config.Config) {
	th := cfg.Render.Thresholds()
	if th == r.pipeline.Thresholds() {
		return
	}
	r.pipeline.SetThresholds(th)
	r.logger.Info("render thresholds reloaded",
		"parallel_count", th.ParallelCount,
		"parallel_cost_ms", th.ParallelCostMs,
		"merge_count", th.MergeCount,
		"merge_cost_ms", th.MergeCostMs)
}

// AddPeripheral registers p and assigns it the next producer id. If the
// runtime is already started, p begins running immediately.
func (r *Runtime) AddPeripheral(p Peripheral) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, perrors.NewLifecycleError("runtime", "add peripheral", perrors.ErrRuntimeClosed)
	}
	name := p.Name()
	if r.names[name] {
		return 0, fmt.Errorf("peripheral %q already registered", name)
	}
	if r.nextProducer >= virtual.DefaultProducerBase {
		return 0, fmt.Errorf("too many peripherals: producer ids from %d are reserved for virtual peripherals", virtual.DefaultProducerBase)
	}
	r.names[name] = true
	ps := peripheralState{
		peripheral: p,
		emitter:    busEmitter{bus: r.bus, producerID: r.nextProducer},
	}
	r.nextProducer++

	if r.started {
		r.launch(r.ctx, ps)
	} else {
		r.pending = append(r.pending, ps)
	}
	return ps.emitter.producerID, nil
}

// Start launches the broadcast dispatcher and every registered peripheral.
// Calling Start again has no effect.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return perrors.NewLifecycleError("runtime", "start", perrors.ErrRuntimeClosed)
	}
	if r.started {
		return nil
	}
	r.started = true
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.queue.Start(r.ctx)
	for _, ps := range r.pending {
		r.launch(r.ctx, ps)
	}
	r.pending = nil

	r.logger.Info("runtime started",
		"width", r.cfg.Display.Width,
		"height", r.cfg.Display.Height,
		"fps", r.cfg.Display.FPS,
		"renderers", len(r.renderers))
	return nil
}

// Run starts the runtime and renders one frame per display interval until
// ctx is done or Shutdown is called. A frame that fails to render or
// enqueue is logged and the loop continues.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.Start(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.stop:
			return nil
		case now := <-ticker.C:
			if err := r.RenderFrame(ctx, now); err != nil {
				if perrors.IsLifecycle(err) || ctx.Err() != nil {
					return nil
				}
				r.logger.Warn("frame failed", "frame", r.frames.Load(), "error", err.Error())
			}
		}
	}
}

// RenderFrame renders the current stack once, encodes the result and
// enqueues it for broadcast. When every renderer declines, a black frame
// is sent.
func (r *Runtime) RenderFrame(ctx context.Context, now time.Time) error {
	r.mu.RLock()
	closed := r.closed
	renderers := r.renderers
	ov := r.override
	r.mu.RUnlock()

	if closed {
		return perrors.NewLifecycleError("runtime", "render", perrors.ErrRuntimeClosed)
	}

	var delta time.Duration
	if last := r.lastTick.Swap(now.UnixNano()); last != 0 {
		delta = now.Sub(time.Unix(0, last))
	}
	tick := render.Tick{Frame: r.frames.Add(1), Time: now, Delta: delta}

	surface, err := r.pipeline.Render(ctx, renderers, tick, r.layout, ov)
	if err != nil {
		return err
	}
	frame := render.EncodeRGB(surface, r.pipeline.Target(), r.layout.Orientation)
	return r.queue.Enqueue(ctx, frame)
}

// Shutdown stops the peripherals, detaches virtual peripherals, drains the
// pipeline and closes the queue, in that order. Waiting is bounded by ctx;
// later stages still run when an earlier one times out. Shutdown is
// idempotent.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.stop)
	cancel := r.cancel
	r.mu.Unlock()

	var errs []error

	if cancel != nil {
		cancel()
	}
	done := make(chan struct{})
	go func() {
		r.peripherals.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("waiting for peripherals: %w", ctx.Err()))
	}

	if r.tap != nil {
		r.bus.Unsubscribe(r.tap)
	}
	r.registry.Shutdown()

	if err := r.pipeline.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	r.queue.Close()

	r.logger.Info("runtime stopped", "frames", r.frames.Load())
	return errors.Join(errs...)
}
