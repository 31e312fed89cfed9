package virtual

import (
	"fmt"
	"io"
	"slices"
	"sync"

	perrors "github.com/Iron-Ham/prism/internal/errors"
	"github.com/Iron-Ham/prism/internal/event"
	"github.com/Iron-Ham/prism/internal/logging"
)

// DefaultProducerBase is the first producer id handed to virtual
// peripherals. Physical peripherals are expected to stay below it.
const DefaultProducerBase = 1000

// Handler consumes the source events of one virtual peripheral.
// A handler that also implements io.Closer is closed on Shutdown.
type Handler interface {
	Handle(event.Input) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(event.Input) error

// Handle calls f(in).
func (f HandlerFunc) Handle(in event.Input) error {
	return f(in)
}

// Factory builds the handler for a definition. It is called exactly once,
// during Register.
type Factory func(*Context) (Handler, error)

// Definition declares a virtual peripheral.
type Definition struct {
	// Name identifies the peripheral in logs; must be unique per registry.
	Name string

	// Sources are the event types the handler receives. The registry
	// subscribes to each one; the handler never sees anything else.
	Sources []string

	// Factory builds the handler.
	Factory Factory

	// Priority is the bus priority of the handler's subscriptions.
	Priority int
}

// Context is handed to a Factory and gives the handler a way to publish
// derived events under its own producer id.
type Context struct {
	name       string
	producerID int
	bus        *event.Bus
	logger     *logging.Logger
}

// Name returns the virtual peripheral name.
func (c *Context) Name() string { return c.name }

// ProducerID returns the producer id used for derived events.
func (c *Context) ProducerID() int { return c.producerID }

// Logger returns a logger tagged with the peripheral name.
func (c *Context) Logger() *logging.Logger { return c.logger }

// Emit publishes a derived event. Delivery is synchronous, like any emit.
func (c *Context) Emit(eventType string, data any) event.StateEntry {
	return c.bus.Emit(eventType, data, c.producerID)
}

// Latest reads the bus state store.
func (c *Context) Latest(eventType string) (event.StateEntry, bool) {
	return c.bus.Store().Latest(eventType)
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Registry) { r.logger = l.WithComponent("virtual") }
}

// WithProducerBase sets the first producer id assigned to peripherals.
func WithProducerBase(base int) Option {
	return func(r *Registry) { r.nextProducer = base }
}

type instance struct {
	def     Definition
	handler Handler
	subs    []*event.Subscription
}

// Registry attaches virtual peripherals to an event bus.
// It is safe for concurrent use.
type Registry struct {
	mu           sync.Mutex
	bus          *event.Bus
	logger       *logging.Logger
	instances    map[string]*instance
	order        []string
	nextProducer int
	closed       bool
}

// NewRegistry creates a registry bound to bus.
func NewRegistry(bus *event.Bus, opts ...Option) *Registry {
	r := &Registry{
		bus:          bus,
		logger:       logging.NopLogger(),
		instances:    make(map[string]*instance),
		nextProducer: DefaultProducerBase,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register validates def, instantiates its handler, and subscribes the
// handler to every declared source type. The peripheral receives events
// as soon as Register returns.
func (r *Registry) Register(def Definition) error {
	if err := validate(def); err != nil {
		return err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return perrors.NewLifecycleError("virtual", "register", perrors.ErrRegistryClosed)
	}
	if _, exists := r.instances[def.Name]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicate, def.Name)
	}
	// Reserve the name while the factory runs outside the lock.
	inst := &instance{def: def}
	r.instances[def.Name] = inst
	producerID := r.nextProducer
	r.nextProducer++
	r.mu.Unlock()

	ctx := &Context{
		name:       def.Name,
		producerID: producerID,
		bus:        r.bus,
		logger:     r.logger.WithSubscriber(def.Name),
	}

	handler, err := buildHandler(def.Factory, ctx)
	if err != nil {
		r.mu.Lock()
		delete(r.instances, def.Name)
		r.mu.Unlock()
		return fmt.Errorf("virtual peripheral %s: factory: %w", def.Name, err)
	}

	subs := make([]*event.Subscription, 0, len(def.Sources))
	seen := make(map[string]bool, len(def.Sources))
	for _, source := range def.Sources {
		if seen[source] {
			continue
		}
		seen[source] = true
		subs = append(subs, r.bus.Subscribe(source, handler.Handle,
			event.WithPriority(def.Priority),
			event.WithName("virtual:"+def.Name),
		))
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		for _, sub := range subs {
			r.bus.Unsubscribe(sub)
		}
		closeHandler(r.logger, def.Name, handler)
		return perrors.NewLifecycleError("virtual", "register", perrors.ErrRegistryClosed)
	}
	inst.handler = handler
	inst.subs = subs
	r.order = append(r.order, def.Name)
	r.mu.Unlock()

	r.logger.Debug("virtual peripheral registered",
		"name", def.Name, "sources", def.Sources, "producer", producerID)
	return nil
}

// Names returns the registered peripherals in registration order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.order)
}

// Shutdown detaches every peripheral and closes handlers that implement
// io.Closer. Failures are logged, never returned. Shutdown is idempotent.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	order := r.order
	instances := r.instances
	r.order = nil
	r.instances = make(map[string]*instance)
	r.mu.Unlock()

	for _, name := range order {
		inst := instances[name]
		for _, sub := range inst.subs {
			r.bus.Unsubscribe(sub)
		}
		closeHandler(r.logger, name, inst.handler)
	}
}

func validate(def Definition) error {
	switch {
	case def.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidDefinition)
	case len(def.Sources) == 0:
		return fmt.Errorf("%w: %s declares no sources", ErrInvalidDefinition, def.Name)
	case def.Factory == nil:
		return fmt.Errorf("%w: %s has no factory", ErrInvalidDefinition, def.Name)
	case slices.Contains(def.Sources, event.Wildcard):
		return fmt.Errorf("%w: %s cannot subscribe to the wildcard", ErrInvalidDefinition, def.Name)
	}
	return nil
}

func buildHandler(factory Factory, ctx *Context) (h Handler, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = perrors.Recovered(rec)
		}
	}()
	h, err = factory(ctx)
	if err == nil && h == nil {
		err = ErrNilHandler
	}
	return h, err
}

func closeHandler(logger *logging.Logger, name string, h Handler) {
	closer, ok := h.(io.Closer)
	if !ok {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			logger.Warn("virtual peripheral close panicked", "name", name, "error", perrors.Recovered(rec).Error())
		}
	}()
	if err := closer.Close(); err != nil {
		logger.Warn("virtual peripheral close failed", "name", name, "error", err.Error())
	}
}
