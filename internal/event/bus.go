package event

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	perrors "github.com/Iron-Ham/prism/internal/errors"
	"github.com/Iron-Ham/prism/internal/logging"
)

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithLogger sets the logger used for subscriber failures.
func WithLogger(l *logging.Logger) BusOption {
	return func(b *Bus) { b.logger = l.WithComponent("bus") }
}

// WithStore makes the bus record into an existing StateStore.
func WithStore(s *StateStore) BusOption {
	return func(b *Bus) { b.store = s }
}

// Stats holds delivery counters for a Bus.
type Stats struct {
	Published     uint64 `json:"published"`
	Delivered     uint64 `json:"delivered"`
	HandlerErrors uint64 `json:"handler_errors"`
	HandlerPanics uint64 `json:"handler_panics"`
	Subscriptions int    `json:"subscriptions"`
}

// Bus is a synchronous, priority-ordered pub-sub event bus that also keeps
// the latest value of every (type, producer) pair in a StateStore.
//
// Handlers run on the emitting goroutine; the bus performs no queueing.
// Subscribe and Unsubscribe may be called concurrently with Emit.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[string][]*Subscription // eventType -> sorted, copy-on-write
	nextSeq       uint64

	store  *StateStore
	logger *logging.Logger

	published     atomic.Uint64
	delivered     atomic.Uint64
	handlerErrors atomic.Uint64
	handlerPanics atomic.Uint64
}

// NewBus creates a new event bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		subscriptions: make(map[string][]*Subscription),
		logger:        logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.store == nil {
		b.store = NewStateStore()
	}
	return b
}

// Store returns the bus's state store.
func (b *Bus) Store() *StateStore {
	return b.store
}

// Subscribe registers a handler for a specific event type. Passing
// Wildcard is equivalent to SubscribeAll. The returned handle is used to
// unsubscribe.
func (b *Bus) Subscribe(eventType string, handler Handler, opts ...SubscribeOption) *Subscription {
	sub := &Subscription{
		eventType: eventType,
		handler:   handler,
	}
	for _, opt := range opts {
		opt(sub)
	}
	sub.active.Store(true)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	sub.seq = b.nextSeq

	// Copy-on-write so in-flight emits keep iterating their own slice.
	current := b.subscriptions[eventType]
	next := make([]*Subscription, 0, len(current)+1)
	next = append(next, current...)
	next = append(next, sub)
	slices.SortStableFunc(next, compareSubscriptions)
	b.subscriptions[eventType] = next

	return sub
}

// SubscribeAll registers a handler that receives every event.
func (b *Bus) SubscribeAll(handler Handler, opts ...SubscribeOption) *Subscription {
	return b.Subscribe(Wildcard, handler, opts...)
}

// Unsubscribe removes a subscription. It is idempotent: nil, unknown, or
// already removed handles are a no-op and return false.
func (b *Bus) Unsubscribe(sub *Subscription) bool {
	if sub == nil || !sub.active.CompareAndSwap(true, false) {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	current := b.subscriptions[sub.eventType]
	idx := slices.Index(current, sub)
	if idx < 0 {
		return false
	}

	next := make([]*Subscription, 0, len(current)-1)
	next = append(next, current[:idx]...)
	next = append(next, current[idx+1:]...)
	if len(next) == 0 {
		delete(b.subscriptions, sub.eventType)
	} else {
		b.subscriptions[sub.eventType] = next
	}
	return true
}

// Emit publishes a value from a producer. It is shorthand for Publish.
func (b *Bus) Emit(eventType string, data any, producerID int) StateEntry {
	return b.Publish(Input{
		Type:       eventType,
		Data:       data,
		ProducerID: producerID,
	})
}

// Publish records the event in the state store and then synchronously
// dispatches it to every matching handler.
//
// Delivery order is priority descending; at equal priority wildcard
// subscribers run before type-specific ones; remaining ties follow
// registration order. A handler that returns an error or panics is logged
// and delivery continues with the next handler.
func (b *Bus) Publish(in Input) StateEntry {
	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now()
	}

	entry := b.store.Update(in)
	b.published.Add(1)

	for _, sub := range b.targets(in.Type) {
		// A handle removed after the target list was built must not run.
		if !sub.active.Load() {
			continue
		}
		b.deliver(sub, in)
	}
	return entry
}

// targets returns the ordered delivery list for eventType.
func (b *Bus) targets(eventType string) []*Subscription {
	b.mu.RLock()
	wildcard := b.subscriptions[Wildcard]
	var specific []*Subscription
	if eventType != Wildcard {
		specific = b.subscriptions[eventType]
	}
	b.mu.RUnlock()

	if len(specific) == 0 {
		return wildcard
	}
	if len(wildcard) == 0 {
		return specific
	}

	// Both slices are already sorted; merge them.
	merged := make([]*Subscription, 0, len(wildcard)+len(specific))
	i, j := 0, 0
	for i < len(wildcard) && j < len(specific) {
		if compareSubscriptions(wildcard[i], specific[j]) <= 0 {
			merged = append(merged, wildcard[i])
			i++
		} else {
			merged = append(merged, specific[j])
			j++
		}
	}
	merged = append(merged, wildcard[i:]...)
	merged = append(merged, specific[j:]...)
	return merged
}

// deliver invokes one handler, recovering panics so a misbehaving handler
// cannot block delivery to the others.
func (b *Bus) deliver(sub *Subscription, in Input) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				b.handlerPanics.Add(1)
				err = perrors.Recovered(r)
			}
		}()
		return sub.handler(in)
	}()

	if err == nil {
		b.delivered.Add(1)
		return
	}

	b.handlerErrors.Add(1)
	serr := perrors.NewSubscriberError(sub.Name(), err).WithEvent(in.Type, in.ProducerID)
	args := []any{"subscriber", sub.Name(), "event", in.Type, "producer", in.ProducerID, "error", serr.Error()}
	var perr *perrors.PanicError
	if perrors.As(err, &perr) {
		args = append(args, "stack", perr.Stack)
	}
	b.logger.Error("event handler failed", args...)
}

// Clear removes all subscriptions.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, subs := range b.subscriptions {
		for _, sub := range subs {
			sub.active.Store(false)
		}
	}
	b.subscriptions = make(map[string][]*Subscription)
}

// SubscriptionCount returns the total number of active subscriptions.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, subs := range b.subscriptions {
		count += len(subs)
	}
	return count
}

// Stats returns a snapshot of the bus counters.
func (b *Bus) Stats() Stats {
	return Stats{
		Published:     b.published.Load(),
		Delivered:     b.delivered.Load(),
		HandlerErrors: b.handlerErrors.Load(),
		HandlerPanics: b.handlerPanics.Load(),
		Subscriptions: b.SubscriptionCount(),
	}
}
