package event

import (
	"cmp"
	"fmt"
	"sync/atomic"
)

// Subscription is the handle returned by Subscribe. Hold on to it to
// unsubscribe.
type Subscription struct {
	eventType string
	handler   Handler
	priority  int
	name      string
	seq       uint64
	active    atomic.Bool
}

// SubscribeOption configures a subscription.
type SubscribeOption func(*Subscription)

// WithPriority sets the subscription priority. Higher values run first.
func WithPriority(p int) SubscribeOption {
	return func(s *Subscription) { s.priority = p }
}

// WithName sets the identity used in logs when the handler fails.
func WithName(name string) SubscribeOption {
	return func(s *Subscription) { s.name = name }
}

// EventType returns the subscribed event type, or Wildcard.
func (s *Subscription) EventType() string {
	return s.eventType
}

// Priority returns the subscription priority.
func (s *Subscription) Priority() int {
	return s.priority
}

// Sequence returns the registration order of the subscription on its bus.
func (s *Subscription) Sequence() uint64 {
	return s.seq
}

// Name returns the subscriber identity. Unnamed subscriptions are
// identified by their event type and sequence number.
func (s *Subscription) Name() string {
	if s.name != "" {
		return s.name
	}
	return fmt.Sprintf("%s#%d", s.eventType, s.seq)
}

// Active reports whether the subscription still receives events.
func (s *Subscription) Active() bool {
	return s.active.Load()
}

// compareSubscriptions orders by priority descending, then wildcard before
// type-specific, then registration order.
func compareSubscriptions(a, b *Subscription) int {
	if c := cmp.Compare(b.priority, a.priority); c != 0 {
		return c
	}
	aWild, bWild := a.eventType == Wildcard, b.eventType == Wildcard
	if aWild != bWild {
		if aWild {
			return -1
		}
		return 1
	}
	return cmp.Compare(a.seq, b.seq)
}
