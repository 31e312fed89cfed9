package broadcast

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"

	perrors "github.com/Iron-Ham/prism/internal/errors"
	"github.com/Iron-Ham/prism/internal/logging"
)

var (
	// ErrConsumerExists is returned when a consumer id is registered twice.
	ErrConsumerExists = errors.New("consumer id already registered")

	// ErrInvalidCapacity is returned for a non-positive queue capacity.
	ErrInvalidCapacity = errors.New("queue capacity must be positive")
)

// OverflowPolicy decides what Enqueue does when the queue is full.
type OverflowPolicy string

const (
	// Block stalls the producer until the dispatcher frees a slot.
	// It is the only policy that delivers every produced frame.
	Block OverflowPolicy = "block"

	// DropNewest discards the incoming frame and leaves the queue unchanged.
	DropNewest OverflowPolicy = "drop_newest"

	// DropOldest evicts the oldest queued frame to make room.
	DropOldest OverflowPolicy = "drop_oldest"
)

// ParsePolicy converts a configuration string to an OverflowPolicy.
func ParsePolicy(s string) (OverflowPolicy, error) {
	switch p := OverflowPolicy(s); p {
	case Block, DropNewest, DropOldest:
		return p, nil
	default:
		return "", fmt.Errorf("unknown overflow policy %q", s)
	}
}

// Frame is an opaque encoded frame.
type Frame struct {
	// Seq is assigned by Enqueue, starting at 1.
	Seq uint64

	// Data is the encoded payload. Consumers must not modify it.
	Data []byte

	// Produced is when the frame was handed to Enqueue.
	Produced time.Time
}

// Consumer receives every frame dispatched while it is registered.
// A Send error removes the consumer.
type Consumer interface {
	ID() string
	Send(ctx context.Context, f Frame) error
}

// Acker is implemented by consumers that acknowledge frames. When the
// queue has an ack timeout, the dispatcher waits for AwaitAck after each
// successful Send.
type Acker interface {
	AwaitAck(ctx context.Context) error
}

// Option configures a Queue.
type Option func(*Queue)

// WithAckTimeout enables ack waits. Zero disables them.
func WithAckTimeout(d time.Duration) Option {
	return func(q *Queue) { q.ackTimeout = d }
}

// WithLogger sets the queue logger.
func WithLogger(l *logging.Logger) Option {
	return func(q *Queue) { q.logger = l.WithComponent("broadcast") }
}

// ConsumerStats tracks one consumer.
type ConsumerStats struct {
	Sent        uint64 `json:"sent"`
	AckTimeouts uint64 `json:"ack_timeouts"`
}

// Stats is a snapshot of the queue counters.
type Stats struct {
	Enqueued         uint64                   `json:"enqueued"`
	DroppedNewest    uint64                   `json:"dropped_newest"`
	DroppedOldest    uint64                   `json:"dropped_oldest"`
	Dispatched       uint64                   `json:"dispatched"`
	Sent             uint64                   `json:"sent"`
	SendFailures     uint64                   `json:"send_failures"`
	AckTimeouts      uint64                   `json:"ack_timeouts"`
	RemovedConsumers uint64                   `json:"removed_consumers"`
	Queued           int                      `json:"queued"`
	Capacity         int                      `json:"capacity"`
	Policy           OverflowPolicy           `json:"policy"`
	Consumers        map[string]ConsumerStats `json:"consumers"`
}

type consumerState struct {
	consumer    Consumer
	sent        atomic.Uint64
	ackTimeouts atomic.Uint64
}

// Queue is a bounded FIFO of frames with a background dispatcher that fans
// each frame out to every registered consumer.
//
// Enqueue may be called from any goroutine. Frames reach each consumer in
// enqueue order.
type Queue struct {
	capacity   int
	policy     OverflowPolicy
	ackTimeout time.Duration
	logger     *logging.Logger

	mu        sync.Mutex
	ring      []Frame
	head      int
	count     int
	nextSeq   uint64
	closed    bool
	started   bool
	space     chan struct{} // closed and replaced whenever a slot frees
	ready     chan struct{} // buffered(1) wakeup for the dispatcher
	done      chan struct{} // closed by Close
	stopped   chan struct{} // closed when the dispatcher exits
	cancel    context.CancelFunc
	consumers map[string]*consumerState
	order     []string

	enqueued      atomic.Uint64
	droppedNewest atomic.Uint64
	droppedOldest atomic.Uint64
	dispatched    atomic.Uint64
	sent          atomic.Uint64
	sendFailures  atomic.Uint64
	ackTimeouts   atomic.Uint64
	removed       atomic.Uint64
}

// NewQueue creates a queue holding at most capacity frames.
func NewQueue(capacity int, policy OverflowPolicy, opts ...Option) (*Queue, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	if _, err := ParsePolicy(string(policy)); err != nil {
		return nil, err
	}
	q := &Queue{
		capacity:  capacity,
		policy:    policy,
		logger:    logging.NopLogger(),
		ring:      make([]Frame, capacity),
		space:     make(chan struct{}),
		ready:     make(chan struct{}, 1),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
		consumers: make(map[string]*consumerState),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// Policy returns the overflow policy.
func (q *Queue) Policy() OverflowPolicy { return q.policy }

// Capacity returns the fixed queue capacity.
func (q *Queue) Capacity() int { return q.capacity }

// Enqueue adds data to the queue, applying the overflow policy when the
// queue is full. Under Block it waits for space until ctx is done or the
// queue is closed. Dropped frames are not errors. A closed queue returns a
// LifecycleError wrapping ErrQueueClosed.
func (q *Queue) Enqueue(ctx context.Context, data []byte) error {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return perrors.NewLifecycleError("broadcast", "enqueue", perrors.ErrQueueClosed)
		}

		if q.count < q.capacity {
			q.push(data)
			q.mu.Unlock()
			q.wake()
			return nil
		}

		switch q.policy {
		case DropNewest:
			q.nextSeq++
			seq := q.nextSeq
			q.mu.Unlock()
			q.droppedNewest.Add(1)
			q.logger.Debug("frame dropped", "seq", seq, "policy", string(q.policy), "error", perrors.ErrQueueOverflow.Error())
			return nil

		case DropOldest:
			evicted := q.pop()
			q.push(data)
			q.mu.Unlock()
			q.droppedOldest.Add(1)
			q.logger.Debug("frame evicted", "seq", evicted.Seq, "policy", string(q.policy), "error", perrors.ErrQueueOverflow.Error())
			q.wake()
			return nil

		default:
			space := q.space
			q.mu.Unlock()
			select {
			case <-space:
			case <-q.done:
				return perrors.NewLifecycleError("broadcast", "enqueue", perrors.ErrQueueClosed)
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// push appends a frame. The caller holds q.mu and has checked for space.
func (q *Queue) push(data []byte) {
	q.nextSeq++
	q.ring[(q.head+q.count)%q.capacity] = Frame{Seq: q.nextSeq, Data: data, Produced: time.Now()}
	q.count++
	q.enqueued.Add(1)
}

// pop removes the oldest frame and wakes Block waiters. The caller holds
// q.mu and has checked count > 0.
func (q *Queue) pop() Frame {
	f := q.ring[q.head]
	q.ring[q.head] = Frame{}
	q.head = (q.head + 1) % q.capacity
	q.count--
	close(q.space)
	q.space = make(chan struct{})
	return f
}

func (q *Queue) wake() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Len returns the number of queued frames.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Frames returns a copy of the queued frames, oldest first.
func (q *Queue) Frames() []Frame {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Frame, q.count)
	for i := range q.count {
		out[i] = q.ring[(q.head+i)%q.capacity]
	}
	return out
}

// AddConsumer registers c. It receives frames dispatched after this call.
func (q *Queue) AddConsumer(c Consumer) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return perrors.NewLifecycleError("broadcast", "add consumer", perrors.ErrQueueClosed)
	}
	id := c.ID()
	if _, exists := q.consumers[id]; exists {
		return fmt.Errorf("%w: %s", ErrConsumerExists, id)
	}
	q.consumers[id] = &consumerState{consumer: c}
	q.order = append(q.order, id)
	q.logger.Info("consumer added", "consumer", id)
	return nil
}

// RemoveConsumer unregisters a consumer. It reports whether id was
// registered.
func (q *Queue) RemoveConsumer(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.removeLocked(id)
}

func (q *Queue) removeLocked(id string) bool {
	if _, ok := q.consumers[id]; !ok {
		return false
	}
	delete(q.consumers, id)
	q.order = slices.DeleteFunc(q.order, func(s string) bool { return s == id })
	return true
}

// Consumers returns registered consumer ids in registration order.
func (q *Queue) Consumers() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.order)
}

// Start launches the dispatcher. It runs until ctx is done or Close is
// called. Calling Start more than once has no effect.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.started || q.closed {
		q.mu.Unlock()
		return
	}
	ctx, q.cancel = context.WithCancel(ctx)
	q.started = true
	q.mu.Unlock()

	go q.dispatch(ctx)
}

// Close stops the dispatcher, fails pending and future Enqueue calls with
// ErrQueueClosed, and waits for the dispatcher to exit. Queued frames are
// discarded. Close is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	started := q.started
	discarded := q.count
	close(q.done)
	cancel := q.cancel
	q.mu.Unlock()

	if started {
		cancel()
		<-q.stopped
	}
	q.logger.Info("broadcast queue closed", "discarded", discarded)
}

func (q *Queue) dispatch(ctx context.Context) {
	defer close(q.stopped)

	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return
		}
		if q.count == 0 {
			q.mu.Unlock()
			select {
			case <-q.ready:
				continue
			case <-q.done:
				return
			case <-ctx.Done():
				return
			}
		}
		frame := q.pop()
		targets := make([]*consumerState, 0, len(q.order))
		for _, id := range q.order {
			targets = append(targets, q.consumers[id])
		}
		q.mu.Unlock()

		q.dispatched.Add(1)
		q.fanOut(ctx, frame, targets)
	}
}

// fanOut delivers frame to every target concurrently and returns once each
// has either accepted it (and acked, when enabled) or failed.
func (q *Queue) fanOut(ctx context.Context, frame Frame, targets []*consumerState) {
	var wg conc.WaitGroup
	for _, st := range targets {
		wg.Go(func() { q.deliver(ctx, frame, st) })
	}
	if r := wg.WaitAndRecover(); r != nil {
		q.logger.Error("consumer delivery panicked", "seq", frame.Seq, "error", r.String())
	}
}

func (q *Queue) deliver(ctx context.Context, frame Frame, st *consumerState) {
	id := st.consumer.ID()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = perrors.Recovered(r)
			}
		}()
		return st.consumer.Send(ctx, frame)
	}()
	if err != nil {
		q.sendFailures.Add(1)
		q.mu.Lock()
		removed := q.removeLocked(id)
		q.mu.Unlock()
		if removed {
			q.removed.Add(1)
		}
		q.logger.Warn("consumer removed after send failure",
			"consumer", id, "seq", frame.Seq,
			"error", fmt.Errorf("%w: %w", perrors.ErrConsumerSend, err).Error())
		return
	}
	q.sent.Add(1)
	st.sent.Add(1)

	acker, ok := st.consumer.(Acker)
	if !ok || q.ackTimeout <= 0 {
		return
	}
	actx, cancel := context.WithTimeout(ctx, q.ackTimeout)
	defer cancel()
	if err := acker.AwaitAck(actx); err != nil {
		q.ackTimeouts.Add(1)
		st.ackTimeouts.Add(1)
		if errors.Is(err, context.DeadlineExceeded) {
			err = perrors.ErrAckTimeout
		}
		q.logger.Warn("consumer did not acknowledge frame",
			"consumer", id, "seq", frame.Seq, "timeout", q.ackTimeout.String(), "error", err.Error())
	}
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	queued := q.count
	per := make(map[string]ConsumerStats, len(q.consumers))
	for id, st := range q.consumers {
		per[id] = ConsumerStats{Sent: st.sent.Load(), AckTimeouts: st.ackTimeouts.Load()}
	}
	q.mu.Unlock()

	return Stats{
		Enqueued:         q.enqueued.Load(),
		DroppedNewest:    q.droppedNewest.Load(),
		DroppedOldest:    q.droppedOldest.Load(),
		Dispatched:       q.dispatched.Load(),
		Sent:             q.sent.Load(),
		SendFailures:     q.sendFailures.Load(),
		AckTimeouts:      q.ackTimeouts.Load(),
		RemovedConsumers: q.removed.Load(),
		Queued:           queued,
		Capacity:         q.capacity,
		Policy:           q.policy,
		Consumers:        per,
	}
}
