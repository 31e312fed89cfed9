package event

import (
	"bytes"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/Iron-Ham/prism/internal/logging"
)

func TestBus_Subscribe(t *testing.T) {
	bus := NewBus()

	called := false
	sub := bus.Subscribe("sensor.x", func(Input) error {
		called = true
		return nil
	})

	if sub == nil || !sub.Active() {
		t.Fatal("Subscribe should return an active handle")
	}
	if bus.SubscriptionCount() != 1 {
		t.Errorf("Expected 1 subscription, got %d", bus.SubscriptionCount())
	}
	if called {
		t.Error("Handler should not be called until an event is published")
	}
}

func TestBus_Emit(t *testing.T) {
	bus := NewBus()

	var received Input
	bus.Subscribe("sensor.temp", func(in Input) error {
		received = in
		return nil
	})

	entry := bus.Emit("sensor.temp", 21.5, 3)

	if received.Type != "sensor.temp" || received.Data != 21.5 || received.ProducerID != 3 {
		t.Errorf("unexpected event: %+v", received)
	}
	if received.Timestamp.IsZero() {
		t.Error("Emit should stamp the event")
	}
	if entry.Data != 21.5 || entry.ProducerID != 3 {
		t.Errorf("returned entry = %+v", entry)
	}
}

func TestBus_PublishNoMatchingHandlers(t *testing.T) {
	bus := NewBus()

	bus.Subscribe("other.event", func(Input) error {
		t.Error("Handler should not be called for non-matching event type")
		return nil
	})

	bus.Emit("test.event", nil, 0)

	if _, ok := bus.Store().Latest("test.event"); !ok {
		t.Error("state should be recorded even without subscribers")
	}
}

// Equal-priority wildcard subscribers run before type-specific ones.
func TestBus_DeliveryOrder(t *testing.T) {
	bus := NewBus()

	var order []string
	record := func(name string) Handler {
		return func(Input) error {
			order = append(order, name)
			return nil
		}
	}

	bus.Subscribe("sensor.x", record("specific-p0-first"))
	bus.Subscribe("sensor.x", record("specific-p5"), WithPriority(5))
	bus.SubscribeAll(record("wildcard-p0"))
	bus.Subscribe("sensor.x", record("specific-p0-second"))
	bus.SubscribeAll(record("wildcard-p5"), WithPriority(5))
	bus.Subscribe("sensor.x", record("specific-p10"), WithPriority(10))
	bus.SubscribeAll(record("wildcard-neg"), WithPriority(-1))

	bus.Emit("sensor.x", 1, 0)

	want := []string{
		"specific-p10",
		"wildcard-p5",
		"specific-p5",
		"wildcard-p0",
		"specific-p0-first",
		"specific-p0-second",
		"wildcard-neg",
	}
	if !slices.Equal(order, want) {
		t.Errorf("delivery order = %v, want %v", order, want)
	}
}

func TestBus_FailingSubscriberIsolation(t *testing.T) {
	var buf bytes.Buffer
	bus := NewBus(WithLogger(logging.NewWriterLogger(&buf, logging.LevelDebug)))

	var got []string
	bus.Subscribe("sensor.x", func(Input) error {
		got = append(got, "erroring")
		return errors.New("bad payload")
	}, WithPriority(20), WithName("erroring"))
	bus.Subscribe("sensor.x", func(Input) error {
		got = append(got, "panicking")
		panic("boom")
	}, WithPriority(10), WithName("panicking"))
	bus.Subscribe("sensor.x", func(Input) error {
		got = append(got, "low")
		return nil
	})

	bus.Emit("sensor.x", 1, 7)

	if !slices.Equal(got, []string{"erroring", "panicking", "low"}) {
		t.Errorf("handlers called = %v", got)
	}

	stats := bus.Stats()
	if stats.HandlerErrors != 2 || stats.HandlerPanics != 1 || stats.Delivered != 1 {
		t.Errorf("stats = %+v", stats)
	}

	logs := buf.String()
	for _, want := range []string{`"subscriber":"erroring"`, `"subscriber":"panicking"`, `"producer":7`, "bad payload"} {
		if !strings.Contains(logs, want) {
			t.Errorf("logs missing %s:\n%s", want, logs)
		}
	}
}

func TestBus_StateLatestWins(t *testing.T) {
	bus := NewBus()

	bus.Emit("sensor.x", "from-1", 1)
	bus.Emit("sensor.x", "from-2", 2)

	latest, ok := bus.Store().Latest("sensor.x")
	if !ok || latest.Data != "from-2" || latest.ProducerID != 2 {
		t.Errorf("Latest = %+v, want producer 2", latest)
	}

	first, ok := bus.Store().LatestFrom("sensor.x", 1)
	if !ok || first.Data != "from-1" {
		t.Errorf("LatestFrom(1) = %+v, want from-1", first)
	}
}

func TestBus_EndToEnd(t *testing.T) {
	bus := NewBus()

	var order []string
	bus.Subscribe("sensor.x", func(Input) error {
		order = append(order, "A")
		return nil
	}, WithPriority(10))
	bus.Subscribe("sensor.x", func(Input) error {
		order = append(order, "B")
		return nil
	}, WithPriority(0))

	const producerA = 11
	bus.Emit("sensor.x", map[string]int{"lux": 300}, producerA)

	if !slices.Equal(order, []string{"A", "B"}) {
		t.Errorf("order = %v, want [A B]", order)
	}
	latest, ok := bus.Store().Latest("sensor.x")
	if !ok {
		t.Fatal("no state recorded")
	}
	if latest.ProducerID != producerA {
		t.Errorf("ProducerID = %d, want %d", latest.ProducerID, producerA)
	}
	if latest.Data.(map[string]int)["lux"] != 300 {
		t.Errorf("Data = %v", latest.Data)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	called := false
	sub := bus.Subscribe("test.event", func(Input) error {
		called = true
		return nil
	})

	if !bus.Unsubscribe(sub) {
		t.Error("Unsubscribe should return true when subscription exists")
	}
	if bus.Unsubscribe(sub) {
		t.Error("second Unsubscribe should be a no-op")
	}
	if bus.Unsubscribe(nil) {
		t.Error("Unsubscribe(nil) should be a no-op")
	}
	if bus.SubscriptionCount() != 0 {
		t.Errorf("Expected 0 subscriptions after unsubscribe, got %d", bus.SubscriptionCount())
	}

	bus.Emit("test.event", nil, 0)
	if called {
		t.Error("Handler should not be called after unsubscribing")
	}
}

func TestBus_UnsubscribeForeignHandle(t *testing.T) {
	a, b := NewBus(), NewBus()
	sub := a.Subscribe("x", func(Input) error { return nil })

	if b.Unsubscribe(sub) {
		t.Error("unknown handle should not be removed from another bus")
	}
}

func TestBus_UnsubscribeDuringEmit(t *testing.T) {
	bus := NewBus()

	var laterCalls int
	var later *Subscription
	bus.Subscribe("tick", func(Input) error {
		bus.Unsubscribe(later)
		return nil
	}, WithPriority(1))
	later = bus.Subscribe("tick", func(Input) error {
		laterCalls++
		return nil
	})

	bus.Emit("tick", nil, 0)
	bus.Emit("tick", nil, 0)

	if laterCalls != 0 {
		t.Errorf("removed handle invoked %d times", laterCalls)
	}
}

func TestBus_WildcardEmitNotDoubled(t *testing.T) {
	bus := NewBus()

	calls := 0
	bus.SubscribeAll(func(Input) error {
		calls++
		return nil
	})
	bus.Emit(Wildcard, nil, 0)

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestBus_Clear(t *testing.T) {
	bus := NewBus()

	s1 := bus.Subscribe("event.one", func(Input) error { return nil })
	bus.Subscribe("event.two", func(Input) error { return nil })
	bus.SubscribeAll(func(Input) error { return nil })

	bus.Clear()

	if bus.SubscriptionCount() != 0 {
		t.Errorf("Expected 0 subscriptions after clear, got %d", bus.SubscriptionCount())
	}
	if s1.Active() {
		t.Error("cleared handles should be inactive")
	}
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	calls := 0
	bus.Subscribe("test.event", func(Input) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	})

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Go(func() {
			bus.Emit("test.event", i, i%4)
		})
	}
	wg.Wait()

	if calls != 100 {
		t.Errorf("Expected 100 calls, got %d", calls)
	}
	if got := len(bus.Store().All("test.event")); got != 4 {
		t.Errorf("expected 4 producers in state, got %d", got)
	}
}

func TestBus_ConcurrentSubscribeUnsubscribeWithEmit(t *testing.T) {
	bus := NewBus()

	stop := make(chan struct{})
	var emitter sync.WaitGroup
	emitter.Go(func() {
		for {
			select {
			case <-stop:
				return
			default:
				bus.Emit("test.event", nil, 0)
			}
		}
	})

	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			sub := bus.Subscribe("test.event", func(Input) error { return nil })
			bus.Unsubscribe(sub)
		})
	}
	wg.Wait()
	close(stop)
	emitter.Wait()

	if bus.SubscriptionCount() != 0 {
		t.Errorf("Expected 0 subscriptions after concurrent add/remove, got %d", bus.SubscriptionCount())
	}
}

func TestSubscription_Name(t *testing.T) {
	bus := NewBus()

	named := bus.Subscribe("a", func(Input) error { return nil }, WithName("display"))
	anon := bus.Subscribe("b", func(Input) error { return nil })

	if named.Name() != "display" {
		t.Errorf("Name() = %q", named.Name())
	}
	if anon.Name() != "b#2" {
		t.Errorf("Name() = %q, want b#2", anon.Name())
	}
	if anon.Sequence() <= named.Sequence() {
		t.Error("sequence should follow registration order")
	}
}
