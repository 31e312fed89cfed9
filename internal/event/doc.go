// Package event provides the synchronous pub-sub bus that peripherals emit
// onto, plus the StateStore that remembers the latest value per producer.
//
// # Main Types
//
//   - [Input]: an immutable value emitted by a peripheral
//   - [Bus]: priority-ordered synchronous dispatcher that owns a StateStore
//   - [Subscription]: handle returned by Subscribe, used to unsubscribe
//   - [StateStore]: latest [StateEntry] per (event type, producer)
//   - [Snapshot]: lock-free copy of a StateStore for renderers and the HTTP API
//
// # Delivery Order
//
// Publish first records the event in the StateStore, then runs handlers on
// the caller's goroutine in this order:
//
//  1. higher priority first
//  2. at equal priority, wildcard subscribers (SubscribeAll) before
//     subscribers of the specific type
//  3. remaining ties in registration order
//
// A handler that returns an error or panics is logged with its name and
// the event's type and producer; delivery continues with the next handler.
//
// # Thread Safety
//
// Subscribe and Unsubscribe may race with Publish. Subscriber lists are
// copy-on-write and every handle carries an active flag checked right
// before invocation, so a handle removed concurrently is never invoked by
// a later emit.
//
// # Basic Usage
//
//	bus := event.NewBus(event.WithLogger(logger))
//
//	sub := bus.Subscribe("sensor.temp", func(in event.Input) error {
//	    celsius, ok := in.Data.(float64)
//	    if !ok {
//	        return fmt.Errorf("unexpected payload %T", in.Data)
//	    }
//	    return record(celsius)
//	}, event.WithPriority(10), event.WithName("thermo-display"))
//	defer bus.Unsubscribe(sub)
//
//	bus.Emit("sensor.temp", 21.5, 1)
//	latest, _ := bus.Store().Latest("sensor.temp")
//
// # Event Type Naming Convention
//
// Event types follow "category.name": sensor.temp, imu.yaw, audio.level,
// button.pressed. The bus itself places no meaning on the names.
package event
