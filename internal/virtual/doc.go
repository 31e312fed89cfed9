// Package virtual wires synthetic peripherals onto the event bus.
//
// A virtual peripheral derives new events from one or more existing event
// types: fusing two raw channels, applying a calibration, pulling a field
// out of a JSON report. It is declared with a [Definition]; [Registry.Register]
// calls the factory once and subscribes the resulting handler to each
// declared source type, so a handler never has to filter for itself.
//
// Handler failures are isolated by the bus exactly like any other
// subscriber: logged with the peripheral's name and skipped.
//
// # Primitives
//
// The package ships small explicit state machines that cover the usual
// derivations. Each returns a [Factory]:
//
//   - [Map]: one event in, zero or one event out
//   - [Scan]: running fold over the input
//   - [DistinctUntilChanged]: drop consecutive repeats
//   - [CombineLatest]: join several inputs once every one has been seen
//   - [Calibrate]: linear scale/offset of numeric payloads
//   - [JSONField]: extract a gjson path from a JSON payload
//
// # Freshness
//
// CombineLatest emits only after every input has been seen at least once.
// From then on every update of any input re-emits using the most recent
// value of each input; inputs are not required to update again.
//
// # Usage
//
//	reg := virtual.NewRegistry(bus, virtual.WithLogger(logger))
//	err := reg.Register(virtual.Definition{
//	    Name:    "comfort",
//	    Sources: []string{"sensor.temp", "sensor.humidity"},
//	    Factory: virtual.CombineLatest("derived.comfort",
//	        []string{"sensor.temp", "sensor.humidity"},
//	        func(latest map[string]any) any { return heatIndex(latest) }),
//	})
//	defer reg.Shutdown()
package virtual
