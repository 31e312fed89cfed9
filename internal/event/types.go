package event

import "time"

// Wildcard is the event type that matches every emitted event.
const Wildcard = "*"

// Input is a single value emitted onto the bus by a peripheral (or a
// virtual peripheral). It is treated as immutable once published; the bus
// never inspects Data.
type Input struct {
	// Type identifies the signal, conventionally "category.name"
	// (e.g. "sensor.temp", "imu.yaw").
	Type string

	// Data is the opaque payload. Interpretation belongs to subscribers.
	Data any

	// ProducerID identifies which device produced the value. Several
	// producers may emit the same Type.
	ProducerID int

	// Timestamp is when the value was produced. Publish fills it with
	// time.Now() when left zero.
	Timestamp time.Time
}

// Handler receives events from the bus. A returned error is logged as a
// subscriber failure and never stops delivery to other handlers.
type Handler func(Input) error
