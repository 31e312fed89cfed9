package runtime

import (
	"context"
	"errors"

	perrors "github.com/Iron-Ham/prism/internal/errors"
	"github.com/Iron-Ham/prism/internal/event"
)

// Emitter publishes events under the owning peripheral's producer id.
type Emitter interface {
	Emit(eventType string, data any) event.StateEntry
	ProducerID() int
}

// Peripheral is a physical (or simulated) input device. Run is called on
// its own goroutine once the runtime starts and must return when ctx is
// done.
type Peripheral interface {
	Name() string
	Run(ctx context.Context, emit Emitter) error
}

// PeripheralFunc adapts a named function to the Peripheral interface.
type PeripheralFunc struct {
	ID string
	Fn func(ctx context.Context, emit Emitter) error
}

// Name returns the peripheral name.
func (p PeripheralFunc) Name() string { return p.ID }

// Run calls the wrapped function.
func (p PeripheralFunc) Run(ctx context.Context, emit Emitter) error {
	return p.Fn(ctx, emit)
}

type busEmitter struct {
	bus        *event.Bus
	producerID int
}

func (e busEmitter) Emit(eventType string, data any) event.StateEntry {
	return e.bus.Emit(eventType, data, e.producerID)
}

func (e busEmitter) ProducerID() int { return e.producerID }

type peripheralState struct {
	peripheral Peripheral
	emitter    busEmitter
}

func (r *Runtime) launch(ctx context.Context, ps peripheralState) {
	r.peripherals.Go(func() { r.runPeripheral(ctx, ps) })
}

func (r *Runtime) runPeripheral(ctx context.Context, ps peripheralState) {
	name := ps.peripheral.Name()
	logger := r.logger.With("peripheral", name, "producer", ps.emitter.producerID)

	defer func() {
		if v := recover(); v != nil {
			logger.Error("peripheral panicked", "error", perrors.Recovered(v).Error())
		}
	}()

	logger.Debug("peripheral started")
	err := ps.peripheral.Run(ctx, ps.emitter)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		logger.Debug("peripheral stopped")
	default:
		logger.Warn("peripheral stopped with error", "error", err.Error())
	}
}
