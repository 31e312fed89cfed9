// Package runtime assembles prism's components into a running display.
//
// A [Runtime] is built from a validated [config.Config] and owns one of
// each: event bus, virtual peripheral registry, timing tracker, render
// pipeline and broadcast queue. Nothing is global; callers reach the parts
// through accessors.
//
// # Frame loop
//
// [Runtime.Run] ticks at display.fps. Each tick renders the current stack,
// encodes the composed surface as row-major RGB (rotated for the panel's
// orientation) and enqueues it for broadcast. A frame in which every
// renderer declines is sent as black, so sinks always see a steady stream.
//
// # Peripherals
//
// Each [Peripheral] runs on its own goroutine with an [Emitter] bound to a
// producer id assigned in registration order, starting at 1. Ids from
// [virtual.DefaultProducerBase] upward belong to virtual peripherals.
// A panicking peripheral is logged and stops; the others keep running.
//
// # Shutdown
//
// [Runtime.Shutdown] stops peripherals, detaches virtual peripherals, waits
// for in-flight frames and closes the queue, in that order.
package runtime
