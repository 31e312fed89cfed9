// Package demo provides a self-contained scene for running prism without
// hardware: two simulated peripherals, a handful of virtual peripherals
// built from the stock primitives, and a four-layer renderer stack.
package demo
