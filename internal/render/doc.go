// Package render composes a stack of renderers into one frame.
//
// Renderers are painted back to front: a later renderer's opaque pixels
// cover an earlier one's, and fully transparent pixels show what is below.
// For every frame the [Pipeline] asks the planner how to run the stack:
//
//   - iterative: renderers run in order on the calling goroutine
//   - binary: each renderer runs once on a bounded worker pool and its
//     surface is stored at its stack position
//
// and how to compose the surfaces:
//
//   - in-place: a left fold into one accumulator
//   - batched: a balanced tree of pairwise merges, one pool barrier per level
//
// Because [Surface.Draw] is associative, both merge strategies produce
// identical pixels. A renderer that returns an error or panics is logged
// and skipped for that frame.
//
// # Lifecycle
//
// [Pipeline.Shutdown] stops new frames, waits for in-flight frames, and
// releases the pool. Render after Shutdown returns a lifecycle error
// wrapping errors.ErrPipelineClosed.
package render
