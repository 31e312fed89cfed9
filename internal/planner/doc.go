// Package planner decides how a frame's renderer stack is executed and
// composed.
//
// A [Plan] has two independent axes. The execution variant is either
// iterative (renderers run serially on the frame loop) or binary (renderers
// fan out to a worker pool). The merge strategy is either in-place (a left
// fold) or batched (a pairwise tree). Every combination is valid.
//
// [Decide] is a pure function of the stack size, the timing estimate, the
// configured [Thresholds] and an optional [Override]. [Observe] produces an
// [Observation] for logs and the control plane; nothing reads it back into
// a decision.
package planner
