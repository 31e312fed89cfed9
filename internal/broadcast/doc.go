// Package broadcast streams encoded frames to network consumers through a
// bounded queue.
//
// A frame handed to [Queue.Enqueue] is either queued or dropped according
// to the queue's [OverflowPolicy]:
//
//   - Block: the producer waits for the dispatcher to free a slot
//   - DropNewest: the incoming frame is discarded
//   - DropOldest: the oldest queued frame is evicted
//
// The dispatcher started by [Queue.Start] drains frames in FIFO order and
// sends each one to every registered [Consumer] concurrently, waiting for
// all of them before the next frame. A consumer whose Send fails is
// removed. When an ack timeout is configured, consumers implementing
// [Acker] are given that long to acknowledge; a missed ack is logged and
// the consumer stays.
//
// [Queue.Close] releases any producer blocked in Enqueue with a lifecycle
// error instead of leaving it parked.
package broadcast
