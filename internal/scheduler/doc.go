// Package scheduler provides the tick capability used to coalesce model
// updates into frame notifications.
//
// A Scheduler runs a callback once on its next tick:
//
//	h := s.RequestTick(func() { emitFrame() })
//	...
//	s.CancelTick(h) // the callback will not run
//
// Frame ticks at a fixed rate and hands due callbacks to its owner over
// the Ticks channel, so they execute on the owner's goroutine rather than
// the ticker's. Manual fires only when told to and is meant for tests and
// replay.
//
// A nil Scheduler means headless operation: callers skip frame coalescing.
package scheduler
