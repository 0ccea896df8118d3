// Package clocksync maps server-relative message timestamps onto the local
// wall clock.
//
// The bot labels every streamed message with a millisecond timestamp from
// its own clock. A Sync keeps one offset per epoch, anchored on the last
// message of the burst that opened the epoch:
//
//	offset = now() - lastTimestamp
//	local  = offset + timestamp
//
// An epoch ends when a burst's last timestamp is lower than the last
// timestamp of the previous burst, which happens after a bot restart or a
// clock adjustment. The offset is then recomputed from that burst.
//
// A Sync is not safe for concurrent use; the dispatcher owns one and calls
// it from its event loop.
package clocksync
