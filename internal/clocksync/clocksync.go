package clocksync

import (
	"time"

	"go.uber.org/zap"

	"github.com/tucoflyer/botclient/internal/logging"
)

// Sync holds the clock state carried from one burst to the next.
type Sync struct {
	now func() time.Time

	offset        int64
	hasOffset     bool
	lastTimestamp int64
	hasLast       bool
}

// New creates a Sync reading the local clock from now. A nil now uses
// time.Now.
func New(now func() time.Time) *Sync {
	if now == nil {
		now = time.Now
	}
	return &Sync{now: now}
}

// Observe records the server timestamp of the last message of a burst and
// returns the offset to apply to every message of that burst. The reset
// check runs against the previous burst before the stored timestamp is
// replaced.
func (s *Sync) Observe(last int64) int64 {
	if s.hasLast && last < s.lastTimestamp {
		logging.Debug("Server timestamps went backward, starting new clock epoch",
			zap.Int64("previous", s.lastTimestamp),
			zap.Int64("current", last),
		)
		s.hasOffset = false
	}
	s.lastTimestamp = last
	s.hasLast = true

	if !s.hasOffset {
		s.offset = s.now().UnixMilli() - last
		s.hasOffset = true
		logging.Debug("Clock offset established", zap.Int64("offset_ms", s.offset))
	}
	return s.offset
}

// Offset returns the current offset and whether one has been established.
func (s *Sync) Offset() (int64, bool) {
	return s.offset, s.hasOffset
}

// Local converts a server timestamp using the current offset.
func (s *Sync) Local(timestamp int64) int64 {
	return s.offset + timestamp
}

// Reset forgets all state; the next burst starts a new epoch.
func (s *Sync) Reset() {
	s.offset, s.hasOffset = 0, false
	s.lastTimestamp, s.hasLast = 0, false
}
