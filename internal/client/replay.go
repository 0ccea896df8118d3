package client

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/tucoflyer/botclient/internal/logging"
	"github.com/tucoflyer/botclient/internal/recorder"
)

// ReplaySource yields captured records in order and io.EOF at the end.
// Implemented by *recorder.Reader.
type ReplaySource interface {
	Next() (recorder.Record, error)
}

// Replay feeds a capture through the client as if it arrived on the
// transport. Message timestamps use each record's receive time, and
// outbound frames are discarded. Replay must not run concurrently with Run.
//
// It returns the number of records processed. A server error in the
// capture stops the replay and is returned.
func (c *Client) Replay(ctx context.Context, src ReplaySource) (int, error) {
	if c.destroyed.Load() {
		return 0, ErrDestroyed
	}

	c.replaying = true
	defer func() { c.replaying = false }()

	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}

		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, fmt.Errorf("reading record %d: %w", n, err)
		}

		c.replayAt = rec.Received
		if err := c.handleEvent(rec.Event()); err != nil {
			return n + 1, err
		}
		n++
		c.drainTicks()

		if c.destroyed.Load() {
			break
		}
	}

	logging.Info("Replay finished", zap.Int("records", n))
	return n, nil
}

// drainTicks runs frame callbacks that are already due.
func (c *Client) drainTicks() {
	for {
		select {
		case fn := <-c.ticks:
			fn()
		default:
			return
		}
	}
}
