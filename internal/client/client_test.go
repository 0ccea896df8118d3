package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tucoflyer/botclient/internal/events"
	"github.com/tucoflyer/botclient/internal/model"
	"github.com/tucoflyer/botclient/internal/protocol"
	"github.com/tucoflyer/botclient/internal/recorder"
	"github.com/tucoflyer/botclient/internal/scheduler"
	"github.com/tucoflyer/botclient/internal/session"
	"github.com/tucoflyer/botclient/internal/transport"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type runResult struct {
	err error
}

// startClient runs c in the background and returns a channel carrying
// Run's result.
func startClient(t *testing.T, c *Client) <-chan runResult {
	t.Helper()
	done := make(chan runResult, 1)
	go func() {
		done <- runResult{err: c.Run(context.Background())}
	}()
	t.Cleanup(c.Destroy)
	return done
}

func waitRun(t *testing.T, done <-chan runResult) error {
	t.Helper()
	select {
	case r := <-done:
		return r.err
	case <-time.After(waitFor):
		t.Fatal("Run did not return")
		return nil
	}
}

func TestHandshake(t *testing.T) {
	mem := transport.NewMemory(16)
	c := New(mem, WithKey("secret"))

	var auths atomic.Int32
	_, err := c.OnAuth(func(s session.Status) {
		assert.True(t, s.Connected)
		assert.True(t, s.Authenticated)
		auths.Add(1)
	})
	require.NoError(t, err)

	startClient(t, c)

	_, err = mem.Open()
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(mem.Sent()) == 1 }, waitFor, tick)

	var sub protocol.SubscriptionRequest
	require.NoError(t, json.Unmarshal(mem.Sent()[0], &sub))
	assert.Contains(t, sub.Subscription, "WinchStatus")
	require.Eventually(t, func() bool { return c.Status() == session.Status{Connected: true} }, waitFor, tick)

	require.NoError(t, mem.Deliver([]byte(`{"Auth": {"challenge": "abc"}}`)))
	require.Eventually(t, func() bool { return len(mem.Sent()) == 2 }, waitFor, tick)

	var resp protocol.AuthResponse
	require.NoError(t, json.Unmarshal(mem.Sent()[1], &resp))
	assert.Equal(t, protocol.Digest([]byte("abc"), "secret"), resp.Auth.Digest)

	require.NoError(t, mem.Deliver([]byte(`{"AuthStatus": true}`)))
	require.NoError(t, mem.Deliver([]byte(`{"AuthStatus": true}`)))
	require.Eventually(t, func() bool { return c.Status().Authenticated }, waitFor, tick)

	// Events are handled in order, so the close implies both statuses ran.
	require.NoError(t, mem.Drop(nil))
	require.Eventually(t, func() bool { return !c.Status().Connected }, waitFor, tick)
	assert.Equal(t, int32(1), auths.Load())
}

func TestSetKeyAnswersPendingChallenge(t *testing.T) {
	mem := transport.NewMemory(16)
	c := New(mem)
	startClient(t, c)

	_, err := mem.Open()
	require.NoError(t, err)
	require.NoError(t, mem.Deliver([]byte(`{"Auth": {"challenge": [1, 2, 3]}}`)))
	require.Eventually(t, func() bool { return len(mem.Sent()) == 1 }, waitFor, tick)

	require.NoError(t, c.SetKey("late"))
	require.Eventually(t, func() bool { return len(mem.Sent()) == 2 }, waitFor, tick)

	var resp protocol.AuthResponse
	require.NoError(t, json.Unmarshal(mem.Sent()[1], &resp))
	assert.Equal(t, protocol.Digest([]byte{1, 2, 3}, "late"), resp.Auth.Digest)
}

func TestServerErrorStopsRun(t *testing.T) {
	mem := transport.NewMemory(16)
	c := New(mem)

	var logs atomic.Int32
	_, err := c.OnLog(func(*protocol.Envelope) { logs.Add(1) })
	require.NoError(t, err)

	done := startClient(t, c)
	_, err = mem.Open()
	require.NoError(t, err)
	require.NoError(t, mem.Deliver([]byte(`{"Error": {"code": 7}}`)))

	runErr := waitRun(t, done)
	var serverErr *session.ServerError
	require.ErrorAs(t, runErr, &serverErr)
	assert.JSONEq(t, `{"code": 7}`, string(serverErr.Payload))
	assert.Equal(t, int32(1), logs.Load())
}

func TestDestroyStopsNotifications(t *testing.T) {
	mem := transport.NewMemory(16)
	c := New(mem)

	var bursts atomic.Int32
	_, err := c.OnMessages(func(msgs []*protocol.Message) { bursts.Add(1) })
	require.NoError(t, err)

	done := startClient(t, c)
	_, err = mem.Open()
	require.NoError(t, err)
	require.NoError(t, mem.Deliver([]byte(`{"Stream": [{"message": {"WinchStatus": [0, {}]}, "timestamp": 1}]}`)))
	require.Eventually(t, func() bool { return bursts.Load() == 1 }, waitFor, tick)

	c.Destroy()
	c.Destroy()
	require.NoError(t, waitRun(t, done))

	assert.True(t, c.Destroyed())
	assert.True(t, mem.Closed())
	assert.ErrorIs(t, mem.Deliver([]byte(`{}`)), transport.ErrClosed)
	assert.ErrorIs(t, c.SetKey("k"), ErrDestroyed)
	assert.ErrorIs(t, c.Send(map[string]int{"a": 1}), ErrDestroyed)

	_, err = c.OnFrame(func(*model.Model) {})
	assert.ErrorIs(t, err, events.ErrClosed)
	assert.Equal(t, int32(1), bursts.Load())
}

func TestRunAfterDestroy(t *testing.T) {
	c := New(transport.NewMemory(1))
	c.Destroy()
	assert.ErrorIs(t, c.Run(context.Background()), ErrDestroyed)
}

func TestContextCancelDestroys(t *testing.T) {
	mem := transport.NewMemory(4)
	c := New(mem)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(waitFor):
		t.Fatal("Run did not return")
	}
	assert.True(t, c.Destroyed())
	assert.True(t, mem.Closed())
}

func TestFramesCoalesce(t *testing.T) {
	mem := transport.NewMemory(16)
	sched := scheduler.NewManual()
	c := New(mem, WithScheduler(sched))

	var mu sync.Mutex
	var frames []*model.Model
	_, err := c.OnFrame(func(m *model.Model) {
		mu.Lock()
		frames = append(frames, m)
		mu.Unlock()
	})
	require.NoError(t, err)

	var bursts atomic.Int32
	_, err = c.OnMessages(func([]*protocol.Message) { bursts.Add(1) })
	require.NoError(t, err)

	startClient(t, c)
	_, err = mem.Open()
	require.NoError(t, err)
	for _, frame := range []string{
		`{"Stream": [{"message": {"WinchStatus": [0, {"n": 1}]}, "timestamp": 1}]}`,
		`{"Stream": [{"message": {"WinchStatus": [0, {"n": 2}]}, "timestamp": 2}]}`,
		`{"Stream": [{"message": {"WinchStatus": [0, {"n": 3}]}, "timestamp": 3}]}`,
	} {
		require.NoError(t, mem.Deliver([]byte(frame)))
	}
	require.Eventually(t, func() bool { return bursts.Load() == 3 }, waitFor, tick)
	assert.Equal(t, 1, sched.Pending())

	assert.Equal(t, 1, sched.Fire())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, frames, 1)
	winch := frames[0].Winch(0)
	require.NotNil(t, winch)
	assert.Equal(t, int64(3), winch.Timestamp)
}

func TestSend(t *testing.T) {
	mem := transport.NewMemory(4)
	c := New(mem)

	assert.ErrorIs(t, c.Send(map[string]string{"ManualControlValue": "x"}), transport.ErrNotConnected)
	assert.Error(t, c.Send(func() {}))

	startClient(t, c)
	_, err := mem.Open()
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.Status().Connected }, waitFor, tick)

	require.NoError(t, c.Send(map[string]int{"Ping": 1}))
	sent := mem.Sent()
	require.Len(t, sent, 2)
	assert.JSONEq(t, `{"Ping": 1}`, string(sent[1]))
}

type captureRecorder struct {
	mu     sync.Mutex
	events []transport.Event
}

func (r *captureRecorder) Record(ev transport.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *captureRecorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestRecorderSeesEveryEvent(t *testing.T) {
	mem := transport.NewMemory(8)
	rec := &captureRecorder{}
	c := New(mem, WithRecorder(rec))
	startClient(t, c)

	_, err := mem.Open()
	require.NoError(t, err)
	require.NoError(t, mem.Deliver([]byte(`not json`)))
	require.NoError(t, mem.Drop(errors.New("reset")))

	require.Eventually(t, func() bool { return rec.len() == 3 }, waitFor, tick)
	assert.Equal(t, transport.EventMessage, rec.events[1].Kind)
	assert.Equal(t, []byte(`not json`), rec.events[1].Data)
}

type sliceSource struct {
	records []recorder.Record
}

func (s *sliceSource) Next() (recorder.Record, error) {
	if len(s.records) == 0 {
		return recorder.Record{}, io.EOF
	}
	r := s.records[0]
	s.records = s.records[1:]
	return r, nil
}

func TestReplay(t *testing.T) {
	mem := transport.NewMemory(4)
	c := New(mem, WithKey("secret"))

	var auths atomic.Int32
	_, err := c.OnAuth(func(session.Status) { auths.Add(1) })
	require.NoError(t, err)

	at := time.UnixMilli(5000).UTC()
	src := &sliceSource{records: []recorder.Record{
		{Received: at, Kind: "open", ConnID: "c1"},
		{Received: at, Kind: "message", ConnID: "c1", Frame: []byte(`{"Auth": {"challenge": "x"}}`)},
		{Received: at, Kind: "message", ConnID: "c1", Frame: []byte(`{"AuthStatus": true}`)},
		{Received: at, Kind: "message", ConnID: "c1", Frame: []byte(`{"Stream": [{"message": {"WinchStatus": [4, {}]}, "timestamp": 1000}]}`)},
	}}

	n, err := c.Replay(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	assert.Empty(t, mem.Sent())
	assert.Equal(t, session.Status{Connected: true, Authenticated: true}, c.Status())
	assert.Equal(t, int32(1), auths.Load())

	winch := c.Snapshot().Winch(4)
	require.NotNil(t, winch)
	assert.Equal(t, int64(5000), winch.LocalTimestamp)
}

func TestReplayStopsOnServerError(t *testing.T) {
	c := New(transport.NewMemory(1))
	src := &sliceSource{records: []recorder.Record{
		{Kind: "open"},
		{Kind: "message", Frame: []byte(`{"Error": "boom"}`)},
		{Kind: "message", Frame: []byte(`{"AuthStatus": true}`)},
	}}

	n, err := c.Replay(context.Background(), src)
	var serverErr *session.ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, 2, n)
	assert.False(t, c.Status().Authenticated)
}

func TestStatusInsideAuthHandler(t *testing.T) {
	mem := transport.NewMemory(16)
	c := New(mem, WithKey("secret"))

	seen := make(chan session.Status, 1)
	_, err := c.OnAuth(func(session.Status) { seen <- c.Status() })
	require.NoError(t, err)

	startClient(t, c)
	_, err = mem.Open()
	require.NoError(t, err)
	require.NoError(t, mem.Deliver([]byte(`{"AuthStatus": true}`)))

	select {
	case s := <-seen:
		assert.Equal(t, session.Status{Connected: true, Authenticated: true}, s)
	case <-time.After(waitFor):
		t.Fatal("no auth notification")
	}
}

func TestDestroyClearsStatus(t *testing.T) {
	mem := transport.NewMemory(16)
	c := New(mem, WithKey("secret"))
	done := startClient(t, c)

	_, err := mem.Open()
	require.NoError(t, err)
	require.NoError(t, mem.Deliver([]byte(`{"AuthStatus": true}`)))
	require.Eventually(t, func() bool { return c.Status().Authenticated }, waitFor, tick)

	c.Destroy()
	assert.NoError(t, waitRun(t, done))
	assert.Equal(t, session.Status{}, c.Status())
}
