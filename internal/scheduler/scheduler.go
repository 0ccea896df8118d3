package scheduler

import (
	"sync"
	"time"
)

// Handle identifies a requested tick. The zero Handle is never issued.
type Handle uint64

// Scheduler runs callbacks on the next tick of some rendering host.
type Scheduler interface {
	// RequestTick arranges for fn to run once on the next tick.
	RequestTick(fn func()) Handle

	// CancelTick prevents a requested callback from running. Cancelling
	// a fired or unknown handle does nothing.
	CancelTick(h Handle)
}

// TickSource is implemented by schedulers whose callbacks must be run by
// the owner. The owner receives each due callback from Ticks and calls it.
type TickSource interface {
	Ticks() <-chan func()
}

// DefaultFrameInterval is 60 ticks per second.
const DefaultFrameInterval = time.Second / 60

// IntervalForRate converts a frames-per-second rate to a tick interval.
// Non-positive rates give DefaultFrameInterval.
func IntervalForRate(fps int) time.Duration {
	if fps <= 0 {
		return DefaultFrameInterval
	}
	return time.Second / time.Duration(fps)
}

// Frame is a fixed-rate Scheduler. Due callbacks are delivered on Ticks.
type Frame struct {
	mu      sync.Mutex
	next    Handle
	pending map[Handle]func()

	ticks chan func()
	stop  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

// NewFrame starts a Frame scheduler ticking every interval. Call Close to
// stop it.
func NewFrame(interval time.Duration) *Frame {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	f := &Frame{
		pending: make(map[Handle]func()),
		ticks:   make(chan func(), 1),
		stop:    make(chan struct{}),
	}
	f.wg.Add(1)
	go f.run(interval)
	return f
}

// RequestTick implements Scheduler.
func (f *Frame) RequestTick(fn func()) Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	f.pending[f.next] = fn
	return f.next
}

// CancelTick implements Scheduler. A callback already queued on Ticks
// becomes a no-op.
func (f *Frame) CancelTick(h Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pending, h)
}

// Ticks implements TickSource.
func (f *Frame) Ticks() <-chan func() {
	return f.ticks
}

// Pending returns the number of requested callbacks not yet run.
func (f *Frame) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// Close stops the ticker. Pending callbacks never run.
func (f *Frame) Close() {
	f.once.Do(func() {
		close(f.stop)
		f.wg.Wait()
		f.mu.Lock()
		f.pending = make(map[Handle]func())
		f.mu.Unlock()
	})
}

func (f *Frame) run(interval time.Duration) {
	defer f.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-f.stop:
			return
		case <-ticker.C:
		}

		f.mu.Lock()
		due := make([]Handle, 0, len(f.pending))
		for h := range f.pending {
			due = append(due, h)
		}
		f.mu.Unlock()

		for _, h := range due {
			select {
			case f.ticks <- f.fire(h):
			case <-f.stop:
				return
			}
		}
	}
}

// fire returns a callback that runs h if it is still pending at call time.
func (f *Frame) fire(h Handle) func() {
	return func() {
		f.mu.Lock()
		fn, ok := f.pending[h]
		delete(f.pending, h)
		f.mu.Unlock()
		if ok {
			fn()
		}
	}
}

// Manual is a Scheduler that ticks only when Fire is called.
type Manual struct {
	mu      sync.Mutex
	next    Handle
	pending map[Handle]func()
	order   []Handle
}

// NewManual creates a Manual scheduler.
func NewManual() *Manual {
	return &Manual{pending: make(map[Handle]func())}
}

// RequestTick implements Scheduler.
func (m *Manual) RequestTick(fn func()) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	m.pending[m.next] = fn
	m.order = append(m.order, m.next)
	return m.next
}

// CancelTick implements Scheduler.
func (m *Manual) CancelTick(h Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, h)
}

// Pending returns the number of requested callbacks not yet run.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Fire runs every pending callback in request order and returns how many
// ran. Callbacks requested during Fire wait for the next call.
func (m *Manual) Fire() int {
	m.mu.Lock()
	order := m.order
	m.order = nil
	due := make([]func(), 0, len(order))
	for _, h := range order {
		if fn, ok := m.pending[h]; ok {
			due = append(due, fn)
			delete(m.pending, h)
		}
	}
	m.mu.Unlock()

	for _, fn := range due {
		fn()
	}
	return len(due)
}
