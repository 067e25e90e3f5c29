// Package host provides the single goroutine that owns the controller and
// the frame-pacing primitive it schedules render callbacks with.
package host

import (
	"context"
	"errors"
	"time"
)

// FrameID identifies one outstanding frame registration.
type FrameID uint64

// ErrStopped is returned by Call once Run has returned.
var ErrStopped = errors.New("host loop stopped")

// Loop serializes posted work and frame callbacks on the goroutine running
// Run. Frame callbacks requested during tick N run on tick N+1, once per
// refresh interval. RequestFrame, CancelFrame and Tick must only be used from
// the loop goroutine (or from a test that owns the Loop without running it).
type Loop struct {
	interval time.Duration
	tasks    chan func()
	done     chan struct{}

	frames map[FrameID]func(time.Time)
	// pending lists ids in request order. Cancelled ids stay here until the
	// next Tick, which skips them because they are gone from frames.
	pending []FrameID
	lastID  FrameID

	// Ticks counts dispatched ticks. Read it on the loop goroutine.
	Ticks uint64
}

func NewLoop(fps int) *Loop {
	if fps <= 0 {
		fps = 60
	}
	return &Loop{
		interval: time.Second / time.Duration(fps),
		tasks:    make(chan func(), 64),
		done:     make(chan struct{}),
		frames:   map[FrameID]func(time.Time){},
	}
}

// Post queues fn to run on the loop goroutine. It reports false when the
// loop has already stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Call runs fn on the loop goroutine and waits for it to finish.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() { fn(); close(finished) }) {
		return ErrStopped
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequestFrame registers fn for the next tick.
func (l *Loop) RequestFrame(fn func(now time.Time)) FrameID {
	l.lastID++
	l.frames[l.lastID] = fn
	l.pending = append(l.pending, l.lastID)
	return l.lastID
}

// CancelFrame drops a registration. Cancelling an id that already fired or
// was never issued is a no-op.
func (l *Loop) CancelFrame(id FrameID) { delete(l.frames, id) }

// Pending reports how many registrations are waiting for a tick.
func (l *Loop) Pending() int { return len(l.frames) }

// Tick runs every callback registered before this tick and returns how many
// ran. A callback cancelled by an earlier callback of the same tick is
// skipped.
func (l *Loop) Tick(now time.Time) int {
	due := l.pending
	l.pending = nil
	n := 0
	for _, id := range due {
		fn, ok := l.frames[id]
		if !ok {
			continue
		}
		delete(l.frames, id)
		fn(now)
		n++
	}
	l.Ticks++
	return n
}

// Run dispatches posted work and ticks until ctx is cancelled. Pending frame
// callbacks are dropped on exit.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.tasks:
			fn()
		case now := <-ticker.C:
			l.Tick(now)
		}
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} { return l.done }
