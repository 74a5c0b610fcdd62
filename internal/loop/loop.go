// Package loop provides the single logical thread of control that owns
// open documents.
//
// Concurrency model: one goroutine (Run) executes every task, timer callback
// and user input serially. Other goroutines only talk to it through channels,
// the same way the SSE broker owns its client set. Pending user input is
// always drained before idle work, and idle work can ask InputPending to
// give way cooperatively.
package loop

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrStopped is returned when work is submitted to a loop that is not running.
var ErrStopped = errors.New("loop: stopped")

// Loop is a cooperative, single-goroutine executor.
type Loop struct {
	input chan func()
	tasks chan func()

	started atomic.Bool
	stopped chan struct{}

	// lastInput is only touched on the loop goroutine.
	lastInput time.Time
	now       func() time.Time
}

// New creates a loop with the given queue capacity. Call Run to start it.
func New(capacity int) *Loop {
	if capacity <= 0 {
		capacity = 64
	}
	return &Loop{
		input:   make(chan func(), capacity),
		tasks:   make(chan func(), capacity),
		stopped: make(chan struct{}),
		now:     time.Now,
	}
}

// Run executes queued work until ctx is cancelled. It must be called once.
func (l *Loop) Run(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return errors.New("loop: already running")
	}
	defer close(l.stopped)

	for {
		// Input first, always.
		select {
		case fn := <-l.input:
			l.runInput(fn)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return nil
		case fn := <-l.input:
			l.runInput(fn)
		case fn := <-l.tasks:
			fn()
		}
	}
}

// Running reports whether Run has started and not yet returned.
func (l *Loop) Running() bool {
	if !l.started.Load() {
		return false
	}
	select {
	case <-l.stopped:
		return false
	default:
		return true
	}
}

func (l *Loop) runInput(fn func()) {
	l.lastInput = l.now()
	fn()
}

// InputPending reports whether user input is waiting. Only meaningful when
// called from the loop goroutine.
func (l *Loop) InputPending() bool {
	return len(l.input) > 0
}

// Post queues fn as idle work without waiting for it.
func (l *Loop) Post(fn func()) {
	select {
	case l.tasks <- fn:
	case <-l.stopped:
	}
}

// Do queues fn as idle work and waits until it has run.
// It must not be called from the loop goroutine.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	return l.submit(ctx, l.tasks, fn)
}

// Input queues fn as user input and waits until it has run. Input preempts
// any idle work that checks InputPending.
// It must not be called from the loop goroutine.
func (l *Loop) Input(ctx context.Context, fn func()) error {
	return l.submit(ctx, l.input, fn)
}

func (l *Loop) submit(ctx context.Context, q chan func(), fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}
	select {
	case q <- wrapped:
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Timer is a one-shot idle timer created by AfterIdle.
// Its methods must be called from the loop goroutine.
type Timer struct {
	loop    *Loop
	delay   time.Duration
	fn      func()
	t       *time.Timer
	stopped bool
}

// AfterIdle runs fn on the loop once no input has arrived for d. If input
// arrives while the timer is pending, the deadline moves out accordingly.
func (l *Loop) AfterIdle(d time.Duration, fn func()) *Timer {
	if d < 0 {
		d = 0
	}
	t := &Timer{loop: l, delay: d, fn: fn}
	t.arm(d)
	return t
}

func (t *Timer) arm(d time.Duration) {
	t.t = time.AfterFunc(d, func() {
		t.loop.Post(t.fire)
	})
}

// fire runs on the loop goroutine.
func (t *Timer) fire() {
	if t.stopped {
		return
	}
	if idle := t.loop.now().Sub(t.loop.lastInput); idle < t.delay {
		t.arm(t.delay - idle)
		return
	}
	t.stopped = true
	t.fn()
}

// Stop cancels the timer. A callback already queued on the loop is dropped.
func (t *Timer) Stop() {
	t.stopped = true
	if t.t != nil {
		t.t.Stop()
	}
}
