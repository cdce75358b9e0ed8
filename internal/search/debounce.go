// Package search debounces free-text query input.
package search

import (
	"sync"
	"time"
)

// DefaultDelay is the quiescence window before a query is delivered.
const DefaultDelay = 300 * time.Millisecond

// Timer is the cancellable handle returned by Clock.AfterFunc.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks. Tests swap in a manual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// RealClock is backed by time.AfterFunc.
var RealClock Clock = realClock{}

// Debouncer tracks the visible query and delivers it to fn once input has
// been quiet for the configured delay.
type Debouncer struct {
	delay time.Duration
	clock Clock
	fn    func(string)

	// deliverMu serialises calls to fn. A delivery that lost its generation
	// while waiting for it is dropped.
	deliverMu sync.Mutex

	mu        sync.Mutex
	value     string
	gen       uint64
	timer     Timer
	delivered string
	hasFired  bool
	stopped   bool
}

// Options configures a Debouncer.
type Options struct {
	Delay time.Duration
	Clock Clock
}

// NewDebouncer returns a Debouncer that calls fn with settled queries. Calls
// to fn never overlap and arrive in the order the queries settled; fn must
// not call Clear.
func NewDebouncer(fn func(string), opts Options) *Debouncer {
	delay := opts.Delay
	if delay <= 0 {
		delay = DefaultDelay
	}
	clock := opts.Clock
	if clock == nil {
		clock = RealClock
	}
	return &Debouncer{delay: delay, clock: clock, fn: fn}
}

// Input records a keystroke and restarts the quiescence window.
func (d *Debouncer) Input(q string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.value = q
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = d.clock.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Value is the query as currently typed.
func (d *Debouncer) Value() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.value
}

// Clear empties the query, cancels any pending delivery and delivers ""
// once any delivery already in progress has returned. Input arriving before
// that point supersedes the clear.
func (d *Debouncer) Clear() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.value = ""
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()
	d.mu.Lock()
	if gen != d.gen || d.stopped {
		d.mu.Unlock()
		return
	}
	d.delivered = ""
	d.hasFired = true
	d.mu.Unlock()
	d.fn("")
}

// Stop cancels any pending delivery. Later calls are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer) fire(gen uint64) {
	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()
	d.mu.Lock()
	// Timer.Stop can lose the race with an already running callback.
	if gen != d.gen || d.stopped {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	q := d.value
	if d.hasFired && q == d.delivered {
		d.mu.Unlock()
		return
	}
	d.delivered = q
	d.hasFired = true
	d.mu.Unlock()
	d.fn(q)
}
