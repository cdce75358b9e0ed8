package search

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTimer struct {
	clock   *fakeClock
	at      time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// fakeClock fires timers only when Advance moves past their deadline.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now + d, fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= target {
			t.fired = true
			due = append(due, t)
		}
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
	c.now = target
	c.mu.Unlock()
	for _, t := range due {
		t.fn()
	}
}

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) fn(q string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, q)
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func newTestDebouncer() (*Debouncer, *fakeClock, *recorder) {
	clock := &fakeClock{}
	rec := &recorder{}
	return NewDebouncer(rec.fn, Options{Clock: clock}), clock, rec
}

func TestTypingBurstFiresOnceWithLatestValue(t *testing.T) {
	d, clock, rec := newTestDebouncer()

	d.Input("a")
	clock.Advance(100 * time.Millisecond)
	d.Input("ab")
	clock.Advance(100 * time.Millisecond)
	d.Input("abc")
	assert.Equal(t, "abc", d.Value())

	clock.Advance(299 * time.Millisecond)
	assert.Empty(t, rec.got())

	clock.Advance(1 * time.Millisecond)
	assert.Equal(t, []string{"abc"}, rec.got())

	clock.Advance(time.Second)
	assert.Equal(t, []string{"abc"}, rec.got())
}

func TestValueUpdatesImmediately(t *testing.T) {
	d, _, rec := newTestDebouncer()
	d.Input("h")
	d.Input("he")
	assert.Equal(t, "he", d.Value())
	assert.Empty(t, rec.got())
}

func TestClearCancelsPendingAndFiresEmpty(t *testing.T) {
	d, clock, rec := newTestDebouncer()

	d.Input("matrix")
	clock.Advance(100 * time.Millisecond)
	d.Clear()
	assert.Equal(t, []string{""}, rec.got())
	assert.Equal(t, "", d.Value())

	clock.Advance(time.Second)
	assert.Equal(t, []string{""}, rec.got())
}

func TestClearAlwaysFires(t *testing.T) {
	d, _, rec := newTestDebouncer()
	d.Clear()
	d.Clear()
	assert.Equal(t, []string{"", ""}, rec.got())
}

func TestSameSettledValueNotRedelivered(t *testing.T) {
	d, clock, rec := newTestDebouncer()

	d.Input("alien")
	clock.Advance(DefaultDelay)
	d.Input("alie")
	d.Input("alien")
	clock.Advance(DefaultDelay)

	assert.Equal(t, []string{"alien"}, rec.got())

	d.Input("aliens")
	clock.Advance(DefaultDelay)
	assert.Equal(t, []string{"alien", "aliens"}, rec.got())
}

func TestSupersededCallbackIsIgnored(t *testing.T) {
	d, clock, rec := newTestDebouncer()

	d.Input("old")
	clock.mu.Lock()
	stale := clock.timers[0]
	clock.mu.Unlock()
	d.Input("new")

	// Simulate a callback that was already running when Stop was called.
	stale.fn()
	assert.Empty(t, rec.got())

	clock.Advance(DefaultDelay)
	assert.Equal(t, []string{"new"}, rec.got())
}

func TestStopCancels(t *testing.T) {
	d, clock, rec := newTestDebouncer()
	d.Input("dune")
	d.Stop()
	clock.Advance(time.Second)
	d.Input("more")
	d.Clear()
	clock.Advance(time.Second)
	assert.Empty(t, rec.got())
}

func TestCustomDelay(t *testing.T) {
	clock := &fakeClock{}
	rec := &recorder{}
	d := NewDebouncer(rec.fn, Options{Clock: clock, Delay: 50 * time.Millisecond})
	d.Input("x")
	clock.Advance(50 * time.Millisecond)
	assert.Equal(t, []string{"x"}, rec.got())
}

func TestRealClock(t *testing.T) {
	fired := make(chan string, 1)
	d := NewDebouncer(func(q string) { fired <- q }, Options{Delay: 10 * time.Millisecond})
	d.Input("real")
	select {
	case q := <-fired:
		require.Equal(t, "real", q)
	case <-time.After(2 * time.Second):
		t.Fatal("debounced callback did not fire")
	}
}

func TestClearDuringDeliveryIsDeliveredAfterIt(t *testing.T) {
	clock := &fakeClock{}
	var (
		mu      sync.Mutex
		calls   []string
		active  int
		overlap bool
	)
	entered := make(chan struct{})
	release := make(chan struct{})
	d := NewDebouncer(func(q string) {
		mu.Lock()
		active++
		overlap = overlap || active > 1
		calls = append(calls, q)
		mu.Unlock()
		if q == "abc" {
			close(entered)
			<-release
		}
		mu.Lock()
		active--
		mu.Unlock()
	}, Options{Clock: clock})

	d.Input("abc")
	fired := make(chan struct{})
	go func() {
		defer close(fired)
		clock.Advance(DefaultDelay)
	}()
	<-entered

	cleared := make(chan struct{})
	go func() {
		defer close(cleared)
		d.Clear()
	}()
	require.Eventually(t, func() bool { return d.Value() == "" }, 2*time.Second, time.Millisecond)
	close(release)
	<-fired
	<-cleared

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"abc", ""}, calls)
	assert.False(t, overlap, "deliveries overlapped")
}
