// Package clock provides the logical-time abstraction the kernel ticks
// against. The kernel never reads wall-clock time directly; every actor
// runs against a Clock so that a recorded tick sequence can be replayed
// bit-for-bit in tests (see pkg/kernel).
package clock

import (
	"sync"
	"time"
)

// Clock is the logical time source driving an actor's tick loop.
//
// It has three modes, selected at construction: real-time, stepped
// (manual advance, driven by a test harness or the Advance method), and
// offset (a real-time clock with a fixed start-time shift applied).
type Clock interface {
	// Now returns the current logical time.
	Now() time.Time

	// Tick returns the current tick number. The counter starts at
	// Config.FirstTick (0 by default) when the clock is built and grows
	// by one on every tick.
	Tick() uint64

	// Advance moves the clock forward by one tick and returns the new
	// logical time. In real-time mode this still advances the internal
	// tick counter but does not alter Now(), which continues to track
	// wall time; callers normally drive real-time clocks through C()
	// instead.
	Advance() time.Time

	// C returns a channel that receives the logical time of each tick.
	// For a manual clock, a tick is only delivered when Advance is
	// called; for a real-time clock, ticks are delivered every period.
	C() <-chan time.Time

	// Stop releases any underlying timer resources. Safe to call more
	// than once.
	Stop()
}

// Config selects a Clock's mode and parameters, mirroring the
// time.startTime / time.cycleMillis / time.firstTick / time.manual
// configuration surface.
type Config struct {
	// Manual selects the stepped clock. When false, a real-time clock
	// is built instead.
	Manual bool

	// Period is the tick period for a real-time clock. Ignored for a
	// manual clock. Defaults to one second.
	Period time.Duration

	// StartTime, if non-zero, offsets a real-time clock's Now() by the
	// difference between StartTime and the wall-clock time at
	// construction, or seeds a manual clock's initial Now().
	StartTime time.Time

	// FirstTick sets the initial tick counter value. Defaults to 0.
	FirstTick uint64
}

// New builds a Clock from cfg.
func New(cfg Config) Clock {
	if cfg.Manual {
		return newManual(cfg)
	}
	return newRealTime(cfg)
}

// manualClock is a stepped clock: Advance is the only thing that moves it
// forward. Used by tests and by record/replay harnesses that need
// deterministic, instantaneous ticks.
type manualClock struct {
	mu   sync.Mutex
	now  time.Time
	tick uint64
	ch   chan time.Time
}

func newManual(cfg Config) *manualClock {
	start := cfg.StartTime
	if start.IsZero() {
		start = time.Unix(0, 0).UTC()
	}
	return &manualClock{
		now:  start,
		tick: cfg.FirstTick,
		ch:   make(chan time.Time, 1),
	}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Tick() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tick
}

// period is the fixed logical advance applied on every Advance call for a
// manual clock; one second matches the default real-time tick period so
// tests built on the manual clock exercise the same timer arithmetic.
const period = time.Second

func (c *manualClock) Advance() time.Time {
	c.mu.Lock()
	c.now = c.now.Add(period)
	c.tick++
	now := c.now
	c.mu.Unlock()

	select {
	case c.ch <- now:
	default:
	}
	return now
}

func (c *manualClock) C() <-chan time.Time { return c.ch }

func (c *manualClock) Stop() {}

// realTimeClock wraps a time.Ticker, optionally offset by a configured
// start time.
type realTimeClock struct {
	mu     sync.Mutex
	ticker *time.Ticker
	offset time.Duration
	tick   uint64
	ch     chan time.Time
	stopCh chan struct{}
	once   sync.Once
}

func newRealTime(cfg Config) *realTimeClock {
	period := cfg.Period
	if period <= 0 {
		period = time.Second
	}

	var offset time.Duration
	if !cfg.StartTime.IsZero() {
		offset = cfg.StartTime.Sub(time.Now())
	}

	c := &realTimeClock{
		ticker: time.NewTicker(period),
		offset: offset,
		tick:   cfg.FirstTick,
		ch:     make(chan time.Time, 1),
		stopCh: make(chan struct{}),
	}
	go c.run()
	return c
}

func (c *realTimeClock) run() {
	for {
		select {
		case <-c.stopCh:
			return
		case <-c.ticker.C:
			c.mu.Lock()
			c.tick++
			now := time.Now().Add(c.offset)
			c.mu.Unlock()
			select {
			case c.ch <- now:
			default:
			}
		}
	}
}

func (c *realTimeClock) Now() time.Time {
	return time.Now().Add(c.offset)
}

func (c *realTimeClock) Tick() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tick
}

// Advance is a no-op wait for the next tick on a real-time clock; it
// blocks until the ticker fires rather than forcing progress, since real
// time cannot be forced forward.
func (c *realTimeClock) Advance() time.Time {
	return <-c.ch
}

func (c *realTimeClock) C() <-chan time.Time { return c.ch }

func (c *realTimeClock) Stop() {
	c.once.Do(func() {
		c.ticker.Stop()
		close(c.stopCh)
	})
}
