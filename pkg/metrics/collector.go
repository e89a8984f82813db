package metrics

import (
	"strings"
	"time"
)

// KernelStats is the subset of kernel.Stats the collector depends on,
// named locally so pkg/metrics never imports pkg/kernel (which already
// imports pkg/calendar, pkg/protocol, and pkg/timer, and is in turn
// imported by pkg/actor alongside pkg/metrics — keeping the dependency
// one-directional avoids a cycle).
type KernelStats struct {
	TicksProcessed   uint64
	EventsProcessed  uint64
	ReservationCount int
	DirtyPersisted   uint64
	RenewingCount    int
	StatesCount      map[string]int
}

// StatsProvider is implemented by pkg/actor's kernelStatsAdapter, which
// wraps a *kernel.Kernel.
type StatsProvider interface {
	Stats() KernelStats
}

// Collector periodically snapshots one actor's kernel and republishes the
// counters as Prometheus series, the way the teacher's own collector
// polled the manager on a fixed tick rather than updating metrics inline
// on every store mutation.
type Collector struct {
	actor    string
	role     string
	provider StatsProvider

	interval time.Duration
	stopCh   chan struct{}

	lastTicks  uint64
	lastEvents uint64
}

// NewCollector builds a Collector for the named actor/role, polling
// provider every interval (15s if zero or negative).
func NewCollector(actor, role string, provider StatsProvider, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		actor:    actor,
		role:     role,
		provider: provider,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the background polling loop.
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts the polling loop.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	stats := c.provider.Stats()

	if stats.TicksProcessed > c.lastTicks {
		KernelTicksTotal.WithLabelValues(c.actor, c.role).Add(float64(stats.TicksProcessed - c.lastTicks))
		c.lastTicks = stats.TicksProcessed
	}
	if stats.EventsProcessed > c.lastEvents {
		KernelEventsTotal.WithLabelValues(c.actor, c.role).Add(float64(stats.EventsProcessed - c.lastEvents))
		c.lastEvents = stats.EventsProcessed
	}

	for key, count := range stats.StatesCount {
		state, pending, found := strings.Cut(key, "/")
		if !found {
			continue
		}
		ReservationsByState.WithLabelValues(c.actor, state, pending).Set(float64(count))
	}

	CalendarPendingDepth.WithLabelValues(c.actor, "renewing").Set(float64(stats.RenewingCount))
}
