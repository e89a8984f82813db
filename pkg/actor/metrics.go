package actor

import (
	"github.com/testbedctl/actorcore/pkg/kernel"
	"github.com/testbedctl/actorcore/pkg/metrics"
)

// kernelStatsAdapter satisfies metrics.StatsProvider over a *kernel.Kernel
// without pkg/metrics importing pkg/kernel.
type kernelStatsAdapter struct{ k *kernel.Kernel }

func (a kernelStatsAdapter) Stats() metrics.KernelStats {
	s := a.k.Stats()
	return metrics.KernelStats{
		TicksProcessed:   s.TicksProcessed,
		EventsProcessed:  s.EventsProcessed,
		ReservationCount: s.ReservationCount,
		DirtyPersisted:   s.DirtyPersisted,
		RenewingCount:    s.RenewingCount,
		StatesCount:      s.StatesCount,
	}
}
