/*
Package metrics defines and registers the Prometheus metrics exposed by an
actor process (orchestrator, broker, or authority), and a small Collector
that polls a kernel's Stats() snapshot on a fixed interval and republishes
the counters.

# Metrics Catalog

Kernel:

	actorcore_kernel_ticks_total{actor,role}            counter
	actorcore_kernel_events_total{actor,role}           counter
	actorcore_kernel_queue_depth{actor,role}            gauge
	actorcore_kernel_tick_duration_seconds{actor,role}  histogram

Reservations:

	actorcore_reservations_total{actor,state,pending}          gauge
	actorcore_reservation_transitions_total{actor,from,to}     counter
	actorcore_reservations_failed_total{actor,kind}            counter

Slices:

	actorcore_slices_total{state}  gauge

Calendar:

	actorcore_calendar_holdings{actor,node,dimension}  gauge
	actorcore_calendar_pending_depth{actor,bucket}      gauge

Policy:

	actorcore_allocation_duration_seconds{resource_type}   histogram
	actorcore_allocation_failures_total{resource_type}     counter

Handler / provisioning:

	actorcore_provision_duration_seconds{resource_type,outcome}  histogram
	actorcore_provision_pool_in_flight                           gauge

Protocol / transport:

	actorcore_messages_sent_total{kind}      counter
	actorcore_messages_received_total{kind}  counter
	actorcore_message_retries_total{kind}    counter

Persistence:

	actorcore_commit_duration_seconds   histogram
	actorcore_commit_batch_size         histogram

# Usage

	timer := metrics.NewTimer()
	// ... allocate ...
	timer.ObserveDurationVec(metrics.AllocationDuration, string(resourceType))

	http.Handle("/metrics", metrics.Handler())

# Collector

pkg/actor wires one metrics.Collector per Actor at construction time,
polling an adapter over the actor's own *kernel.Kernel (kernel.Stats is a
thread-safe snapshot taken once per tick, so polling it from a ticker
goroutine never races the kernel's own goroutine). Start/Stop follow the
actor's own lifecycle.

# Health

HealthHandler, ReadyHandler, and LivenessHandler expose /health, /ready,
and /live in the JSON shape the teacher's own health package uses.
RegisterComponent/UpdateComponent let a process report its components'
readiness independent of metrics; cmd/actor registers "store", "bus",
and "kernel".
*/
package metrics
