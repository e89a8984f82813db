/*
Package kernel implements the single-threaded cooperative tick loop
shared by every actor role (spec.md §4.1): orchestrator, broker, and
authority all run the same Kernel, differing only in the Hooks
implementation loaded at construction (pkg/actor wires this) and which
message kinds their dispatcher ever registers.

On every tick the kernel runs six ordered steps:

	1. Drain the queue up to a configurable batch cap (Config.BatchCap).
	2. Advance to the tick's logical time — a query-time concept here,
	   since Calendar is tick-indexed rather than cursor-based.
	3. Process, per slice in slice-id order, the reservations whose
	   pending-operation state permits progress this tick.
	4. Invoke Hooks.ProcessDue for each newly-eligible reservation.
	5. Flush outbound messages to the producer pool's channel.
	6. Persist dirty reservations in batches of Config.CommitBatchSize.

The kernel never blocks on I/O. Every point that would block in a naive
design — waiting for a broker's reply, waiting for a handler to finish
provisioning — is represented instead as a PendingState plus an entry in
pkg/timer or the provisioning pool; completion arrives back as an
EventRPCComplete pushed through Enqueue, which is the kernel's only
thread-safe entry point from outside its own goroutine.

Dependency ordering (spec.md §4.2's "Dependency rule") is enforced
generically here, not per-role: before a due reservation reaches Hooks,
the kernel checks its Predecessors and blocks or fails it without any
role-specific code running.
*/
package kernel
