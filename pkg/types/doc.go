/*
Package types defines the core data structures shared by every actor role
in the control framework: orchestrator, broker, and authority.

It contains the entities the rest of the module operates on — Slice,
Reservation, Delegation, Peer — their state enumerations, and the small
value types (Capacities, Window, NodeMap) that compose them, plus the
error-kind taxonomy used for propagation across the kernel, policy, and
protocol layers.

# Architecture

	┌─────────────────────────── types ───────────────────────────┐
	│                                                              │
	│   Slice 1───* Reservation *───0 Predecessor (weak ref by id) │
	│     │                │                                      │
	│     │                └── NodeMap → (GraphID, GraphNodeID)   │
	│     │                                                       │
	│   Delegation (owned by the granting actor; shadow-copied    │
	│               read-only elsewhere)                          │
	│                                                              │
	│   Peer (static catalog entry, loaded once at init)           │
	└──────────────────────────────────────────────────────────────┘

No type in this package owns a goroutine, a lock, or I/O; everything here is
a plain value or pointer-to-struct meant to be mutated only by the kernel
(pkg/kernel) under its single-threaded tick loop. Ownership is by id lookup,
never by direct pointer cycles, per the arena pattern spec.md §9 calls for.
*/
package types
