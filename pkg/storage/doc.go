/*
Package storage persists reservations, slices, and delegations across
restarts using BoltDB (bbolt), the teacher's own embedded-store choice
carried over unchanged.

Every entity is JSON-encoded into its own bucket, keyed by ID. The
kernel's per-tick commit step (spec.md §4.1 step 6) calls
SaveReservations once per dirty batch, inside a single bbolt write
transaction — either the whole batch lands or none of it does, so a
crash mid-commit never leaves a reservation's persisted state ahead of
its calendar placement.

BoltStore is the only implementation shipped; nothing else in this
module depends on a specific database beyond the Store interface,
matching the teacher's own "Store interface, BoltStore implementation"
split.

Replay after restart relies on three things lining up: the persisted
reservation state, the calendar rebuilt from ListReservations() at
startup (pkg/actor composes this), and handler.ProbeRestartRecovery for
any reservation caught mid-Priming when the process died.
*/
package storage
