/*
Package clock implements the logical-time abstraction every kernel tick
loop runs against (spec.md §4.1: "Logical time is controlled by a Clock
abstraction with three modes").

A kernel never calls time.Now directly. It reads Clock.Now() and
Clock.Tick() instead, and drives its loop off Clock.C(). This keeps
reservation-state transitions a pure function of the event sequence,
which is what makes replaying a persisted tick log deterministic: run
the same events through a manual Clock seeded at the same start time and
the kernel reaches the same state.

Modes:

  - Real-time (Config.Manual == false): wraps a time.Ticker at the
    configured period (default 1s). Now() tracks wall time, optionally
    shifted by Config.StartTime.
  - Stepped (Config.Manual == true): time only moves when Advance is
    called. Used by kernel tests and by any harness that needs to
    control tick timing precisely.
  - Offset: either mode accepts a non-zero Config.StartTime, shifting
    Now() away from wall time without changing how ticks are paced.
*/
package clock
