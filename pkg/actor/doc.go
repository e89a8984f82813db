/*
Package actor assembles one process's Runtime (clock, bus, store, peer
catalog, PDP authorizer) and Actor (kernel, calendar, dispatcher, handler
pool) into a running control-framework participant, grounded on the
teacher's Manager: a typed Config struct, a constructor that wires
dependencies and starts nothing, and explicit Start/Stop methods that own
the background goroutines (spec.md §3.16).

Decision logic stays out of this package. A BrokerHooks or AuthorityHooks
from pkg/policy, or a workflow from pkg/orchestrator, tells the kernel what
a due reservation should do and how to apply a completion event; Actor's
job is purely mechanical: decode an inbound bus message into an Envelope
and route it to the right dispatcher handler, encode an outbound
OutboundMessage and publish it, and rehydrate persisted state into the
kernel at startup.
*/
package actor
