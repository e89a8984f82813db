/*
Package protocol defines the wire envelope and message kinds actors
exchange over pkg/transport (spec.md §4.7), and the dispatching needed
to route them safely under at-least-once ordered delivery:

  - Envelope carries msg_id, correlation_id, source_actor_guid,
    callback_topic, and auth_token alongside a Kind-specific payload.
  - Dispatcher deduplicates by msg_id within a bounded window before
    routing to a registered HandlerFunc, so a redelivered message is a
    no-op rather than a double-apply.
  - A reply's correlation_id is the request's msg_id, but actors never
    need a side index to resolve it: an UpdateTicket/UpdateLease payload
    always carries the reservation itself, so the correlating lookup is
    just kernel.Reservation(payload.Reservation.ID) (see pkg/orchestrator
    and pkg/timer, which arms a deadline under the same id).

Nothing here talks to a broker; pkg/transport.Bus carries raw bytes,
pkg/protocol (de)serializes them into Envelope, and pkg/actor owns the
Dispatcher (pkg/orchestrator adds its handlers through
Actor.RegisterHandler), whose handlers turn an Envelope into kernel
commands that carry out the reservation-state transition.
*/
package protocol
