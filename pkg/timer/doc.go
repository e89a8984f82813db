/*
Package timer implements the bounded-wait timeout service of spec.md
§5: every outgoing RPC the kernel issues has a deadline; Service.Tick
returns an expired deadline as a synthetic Event, which the kernel's
tick loop applies as a completion event, instead of calling back into
kernel state directly, preserving the rule that only the kernel's own
tick loop mutates a reservation.

Retries are bounded by rpc.retries: an entry under the cap is re-armed
one tick later and reported with a TransportError event. The request is
not re-sent: pkg/orchestrator's Hooks.Complete only logs a retryable
expiry and keeps waiting for the reply. Once the cap is exhausted the
entry is dropped and a Timeout event is returned instead (spec.md §7: "TransportError is retried up to
rpc.retries with fixed backoff before surfacing as Timeout").
*/
package timer
