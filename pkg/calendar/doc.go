/*
Package calendar indexes one actor's reservations by time and by
substrate node (spec.md §4.3).

It is not a scheduler in its own right — it answers queries for the
kernel and the policy layer, which decide what to do with the results.
Four views are maintained:

  - Pending: reservations keyed by the tick at which they should be
    re-examined (DueBefore drains this).
  - Holdings: capacity/component commitments per graph node, ordered by
    (start, end), queried by HoldingsAt during first-fit allocation.
  - Renewing: holdings whose lease-end falls inside a lookahead window
    (RenewingBefore).
  - Closing: holdings at or past lease-end needing teardown
    (ClosingBefore).

There is no separate Redeeming view. An authority keeps a redeemed
reservation that is waiting for its lease start in Pending, due at the
lease-start tick (policy.AuthorityHooks).

Holdings use half-open [start, end) interval semantics throughout — a
reservation releases its capacity exactly at its lease-end instant, and
a zero-length window is rejected by AddHolding rather than silently
admitted.

A broker's holdings are a shadow of the authority's: the broker adds a
holding when it grants a ticket, the authority mirrors it when it binds
the redeem, and both drop it on close. Neither side consults the other's
calendar directly; consistency comes from the protocol round-trip.
*/
package calendar
