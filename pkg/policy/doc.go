/*
Package policy implements the three allocation policies a kernel loads
depending on its ActorRole (spec.md §4.4, §4.5, §4.6):

  - Broker: first-fit over a CBM's nodes, checking capacity and
    component delegations, allocating MAC/VLAN labels for shared NICs,
    and binding network-service slivers via their parent node's
    interface map. Allocation is idempotent per reservation id.
  - Authority: redeem-time node-ownership verification, a late-conflict
    capacity recheck against local holdings, and the Active/Failed
    transition on handler completion.
  - OrchestratorPolicy: admission checks performed before a reservation
    ever reaches the wire — lease-window defaults and caps, slice name
    collisions, and the extend-beyond-cap truncation rule.

None of these types owns a goroutine or touches the bus; they are pure
policy objects the kernel calls synchronously within a tick, consulting
a graph.Model for substrate topology and a calendar.Calendar for current
holdings.
*/
package policy
