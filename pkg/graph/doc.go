/*
Package graph models the three resource-graph flavors the control
framework's policy layer reasons about (spec.md §4.4, §4.6):

  - ARM (Aggregate Resource Model): one authority's view of its own
    substrate — nodes, capacities, components, label pools.
  - CBM (Combined Broker Model): a broker's aggregation of one or more
    ARMs, built by loading Delegation records.
  - ASM / RequestGraph (Abstract Slice Model): an orchestrator's parsed
    representation of a user's slice request, walked into reservations.

This package ships only an in-memory Model, good enough for a
single-process deployment and for tests. A real multi-site deployment
would swap in a graph database client behind the same Model interface;
nothing in pkg/policy depends on the in-memory representation directly.
*/
package graph
