// Package orchestrator implements the orchestrator role's slice workflow
// (spec.md §4.6): accepting a create-slice request, walking its request
// graph into reservations in two passes, and driving each reservation
// through Ticketing -> BlockedRedeem -> Redeeming by adapting
// policy.OrchestratorPolicy and the wire protocol to kernel.Hooks. Extend
// and close follow the same shape, re-entering the same pending states a
// fresh demand uses.
//
// Manager is the role-specific counterpart to pkg/actor.Actor, grounded
// on the same split pkg/policy already uses for the broker and authority
// roles: Hooks answers "what does a due reservation do", Manager answers
// "how does a REST-originated slice command become kernel state".
package orchestrator
