// Package actor wires one process's kernel, calendar, transport, and
// handler pool into a running actor (spec.md §3.16, grounded on the
// teacher's Manager: a process-wide Runtime handle plus a concrete type
// that starts and stops the background goroutines built on top of it).
// Role-specific decision logic — what a due reservation should do, how to
// answer a completion event — lives in pkg/policy and pkg/orchestrator as
// kernel.Hooks implementations; this package only owns the wiring: the bus
// consumer loop, the outbox producer loop, message encode/decode, and
// startup/shutdown sequencing.
package actor

import (
	"sort"

	"github.com/testbedctl/actorcore/pkg/clock"
	"github.com/testbedctl/actorcore/pkg/pdp"
	"github.com/testbedctl/actorcore/pkg/storage"
	"github.com/testbedctl/actorcore/pkg/transport"
	"github.com/testbedctl/actorcore/pkg/types"
)

// Runtime is the process-wide handle shared by whatever single Actor runs
// in this process: the static peer catalog, the logical clock, the bus,
// durable storage, and the PDP authorizer. A deployment builds exactly one
// Runtime and one Actor per process (spec.md §3: "one process per actor
// role").
type Runtime struct {
	GUID string
	Role types.ActorRole

	Clock clock.Clock
	Bus   transport.Bus
	Store storage.Store
	PDP   pdp.Authorizer

	// Peers is the static catalog of known remote actors, keyed by guid
	// (spec.md §6: "peers: a static catalog loaded at init").
	Peers map[string]types.Peer
}

// RuntimeConfig parameterizes NewRuntime.
type RuntimeConfig struct {
	GUID  string
	Role  types.ActorRole
	Clock clock.Clock
	Bus   transport.Bus
	Store storage.Store
	PDP   pdp.Authorizer
	Peers []types.Peer
}

// NewRuntime builds a Runtime from cfg, indexing Peers by guid.
func NewRuntime(cfg RuntimeConfig) *Runtime {
	peers := make(map[string]types.Peer, len(cfg.Peers))
	for _, p := range cfg.Peers {
		peers[p.GUID] = p
	}
	authorizer := cfg.PDP
	if authorizer == nil {
		authorizer = pdp.AlwaysAllow{}
	}
	return &Runtime{
		GUID:  cfg.GUID,
		Role:  cfg.Role,
		Clock: cfg.Clock,
		Bus:   cfg.Bus,
		Store: cfg.Store,
		PDP:   authorizer,
		Peers: peers,
	}
}

// Peer looks up a known remote actor by guid.
func (rt *Runtime) Peer(guid string) (types.Peer, bool) {
	p, ok := rt.Peers[guid]
	return p, ok
}

// PeersOfType returns every known peer of the given role, in guid-ascending
// order, for callers that need to fan a request out to all brokers or all
// authorities.
func (rt *Runtime) PeersOfType(role types.ActorRole) []types.Peer {
	var out []types.Peer
	for _, p := range rt.Peers {
		if p.Type == role {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GUID < out[j].GUID })
	return out
}
