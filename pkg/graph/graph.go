// Package graph models the resource graphs the control framework reasons
// about: an authority's resource model (ARM), a broker's combined model
// (CBM) aggregating one or more ARMs via delegation, and an orchestrator's
// abstract slice model (ASM, the user's request graph). This package
// ships an in-memory reference implementation; a production deployment
// would back Model with a property-graph database instead.
package graph

import (
	"sort"

	"github.com/testbedctl/actorcore/pkg/types"
)

// Node is one substrate element in a resource graph: a compute node, a
// switch, or a network-service connection point.
type Node struct {
	ID           string
	Type         types.ResourceType
	Site         string
	Capacity     types.Capacities
	Components   map[string]int // model -> count
	Random       bool           // site uses seeded-random iteration order (spec.md §4.4)
	ConnectionPt string         // for network-service nodes, the peer connection point id
}

// Model is the read side every policy consults: "all nodes of type T at
// site S", restricted to a pinned node when the reservation already
// carries one.
type Model interface {
	// NodesOfType returns every node of the given resource type at site,
	// in node-id ascending order.
	NodesOfType(resourceType types.ResourceType, site string) []Node

	// Node looks up a single node by id.
	Node(id string) (Node, bool)

	// ID returns this model's own graph id (the CBM or ARM id recorded
	// into a reservation's node_map).
	ID() string
}

// InMemory is a reference Model backed by a plain map, suitable for a
// single-process deployment or for tests. Delegations populate it via
// LoadDelegation.
type InMemory struct {
	id    string
	nodes map[string]Node
}

// NewInMemory builds an empty in-memory graph identified by id.
func NewInMemory(id string) *InMemory {
	return &InMemory{id: id, nodes: make(map[string]Node)}
}

func (g *InMemory) ID() string { return g.id }

// LoadDelegation installs or replaces the nodes delegated by d (spec.md
// §4.4's CBM: "aggregating one or more ARMs via delegation").
func (g *InMemory) LoadDelegation(d *types.Delegation, nodeType types.ResourceType) {
	for nodeID, nd := range d.NodeAnnotations {
		g.nodes[nodeID] = Node{
			ID:         nodeID,
			Type:       nodeType,
			Site:       d.Site,
			Capacity:   scaleCapacity(nd.Capacity, d.OversubscriptionFactor),
			Components: nd.Components,
		}
	}
}

func scaleCapacity(c types.Capacities, factor float64) types.Capacities {
	if factor <= 0 {
		factor = 1.0
	}
	return types.Capacities{
		Cores:     int(float64(c.Cores) * factor),
		RAMGB:     int(float64(c.RAMGB) * factor),
		DiskGB:    int(float64(c.DiskGB) * factor),
		Bandwidth: c.Bandwidth * factor,
		Burst:     c.Burst,
	}
}

// PutNode inserts or replaces a node directly, for tests and for
// authority-side ARM construction where no delegation wrapping is
// needed.
func (g *InMemory) PutNode(n Node) {
	g.nodes[n.ID] = n
}

func (g *InMemory) NodesOfType(resourceType types.ResourceType, site string) []Node {
	var out []Node
	for _, n := range g.nodes {
		if n.Type == resourceType && (site == "" || n.Site == site) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (g *InMemory) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// RequestGraph is the orchestrator's abstract slice model: the user's
// request, not yet bound to substrate. It groups node slivers and
// network-service slivers, each described loosely enough to be walked
// into reservations (spec.md §4.6).
type RequestGraph struct {
	ID      string
	Nodes   []RequestNode
	Service []RequestService
}

// RequestNode is one node-sliver request in a RequestGraph.
type RequestNode struct {
	ID         string
	Type       types.ResourceType
	Capacities types.Capacities
	Components []types.ComponentRequest
}

// RequestInterface is one interface attachment on a RequestService,
// identifying the node sliver and component that own the physical port.
type RequestInterface struct {
	ParentNodeID        string
	ParentComponentName string
	PeerInterfaceSliver string
	PeerNetworkServiceID string
}

// RequestService is one network-service sliver request, carrying the
// interfaces it connects (spec.md §4.6 pass 2).
type RequestService struct {
	ID         string
	Type       types.ResourceType
	Bandwidth  float64
	Burst      int
	Interfaces []RequestInterface
}

// Validate performs the schema checks spec.md §4.6 calls for before the
// orchestrator walks the graph: every interface must reference a node
// sliver present in the same graph.
func (g *RequestGraph) Validate() error {
	nodeIDs := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		nodeIDs[n.ID] = true
	}
	for _, svc := range g.Service {
		for _, iface := range svc.Interfaces {
			if !nodeIDs[iface.ParentNodeID] {
				return types.NewError(types.ErrInvalidRequest,
					"service %s references unknown parent node %s", svc.ID, iface.ParentNodeID)
			}
		}
	}
	return nil
}
