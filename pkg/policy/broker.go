package policy

import (
	"hash/fnv"
	"math/rand"

	"github.com/testbedctl/actorcore/pkg/calendar"
	"github.com/testbedctl/actorcore/pkg/graph"
	"github.com/testbedctl/actorcore/pkg/types"
)

// RandomSites lists the sites whose node iteration order is reseeded by
// (tick, slice_id) rather than taken node-id ascending (spec.md §4.4
// step 3, and the Open Questions note on reseeding: "the spec uses
// (tick, slice_id) which keeps a single slice's re-tries stable but
// varies across slices" — we keep that reading).
type RandomSites map[string]bool

// NodeLabelPools looks up the LabelPool for a node's shared-NIC
// component, keyed by node id. A broker owns one pool per delegated
// node that carries label resources.
type NodeLabelPools map[string]*LabelPool

// Broker implements the first-fit allocation policy of spec.md §4.4.
type Broker struct {
	Model      graph.Model
	Calendar   *calendar.Calendar
	Random     RandomSites
	LabelPools NodeLabelPools

	// assigned remembers the node chosen for a reservation id, making
	// Allocate idempotent under at-least-once redelivery (spec.md §4.4:
	// "Idempotence: allocating the same reservation id twice must yield
	// the same assignment").
	assigned map[string]string
}

// NewBroker builds a Broker policy over model and cal.
func NewBroker(model graph.Model, cal *calendar.Calendar, random RandomSites, pools NodeLabelPools) *Broker {
	if random == nil {
		random = RandomSites{}
	}
	if pools == nil {
		pools = NodeLabelPools{}
	}
	return &Broker{
		Model:      model,
		Calendar:   cal,
		Random:     random,
		LabelPools: pools,
		assigned:   make(map[string]string),
	}
}

// Allocate runs first-fit for r against candidate nodes of its resource
// type at site, annotating r in place on success. It returns an *Error
// of kind InsufficientResources when no node satisfies the request, and
// InvalidRequest for a malformed window.
func (b *Broker) Allocate(r *types.Reservation, site string, tick uint64) *types.Error {
	if r.RequestedWindow.Empty() {
		return types.NewError(types.ErrInvalidRequest, "zero-length or inverted lease window")
	}

	if node, ok := b.assigned[r.ID]; ok {
		return b.bind(r, node)
	}

	candidates := b.candidates(r, site, tick)
	for _, n := range candidates {
		if b.fits(r, n) {
			b.assigned[r.ID] = n.ID
			if err := b.bind(r, n); err != nil {
				return err
			}
			return nil
		}
	}

	r.State = types.ResFailed
	r.SetLastError(types.NewError(types.ErrInsufficientResources,
		"no node of type %s at site %s satisfies the request", r.ResourceType, site))
	return r.LastError
}

// candidates returns the node set to iterate, restricted to a pinned
// node_map.graph_node_id if the reservation already carries one (spec.md
// §4.4 step 2), and ordered per step 3: node-id ascending, except
// Random sites which are seeded by (tick, slice_id).
func (b *Broker) candidates(r *types.Reservation, site string, tick uint64) []graph.Node {
	if !r.NodeMap.Empty() {
		if n, ok := b.Model.Node(r.NodeMap.GraphNodeID); ok {
			return []graph.Node{n}
		}
		return nil
	}

	nodes := b.Model.NodesOfType(r.ResourceType, site)
	if b.Random[site] {
		nodes = append([]graph.Node(nil), nodes...)
		rnd := rand.New(rand.NewSource(seed(tick, r.SliceID)))
		rnd.Shuffle(len(nodes), func(i, j int) { nodes[i], nodes[j] = nodes[j], nodes[i] })
	}
	return nodes
}

func seed(tick uint64, sliceID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(sliceID))
	return int64(tick ^ h.Sum64())
}

// fits computes available(n) and checks capacity and components
// (spec.md §4.4 step 3a-b). Availability must hold across the whole
// requested window, not just at its start: a holding that begins
// partway through [start,end) still conflicts, so usage is checked at
// the window start and at every holding start inside the window (usage
// is a step function that only rises where a holding starts, so its
// peaks fall exactly on those instants).
func (b *Broker) fits(r *types.Reservation, n graph.Node) bool {
	start := r.RequestedWindow.Start.Unix()
	end := r.RequestedWindow.End.Unix()

	checkpoints := map[int64]bool{start: true}
	for _, held := range b.Calendar.HoldingsOverlapping(n.ID, start, end) {
		if held.ID == r.ID {
			continue
		}
		if s := held.RequestedWindow.Start.Unix(); s > start && s < end {
			checkpoints[s] = true
		}
	}

	var worst types.Capacities
	for t := range checkpoints {
		used := types.Capacities{}
		for _, held := range b.Calendar.HoldingsAt(n.ID, t) {
			if held.ID == r.ID {
				continue
			}
			used = used.Add(held.ApprovedCapacities)
		}
		worst = peakCapacities(worst, used)
	}

	available := types.Capacities{
		Cores:     n.Capacity.Cores - worst.Cores,
		RAMGB:     n.Capacity.RAMGB - worst.RAMGB,
		DiskGB:    n.Capacity.DiskGB - worst.DiskGB,
		Bandwidth: n.Capacity.Bandwidth - worst.Bandwidth,
	}
	if !r.RequestedCapacities.LessEqual(available) {
		return false
	}

	free := make(map[string]int, len(n.Components))
	for model, count := range n.Components {
		free[model] = count
	}
	return types.Satisfies(free, r.RequestedComponents)
}

// peakCapacities returns the dimension-wise maximum of a and b, used to
// track the worst-case usage across fits' checkpoints.
func peakCapacities(a, b types.Capacities) types.Capacities {
	peak := a
	if b.Cores > peak.Cores {
		peak.Cores = b.Cores
	}
	if b.RAMGB > peak.RAMGB {
		peak.RAMGB = b.RAMGB
	}
	if b.DiskGB > peak.DiskGB {
		peak.DiskGB = b.DiskGB
	}
	if b.Bandwidth > peak.Bandwidth {
		peak.Bandwidth = b.Bandwidth
	}
	return peak
}

// bind annotates r with the chosen node (spec.md §4.4 step 3c-d) and
// records its holding in the calendar.
func (b *Broker) bind(r *types.Reservation, n graph.Node) *types.Error {
	r.NodeMap = types.NodeMap{GraphID: b.Model.ID(), GraphNodeID: n.ID}
	r.ApprovedCapacities = r.RequestedCapacities

	allocations := make([]types.ComponentAllocation, 0, len(r.RequestedComponents))
	for _, req := range r.RequestedComponents {
		alloc := types.ComponentAllocation{Model: req.Model}
		if pool, ok := b.LabelPools[n.ID]; ok {
			if mac, ok := pool.AllocateMAC(); ok {
				alloc.MAC = mac
			}
			if vlan, ok := pool.AllocateVLAN(); ok {
				alloc.VLAN = vlan
			}
		}
		allocations = append(allocations, alloc)
	}
	r.AllocatedComponents = allocations

	if !b.Calendar.AddHolding(r) {
		return types.NewError(types.ErrInvalidRequest, "reservation window rejected by calendar")
	}
	r.State = types.ResTicketed
	r.MarkDirty()
	return nil
}

// AllocateNetworkService binds a network-service sliver's VLAN from its
// parent node's shared-NIC allocation, or from the peer connection
// point's dedicated-NIC label delegation (spec.md §4.4: "For
// network-service slivers, steps differ...").
func (b *Broker) AllocateNetworkService(r *types.Reservation, parent *types.Reservation, dedicated bool, site string) *types.Error {
	if dedicated {
		n, ok := b.Model.Node(parent.InterfaceMap.ParentNodeID)
		if !ok {
			return types.NewError(types.ErrInsufficientResources, "peer connection point not found")
		}
		if pool, ok := b.LabelPools[n.ID]; ok {
			if vlan, ok := pool.AllocateVLAN(); ok {
				r.VLAN = vlan
			}
		}
	} else {
		// Shared NIC: VLAN was already set by the orchestrator from the
		// parent node sliver; the broker only propagates it.
		r.VLAN = parent.VLAN
	}
	r.NodeMap = parent.NodeMap
	r.ApprovedCapacities = r.RequestedCapacities
	if !b.Calendar.AddHolding(r) {
		return types.NewError(types.ErrInvalidRequest, "reservation window rejected by calendar")
	}
	r.State = types.ResTicketed
	r.MarkDirty()
	return nil
}
