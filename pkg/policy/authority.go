package policy

import (
	"github.com/testbedctl/actorcore/pkg/calendar"
	"github.com/testbedctl/actorcore/pkg/graph"
	"github.com/testbedctl/actorcore/pkg/types"
)

// Authority implements the redeem-time verification and local
// bookkeeping of spec.md §4.5.
type Authority struct {
	Model    graph.Model
	Calendar *calendar.Calendar

	// RenewLookaheadSeconds bounds how far past the current tick a
	// lease-end may sit and still be proposed for renewal; exposed here
	// so callers building the Calendar and the Authority share one
	// config value.
	RenewLookaheadSeconds int64
}

// NewAuthority builds an Authority policy over model and cal.
func NewAuthority(model graph.Model, cal *calendar.Calendar) *Authority {
	return &Authority{Model: model, Calendar: cal}
}

// Redeem verifies and binds r (spec.md §4.5 steps 1-3): the node_map
// must name a node this authority owns, approved capacity must still
// fit given local holdings (the late-conflict recheck), and on success r
// is added to local holdings. The caller then sets Pending=Priming and
// schedules r in the calendar's Pending view at the lease-start tick.
func (a *Authority) Redeem(r *types.Reservation) *types.Error {
	node, ok := a.Model.Node(r.NodeMap.GraphNodeID)
	if !ok {
		err := types.NewError(types.ErrInvalidRequest, "node_map %s/%s not owned by this authority",
			r.NodeMap.GraphID, r.NodeMap.GraphNodeID)
		r.SetLastError(err)
		r.State = types.ResFailed
		return err
	}

	used := types.Capacities{}
	start := r.RequestedWindow.Start.Unix()
	for _, held := range a.Calendar.HoldingsAt(node.ID, start) {
		if held.ID == r.ID {
			continue
		}
		used = used.Add(held.ApprovedCapacities)
	}
	available := types.Capacities{
		Cores:     node.Capacity.Cores - used.Cores,
		RAMGB:     node.Capacity.RAMGB - used.RAMGB,
		DiskGB:    node.Capacity.DiskGB - used.DiskGB,
		Bandwidth: node.Capacity.Bandwidth - used.Bandwidth,
	}
	if !r.ApprovedCapacities.LessEqual(available) {
		// Late conflict: the broker's grant no longer fits locally,
		// rare but possible under oversubscription (spec.md §4.5 step 2).
		err := types.NewError(types.ErrInsufficientResources,
			"approved capacity no longer available on node %s at redeem time", node.ID)
		r.SetLastError(err)
		r.State = types.ResFailed
		return err
	}

	if !a.Calendar.AddHolding(r) {
		err := types.NewError(types.ErrInvalidRequest, "reservation window rejected by calendar")
		r.SetLastError(err)
		return err
	}
	r.Pending = types.PendingRedeeming
	r.MarkDirty()
	return nil
}

// RenewLease re-verifies capacity for an already-bound reservation
// against its new RequestedWindow and swaps the calendar holding to
// match (spec.md §8 scenario 4: "authority swaps lease window"). Unlike
// Redeem, this never hands off to a handler: the substrate resource is
// already provisioned, only the holding's window moves.
func (a *Authority) RenewLease(r *types.Reservation) *types.Error {
	node, ok := a.Model.Node(r.NodeMap.GraphNodeID)
	if !ok {
		err := types.NewError(types.ErrInvalidRequest, "node_map %s/%s not owned by this authority",
			r.NodeMap.GraphID, r.NodeMap.GraphNodeID)
		r.SetLastError(err)
		r.State = types.ResFailed
		return err
	}

	used := types.Capacities{}
	start := r.RequestedWindow.Start.Unix()
	for _, held := range a.Calendar.HoldingsAt(node.ID, start) {
		if held.ID == r.ID {
			continue
		}
		used = used.Add(held.ApprovedCapacities)
	}
	available := types.Capacities{
		Cores:     node.Capacity.Cores - used.Cores,
		RAMGB:     node.Capacity.RAMGB - used.RAMGB,
		DiskGB:    node.Capacity.DiskGB - used.DiskGB,
		Bandwidth: node.Capacity.Bandwidth - used.Bandwidth,
	}
	if !r.ApprovedCapacities.LessEqual(available) {
		err := types.NewError(types.ErrInsufficientResources,
			"renewed capacity no longer available on node %s", node.ID)
		r.SetLastError(err)
		r.State = types.ResFailed
		return err
	}

	a.Calendar.RemoveHolding(r)
	if !a.Calendar.AddHolding(r) {
		err := types.NewError(types.ErrInvalidRequest, "reservation window rejected by calendar")
		r.SetLastError(err)
		return err
	}
	return nil
}

// Complete applies a handler's provision outcome (spec.md §4.5 step 5):
// Active/Failed, clears Pending, merges returned properties.
func (a *Authority) Complete(r *types.Reservation, ok bool, properties map[string]string, handlerErr *types.Error) {
	if r.Properties == nil {
		r.Properties = make(map[string]string)
	}
	for k, v := range properties {
		r.Properties[k] = v
	}
	r.Pending = types.PendingNone
	if ok {
		r.State = types.ResActive
		r.LastError = nil
	} else {
		r.State = types.ResFailed
		r.SetLastError(handlerErr)
	}
	r.MarkDirty()
}
