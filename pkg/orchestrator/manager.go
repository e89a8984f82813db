package orchestrator

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/testbedctl/actorcore/pkg/actor"
	"github.com/testbedctl/actorcore/pkg/calendar"
	"github.com/testbedctl/actorcore/pkg/graph"
	"github.com/testbedctl/actorcore/pkg/kernel"
	"github.com/testbedctl/actorcore/pkg/log"
	"github.com/testbedctl/actorcore/pkg/policy"
	"github.com/testbedctl/actorcore/pkg/protocol"
	"github.com/testbedctl/actorcore/pkg/timer"
	"github.com/testbedctl/actorcore/pkg/types"
)

// Store is the narrow slice-persistence dependency Manager needs,
// satisfied by storage.Store. kernel.Store deliberately covers only
// batched reservation commits (spec.md §4.1 step 6); slice metadata has
// no such batching story, so Manager writes it directly.
type Store interface {
	ListSlices() ([]*types.Slice, error)
	SaveSlice(*types.Slice) error
}

// Config parameterizes a new Manager.
type Config struct {
	Runtime  *actor.Runtime
	Calendar *calendar.Calendar
	Policy   *policy.OrchestratorPolicy
	Store    Store

	InboundTopic string
	BrokerPeer   types.Peer
	Authorities  map[types.ResourceType]types.Peer

	BatchCap        int
	CommitBatchSize int
	DedupWindow     int
	OutboxCapacity  int

	// RPCRetries and RPCTimeoutTicks configure the timer thread backing
	// every RPC this orchestrator originates (spec.md §8 scenario 5).
	// RPCRetries of 0 falls back to timer.NewService's default cap of 5.
	// RPCTimeoutTicks of 0 arms each deadline on the tick the RPC is
	// sent, so it expires on the following tick.
	RPCRetries      int
	RPCTimeoutTicks uint64
}

// Manager is the orchestrator role's Actor plus the slice workflow built
// on top of it: CreateSlice/ExtendSlice/ModifySliver/CloseSlice accept
// external requests and translate them into kernel commands; the
// dispatcher handlers registered here apply the UpdateTicket/UpdateLease
// replies that drive reservations the rest of the way.
type Manager struct {
	Actor *actor.Actor
	hooks *Hooks

	policy *policy.OrchestratorPolicy
	store  Store
	guid   string
}

// New builds a Manager: constructs the orchestrator's Hooks, the
// underlying Actor wired to them, and registers the reply handlers the
// slice workflow needs.
func New(cfg Config) (*Manager, error) {
	hooks := NewHooks(cfg.Runtime.GUID, cfg.InboundTopic, cfg.BrokerPeer.InboundTopic, cfg.Authorities, cfg.RPCTimeoutTicks)

	a, err := actor.New(actor.Config{
		Runtime:         cfg.Runtime,
		Hooks:           hooks,
		Calendar:        cfg.Calendar,
		InboundTopic:    cfg.InboundTopic,
		BatchCap:        cfg.BatchCap,
		CommitBatchSize: cfg.CommitBatchSize,
		DedupWindow:     cfg.DedupWindow,
		OutboxCapacity:  cfg.OutboxCapacity,
		Timer:           timer.NewService(cfg.RPCRetries),
	})
	if err != nil {
		return nil, err
	}

	m := &Manager{Actor: a, hooks: hooks, policy: cfg.Policy, store: cfg.Store, guid: cfg.Runtime.GUID}
	a.RegisterHandler(protocol.KindUpdateTicket, m.handleUpdateTicket)
	a.RegisterHandler(protocol.KindUpdateLease, m.handleUpdateLease)
	a.RegisterHandler(protocol.KindProbe, m.handleProbe)
	a.RegisterHandler(protocol.KindQuery, m.handleQuery)
	return m, nil
}

// CreateSliceRequest is the accepted-REST-request shape of spec.md §4.6.
type CreateSliceRequest struct {
	Owner   string
	Project string
	Name    string
	Graph   *graph.RequestGraph
	Lease   types.Window
}

// CreateSlice validates req, walks its request graph into reservations
// in two passes, persists the slice and returns it with the reservation
// ids (spec.md §4.6). Admission to the kernel is enqueued as a command;
// when the kernel runs it, each reservation is set to Pending=Ticketing,
// and the kernel's own tick loop and Hooks carry them the rest of the way.
func (m *Manager) CreateSlice(req CreateSliceRequest) (*types.Slice, error) {
	now := m.Actor.Runtime.Clock.Now()

	window, verr := m.policy.ValidateWindow(now, req.Lease)
	if verr != nil {
		return nil, verr
	}

	existing, err := m.store.ListSlices()
	if err != nil {
		return nil, err
	}
	if policy.NameCollision(existing, req.Owner, req.Name) {
		return nil, types.NewError(types.ErrInvalidRequest,
			"a non-terminal slice named %q already exists for owner %s", req.Name, req.Owner)
	}

	if req.Graph == nil {
		return nil, types.NewError(types.ErrInvalidRequest, "request graph is required")
	}
	if err := req.Graph.Validate(); err != nil {
		return nil, err
	}

	sliceID := uuid.NewString()
	reservations, err := buildReservations(sliceID, req.Graph, window, now)
	if err != nil {
		return nil, err
	}

	slice := &types.Slice{
		ID: sliceID, Name: req.Name, Owner: req.Owner, Project: req.Project,
		State: types.SliceConfiguring, Lease: window, GraphID: req.Graph.ID,
		CreatedAt: now, UpdatedAt: now,
	}
	for _, r := range reservations {
		slice.ReservationIDs = append(slice.ReservationIDs, r.ID)
	}

	if err := m.store.SaveSlice(slice); err != nil {
		return nil, err
	}

	// Kernel admission happens on the kernel goroutine, asynchronously:
	// like every other inbound handler in pkg/actor, this does not block
	// the caller on a tick actually running.
	m.Actor.Kernel.Enqueue(kernel.Event{Kind: kernel.EventCommand, Command: func(k *kernel.Kernel) error {
		tick := m.Actor.Runtime.Clock.Tick()
		k.AdoptSlice(slice)
		for _, r := range reservations {
			r.Pending = types.PendingTicketing
			k.AdoptReservation(r, tick)
		}
		return nil
	}})
	return slice, nil
}

// buildReservations walks g in the two passes of spec.md §4.6: node
// slivers first, then network-service slivers carrying predecessor
// links to the node reservations that own their attached interfaces.
func buildReservations(sliceID string, g *graph.RequestGraph, window types.Window, now time.Time) ([]*types.Reservation, error) {
	nodeResv := make(map[string]*types.Reservation, len(g.Nodes))
	var all []*types.Reservation

	for _, n := range g.Nodes {
		r := &types.Reservation{
			ID:                  uuid.NewString(),
			SliceID:             sliceID,
			ResourceType:        n.Type,
			RequestedCapacities: n.Capacities,
			RequestedComponents: n.Components,
			RequestedWindow:     window,
			State:               types.ResNascent,
			Properties:          map[string]string{"request_node_id": n.ID},
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		nodeResv[n.ID] = r
		all = append(all, r)
	}

	for _, svc := range g.Service {
		var preds []types.Predecessor
		var ifaceMap types.InterfaceNodeMap
		for _, iface := range svc.Interfaces {
			parent, ok := nodeResv[iface.ParentNodeID]
			if !ok {
				return nil, fmt.Errorf("network service %s references unknown parent node %s", svc.ID, iface.ParentNodeID)
			}
			preds = append(preds, types.Predecessor{ReservationID: parent.ID, TargetState: types.ResTicketed})
			ifaceMap = types.InterfaceNodeMap{
				PeerInterfaceSliver:  iface.PeerInterfaceSliver,
				PeerNetworkServiceID: iface.PeerNetworkServiceID,
				ParentComponentName:  iface.ParentComponentName,
				ParentNodeID:         iface.ParentNodeID,
			}
		}
		r := &types.Reservation{
			ID:                  uuid.NewString(),
			SliceID:             sliceID,
			ResourceType:        svc.Type,
			RequestedCapacities: types.Capacities{Bandwidth: svc.Bandwidth, Burst: svc.Burst},
			RequestedWindow:     window,
			State:               types.ResNascent,
			Predecessors:        preds,
			InterfaceMap:        ifaceMap,
			Properties:          map[string]string{"request_service_id": svc.ID},
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		all = append(all, r)
	}
	return all, nil
}

// ExtendSlice truncates requestedEnd to the policy cap and re-enters
// each of the slice's non-terminal reservations at Pending=ExtendTicket
// (an Active one becomes ActiveTicketed); a renewal moves on to
// ExtendLease only when the broker's UpdateTicket comes back
// (spec.md §7: "extend beyond the policy cap -> truncated to cap with a
// warning").
func (m *Manager) ExtendSlice(sliceID string, requestedEnd time.Time) error {
	done := make(chan error, 1)
	m.Actor.Kernel.Enqueue(kernel.Event{Kind: kernel.EventCommand, Command: func(k *kernel.Kernel) error {
		s, ok := k.Slice(sliceID)
		if !ok {
			done <- fmt.Errorf("slice not found: %s", sliceID)
			return nil
		}
		now := m.Actor.Runtime.Clock.Now()
		newEnd, truncated := m.policy.ValidateExtend(now, s.Lease.Start, requestedEnd)
		if truncated {
			log.WithComponent("orchestrator").Warn().Str("slice_id", sliceID).
				Time("requested_end", requestedEnd).Time("capped_end", newEnd).
				Msg("extend request truncated to policy lease cap")
		}

		tick := m.Actor.Runtime.Clock.Tick()
		for _, rid := range s.ReservationIDs {
			r, ok := k.Reservation(rid)
			if !ok || r.State.IsTerminal() {
				continue
			}
			r.RequestedWindow.End = newEnd
			// A redeemed reservation's renewal still goes through the
			// broker first, the same as a first-time grant (spec.md §8
			// scenario 4: "broker re-approves capacity on the same node
			// ... then authority swaps the lease window"); only once the
			// broker's UpdateTicket comes back does handleUpdateTicket
			// continue it on to ExtendLease.
			if r.State == types.ResActive {
				r.State = types.ResActiveTicketed
			}
			r.Pending = types.PendingExtendTicket
			r.MarkDirty()
			k.AdoptReservation(r, tick)
		}
		s.Lease.End = newEnd
		s.UpdatedAt = now
		done <- m.store.SaveSlice(s)
		return nil
	}})
	return <-done
}

// ModifySliver re-demands new capacities or components for an existing,
// non-terminal sliver. Rather than inventing a dedicated wire operation,
// this re-enters the reservation at Pending=Ticketing so it flows
// through the ordinary Ticket/Redeem RPCs again, which already carry the
// reservation's full requested capacities — the same
// recreate-through-the-existing-reconcile-path idiom the ambient
// provisioning layer uses for a replica-count change.
func (m *Manager) ModifySliver(reservationID string, capacities types.Capacities, components []types.ComponentRequest) error {
	done := make(chan error, 1)
	m.Actor.Kernel.Enqueue(kernel.Event{Kind: kernel.EventCommand, Command: func(k *kernel.Kernel) error {
		r, ok := k.Reservation(reservationID)
		if !ok {
			done <- fmt.Errorf("reservation not found: %s", reservationID)
			return nil
		}
		if r.State.IsTerminal() {
			done <- fmt.Errorf("reservation %s is already terminal", reservationID)
			return nil
		}
		r.RequestedCapacities = capacities
		r.RequestedComponents = components
		r.Pending = types.PendingTicketing
		r.MarkDirty()
		k.AdoptReservation(r, m.Actor.Runtime.Clock.Tick())
		done <- nil
		return nil
	}})
	return <-done
}

// CloseSlice cancels every non-terminal reservation in sliceID (spec.md
// §5: "A slice close cancels all its reservations").
func (m *Manager) CloseSlice(sliceID string) error {
	done := make(chan error, 1)
	m.Actor.Kernel.Enqueue(kernel.Event{Kind: kernel.EventCommand, Command: func(k *kernel.Kernel) error {
		s, ok := k.Slice(sliceID)
		if !ok {
			done <- fmt.Errorf("slice not found: %s", sliceID)
			return nil
		}
		tick := m.Actor.Runtime.Clock.Tick()
		for _, rid := range s.ReservationIDs {
			r, ok := k.Reservation(rid)
			if !ok || r.State.IsTerminal() {
				continue
			}
			r.Pending = types.PendingClosing
			r.MarkDirty()
			k.AdoptReservation(r, tick)
		}
		s.State = types.SliceClosing
		s.UpdatedAt = m.Actor.Runtime.Clock.Now()
		done <- m.store.SaveSlice(s)
		return nil
	}})
	return <-done
}

func (m *Manager) handleUpdateTicket(env protocol.Envelope) error {
	var payload protocol.UpdateTicketPayload
	if err := protocol.DecodePayload(env, &payload); err != nil {
		return err
	}
	m.Actor.Kernel.Enqueue(kernel.Event{Kind: kernel.EventCommand, Command: func(k *kernel.Kernel) error {
		k.Disarm(env.CorrelationID)
		if payload.Reservation == nil {
			return nil
		}
		r, ok := k.Reservation(payload.Reservation.ID)
		if !ok {
			log.WithReservation(payload.Reservation.ID).Warn().Msg("UpdateTicket for unknown reservation")
			return nil
		}
		if !payload.Result.OK {
			r.State = types.ResFailed
			r.SetLastError(payload.Result.Error)
			r.Pending = types.PendingNone
			r.MarkDirty()
			m.refreshSliceState(k, r.SliceID)
			return nil
		}

		wasExtend := r.Pending == types.PendingExtendTicket
		r.ApprovedCapacities = payload.Reservation.ApprovedCapacities
		r.AllocatedComponents = payload.Reservation.AllocatedComponents
		r.NodeMap = payload.Reservation.NodeMap
		r.VLAN = payload.Reservation.VLAN
		r.Label = payload.Reservation.Label
		if wasExtend {
			if r.State == types.ResActiveTicketed {
				// Broker re-approved capacity for a renewal; hand off to
				// the authority to swap the lease window (spec.md §8
				// scenario 4).
				r.Pending = types.PendingExtendLease
				r.MarkDirty()
				k.AdoptReservation(r, m.Actor.Runtime.Clock.Tick())
				return nil
			}
			r.Pending = types.PendingNone
			r.MarkDirty()
			return nil
		}
		r.State = payload.Reservation.State
		r.Pending = types.PendingBlockedRedeem
		r.MarkDirty()
		k.AdoptReservation(r, m.Actor.Runtime.Clock.Tick())
		return nil
	}})
	return nil
}

func (m *Manager) handleUpdateLease(env protocol.Envelope) error {
	var payload protocol.UpdateLeasePayload
	if err := protocol.DecodePayload(env, &payload); err != nil {
		return err
	}
	m.Actor.Kernel.Enqueue(kernel.Event{Kind: kernel.EventCommand, Command: func(k *kernel.Kernel) error {
		k.Disarm(env.CorrelationID)
		if payload.Reservation == nil {
			return nil
		}
		r, ok := k.Reservation(payload.Reservation.ID)
		if !ok {
			log.WithReservation(payload.Reservation.ID).Warn().Msg("UpdateLease for unknown reservation")
			return nil
		}

		if r.Pending == types.PendingClosing {
			r.State = types.ResClosed
			r.Pending = types.PendingNone
			r.MarkDirty()
			m.refreshSliceState(k, r.SliceID)
			return nil
		}

		if !payload.Result.OK {
			r.State = types.ResFailed
			r.SetLastError(payload.Result.Error)
			r.Pending = types.PendingNone
			r.MarkDirty()
			m.refreshSliceState(k, r.SliceID)
			return nil
		}

		r.State = payload.Reservation.State
		r.ApprovedCapacities = payload.Reservation.ApprovedCapacities
		if payload.Reservation.Properties != nil {
			if r.Properties == nil {
				r.Properties = make(map[string]string)
			}
			for pk, pv := range payload.Reservation.Properties {
				r.Properties[pk] = pv
			}
		}
		r.Pending = types.PendingNone
		r.MarkDirty()
		m.refreshSliceState(k, r.SliceID)
		return nil
	}})
	return nil
}

func (m *Manager) handleProbe(env protocol.Envelope) error {
	m.Actor.Kernel.Enqueue(kernel.Event{Kind: kernel.EventCommand, Command: func(k *kernel.Kernel) error {
		reply := protocol.NewEnvelope(protocol.KindProbe, m.guid, env.MsgID, protocol.ProbePayload{})
		k.Send(env.CallbackTopic, reply)
		return nil
	}})
	return nil
}

func (m *Manager) handleQuery(env protocol.Envelope) error {
	var payload protocol.QueryPayload
	if err := protocol.DecodePayload(env, &payload); err != nil {
		return err
	}
	m.Actor.Kernel.Enqueue(kernel.Event{Kind: kernel.EventCommand, Command: func(k *kernel.Kernel) error {
		var body interface{}
		switch {
		case payload.ReservationID != "":
			if r, ok := k.Reservation(payload.ReservationID); ok {
				body = r
			}
		case payload.SliceID != "":
			if s, ok := k.Slice(payload.SliceID); ok {
				body = s
			}
		}
		reply := protocol.NewEnvelope(protocol.KindQueryResponse, m.guid, env.MsgID, protocol.QueryResponsePayload{Payload: body})
		k.Send(env.CallbackTopic, reply)
		return nil
	}})
	return nil
}

// refreshSliceState recomputes sliceID's lifecycle state from its
// reservations' states and persists it if it changed (spec.md §7: "the
// slice enters StableError if any reservation is Failed while others
// are Active").
func (m *Manager) refreshSliceState(k *kernel.Kernel, sliceID string) {
	s, ok := k.Slice(sliceID)
	if !ok {
		return
	}

	anyFailed := false
	allSettled := true
	for _, rid := range s.ReservationIDs {
		r, ok := k.Reservation(rid)
		if !ok {
			continue
		}
		switch r.State {
		case types.ResActive, types.ResActiveTicketed, types.ResClosed:
		case types.ResFailed:
			anyFailed = true
		default:
			allSettled = false
		}
	}

	var next types.SliceState
	switch {
	case anyFailed:
		next = types.SliceStableError
	case allSettled:
		next = types.SliceStableOk
	default:
		return
	}
	if s.State == next {
		return
	}
	s.State = next
	s.UpdatedAt = m.Actor.Runtime.Clock.Now()
	if err := m.store.SaveSlice(s); err != nil {
		log.WithComponent("orchestrator").Error().Err(err).Str("slice_id", sliceID).
			Msg("persist slice state failed")
	}
}
