package actor

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/testbedctl/actorcore/pkg/calendar"
	"github.com/testbedctl/actorcore/pkg/graph"
	"github.com/testbedctl/actorcore/pkg/handler"
	"github.com/testbedctl/actorcore/pkg/kernel"
	"github.com/testbedctl/actorcore/pkg/log"
	"github.com/testbedctl/actorcore/pkg/metrics"
	"github.com/testbedctl/actorcore/pkg/protocol"
	"github.com/testbedctl/actorcore/pkg/timer"
	"github.com/testbedctl/actorcore/pkg/transport"
	"github.com/testbedctl/actorcore/pkg/types"
)

// Config parameterizes a new Actor.
type Config struct {
	Runtime  *Runtime
	Hooks    kernel.Hooks
	Calendar *calendar.Calendar

	// InboundTopic is the bus topic this actor consumes its own messages
	// from, normally "<guid>.in".
	InboundTopic string

	BatchCap        int // kernel event-drain cap per tick
	CommitBatchSize int // commit.batch.size
	DedupWindow     int // dispatcher msg_id window size
	OutboxCapacity  int // outbox channel buffer; 0 means 256

	// Timer is the deferred-timeout service backing outgoing RPC
	// deadlines (spec.md §5's timer thread). Left nil for broker and
	// authority roles, which only ever answer RPCs rather than issue
	// ones that await a reply.
	Timer *timer.Service

	// Handlers is the provisioning pool an authority actor hands
	// Provision/Teardown off to. Left nil for broker and orchestrator
	// roles, which never touch the substrate directly.
	Handlers *handler.Pool

	// GraphStore is the mutable combined model a broker actor loads
	// delegations into on Claim (spec.md §4.4's CBM). Left nil for
	// authority and orchestrator roles.
	GraphStore *graph.InMemory

	// ResourceTypes lists the resource types this actor's configuration
	// names it responsible for (config.ActorConfig.Resources), used by
	// Claim to pick which node type a delegation's nodes are loaded as:
	// a Delegation does not itself carry a resource type, so a broker
	// applies each of its configured types to every claimed node. A
	// broker responsible for more than one resource type at the same
	// delegated nodes is a configuration a deployment should avoid.
	ResourceTypes []types.ResourceType
}

// Actor is one running actor process's kernel plus the transport and
// handler wiring around it (spec.md §3.16). pkg/policy's BrokerHooks and
// AuthorityHooks, and pkg/orchestrator's workflow Hooks, supply the
// role-specific decisions; Actor only drives the bus consumer, the
// producer that flushes the kernel's outbox, and startup rehydration from
// durable storage.
type Actor struct {
	Runtime    *Runtime
	Kernel     *kernel.Kernel
	Dispatcher *protocol.Dispatcher

	handlers      *handler.Pool
	graphStore    *graph.InMemory
	resourceTypes []types.ResourceType
	inboundTopic  string

	outbox   chan kernel.OutboundMessage
	metricsC *metrics.Collector
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New builds an Actor from cfg, registers the role-appropriate message
// handlers, and schedules rehydration from durable storage for the
// actor's first tick.
func New(cfg Config) (*Actor, error) {
	outboxCap := cfg.OutboxCapacity
	if outboxCap <= 0 {
		outboxCap = 256
	}
	outbox := make(chan kernel.OutboundMessage, outboxCap)

	k := kernel.New(kernel.Config{
		Role:            cfg.Runtime.Role,
		Clock:           cfg.Runtime.Clock,
		Calendar:        cfg.Calendar,
		Store:           cfg.Runtime.Store,
		Hooks:           cfg.Hooks,
		Outbox:          outbox,
		BatchCap:        cfg.BatchCap,
		CommitBatchSize: cfg.CommitBatchSize,
		Timer:           cfg.Timer,
	})

	a := &Actor{
		Runtime:       cfg.Runtime,
		Kernel:        k,
		Dispatcher:    protocol.NewDispatcher(cfg.DedupWindow),
		handlers:      cfg.Handlers,
		graphStore:    cfg.GraphStore,
		resourceTypes: cfg.ResourceTypes,
		inboundTopic:  cfg.InboundTopic,
		outbox:        outbox,
	}
	a.metricsC = metrics.NewCollector(a.Runtime.GUID, string(a.Runtime.Role), kernelStatsAdapter{k}, 0)
	a.registerHandlers()
	if err := a.hydrate(); err != nil {
		return nil, err
	}
	return a, nil
}

// RegisterHandler installs an additional dispatcher handler, for a role
// (pkg/orchestrator's slice workflow, in particular) whose message set
// isn't one of the ones Actor registers on its own.
func (a *Actor) RegisterHandler(kind protocol.Kind, h protocol.HandlerFunc) {
	a.Dispatcher.Register(kind, h)
}

// Start launches the kernel's tick loop, the bus consumer, and the outbox
// producer, all stopped together by Stop or by ctx's cancellation.
func (a *Actor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.metricsC.Start()

	a.wg.Add(3)
	go func() {
		defer a.wg.Done()
		_ = a.Kernel.Run(ctx)
	}()
	go func() {
		defer a.wg.Done()
		a.runProducer(ctx)
	}()
	go func() {
		defer a.wg.Done()
		if err := a.Runtime.Bus.Subscribe(ctx, a.inboundTopic, a.handleInbound); err != nil && ctx.Err() == nil {
			log.WithActor(a.Runtime.GUID, string(a.Runtime.Role)).Error().Err(err).Msg("bus subscribe loop exited")
		}
	}()
}

// Stop cancels the background goroutines and waits for them, then waits
// for any in-flight handler invocations to finish.
func (a *Actor) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	if a.handlers != nil {
		a.handlers.Wait()
	}
	if a.metricsC != nil {
		a.metricsC.Stop()
	}
}

// hydrate loads persisted slices and non-terminal reservations back into
// the kernel, and runs the handler pool's restart safety probe over
// whatever was left mid-provision, as a command scheduled for the actor's
// first tick (spec.md's recovery story, grounded on the teacher's
// restart-reconciliation pattern).
func (a *Actor) hydrate() error {
	reservations, err := a.Runtime.Store.ListReservations()
	if err != nil {
		return err
	}
	slices, err := a.Runtime.Store.ListSlices()
	if err != nil {
		return err
	}

	a.Kernel.Enqueue(kernel.Event{Kind: kernel.EventCommand, Command: func(k *kernel.Kernel) error {
		tick := a.Runtime.Clock.Tick()
		for _, s := range slices {
			k.AdoptSlice(s)
		}
		for _, r := range reservations {
			if r.State.IsTerminal() {
				continue
			}
			k.AdoptReservation(r, tick)
		}
		if a.handlers != nil {
			a.handlers.ProbeRestartRecovery(reservations)
		}
		return nil
	}})
	return nil
}

func (a *Actor) runProducer(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-a.outbox:
			if msg.Topic == "" {
				continue
			}
			body, err := json.Marshal(msg.Envelope)
			if err != nil {
				log.WithComponent("actor").Error().Err(err).Msg("marshal outbound envelope failed")
				continue
			}
			publishCtx, cancel := context.WithCancel(ctx)
			err = a.Runtime.Bus.Publish(publishCtx, transport.Message{
				Topic: msg.Topic,
				Key:   msg.Envelope.SourceActorGUID,
				Value: body,
			})
			cancel()
			if err != nil {
				log.WithComponent("actor").Warn().Err(err).Str("topic", msg.Topic).
					Msg("publish failed after internal retries")
			}
		}
	}
}

// handleInbound decodes one bus message into an Envelope and dispatches
// it. A malformed envelope is logged and dropped rather than redelivered
// forever; a handler error is propagated so the bus does not commit the
// offset, which redelivers the message (at-least-once).
func (a *Actor) handleInbound(msg transport.Message) error {
	var env protocol.Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		log.WithComponent("actor").Error().Err(err).Msg("malformed envelope, dropping")
		return nil
	}
	_, err := a.Dispatcher.Dispatch(env)
	return err
}

func (a *Actor) registerHandlers() {
	switch a.Runtime.Role {
	case types.RoleBroker:
		a.Dispatcher.Register(protocol.KindTicket, a.handleTicket)
		a.Dispatcher.Register(protocol.KindExtendTicket, a.handleExtendTicket)
		a.Dispatcher.Register(protocol.KindClaim, a.handleClaim)
		a.Dispatcher.Register(protocol.KindReclaim, a.handleReclaim)
		a.Dispatcher.Register(protocol.KindClose, a.handleClose)
		a.Dispatcher.Register(protocol.KindProbe, a.handleProbe)
		a.Dispatcher.Register(protocol.KindQuery, a.handleQuery)
	case types.RoleAuthority:
		a.Dispatcher.Register(protocol.KindRedeem, a.handleRedeem)
		a.Dispatcher.Register(protocol.KindExtendLease, a.handleExtendLease)
		a.Dispatcher.Register(protocol.KindClose, a.handleClose)
		a.Dispatcher.Register(protocol.KindProbe, a.handleProbe)
		a.Dispatcher.Register(protocol.KindQuery, a.handleQuery)
	case types.RoleOrchestrator:
		// The slice workflow registers its own reply handlers
		// (UpdateTicket, UpdateLease, QueryResponse) via RegisterHandler;
		// see pkg/orchestrator.
	}
}

func (a *Actor) handleTicket(env protocol.Envelope) error {
	var payload protocol.TicketPayload
	if err := protocol.DecodePayload(env, &payload); err != nil {
		return err
	}
	a.Kernel.Enqueue(kernel.Event{Kind: kernel.EventCommand, Command: func(k *kernel.Kernel) error {
		tick := a.Runtime.Clock.Tick()
		for _, r := range payload.Reservations {
			stampRequestOrigin(r, env)
			r.Pending = types.PendingTicketing
			k.AdoptReservation(r, tick)
		}
		return nil
	}})
	return nil
}

func (a *Actor) handleExtendTicket(env protocol.Envelope) error {
	var payload protocol.ExtendTicketPayload
	if err := protocol.DecodePayload(env, &payload); err != nil {
		return err
	}
	a.Kernel.Enqueue(kernel.Event{Kind: kernel.EventCommand, Command: func(k *kernel.Kernel) error {
		r, ok := k.Reservation(payload.ReservationID)
		if !ok {
			log.WithReservation(payload.ReservationID).Warn().Msg("ExtendTicket for unknown reservation")
			return nil
		}
		stampRequestOrigin(r, env)
		r.RequestedWindow.End = payload.NewLeaseEnd
		r.Pending = types.PendingExtendTicket
		k.AdoptReservation(r, a.Runtime.Clock.Tick())
		return nil
	}})
	return nil
}

func (a *Actor) handleRedeem(env protocol.Envelope) error {
	var payload protocol.RedeemPayload
	if err := protocol.DecodePayload(env, &payload); err != nil {
		return err
	}
	a.Kernel.Enqueue(kernel.Event{Kind: kernel.EventCommand, Command: func(k *kernel.Kernel) error {
		r := payload.Reservation
		stampRequestOrigin(r, env)
		r.Pending = types.PendingRedeeming
		k.AdoptReservation(r, a.Runtime.Clock.Tick())
		return nil
	}})
	return nil
}

func (a *Actor) handleExtendLease(env protocol.Envelope) error {
	var payload protocol.ExtendLeasePayload
	if err := protocol.DecodePayload(env, &payload); err != nil {
		return err
	}
	a.Kernel.Enqueue(kernel.Event{Kind: kernel.EventCommand, Command: func(k *kernel.Kernel) error {
		r, ok := k.Reservation(payload.ReservationID)
		if !ok {
			log.WithReservation(payload.ReservationID).Warn().Msg("ExtendLease for unknown reservation")
			return nil
		}
		stampRequestOrigin(r, env)
		r.RequestedWindow.End = payload.NewLeaseEnd
		r.Pending = types.PendingExtendLease
		k.AdoptReservation(r, a.Runtime.Clock.Tick())
		return nil
	}})
	return nil
}

func (a *Actor) handleClose(env protocol.Envelope) error {
	var payload protocol.ClosePayload
	if err := protocol.DecodePayload(env, &payload); err != nil {
		return err
	}
	a.Kernel.Enqueue(kernel.Event{Kind: kernel.EventCommand, Command: func(k *kernel.Kernel) error {
		tick := a.Runtime.Clock.Tick()
		if payload.ReservationID != "" {
			a.scheduleClose(k, payload.ReservationID, env, tick)
			return nil
		}
		if payload.SliceID != "" {
			if s, ok := k.Slice(payload.SliceID); ok {
				for _, id := range s.ReservationIDs {
					a.scheduleClose(k, id, env, tick)
				}
			}
		}
		return nil
	}})
	return nil
}

func (a *Actor) scheduleClose(k *kernel.Kernel, reservationID string, env protocol.Envelope, tick uint64) {
	r, ok := k.Reservation(reservationID)
	if !ok || r.State.IsTerminal() {
		return
	}
	stampRequestOrigin(r, env)
	r.Pending = types.PendingClosing
	r.MarkDirty()
	k.AdoptReservation(r, tick)
}

func (a *Actor) handleProbe(env protocol.Envelope) error {
	a.Kernel.Enqueue(kernel.Event{Kind: kernel.EventCommand, Command: func(k *kernel.Kernel) error {
		reply := protocol.NewEnvelope(protocol.KindProbe, a.Runtime.GUID, env.MsgID, protocol.ProbePayload{})
		k.Send(env.CallbackTopic, reply)
		return nil
	}})
	return nil
}

func (a *Actor) handleQuery(env protocol.Envelope) error {
	var payload protocol.QueryPayload
	if err := protocol.DecodePayload(env, &payload); err != nil {
		return err
	}
	a.Kernel.Enqueue(kernel.Event{Kind: kernel.EventCommand, Command: func(k *kernel.Kernel) error {
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
		reply := protocol.NewEnvelope(protocol.KindQueryResponse, a.Runtime.GUID, env.MsgID,
			protocol.QueryResponsePayload{Payload: body})
		k.Send(env.CallbackTopic, reply)
		return nil
	}})
	return nil
}

// handleClaim and handleReclaim apply a delegation's node grant or revoke
// to this broker's combined model (spec.md §4.4's CBM). Neither has a
// dedicated wire acknowledgment kind in the protocol's message set, so the
// outcome is logged rather than replied.
func (a *Actor) handleClaim(env protocol.Envelope) error {
	var payload protocol.ClaimPayload
	if err := protocol.DecodePayload(env, &payload); err != nil {
		return err
	}
	a.Kernel.Enqueue(kernel.Event{Kind: kernel.EventCommand, Command: func(k *kernel.Kernel) error {
		d, err := a.Runtime.Store.GetDelegation(payload.DelegationID)
		if err != nil {
			log.WithComponent("actor").Warn().Str("delegation_id", payload.DelegationID).
				Msg("Claim for unknown delegation")
			return nil
		}
		d.State = types.DelegationDelegated
		if saveErr := a.Runtime.Store.SaveDelegation(d); saveErr != nil {
			return saveErr
		}
		if a.graphStore != nil {
			for _, rt := range a.resourceTypes {
				a.graphStore.LoadDelegation(d, rt)
			}
		}
		return nil
	}})
	return nil
}

func (a *Actor) handleReclaim(env protocol.Envelope) error {
	var payload protocol.ReclaimPayload
	if err := protocol.DecodePayload(env, &payload); err != nil {
		return err
	}
	a.Kernel.Enqueue(kernel.Event{Kind: kernel.EventCommand, Command: func(k *kernel.Kernel) error {
		d, err := a.Runtime.Store.GetDelegation(payload.DelegationID)
		if err != nil {
			log.WithComponent("actor").Warn().Str("delegation_id", payload.DelegationID).
				Msg("Reclaim for unknown delegation")
			return nil
		}
		if held, node := delegationInUse(k, d); held {
			log.WithComponent("actor").Warn().Str("delegation_id", payload.DelegationID).Str("node", node).
				Msg("Reclaim refused: delegation still holds capacity for a non-terminal reservation")
			return nil
		}
		d.State = types.DelegationReclaimed
		return a.Runtime.Store.SaveDelegation(d)
	}})
	return nil
}

// delegationInUse reports whether any non-terminal reservation still
// holds capacity on one of d's delegated nodes (spec.md §9 open question
// 3: reclaim is illegal while a reservation is still bound to a
// delegated node, rather than merely "in-flight"). It returns the first
// node id found in use, for the refusal log line.
func delegationInUse(k *kernel.Kernel, d *types.Delegation) (bool, string) {
	now := k.Now().Unix()
	for nodeID := range d.NodeAnnotations {
		for _, r := range k.Calendar().HoldingsAt(nodeID, now) {
			if r.NodeMap.GraphID == d.GraphID && r.NodeMap.GraphNodeID == nodeID {
				return true, nodeID
			}
		}
	}
	return false, ""
}

// stampRequestOrigin records the callback topic and request msg_id a
// reservation's eventual reply must carry, in its properties bag (spec.md
// §5: "a message and its reply are correlated by id").
func stampRequestOrigin(r *types.Reservation, env protocol.Envelope) {
	if r.Properties == nil {
		r.Properties = make(map[string]string)
	}
	r.Properties["callback_topic"] = env.CallbackTopic
	r.Properties["request_msg_id"] = env.MsgID
}
