package orchestrator

import (
	"time"

	"github.com/testbedctl/actorcore/pkg/kernel"
	"github.com/testbedctl/actorcore/pkg/log"
	"github.com/testbedctl/actorcore/pkg/protocol"
	"github.com/testbedctl/actorcore/pkg/types"
)

// Hooks adapts the orchestrator's routing (which broker gets Ticket
// requests, which authority gets Redeem requests for a given resource
// type) and the wire protocol to kernel.Hooks, the same seam
// policy.BrokerHooks and policy.AuthorityHooks fill for their roles.
// Unlike those two, the orchestrator originates requests rather than
// answering them: ProcessDue is where the Ticket/Redeem/ExtendTicket/
// ExtendLease/Close RPC actually gets sent, and the matching reply
// arrives over the wire as an UpdateTicket or UpdateLease message that
// Manager's own dispatcher handlers apply.
type Hooks struct {
	GUID         string
	InboundTopic string

	// BrokerTopic is the single broker this deployment requests tickets
	// from. spec.md does not describe multi-broker ticket fan-out or
	// selection, so one static broker is all a deployment configures.
	BrokerTopic string

	// Authorities routes a resource type to the authority peer that owns
	// it, for Redeem/ExtendLease/Close.
	Authorities map[types.ResourceType]types.Peer

	// RPCTimeoutTicks is how many ticks an outgoing RPC is given before
	// the timer thread treats it as lost (spec.md §8 scenario 5:
	// "retries up to rpc.retries=5 ... on final failure reservation
	// Failed(Timeout)"). Configured from rpc.timeout (cmd/actor's Kafka
	// config), which is in seconds and maps ~1:1 to ticks under the
	// default 1s tick period.
	RPCTimeoutTicks uint64
}

// NewHooks builds a Hooks for the named orchestrator actor.
func NewHooks(guid, inboundTopic, brokerTopic string, authorities map[types.ResourceType]types.Peer, rpcTimeoutTicks uint64) *Hooks {
	return &Hooks{
		GUID:            guid,
		InboundTopic:    inboundTopic,
		BrokerTopic:     brokerTopic,
		Authorities:     authorities,
		RPCTimeoutTicks: rpcTimeoutTicks,
	}
}

// ProcessDue sends the RPC appropriate to r's pending sub-state. The
// reservation is left in that same pending state (or its plain
// Ticketing/Redeeming in-flight form) until the corresponding reply
// clears it; ProcessDue itself never marks a reservation Ticketed or
// Active.
func (h *Hooks) ProcessDue(k *kernel.Kernel, r *types.Reservation, now time.Time, tick uint64) {
	switch r.Pending {
	// PendingBlocked and PendingBlockedTicket reach here only once the
	// kernel's predecessor gate has released a network-service sliver
	// that was waiting on its parent node's ticket grant (spec.md §4.6:
	// "ticks each reservation through Ticketing -> BlockedRedeem (until
	// predecessors are Ticketed) -> Redeeming"); a plain node sliver with
	// no predecessors reaches PendingTicketing directly on its first due
	// check and never takes this detour.
	case types.PendingTicketing, types.PendingBlocked, types.PendingBlockedTicket:
		h.sendTicket(k, r, tick)
	case types.PendingExtendTicket:
		h.sendExtendTicket(k, r, tick)
	case types.PendingBlockedRedeem:
		h.sendRedeem(k, r, tick)
	case types.PendingExtendLease:
		h.sendExtendLease(k, r, tick)
	case types.PendingClosing:
		h.sendClose(k, r, tick)
	default:
		log.WithReservation(r.ID).Warn().Str("pending", string(r.Pending)).
			Msg("orchestrator hooks: unexpected pending state on a due reservation")
	}
}

// Complete applies the outcome of a timed-out or retried RPC (spec.md
// §5's timer thread feeding synthetic failures back into the kernel
// queue; §7: "TransportError is retried up to rpc.retries ... before
// surfacing as Timeout"). A real UpdateTicket/UpdateLease reply never
// reaches here — Manager's dispatcher handlers apply those directly and
// Disarm the deadline — so Complete only ever sees the timer's synthetic
// events.
func (h *Hooks) Complete(k *kernel.Kernel, r *types.Reservation, ev kernel.CompletionEvent) {
	if ev.Err == nil {
		log.WithReservation(r.ID).Warn().Str("kind", ev.Kind).
			Msg("orchestrator hooks: unexpected completion event")
		return
	}
	if ev.Err.Kind.Retryable() {
		// The timer already re-armed this deadline for another window
		// (pkg/timer.Service.Tick); nothing to resend, the original
		// request may yet still be delivered or answered.
		log.WithReservation(r.ID).Warn().Str("kind", ev.Kind).Str("pending", string(r.Pending)).
			Msg("orchestrator hooks: RPC deadline expired, awaiting retry")
		return
	}
	r.State = types.ResFailed
	r.SetLastError(ev.Err)
	r.Pending = types.PendingNone
	r.MarkDirty()
	log.WithReservation(r.ID).Error().Str("kind", ev.Kind).
		Msg("orchestrator hooks: RPC timed out after exhausting retries")
}

func (h *Hooks) sendTicket(k *kernel.Kernel, r *types.Reservation, tick uint64) {
	env := protocol.NewEnvelope(protocol.KindTicket, h.GUID, "", protocol.TicketPayload{
		SliceID: r.SliceID, Reservations: []*types.Reservation{r},
	})
	env.CallbackTopic = h.InboundTopic
	r.Pending = types.PendingTicketing
	r.MarkDirty()
	k.Send(h.BrokerTopic, env)
	k.Arm(env.MsgID, r.ID, string(protocol.KindTicket), tick+h.RPCTimeoutTicks)
}

func (h *Hooks) sendExtendTicket(k *kernel.Kernel, r *types.Reservation, tick uint64) {
	env := protocol.NewEnvelope(protocol.KindExtendTicket, h.GUID, "", protocol.ExtendTicketPayload{
		ReservationID: r.ID, NewLeaseEnd: r.RequestedWindow.End,
	})
	env.CallbackTopic = h.InboundTopic
	k.Send(h.BrokerTopic, env)
	k.Arm(env.MsgID, r.ID, string(protocol.KindExtendTicket), tick+h.RPCTimeoutTicks)
}

func (h *Hooks) sendRedeem(k *kernel.Kernel, r *types.Reservation, tick uint64) {
	topic, ok := h.authorityTopic(r.ResourceType)
	if !ok {
		r.State = types.ResFailed
		r.SetLastError(types.NewError(types.ErrInternal, "no authority configured for resource type %s", r.ResourceType))
		r.Pending = types.PendingNone
		r.MarkDirty()
		return
	}
	env := protocol.NewEnvelope(protocol.KindRedeem, h.GUID, "", protocol.RedeemPayload{Reservation: r})
	env.CallbackTopic = h.InboundTopic
	r.Pending = types.PendingRedeeming
	r.MarkDirty()
	k.Send(topic, env)
	k.Arm(env.MsgID, r.ID, string(protocol.KindRedeem), tick+h.RPCTimeoutTicks)
}

func (h *Hooks) sendExtendLease(k *kernel.Kernel, r *types.Reservation, tick uint64) {
	topic, ok := h.authorityTopic(r.ResourceType)
	if !ok {
		r.State = types.ResFailed
		r.SetLastError(types.NewError(types.ErrInternal, "no authority configured for resource type %s", r.ResourceType))
		r.Pending = types.PendingNone
		r.MarkDirty()
		return
	}
	env := protocol.NewEnvelope(protocol.KindExtendLease, h.GUID, "", protocol.ExtendLeasePayload{
		ReservationID: r.ID, NewLeaseEnd: r.RequestedWindow.End,
	})
	env.CallbackTopic = h.InboundTopic
	k.Send(topic, env)
	k.Arm(env.MsgID, r.ID, string(protocol.KindExtendLease), tick+h.RPCTimeoutTicks)
}

// sendClose tears down r (spec.md §5: "a slice close cancels all its
// reservations... handler teardown is invoked (authority) or a close
// message is sent (orchestrator/broker)"). A reservation that never
// reached a bound node has nothing to release anywhere but locally.
func (h *Hooks) sendClose(k *kernel.Kernel, r *types.Reservation, tick uint64) {
	if r.NodeMap.Empty() {
		r.State = types.ResClosed
		r.Pending = types.PendingNone
		r.MarkDirty()
		return
	}
	topic, ok := h.authorityTopic(r.ResourceType)
	if !ok {
		r.State = types.ResClosed
		r.Pending = types.PendingNone
		r.MarkDirty()
		return
	}
	env := protocol.NewEnvelope(protocol.KindClose, h.GUID, "", protocol.ClosePayload{ReservationID: r.ID})
	env.CallbackTopic = h.InboundTopic
	k.Send(topic, env)
	k.Arm(env.MsgID, r.ID, string(protocol.KindClose), tick+h.RPCTimeoutTicks)
}

func (h *Hooks) authorityTopic(rt types.ResourceType) (string, bool) {
	if p, ok := h.Authorities[rt]; ok {
		return p.InboundTopic, true
	}
	return "", false
}
