package policy

import (
	"time"

	"github.com/testbedctl/actorcore/pkg/kernel"
	"github.com/testbedctl/actorcore/pkg/log"
	"github.com/testbedctl/actorcore/pkg/protocol"
	"github.com/testbedctl/actorcore/pkg/types"
)

// BrokerHooks adapts a Broker policy to kernel.Hooks, so a broker actor's
// kernel can drive allocation and reply delivery without knowing anything
// about first-fit, label pools, or the wire protocol itself (spec.md §9
// redesign notes: "the kernel calls into Hooks for anything role-specific").
//
// A reservation carries the callback topic and the msg_id of the request
// that adopted it in its Properties bag (set by the dispatcher handler
// before AdoptReservation), so a reply can be addressed and correlated
// without a separate side index.
type BrokerHooks struct {
	GUID   string
	Policy *Broker
}

// NewBrokerHooks builds a BrokerHooks for the named actor over policy.
func NewBrokerHooks(guid string, policy *Broker) *BrokerHooks {
	return &BrokerHooks{GUID: guid, Policy: policy}
}

func (h *BrokerHooks) ProcessDue(k *kernel.Kernel, r *types.Reservation, now time.Time, tick uint64) {
	switch r.Pending {
	case types.PendingTicketing, types.PendingExtendTicket:
		site := r.Properties["site"]
		err := h.Policy.Allocate(r, site, tick)
		if r.Pending == types.PendingTicketing || r.Pending == types.PendingExtendTicket {
			r.Pending = types.PendingNone
			r.MarkDirty()
		}
		h.replyTicket(k, r, err)
	case types.PendingClosing:
		r.State = types.ResCloseWait
		r.MarkDirty()
		h.Policy.Calendar.RemoveHolding(r)
		r.State = types.ResClosed
		r.Pending = types.PendingNone
		r.MarkDirty()
		h.replyClose(k, r, nil)
	default:
		log.WithReservation(r.ID).Warn().Str("pending", string(r.Pending)).
			Msg("broker hooks: unexpected pending state on a due reservation")
	}
}

// Complete applies the outcome of a claim/reclaim RPC the broker itself
// issued to an authority. A broker never runs a handler pool, so no other
// completion kind reaches it.
func (h *BrokerHooks) Complete(k *kernel.Kernel, r *types.Reservation, ev kernel.CompletionEvent) {
	if ev.OK {
		return
	}
	r.State = types.ResFailed
	r.SetLastError(ev.Err)
	r.MarkDirty()
}

func (h *BrokerHooks) replyTicket(k *kernel.Kernel, r *types.Reservation, err *types.Error) {
	result := protocol.Result{OK: err == nil, Error: err}
	payload := protocol.UpdateTicketPayload{Reservation: r, Result: result}
	env := protocol.NewEnvelope(protocol.KindUpdateTicket, h.GUID, r.Properties["request_msg_id"], payload)
	k.Send(r.Properties["callback_topic"], env)
}

func (h *BrokerHooks) replyClose(k *kernel.Kernel, r *types.Reservation, err *types.Error) {
	result := protocol.Result{OK: err == nil, Error: err}
	payload := protocol.UpdateLeasePayload{Reservation: r, Result: result}
	env := protocol.NewEnvelope(protocol.KindUpdateLease, h.GUID, r.Properties["request_msg_id"], payload)
	k.Send(r.Properties["callback_topic"], env)
}
