package policy

import (
	"time"

	"github.com/testbedctl/actorcore/pkg/handler"
	"github.com/testbedctl/actorcore/pkg/kernel"
	"github.com/testbedctl/actorcore/pkg/log"
	"github.com/testbedctl/actorcore/pkg/protocol"
	"github.com/testbedctl/actorcore/pkg/types"
)

// clock is the narrow time source AuthorityHooks needs to turn a lease
// start into a due tick, mirroring kernel.Kernel's own narrow Clock
// interface rather than depending on the concrete pkg/clock type.
type clock interface {
	Now() time.Time
	Tick() uint64
}

// AuthorityHooks adapts an Authority policy and a handler.Pool to
// kernel.Hooks (spec.md §4.5): Redeem's node-ownership and late-conflict
// checks run synchronously when the Redeem message is adopted; the actual
// provisioning is deferred to the reservation's lease-start tick, then
// runs asynchronously through the handler pool.
type AuthorityHooks struct {
	GUID     string
	Policy   *Authority
	Handlers *handler.Pool
	Clock    clock

	// Period is the wall-clock duration one tick represents, used only to
	// translate a lease-start time.Time into a due tick number. Zero
	// disables the translation and schedules provisioning for the current
	// tick instead (suitable for a manual/stepped clock in tests, where
	// callers step ticks one at a time anyway).
	Period time.Duration
}

// NewAuthorityHooks builds an AuthorityHooks for the named actor.
func NewAuthorityHooks(guid string, policy *Authority, handlers *handler.Pool, clk clock, period time.Duration) *AuthorityHooks {
	return &AuthorityHooks{GUID: guid, Policy: policy, Handlers: handlers, Clock: clk, Period: period}
}

func (h *AuthorityHooks) ProcessDue(k *kernel.Kernel, r *types.Reservation, now time.Time, tick uint64) {
	switch r.Pending {
	case types.PendingRedeeming:
		if err := h.Policy.Redeem(r); err != nil {
			r.Pending = types.PendingNone
			r.MarkDirty()
			h.replyLease(k, r, err)
			return
		}
		r.Pending = types.PendingPriming
		r.MarkDirty()
		k.Calendar().AddPending(r, h.tickForTime(r.RequestedWindow.Start))
	case types.PendingExtendLease:
		// A renewal's substrate resource is already provisioned; only the
		// calendar holding's window moves, so this never touches the
		// handler pool (spec.md §8 scenario 4: "authority swaps lease
		// window").
		if err := h.Policy.RenewLease(r); err != nil {
			r.Pending = types.PendingNone
			r.MarkDirty()
			h.replyLease(k, r, err)
			return
		}
		r.State = types.ResActive
		r.Pending = types.PendingNone
		r.MarkDirty()
		h.replyLease(k, r, nil)
	case types.PendingPriming:
		if h.Handlers == nil {
			h.Policy.Complete(r, true, nil, nil)
			h.replyLease(k, r, nil)
			return
		}
		h.Handlers.Provision(r)
	case types.PendingClosing:
		r.State = types.ResCloseWait
		r.MarkDirty()
		if h.Handlers == nil {
			h.Policy.Calendar.RemoveHolding(r)
			r.State = types.ResClosed
			r.Pending = types.PendingNone
			r.MarkDirty()
			h.replyClose(k, r, nil)
			return
		}
		h.Handlers.Teardown(r)
	default:
		log.WithReservation(r.ID).Warn().Str("pending", string(r.Pending)).
			Msg("authority hooks: unexpected pending state on a due reservation")
	}
}

func (h *AuthorityHooks) Complete(k *kernel.Kernel, r *types.Reservation, ev kernel.CompletionEvent) {
	switch ev.Kind {
	case "provision":
		h.Policy.Complete(r, ev.OK, ev.Properties, ev.Err)
		h.replyLease(k, r, ev.Err)
	case "teardown":
		h.Policy.Calendar.RemoveHolding(r)
		r.Pending = types.PendingNone
		if ev.OK {
			r.State = types.ResClosed
		} else {
			r.State = types.ResFailed
			r.SetLastError(ev.Err)
		}
		r.MarkDirty()
		h.replyClose(k, r, ev.Err)
	}
}

// tickForTime extrapolates t into a due tick relative to the clock's
// current (now, tick) pair and the configured tick Period. A t at or
// before now, or a zero Period, schedules for the current tick.
func (h *AuthorityHooks) tickForTime(t time.Time) uint64 {
	now := h.Clock.Now()
	tick := h.Clock.Tick()
	if h.Period <= 0 || !t.After(now) {
		return tick
	}
	ahead := uint64(t.Sub(now) / h.Period)
	return tick + ahead
}

func (h *AuthorityHooks) replyLease(k *kernel.Kernel, r *types.Reservation, err *types.Error) {
	result := protocol.Result{OK: err == nil, Error: err}
	payload := protocol.UpdateLeasePayload{Reservation: r, Result: result}
	env := protocol.NewEnvelope(protocol.KindUpdateLease, h.GUID, r.Properties["request_msg_id"], payload)
	k.Send(r.Properties["callback_topic"], env)
}

func (h *AuthorityHooks) replyClose(k *kernel.Kernel, r *types.Reservation, err *types.Error) {
	result := protocol.Result{OK: err == nil, Error: err}
	payload := protocol.UpdateLeasePayload{Reservation: r, Result: result}
	env := protocol.NewEnvelope(protocol.KindUpdateLease, h.GUID, r.Properties["request_msg_id"], payload)
	k.Send(r.Properties["callback_topic"], env)
}
