package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testbedctl/actorcore/pkg/calendar"
	"github.com/testbedctl/actorcore/pkg/kernel"
	"github.com/testbedctl/actorcore/pkg/protocol"
	"github.com/testbedctl/actorcore/pkg/timer"
	"github.com/testbedctl/actorcore/pkg/types"
)

type hooksFakeClock struct {
	now  time.Time
	tick uint64
	ch   chan time.Time
}

func newHooksFakeClock() *hooksFakeClock {
	return &hooksFakeClock{now: time.Unix(0, 0), ch: make(chan time.Time, 1)}
}

func (c *hooksFakeClock) Now() time.Time      { return c.now }
func (c *hooksFakeClock) Tick() uint64        { return c.tick }
func (c *hooksFakeClock) C() <-chan time.Time { return c.ch }
func (c *hooksFakeClock) advance() {
	c.tick++
	c.now = c.now.Add(time.Second)
}

type hooksFakeStore struct{}

func (hooksFakeStore) SaveReservations([]*types.Reservation) error { return nil }

func newHooksTestKernel(guid string, rpcTimeoutTicks uint64, retries int) (*kernel.Kernel, *Hooks, chan kernel.OutboundMessage, *hooksFakeClock) {
	cal := calendar.New(3600)
	hooks := NewHooks(guid, guid+".in", "broker1.in",
		map[types.ResourceType]types.Peer{types.ResourceVM: {GUID: "auth1", Type: types.RoleAuthority, InboundTopic: "auth1.in"}},
		rpcTimeoutTicks)
	outbox := make(chan kernel.OutboundMessage, 4)
	clk := newHooksFakeClock()
	k := kernel.New(kernel.Config{
		Role:            types.RoleOrchestrator,
		Clock:           clk,
		Calendar:        cal,
		Store:           hooksFakeStore{},
		Hooks:           hooks,
		Outbox:          outbox,
		CommitBatchSize: 1,
		Timer:           timer.NewService(retries),
	})
	return k, hooks, outbox, clk
}

func TestSendTicketArmsADeadlineThatAwaitsRetryOnExpiry(t *testing.T) {
	k, _, outbox, clk := newHooksTestKernel("orch1", 0, 2)

	r := &types.Reservation{ID: "r1", SliceID: "s1", ResourceType: types.ResourceVM}
	r.Pending = types.PendingTicketing
	k.AdoptReservation(r, 0)

	k.Tick(clk.now)
	require.Len(t, outbox, 1, "first due tick sends the Ticket RPC and arms its deadline")
	<-outbox

	clk.advance()
	k.Tick(clk.now)
	assert.Empty(t, outbox, "an expired-but-retryable deadline does not resend, only extends the deadline")
	assert.Equal(t, types.PendingTicketing, r.Pending)
	assert.NotEqual(t, types.ResFailed, r.State)
}

func TestSendTicketTimesOutAfterExhaustingRetries(t *testing.T) {
	k, _, outbox, clk := newHooksTestKernel("orch1", 0, 1)

	r := &types.Reservation{ID: "r1", SliceID: "s1", ResourceType: types.ResourceVM}
	r.Pending = types.PendingTicketing
	k.AdoptReservation(r, 0)

	k.Tick(clk.now) // sends, arms deadline due at tick 0
	<-outbox
	clk.advance()
	k.Tick(clk.now) // 1st expiry: retryable, re-armed for the next tick
	clk.advance()
	k.Tick(clk.now) // 2nd expiry: retries exhausted, Timeout

	assert.Equal(t, types.ResFailed, r.State)
	assert.Equal(t, types.PendingNone, r.Pending)
	require.NotNil(t, r.LastError)
	assert.Equal(t, types.ErrTimeout, r.LastError.Kind)
}

func TestDisarmOnReplyPreventsSpuriousRetry(t *testing.T) {
	k, _, outbox, clk := newHooksTestKernel("orch1", 5, 2)

	r := &types.Reservation{ID: "r1", SliceID: "s1", ResourceType: types.ResourceVM}
	r.Pending = types.PendingTicketing
	k.AdoptReservation(r, 0)

	k.Tick(clk.now)
	sent := <-outbox

	k.Disarm(sent.Envelope.MsgID)
	clk.advance()
	k.Tick(clk.now)
	assert.Empty(t, outbox, "a disarmed deadline must not resend")
}

func TestSendRedeemRoutesToConfiguredAuthority(t *testing.T) {
	k, _, outbox, clk := newHooksTestKernel("orch1", 5, 2)

	r := &types.Reservation{ID: "r1", SliceID: "s1", ResourceType: types.ResourceVM}
	r.Pending = types.PendingBlockedRedeem
	k.AdoptReservation(r, 0)

	k.Tick(clk.now)
	require.Len(t, outbox, 1)
	sent := <-outbox
	assert.Equal(t, "auth1.in", sent.Topic)
	assert.Equal(t, protocol.KindRedeem, sent.Envelope.Kind)
	assert.Equal(t, types.PendingRedeeming, r.Pending)
}
