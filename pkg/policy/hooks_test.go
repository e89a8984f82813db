package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testbedctl/actorcore/pkg/calendar"
	"github.com/testbedctl/actorcore/pkg/graph"
	"github.com/testbedctl/actorcore/pkg/kernel"
	"github.com/testbedctl/actorcore/pkg/protocol"
	"github.com/testbedctl/actorcore/pkg/types"
)

// fakeClock is a minimal manual Clock, mirroring pkg/kernel's own test
// double rather than depending on pkg/clock's channel delivery semantics.
type fakeClock struct {
	now  time.Time
	tick uint64
	ch   chan time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(0, 0), ch: make(chan time.Time, 1)}
}

func (c *fakeClock) Now() time.Time      { return c.now }
func (c *fakeClock) Tick() uint64        { return c.tick }
func (c *fakeClock) C() <-chan time.Time { return c.ch }

type fakeStore struct{}

func (fakeStore) SaveReservations([]*types.Reservation) error { return nil }

func reservationWithCallback(id string, c types.Capacities, start, end time.Time) *types.Reservation {
	return &types.Reservation{
		ID:                  id,
		SliceID:             "s1",
		ResourceType:        types.ResourceVM,
		RequestedCapacities: c,
		RequestedWindow:     types.Window{Start: start, End: end},
		Pending:             types.PendingTicketing,
		Properties:          map[string]string{"callback_topic": "orch.in", "request_msg_id": "m1", "site": "RENC"},
	}
}

func TestBrokerHooksProcessDueGrantsAndReplies(t *testing.T) {
	g := graph.NewInMemory("cbm-1")
	g.PutNode(graph.Node{ID: "worker1", Type: types.ResourceVM, Site: "RENC", Capacity: types.Capacities{Cores: 32, RAMGB: 384, DiskGB: 3000}})
	cal := calendar.New(3600)
	broker := NewBroker(g, cal, nil, nil)
	hooks := NewBrokerHooks("broker1", broker)

	outbox := make(chan kernel.OutboundMessage, 4)
	k := kernel.New(kernel.Config{
		Role: types.RoleBroker, Clock: newFakeClock(), Calendar: cal,
		Store: fakeStore{}, Hooks: hooks, Outbox: outbox, CommitBatchSize: 1,
	})

	r := reservationWithCallback("r1", types.Capacities{Cores: 4, RAMGB: 64, DiskGB: 500}, time.Unix(1000, 0), time.Unix(4600, 0))
	k.AdoptReservation(r, 0)
	k.Tick(time.Unix(0, 0))

	assert.Equal(t, types.ResTicketed, r.State)
	assert.Equal(t, types.PendingNone, r.Pending)

	select {
	case msg := <-outbox:
		assert.Equal(t, "orch.in", msg.Topic)
		assert.Equal(t, "m1", msg.Envelope.CorrelationID)
		assert.Equal(t, protocol.KindUpdateTicket, msg.Envelope.Kind)
		payload, ok := msg.Envelope.Payload.(protocol.UpdateTicketPayload)
		require.True(t, ok)
		assert.True(t, payload.Result.OK)
	default:
		t.Fatal("expected an UpdateTicket reply on the outbox")
	}
}

func TestBrokerHooksProcessDueFailsOnInsufficientCapacity(t *testing.T) {
	g := graph.NewInMemory("cbm-1")
	g.PutNode(graph.Node{ID: "worker1", Type: types.ResourceVM, Site: "RENC", Capacity: types.Capacities{Cores: 2}})
	cal := calendar.New(3600)
	broker := NewBroker(g, cal, nil, nil)
	hooks := NewBrokerHooks("broker1", broker)

	outbox := make(chan kernel.OutboundMessage, 4)
	k := kernel.New(kernel.Config{
		Role: types.RoleBroker, Clock: newFakeClock(), Calendar: cal,
		Store: fakeStore{}, Hooks: hooks, Outbox: outbox, CommitBatchSize: 1,
	})

	r := reservationWithCallback("r1", types.Capacities{Cores: 8}, time.Unix(1000, 0), time.Unix(4600, 0))
	k.AdoptReservation(r, 0)
	k.Tick(time.Unix(0, 0))

	assert.Equal(t, types.ResFailed, r.State)
	require.NotNil(t, r.LastError)
	assert.Equal(t, types.ErrInsufficientResources, r.LastError.Kind)
}

func TestAuthorityHooksRedeemSchedulesProvisioningAtLeaseStart(t *testing.T) {
	g := graph.NewInMemory("arm-1")
	g.PutNode(graph.Node{ID: "worker1", Type: types.ResourceVM, Site: "RENC", Capacity: types.Capacities{Cores: 32, RAMGB: 384, DiskGB: 3000}})
	cal := calendar.New(3600)
	authority := NewAuthority(g, cal)
	clk := newFakeClock()
	hooks := NewAuthorityHooks("auth1", authority, nil, clk, time.Second)

	outbox := make(chan kernel.OutboundMessage, 4)
	k := kernel.New(kernel.Config{
		Role: types.RoleAuthority, Clock: clk, Calendar: cal,
		Store: fakeStore{}, Hooks: hooks, Outbox: outbox, CommitBatchSize: 1,
	})

	r := reservationWithCallback("r1", types.Capacities{Cores: 4, RAMGB: 64, DiskGB: 500}, time.Unix(0, 0).Add(5*time.Second), time.Unix(0, 0).Add(3605*time.Second))
	r.Pending = types.PendingRedeeming
	r.NodeMap = types.NodeMap{GraphID: "arm-1", GraphNodeID: "worker1"}
	r.ApprovedCapacities = r.RequestedCapacities
	k.AdoptReservation(r, 0)
	k.Tick(time.Unix(0, 0))

	assert.Equal(t, types.PendingPriming, r.Pending)
	assert.Empty(t, outbox, "no reply yet: provisioning has only been scheduled, not completed")
}

func TestAuthorityHooksExtendLeaseRenewsWithoutTouchingHandlerPool(t *testing.T) {
	g := graph.NewInMemory("arm-1")
	g.PutNode(graph.Node{ID: "worker1", Type: types.ResourceVM, Site: "RENC", Capacity: types.Capacities{Cores: 32, RAMGB: 384, DiskGB: 3000}})
	cal := calendar.New(3600)
	authority := NewAuthority(g, cal)
	clk := newFakeClock()
	hooks := NewAuthorityHooks("auth1", authority, nil, clk, time.Second)

	outbox := make(chan kernel.OutboundMessage, 4)
	k := kernel.New(kernel.Config{
		Role: types.RoleAuthority, Clock: clk, Calendar: cal,
		Store: fakeStore{}, Hooks: hooks, Outbox: outbox, CommitBatchSize: 1,
	})

	r := reservationWithCallback("r1", types.Capacities{Cores: 4}, time.Unix(1000, 0), time.Unix(4600, 0))
	r.State = types.ResActiveTicketed
	r.Pending = types.PendingExtendLease
	r.NodeMap = types.NodeMap{GraphID: "arm-1", GraphNodeID: "worker1"}
	r.ApprovedCapacities = r.RequestedCapacities
	cal.AddHolding(r)
	k.AdoptReservation(r, 0)

	r.RequestedWindow.End = time.Unix(9600, 0)
	k.Tick(time.Unix(0, 0))

	assert.Equal(t, types.ResActive, r.State, "a successful renewal lands straight on Active, skipping Priming/handler provision")
	assert.Equal(t, types.PendingNone, r.Pending)

	select {
	case msg := <-outbox:
		assert.Equal(t, protocol.KindUpdateLease, msg.Envelope.Kind)
	default:
		t.Fatal("expected an UpdateLease reply on the outbox")
	}
}

func TestAuthorityHooksClosingTransitionsThroughCloseWait(t *testing.T) {
	g := graph.NewInMemory("arm-1")
	g.PutNode(graph.Node{ID: "worker1", Type: types.ResourceVM, Site: "RENC", Capacity: types.Capacities{Cores: 32, RAMGB: 384, DiskGB: 3000}})
	cal := calendar.New(3600)
	authority := NewAuthority(g, cal)
	clk := newFakeClock()
	hooks := NewAuthorityHooks("auth1", authority, nil, clk, time.Second)

	outbox := make(chan kernel.OutboundMessage, 4)
	k := kernel.New(kernel.Config{
		Role: types.RoleAuthority, Clock: clk, Calendar: cal,
		Store: fakeStore{}, Hooks: hooks, Outbox: outbox, CommitBatchSize: 1,
	})

	r := reservationWithCallback("r1", types.Capacities{Cores: 4}, time.Unix(1000, 0), time.Unix(4600, 0))
	r.State = types.ResActive
	r.Pending = types.PendingClosing
	r.NodeMap = types.NodeMap{GraphID: "arm-1", GraphNodeID: "worker1"}
	cal.AddHolding(r)
	k.AdoptReservation(r, 0)
	k.Tick(time.Unix(0, 0))

	assert.Equal(t, types.ResClosed, r.State, "no handler pool closes synchronously, but still passes through CloseWait")
}

func TestAuthorityHooksProvisionCompletionMarksActiveAndReplies(t *testing.T) {
	g := graph.NewInMemory("arm-1")
	g.PutNode(graph.Node{ID: "worker1", Type: types.ResourceVM, Site: "RENC", Capacity: types.Capacities{Cores: 32, RAMGB: 384, DiskGB: 3000}})
	cal := calendar.New(3600)
	authority := NewAuthority(g, cal)
	clk := newFakeClock()
	hooks := NewAuthorityHooks("auth1", authority, nil, clk, time.Second)

	outbox := make(chan kernel.OutboundMessage, 4)
	k := kernel.New(kernel.Config{
		Role: types.RoleAuthority, Clock: clk, Calendar: cal,
		Store: fakeStore{}, Hooks: hooks, Outbox: outbox, CommitBatchSize: 1,
	})

	r := reservationWithCallback("r1", types.Capacities{Cores: 4}, time.Unix(1000, 0), time.Unix(4600, 0))
	r.Pending = types.PendingPriming
	r.NodeMap = types.NodeMap{GraphID: "arm-1", GraphNodeID: "worker1"}
	r.ApprovedCapacities = r.RequestedCapacities
	k.AdoptReservation(r, 0)

	k.Enqueue(kernel.Event{Kind: kernel.EventRPCComplete, Completion: kernel.CompletionEvent{
		ReservationID: "r1", Kind: "provision", OK: true, Properties: map[string]string{"ip": "10.0.0.5"},
	}})
	k.Tick(time.Unix(0, 0))

	assert.Equal(t, types.ResActive, r.State)
	assert.Equal(t, types.PendingNone, r.Pending)
	assert.Equal(t, "10.0.0.5", r.Properties["ip"])

	select {
	case msg := <-outbox:
		assert.Equal(t, "orch.in", msg.Topic)
		assert.Equal(t, protocol.KindUpdateLease, msg.Envelope.Kind)
	default:
		t.Fatal("expected an UpdateLease reply on the outbox")
	}
}
