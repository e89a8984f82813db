package actor

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testbedctl/actorcore/pkg/calendar"
	"github.com/testbedctl/actorcore/pkg/clock"
	"github.com/testbedctl/actorcore/pkg/graph"
	"github.com/testbedctl/actorcore/pkg/policy"
	"github.com/testbedctl/actorcore/pkg/protocol"
	"github.com/testbedctl/actorcore/pkg/types"
)

// memStore is a minimal in-memory storage.Store, avoiding a dependency on
// BoltDB for actor-wiring tests.
type memStore struct {
	reservations map[string]*types.Reservation
	slices       map[string]*types.Slice
	delegations  map[string]*types.Delegation
}

func newMemStore() *memStore {
	return &memStore{
		reservations: make(map[string]*types.Reservation),
		slices:       make(map[string]*types.Slice),
		delegations:  make(map[string]*types.Delegation),
	}
}

func (s *memStore) SaveReservations(batch []*types.Reservation) error {
	for _, r := range batch {
		s.reservations[r.ID] = r
	}
	return nil
}
func (s *memStore) GetReservation(id string) (*types.Reservation, error) {
	r, ok := s.reservations[id]
	if !ok {
		return nil, fmt.Errorf("reservation not found: %s", id)
	}
	return r, nil
}
func (s *memStore) ListReservations() ([]*types.Reservation, error) {
	out := make([]*types.Reservation, 0, len(s.reservations))
	for _, r := range s.reservations {
		out = append(out, r)
	}
	return out, nil
}
func (s *memStore) DeleteReservation(id string) error { delete(s.reservations, id); return nil }

func (s *memStore) SaveSlice(sl *types.Slice) error { s.slices[sl.ID] = sl; return nil }
func (s *memStore) GetSlice(id string) (*types.Slice, error) {
	sl, ok := s.slices[id]
	if !ok {
		return nil, fmt.Errorf("slice not found: %s", id)
	}
	return sl, nil
}
func (s *memStore) ListSlices() ([]*types.Slice, error) {
	out := make([]*types.Slice, 0, len(s.slices))
	for _, sl := range s.slices {
		out = append(out, sl)
	}
	return out, nil
}
func (s *memStore) DeleteSlice(id string) error { delete(s.slices, id); return nil }

func (s *memStore) SaveDelegation(d *types.Delegation) error { s.delegations[d.ID] = d; return nil }
func (s *memStore) GetDelegation(id string) (*types.Delegation, error) {
	d, ok := s.delegations[id]
	if !ok {
		return nil, fmt.Errorf("delegation not found: %s", id)
	}
	return d, nil
}
func (s *memStore) ListDelegations() ([]*types.Delegation, error) {
	out := make([]*types.Delegation, 0, len(s.delegations))
	for _, d := range s.delegations {
		out = append(out, d)
	}
	return out, nil
}
func (s *memStore) DeleteDelegation(id string) error { delete(s.delegations, id); return nil }
func (s *memStore) Close() error                     { return nil }

func newBrokerActor(t *testing.T, store *memStore) (*Actor, *calendar.Calendar) {
	t.Helper()
	g := graph.NewInMemory("cbm-1")
	g.PutNode(graph.Node{ID: "worker1", Type: types.ResourceVM, Site: "RENC", Capacity: types.Capacities{Cores: 32, RAMGB: 384, DiskGB: 3000}})
	cal := calendar.New(3600)
	broker := policy.NewBroker(g, cal, nil, nil)
	hooks := policy.NewBrokerHooks("broker1", broker)

	rt := NewRuntime(RuntimeConfig{
		GUID: "broker1", Role: types.RoleBroker,
		Clock: clock.New(clock.Config{Manual: true}),
		Store: store,
	})
	a, err := New(Config{
		Runtime: rt, Hooks: hooks, Calendar: cal,
		InboundTopic: "broker1.in", CommitBatchSize: 1,
	})
	require.NoError(t, err)
	return a, cal
}

func TestNewHydratesNonTerminalReservationsOnly(t *testing.T) {
	store := newMemStore()
	live := &types.Reservation{ID: "r-live", SliceID: "s1", State: types.ResTicketed}
	dead := &types.Reservation{ID: "r-dead", SliceID: "s1", State: types.ResClosed}
	require.NoError(t, store.SaveReservations([]*types.Reservation{live, dead}))

	a, _ := newBrokerActor(t, store)
	a.Kernel.Tick(time.Unix(0, 0))

	_, ok := a.Kernel.Reservation("r-live")
	assert.True(t, ok, "non-terminal reservation should be rehydrated")
	_, ok = a.Kernel.Reservation("r-dead")
	assert.False(t, ok, "terminal reservation should not be rehydrated")
}

func TestActorHandleTicketGrantsAndPublishesReply(t *testing.T) {
	a, _ := newBrokerActor(t, newMemStore())

	r := &types.Reservation{
		ID: "r1", SliceID: "s1", ResourceType: types.ResourceVM,
		RequestedCapacities: types.Capacities{Cores: 4, RAMGB: 64, DiskGB: 500},
		RequestedWindow:     types.Window{Start: time.Unix(1000, 0), End: time.Unix(4600, 0)},
		Properties:          map[string]string{"site": "RENC"},
	}
	env := protocol.NewEnvelope(protocol.KindTicket, "orch1", "", protocol.TicketPayload{
		SliceID: "s1", Reservations: []*types.Reservation{r},
	})
	env.CallbackTopic = "orch1.in"

	require.NoError(t, a.handleTicket(env))
	a.Kernel.Tick(time.Unix(0, 0))

	stored, ok := a.Kernel.Reservation("r1")
	require.True(t, ok)
	assert.Equal(t, types.ResTicketed, stored.State)

	select {
	case msg := <-a.outbox:
		assert.Equal(t, "orch1.in", msg.Topic)
		assert.Equal(t, env.MsgID, msg.Envelope.CorrelationID)
		payload, ok := msg.Envelope.Payload.(protocol.UpdateTicketPayload)
		require.True(t, ok)
		assert.True(t, payload.Result.OK)
	default:
		t.Fatal("expected an UpdateTicket reply queued on the outbox")
	}
}

func TestActorHandleCloseMarksReservationClosingAndReplies(t *testing.T) {
	a, cal := newBrokerActor(t, newMemStore())

	r := &types.Reservation{
		ID: "r1", SliceID: "s1", ResourceType: types.ResourceVM,
		RequestedCapacities: types.Capacities{Cores: 2},
		RequestedWindow:     types.Window{Start: time.Unix(1000, 0), End: time.Unix(4600, 0)},
		ApprovedCapacities:  types.Capacities{Cores: 2},
		NodeMap:             types.NodeMap{GraphID: "cbm-1", GraphNodeID: "worker1"},
		State:               types.ResTicketed,
	}
	require.True(t, cal.AddHolding(r))
	a.Kernel.AdoptReservation(r, 0)

	env := protocol.NewEnvelope(protocol.KindClose, "orch1", "", protocol.ClosePayload{ReservationID: "r1"})
	env.CallbackTopic = "orch1.in"
	require.NoError(t, a.handleClose(env))
	a.Kernel.Tick(time.Unix(0, 0))

	stored, ok := a.Kernel.Reservation("r1")
	require.True(t, ok)
	assert.Equal(t, types.ResClosed, stored.State)
	assert.Equal(t, types.PendingNone, stored.Pending)

	select {
	case msg := <-a.outbox:
		assert.Equal(t, protocol.KindUpdateLease, msg.Envelope.Kind)
	default:
		t.Fatal("expected a close reply queued on the outbox")
	}
}

func TestActorHandleProbeRepliesOnCallbackTopic(t *testing.T) {
	a, _ := newBrokerActor(t, newMemStore())

	env := protocol.NewEnvelope(protocol.KindProbe, "auth1", "", protocol.ProbePayload{})
	env.CallbackTopic = "auth1.in"
	require.NoError(t, a.handleProbe(env))
	a.Kernel.Tick(time.Unix(0, 0))

	select {
	case msg := <-a.outbox:
		assert.Equal(t, "auth1.in", msg.Topic)
		assert.Equal(t, protocol.KindProbe, msg.Envelope.Kind)
		assert.Equal(t, env.MsgID, msg.Envelope.CorrelationID)
	default:
		t.Fatal("expected a Probe ack queued on the outbox")
	}
}
