package kernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testbedctl/actorcore/pkg/calendar"
	"github.com/testbedctl/actorcore/pkg/timer"
	"github.com/testbedctl/actorcore/pkg/types"
)

// fakeClock is a minimal manual Clock for kernel tests, avoiding a
// dependency on pkg/clock's channel delivery semantics.
type fakeClock struct {
	now  time.Time
	tick uint64
	ch   chan time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(0, 0), ch: make(chan time.Time, 1)}
}

func (c *fakeClock) Now() time.Time     { return c.now }
func (c *fakeClock) Tick() uint64       { return c.tick }
func (c *fakeClock) C() <-chan time.Time { return c.ch }
func (c *fakeClock) advance() {
	c.tick++
	c.now = c.now.Add(time.Second)
}

type fakeStore struct {
	saved [][]*types.Reservation
}

func (s *fakeStore) SaveReservations(batch []*types.Reservation) error {
	s.saved = append(s.saved, batch)
	return nil
}

type fakeHooks struct {
	processed []string
	completed []string
}

func (h *fakeHooks) ProcessDue(k *Kernel, r *types.Reservation, now time.Time, tick uint64) {
	h.processed = append(h.processed, r.ID)
	r.State = types.ResTicketed
	r.MarkDirty()
}

func (h *fakeHooks) Complete(k *Kernel, r *types.Reservation, ev CompletionEvent) {
	h.completed = append(h.completed, r.ID)
}

func newTestKernel() (*Kernel, *fakeHooks, *fakeStore) {
	hooks := &fakeHooks{}
	store := &fakeStore{}
	k := New(Config{
		Role:            types.RoleBroker,
		Clock:           newFakeClock(),
		Calendar:        calendar.New(3600),
		Store:           store,
		Hooks:           hooks,
		CommitBatchSize: 1,
	})
	return k, hooks, store
}

func TestProcessTickProcessesDueReservationInSliceOrder(t *testing.T) {
	k, hooks, store := newTestKernel()

	r1 := &types.Reservation{ID: "r1", SliceID: "s1", State: types.ResNascent}
	r2 := &types.Reservation{ID: "r2", SliceID: "s1", State: types.ResNascent}
	k.AdoptReservation(r1, 0)
	k.AdoptReservation(r2, 0)

	k.processTick(time.Unix(0, 0))

	assert.Equal(t, []string{"r1", "r2"}, hooks.processed, "same-slice reservations process in insertion order")
	assert.Equal(t, types.ResTicketed, r1.State)
	require.Len(t, store.saved, 2, "commit.batch.size=1 persists one chunk per dirty reservation")
}

func TestProcessTickOrdersAcrossSlicesByID(t *testing.T) {
	k, hooks, _ := newTestKernel()

	rB := &types.Reservation{ID: "rb", SliceID: "sB", State: types.ResNascent}
	rA := &types.Reservation{ID: "ra", SliceID: "sA", State: types.ResNascent}
	k.AdoptReservation(rB, 0)
	k.AdoptReservation(rA, 0)

	k.processTick(time.Unix(0, 0))

	assert.Equal(t, []string{"ra", "rb"}, hooks.processed, "slices process in slice-id ascending order")
}

func TestProcessTickBlocksOnUnsatisfiedPredecessor(t *testing.T) {
	k, hooks, _ := newTestKernel()

	parent := &types.Reservation{ID: "parent", SliceID: "s1", State: types.ResNascent}
	child := &types.Reservation{
		ID: "child", SliceID: "s1", State: types.ResNascent,
		Predecessors: []types.Predecessor{{ReservationID: "parent", TargetState: types.ResTicketed}},
	}
	// The child is adopted first, so it is examined while the parent is
	// still Nascent; the predecessor check reads live state, so a parent
	// processed earlier in the same tick would already count as Ticketed.
	k.AdoptReservation(child, 0)
	k.AdoptReservation(parent, 0)

	k.processTick(time.Unix(0, 0))

	assert.Contains(t, hooks.processed, "parent")
	assert.NotContains(t, hooks.processed, "child", "child must block until parent reaches Ticketed")
	assert.Equal(t, types.PendingBlocked, child.Pending)
}

func TestProcessTickFailsDependentWhenPredecessorFails(t *testing.T) {
	k, hooks, _ := newTestKernel()

	parent := &types.Reservation{ID: "parent", SliceID: "s1", State: types.ResFailed}
	child := &types.Reservation{
		ID: "child", SliceID: "s1", State: types.ResNascent,
		Predecessors: []types.Predecessor{{ReservationID: "parent", TargetState: types.ResTicketed}},
	}
	k.AdoptReservation(parent, 100) // not due this tick
	k.AdoptReservation(child, 0)

	k.processTick(time.Unix(0, 0))

	assert.NotContains(t, hooks.processed, "parent")
	assert.Equal(t, types.ResFailed, child.State)
	require.NotNil(t, child.LastError)
	assert.Equal(t, types.ErrPredecessorFailed, child.LastError.Kind)
}

func TestHandleCompletionRoutesToHooks(t *testing.T) {
	k, hooks, _ := newTestKernel()
	r := &types.Reservation{ID: "r1", SliceID: "s1"}
	k.AdoptReservation(r, 100)

	k.Enqueue(Event{Kind: EventRPCComplete, Completion: CompletionEvent{ReservationID: "r1", OK: true}})
	k.processTick(time.Unix(0, 0))

	assert.Equal(t, []string{"r1"}, hooks.completed)
}

func TestArmedDeadlineFiresAsCompletionEventOnExpiry(t *testing.T) {
	hooks := &fakeHooks{}
	store := &fakeStore{}
	k := New(Config{
		Role:            types.RoleOrchestrator,
		Clock:           newFakeClock(),
		Calendar:        calendar.New(3600),
		Store:           store,
		Hooks:           hooks,
		CommitBatchSize: 1,
		Timer:           timer.NewService(1),
	})
	r := &types.Reservation{ID: "r1", SliceID: "s1"}
	k.AdoptReservation(r, 100) // not due this tick

	k.Arm("corr-1", "r1", "Ticket", 0)
	k.processTick(time.Unix(0, 0))

	assert.Equal(t, []string{"r1"}, hooks.completed, "an expired deadline reaches Hooks.Complete as a synthetic EventRPCComplete")
}

func TestDisarmedDeadlineNeverFires(t *testing.T) {
	hooks := &fakeHooks{}
	store := &fakeStore{}
	k := New(Config{
		Role:            types.RoleOrchestrator,
		Clock:           newFakeClock(),
		Calendar:        calendar.New(3600),
		Store:           store,
		Hooks:           hooks,
		CommitBatchSize: 1,
		Timer:           timer.NewService(1),
	})
	r := &types.Reservation{ID: "r1", SliceID: "s1"}
	k.AdoptReservation(r, 100)

	k.Arm("corr-1", "r1", "Ticket", 0)
	k.Disarm("corr-1")
	k.processTick(time.Unix(0, 0))

	assert.Empty(t, hooks.completed, "a disarmed deadline must not surface a completion event")
}

func TestCommandEventRunsOnKernelGoroutine(t *testing.T) {
	k, _, _ := newTestKernel()
	ran := false
	k.Enqueue(Event{Kind: EventCommand, Command: func(k *Kernel) error {
		ran = true
		return nil
	}})

	k.processTick(time.Unix(0, 0))
	assert.True(t, ran)
}
