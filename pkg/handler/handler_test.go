package handler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testbedctl/actorcore/pkg/calendar"
	"github.com/testbedctl/actorcore/pkg/kernel"
	"github.com/testbedctl/actorcore/pkg/types"
)

func TestSimulatedProvisionAlwaysSucceeds(t *testing.T) {
	s := NewSimulated()
	r := &types.Reservation{ID: "r1"}

	ok, props, err := s.Provision(context.Background(), r)
	require.True(t, ok)
	require.Nil(t, err)
	assert.NotEmpty(t, props["ip"])
	assert.Equal(t, "sim-r1", props["instance_id"])
}

func TestSimulatedProbeReportsExists(t *testing.T) {
	s := NewSimulated()
	exists, err := s.Probe(context.Background(), &types.Reservation{ID: "r1"})
	require.Nil(t, err)
	assert.True(t, exists)
}

type recordingHooks struct {
	completed []kernel.CompletionEvent
}

func (h *recordingHooks) ProcessDue(k *kernel.Kernel, r *types.Reservation, now time.Time, tick uint64) {
}

func (h *recordingHooks) Complete(k *kernel.Kernel, r *types.Reservation, ev kernel.CompletionEvent) {
	h.completed = append(h.completed, ev)
}

type nopStore struct{}

func (nopStore) SaveReservations(batch []*types.Reservation) error { return nil }

type stubClock struct{ ch chan time.Time }

func (c *stubClock) Now() time.Time      { return time.Unix(0, 0) }
func (c *stubClock) Tick() uint64        { return 0 }
func (c *stubClock) C() <-chan time.Time { return c.ch }

func TestPoolProvisionPostsCompletionBackToKernel(t *testing.T) {
	hooks := &recordingHooks{}
	k := kernel.New(kernel.Config{
		Role:            types.RoleAuthority,
		Clock:           &stubClock{ch: make(chan time.Time)},
		Calendar:        calendar.New(3600),
		Store:           nopStore{},
		Hooks:           hooks,
		CommitBatchSize: 1,
	})

	pool := NewPool(Registry{types.ResourceVM: NewSimulated()}, 2, k)
	r := &types.Reservation{ID: "r1", SliceID: "s1", ResourceType: types.ResourceVM}
	k.AdoptReservation(r, 0)

	pool.Provision(r)
	pool.Wait()

	// The completion is sitting on the kernel's queue; a tick drains it
	// and hands it to Hooks.Complete.
	k.Tick(time.Unix(0, 0))

	require.Len(t, hooks.completed, 1)
	assert.Equal(t, "r1", hooks.completed[0].ReservationID)
	assert.True(t, hooks.completed[0].OK)
}
