package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testbedctl/actorcore/pkg/calendar"
	"github.com/testbedctl/actorcore/pkg/graph"
	"github.com/testbedctl/actorcore/pkg/types"
)

func newTestBroker() (*Broker, *graph.InMemory, *calendar.Calendar) {
	g := graph.NewInMemory("cbm-1")
	g.PutNode(graph.Node{
		ID:       "worker1",
		Type:     types.ResourceVM,
		Site:     "RENC",
		Capacity: types.Capacities{Cores: 32, RAMGB: 384, DiskGB: 3000},
	})
	cal := calendar.New(3600)
	return NewBroker(g, cal, nil, nil), g, cal
}

func reservationFor(id, site string, c types.Capacities) *types.Reservation {
	return &types.Reservation{
		ID:                  id,
		SliceID:             "s1",
		ResourceType:        types.ResourceVM,
		RequestedCapacities: c,
		RequestedWindow: types.Window{
			Start: time.Unix(1000, 0),
			End:   time.Unix(4600, 0),
		},
	}
}

func TestBrokerAllocateGrantsOnSufficientCapacity(t *testing.T) {
	b, _, _ := newTestBroker()
	r := reservationFor("r1", "RENC", types.Capacities{Cores: 4, RAMGB: 64, DiskGB: 500})

	err := b.Allocate(r, "RENC", 1)
	require.Nil(t, err)
	assert.Equal(t, types.ResTicketed, r.State)
	assert.Equal(t, "worker1", r.NodeMap.GraphNodeID)
	assert.Equal(t, r.RequestedCapacities, r.ApprovedCapacities)
}

func TestBrokerAllocateFailsOnInsufficientCapacity(t *testing.T) {
	b, _, cal := newTestBroker()

	held := reservationFor("held", "RENC", types.Capacities{Cores: 30, RAMGB: 100, DiskGB: 100})
	held.ApprovedCapacities = held.RequestedCapacities
	held.NodeMap = types.NodeMap{GraphID: "cbm-1", GraphNodeID: "worker1"}
	held.State = types.ResActive
	require.True(t, cal.AddHolding(held))

	r := reservationFor("r1", "RENC", types.Capacities{Cores: 4, RAMGB: 64, DiskGB: 500})
	err := b.Allocate(r, "RENC", 1)
	require.NotNil(t, err)
	assert.Equal(t, types.ErrInsufficientResources, err.Kind)
	assert.Equal(t, types.ResFailed, r.State)
}

func TestBrokerAllocateIsIdempotent(t *testing.T) {
	b, _, _ := newTestBroker()
	r := reservationFor("r1", "RENC", types.Capacities{Cores: 4, RAMGB: 64, DiskGB: 500})

	require.Nil(t, b.Allocate(r, "RENC", 1))
	firstNode := r.NodeMap.GraphNodeID

	// Re-process the same reservation id, as at-least-once redelivery
	// would: the assignment must not change.
	require.Nil(t, b.Allocate(r, "RENC", 2))
	assert.Equal(t, firstNode, r.NodeMap.GraphNodeID)
}

func TestBrokerAllocateRejectsZeroLengthWindow(t *testing.T) {
	b, _, _ := newTestBroker()
	r := reservationFor("r1", "RENC", types.Capacities{Cores: 1})
	r.RequestedWindow = types.Window{Start: time.Unix(1000, 0), End: time.Unix(1000, 0)}

	err := b.Allocate(r, "RENC", 1)
	require.NotNil(t, err)
	assert.Equal(t, types.ErrInvalidRequest, err.Kind)
}

func TestBrokerAllocateRestrictsToPinnedNode(t *testing.T) {
	b, g, _ := newTestBroker()
	g.PutNode(graph.Node{ID: "worker2", Type: types.ResourceVM, Site: "RENC", Capacity: types.Capacities{Cores: 64, RAMGB: 512, DiskGB: 4000}})

	r := reservationFor("r1", "RENC", types.Capacities{Cores: 4, RAMGB: 64, DiskGB: 500})
	r.NodeMap = types.NodeMap{GraphID: "cbm-1", GraphNodeID: "worker1"}

	require.Nil(t, b.Allocate(r, "RENC", 1))
	assert.Equal(t, "worker1", r.NodeMap.GraphNodeID)
}
