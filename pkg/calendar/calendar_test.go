package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testbedctl/actorcore/pkg/types"
)

func reservation(id, node string, start, end time.Time) *types.Reservation {
	return &types.Reservation{
		ID:              id,
		State:           types.ResActive,
		NodeMap:         types.NodeMap{GraphID: "g1", GraphNodeID: node},
		RequestedWindow: types.Window{Start: start, End: end},
	}
}

func TestAddHoldingRejectsZeroLengthWindow(t *testing.T) {
	c := New(3600)
	now := time.Now()
	r := reservation("r1", "n1", now, now)
	assert.False(t, c.AddHolding(r))
}

func TestHoldingsAtCoversHalfOpenInterval(t *testing.T) {
	c := New(3600)
	start := time.Unix(1000, 0)
	end := time.Unix(2000, 0)
	r := reservation("r1", "n1", start, end)
	require.True(t, c.AddHolding(r))

	assert.Empty(t, c.HoldingsAt("n1", start.Unix()-1))
	assert.Len(t, c.HoldingsAt("n1", start.Unix()), 1)
	assert.Len(t, c.HoldingsAt("n1", end.Unix()-1), 1)
	assert.Empty(t, c.HoldingsAt("n1", end.Unix()), "end is exclusive")
}

func TestHoldingsAtExcludesTerminalReservations(t *testing.T) {
	c := New(3600)
	start := time.Unix(1000, 0)
	end := time.Unix(2000, 0)
	r := reservation("r1", "n1", start, end)
	r.State = types.ResClosed
	require.True(t, c.AddHolding(r))

	assert.Empty(t, c.HoldingsAt("n1", start.Unix()+1))
}

func TestRemoveHolding(t *testing.T) {
	c := New(3600)
	start := time.Unix(1000, 0)
	end := time.Unix(2000, 0)
	r := reservation("r1", "n1", start, end)
	require.True(t, c.AddHolding(r))
	require.Len(t, c.HoldingsAt("n1", 1500), 1)

	c.RemoveHolding(r)
	assert.Empty(t, c.HoldingsAt("n1", 1500))
}

func TestClosingBefore(t *testing.T) {
	c := New(3600)
	start := time.Unix(1000, 0)
	end := time.Unix(2000, 0)
	r := reservation("r1", "n1", start, end)
	require.True(t, c.AddHolding(r))

	assert.Empty(t, c.ClosingBefore(1999))
	closing := c.ClosingBefore(2000)
	require.Len(t, closing, 1)
	assert.Equal(t, "r1", closing[0].ID)
}

func TestRenewingBeforeWithinLookahead(t *testing.T) {
	c := New(500) // 500s lookahead
	start := time.Unix(1000, 0)
	end := time.Unix(2000, 0)
	r := reservation("r1", "n1", start, end)
	require.True(t, c.AddHolding(r))

	assert.Empty(t, c.RenewingBefore(1400), "lease-end 2000 is outside a 500s lookahead from 1400")
	renewing := c.RenewingBefore(1600)
	require.Len(t, renewing, 1)
	assert.Equal(t, "r1", renewing[0].ID)
}

func TestPendingAddAndDueBefore(t *testing.T) {
	c := New(3600)
	r1 := reservation("r1", "n1", time.Unix(0, 0), time.Unix(1, 0))
	r2 := reservation("r2", "n1", time.Unix(0, 0), time.Unix(1, 0))

	c.AddPending(r1, 5)
	c.AddPending(r2, 10)

	assert.Empty(t, c.DueBefore(4))
	due := c.DueBefore(5)
	require.Len(t, due, 1)
	assert.Equal(t, "r1", due[0].ID)

	// Draining DueBefore(5) must not re-surface r1 on a later call.
	due = c.DueBefore(10)
	require.Len(t, due, 1)
	assert.Equal(t, "r2", due[0].ID)
}

func TestHoldingsOrderedByStartThenEnd(t *testing.T) {
	c := New(3600)
	late := reservation("late", "n1", time.Unix(2000, 0), time.Unix(3000, 0))
	early := reservation("early", "n1", time.Unix(1000, 0), time.Unix(1500, 0))
	earlyShort := reservation("earlyShort", "n1", time.Unix(1000, 0), time.Unix(1200, 0))
	require.True(t, c.AddHolding(late))
	require.True(t, c.AddHolding(early))
	require.True(t, c.AddHolding(earlyShort))

	at1200 := c.HoldingsAt("n1", 1200)
	require.Len(t, at1200, 1)
	assert.Equal(t, "early", at1200[0].ID)

	// Holdings come back sorted by start, then by end, whatever the
	// insertion order was.
	all := c.HoldingsOverlapping("n1", 0, 4000)
	require.Len(t, all, 3)
	assert.Equal(t, "earlyShort", all[0].ID)
	assert.Equal(t, "early", all[1].ID)
	assert.Equal(t, "late", all[2].ID)
}
