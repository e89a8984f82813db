package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualClockAdvance(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New(Config{Manual: true, StartTime: start})
	defer c.Stop()

	require.Equal(t, start, c.Now())
	require.Equal(t, uint64(0), c.Tick())

	now := c.Advance()
	assert.Equal(t, start.Add(time.Second), now)
	assert.Equal(t, uint64(1), c.Tick())
	assert.Equal(t, now, c.Now())

	c.Advance()
	c.Advance()
	assert.Equal(t, uint64(3), c.Tick())
}

func TestManualClockDeterministicReplay(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	run := func() []time.Time {
		c := New(Config{Manual: true, StartTime: start})
		defer c.Stop()
		var got []time.Time
		for i := 0; i < 5; i++ {
			got = append(got, c.Advance())
		}
		return got
	}

	first := run()
	second := run()
	assert.Equal(t, first, second, "replaying the same sequence of Advance calls must produce identical logical times")
}

func TestManualClockFirstTick(t *testing.T) {
	c := New(Config{Manual: true, FirstTick: 100})
	defer c.Stop()
	assert.Equal(t, uint64(100), c.Tick())
	c.Advance()
	assert.Equal(t, uint64(101), c.Tick())
}

func TestManualClockChannelDelivery(t *testing.T) {
	c := New(Config{Manual: true})
	defer c.Stop()

	c.Advance()
	select {
	case got := <-c.C():
		assert.Equal(t, c.Now(), got)
	default:
		t.Fatal("expected a tick on C() after Advance")
	}
}

func TestRealTimeClockOffset(t *testing.T) {
	future := time.Now().Add(24 * time.Hour)
	c := New(Config{StartTime: future, Period: time.Hour})
	defer c.Stop()

	assert.WithinDuration(t, future, c.Now(), time.Second)
}

func TestRealTimeClockWithoutOffsetTracksWallClock(t *testing.T) {
	c := New(Config{Period: time.Hour})
	defer c.Stop()
	assert.WithinDuration(t, time.Now(), c.Now(), time.Second)
}
