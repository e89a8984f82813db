package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchRoutesToRegisteredHandler(t *testing.T) {
	d := NewDispatcher(8)
	var got Envelope
	d.Register(KindTicket, func(e Envelope) error {
		got = e
		return nil
	})

	env := NewEnvelope(KindTicket, "orch-1", "", TicketPayload{SliceID: "s1"})
	handled, err := d.Dispatch(env)
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, env.MsgID, got.MsgID)
}

func TestDispatchSkipsDuplicateMsgID(t *testing.T) {
	d := NewDispatcher(8)
	calls := 0
	d.Register(KindProbe, func(Envelope) error {
		calls++
		return nil
	})

	env := NewEnvelope(KindProbe, "orch-1", "", ProbePayload{})
	handled1, err := d.Dispatch(env)
	require.NoError(t, err)
	assert.True(t, handled1)

	handled2, err := d.Dispatch(env)
	require.NoError(t, err)
	assert.False(t, handled2, "redelivery of the same msg_id must be a no-op")
	assert.Equal(t, 1, calls)
}

func TestDispatchUnregisteredKindIsNotHandled(t *testing.T) {
	d := NewDispatcher(8)
	env := NewEnvelope(KindClaim, "auth-1", "", ClaimPayload{DelegationID: "d1"})
	handled, err := d.Dispatch(env)
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestDispatchWindowEvictsOldestEntry(t *testing.T) {
	d := NewDispatcher(2)
	calls := 0
	d.Register(KindProbe, func(Envelope) error {
		calls++
		return nil
	})

	first := NewEnvelope(KindProbe, "a", "", nil)
	second := NewEnvelope(KindProbe, "a", "", nil)
	third := NewEnvelope(KindProbe, "a", "", nil)

	d.Dispatch(first)
	d.Dispatch(second)
	d.Dispatch(third) // evicts `first` from the window

	handled, err := d.Dispatch(first)
	require.NoError(t, err)
	assert.True(t, handled, "first should be re-processed once evicted from the dedup window")
	assert.Equal(t, 4, calls)
}
