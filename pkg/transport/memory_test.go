package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBusPublishAndSubscribe(t *testing.T) {
	bus := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan Message, 1)
	go func() {
		_ = bus.Subscribe(ctx, "orchestrator-in", func(m Message) error {
			received <- m
			return nil
		})
	}()

	require.NoError(t, bus.Publish(context.Background(), Message{Topic: "orchestrator-in", Key: "r1", Value: []byte("hello")}))

	select {
	case m := <-received:
		assert.Equal(t, "r1", m.Key)
		assert.Equal(t, []byte("hello"), m.Value)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestMemoryBusPreservesTopicOrder(t *testing.T) {
	bus := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []string
	done := make(chan struct{})
	go func() {
		n := 0
		_ = bus.Subscribe(ctx, "t", func(m Message) error {
			got = append(got, m.Key)
			n++
			if n == 3 {
				close(done)
			}
			return nil
		})
	}()

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, bus.Publish(context.Background(), Message{Topic: "t", Key: k}))
	}

	select {
	case <-done:
		assert.Equal(t, []string{"a", "b", "c"}, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for messages")
	}
}
