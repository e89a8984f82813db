package transport

import (
	"context"
	"sync"
)

// MemoryBus is an in-process Bus backed by per-topic buffered channels.
// It preserves per-topic delivery order (a single partition per topic)
// and is the default transport for tests and single-process
// deployments.
type MemoryBus struct {
	mu     sync.Mutex
	topics map[string]chan Message
	closed bool
}

// NewMemoryBus builds an empty MemoryBus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{topics: make(map[string]chan Message)}
}

func (b *MemoryBus) channel(topic string) chan Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.topics[topic]
	if !ok {
		ch = make(chan Message, 256)
		b.topics[topic] = ch
	}
	return ch
}

// Publish enqueues msg on its topic's channel (buffered to 256
// messages). While the buffer is full it blocks until a slot frees or
// ctx is done, in which case it returns ctx.Err().
func (b *MemoryBus) Publish(ctx context.Context, msg Message) error {
	ch := b.channel(msg.Topic)
	select {
	case ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe drains topic's channel, invoking handle for each message
// until ctx is canceled.
func (b *MemoryBus) Subscribe(ctx context.Context, topic string, handle func(Message) error) error {
	ch := b.channel(topic)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-ch:
			if err := handle(msg); err != nil {
				return err
			}
		}
	}
}

// Close marks the bus closed. Outstanding Subscribe calls should be
// stopped via context cancellation; Close itself does not forcibly
// unblock them.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
