package protocol

import (
	"container/list"
	"sync"
)

// HandlerFunc processes one inbound Envelope. Handlers run on the
// goroutine that calls Dispatch (an actor's bus consumer), not on the
// kernel's tick path; they reach kernel state only by enqueueing a
// command, and must not block.
type HandlerFunc func(Envelope) error

// Dispatcher routes inbound envelopes to a per-Kind HandlerFunc,
// deduplicating by msg_id within a bounded window (spec.md §4.7: "The
// kernel deduplicates by msg_id within a bounded window and idempotently
// re-processes replayed messages using reservation id as the key").
type Dispatcher struct {
	mu       sync.Mutex
	handlers map[Kind]HandlerFunc

	seen     map[string]struct{}
	order    *list.List // msg_ids in arrival order, oldest at Front
	window   int
}

// NewDispatcher builds a Dispatcher whose dedup window holds the last
// windowSize distinct msg_ids.
func NewDispatcher(windowSize int) *Dispatcher {
	if windowSize <= 0 {
		windowSize = 4096
	}
	return &Dispatcher{
		handlers: make(map[Kind]HandlerFunc),
		seen:     make(map[string]struct{}),
		order:    list.New(),
		window:   windowSize,
	}
}

// Register installs the handler for kind, replacing any prior one.
func (d *Dispatcher) Register(kind Kind, h HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = h
}

// Dispatch routes env to its registered handler, skipping it silently if
// its msg_id was already processed within the dedup window. Returns
// (handled, error): handled is false for a duplicate or an unregistered
// kind.
func (d *Dispatcher) Dispatch(env Envelope) (bool, error) {
	d.mu.Lock()
	if _, dup := d.seen[env.MsgID]; dup {
		d.mu.Unlock()
		return false, nil
	}
	d.remember(env.MsgID)
	h, ok := d.handlers[env.Kind]
	d.mu.Unlock()

	if !ok {
		return false, nil
	}
	return true, h(env)
}

// remember records msg_id as seen and evicts the oldest entry once the
// window is exceeded. Caller holds d.mu.
func (d *Dispatcher) remember(msgID string) {
	d.seen[msgID] = struct{}{}
	d.order.PushBack(msgID)
	if d.order.Len() > d.window {
		oldest := d.order.Front()
		d.order.Remove(oldest)
		delete(d.seen, oldest.Value.(string))
	}
}
