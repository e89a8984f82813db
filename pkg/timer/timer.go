// Package timer implements the deferred-timeout thread of spec.md §5:
// "a timer thread (fires deferred timeouts back into the kernel queue)".
// Every outgoing RPC the kernel issues carries a deadline; the kernel
// calls Service.Tick once per tick, and the timer returns a synthetic
// failure event for each expired deadline rather than calling back into
// kernel state directly — the kernel applies those events itself, as the
// only thing that ever mutates a reservation.
package timer

import (
	"sync"

	"github.com/testbedctl/actorcore/pkg/types"
)

// Event is the synthetic failure event Service.Tick returns when a
// deadline expires without a reply; the kernel applies it as a
// completion event in the same tick.
type Event struct {
	ReservationID string
	Kind          string // matches the protocol.Kind of the RPC that timed out
	Err           *types.Error
}

// Service tracks pending deadlines keyed by correlation id and, on each
// Tick, returns the ones that have expired.
type Service struct {
	mu      sync.Mutex
	pending map[string]entry

	// Retries caps how many times a single correlation id may be
	// retried before the kernel gives up and surfaces Timeout (spec.md
	// §7: "TransportError is retried up to rpc.retries ... before
	// surfacing as Timeout").
	retries int
}

type entry struct {
	dueTick       uint64
	reservationID string
	kind          string
	attempts      int
}

// NewService builds a Service with the given retry cap.
func NewService(retries int) *Service {
	if retries <= 0 {
		retries = 5
	}
	return &Service{pending: make(map[string]entry), retries: retries}
}

// Arm schedules a deadline for correlationID, due at dueTick, tied to
// reservationID and the message kind that was sent.
func (s *Service) Arm(correlationID, reservationID, kind string, dueTick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[correlationID] = entry{dueTick: dueTick, reservationID: reservationID, kind: kind}
}

// Disarm cancels a pending deadline, called when the reply arrives
// before expiry.
func (s *Service) Disarm(correlationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, correlationID)
}

// Tick returns every Event whose deadline is <= now, retrying entries
// that have not yet exhausted the retry cap (re-armed at now+1 with a
// bumped attempt count) and surfacing Timeout for the rest.
func (s *Service) Tick(now uint64) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Event
	for id, e := range s.pending {
		if e.dueTick > now {
			continue
		}
		if e.attempts < s.retries {
			e.attempts++
			e.dueTick = now + 1
			s.pending[id] = e
			out = append(out, Event{
				ReservationID: e.reservationID,
				Kind:          e.kind,
				Err:           types.NewError(types.ErrTransportError, "deadline expired, retry %d/%d", e.attempts, s.retries),
			})
			continue
		}
		delete(s.pending, id)
		out = append(out, Event{
			ReservationID: e.reservationID,
			Kind:          e.kind,
			Err:           types.NewError(types.ErrTimeout, "deadline expired after %d retries", s.retries),
		})
	}
	return out
}
