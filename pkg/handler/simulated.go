package handler

import (
	"context"
	"fmt"

	"github.com/testbedctl/actorcore/pkg/types"
)

// Simulated is a Handler that always succeeds immediately, assigning a
// synthetic IP from a counter. It exists so a deployment (or a test)
// can run the full kernel/policy/protocol stack without any substrate
// driver wired in at all.
type Simulated struct {
	next int
}

// NewSimulated builds a Simulated handler.
func NewSimulated() *Simulated {
	return &Simulated{next: 1}
}

func (s *Simulated) Provision(ctx context.Context, r *types.Reservation) (bool, map[string]string, *types.Error) {
	s.next++
	return true, map[string]string{
		"ip":          fmt.Sprintf("10.0.0.%d", s.next%254+1),
		"instance_id": "sim-" + r.ID,
	}, nil
}

func (s *Simulated) Teardown(ctx context.Context, r *types.Reservation) *types.Error {
	return nil
}

func (s *Simulated) Probe(ctx context.Context, r *types.Reservation) (bool, *types.Error) {
	// A simulated instance never actually disappears across restarts;
	// report it as having completed successfully.
	return true, nil
}
