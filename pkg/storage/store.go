package storage

import "github.com/testbedctl/actorcore/pkg/types"

// Store defines the durable state an actor process keeps across restarts:
// reservations, slices, and delegations. It is implemented by BoltStore.
// pkg/kernel depends only on its own narrower Store interface
// (SaveReservations), so this is the concrete type a deployment wires in
// at startup, not something pkg/kernel imports directly.
type Store interface {
	// SaveReservations persists a batch of dirty reservations in a single
	// transaction (spec.md §4.1 step 6, "commit.batch.size").
	SaveReservations(batch []*types.Reservation) error
	GetReservation(id string) (*types.Reservation, error)
	ListReservations() ([]*types.Reservation, error)
	DeleteReservation(id string) error

	SaveSlice(slice *types.Slice) error
	GetSlice(id string) (*types.Slice, error)
	ListSlices() ([]*types.Slice, error)
	DeleteSlice(id string) error

	SaveDelegation(d *types.Delegation) error
	GetDelegation(id string) (*types.Delegation, error)
	ListDelegations() ([]*types.Delegation, error)
	DeleteDelegation(id string) error

	// Close releases the underlying database handle.
	Close() error
}
