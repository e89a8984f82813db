package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/testbedctl/actorcore/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketReservations = []byte("reservations")
	bucketSlices       = []byte("slices")
	bucketDelegations  = []byte("delegations")
)

// BoltStore implements Store using BoltDB, one database file per actor
// process. Every entity is JSON-encoded under its own bucket, keyed by ID
// — the same bucket-per-entity layout the teacher uses, generalized from
// nodes/services/containers to reservations/slices/delegations.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if necessary) <dataDir>/actorcore.db and
// ensures every bucket exists.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "actorcore.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketReservations, bucketSlices, bucketDelegations} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// SaveReservations commits a batch of reservations in a single write
// transaction, matching the kernel's per-tick commit step (spec.md §4.1
// step 6): either every reservation in the batch lands, or none does.
func (s *BoltStore) SaveReservations(batch []*types.Reservation) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReservations)
		for _, r := range batch {
			data, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("marshal reservation %s: %w", r.ID, err)
			}
			if err := b.Put([]byte(r.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) GetReservation(id string) (*types.Reservation, error) {
	var r types.Reservation
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReservations)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("reservation not found: %s", id)
		}
		return json.Unmarshal(data, &r)
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *BoltStore) ListReservations() ([]*types.Reservation, error) {
	var reservations []*types.Reservation
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReservations)
		return b.ForEach(func(k, v []byte) error {
			var r types.Reservation
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			reservations = append(reservations, &r)
			return nil
		})
	})
	return reservations, err
}

func (s *BoltStore) DeleteReservation(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketReservations).Delete([]byte(id))
	})
}

func (s *BoltStore) SaveSlice(slice *types.Slice) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(slice)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketSlices).Put([]byte(slice.ID), data)
	})
}

func (s *BoltStore) GetSlice(id string) (*types.Slice, error) {
	var slice types.Slice
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSlices).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("slice not found: %s", id)
		}
		return json.Unmarshal(data, &slice)
	})
	if err != nil {
		return nil, err
	}
	return &slice, nil
}

func (s *BoltStore) ListSlices() ([]*types.Slice, error) {
	var slices []*types.Slice
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSlices).ForEach(func(k, v []byte) error {
			var slice types.Slice
			if err := json.Unmarshal(v, &slice); err != nil {
				return err
			}
			slices = append(slices, &slice)
			return nil
		})
	})
	return slices, err
}

func (s *BoltStore) DeleteSlice(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSlices).Delete([]byte(id))
	})
}

func (s *BoltStore) SaveDelegation(d *types.Delegation) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(d)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketDelegations).Put([]byte(d.ID), data)
	})
}

func (s *BoltStore) GetDelegation(id string) (*types.Delegation, error) {
	var d types.Delegation
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketDelegations).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("delegation not found: %s", id)
		}
		return json.Unmarshal(data, &d)
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *BoltStore) ListDelegations() ([]*types.Delegation, error) {
	var delegations []*types.Delegation
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDelegations).ForEach(func(k, v []byte) error {
			var d types.Delegation
			if err := json.Unmarshal(v, &d); err != nil {
				return err
			}
			delegations = append(delegations, &d)
			return nil
		})
	})
	return delegations, err
}

func (s *BoltStore) DeleteDelegation(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDelegations).Delete([]byte(id))
	})
}
