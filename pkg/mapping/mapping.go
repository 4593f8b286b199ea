package mapping

import (
	"fmt"

	"github.com/menmos/menmos/pkg/kv"
)

const bucketDispatch = "dispatch"

// Store maps a blob ID to the storage node holding its bytes. Plain
// single-namespace CRUD: the directory consults it on every redirect
// and every delete to know which node to talk to.
type Store struct {
	db kv.Store
}

// Open returns a Store backed by db.
func Open(db kv.Store) *Store {
	return &Store{db: db}
}

// Set records that blobID's bytes live on nodeID.
func (s *Store) Set(blobID, nodeID string) error {
	err := s.db.Update(func(tx kv.Tx) error {
		return tx.Bucket(bucketDispatch).Put([]byte(blobID), []byte(nodeID))
	})
	if err != nil {
		return fmt.Errorf("mapping: set %q: %w", blobID, err)
	}
	return nil
}

// Get returns the node ID holding blobID's bytes, and false if blobID
// has no mapping.
func (s *Store) Get(blobID string) (string, bool, error) {
	var nodeID string
	var ok bool

	err := s.db.View(func(tx kv.Tx) error {
		raw := tx.Bucket(bucketDispatch).Get([]byte(blobID))
		if raw == nil {
			return nil
		}
		nodeID = string(raw)
		ok = true
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("mapping: get %q: %w", blobID, err)
	}
	return nodeID, ok, nil
}

// Delete removes blobID's mapping, returning the node ID it was
// pointing at (and false if there was none).
func (s *Store) Delete(blobID string) (string, bool, error) {
	var nodeID string
	var ok bool

	err := s.db.Update(func(tx kv.Tx) error {
		b := tx.Bucket(bucketDispatch)
		raw := b.Get([]byte(blobID))
		if raw == nil {
			return nil
		}
		nodeID = string(raw)
		ok = true
		return b.Delete([]byte(blobID))
	})
	if err != nil {
		return "", false, fmt.Errorf("mapping: delete %q: %w", blobID, err)
	}
	return nodeID, ok, nil
}

// Clear removes every mapping.
func (s *Store) Clear() error {
	err := s.db.Update(func(tx kv.Tx) error {
		b := tx.Bucket(bucketDispatch)

		var keys [][]byte
		if err := b.ForEach(func(k, _ []byte) error {
			cp := make([]byte, len(k))
			copy(cp, k)
			keys = append(keys, cp)
			return nil
		}); err != nil {
			return err
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("mapping: clear: %w", err)
	}
	return nil
}
