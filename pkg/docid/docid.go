package docid

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/menmos/menmos/pkg/kv"
)

const (
	bucketForward = "documents.fwd" // blob-id -> doc-idx (fixed-width uint32 LE)
	bucketReverse = "documents.rev" // doc-idx -> blob-id
	bucketCounter = "documents.counter"
	bucketRecycle = "documents.recycled"

	keyCounter = "next"
	keyStack   = "stack"
)

// Store is the persistent bijective blob-id <-> doc-idx map.
//
// The monotonic counter and recycle stack are cached in memory, both
// guarded by a single mutex, and mirrored to the kv store on every
// mutation so a restart resumes from the last committed state.
type Store struct {
	db kv.Store

	mu       sync.Mutex
	nextID   uint32
	recycled []uint32
}

// Open loads (or initializes) a Store from db.
func Open(db kv.Store) (*Store, error) {
	s := &Store{db: db}

	err := db.View(func(tx kv.Tx) error {
		counterBucket := tx.Bucket(bucketCounter)
		if raw := counterBucket.Get([]byte(keyCounter)); raw != nil {
			if len(raw) != 4 {
				return fmt.Errorf("docid: corrupt counter value (%d bytes)", len(raw))
			}
			s.nextID = binary.LittleEndian.Uint32(raw)
		}

		recycleBucket := tx.Bucket(bucketRecycle)
		if raw := recycleBucket.Get([]byte(keyStack)); raw != nil {
			if err := json.Unmarshal(raw, &s.recycled); err != nil {
				return fmt.Errorf("docid: corrupt recycle stack: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) persistCounterAndStack(tx kv.Tx) error {
	counterBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(counterBuf, s.nextID)
	if err := tx.Bucket(bucketCounter).Put([]byte(keyCounter), counterBuf); err != nil {
		return err
	}

	stackBuf, err := json.Marshal(s.recycled)
	if err != nil {
		return fmt.Errorf("docid: marshal recycle stack: %w", err)
	}
	return tx.Bucket(bucketRecycle).Put([]byte(keyStack), stackBuf)
}

// nextDocIdx pops a recycled index if one exists, otherwise advances
// the counter. Must be called with s.mu held.
func (s *Store) nextDocIdx() uint32 {
	if n := len(s.recycled); n > 0 {
		idx := s.recycled[n-1]
		s.recycled = s.recycled[:n-1]
		return idx
	}
	idx := s.nextID
	s.nextID++
	return idx
}

// GetOrAssign returns the doc index already bound to blobID, assigning
// a fresh one (recycled if available, else the next counter value)
// when this is the first time blobID has been seen.
func (s *Store) GetOrAssign(blobID string) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var idx uint32

	err := s.db.Update(func(tx kv.Tx) error {
		fwd := tx.Bucket(bucketForward)
		if raw := fwd.Get([]byte(blobID)); raw != nil {
			idx = binary.LittleEndian.Uint32(raw)
			return nil
		}

		idx = s.nextDocIdx()

		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, idx)
		if err := fwd.Put([]byte(blobID), buf); err != nil {
			return err
		}
		if err := tx.Bucket(bucketReverse).Put(buf, []byte(blobID)); err != nil {
			return err
		}
		return s.persistCounterAndStack(tx)
	})
	if err != nil {
		return 0, fmt.Errorf("docid: get-or-assign %q: %w", blobID, err)
	}
	return idx, nil
}

// Lookup returns the doc index bound to blobID, and false if blobID
// has never been assigned one.
func (s *Store) Lookup(blobID string) (uint32, bool, error) {
	var idx uint32
	var ok bool

	err := s.db.View(func(tx kv.Tx) error {
		raw := tx.Bucket(bucketForward).Get([]byte(blobID))
		if raw == nil {
			return nil
		}
		idx = binary.LittleEndian.Uint32(raw)
		ok = true
		return nil
	})
	if err != nil {
		return 0, false, fmt.Errorf("docid: lookup %q: %w", blobID, err)
	}
	return idx, ok, nil
}

// Resolve returns the blob ID bound to doc index idx, and false if idx
// is not currently assigned.
func (s *Store) Resolve(idx uint32) (string, bool, error) {
	var blobID string
	var ok bool

	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, idx)

	err := s.db.View(func(tx kv.Tx) error {
		raw := tx.Bucket(bucketReverse).Get(buf)
		if raw == nil {
			return nil
		}
		blobID = string(raw)
		ok = true
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("docid: resolve %d: %w", idx, err)
	}
	return blobID, ok, nil
}

// Release removes blobID's mapping and pushes its doc index onto the
// recycle stack, so a future GetOrAssign reuses it before the counter
// advances further.
func (s *Store) Release(blobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx kv.Tx) error {
		fwd := tx.Bucket(bucketForward)
		raw := fwd.Get([]byte(blobID))
		if raw == nil {
			return nil
		}
		idx := binary.LittleEndian.Uint32(raw)

		if err := fwd.Delete([]byte(blobID)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketReverse).Delete(raw); err != nil {
			return err
		}

		s.recycled = append(s.recycled, idx)
		return s.persistCounterAndStack(tx)
	})
}
