package kv

import (
	"bytes"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

// BoltStore implements Store on top of go.etcd.io/bbolt, the same
// embedded B+tree the teacher's directory state lived in.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the database file at
// <dataDir>/menmos.db.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	path := filepath.Join(dataDir, "menmos.db")
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("kv: failed to open database: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) View(fn func(Tx) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		return fn(&boltTx{tx: tx})
	})
}

func (s *BoltStore) Update(fn func(Tx) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(&boltTx{tx: tx})
	})
}

// Flush is a no-op: bbolt fsyncs on every committed Update.
func (s *BoltStore) Flush() error { return nil }

func (s *BoltStore) Close() error {
	return s.db.Close()
}

type boltTx struct {
	tx *bolt.Tx
}

func (t *boltTx) Bucket(name string) Bucket {
	if t.tx.Writable() {
		b, err := t.tx.CreateBucketIfNotExists([]byte(name))
		if err != nil {
			// CreateBucketIfNotExists only fails on a read-only tx or
			// an oversized bucket name, neither of which applies here.
			panic(fmt.Sprintf("kv: create bucket %q: %v", name, err))
		}
		return &boltBucket{b: b}
	}
	b := t.tx.Bucket([]byte(name))
	if b == nil {
		return emptyBucket{}
	}
	return &boltBucket{b: b}
}

type boltBucket struct {
	b *bolt.Bucket
}

func (b *boltBucket) Get(key []byte) []byte {
	v := b.b.Get(key)
	if v == nil {
		return nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out
}

func (b *boltBucket) Put(key, value []byte) error {
	return b.b.Put(key, value)
}

func (b *boltBucket) Delete(key []byte) error {
	return b.b.Delete(key)
}

func (b *boltBucket) ForEach(fn func(k, v []byte) error) error {
	return b.b.ForEach(fn)
}

func (b *boltBucket) ForEachPrefix(prefix []byte, fn func(k, v []byte) error) error {
	c := b.b.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

// emptyBucket satisfies Bucket for a read-only view of a namespace that
// has never been written, matching spec.md's "load returns the empty
// value for an unknown key" behavior at the bucket level too.
type emptyBucket struct{}

func (emptyBucket) Get(key []byte) []byte                             { return nil }
func (emptyBucket) Put(key, value []byte) error                       { return ErrBucketNotFound }
func (emptyBucket) Delete(key []byte) error                           { return nil }
func (emptyBucket) ForEach(fn func(k, v []byte) error) error          { return nil }
func (emptyBucket) ForEachPrefix(p []byte, fn func(k, v []byte) error) error { return nil }
