package bitvec

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/menmos/menmos/pkg/kv"
)

// allKey is the reserved key holding the union of every other key in a
// tree. It cannot collide with a real tag/field/parent/owner name
// because those are validated to be non-empty and this key is empty.
const allKey = ""

// Bitvector is a growable bitset indexed by document index.
type Bitvector struct {
	bm *roaring.Bitmap
}

func newBitvector() *Bitvector {
	return &Bitvector{bm: roaring.New()}
}

// Test reports whether bit i is set.
func (b *Bitvector) Test(i uint32) bool {
	return b.bm.Contains(i)
}

// Set sets bit i.
func (b *Bitvector) Set(i uint32) {
	b.bm.Add(i)
}

// Clear clears bit i.
func (b *Bitvector) Clear(i uint32) {
	b.bm.Remove(i)
}

// Len returns the number of set bits.
func (b *Bitvector) Len() uint64 {
	return b.bm.GetCardinality()
}

// IsEmpty reports whether no bit is set.
func (b *Bitvector) IsEmpty() bool {
	return b.bm.IsEmpty()
}

// ToArray returns the set bits in ascending order.
func (b *Bitvector) ToArray() []uint32 {
	return b.bm.ToArray()
}

// And returns a new Bitvector holding the intersection of b and other.
// Per the evaluator's efficiency contract, callers should invoke this
// on the larger of the two operands so roaring's internal merge walks
// the smaller bitmap's containers.
func (b *Bitvector) And(other *Bitvector) *Bitvector {
	return &Bitvector{bm: roaring.And(b.bm, other.bm)}
}

// Or returns a new Bitvector holding the union of b and other.
func (b *Bitvector) Or(other *Bitvector) *Bitvector {
	return &Bitvector{bm: roaring.Or(b.bm, other.bm)}
}

// AndNot returns a new Bitvector holding the bits set in b but not in
// other — the primitive behind query negation, where the receiver b is
// load_all() so the result never contains doc indices the universe
// doesn't know about.
func (b *Bitvector) AndNot(other *Bitvector) *Bitvector {
	return &Bitvector{bm: roaring.AndNot(b.bm, other.bm)}
}

// Clone returns an independent copy of b.
func (b *Bitvector) Clone() *Bitvector {
	return &Bitvector{bm: b.bm.Clone()}
}

func (b *Bitvector) encode() ([]byte, error) {
	return b.bm.ToBytes()
}

func decodeBitvector(data []byte) (*Bitvector, error) {
	bm := roaring.New()
	if len(data) > 0 {
		if _, err := bm.FromBuffer(data); err != nil {
			return nil, fmt.Errorf("bitvec: decode: %w", err)
		}
	}
	return &Bitvector{bm: bm}, nil
}

// Tree is a persistent map<string-key, Bitvector> plus the reserved
// aggregate key, namespaced to a single kv bucket. Every operation
// takes the enclosing transaction explicitly so callers (MetadataStore
// in particular) can compose several trees' mutations into one atomic
// kv.Store.Update.
type Tree struct {
	bucket string
}

// New returns a Tree namespaced to bucket. Distinct inverted-index
// entities (tags, kv, key_presence, parents, owners) use distinct
// bucket names so their keys never collide.
func New(bucket string) *Tree {
	return &Tree{bucket: bucket}
}

func (t *Tree) load(b kv.Bucket, key string) (*Bitvector, error) {
	data := b.Get([]byte(key))
	if data == nil {
		return newBitvector(), nil
	}
	return decodeBitvector(data)
}

func (t *Tree) store(b kv.Bucket, key string, v *Bitvector) error {
	data, err := v.encode()
	if err != nil {
		return fmt.Errorf("bitvec: encode %q: %w", key, err)
	}
	return b.Put([]byte(key), data)
}

// Insert sets bit docIdx under key, and under the reserved aggregate
// key, in the same write transaction.
func (t *Tree) Insert(tx kv.Tx, key string, docIdx uint32) error {
	if key == allKey {
		return fmt.Errorf("bitvec: insert: key must be non-empty")
	}
	b := tx.Bucket(t.bucket)

	v, err := t.load(b, key)
	if err != nil {
		return err
	}
	v.Set(docIdx)
	if err := t.store(b, key, v); err != nil {
		return err
	}

	all, err := t.load(b, allKey)
	if err != nil {
		return err
	}
	all.Set(docIdx)
	return t.store(b, allKey, all)
}

// ClearBit clears docIdx from a single key, leaving every other key
// (including the aggregate) untouched. This is the per-key counterpart
// to Insert that the metadata store's diff-based reindexing needs:
// removing a blob's tag must not disturb the bits other blobs still
// hold under that same tag.
func (t *Tree) ClearBit(tx kv.Tx, key string, docIdx uint32) error {
	b := tx.Bucket(t.bucket)

	v, err := t.load(b, key)
	if err != nil {
		return err
	}
	v.Clear(docIdx)
	return t.store(b, key, v)
}

// RemoveBit clears docIdx from every key in the tree, including the
// aggregate key. Keys whose bitvector never had the bit set are left
// untouched rather than extended, matching spec's "skip, don't extend"
// rule for short vectors.
func (t *Tree) RemoveBit(tx kv.Tx, docIdx uint32) error {
	b := tx.Bucket(t.bucket)

	var keys []string
	if err := b.ForEach(func(k, v []byte) error {
		keys = append(keys, string(k))
		return nil
	}); err != nil {
		return err
	}

	for _, key := range keys {
		v, err := t.load(b, key)
		if err != nil {
			return err
		}
		if !v.Test(docIdx) {
			continue
		}
		v.Clear(docIdx)
		if err := t.store(b, key, v); err != nil {
			return err
		}
	}
	return nil
}

// Load returns the bitvector stored under key, or an empty bitvector
// if key has never been indexed.
func (t *Tree) Load(tx kv.Tx, key string) (*Bitvector, error) {
	return t.load(tx.Bucket(t.bucket), key)
}

// LoadAll returns the reserved aggregate bitvector: the union of every
// key ever inserted into this tree.
func (t *Tree) LoadAll(tx kv.Tx) (*Bitvector, error) {
	return t.load(tx.Bucket(t.bucket), allKey)
}

// Clear removes every key from the tree, including the aggregate key.
func (t *Tree) Clear(tx kv.Tx) error {
	b := tx.Bucket(t.bucket)

	var keys []string
	if err := b.ForEach(func(k, v []byte) error {
		keys = append(keys, string(k))
		return nil
	}); err != nil {
		return err
	}
	for _, key := range keys {
		if err := b.Delete([]byte(key)); err != nil {
			return err
		}
	}
	return nil
}
