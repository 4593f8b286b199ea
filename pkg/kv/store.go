package kv

import "errors"

// ErrBucketNotFound is returned when writing through a Bucket whose
// namespace a read-only transaction's view does not (yet) contain.
var ErrBucketNotFound = errors.New("kv: bucket not found")

// Store is an ordered byte-keyed tree supporting atomic per-key
// get/put/remove, prefix scans, and an explicit async flush — the
// abstract contract spec.md requires of the embedded key-value engine.
// Bucket namespaces correspond 1:1 to the dotted names in spec.md §6
// (documents.fwd, meta.tags, routing, users, ...).
type Store interface {
	// View runs fn inside a read-only transaction. Concurrent Views may
	// run in parallel with each other and with any in-flight Update.
	View(fn func(Tx) error) error

	// Update runs fn inside a read-write transaction. Updates are
	// serialized: at most one Update transaction is in flight at a
	// time, which is what lets callers build atomic read-modify-write
	// operations (BitvecTree.insert, DocumentIdStore.get_or_assign) out
	// of a single Update call.
	Update(fn func(Tx) error) error

	// Flush forces any buffered writes to stable storage. Bolt commits
	// are already fsynced, so the bbolt adapter's Flush is a no-op; it
	// exists so callers don't need to know which adapter they're using.
	Flush() error

	// Close releases the underlying database handle.
	Close() error
}

// Tx is a single read or read-write transaction over the store.
type Tx interface {
	// Bucket returns the namespace named name, creating it if this is a
	// write transaction and it does not yet exist. A read transaction
	// against a bucket that has never been written returns a Bucket
	// that behaves as empty rather than an error.
	Bucket(name string) Bucket
}

// Bucket is a single namespace within the tree: an ordered byte-keyed
// map with atomic per-key operations and prefix iteration.
type Bucket interface {
	// Get returns the value stored under key, or nil if absent. The
	// returned slice must not be retained past the enclosing
	// transaction — callers that need to keep it must copy.
	Get(key []byte) []byte

	// Put atomically replaces the value stored under key.
	Put(key, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(key []byte) error

	// ForEach walks every key in the bucket in ascending byte order,
	// stopping early if fn returns an error.
	ForEach(fn func(k, v []byte) error) error

	// ForEachPrefix walks every key with the given prefix in ascending
	// byte order, stopping early if fn returns an error.
	ForEachPrefix(prefix []byte, fn func(k, v []byte) error) error
}
