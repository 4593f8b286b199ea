// Package kv defines the ordered byte-keyed tree Menmos's directory and
// storage daemons use as their embedded key-value engine, plus two
// implementations: BoltStore (bbolt-backed, what the daemons actually
// run against) and MemStore (an in-memory map, used by the rest of the
// module's tests).
//
// Every other store-backed package (pkg/bitvec, pkg/docid,
// pkg/metadata, pkg/mapping, pkg/routing, pkg/users) is written against
// the Store interface, not against bbolt directly, so they can run
// their tests against MemStore without touching disk.
package kv
