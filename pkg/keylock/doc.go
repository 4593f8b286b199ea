// Package keylock implements the storage node's per-blob-id lock
// table: a shared map of RW locks with lazy TTL eviction, so a blob
// under contention serializes its writers and lets its readers run
// concurrently without the process holding one mutex per blob forever.
package keylock
