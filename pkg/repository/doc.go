// Package repository provides the storage node's byte-level blob
// store: a BlobRepository abstraction, a disk-backed default
// implementation, and a ConcurrentRepository wrapper that serializes
// mutating calls per blob id and lets concurrent reads share access
// while holding their lock for the lifetime of the returned stream.
//
// Grounded in the original Rust implementation's ConcurrentRepository,
// which wraps a boxed Repository trait object behind an async RW lock
// per key, and in the teacher's pkg/volume local driver for the
// disk-backed adapter's file-per-id layout.
package repository
