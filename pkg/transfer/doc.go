// Package transfer implements the storage node's blob relocation
// queue: a bounded channel drained by a single worker, deduplicating
// in-flight blob ids, with graceful shutdown that drains the queue
// before giving up after a configurable timeout.
//
// Grounded directly in the original Rust implementation's
// TransferManager/PendingTransfers: a channel plus a guard whose
// removal runs unconditionally, translated here to a Go channel plus a
// release closure run in a deferred recover block, since Go has no
// destructor to rely on.
package transfer
