// Package routing implements the directory's per-user routing rules
// and per-node pending move queue (Store), plus the storage-node
// lifecycle and routing-rule-change bookkeeping built on top of it
// (Policy): round-robin node selection, registration/rebuild
// tracking, and affected-blob recomputation when a rule is deleted or
// retargeted.
//
// Store's key space is overloaded: a key may name a user (routing
// rules a blob's owner configured) or a storage node (the move queue
// that node pulls from at its next registration) — the same
// RoutingConfig shape serves both, with whichever half is unused left
// empty.
package routing
