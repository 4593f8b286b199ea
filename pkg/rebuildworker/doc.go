// Package rebuildworker implements the storage node's half of a
// directory-triggered rebuild, grounded on the original amphora
// implementation's bin/amphora/src/amphora/node/rebuild.rs. The
// original walks every locally-held blob, reads its BlobMeta from a
// node-local sled cache, and re-announces each one to the directory
// before acking completion. This design keeps no node-local metadata
// cache — menmosd is the sole owner of blob metadata — so there is
// nothing for a storage node to re-announce: a rebuild here only
// needs the node to confirm what it holds and ack, so the directory
// can drop it from the set of nodes it is waiting on.
package rebuildworker
