// Package indexer implements the directory's blob lifecycle: node
// selection for new blobs, and the put/delete/update-meta operations
// that keep DocumentIdStore, StorageMappingStore, and MetadataStore
// consistent with each other. add_blob commits its three steps via a
// small rollback log rather than a single key-value transaction, since
// a step may need to fail independently of the others (a node pick
// made before any storage is reachable, for instance).
package indexer
