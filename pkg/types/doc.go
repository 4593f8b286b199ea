// Package types defines Menmos's domain model: the blob metadata
// envelope (BlobInfo), its tagged-union field values, storage-node
// registration records, and per-user routing configuration.
//
// These types are shared by every other package — pkg/metadata indexes
// BlobInfo's tags/fields/parents, pkg/routing stores RoutingConfig and
// MoveInfo, pkg/directoryapi decodes BlobMetaRequest off the wire — so
// this package imports nothing from the rest of the module.
package types
