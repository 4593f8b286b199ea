// Package storageapi implements the storage node's HTTP surface
// (spec.md §6 "HTTP surface (storage node)"): the thin net/http layer
// that gives a client direct byte-level access to blobs once the
// directory has redirected it to the node that holds them.
package storageapi
