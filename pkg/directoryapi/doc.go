// Package directoryapi implements the directory's HTTP surface: the
// net/http mux and handlers described by spec.md §6, sitting on top of
// pkg/indexer, pkg/query, pkg/routing, pkg/users, and pkg/protocol.
package directoryapi
