// Package directoryclient is the storage node's half of the
// directory↔storage-node wire contract: the handful of calls amphora
// makes to menmosd on startup and during a rebuild, grounded on the
// teacher's pkg/client's "one method per RPC, context timeout, wrapped
// error" shape, translated from gRPC to plain HTTP+JSON since spec.md's
// directory surface is JSON+redirect, not gRPC.
package directoryclient
