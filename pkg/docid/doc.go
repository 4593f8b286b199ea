// Package docid implements the bijective mapping between a blob's
// string ID and the dense uint32 document index the inverted index
// (pkg/bitvec) and query evaluator operate on.
//
// Document indices are created in add_blob and reassigned only after
// delete_blob: between those calls the index is stable for the blob's
// lifetime. Deleted indices are recycled LIFO before the monotonic
// counter advances, so a directory that churns blobs at a steady state
// keeps a dense, low index space instead of growing without bound.
package docid
