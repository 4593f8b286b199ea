// Package metadata implements the directory's inverted index: the
// forward BlobInfo map keyed by document index, and the five
// BitvecTree dimensions (tags, kv pairs, key presence, parents,
// owners) the query evaluator reads from.
package metadata
