// Package bitvec implements the persistent map from string key to
// growable bitset that backs every inverted-index entity in the
// directory (tags, kv pairs, key presence, parents, owners), plus the
// reserved aggregate key every Tree carries alongside its normal
// entries.
//
// It is built on github.com/RoaringBitmap/roaring/v2, the compressed
// bitmap library the retrieval pack carries for exactly this role:
// dense integer document indices. Bitvector wraps roaring.Bitmap so the
// rest of the module programs against AND/OR/NOT/length/iteration
// rather than roaring's own API.
package bitvec
