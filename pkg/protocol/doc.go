// Package protocol holds the wire-level contract shared by the
// directory and storage-node HTTP surfaces: the error Kind carried
// across the boundary, the x-blob-meta/x-blob-size header codecs, the
// bearer-token issuer interface with its HMAC-SHA256 adapter, the
// redirect-URL builder, and a handful of non-goal extension-point
// interfaces named in spec.md §1 that no code in this repo implements.
package protocol
