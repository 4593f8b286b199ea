// Package mapping implements the blob-id to storage-node dispatch
// table the directory consults on every redirect.
package mapping
