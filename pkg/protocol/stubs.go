package protocol

import "context"

// TLSProvider is a non-goal extension point for terminating TLS with a
// certificate covering the wildcard redirect domain DefaultRedirectBuilder
// constructs. No implementation ships in this repo; it exists so the
// directory daemon's wiring code has a named place to plug one in,
// mirroring the teacher's pluggable-runtime-behind-an-interface pattern
// in pkg/embedded.
type TLSProvider interface {
	// Certificate returns the PEM-encoded certificate and key for the
	// given server name (a redirect subdomain or the root domain).
	Certificate(ctx context.Context, serverName string) (certPEM, keyPEM []byte, err error)
}

// DNSHelper is a non-goal extension point for registering a storage
// node's redirect subdomain with a DNS provider when the directory
// runs in HTTPS mode.
type DNSHelper interface {
	// EnsureRecord makes sure hostname resolves to ip, creating or
	// updating whatever DNS record is required.
	EnsureRecord(ctx context.Context, hostname string, ip string) error
}

// FUSEProvider is a non-goal extension point for mounting the blob
// store as a local filesystem. Not exercised by any directory or
// storage-node code path in this repo.
type FUSEProvider interface {
	// Mount exposes the blob store at mountpoint until ctx is
	// cancelled.
	Mount(ctx context.Context, mountpoint string) error
}
