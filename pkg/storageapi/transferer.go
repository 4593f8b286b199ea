package storageapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/menmos/menmos/pkg/protocol"
	"github.com/menmos/menmos/pkg/repository"
)

// PeerTransferer implements pkg/transfer.Transferer by reading a blob
// out of the local repository and POSTing it to a peer storage node's
// own /blob/{id} route (the same route a redirected client uses),
// deleting the local copy only once the peer has accepted it.
type PeerTransferer struct {
	repo   *repository.ConcurrentRepository
	http   *http.Client
	issuer protocol.AuthTokenIssuer
	nodeID string
}

// NewPeerTransferer returns a PeerTransferer that authenticates its
// pushes to peers as nodeID, minting a fresh token from issuer per
// transfer.
func NewPeerTransferer(repo *repository.ConcurrentRepository, client *http.Client, issuer protocol.AuthTokenIssuer, nodeID string) *PeerTransferer {
	if client == nil {
		client = http.DefaultClient
	}
	return &PeerTransferer{repo: repo, http: client, issuer: issuer, nodeID: nodeID}
}

// Transfer satisfies pkg/transfer.Transferer.
func (t *PeerTransferer) Transfer(ctx context.Context, blobID, destinationURL string) error {
	rc, size, err := t.repo.Get(ctx, blobID)
	if err != nil {
		return fmt.Errorf("storageapi: read blob %q for transfer: %w", blobID, err)
	}
	defer rc.Close()

	token, err := t.issuer.Issue(t.nodeID)
	if err != nil {
		return fmt.Errorf("storageapi: issue transfer token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, destinationURL, rc)
	if err != nil {
		return fmt.Errorf("storageapi: build transfer request for %q: %w", blobID, err)
	}
	req.Header.Set(protocol.HeaderBlobSize, protocol.EncodeBlobSize(uint64(size)))
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("storageapi: push blob %q to %s: %w", blobID, destinationURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("storageapi: peer rejected blob %q with status %d", blobID, resp.StatusCode)
	}

	if err := t.repo.Delete(ctx, blobID); err != nil {
		return fmt.Errorf("storageapi: delete local copy of %q after transfer: %w", blobID, err)
	}
	return nil
}
