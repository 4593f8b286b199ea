package rebuildworker

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/menmos/menmos/pkg/log"
	"github.com/menmos/menmos/pkg/protocol"
	"github.com/menmos/menmos/pkg/repository"
)

// DirectoryClient is the narrow slice of pkg/directoryclient.Client a
// Worker needs, named here so tests can substitute a stub.
type DirectoryClient interface {
	RebuildComplete(ctx context.Context, token, nodeID string) error
}

// Worker runs a single rebuild pass for one storage node: confirm
// what it holds locally, then ack the directory so it stops waiting
// on this node.
type Worker struct {
	nodeID  string
	walker  repository.Walker
	tokens  protocol.AuthTokenIssuer
	client  DirectoryClient
	logger  zerolog.Logger
}

// New returns a Worker for nodeID.
func New(nodeID string, walker repository.Walker, tokens protocol.AuthTokenIssuer, client DirectoryClient) *Worker {
	return &Worker{
		nodeID: nodeID,
		walker: walker,
		tokens: tokens,
		client: client,
		logger: log.WithComponent("rebuildworker"),
	}
}

// Run walks every locally-held blob id, logs how many were found, and
// reports completion to the directory.
func (w *Worker) Run(ctx context.Context) error {
	count := 0
	for range w.walker.Walk(ctx) {
		count++
		if ctx.Err() != nil {
			return fmt.Errorf("rebuildworker: %q: %w", w.nodeID, ctx.Err())
		}
	}
	w.logger.Info().Str("node_id", w.nodeID).Int("blob_count", count).Msg("rebuild scan complete")

	token, err := w.tokens.Issue(w.nodeID)
	if err != nil {
		return fmt.Errorf("rebuildworker: issue token for %q: %w", w.nodeID, err)
	}

	if err := w.client.RebuildComplete(ctx, token, w.nodeID); err != nil {
		return fmt.Errorf("rebuildworker: report completion for %q: %w", w.nodeID, err)
	}
	return nil
}
