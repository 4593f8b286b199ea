package indexer

import (
	"errors"
	"fmt"

	"github.com/menmos/menmos/pkg/docid"
	"github.com/menmos/menmos/pkg/log"
	"github.com/menmos/menmos/pkg/mapping"
	"github.com/menmos/menmos/pkg/metadata"
	"github.com/menmos/menmos/pkg/metrics"
	"github.com/menmos/menmos/pkg/routing"
	"github.com/menmos/menmos/pkg/types"
)

var (
	// ErrNoStorageAvailable is returned by PickNode when no storage
	// node is currently registered.
	ErrNoStorageAvailable = errors.New("indexer: no storage node available")

	// ErrBlobNotFound is returned by operations on a blob id that has
	// no current storage mapping or doc index.
	ErrBlobNotFound = errors.New("indexer: blob not found")

	// ErrForbidden is returned when the requesting node does not own
	// the blob it is trying to mutate.
	ErrForbidden = errors.New("indexer: requester does not own blob")
)

var indexerLog = log.WithComponent("indexer")

// Service implements the directory's blob lifecycle: node selection,
// and the put/delete/update-meta operations that keep
// DocumentIdStore, StorageMappingStore, and MetadataStore consistent
// with each other.
type Service struct {
	docids  *docid.Store
	mapping *mapping.Store
	meta    *metadata.Store
	routing *routing.Store
	policy  *routing.Policy
}

// New returns a Service wired to the given stores.
func New(docids *docid.Store, mappingStore *mapping.Store, meta *metadata.Store, routingStore *routing.Store, policy *routing.Policy) *Service {
	return &Service{docids: docids, mapping: mappingStore, meta: meta, routing: routingStore, policy: policy}
}

// PickNode chooses the storage node a new blob owned by user and
// described by req should land on: a matching routing rule wins,
// otherwise the round-robin policy assigns the next node.
func (s *Service) PickNode(user string, req *types.BlobMetaRequest) (string, error) {
	cfg, err := s.routing.GetConfig(user)
	if err != nil {
		return "", fmt.Errorf("indexer: pick_node: load routing config for %q: %w", user, err)
	}
	if cfg != nil && len(cfg.Rules) > 0 {
		probe := &types.BlobInfo{Fields: req.Fields}
		if node, ok := routing.ResolveRule(cfg, probe); ok {
			metrics.RoutingDecisionsTotal.WithLabelValues("rule").Inc()
			return node, nil
		}
	}

	node, ok := s.policy.PickNode()
	if !ok {
		return "", ErrNoStorageAvailable
	}
	metrics.RoutingDecisionsTotal.WithLabelValues("round_robin").Inc()
	return node, nil
}

// AddBlob indexes a new blob on nodeID, using a rollback-log
// transaction: each step that succeeds records its inverse, and a
// later step's failure replays every recorded inverse in reverse
// before returning the original error.
func (s *Service) AddBlob(blobID, nodeID string, info *types.BlobInfo) error {
	timer := metrics.NewTimer()
	t := newTxn()

	_, existed, err := s.docids.Lookup(blobID)
	if err != nil {
		return fmt.Errorf("indexer: add_blob: lookup %q: %w", blobID, err)
	}
	idx, err := s.docids.GetOrAssign(blobID)
	if err != nil {
		return fmt.Errorf("indexer: add_blob: assign doc index for %q: %w", blobID, err)
	}
	if !existed {
		t.record(func() error { return s.docids.Release(blobID) })
	}

	if err := s.mapping.Set(blobID, nodeID); err != nil {
		t.rollback()
		return fmt.Errorf("indexer: add_blob: map %q to %q: %w", blobID, nodeID, err)
	}
	t.record(func() error {
		_, _, err := s.mapping.Delete(blobID)
		return err
	})

	if err := s.meta.Put(idx, info); err != nil {
		t.rollback()
		return fmt.Errorf("indexer: add_blob: index %q: %w", blobID, err)
	}

	metrics.BlobsPutTotal.Inc()
	timer.ObserveDuration(metrics.BlobPutDuration)
	if !existed {
		metrics.DocumentsTotal.Inc()
	}
	return nil
}

// DeleteBlob removes a blob, verifying that requesterNodeID currently
// owns it. The index is cleared first so concurrent queries never
// observe a dangling bit, then the doc index is freed, then the
// storage mapping is detached.
func (s *Service) DeleteBlob(blobID, requesterNodeID string) error {
	nodeID, ok, err := s.mapping.Get(blobID)
	if err != nil {
		return fmt.Errorf("indexer: delete_blob: lookup mapping for %q: %w", blobID, err)
	}
	if !ok {
		return ErrBlobNotFound
	}
	if nodeID != requesterNodeID {
		return ErrForbidden
	}

	idx, ok, err := s.docids.Lookup(blobID)
	if err != nil {
		return fmt.Errorf("indexer: delete_blob: lookup doc index for %q: %w", blobID, err)
	}
	if !ok {
		return ErrBlobNotFound
	}

	if err := s.meta.Delete(idx); err != nil {
		return fmt.Errorf("indexer: delete_blob: deindex %q: %w", blobID, err)
	}
	if err := s.docids.Release(blobID); err != nil {
		return fmt.Errorf("indexer: delete_blob: release doc index for %q: %w", blobID, err)
	}
	if _, _, err := s.mapping.Delete(blobID); err != nil {
		return fmt.Errorf("indexer: delete_blob: unmap %q: %w", blobID, err)
	}

	metrics.BlobsDeletedTotal.Inc()
	metrics.DocumentsTotal.Dec()
	return nil
}

// UpdateMeta re-indexes blobID under newInfo. MetadataStore.Put diffs
// against the previous BlobInfo itself, so this call is the entire
// atomic commit — there is nothing to roll back.
func (s *Service) UpdateMeta(blobID string, newInfo *types.BlobInfo) error {
	timer := metrics.NewTimer()
	idx, ok, err := s.docids.Lookup(blobID)
	if err != nil {
		return fmt.Errorf("indexer: update_meta: lookup doc index for %q: %w", blobID, err)
	}
	if !ok {
		return ErrBlobNotFound
	}
	if err := s.meta.Put(idx, newInfo); err != nil {
		return fmt.Errorf("indexer: update_meta: index %q: %w", blobID, err)
	}
	timer.ObserveDuration(metrics.BlobUpdateMetaDuration)
	return nil
}

// BlobSize returns blobID's currently indexed size, so a metadata
// update can preserve it without the caller re-deriving it.
func (s *Service) BlobSize(blobID string) (uint64, error) {
	idx, ok, err := s.docids.Lookup(blobID)
	if err != nil {
		return 0, fmt.Errorf("indexer: blob_size: lookup doc index for %q: %w", blobID, err)
	}
	if !ok {
		return 0, ErrBlobNotFound
	}
	info, err := s.meta.Get(idx)
	if err != nil {
		return 0, fmt.Errorf("indexer: blob_size: load metadata for %q: %w", blobID, err)
	}
	return info.Size, nil
}

// txn is a rollback log: each recorded undo runs in reverse order when
// rollback is invoked. Rollback failures are logged but never mask the
// original error that triggered the rollback.
type txn struct {
	undos []func() error
}

func newTxn() *txn { return &txn{} }

func (t *txn) record(undo func() error) {
	t.undos = append(t.undos, undo)
}

func (t *txn) rollback() {
	for i := len(t.undos) - 1; i >= 0; i-- {
		if err := t.undos[i](); err != nil {
			indexerLog.Error().Err(err).Msg("rollback step failed")
		}
	}
}
