package routing

import (
	"encoding/json"
	"fmt"

	"github.com/menmos/menmos/pkg/kv"
	"github.com/menmos/menmos/pkg/types"
)

const bucketRouting = "routing"

// Store persists each user's routing rules and each storage node's
// pending move queue, in one key space.
type Store struct {
	db kv.Store
}

// Open returns a Store backed by db.
func Open(db kv.Store) *Store {
	return &Store{db: db}
}

// GetConfig returns user's RoutingConfig, or nil if user has never set
// one.
func (s *Store) GetConfig(user string) (*types.RoutingConfig, error) {
	var cfg *types.RoutingConfig
	err := s.db.View(func(tx kv.Tx) error {
		raw := tx.Bucket(bucketRouting).Get([]byte(user))
		if raw == nil {
			return nil
		}
		cfg = &types.RoutingConfig{}
		return json.Unmarshal(raw, cfg)
	})
	if err != nil {
		return nil, fmt.Errorf("routing: get config %q: %w", user, err)
	}
	return cfg, nil
}

// SetConfig replaces user's RoutingConfig wholesale.
func (s *Store) SetConfig(user string, cfg *types.RoutingConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("routing: encode config for %q: %w", user, err)
	}
	err = s.db.Update(func(tx kv.Tx) error {
		return tx.Bucket(bucketRouting).Put([]byte(user), data)
	})
	if err != nil {
		return fmt.Errorf("routing: set config %q: %w", user, err)
	}
	return nil
}

// DeleteConfig removes user's RoutingConfig.
func (s *Store) DeleteConfig(user string) error {
	err := s.db.Update(func(tx kv.Tx) error {
		return tx.Bucket(bucketRouting).Delete([]byte(user))
	})
	if err != nil {
		return fmt.Errorf("routing: delete config %q: %w", user, err)
	}
	return nil
}

// IterConfigs calls fn once per (user, config) pair currently stored,
// stopping early if fn returns an error.
func (s *Store) IterConfigs(fn func(user string, cfg *types.RoutingConfig) error) error {
	err := s.db.View(func(tx kv.Tx) error {
		return tx.Bucket(bucketRouting).ForEach(func(k, v []byte) error {
			cfg := &types.RoutingConfig{}
			if err := json.Unmarshal(v, cfg); err != nil {
				return fmt.Errorf("routing: decode config for %q: %w", string(k), err)
			}
			return fn(string(k), cfg)
		})
	})
	if err != nil {
		return fmt.Errorf("routing: iter configs: %w", err)
	}
	return nil
}

func emptyConfig() *types.RoutingConfig {
	return &types.RoutingConfig{}
}

// EnqueueMove appends move to the move queue filed under the key user
// (callers pass the source node id), unless an entry for
// the same (blob_id, destination_node_id) is already queued.
func (s *Store) EnqueueMove(user string, move types.MoveInfo) error {
	err := s.db.Update(func(tx kv.Tx) error {
		b := tx.Bucket(bucketRouting)

		cfg := emptyConfig()
		if raw := b.Get([]byte(user)); raw != nil {
			if err := json.Unmarshal(raw, cfg); err != nil {
				return fmt.Errorf("routing: decode config for %q: %w", user, err)
			}
		}

		for _, existing := range cfg.MoveQueue {
			if existing.BlobID == move.BlobID && existing.Destination == move.Destination {
				return nil
			}
		}
		cfg.MoveQueue = append(cfg.MoveQueue, move)

		data, err := json.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("routing: encode config for %q: %w", user, err)
		}
		return b.Put([]byte(user), data)
	})
	if err != nil {
		return fmt.Errorf("routing: enqueue move for %q: %w", user, err)
	}
	return nil
}

// DrainMovesFor removes and returns every move enqueued under nodeID's
// own entry — the moves a source node queued for itself to pull the
// next time it registers. Draining is destructive: a move returned
// here will not be returned again unless re-enqueued. The routing
// rules (if any) filed under the same key are left untouched; only the
// move queue is cleared.
func (s *Store) DrainMovesFor(nodeID string) ([]types.MoveInfo, error) {
	var drained []types.MoveInfo

	err := s.db.Update(func(tx kv.Tx) error {
		b := tx.Bucket(bucketRouting)

		raw := b.Get([]byte(nodeID))
		if raw == nil {
			return nil
		}

		cfg := &types.RoutingConfig{}
		if err := json.Unmarshal(raw, cfg); err != nil {
			return fmt.Errorf("routing: decode config for %q: %w", nodeID, err)
		}
		if len(cfg.MoveQueue) == 0 {
			return nil
		}

		drained = cfg.MoveQueue
		cfg.MoveQueue = nil

		data, err := json.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("routing: encode config for %q: %w", nodeID, err)
		}
		return b.Put([]byte(nodeID), data)
	})
	if err != nil {
		return nil, fmt.Errorf("routing: drain moves for %q: %w", nodeID, err)
	}
	return drained, nil
}
