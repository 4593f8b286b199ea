package routing

import (
	"sync"
	"time"

	"github.com/menmos/menmos/pkg/docid"
	"github.com/menmos/menmos/pkg/mapping"
	"github.com/menmos/menmos/pkg/metadata"
	"github.com/menmos/menmos/pkg/metrics"
	"github.com/menmos/menmos/pkg/types"
)

// nodeState is the directory's soft-state view of a registered storage
// node: never persisted, rebuilt entirely from registrations after a
// restart.
type nodeState struct {
	info     types.StorageNodeInfo
	lastSeen time.Time
	present  bool
}

// RegisterResult is what the directory owes a storage node in reply to
// its registration: whether it must run a rebuild pass over the blobs
// it holds, and the moves it should now pull.
type RegisterResult struct {
	RebuildRequested bool             `json:"rebuild_requested"`
	Moves            []types.MoveInfo `json:"moves"`
}

// Policy is the directory's node-lifecycle and routing-rule engine
// (component I): round-robin node selection for new blobs, node
// registration bookkeeping, and affected-blob recomputation when a
// user's routing rules change.
type Policy struct {
	mu         sync.Mutex
	nodes      map[string]*nodeState
	roundRobin []string
	rrNext     int

	routing  *Store
	meta     *metadata.Store
	docids   *docid.Store
	mappings *mapping.Store
}

// NewPolicy returns a Policy wired to the directory's routing,
// metadata, document-id, and storage-mapping stores.
func NewPolicy(routing *Store, meta *metadata.Store, docids *docid.Store, mappings *mapping.Store) *Policy {
	return &Policy{
		nodes:    make(map[string]*nodeState),
		routing:  routing,
		meta:     meta,
		docids:   docids,
		mappings: mappings,
	}
}

// Register records (or refreshes) info's registration and drains its
// pending moves. A node seen for the first time, or re-registering
// after having gone absent, gets RebuildRequested=true. The storage
// node answers with a rebuild pass that walks its local blobs and
// acks; no blob metadata is re-sent to the directory.
func (p *Policy) Register(info types.StorageNodeInfo) (*RegisterResult, error) {
	p.mu.Lock()

	st, known := p.nodes[info.ID]
	rebuild := !known || !st.present
	if !known {
		st = &nodeState{}
		p.nodes[info.ID] = st
		p.roundRobin = append(p.roundRobin, info.ID)
	}
	st.info = info
	st.lastSeen = time.Now()
	st.present = true

	p.reportStorageNodeGaugeLocked()
	p.mu.Unlock()

	if rebuild {
		metrics.RebuildsTriggeredTotal.Inc()
	}

	moves, err := p.routing.DrainMovesFor(info.ID)
	if err != nil {
		return nil, err
	}
	if len(moves) > 0 {
		metrics.PendingMovesTotal.Sub(float64(len(moves)))
	}

	return &RegisterResult{RebuildRequested: rebuild, Moves: moves}, nil
}

// presentCountLocked counts nodes currently marked present. Callers
// must hold p.mu.
func (p *Policy) presentCountLocked() int {
	n := 0
	for _, st := range p.nodes {
		if st.present {
			n++
		}
	}
	return n
}

// reportStorageNodeGaugeLocked refreshes StorageNodesTotal's present
// and absent series from the current node map. Callers must hold p.mu.
func (p *Policy) reportStorageNodeGaugeLocked() {
	present := p.presentCountLocked()
	metrics.StorageNodesTotal.WithLabelValues("true").Set(float64(present))
	metrics.StorageNodesTotal.WithLabelValues("false").Set(float64(len(p.nodes) - present))
}

// MarkAbsent flags nodeID as no longer present, so its next
// registration is treated as cold (RebuildRequested=true). It stays in
// the round-robin list; PickNode skips absent nodes.
func (p *Policy) MarkAbsent(nodeID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if st, ok := p.nodes[nodeID]; ok {
		st.present = false
		p.reportStorageNodeGaugeLocked()
	}
}

// PickNode returns the next present node in round-robin order, and
// false if no node is currently present.
func (p *Policy) PickNode() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.roundRobin)
	if n == 0 {
		return "", false
	}

	for i := 0; i < n; i++ {
		idx := (p.rrNext + i) % n
		id := p.roundRobin[idx]
		if st, ok := p.nodes[id]; ok && st.present {
			p.rrNext = (idx + 1) % n
			return id, true
		}
	}
	return "", false
}

// NodeInfo returns the last registered StorageNodeInfo for nodeID, and
// false if the node is unknown.
func (p *Policy) NodeInfo(nodeID string) (types.StorageNodeInfo, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.nodes[nodeID]
	if !ok {
		return types.StorageNodeInfo{}, false
	}
	return st.info, true
}

// MarkAllAbsent flags every known node as absent, so each one's next
// registration is treated as cold and gets RebuildRequested=true.
// Used when an administrator requests a directory-wide rebuild.
func (p *Policy) MarkAllAbsent() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, st := range p.nodes {
		st.present = false
	}
	p.reportStorageNodeGaugeLocked()
}

// ListNodes returns a snapshot of every node's last registered
// StorageNodeInfo, present or not.
func (p *Policy) ListNodes() []types.StorageNodeInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	nodes := make([]types.StorageNodeInfo, 0, len(p.nodes))
	for _, st := range p.nodes {
		nodes = append(nodes, st.info)
	}
	return nodes
}

// ResolveRule evaluates user's routing rules, in order, against info,
// returning the first matching rule's target node.
func ResolveRule(cfg *types.RoutingConfig, info *types.BlobInfo) (string, bool) {
	if cfg == nil {
		return "", false
	}
	for _, rule := range cfg.Rules {
		v, ok := info.Fields[rule.Field]
		if ok && v.Equal(rule.Value) {
			return rule.Node, true
		}
	}
	return "", false
}

// ApplyRuleChange recomputes which blobs owned by user and matching
// field=value are currently assigned to a node other than target, and
// enqueues a MoveInfo on each one's current (source) node so the move
// is pulled the next time that node registers.
func (p *Policy) ApplyRuleChange(user, field string, value types.FieldValue, target string) error {
	byValue, err := p.meta.LoadKV(field, value)
	if err != nil {
		return err
	}
	byOwner, err := p.meta.LoadOwner(user)
	if err != nil {
		return err
	}

	affected := byValue.And(byOwner)
	for _, docIdx := range affected.ToArray() {
		blobID, ok, err := p.docids.Resolve(docIdx)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		currentNode, ok, err := p.mappings.Get(blobID)
		if err != nil {
			return err
		}
		if !ok || currentNode == target {
			continue
		}

		move := types.MoveInfo{BlobID: blobID, Owner: user, Destination: target}
		if err := p.routing.EnqueueMove(currentNode, move); err != nil {
			return err
		}
		metrics.PendingMovesTotal.Inc()
	}
	return nil
}
