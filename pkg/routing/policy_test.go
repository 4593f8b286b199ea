package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menmos/menmos/pkg/docid"
	"github.com/menmos/menmos/pkg/kv"
	"github.com/menmos/menmos/pkg/mapping"
	"github.com/menmos/menmos/pkg/metadata"
	"github.com/menmos/menmos/pkg/types"
)

func newPolicy(t *testing.T) (*Policy, *metadata.Store, *docid.Store, *mapping.Store) {
	t.Helper()
	db := kv.NewMemStore()
	routingStore := Open(db)
	metaStore := metadata.Open(db)
	docidStore, err := docid.Open(db)
	require.NoError(t, err)
	mappingStore := mapping.Open(db)

	return NewPolicy(routingStore, metaStore, docidStore, mappingStore), metaStore, docidStore, mappingStore
}

func TestPolicy_RegisterColdNodeRequestsRebuild(t *testing.T) {
	p, _, _, _ := newPolicy(t)

	result, err := p.Register(types.StorageNodeInfo{ID: "node-a"})
	require.NoError(t, err)
	assert.True(t, result.RebuildRequested)
}

func TestPolicy_RegisterWarmNodeDoesNotRequestRebuild(t *testing.T) {
	p, _, _, _ := newPolicy(t)

	_, err := p.Register(types.StorageNodeInfo{ID: "node-a"})
	require.NoError(t, err)

	result, err := p.Register(types.StorageNodeInfo{ID: "node-a"})
	require.NoError(t, err)
	assert.False(t, result.RebuildRequested)
}

func TestPolicy_RegisterAfterMarkAbsentRequestsRebuildAgain(t *testing.T) {
	p, _, _, _ := newPolicy(t)

	_, err := p.Register(types.StorageNodeInfo{ID: "node-a"})
	require.NoError(t, err)
	p.MarkAbsent("node-a")

	result, err := p.Register(types.StorageNodeInfo{ID: "node-a"})
	require.NoError(t, err)
	assert.True(t, result.RebuildRequested)
}

func TestPolicy_RegisterDrainsPendingMoves(t *testing.T) {
	p, _, _, _ := newPolicy(t)

	require.NoError(t, p.routing.EnqueueMove("node-a", types.MoveInfo{BlobID: "blob-1", Destination: "node-b"}))

	result, err := p.Register(types.StorageNodeInfo{ID: "node-a"})
	require.NoError(t, err)
	require.Len(t, result.Moves, 1)
	assert.Equal(t, "blob-1", result.Moves[0].BlobID)
}

func TestPolicy_PickNodeRoundRobins(t *testing.T) {
	p, _, _, _ := newPolicy(t)

	_, err := p.Register(types.StorageNodeInfo{ID: "node-a"})
	require.NoError(t, err)
	_, err = p.Register(types.StorageNodeInfo{ID: "node-b"})
	require.NoError(t, err)

	first, ok := p.PickNode()
	require.True(t, ok)
	second, ok := p.PickNode()
	require.True(t, ok)
	third, ok := p.PickNode()
	require.True(t, ok)

	assert.NotEqual(t, first, second)
	assert.Equal(t, first, third)
}

func TestPolicy_PickNodeSkipsAbsentNodes(t *testing.T) {
	p, _, _, _ := newPolicy(t)

	_, err := p.Register(types.StorageNodeInfo{ID: "node-a"})
	require.NoError(t, err)
	_, err = p.Register(types.StorageNodeInfo{ID: "node-b"})
	require.NoError(t, err)
	p.MarkAbsent("node-a")

	for i := 0; i < 3; i++ {
		id, ok := p.PickNode()
		require.True(t, ok)
		assert.Equal(t, "node-b", id)
	}
}

func TestPolicy_PickNodeWithNoNodesReturnsFalse(t *testing.T) {
	p, _, _, _ := newPolicy(t)
	_, ok := p.PickNode()
	assert.False(t, ok)
}

func TestPolicy_ListNodesReturnsEveryRegisteredNode(t *testing.T) {
	p, _, _, _ := newPolicy(t)

	_, err := p.Register(types.StorageNodeInfo{ID: "node-a", Port: 1})
	require.NoError(t, err)
	_, err = p.Register(types.StorageNodeInfo{ID: "node-b", Port: 2})
	require.NoError(t, err)

	nodes := p.ListNodes()
	ids := map[string]bool{}
	for _, n := range nodes {
		ids[n.ID] = true
	}
	assert.Equal(t, map[string]bool{"node-a": true, "node-b": true}, ids)
}

func TestPolicy_MarkAllAbsentRequestsRebuildOnNextRegister(t *testing.T) {
	p, _, _, _ := newPolicy(t)

	_, err := p.Register(types.StorageNodeInfo{ID: "node-a"})
	require.NoError(t, err)
	_, err = p.Register(types.StorageNodeInfo{ID: "node-b"})
	require.NoError(t, err)

	p.MarkAllAbsent()

	result, err := p.Register(types.StorageNodeInfo{ID: "node-a"})
	require.NoError(t, err)
	assert.True(t, result.RebuildRequested)

	result, err = p.Register(types.StorageNodeInfo{ID: "node-b"})
	require.NoError(t, err)
	assert.True(t, result.RebuildRequested)
}

func TestResolveRule_FirstMatchWins(t *testing.T) {
	cfg := &types.RoutingConfig{Rules: []types.RoutingRule{
		{Field: "region", Value: types.StringField("us-east"), Node: "node-a"},
		{Field: "region", Value: types.StringField("us-east"), Node: "node-b"},
	}}
	info := &types.BlobInfo{Fields: map[string]types.FieldValue{"region": types.StringField("us-east")}}

	node, ok := ResolveRule(cfg, info)
	require.True(t, ok)
	assert.Equal(t, "node-a", node)
}

func TestResolveRule_NoMatchReturnsFalse(t *testing.T) {
	cfg := &types.RoutingConfig{Rules: []types.RoutingRule{
		{Field: "region", Value: types.StringField("us-east"), Node: "node-a"},
	}}
	info := &types.BlobInfo{Fields: map[string]types.FieldValue{"region": types.StringField("us-west")}}

	_, ok := ResolveRule(cfg, info)
	assert.False(t, ok)
}

func TestPolicy_ApplyRuleChangeEnqueuesMoveOnSourceNode(t *testing.T) {
	p, metaStore, docidStore, mappingStore := newPolicy(t)

	idx, err := docidStore.GetOrAssign("blob-1")
	require.NoError(t, err)
	require.NoError(t, metaStore.Put(idx, &types.BlobInfo{
		Owner:  "alice",
		Fields: map[string]types.FieldValue{"region": types.StringField("us-east")},
	}))
	require.NoError(t, mappingStore.Set("blob-1", "node-old"))

	require.NoError(t, p.ApplyRuleChange("alice", "region", types.StringField("us-east"), "node-new"))

	moves, err := p.routing.DrainMovesFor("node-old")
	require.NoError(t, err)
	require.Len(t, moves, 1)
	assert.Equal(t, "blob-1", moves[0].BlobID)
	assert.Equal(t, "node-new", moves[0].Destination)
}

func TestPolicy_ApplyRuleChangeSkipsBlobsAlreadyAtTarget(t *testing.T) {
	p, metaStore, docidStore, mappingStore := newPolicy(t)

	idx, err := docidStore.GetOrAssign("blob-1")
	require.NoError(t, err)
	require.NoError(t, metaStore.Put(idx, &types.BlobInfo{
		Owner:  "alice",
		Fields: map[string]types.FieldValue{"region": types.StringField("us-east")},
	}))
	require.NoError(t, mappingStore.Set("blob-1", "node-new"))

	require.NoError(t, p.ApplyRuleChange("alice", "region", types.StringField("us-east"), "node-new"))

	moves, err := p.routing.DrainMovesFor("node-new")
	require.NoError(t, err)
	assert.Empty(t, moves)
}

func TestPolicy_ApplyRuleChangeSkipsOtherUsersBlobs(t *testing.T) {
	p, metaStore, docidStore, mappingStore := newPolicy(t)

	idx, err := docidStore.GetOrAssign("blob-1")
	require.NoError(t, err)
	require.NoError(t, metaStore.Put(idx, &types.BlobInfo{
		Owner:  "bob",
		Fields: map[string]types.FieldValue{"region": types.StringField("us-east")},
	}))
	require.NoError(t, mappingStore.Set("blob-1", "node-old"))

	require.NoError(t, p.ApplyRuleChange("alice", "region", types.StringField("us-east"), "node-new"))

	moves, err := p.routing.DrainMovesFor("node-old")
	require.NoError(t, err)
	assert.Empty(t, moves)
}
