package docid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menmos/menmos/pkg/kv"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(kv.NewMemStore())
	require.NoError(t, err)
	return s
}

func TestStore_GetOrAssignIsStableForSameBlob(t *testing.T) {
	s := newStore(t)

	first, err := s.GetOrAssign("blob-1")
	require.NoError(t, err)

	second, err := s.GetOrAssign("blob-1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestStore_GetOrAssignAssignsDistinctIndices(t *testing.T) {
	s := newStore(t)

	a, err := s.GetOrAssign("blob-a")
	require.NoError(t, err)
	b, err := s.GetOrAssign("blob-b")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestStore_LookupAndResolveAreInverses(t *testing.T) {
	s := newStore(t)

	idx, err := s.GetOrAssign("blob-1")
	require.NoError(t, err)

	gotIdx, ok, err := s.Lookup("blob-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, idx, gotIdx)

	gotID, ok, err := s.Resolve(idx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "blob-1", gotID)
}

func TestStore_LookupUnknownBlobIsFalse(t *testing.T) {
	s := newStore(t)

	_, ok, err := s.Lookup("never-seen")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_ReleaseRecyclesIndexBeforeCounterAdvances(t *testing.T) {
	s := newStore(t)

	a, err := s.GetOrAssign("blob-a")
	require.NoError(t, err)
	b, err := s.GetOrAssign("blob-b")
	require.NoError(t, err)
	require.NoError(t, s.Release("blob-b"))

	c, err := s.GetOrAssign("blob-c")
	require.NoError(t, err)

	assert.Equal(t, b, c, "recycled index must be reused before the counter advances")
	assert.NotEqual(t, a, c)
}

func TestStore_RecycleStackIsLIFO(t *testing.T) {
	s := newStore(t)

	_, err := s.GetOrAssign("blob-a")
	require.NoError(t, err)
	idxB, err := s.GetOrAssign("blob-b")
	require.NoError(t, err)
	idxC, err := s.GetOrAssign("blob-c")
	require.NoError(t, err)

	require.NoError(t, s.Release("blob-b"))
	require.NoError(t, s.Release("blob-c"))

	firstReused, err := s.GetOrAssign("blob-d")
	require.NoError(t, err)
	assert.Equal(t, idxC, firstReused)

	secondReused, err := s.GetOrAssign("blob-e")
	require.NoError(t, err)
	assert.Equal(t, idxB, secondReused)
}

func TestStore_ReleaseUnknownBlobIsNoop(t *testing.T) {
	s := newStore(t)
	assert.NoError(t, s.Release("never-assigned"))
}

func TestStore_ResolveAfterReleaseIsFalse(t *testing.T) {
	s := newStore(t)

	idx, err := s.GetOrAssign("blob-1")
	require.NoError(t, err)
	require.NoError(t, s.Release("blob-1"))

	_, ok, err := s.Resolve(idx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_ReopenRestoresCounterAndRecycleStack(t *testing.T) {
	db := kv.NewMemStore()
	s, err := Open(db)
	require.NoError(t, err)

	a, err := s.GetOrAssign("blob-a")
	require.NoError(t, err)
	_, err = s.GetOrAssign("blob-b")
	require.NoError(t, err)
	idxC, err := s.GetOrAssign("blob-c")
	require.NoError(t, err)
	require.NoError(t, s.Release("blob-c"))

	reopened, err := Open(db)
	require.NoError(t, err)

	reused, err := reopened.GetOrAssign("blob-d")
	require.NoError(t, err)
	assert.Equal(t, idxC, reused)

	fresh, err := reopened.GetOrAssign("blob-e")
	require.NoError(t, err)
	assert.NotEqual(t, a, fresh)
}
