package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menmos/menmos/pkg/kv"
	"github.com/menmos/menmos/pkg/types"
)

func newStore() *Store {
	return Open(kv.NewMemStore())
}

func TestStore_PutThenGetRoundTrips(t *testing.T) {
	s := newStore()
	info := &types.BlobInfo{
		Name:  "myfile",
		Type:  types.BlobTypeFile,
		Owner: "alice",
		Tags:  []string{"x", "y"},
	}
	require.NoError(t, s.Put(0, info))

	got, err := s.Get(0)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "myfile", got.Name)
	assert.ElementsMatch(t, []string{"x", "y"}, got.Tags)
}

func TestStore_GetUnknownDocIdxIsNil(t *testing.T) {
	s := newStore()
	got, err := s.Get(42)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_PutIndexesTags(t *testing.T) {
	s := newStore()
	require.NoError(t, s.Put(0, &types.BlobInfo{Owner: "alice", Tags: []string{"x"}}))
	require.NoError(t, s.Put(1, &types.BlobInfo{Owner: "alice", Tags: []string{"x", "y"}}))

	x, err := s.LoadTag("x")
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1}, x.ToArray())

	y, err := s.LoadTag("y")
	require.NoError(t, err)
	assert.Equal(t, []uint32{1}, y.ToArray())
}

func TestStore_PutReindexesOnTagRemoval(t *testing.T) {
	s := newStore()
	require.NoError(t, s.Put(0, &types.BlobInfo{Owner: "alice", Tags: []string{"x", "y"}}))
	require.NoError(t, s.Put(0, &types.BlobInfo{Owner: "alice", Tags: []string{"y"}}))

	x, err := s.LoadTag("x")
	require.NoError(t, err)
	assert.True(t, x.IsEmpty())

	y, err := s.LoadTag("y")
	require.NoError(t, err)
	assert.True(t, y.Test(0))
}

func TestStore_PutIndexesKVAndKeyPresence(t *testing.T) {
	s := newStore()
	require.NoError(t, s.Put(0, &types.BlobInfo{
		Owner:  "alice",
		Fields: map[string]types.FieldValue{"region": types.StringField("us-east")},
	}))

	byRegion, err := s.LoadKV("region", types.StringField("us-east"))
	require.NoError(t, err)
	assert.True(t, byRegion.Test(0))

	present, err := s.LoadKey("region")
	require.NoError(t, err)
	assert.True(t, present.Test(0))

	otherValue, err := s.LoadKV("region", types.StringField("us-west"))
	require.NoError(t, err)
	assert.False(t, otherValue.Test(0))
}

func TestStore_PutReindexesKVOnValueChange(t *testing.T) {
	s := newStore()
	require.NoError(t, s.Put(0, &types.BlobInfo{
		Owner:  "alice",
		Fields: map[string]types.FieldValue{"region": types.StringField("us-east")},
	}))
	require.NoError(t, s.Put(0, &types.BlobInfo{
		Owner:  "alice",
		Fields: map[string]types.FieldValue{"region": types.StringField("us-west")},
	}))

	east, err := s.LoadKV("region", types.StringField("us-east"))
	require.NoError(t, err)
	assert.False(t, east.Test(0))

	west, err := s.LoadKV("region", types.StringField("us-west"))
	require.NoError(t, err)
	assert.True(t, west.Test(0))

	present, err := s.LoadKey("region")
	require.NoError(t, err)
	assert.True(t, present.Test(0), "key presence must survive a value change")
}

func TestStore_PutIndexesParentsAndOwner(t *testing.T) {
	s := newStore()
	require.NoError(t, s.Put(0, &types.BlobInfo{Owner: "alice", Parents: []string{"dir-1"}}))

	children, err := s.LoadChildren("dir-1")
	require.NoError(t, err)
	assert.True(t, children.Test(0))

	owned, err := s.LoadOwner("alice")
	require.NoError(t, err)
	assert.True(t, owned.Test(0))
}

func TestStore_PutReindexesOwnerOnChange(t *testing.T) {
	s := newStore()
	require.NoError(t, s.Put(0, &types.BlobInfo{Owner: "alice"}))
	require.NoError(t, s.Put(0, &types.BlobInfo{Owner: "bob"}))

	alice, err := s.LoadOwner("alice")
	require.NoError(t, err)
	assert.False(t, alice.Test(0))

	bob, err := s.LoadOwner("bob")
	require.NoError(t, err)
	assert.True(t, bob.Test(0))
}

func TestStore_DeleteClearsEveryDimensionAndForwardEntry(t *testing.T) {
	s := newStore()
	require.NoError(t, s.Put(0, &types.BlobInfo{
		Owner:   "alice",
		Tags:    []string{"x"},
		Parents: []string{"dir-1"},
		Fields:  map[string]types.FieldValue{"region": types.StringField("us-east")},
	}))

	require.NoError(t, s.Delete(0))

	got, err := s.Get(0)
	require.NoError(t, err)
	assert.Nil(t, got)

	x, err := s.LoadTag("x")
	require.NoError(t, err)
	assert.False(t, x.Test(0))

	owned, err := s.LoadOwner("alice")
	require.NoError(t, err)
	assert.False(t, owned.Test(0))

	all, err := s.LoadAll()
	require.NoError(t, err)
	assert.False(t, all.Test(0))
}

func TestStore_DeleteDoesNotAffectOtherDocuments(t *testing.T) {
	s := newStore()
	require.NoError(t, s.Put(0, &types.BlobInfo{Owner: "alice", Tags: []string{"x"}}))
	require.NoError(t, s.Put(1, &types.BlobInfo{Owner: "alice", Tags: []string{"x"}}))

	require.NoError(t, s.Delete(0))

	x, err := s.LoadTag("x")
	require.NoError(t, err)
	assert.Equal(t, []uint32{1}, x.ToArray())
}

func TestStore_LoadAllUnionsEveryDimensionExceptParents(t *testing.T) {
	s := newStore()
	require.NoError(t, s.Put(0, &types.BlobInfo{Owner: "alice", Tags: []string{"x"}}))
	require.NoError(t, s.Put(1, &types.BlobInfo{
		Owner:  "bob",
		Fields: map[string]types.FieldValue{"region": types.StringField("us-east")},
	}))

	all, err := s.LoadAll()
	require.NoError(t, err)
	assert.True(t, all.Test(0))
	assert.True(t, all.Test(1))
	assert.Equal(t, uint64(2), all.Len())
}

func TestStore_ListTagsOmitsZeroCounts(t *testing.T) {
	s := newStore()
	require.NoError(t, s.Put(0, &types.BlobInfo{Owner: "alice", Tags: []string{"x"}}))
	require.NoError(t, s.Put(0, &types.BlobInfo{Owner: "alice", Tags: []string{"y"}}))

	counts, err := s.ListTags(nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]uint64{"y": 1}, counts)
}

func TestStore_ListTagsRespectsMask(t *testing.T) {
	s := newStore()
	require.NoError(t, s.Put(0, &types.BlobInfo{Owner: "alice", Tags: []string{"x"}}))
	require.NoError(t, s.Put(1, &types.BlobInfo{Owner: "alice", Tags: []string{"x"}}))

	onlyFirst, err := s.LoadOwner("alice")
	require.NoError(t, err)
	onlyFirst.Clear(1)

	counts, err := s.ListTags(onlyFirst)
	require.NoError(t, err)
	assert.Equal(t, map[string]uint64{"x": 1}, counts)
}

func TestStore_ListFieldsGroupsByFieldThenValue(t *testing.T) {
	s := newStore()
	require.NoError(t, s.Put(0, &types.BlobInfo{
		Owner:  "alice",
		Fields: map[string]types.FieldValue{"region": types.StringField("us-east")},
	}))
	require.NoError(t, s.Put(1, &types.BlobInfo{
		Owner:  "alice",
		Fields: map[string]types.FieldValue{"region": types.StringField("us-west")},
	}))
	require.NoError(t, s.Put(2, &types.BlobInfo{
		Owner:  "alice",
		Fields: map[string]types.FieldValue{"priority": types.IntField(3)},
	}))

	fields, err := s.ListFields("", nil)
	require.NoError(t, err)
	require.Contains(t, fields, "region")
	assert.Equal(t, uint64(1), fields["region"]["us-east"])
	assert.Equal(t, uint64(1), fields["region"]["us-west"])
	require.Contains(t, fields, "priority")
	assert.Equal(t, uint64(1), fields["priority"]["3"])
}

func TestStore_ListFieldsFiltersByKey(t *testing.T) {
	s := newStore()
	require.NoError(t, s.Put(0, &types.BlobInfo{
		Owner:  "alice",
		Fields: map[string]types.FieldValue{"region": types.StringField("us-east")},
	}))
	require.NoError(t, s.Put(1, &types.BlobInfo{
		Owner:  "alice",
		Fields: map[string]types.FieldValue{"priority": types.IntField(1)},
	}))

	fields, err := s.ListFields("region", nil)
	require.NoError(t, err)
	assert.Contains(t, fields, "region")
	assert.NotContains(t, fields, "priority")
}

func TestStore_Clear(t *testing.T) {
	s := newStore()
	require.NoError(t, s.Put(0, &types.BlobInfo{Owner: "alice", Tags: []string{"x"}}))
	require.NoError(t, s.Clear())

	got, err := s.Get(0)
	require.NoError(t, err)
	assert.Nil(t, got)

	x, err := s.LoadTag("x")
	require.NoError(t, err)
	assert.True(t, x.IsEmpty())

	all, err := s.LoadAll()
	require.NoError(t, err)
	assert.True(t, all.IsEmpty())
}

func TestStore_RoundTripPreservesBoolAndIntFields(t *testing.T) {
	s := newStore()
	require.NoError(t, s.Put(0, &types.BlobInfo{
		Owner: "alice",
		Fields: map[string]types.FieldValue{
			"archived": types.BoolField(true),
			"priority": types.IntField(-7),
		},
	}))

	got, err := s.Get(0)
	require.NoError(t, err)
	assert.True(t, got.Fields["archived"].Bool)
	assert.Equal(t, int64(-7), got.Fields["priority"].Int)
}
