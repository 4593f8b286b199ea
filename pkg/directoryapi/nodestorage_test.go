package directoryapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menmos/menmos/pkg/routing"
	"github.com/menmos/menmos/pkg/types"
)

func TestListNodes_ReturnsEveryRegisteredNode(t *testing.T) {
	env := newTestEnv(t)
	token := env.mustToken(t, "alice")
	env.registerNode(t, token, "node-a", 1)
	env.registerNode(t, token, "node-b", 2)

	req := httptest.NewRequest(http.MethodGet, "/node/storage", nil)
	rec := env.do(req, token)
	require.Equal(t, http.StatusOK, rec.Code)

	var nodes []types.StorageNodeInfo
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&nodes))
	assert.Len(t, nodes, 2)
}

func TestRegisterNode_ColdRegistrationRequestsRebuild(t *testing.T) {
	env := newTestEnv(t)
	token := env.mustToken(t, "alice")

	req := httptest.NewRequest(http.MethodPut, "/node/storage", jsonBody(t, types.StorageNodeInfo{ID: "node-a"}))
	rec := env.do(req, token)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp routing.RegisterResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.RebuildRequested)
}

func TestRebuildTrigger_RequiresAdmin(t *testing.T) {
	env := newTestEnv(t, "root")
	aliceToken := env.mustToken(t, "alice")

	rec := env.do(httptest.NewRequest(http.MethodPost, "/rebuild", nil), aliceToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	adminToken := env.mustToken(t, "root")
	env.registerNode(t, aliceToken, "node-a", 1)

	rec2 := env.do(httptest.NewRequest(http.MethodPost, "/rebuild", nil), adminToken)
	require.Equal(t, http.StatusOK, rec2.Code)

	result, err := env.policy.Register(types.StorageNodeInfo{ID: "node-a"})
	require.NoError(t, err)
	assert.True(t, result.RebuildRequested)
}

func TestRebuildAck_RejectsMismatchedIdentity(t *testing.T) {
	env := newTestEnv(t)
	aliceToken := env.mustToken(t, "alice")

	rec := env.do(httptest.NewRequest(http.MethodDelete, "/rebuild/node-a", nil), aliceToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRebuildAck_AcceptsMatchingIdentity(t *testing.T) {
	env := newTestEnv(t)
	nodeToken := env.mustToken(t, "node-a")

	rec := env.do(httptest.NewRequest(http.MethodDelete, "/rebuild/node-a", nil), nodeToken)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFlush_ClearsMetadataAndMapping(t *testing.T) {
	env := newTestEnv(t, "root")
	token := env.mustToken(t, "alice")
	adminToken := env.mustToken(t, "root")
	env.registerNode(t, token, "node-a", 1)

	putRec := env.do(putBlobRequest(t, token, types.BlobMetaRequest{Name: "f"}, 1), token)
	require.Equal(t, http.StatusTemporaryRedirect, putRec.Code)

	rec := env.do(httptest.NewRequest(http.MethodPost, "/flush", nil), adminToken)
	require.Equal(t, http.StatusOK, rec.Code)

	queryReq := httptest.NewRequest(http.MethodPost, "/query", jsonBody(t, types.Query{Size: 10}))
	queryRec := env.do(queryReq, token)
	var resp types.QueryResponse
	require.NoError(t, json.NewDecoder(queryRec.Body).Decode(&resp))
	assert.Equal(t, 0, resp.Count)
}
