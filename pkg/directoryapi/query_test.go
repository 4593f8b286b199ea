package directoryapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menmos/menmos/pkg/types"
)

func TestQuery_FindsPutBlobByTag(t *testing.T) {
	env := newTestEnv(t)
	token := env.mustToken(t, "alice")
	env.registerNode(t, token, "node-a", 8080)

	env.do(putBlobRequest(t, token, types.BlobMetaRequest{Name: "f", Tags: []string{"photo"}}, 10), token)

	queryReq := httptest.NewRequest(http.MethodPost, "/query", jsonBody(t, types.Query{Expression: "photo", Size: 10}))
	rec := env.do(queryReq, token)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp types.QueryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "f", resp.Hits[0].Meta.Name)
}

func TestQuery_EmptyExpressionMatchesEverything(t *testing.T) {
	env := newTestEnv(t)
	token := env.mustToken(t, "alice")
	env.registerNode(t, token, "node-a", 8080)

	env.do(putBlobRequest(t, token, types.BlobMetaRequest{Name: "a"}, 1), token)
	env.do(putBlobRequest(t, token, types.BlobMetaRequest{Name: "b"}, 1), token)

	queryReq := httptest.NewRequest(http.MethodPost, "/query", jsonBody(t, types.Query{Size: 10}))
	rec := env.do(queryReq, token)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp types.QueryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Count)
}

func TestQuery_MalformedExpressionReturnsBadRequest(t *testing.T) {
	env := newTestEnv(t)
	token := env.mustToken(t, "alice")

	queryReq := httptest.NewRequest(http.MethodPost, "/query", jsonBody(t, types.Query{Expression: "(", Size: 10}))
	rec := env.do(queryReq, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetadataFacets_ReturnsTagBreakdown(t *testing.T) {
	env := newTestEnv(t)
	token := env.mustToken(t, "alice")
	env.registerNode(t, token, "node-a", 8080)
	env.do(putBlobRequest(t, token, types.BlobMetaRequest{Name: "a", Tags: []string{"photo"}}, 1), token)

	req := httptest.NewRequest(http.MethodGet, "/metadata", nil)
	rec := env.do(req, token)
	require.Equal(t, http.StatusOK, rec.Code)

	var facets types.Facets
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&facets))
	assert.EqualValues(t, 1, facets.Tags["photo"])
}
