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

func TestRouting_SetThenGetRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	token := env.mustToken(t, "alice")

	cfg := types.RoutingConfig{Rules: []types.RoutingRule{
		{Field: "region", Value: types.StringField("us-east"), Node: "node-a"},
	}}
	setReq := httptest.NewRequest(http.MethodPut, "/routing", jsonBody(t, cfg))
	setRec := env.do(setReq, token)
	require.Equal(t, http.StatusOK, setRec.Code)

	getReq := httptest.NewRequest(http.MethodGet, "/routing", nil)
	getRec := env.do(getReq, token)
	require.Equal(t, http.StatusOK, getRec.Code)

	var got types.RoutingConfig
	require.NoError(t, json.NewDecoder(getRec.Body).Decode(&got))
	require.Len(t, got.Rules, 1)
	assert.Equal(t, "node-a", got.Rules[0].Node)
}

func TestRouting_DeleteClearsConfig(t *testing.T) {
	env := newTestEnv(t)
	token := env.mustToken(t, "alice")

	cfg := types.RoutingConfig{Rules: []types.RoutingRule{
		{Field: "region", Value: types.StringField("us-east"), Node: "node-a"},
	}}
	env.do(httptest.NewRequest(http.MethodPut, "/routing", jsonBody(t, cfg)), token)

	delRec := env.do(httptest.NewRequest(http.MethodDelete, "/routing", nil), token)
	require.Equal(t, http.StatusOK, delRec.Code)

	getRec := env.do(httptest.NewRequest(http.MethodGet, "/routing", nil), token)
	var got types.RoutingConfig
	require.NoError(t, json.NewDecoder(getRec.Body).Decode(&got))
	assert.Empty(t, got.Rules)
}

func TestRouting_SetRuleEnqueuesMoveForAlreadyPlacedBlob(t *testing.T) {
	env := newTestEnv(t)
	token := env.mustToken(t, "alice")
	env.registerNode(t, token, "node-old", 8080)

	putRec := env.do(putBlobRequest(t, token, types.BlobMetaRequest{
		Name:   "f",
		Fields: map[string]types.FieldValue{"region": types.StringField("us-east")},
	}, 1), token)
	require.Equal(t, http.StatusTemporaryRedirect, putRec.Code)

	cfg := types.RoutingConfig{Rules: []types.RoutingRule{
		{Field: "region", Value: types.StringField("us-east"), Node: "node-new"},
	}}
	rec := env.do(httptest.NewRequest(http.MethodPut, "/routing", jsonBody(t, cfg)), token)
	require.Equal(t, http.StatusOK, rec.Code)

	moves, err := env.policy.Register(types.StorageNodeInfo{ID: "node-old"})
	require.NoError(t, err)
	require.Len(t, moves.Moves, 1)
	assert.Equal(t, "node-new", moves.Moves[0].Destination)
}
