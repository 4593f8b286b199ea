package directoryapi

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/menmos/menmos/pkg/docid"
	"github.com/menmos/menmos/pkg/indexer"
	"github.com/menmos/menmos/pkg/kv"
	"github.com/menmos/menmos/pkg/mapping"
	"github.com/menmos/menmos/pkg/metadata"
	"github.com/menmos/menmos/pkg/protocol"
	"github.com/menmos/menmos/pkg/query"
	"github.com/menmos/menmos/pkg/routing"
	"github.com/menmos/menmos/pkg/types"
	"github.com/menmos/menmos/pkg/users"
)

// testEnv wires a full in-memory Server for handler tests, mirroring
// how cmd/menmosd will construct one against a real bbolt store.
type testEnv struct {
	srv    *Server
	mux    http.Handler
	tokens protocol.AuthTokenIssuer
	users  *users.Store
	policy *routing.Policy
}

func newTestEnv(t *testing.T, admins ...string) *testEnv {
	t.Helper()

	db := kv.NewMemStore()
	docids, err := docid.Open(db)
	require.NoError(t, err)
	metaStore := metadata.Open(db)
	mappingStore := mapping.Open(db)
	routingStore := routing.Open(db)
	userStore := users.Open(db)
	policy := routing.NewPolicy(routingStore, metaStore, docids, mappingStore)
	idx := indexer.New(docids, mappingStore, metaStore, routingStore, policy)
	queryEng := query.NewEngine(metaStore, docids)
	tokens := protocol.NewHMACIssuer([]byte("test-signing-key-0123456789abcdef"), time.Hour)

	srv := NewServer(Config{
		Indexer:    idx,
		Query:      queryEng,
		Routing:    routingStore,
		Policy:     policy,
		Users:      userStore,
		Mapping:    mappingStore,
		Metadata:   metaStore,
		Tokens:     tokens,
		RootDomain: "storage.example.com",
		AdminUsers: admins,
	})

	return &testEnv{srv: srv, mux: srv.Handler(), tokens: tokens, users: userStore, policy: policy}
}

func (e *testEnv) mustToken(t *testing.T, user string) string {
	t.Helper()
	tok, err := e.tokens.Issue(user)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(r *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, r)
	return rec
}

func (e *testEnv) registerNode(t *testing.T, token, id string, port uint16) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPut, "/node/storage", jsonBody(t, types.StorageNodeInfo{
		ID:   id,
		Port: port,
		RedirectInfo: types.RedirectInfo{
			Automatic: false,
			StaticIP:  net.ParseIP("127.0.0.1"),
		},
	}))
	rec := e.do(req, token)
	require.Equal(t, http.StatusOK, rec.Code)
}

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func TestHealth_NeedsNoAuth(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := env.do(req, "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestVersion_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/version", nil)
	rec := env.do(req, "")
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRegisterUser_RequiresAdmin(t *testing.T) {
	env := newTestEnv(t, "root")
	token := env.mustToken(t, "alice")

	req := httptest.NewRequest(http.MethodPost, "/auth/register", jsonBody(t, registerUserRequest{Username: "bob", Password: "hunter2"}))
	rec := env.do(req, token)
	require.Equal(t, http.StatusForbidden, rec.Code)

	adminToken := env.mustToken(t, "root")
	req2 := httptest.NewRequest(http.MethodPost, "/auth/register", jsonBody(t, registerUserRequest{Username: "bob", Password: "hunter2"}))
	rec2 := env.do(req2, adminToken)
	require.Equal(t, http.StatusOK, rec2.Code)
}

func TestLogin_SucceedsAfterRegister(t *testing.T) {
	env := newTestEnv(t, "root")
	adminToken := env.mustToken(t, "root")

	req := httptest.NewRequest(http.MethodPost, "/auth/register", jsonBody(t, registerUserRequest{Username: "bob", Password: "hunter2"}))
	rec := env.do(req, adminToken)
	require.Equal(t, http.StatusOK, rec.Code)

	loginReq := httptest.NewRequest(http.MethodPost, "/auth/login", jsonBody(t, loginRequest{Username: "bob", Password: "hunter2"}))
	loginRec := env.do(loginReq, "")
	require.Equal(t, http.StatusOK, loginRec.Code)
}

func TestLogin_RejectsWrongPassword(t *testing.T) {
	env := newTestEnv(t, "root")
	adminToken := env.mustToken(t, "root")
	env.do(httptest.NewRequest(http.MethodPost, "/auth/register", jsonBody(t, registerUserRequest{Username: "bob", Password: "hunter2"})), adminToken)

	loginReq := httptest.NewRequest(http.MethodPost, "/auth/login", jsonBody(t, loginRequest{Username: "bob", Password: "wrong"}))
	rec := env.do(loginReq, "")
	require.Equal(t, http.StatusForbidden, rec.Code)
}
