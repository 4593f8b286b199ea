package storageapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/menmos/menmos/pkg/keylock"
	"github.com/menmos/menmos/pkg/protocol"
	"github.com/menmos/menmos/pkg/repository"
)

// testEnv wires a full Server over a disk-backed repository rooted at
// a temp dir, mirroring how cmd/amphora will construct one.
type testEnv struct {
	srv    *Server
	mux    http.Handler
	tokens protocol.AuthTokenIssuer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	disk, err := repository.NewDiskRepository(t.TempDir())
	require.NoError(t, err)
	locks := keylock.New(time.Hour, 1000)
	repo := repository.NewConcurrentRepository(disk, locks)
	tokens := protocol.NewHMACIssuer([]byte("test-signing-key-0123456789abcdef"), time.Hour)

	srv := NewServer(Config{Repository: repo, Walker: disk, Tokens: tokens})
	return &testEnv{srv: srv, mux: srv.Handler(), tokens: tokens}
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

func TestHealth_NeedsNoAuth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/health", nil), "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestVersion_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/version", nil), "")
	require.Equal(t, http.StatusForbidden, rec.Code)
}
