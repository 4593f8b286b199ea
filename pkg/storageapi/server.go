package storageapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/menmos/menmos/pkg/log"
	"github.com/menmos/menmos/pkg/protocol"
	"github.com/menmos/menmos/pkg/repository"
)

// Version is the value returned by GET /version.
const Version = "0.1.0"

// Server wires a storage node's local ConcurrentRepository to spec.md
// §6's storage-node route table — the minimum needed to make the
// amphora daemon runnable end to end, mirroring pkg/directoryapi's
// scope on the storage-node side of the wire.
type Server struct {
	repo   *repository.ConcurrentRepository
	walker repository.Walker
	tokens protocol.AuthTokenIssuer
	logger zerolog.Logger
}

// Config carries Server's construction-time dependencies.
type Config struct {
	Repository *repository.ConcurrentRepository
	// Walker enumerates every blob id currently held locally, for
	// POST /flush. Typically the same concrete repository passed to
	// repository.NewConcurrentRepository, since DiskRepository
	// implements both BlobRepository and Walker.
	Walker repository.Walker
	Tokens protocol.AuthTokenIssuer
}

// NewServer returns a Server built from cfg.
func NewServer(cfg Config) *Server {
	return &Server{
		repo:   cfg.Repository,
		walker: cfg.Walker,
		tokens: cfg.Tokens,
		logger: log.WithComponent("storageapi"),
	}
}

// Handler builds the net/http mux implementing spec.md §6's
// storage-node route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /version", s.requireAuth(s.handleVersion))
	mux.HandleFunc("POST /flush", s.requireAuth(s.handleFlush))

	mux.HandleFunc("GET /blob/{id}", s.requireAuth(s.handleGetBlob))
	mux.HandleFunc("POST /blob/{id}", s.requireAuth(s.handleCreateBlob))
	mux.HandleFunc("PUT /blob/{id}", s.requireAuth(s.handleWriteBlob))
	mux.HandleFunc("DELETE /blob/{id}", s.requireAuth(s.handleDeleteBlob))
	mux.HandleFunc("POST /blob/{id}/metadata", s.requireAuth(s.handleUpdateMeta))
	mux.HandleFunc("POST /blob/{id}/fsync", s.requireAuth(s.handleFsync))

	return mux
}

type contextKey int

const claimsContextKey contextKey = iota

func claimsFromContext(ctx context.Context) (protocol.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(protocol.Claims)
	return claims, ok
}

// requireAuth verifies the bearer token a redirected client (or a peer
// storage node pushing a moved blob) presents. Storage nodes
// have no admin concept of their own: every mutating route here only
// needs a valid identity, never a particular one.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, protocol.NewError(protocol.Forbidden, "missing bearer token", nil))
			return
		}

		claims, err := s.tokens.Verify(token)
		if err != nil {
			writeError(w, protocol.NewError(protocol.Forbidden, "invalid bearer token", err))
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next(w, r.WithContext(ctx))
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return "", false
	}
	return strings.TrimPrefix(h, prefix), true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	kind := protocol.KindOf(err)
	writeJSON(w, kind.StatusCode(), map[string]string{"error": err.Error()})
}
