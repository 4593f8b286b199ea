package directoryapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/menmos/menmos/pkg/indexer"
	"github.com/menmos/menmos/pkg/log"
	"github.com/menmos/menmos/pkg/mapping"
	"github.com/menmos/menmos/pkg/metadata"
	"github.com/menmos/menmos/pkg/protocol"
	"github.com/menmos/menmos/pkg/query"
	"github.com/menmos/menmos/pkg/routing"
	"github.com/menmos/menmos/pkg/users"
)

// Version is the value returned by GET /version.
const Version = "0.1.0"

// Server wires the directory's in-process services to spec.md §6's
// HTTP route table, the minimum needed to make the directory daemon
// runnable end to end — not a hardened HTTP framework.
type Server struct {
	indexer    *indexer.Service
	queryEng   *query.Engine
	routingSt  *routing.Store
	policy     *routing.Policy
	userStore  *users.Store
	mapping    *mapping.Store
	meta       *metadata.Store
	tokens     protocol.AuthTokenIssuer
	redirects  protocol.RedirectURLBuilder
	rootDomain string
	useTLS     bool
	admins     map[string]bool
	logger     zerolog.Logger
}

// Config carries Server's construction-time dependencies.
type Config struct {
	Indexer    *indexer.Service
	Query      *query.Engine
	Routing    *routing.Store
	Policy     *routing.Policy
	Users      *users.Store
	Mapping    *mapping.Store
	Metadata   *metadata.Store
	Tokens     protocol.AuthTokenIssuer
	Redirects  protocol.RedirectURLBuilder
	RootDomain string
	UseTLS     bool
	AdminUsers []string
}

// NewServer returns a Server built from cfg.
func NewServer(cfg Config) *Server {
	admins := make(map[string]bool, len(cfg.AdminUsers))
	for _, u := range cfg.AdminUsers {
		admins[u] = true
	}

	redirects := cfg.Redirects
	if redirects == nil {
		redirects = protocol.DefaultRedirectBuilder{}
	}

	return &Server{
		indexer:    cfg.Indexer,
		queryEng:   cfg.Query,
		routingSt:  cfg.Routing,
		policy:     cfg.Policy,
		userStore:  cfg.Users,
		mapping:    cfg.Mapping,
		meta:       cfg.Metadata,
		tokens:     cfg.Tokens,
		redirects:  redirects,
		rootDomain: cfg.RootDomain,
		useTLS:     cfg.UseTLS,
		admins:     admins,
		logger:     log.WithComponent("directoryapi"),
	}
}

// Handler builds the net/http mux implementing spec.md §6's route
// table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /version", s.requireAuth(s.handleVersion))

	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/register", s.requireAdmin(s.handleRegisterUser))

	mux.HandleFunc("POST /blob", s.requireAuth(s.handlePutBlob))
	mux.HandleFunc("GET /blob/{id}", s.requireAuth(s.handleGetBlob))
	mux.HandleFunc("PUT /blob/{id}", s.requireAuth(s.handleWriteBlob))
	mux.HandleFunc("DELETE /blob/{id}", s.requireAuth(s.handleDeleteBlob))
	mux.HandleFunc("POST /blob/{id}", s.requireAuth(s.handleUpdateMeta))
	mux.HandleFunc("POST /blob/{id}/fsync", s.requireAuth(s.handleFsync))

	mux.HandleFunc("POST /query", s.requireAuth(s.handleQuery))

	mux.HandleFunc("GET /routing", s.requireAuth(s.handleGetRouting))
	mux.HandleFunc("PUT /routing", s.requireAuth(s.handleSetRouting))
	mux.HandleFunc("DELETE /routing", s.requireAuth(s.handleDeleteRouting))

	mux.HandleFunc("PUT /node/storage", s.requireAuth(s.handleRegisterNode))
	mux.HandleFunc("GET /node/storage", s.requireAuth(s.handleListNodes))

	mux.HandleFunc("POST /rebuild", s.requireAdmin(s.handleRebuildTrigger))
	mux.HandleFunc("DELETE /rebuild/{id}", s.requireAuth(s.handleRebuildAck))

	mux.HandleFunc("POST /flush", s.requireAdmin(s.handleFlush))

	mux.HandleFunc("GET /metadata", s.requireAuth(s.handleMetadataFacets))

	return mux
}

type contextKey int

const claimsContextKey contextKey = iota

func claimsFromContext(ctx context.Context) (protocol.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(protocol.Claims)
	return claims, ok
}

// requireAuth verifies the bearer token on every mutating or
// identity-scoped route; it covers both the user and storage-node
// identities spec.md §6 names, since this repo's single HMAC token
// adapter does not itself distinguish them — a route that must be
// storage-node-only is expected to check the caller's claimed node id
// against its own bookkeeping (e.g. handleRebuildAck).
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

// requireAdmin additionally checks that the authenticated user is in
// the configured admin set.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := claimsFromContext(r.Context())
		if !s.admins[claims.User] {
			writeError(w, protocol.NewError(protocol.Forbidden, "admin privileges required", nil))
			return
		}
		next(w, r)
	})
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

func requesterIP(r *http.Request) string {
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return host
}
