package directoryapi

import (
	"encoding/json"
	"net/http"

	"github.com/menmos/menmos/pkg/protocol"
	"github.com/menmos/menmos/pkg/types"
)

func (s *Server) handleGetRouting(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())

	cfg, err := s.routingSt.GetConfig(claims.User)
	if err != nil {
		writeError(w, protocol.NewError(protocol.Internal, "load routing config", err))
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// handleSetRouting replaces the authenticated user's routing rules and
// replays every rule through Policy.ApplyRuleChange so already-placed
// blobs are queued for the move their new rule implies.
func (s *Server) handleSetRouting(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())

	var cfg types.RoutingConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, protocol.NewError(protocol.BadRequest, "malformed routing config", err))
		return
	}

	if err := s.routingSt.SetConfig(claims.User, &cfg); err != nil {
		writeError(w, protocol.NewError(protocol.Internal, "save routing config", err))
		return
	}

	for _, rule := range cfg.Rules {
		if err := s.policy.ApplyRuleChange(claims.User, rule.Field, rule.Value, rule.Node); err != nil {
			writeError(w, protocol.NewError(protocol.Internal, "apply routing rule", err))
			return
		}
	}

	writeJSON(w, http.StatusOK, &cfg)
}

func (s *Server) handleDeleteRouting(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())

	if err := s.routingSt.DeleteConfig(claims.User); err != nil {
		writeError(w, protocol.NewError(protocol.Internal, "delete routing config", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"user": claims.User})
}
