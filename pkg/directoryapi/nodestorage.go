package directoryapi

import (
	"encoding/json"
	"net/http"

	"github.com/menmos/menmos/pkg/log"
	"github.com/menmos/menmos/pkg/protocol"
	"github.com/menmos/menmos/pkg/types"
)

func (s *Server) handleRegisterNode(w http.ResponseWriter, r *http.Request) {
	var info types.StorageNodeInfo
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		writeError(w, protocol.NewError(protocol.BadRequest, "malformed storage node info", err))
		return
	}

	result, err := s.policy.Register(info)
	if err != nil {
		writeError(w, protocol.NewError(protocol.Internal, "register storage node", err))
		return
	}
	if result.RebuildRequested {
		log.WithNodeID(info.ID).Info().Msg("node registered cold, rebuild requested")
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.policy.ListNodes())
}
