package directoryapi

import (
	"net/http"

	"github.com/menmos/menmos/pkg/protocol"
)

// handleRebuildTrigger marks every known storage node absent, so each
// one's next registration is treated as cold and asks the node for a
// rebuild pass. That pass walks the node's local blobs and acks; it
// sends no blob metadata back to the directory.
func (s *Server) handleRebuildTrigger(w http.ResponseWriter, r *http.Request) {
	s.policy.MarkAllAbsent()
	writeJSON(w, http.StatusOK, map[string]string{"message": "rebuild started"})
}

// handleRebuildAck accepts a storage node's rebuild-complete report.
// The path id must match the caller's own authenticated identity.
func (s *Server) handleRebuildAck(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	id := r.PathValue("id")
	if claims.User != id {
		writeError(w, protocol.NewError(protocol.Forbidden, "storage node identity mismatch", nil))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
}
