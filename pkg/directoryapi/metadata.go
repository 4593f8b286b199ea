package directoryapi

import (
	"net/http"

	"github.com/menmos/menmos/pkg/protocol"
	"github.com/menmos/menmos/pkg/query"
)

// handleMetadataFacets returns the tag/field facet breakdown over
// every blob visible to the authenticated user, with no result hits —
// the directory's equivalent of "what can I filter by".
func (s *Server) handleMetadataFacets(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())

	resp, err := s.queryEng.Run(query.Empty, claims.User, 0, 0, true)
	if err != nil {
		writeError(w, protocol.NewError(protocol.Internal, "compute facets", err))
		return
	}
	writeJSON(w, http.StatusOK, resp.Facets)
}
