package directoryapi

import (
	"net/http"

	"github.com/menmos/menmos/pkg/protocol"
)

// handleFlush clears every blob from the directory's index and
// storage-mapping bookkeeping. It cannot clear the document-id
// counter/free-list (pkg/docid exposes no Clear), so index slots are
// not reclaimed by a flush. A rebuild pass does not repopulate the
// mapping or metadata either: storage nodes re-send no blob metadata.
func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	if err := s.meta.Clear(); err != nil {
		writeError(w, protocol.NewError(protocol.Internal, "clear metadata index", err))
		return
	}
	if err := s.mapping.Clear(); err != nil {
		writeError(w, protocol.NewError(protocol.Internal, "clear storage mapping", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "flushed"})
}
