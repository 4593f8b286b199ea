package storageapi

import "net/http"

// handleFlush deletes every blob this node currently holds, walking
// the local repository rather than trusting a separately-tracked
// index — the storage node has no other bookkeeping of what it
// stores.
func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var firstErr error
	for id := range s.walker.Walk(ctx) {
		if err := s.repo.Delete(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		writeError(w, repoError(firstErr))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Ok"})
}
