package storageapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/menmos/menmos/pkg/protocol"
	"github.com/menmos/menmos/pkg/repository"
)

// handleGetBlob streams a blob's bytes, honoring a standard HTTP Range
// request header with a 206 partial response.
func (s *Server) handleGetBlob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	rc, size, err := s.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, repoError(err))
		return
	}
	defer rc.Close()

	start, end, ranged := parseRange(r.Header.Get("Range"), size)
	if !ranged {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		_, _ = io.Copy(w, rc)
		return
	}

	if _, err := io.CopyN(io.Discard, rc, start); err != nil {
		writeError(w, protocol.NewError(protocol.Internal, "seek to range start", err))
		return
	}

	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
	w.WriteHeader(http.StatusPartialContent)
	_, _ = io.CopyN(w, rc, end-start+1)
}

// handleCreateBlob accepts a full blob upload: the client's follow-up
// request after the directory's 307 to POST /blob, and also how a
// storage node re-receives a blob moved from a peer (pkg/transfer's
// Transferer implementation targets this same route).
func (s *Server) handleCreateBlob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	size, err := blobSize(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.repo.Save(r.Context(), id, size, r.Body); err != nil {
		writeError(w, repoError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Ok"})
}

// handleWriteBlob applies a partial write at the offset named by a
// standard Content-Range request header.
func (s *Server) handleWriteBlob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	offset, ok := parseContentRange(r.Header.Get("Content-Range"))
	if !ok {
		writeError(w, protocol.NewError(protocol.BadRequest, "missing or malformed Content-Range header", nil))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, protocol.NewError(protocol.BadRequest, "read request body", err))
		return
	}

	if _, err := s.repo.Write(r.Context(), id, offset, body); err != nil {
		writeError(w, repoError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Ok"})
}

func (s *Server) handleDeleteBlob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.repo.Delete(r.Context(), id); err != nil {
		writeError(w, repoError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "OK"})
}

func (s *Server) handleFsync(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.repo.Fsync(r.Context(), id); err != nil {
		writeError(w, repoError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "OK"})
}

// handleUpdateMeta acknowledges a metadata-only update. The storage
// node holds no metadata of its own in this design — pkg/metadata on
// the directory is the sole source of truth — so there is nothing to
// write here; the route exists to keep the wire shape spec.md §6
// names, matching a client that always calls it after the directory's
// redirect regardless of which storage node answers.
func (s *Server) handleUpdateMeta(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "OK"})
}

func blobSize(r *http.Request) (int64, error) {
	if h := r.Header.Get(protocol.HeaderBlobSize); h != "" {
		size, err := protocol.DecodeBlobSize(h)
		return int64(size), err
	}
	if r.ContentLength >= 0 {
		return r.ContentLength, nil
	}
	return 0, protocol.NewError(protocol.BadRequest, "missing blob size", nil)
}

func repoError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return protocol.NewError(protocol.NotFound, "blob not found", err)
	}
	return protocol.NewError(protocol.Internal, "repository operation failed", err)
}
