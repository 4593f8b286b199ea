package directoryapi

import (
	"net"
	"net/http"

	"github.com/google/uuid"

	"github.com/menmos/menmos/pkg/indexer"
	"github.com/menmos/menmos/pkg/protocol"
)

// redirectToNode 307-redirects the client to nodeID for path, resolving
// the node's address relative to the requester's IP.
func (s *Server) redirectToNode(w http.ResponseWriter, r *http.Request, nodeID, path string) {
	info, ok := s.policy.NodeInfo(nodeID)
	if !ok {
		writeError(w, protocol.NewError(protocol.Internal, "blob is mapped to an unknown storage node", nil))
		return
	}

	url, err := s.redirects.BuildURL(&info, net.ParseIP(requesterIP(r)), path, s.useTLS, s.rootDomain)
	if err != nil {
		writeError(w, protocol.NewError(protocol.Internal, "build redirect url", err))
		return
	}
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// handlePutBlob assigns a new blob id, picks its storage node, indexes
// it, and 307-redirects the client to the node to upload the bytes.
func (s *Server) handlePutBlob(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())

	meta, err := protocol.DecodeBlobMeta(r.Header.Get(protocol.HeaderBlobMeta))
	if err != nil {
		writeError(w, err)
		return
	}
	size, err := protocol.DecodeBlobSize(r.Header.Get(protocol.HeaderBlobSize))
	if err != nil {
		writeError(w, err)
		return
	}

	nodeID, err := s.indexer.PickNode(claims.User, meta)
	if err != nil {
		writeError(w, protocol.NewError(protocol.Internal, "pick storage node", err))
		return
	}

	blobID := uuid.NewString()
	if err := s.indexer.AddBlob(blobID, nodeID, meta.ToBlobInfo(claims.User, size)); err != nil {
		writeError(w, protocol.NewError(protocol.Internal, "index new blob", err))
		return
	}

	s.redirectToNode(w, r, nodeID, "blob/"+blobID)
}

// ownerNode resolves which node currently holds blobID, or a NotFound
// protocol.Error if it has no mapping.
func (s *Server) ownerNode(blobID string) (string, error) {
	nodeID, ok, err := s.mapping.Get(blobID)
	if err != nil {
		return "", protocol.NewError(protocol.Internal, "lookup blob mapping", err)
	}
	if !ok {
		return "", protocol.NewError(protocol.NotFound, "blob not found", nil)
	}
	return nodeID, nil
}

func (s *Server) handleGetBlob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	nodeID, err := s.ownerNode(id)
	if err != nil {
		writeError(w, err)
		return
	}
	s.redirectToNode(w, r, nodeID, "blob/"+id)
}

func (s *Server) handleWriteBlob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	nodeID, err := s.ownerNode(id)
	if err != nil {
		writeError(w, err)
		return
	}
	s.redirectToNode(w, r, nodeID, "blob/"+id)
}

func (s *Server) handleFsync(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	nodeID, err := s.ownerNode(id)
	if err != nil {
		writeError(w, err)
		return
	}
	s.redirectToNode(w, r, nodeID, "blob/"+id+"/fsync")
}

// handleDeleteBlob verifies the blob's current owning node itself
// before calling indexer.DeleteBlob, since that call insists the
// requester already knows which node it expects to own the blob — here
// the directory is the requester, so it always knows by construction.
func (s *Server) handleDeleteBlob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	nodeID, err := s.ownerNode(id)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.indexer.DeleteBlob(id, nodeID); err != nil {
		writeError(w, deindexError(err))
		return
	}

	s.redirectToNode(w, r, nodeID, "blob/"+id)
}

// handleUpdateMeta re-indexes a blob's metadata, then redirects to the
// owning node in case it needs to react to the new metadata (e.g.
// resizing in place).
func (s *Server) handleUpdateMeta(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	claims, _ := claimsFromContext(r.Context())

	nodeID, err := s.ownerNode(id)
	if err != nil {
		writeError(w, err)
		return
	}

	meta, err := protocol.DecodeBlobMeta(r.Header.Get(protocol.HeaderBlobMeta))
	if err != nil {
		writeError(w, err)
		return
	}

	size, err := s.indexer.BlobSize(id)
	if err != nil {
		writeError(w, deindexError(err))
		return
	}

	if err := s.indexer.UpdateMeta(id, meta.ToBlobInfo(claims.User, size)); err != nil {
		writeError(w, deindexError(err))
		return
	}

	s.redirectToNode(w, r, nodeID, "blob/"+id+"/metadata")
}

func deindexError(err error) error {
	switch err {
	case indexer.ErrBlobNotFound:
		return protocol.NewError(protocol.NotFound, "blob not found", err)
	case indexer.ErrForbidden:
		return protocol.NewError(protocol.Forbidden, "requester does not own blob", err)
	default:
		return protocol.NewError(protocol.Internal, "update index", err)
	}
}
