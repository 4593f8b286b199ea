package directoryapi

import (
	"encoding/json"
	"net/http"

	"github.com/menmos/menmos/pkg/log"
	"github.com/menmos/menmos/pkg/protocol"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, protocol.NewError(protocol.BadRequest, "malformed login request", err))
		return
	}

	ok, err := s.userStore.Authenticate(req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		log.WithUser(req.Username).Warn().Msg("login rejected: invalid credentials")
		writeError(w, protocol.NewError(protocol.Forbidden, "invalid credentials", nil))
		return
	}

	token, err := s.tokens.Issue(req.Username)
	if err != nil {
		writeError(w, protocol.NewError(protocol.Internal, "issue token", err))
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

type registerUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, protocol.NewError(protocol.BadRequest, "malformed register request", err))
		return
	}

	if err := s.userStore.SetPassword(req.Username, req.Password); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"username": req.Username})
}
