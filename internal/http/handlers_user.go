package http

import (
	"errors"
	"net/http"
	"strings"

	"budget/internal/auth"
	"budget/internal/core"
	applog "budget/internal/log"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.users.Register(r.Context(), req.Name, req.Email, req.Secret)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.logger.InfoContext(r.Context(), "User registered", applog.FieldUserID, u.ID, applog.FieldOperation, applog.OpRegister)
	writeJSON(w, http.StatusCreated, u)
}

// handleLogin issues a session token for valid credentials.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := s.users.Authenticate(r.Context(), req.Email, req.Secret)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.logger.InfoContext(r.Context(), "User logged in", applog.FieldUserID, sess.User.ID, applog.FieldOperation, applog.OpLogin)
	writeJSON(w, http.StatusOK, sess)
}

// handleLookupUser resolves ?email=&secret= the way older clients log in.
// Unknown credentials are a 404 rather than a 401.
func (s *Server) handleLookupUser(w http.ResponseWriter, r *http.Request) {
	q := credentialsRequest{
		Email:  strings.TrimSpace(r.URL.Query().Get("email")),
		Secret: r.URL.Query().Get("secret"),
	}
	if err := validateStruct(q); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := s.users.Authenticate(r.Context(), q.Email, q.Secret)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, r, core.NewNotFound("user", q.Email))
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}
