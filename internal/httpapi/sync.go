package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/gigpilot/gigpilot-api/internal/auth"
	"github.com/gigpilot/gigpilot-api/internal/syncx"
)

// handlePull serves POST /sync/pull. An empty body is a first sync and
// returns the user's full history.
func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req syncx.PullRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	resp, err := s.Sync.Pull(r.Context(), userID, &req)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("pull failed")
		writeError(w, http.StatusInternalServerError, "sync pull failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePush serves POST /sync/push. The engine applies the batch in one
// transaction; a 500 here means nothing committed.
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req syncx.PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	resp, err := s.Sync.Push(r.Context(), userID, &req)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("push failed")
		writeError(w, http.StatusInternalServerError, "sync push failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
