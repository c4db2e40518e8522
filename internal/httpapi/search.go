package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gigpilot/gigpilot-api/internal/auth"
	"github.com/gigpilot/gigpilot-api/internal/search"
)

type indexRequest struct {
	Text       string     `json:"text" validate:"required"`
	EntityType string     `json:"entity_type" validate:"required,oneof=invoice project"`
	EntityID   *uuid.UUID `json:"entity_id,omitempty"`
}

type searchResponse struct {
	Query   string          `json:"query"`
	Results []search.Result `json:"results"`
}

// handleIndexEmbedding serves POST /embeddings: embed a piece of text and
// store it for later similarity queries.
func (s *Server) handleIndexEmbedding(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	emb, err := s.Search.Index(r.Context(), userID, req.Text, req.EntityType, req.EntityID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("embedding index failed")
		writeError(w, http.StatusInternalServerError, "indexing failed")
		return
	}
	writeJSON(w, http.StatusCreated, emb)
}

// handleSearch serves GET /search?q=<text>&limit=<int>.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	limit := parseLimit(r.URL.Query().Get("limit"), 10, 50)

	results, err := s.Search.Query(r.Context(), userID, query, limit)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("search failed")
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Query: query, Results: results})
}
