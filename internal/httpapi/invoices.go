package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gigpilot/gigpilot-api/internal/auth"
	"github.com/gigpilot/gigpilot-api/internal/store"
)

type invoiceListResponse struct {
	Invoices   []store.Invoice `json:"invoices"`
	NextCursor *string         `json:"next_cursor,omitempty"`
}

// handleListInvoices serves GET /invoices?cursor=<opaque>&limit=<int>.
// Results come in (updated_at, id) order; the cursor resumes after the last
// row of the previous page.
func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"), 50, 200)
	cur, _ := decodeCursor(r.URL.Query().Get("cursor"))

	invoices, err := s.Invoices.ListInvoices(r.Context(), userID, cur.after(), cur.UID, limit)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("list invoices failed")
		writeError(w, http.StatusInternalServerError, "listing failed")
		return
	}

	resp := invoiceListResponse{Invoices: invoices}
	if len(invoices) > 0 {
		last := invoices[len(invoices)-1]
		encoded := encodeCursor(cursor{Ms: last.UpdatedAt.UnixMilli(), UID: last.ID})
		resp.NextCursor = &encoded
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetInvoice serves GET /invoices/{id}. Soft-deleted invoices read as
// missing here; only sync sees tombstones.
func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid invoice id")
		return
	}

	inv, err := s.Invoices.FetchInvoice(r.Context(), id, userID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "invoice not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("invoice_id", id.String()).Msg("fetch invoice failed")
		writeError(w, http.StatusInternalServerError, "fetch failed")
		return
	}
	if inv.IsDeleted {
		writeError(w, http.StatusNotFound, "invoice not found")
		return
	}
	writeJSON(w, http.StatusOK, inv)
}
