// Package httpapi is the JSON HTTP surface: health probes, login, the sync
// protocol, invoice reads, and the search endpoints. Handlers talk to the
// rest of the system through narrow interfaces so they unit-test with fakes.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gigpilot/gigpilot-api/internal/auth"
	"github.com/gigpilot/gigpilot-api/internal/search"
	"github.com/gigpilot/gigpilot-api/internal/store"
	"github.com/gigpilot/gigpilot-api/internal/syncx"
)

// SyncEngine serves the two-phase sync protocol.
type SyncEngine interface {
	Pull(ctx context.Context, userID uuid.UUID, req *syncx.PullRequest) (*syncx.PullResponse, error)
	Push(ctx context.Context, userID uuid.UUID, req *syncx.PushRequest) (*syncx.PushResponse, error)
}

// InvoiceReader pages and fetches a user's live invoices.
type InvoiceReader interface {
	ListInvoices(ctx context.Context, userID uuid.UUID, after time.Time, afterID uuid.UUID, limit int) ([]store.Invoice, error)
	FetchInvoice(ctx context.Context, id, userID uuid.UUID) (*store.Invoice, error)
}

// UserStore backs registration and login.
type UserStore interface {
	CreateUser(ctx context.Context, email, passwordHash string, fullName *string) (*store.User, error)
	GetUserByEmail(ctx context.Context, email string) (*store.User, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID) error
}

// SearchService indexes text and answers similarity queries.
type SearchService interface {
	Index(ctx context.Context, userID uuid.UUID, text, entityType string, entityID *uuid.UUID) (*store.Embedding, error)
	Query(ctx context.Context, userID uuid.UUID, query string, limit int) ([]search.Result, error)
}

// Pinger is the database health probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	Sync     SyncEngine
	Invoices InvoiceReader
	Users    UserStore
	Search   SearchService
	DB       Pinger
	Auth     auth.Config

	// RateLimit applies per user to the authenticated group; the zero value
	// selects the defaults in Routes.
	RateLimit RateLimit

	// AllowedOrigins configures CORS; empty means allow any origin.
	AllowedOrigins []string

	Version string
}

// validate checks request DTOs at the boundary, reporting field names by
// their json tags.
var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		tag := fld.Tag.Get("json")
		if tag == "-" || tag == "" {
			return fld.Name
		}
		if idx := strings.Index(tag, ","); idx >= 0 {
			tag = tag[:idx]
		}
		return tag
	})
	return v
}()

// validationMessage turns the first field error into a client-safe message.
func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return "invalid field: " + fieldErrs[0].Field()
	}
	return "invalid request"
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode json response")
	}
}

// writeError writes the uniform {"error": ...} envelope. Messages are for
// clients; internals never leak through here.
func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// parseLimit parses a limit query param with default and max.
func parseLimit(q string, def, max int) int {
	if q == "" {
		return def
	}
	n, err := strconv.Atoi(q)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// Routes creates the HTTP router with all endpoints.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(CorrelationMiddleware)

	origins := s.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Correlation-ID"},
		ExposedHeaders: []string{"X-Correlation-ID"},
		MaxAge:         300,
	}))

	// Health and auth endpoints (unauthenticated)
	r.Get("/health", s.handleHealth)
	r.Get("/health/db", s.handleHealthDB)
	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/login", s.handleLogin)

	// Everything else requires a valid bearer token
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.Auth))
		r.Use(RateLimitMiddleware(s.RateLimit.withDefaults()))

		r.Post("/sync/pull", s.handlePull)
		r.Post("/sync/push", s.handlePush)

		r.Get("/invoices", s.handleListInvoices)
		r.Get("/invoices/{id}", s.handleGetInvoice)

		r.Post("/embeddings", s.handleIndexEmbedding)
		r.Get("/search", s.handleSearch)
	})

	log.Info().Msg("HTTP routes registered")
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	version := s.Version
	if version == "" {
		version = "dev"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "gigpilot-api",
		"version": version,
	})
}

func (s *Server) handleHealthDB(w http.ResponseWriter, r *http.Request) {
	if err := s.DB.Ping(r.Context()); err != nil {
		log.Error().Err(err).Msg("database health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "unavailable",
			"database": "unreachable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"database": "reachable",
	})
}
