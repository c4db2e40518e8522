package search

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gigpilot/gigpilot-api/internal/store"
)

// Entity types the search surface knows about.
const (
	EntityInvoice = "invoice"
	EntityProject = "project"
)

// Result is one ranked hit. The stored vector stays server-side; clients get
// the text and a similarity score.
type Result struct {
	ID          uuid.UUID  `json:"id"`
	TextContent string     `json:"text_content"`
	EntityType  string     `json:"entity_type"`
	EntityID    *uuid.UUID `json:"entity_id,omitempty"`
	Similarity  float64    `json:"similarity"`
}

// Service indexes free text per user and answers similarity queries against
// it.
type Service struct {
	store *store.Store
}

func NewService(st *store.Store) *Service {
	return &Service{store: st}
}

// Index embeds the text and stores the vector for later queries.
func (s *Service) Index(ctx context.Context, userID uuid.UUID, text, entityType string, entityID *uuid.UUID) (*store.Embedding, error) {
	emb := &store.Embedding{
		UserID:      userID,
		TextContent: text,
		Vector:      Embed(text),
		EntityType:  entityType,
		EntityID:    entityID,
	}
	if err := s.store.InsertEmbedding(ctx, s.store.Pool(), emb); err != nil {
		return nil, fmt.Errorf("index embedding: %w", err)
	}
	log.Debug().
		Str("user_id", userID.String()).
		Str("entity_type", entityType).
		Msg("embedding indexed")
	return emb, nil
}

// Query embeds the query text and ranks the user's invoice and project
// embeddings against it. Default and maximum limits follow the HTTP layer's
// caps; limit <= 0 means 10.
func (s *Service) Query(ctx context.Context, userID uuid.UUID, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.store.ListEmbeddings(ctx, s.store.Pool(), userID, []string{EntityInvoice, EntityProject})
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	results := rank(Embed(query), rows, limit)
	log.Debug().
		Str("user_id", userID.String()).
		Int("candidates", len(rows)).
		Int("results", len(results)).
		Msg("search served")
	return results, nil
}

// rank scores every candidate against the query vector and keeps the top
// limit, highest similarity first. Stable so equal scores keep store order
// (newest first).
func rank(query []float64, rows []store.Embedding, limit int) []Result {
	out := make([]Result, 0, len(rows))
	for i := range rows {
		out = append(out, Result{
			ID:          rows[i].ID,
			TextContent: rows[i].TextContent,
			EntityType:  rows[i].EntityType,
			EntityID:    rows[i].EntityID,
			Similarity:  Cosine(query, rows[i].Vector),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
