package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Embedding is a stored text vector used by the search service. Vectors live
// in a plain float8[] column and are ranked in-process.
type Embedding struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	TextContent string     `json:"text_content"`
	Vector      []float64  `json:"-"`
	EntityType  string     `json:"entity_type"`
	EntityID    *uuid.UUID `json:"entity_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// InsertEmbedding stores one vector row.
func (s *Store) InsertEmbedding(ctx context.Context, db DBTX, e *Embedding) error {
	err := db.QueryRow(ctx, `
		INSERT INTO embeddings (user_id, text_content, embedding, entity_type, entity_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		e.UserID, e.TextContent, e.Vector, e.EntityType, e.EntityID,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert embedding: %w", err)
	}
	return nil
}

// ListEmbeddings loads every vector for a user, optionally filtered to the
// invoice and project entity types.
func (s *Store) ListEmbeddings(ctx context.Context, db DBTX, userID uuid.UUID, entityTypes []string) ([]Embedding, error) {
	rows, err := db.Query(ctx, `
		SELECT id, user_id, text_content, embedding, entity_type, entity_id, created_at, updated_at
		FROM embeddings
		WHERE user_id = $1
		  AND ($2::text[] IS NULL OR entity_type = ANY($2))
		ORDER BY created_at DESC`,
		userID, entityTypes)
	if err != nil {
		return nil, fmt.Errorf("list embeddings: %w", err)
	}
	defer rows.Close()

	var out []Embedding
	for rows.Next() {
		var e Embedding
		err := rows.Scan(&e.ID, &e.UserID, &e.TextContent, &e.Vector,
			&e.EntityType, &e.EntityID, &e.CreatedAt, &e.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("list embeddings: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list embeddings: %w", err)
	}
	return out, nil
}
