package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// tableDefinitions are executed in order at startup. Every statement is
// idempotent so both binaries can run the bootstrap unconditionally.
var tableDefinitions = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		full_name TEXT,
		is_active BOOLEAN NOT NULL DEFAULT true,
		last_login_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS invoices (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		invoice_number TEXT NOT NULL,
		client_name TEXT NOT NULL,
		client_email TEXT,
		amount NUMERIC(12,2) NOT NULL DEFAULT 0,
		currency TEXT NOT NULL DEFAULT 'USD',
		status TEXT NOT NULL DEFAULT 'draft',
		due_date DATE,
		issue_date DATE NOT NULL DEFAULT CURRENT_DATE,
		description TEXT,
		line_items JSONB,
		metadata JSONB,
		last_modified TIMESTAMPTZ NOT NULL DEFAULT now(),
		version_vector JSONB,
		is_deleted BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (user_id, invoice_number)
	)`,

	`CREATE TABLE IF NOT EXISTS sync_changes (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		table_name TEXT NOT NULL,
		record_id UUID NOT NULL,
		operation TEXT NOT NULL,
		old_data JSONB,
		new_data JSONB,
		device_id TEXT NOT NULL DEFAULT 'unknown',
		change_timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
		vector_clock JSONB,
		is_applied BOOLEAN NOT NULL DEFAULT false,
		is_conflict BOOLEAN NOT NULL DEFAULT false,
		conflict_resolution JSONB,
		sequence_number BIGSERIAL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS embeddings (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		text_content TEXT NOT NULL,
		embedding DOUBLE PRECISION[] NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_invoices_user_id ON invoices (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_due_date ON invoices (due_date) WHERE is_deleted = false`,
	`CREATE INDEX IF NOT EXISTS idx_sync_changes_user_order ON sync_changes (user_id, change_timestamp, sequence_number)`,
	`CREATE INDEX IF NOT EXISTS idx_embeddings_user_id ON embeddings (user_id)`,
}

// InitSchema creates the tables and indexes the service relies on.
func InitSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range tableDefinitions {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	log.Info().Int("statements", len(tableDefinitions)).Msg("database schema ready")
	return nil
}
