// Package store owns all persistent state: users, invoices, the sync change
// journal, and search embeddings. Every other component borrows a handle and
// scopes its queries to a single user.
package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when a fetch matches no row.
	ErrNotFound = errors.New("store: not found")

	// ErrUnknownTable is returned when an operation names a table the
	// store has no dispatch for.
	ErrUnknownTable = errors.New("store: unknown table")
)

// TableInvoices is the only syncable table in the current schema.
const TableInvoices = "invoices"

// DBTX is the query surface shared by *pgxpool.Pool and pgx.Tx, so the same
// store methods run standalone or inside a caller-owned transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store wraps the connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store on top of an open pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool exposes the underlying pool for callers that run plain queries.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Begin opens a read-committed transaction.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	return s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	return s.pool.QueryRow(ctx, `SELECT 1`).Scan(&one)
}
