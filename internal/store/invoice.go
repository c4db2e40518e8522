package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Invoice lifecycle statuses.
const (
	StatusDraft     = "draft"
	StatusSent      = "sent"
	StatusPaid      = "paid"
	StatusOverdue   = "overdue"
	StatusCancelled = "cancelled"
)

// Invoice is a row in the invoices table, including the sync bookkeeping
// columns (last_modified, version_vector, is_deleted).
type Invoice struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	InvoiceNumber string          `json:"invoice_number"`
	ClientName    string          `json:"client_name"`
	ClientEmail   *string         `json:"client_email"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	DueDate       *time.Time      `json:"due_date"`
	IssueDate     time.Time       `json:"issue_date"`
	Description   *string         `json:"description"`
	LineItems     any             `json:"line_items"`
	Metadata      map[string]any  `json:"metadata"`
	LastModified  time.Time       `json:"last_modified"`
	VersionVector map[string]any  `json:"version_vector"`
	IsDeleted     bool            `json:"is_deleted"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Snapshot renders the invoice as a wire payload: amounts as strings, dates
// as YYYY-MM-DD, timestamps as RFC3339. Used for change-journal old_data and
// for server-wins conflict resolution.
func (i *Invoice) Snapshot() map[string]any {
	snap := map[string]any{
		"id":             i.ID.String(),
		"user_id":        i.UserID.String(),
		"invoice_number": i.InvoiceNumber,
		"client_name":    i.ClientName,
		"client_email":   nil,
		"amount":         i.Amount.StringFixed(2),
		"currency":       i.Currency,
		"status":         i.Status,
		"due_date":       nil,
		"issue_date":     i.IssueDate.Format("2006-01-02"),
		"last_modified":  i.LastModified.UTC().Format(time.RFC3339Nano),
		"version_vector": i.VersionVector,
		"is_deleted":     i.IsDeleted,
		"description":    nil,
		"line_items":     i.LineItems,
		"metadata":       i.Metadata,
		"created_at":     i.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":     i.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if i.ClientEmail != nil {
		snap["client_email"] = *i.ClientEmail
	}
	if i.DueDate != nil {
		snap["due_date"] = i.DueDate.Format("2006-01-02")
	}
	if i.Description != nil {
		snap["description"] = *i.Description
	}
	return snap
}

// InvoiceUpdate is the explicit per-field optional set for partial updates.
// Nil pointers on the COALESCE fields leave the column untouched. For the
// nullable columns a Set flag distinguishes "absent" from "clear": with the
// flag raised, a nil value writes SQL NULL.
type InvoiceUpdate struct {
	InvoiceNumber *string
	ClientName    *string
	Amount        *decimal.Decimal
	Currency      *string
	Status        *string
	IssueDate     *time.Time
	VersionVector map[string]any

	ClientEmail    *string
	ClientEmailSet bool
	DueDate        *time.Time
	DueDateSet     bool
	Description    *string
	DescriptionSet bool
	LineItems      any
	LineItemsSet   bool
	Metadata       map[string]any
	MetadataSet    bool
}

const invoiceColumns = `id, user_id, invoice_number, client_name, client_email,
	amount::text, currency, status, due_date, issue_date, description,
	line_items, metadata, last_modified, version_vector, is_deleted,
	created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	var amount string
	err := row.Scan(
		&inv.ID, &inv.UserID, &inv.InvoiceNumber, &inv.ClientName, &inv.ClientEmail,
		&amount, &inv.Currency, &inv.Status, &inv.DueDate, &inv.IssueDate, &inv.Description,
		&inv.LineItems, &inv.Metadata, &inv.LastModified, &inv.VersionVector, &inv.IsDeleted,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return &inv, nil
}

// Exists reports whether a record id is present for the user, soft-deleted
// rows included. Deleted rows must count here: a re-push of a deleted id has
// to classify as an update, not a fresh insert.
func (s *Store) Exists(ctx context.Context, db DBTX, table string, recordID, userID uuid.UUID) (bool, error) {
	switch table {
	case TableInvoices:
		var exists bool
		err := db.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM invoices WHERE id = $1 AND user_id = $2)`,
			recordID, userID).Scan(&exists)
		if err != nil {
			return false, fmt.Errorf("exists: %w", err)
		}
		return exists, nil
	default:
		return false, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
}

// InsertInvoice creates a new invoice row. last_modified is set server-side.
func (s *Store) InsertInvoice(ctx context.Context, db DBTX, inv *Invoice) error {
	_, err := db.Exec(ctx, `
		INSERT INTO invoices (
			id, user_id, invoice_number, client_name, client_email,
			amount, currency, status, due_date, issue_date,
			description, line_items, metadata, last_modified, version_vector
		) VALUES (
			$1, $2, $3, $4, $5, $6::numeric, $7, $8, $9::date, $10::date,
			$11, $12, $13, NOW(), $14
		)`,
		inv.ID, inv.UserID, inv.InvoiceNumber, inv.ClientName, inv.ClientEmail,
		inv.Amount.String(), inv.Currency, inv.Status, inv.DueDate, inv.IssueDate,
		inv.Description, jsonArg(inv.LineItems), mapArg(inv.Metadata), mapArg(inv.VersionVector),
	)
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

// UpdateInvoice applies a partial update to a live (not soft-deleted) row.
// Returns the number of rows touched; 0 means the row is missing or deleted.
func (s *Store) UpdateInvoice(ctx context.Context, db DBTX, id, userID uuid.UUID, upd *InvoiceUpdate) (int64, error) {
	tag, err := db.Exec(ctx, `
		UPDATE invoices SET
			invoice_number = COALESCE($3, invoice_number),
			client_name    = COALESCE($4, client_name),
			amount         = COALESCE($5::numeric, amount),
			currency       = COALESCE($6, currency),
			status         = COALESCE($7, status),
			issue_date     = COALESCE($8::date, issue_date),
			client_email   = CASE WHEN $9  THEN $10 ELSE client_email END,
			due_date       = CASE WHEN $11 THEN $12::date ELSE due_date END,
			description    = CASE WHEN $13 THEN $14 ELSE description END,
			line_items     = CASE WHEN $15 THEN $16::jsonb ELSE line_items END,
			metadata       = CASE WHEN $17 THEN $18::jsonb ELSE metadata END,
			version_vector = COALESCE($19::jsonb, version_vector),
			last_modified  = NOW(),
			updated_at     = NOW()
		WHERE id = $1 AND user_id = $2 AND is_deleted = false`,
		id, userID,
		upd.InvoiceNumber, upd.ClientName, decimalArg(upd.Amount), upd.Currency, upd.Status, upd.IssueDate,
		upd.ClientEmailSet, upd.ClientEmail,
		upd.DueDateSet, upd.DueDate,
		upd.DescriptionSet, upd.Description,
		upd.LineItemsSet, jsonArg(upd.LineItems),
		upd.MetadataSet, mapArg(upd.Metadata),
		mapArg(upd.VersionVector),
	)
	if err != nil {
		return 0, fmt.Errorf("update invoice: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SoftDeleteInvoice marks the row deleted; the row itself stays so the
// deletion can propagate through pull.
func (s *Store) SoftDeleteInvoice(ctx context.Context, db DBTX, id, userID uuid.UUID) (int64, error) {
	tag, err := db.Exec(ctx, `
		UPDATE invoices
		SET is_deleted = true, last_modified = NOW(), updated_at = NOW()
		WHERE id = $1 AND user_id = $2`,
		id, userID)
	if err != nil {
		return 0, fmt.Errorf("soft delete invoice: %w", err)
	}
	return tag.RowsAffected(), nil
}

// FetchInvoice loads one invoice regardless of deletion status; callers that
// only want live rows check IsDeleted themselves.
func (s *Store) FetchInvoice(ctx context.Context, db DBTX, id, userID uuid.UUID) (*Invoice, error) {
	row := db.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 AND user_id = $2`,
		id, userID)
	inv, err := scanInvoice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch invoice: %w", err)
	}
	return inv, nil
}

// ListInvoices pages live invoices by (updated_at, id) keyset.
func (s *Store) ListInvoices(ctx context.Context, db DBTX, userID uuid.UUID, after time.Time, afterID uuid.UUID, limit int) ([]Invoice, error) {
	rows, err := db.Query(ctx,
		`SELECT `+invoiceColumns+` FROM invoices
		WHERE user_id = $1 AND is_deleted = false
		  AND (updated_at, id) > ($2, $3)
		ORDER BY updated_at, id
		LIMIT $4`,
		userID, after, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	out := make([]Invoice, 0, limit)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("list invoices: %w", err)
		}
		out = append(out, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return out, nil
}

// FetchOverdueInvoices returns live, unpaid invoices past due as of today,
// across all users, oldest due date first.
func (s *Store) FetchOverdueInvoices(ctx context.Context, db DBTX, today time.Time, limit int) ([]Invoice, error) {
	rows, err := db.Query(ctx,
		`SELECT `+invoiceColumns+` FROM invoices
		WHERE due_date < $1::date
		  AND status != 'paid'
		  AND is_deleted = false
		ORDER BY due_date ASC
		LIMIT $2`,
		today, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch overdue invoices: %w", err)
	}
	defer rows.Close()

	out := make([]Invoice, 0, limit)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("fetch overdue invoices: %w", err)
		}
		out = append(out, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch overdue invoices: %w", err)
	}
	return out, nil
}

// SetChaseState merges chase_state into the invoice metadata and bumps the
// sync timestamps. Runs outside any user scope: the chasing worker owns it.
func (s *Store) SetChaseState(ctx context.Context, db DBTX, id uuid.UUID, state string) error {
	_, err := db.Exec(ctx, `
		UPDATE invoices
		SET metadata      = COALESCE(metadata, '{}'::jsonb) || jsonb_build_object('chase_state', $2::text),
		    last_modified = NOW(),
		    updated_at    = NOW()
		WHERE id = $1`,
		id, state)
	if err != nil {
		return fmt.Errorf("set chase state: %w", err)
	}
	return nil
}

// decimalArg renders an optional decimal as a nullable text bind.
func decimalArg(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

// mapArg keeps nil maps as SQL NULL instead of the JSON literal "null".
func mapArg(m map[string]any) any {
	if m == nil {
		return nil
	}
	return m
}

// jsonArg does the same for freeform JSON values.
func jsonArg(v any) any {
	if v == nil {
		return nil
	}
	return v
}
