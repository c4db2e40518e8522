package chase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gigpilot/gigpilot-api/internal/mail"
	"github.com/gigpilot/gigpilot-api/internal/store"
)

// Store is the slice of the invoice store the worker needs.
type Store interface {
	FetchOverdueInvoices(ctx context.Context, today time.Time, limit int) ([]store.Invoice, error)
	SetChaseState(ctx context.Context, id uuid.UUID, state string) error
}

// PoolStore adapts the pgx-backed store to the worker, binding every call
// to the shared pool.
type PoolStore struct {
	S *store.Store
}

func (p PoolStore) FetchOverdueInvoices(ctx context.Context, today time.Time, limit int) ([]store.Invoice, error) {
	return p.S.FetchOverdueInvoices(ctx, p.S.Pool(), today, limit)
}

func (p PoolStore) SetChaseState(ctx context.Context, id uuid.UUID, state string) error {
	return p.S.SetChaseState(ctx, p.S.Pool(), id, state)
}

// Executor walks one invoice through the ladder and performs the resulting
// action.
type Executor struct {
	store  Store
	sender mail.Sender
	now    func() time.Time
}

func NewExecutor(st Store, sender mail.Sender) *Executor {
	return &Executor{store: st, sender: sender, now: time.Now}
}

// ProcessInvoice runs one invoice through the state machine and executes the
// action. Reminder sends persist the new state first; a failed delivery is
// reported to the caller but never rolls the ladder back.
func (e *Executor) ProcessInvoice(ctx context.Context, inv *store.Invoice) error {
	current := e.currentState(inv)
	days := daysOverdue(inv, e.now())
	next, action := Step(current, days)

	log.Info().
		Str("invoice", inv.InvoiceNumber).
		Str("from", string(current)).
		Str("to", string(next)).
		Stringer("action", action).
		Int("days_overdue", days).
		Msg("chase transition")

	switch action {
	case SendPoliteReminder:
		return e.sendReminder(ctx, inv, mail.TonePolite, next)
	case SendFirmReminder:
		return e.sendReminder(ctx, inv, mail.ToneFirm, next)
	case MarkAsPaid:
		return e.store.SetChaseState(ctx, inv.ID, string(next))
	default:
		if current != next {
			return e.store.SetChaseState(ctx, inv.ID, string(next))
		}
		return nil
	}
}

// currentState reads metadata.chase_state, falling back to a derivation from
// the invoice itself when the key is missing or holds garbage.
func (e *Executor) currentState(inv *store.Invoice) State {
	if inv.Metadata != nil {
		if raw, ok := inv.Metadata["chase_state"].(string); ok {
			if st, ok2 := ParseState(raw); ok2 {
				return st
			}
			log.Warn().
				Str("invoice", inv.InvoiceNumber).
				Str("chase_state", raw).
				Msg("unknown chase_state in metadata, deriving from invoice")
		}
	}

	if inv.Status == store.StatusPaid {
		return StatePaid
	}
	if inv.DueDate != nil && beforeDay(*inv.DueDate, e.now()) {
		return StateOverdue
	}
	return StatePending
}

func (e *Executor) sendReminder(ctx context.Context, inv *store.Invoice, tone string, next State) error {
	if inv.ClientEmail == nil || *inv.ClientEmail == "" {
		return fmt.Errorf("no client email for invoice %s", inv.InvoiceNumber)
	}

	if err := e.store.SetChaseState(ctx, inv.ID, string(next)); err != nil {
		return fmt.Errorf("persist chase state: %w", err)
	}

	subject, body := mail.Compose(tone, invoiceContext(inv))
	err := e.sender.Send(ctx, mail.Email{To: *inv.ClientEmail, Subject: subject, Body: body})
	if err != nil {
		return fmt.Errorf("send %s reminder for %s: %w", tone, inv.InvoiceNumber, err)
	}

	log.Info().
		Str("invoice", inv.InvoiceNumber).
		Str("tone", tone).
		Str("to", *inv.ClientEmail).
		Msg("reminder sent")
	return nil
}

// invoiceContext is the one-line summary embedded in reminder bodies.
func invoiceContext(inv *store.Invoice) string {
	due := "unknown"
	if inv.DueDate != nil {
		due = inv.DueDate.Format("2006-01-02")
	}
	return fmt.Sprintf("Invoice %s for %s %s (Due: %s)",
		inv.InvoiceNumber, inv.Currency, inv.Amount.StringFixed(2), due)
}

// daysOverdue counts whole days past due, never negative, 0 without a due
// date.
func daysOverdue(inv *store.Invoice, now time.Time) int {
	if inv.DueDate == nil {
		return 0
	}
	today := now.UTC().Truncate(24 * time.Hour)
	due := inv.DueDate.UTC().Truncate(24 * time.Hour)
	if !due.Before(today) {
		return 0
	}
	return int(today.Sub(due).Hours() / 24)
}

func beforeDay(due, now time.Time) bool {
	return due.UTC().Truncate(24 * time.Hour).Before(now.UTC().Truncate(24 * time.Hour))
}
