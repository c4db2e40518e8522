package httpapi

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gigpilot/gigpilot-api/internal/store"
)

// StoreBackend binds the pgx-backed store to the handler interfaces, running
// every call on the shared pool. The sync engine manages its own
// transactions and is wired separately.
type StoreBackend struct {
	S *store.Store
}

func (b StoreBackend) ListInvoices(ctx context.Context, userID uuid.UUID, after time.Time, afterID uuid.UUID, limit int) ([]store.Invoice, error) {
	return b.S.ListInvoices(ctx, b.S.Pool(), userID, after, afterID, limit)
}

func (b StoreBackend) FetchInvoice(ctx context.Context, id, userID uuid.UUID) (*store.Invoice, error) {
	return b.S.FetchInvoice(ctx, b.S.Pool(), id, userID)
}

func (b StoreBackend) CreateUser(ctx context.Context, email, passwordHash string, fullName *string) (*store.User, error) {
	return b.S.CreateUser(ctx, b.S.Pool(), email, passwordHash, fullName)
}

func (b StoreBackend) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	return b.S.GetUserByEmail(ctx, b.S.Pool(), email)
}

func (b StoreBackend) TouchLastLogin(ctx context.Context, id uuid.UUID) error {
	return b.S.TouchLastLogin(ctx, b.S.Pool(), id)
}

func (b StoreBackend) Ping(ctx context.Context) error {
	return b.S.Ping(ctx)
}
