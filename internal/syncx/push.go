package syncx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/gigpilot/gigpilot-api/internal/store"
)

// Engine owns the sync protocol. One Engine is shared by every request; the
// conflict strategy is fixed at construction and applies to all pushes.
type Engine struct {
	store    *store.Store
	strategy Strategy
}

// NewEngine wires the engine to its store. An empty strategy means
// ServerWins.
func NewEngine(st *store.Store, strategy Strategy) *Engine {
	if strategy == "" {
		strategy = ServerWins
	}
	return &Engine{store: st, strategy: strategy}
}

type outcome int

const (
	outcomeApplied outcome = iota
	outcomeConflict
)

// Push applies a batch of client changes inside a single transaction,
// strictly in request order. A change that fails is logged and skipped, and
// the transaction still commits with whatever landed: one bad change must
// not strand a device's whole offline queue.
func (e *Engine) Push(ctx context.Context, userID uuid.UUID, req *PushRequest) (*PushResponse, error) {
	reqDevice := ""
	if req.DeviceID != nil {
		reqDevice = *req.DeviceID
	}

	log.Info().
		Str("user_id", userID.String()).
		Int("changes", len(req.Changes)).
		Msg("push started")

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("push: %w", err)
	}
	defer tx.Rollback(ctx)

	resp := &PushResponse{ConflictedIDs: []uuid.UUID{}}
	for i := range req.Changes {
		change := &req.Changes[i]
		out, err := e.applyChange(ctx, tx, userID, reqDevice, change)
		if err != nil {
			log.Warn().
				Err(err).
				Str("table", change.Table).
				Str("record_id", change.ID.String()).
				Msg("change failed, continuing with batch")
			continue
		}
		if out == outcomeConflict {
			resp.Conflicts++
			resp.ConflictedIDs = append(resp.ConflictedIDs, change.ID)
		} else {
			resp.Applied++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("push commit: %w", err)
	}
	resp.Timestamp = time.Now().UTC()

	log.Info().
		Str("user_id", userID.String()).
		Int("applied", resp.Applied).
		Int("conflicts", resp.Conflicts).
		Msg("push completed")
	return resp, nil
}

// applyChange classifies and applies one change. Deleted wins over Data; a
// change carrying neither cannot be classified and fails.
func (e *Engine) applyChange(ctx context.Context, tx pgx.Tx, userID uuid.UUID, reqDevice string, change *PushChange) (outcome, error) {
	device := reqDevice
	if change.DeviceID != nil && *change.DeviceID != "" {
		device = *change.DeviceID
	}

	switch {
	case change.Deleted:
		return e.applyDelete(ctx, tx, userID, device, change)
	case change.Data != nil:
		exists, err := e.store.Exists(ctx, tx, change.Table, change.ID, userID)
		if err != nil {
			return 0, err
		}
		if exists {
			return e.applyUpdate(ctx, tx, userID, device, change)
		}
		return e.applyInsert(ctx, tx, userID, device, change)
	default:
		return 0, errMalformedChange
	}
}

func (e *Engine) applyInsert(ctx context.Context, tx pgx.Tx, userID uuid.UUID, device string, change *PushChange) (outcome, error) {
	inv, err := invoiceFromPayload(change.ID, userID, change.Data, change.VersionVector)
	if err != nil {
		return 0, fmt.Errorf("insert: %w", err)
	}
	if err := e.store.InsertInvoice(ctx, tx, inv); err != nil {
		return 0, err
	}
	err = e.store.AppendChange(ctx, tx, &store.ChangeRecord{
		UserID:      userID,
		DeviceID:    device,
		TableName:   change.Table,
		RecordID:    change.ID,
		Operation:   store.OpInsert,
		NewData:     change.Data,
		VectorClock: change.VersionVector,
		IsApplied:   true,
	})
	if err != nil {
		return 0, err
	}
	return outcomeApplied, nil
}

func (e *Engine) applyUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID, device string, change *PushChange) (outcome, error) {
	server, err := e.store.FetchInvoice(ctx, tx, change.ID, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return 0, err
	}
	// The row existed one statement ago; if it is gone now, server stays nil
	// and everything below degrades to the client payload.

	clientLM, clientVV := clientMeta(change.Data)
	if hasConflict(server, clientLM, clientVV) {
		return e.applyConflict(ctx, tx, userID, device, change, server, clientLM)
	}

	upd := invoiceUpdateFromPayload(change.Data)
	upd.VersionVector = mergeVersionVectors(serverVector(server), vectorFor(change.Data, change))
	if _, err := e.store.UpdateInvoice(ctx, tx, change.ID, userID, upd); err != nil {
		return 0, err
	}
	// Zero rows means the server copy is soft-deleted; the write lands
	// nowhere and the deletion stands.

	err = e.store.AppendChange(ctx, tx, &store.ChangeRecord{
		UserID:      userID,
		DeviceID:    device,
		TableName:   change.Table,
		RecordID:    change.ID,
		Operation:   store.OpUpdate,
		OldData:     snapshotOf(server),
		NewData:     change.Data,
		VectorClock: change.VersionVector,
		IsApplied:   true,
	})
	if err != nil {
		return 0, err
	}
	return outcomeApplied, nil
}

// applyConflict resolves and journals a conflicted update. When the server
// side wins nothing is written at all: the existing row keeps its
// last_modified, so the losing device does not get a phantom "newer" write
// on its next pull.
func (e *Engine) applyConflict(ctx context.Context, tx pgx.Tx, userID uuid.UUID, device string, change *PushChange, server *store.Invoice, clientLM *time.Time) (outcome, error) {
	serverDevice := ""
	if e.strategy == LastWriteWins {
		var err error
		serverDevice, err = e.store.LatestChangeDevice(ctx, tx, userID, change.ID)
		if err != nil {
			return 0, err
		}
	}

	res := resolve(e.strategy, server, change.Data, clientLM, serverDevice, device)
	winner := "client"
	if res.serverWon {
		winner = "server"
	}
	log.Warn().
		Str("record_id", change.ID.String()).
		Str("strategy", string(e.strategy)).
		Str("winner", winner).
		Msg("conflict resolved")

	rec := &store.ChangeRecord{
		UserID:             userID,
		DeviceID:           device,
		TableName:          change.Table,
		RecordID:           change.ID,
		Operation:          store.OpUpdate,
		OldData:            snapshotOf(server),
		NewData:            res.data,
		VectorClock:        change.VersionVector,
		IsApplied:          true,
		IsConflict:         true,
		ConflictResolution: map[string]any{"strategy": string(e.strategy), "winner": winner},
	}

	if !res.serverWon {
		upd := invoiceUpdateFromPayload(res.data)
		upd.VersionVector = mergeVersionVectors(serverVector(server), vectorFor(res.data, change))
		if _, err := e.store.UpdateInvoice(ctx, tx, change.ID, userID, upd); err != nil {
			return 0, err
		}
	}

	if err := e.store.AppendChange(ctx, tx, rec); err != nil {
		return 0, err
	}
	return outcomeConflict, nil
}

func (e *Engine) applyDelete(ctx context.Context, tx pgx.Tx, userID uuid.UUID, device string, change *PushChange) (outcome, error) {
	if change.Table != store.TableInvoices {
		return 0, fmt.Errorf("%w: %s", store.ErrUnknownTable, change.Table)
	}

	var oldData map[string]any
	server, err := e.store.FetchInvoice(ctx, tx, change.ID, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// Nothing to snapshot; the soft delete below matches zero rows.
	case err != nil:
		return 0, err
	default:
		oldData = server.Snapshot()
	}

	if _, err := e.store.SoftDeleteInvoice(ctx, tx, change.ID, userID); err != nil {
		return 0, err
	}

	err = e.store.AppendChange(ctx, tx, &store.ChangeRecord{
		UserID:      userID,
		DeviceID:    device,
		TableName:   change.Table,
		RecordID:    change.ID,
		Operation:   store.OpDelete,
		OldData:     oldData,
		VectorClock: change.VersionVector,
		IsApplied:   true,
	})
	if err != nil {
		return 0, err
	}
	return outcomeApplied, nil
}

func serverVector(server *store.Invoice) map[string]any {
	if server == nil {
		return nil
	}
	return server.VersionVector
}

func snapshotOf(server *store.Invoice) map[string]any {
	if server == nil {
		return nil
	}
	return server.Snapshot()
}
