package syncx

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gigpilot/gigpilot-api/internal/store"
)

// Pull serves the client-facing view of the change journal. With no
// watermark the full history comes back (first sync); otherwise only rows
// strictly after last_pulled_at. The response timestamp is the client's next
// watermark.
func (e *Engine) Pull(ctx context.Context, userID uuid.UUID, req *PullRequest) (*PullResponse, error) {
	changes, err := e.store.ListChanges(ctx, e.store.Pool(), userID, req.LastPulledAt)
	if err != nil {
		return nil, fmt.Errorf("pull: %w", err)
	}

	resp := &PullResponse{
		Changes:   map[string]*TableChanges{},
		Timestamp: time.Now().UTC(),
	}
	for i := range changes {
		bucketChange(resp.Changes, &changes[i])
	}

	log.Debug().
		Str("user_id", userID.String()).
		Int("changes", len(changes)).
		Msg("pull served")
	return resp, nil
}

// bucketChange folds one journal row into the response map. The snapshot is
// new_data for inserts and updates and old_data for deletes; rows without a
// usable snapshot are skipped. The record id is injected so clients can
// apply the row without knowing journal internals.
func bucketChange(out map[string]*TableChanges, rec *store.ChangeRecord) {
	var snap map[string]any
	switch rec.Operation {
	case store.OpInsert, store.OpUpdate:
		snap = rec.NewData
	case store.OpDelete:
		snap = rec.OldData
	default:
		return
	}
	if snap == nil {
		return
	}

	clone := make(map[string]any, len(snap)+1)
	for k, v := range snap {
		clone[k] = v
	}
	clone["id"] = rec.RecordID.String()

	tc := out[rec.TableName]
	if tc == nil {
		tc = &TableChanges{}
		out[rec.TableName] = tc
	}
	switch rec.Operation {
	case store.OpInsert:
		tc.Created = append(tc.Created, clone)
	case store.OpUpdate:
		tc.Updated = append(tc.Updated, clone)
	case store.OpDelete:
		tc.Deleted = append(tc.Deleted, clone)
	}
}
