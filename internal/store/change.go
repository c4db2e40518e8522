package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Journal operations. Uppercase on the wire and in the table.
const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
)

// ChangeRecord is one row of the append-only sync_changes journal. Rows are
// never updated or removed; ordering is (change_timestamp, sequence_number).
type ChangeRecord struct {
	ID                 uuid.UUID      `json:"id"`
	UserID             uuid.UUID      `json:"user_id"`
	DeviceID           string         `json:"device_id"`
	TableName          string         `json:"table_name"`
	RecordID           uuid.UUID      `json:"record_id"`
	Operation          string         `json:"operation"`
	OldData            map[string]any `json:"old_data"`
	NewData            map[string]any `json:"new_data"`
	ChangeTimestamp    time.Time      `json:"change_timestamp"`
	SequenceNumber     int64          `json:"sequence_number"`
	VectorClock        map[string]any `json:"vector_clock"`
	IsApplied          bool           `json:"is_applied"`
	IsConflict         bool           `json:"is_conflict"`
	ConflictResolution map[string]any `json:"conflict_resolution"`
	CreatedAt          time.Time      `json:"created_at"`
}

// AppendChange writes one journal row and fills in the server-assigned
// fields. change_timestamp comes from the transaction clock, so every row of
// a single push shares it and the BIGSERIAL sequence breaks the tie.
func (s *Store) AppendChange(ctx context.Context, db DBTX, rec *ChangeRecord) error {
	if rec.DeviceID == "" {
		rec.DeviceID = "unknown"
	}
	err := db.QueryRow(ctx, `
		INSERT INTO sync_changes (
			user_id, device_id, table_name, record_id, operation,
			old_data, new_data, change_timestamp, vector_clock,
			is_applied, is_conflict, conflict_resolution
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), $8, $9, $10, $11)
		RETURNING id, change_timestamp, sequence_number, created_at`,
		rec.UserID, rec.DeviceID, rec.TableName, rec.RecordID, rec.Operation,
		mapArg(rec.OldData), mapArg(rec.NewData), mapArg(rec.VectorClock),
		rec.IsApplied, rec.IsConflict, mapArg(rec.ConflictResolution),
	).Scan(&rec.ID, &rec.ChangeTimestamp, &rec.SequenceNumber, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("append change: %w", err)
	}
	return nil
}

// ListChanges returns the applied journal rows for a user after the given
// watermark, in journal order. A nil watermark means everything.
func (s *Store) ListChanges(ctx context.Context, db DBTX, userID uuid.UUID, since *time.Time) ([]ChangeRecord, error) {
	rows, err := db.Query(ctx, `
		SELECT id, user_id, device_id, table_name, record_id, operation,
		       old_data, new_data, change_timestamp, sequence_number,
		       vector_clock, is_applied, is_conflict, conflict_resolution, created_at
		FROM sync_changes
		WHERE user_id = $1
		  AND is_applied = true
		  AND ($2::timestamptz IS NULL OR change_timestamp > $2)
		ORDER BY change_timestamp ASC, sequence_number ASC`,
		userID, since)
	if err != nil {
		return nil, fmt.Errorf("list changes: %w", err)
	}
	defer rows.Close()

	var out []ChangeRecord
	for rows.Next() {
		var rec ChangeRecord
		err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.DeviceID, &rec.TableName, &rec.RecordID, &rec.Operation,
			&rec.OldData, &rec.NewData, &rec.ChangeTimestamp, &rec.SequenceNumber,
			&rec.VectorClock, &rec.IsApplied, &rec.IsConflict, &rec.ConflictResolution, &rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("list changes: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list changes: %w", err)
	}
	return out, nil
}

// LatestChangeDevice reports which device wrote the most recent applied
// journal row for a record. Empty string when the record has no history.
func (s *Store) LatestChangeDevice(ctx context.Context, db DBTX, userID, recordID uuid.UUID) (string, error) {
	var device string
	err := db.QueryRow(ctx, `
		SELECT device_id FROM sync_changes
		WHERE user_id = $1 AND record_id = $2 AND is_applied = true
		ORDER BY change_timestamp DESC, sequence_number DESC
		LIMIT 1`,
		userID, recordID).Scan(&device)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("latest change device: %w", err)
	}
	return device, nil
}
