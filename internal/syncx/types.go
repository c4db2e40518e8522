// Package syncx implements the two-phase offline sync protocol: pull serves
// the change journal as bucketed record snapshots, push applies client
// batches inside one transaction with conflict detection and resolution.
package syncx

import (
	"time"

	"github.com/google/uuid"
)

// Strategy picks the winner when an update conflicts.
type Strategy string

const (
	ServerWins    Strategy = "server_wins"
	ClientWins    Strategy = "client_wins"
	LastWriteWins Strategy = "last_write_wins"
)

// ParseStrategy maps a config string onto a Strategy. Anything unrecognized
// falls back to ServerWins, the safe default.
func ParseStrategy(s string) Strategy {
	switch Strategy(s) {
	case ClientWins:
		return ClientWins
	case LastWriteWins:
		return LastWriteWins
	default:
		return ServerWins
	}
}

// PullRequest is the client's sync watermark. A nil LastPulledAt asks for
// the full history (first sync).
type PullRequest struct {
	LastPulledAt *time.Time `json:"last_pulled_at,omitempty"`
	DeviceID     *string    `json:"device_id,omitempty"`
}

// TableChanges is one table's bucket set. Only touched buckets are present
// on the wire.
type TableChanges struct {
	Created []map[string]any `json:"created,omitempty"`
	Updated []map[string]any `json:"updated,omitempty"`
	Deleted []map[string]any `json:"deleted,omitempty"`
}

// PullResponse carries the bucketed snapshots plus the server timestamp the
// client must hand back as its next last_pulled_at.
type PullResponse struct {
	Changes   map[string]*TableChanges `json:"changes"`
	Timestamp time.Time                `json:"timestamp"`
}

// PushChange is one client-side mutation. Deleted takes precedence over
// Data; a change with neither is malformed and gets skipped.
type PushChange struct {
	Table         string         `json:"table" validate:"required"`
	ID            uuid.UUID      `json:"id" validate:"required"`
	Data          map[string]any `json:"data,omitempty"`
	Deleted       bool           `json:"deleted"`
	DeviceID      *string        `json:"device_id,omitempty"`
	VersionVector map[string]any `json:"version_vector,omitempty"`
}

// PushRequest is an ordered batch of changes from one device. An empty
// batch is legal and applies nothing.
type PushRequest struct {
	Changes  []PushChange `json:"changes" validate:"dive"`
	DeviceID *string      `json:"device_id,omitempty"`
}

// PushResponse reports what landed. Applied counts clean writes only;
// conflicted changes are counted and listed separately.
type PushResponse struct {
	Applied       int         `json:"applied"`
	Conflicts     int         `json:"conflicts"`
	ConflictedIDs []uuid.UUID `json:"conflicted_ids"`
	Timestamp     time.Time   `json:"timestamp"`
}
