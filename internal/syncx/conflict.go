package syncx

import (
	"reflect"
	"time"

	"github.com/gigpilot/gigpilot-api/internal/store"
)

// hasConflict implements update-conflict detection. The server copy is
// authoritative when it observed a write newer than the client's
// last_modified, or when both sides carry version vectors that disagree.
// Soft-deleted rows never conflict; the update lands as a no-op instead.
func hasConflict(server *store.Invoice, clientLM *time.Time, clientVV map[string]any) bool {
	if server == nil || server.IsDeleted {
		return false
	}
	if clientLM != nil && server.LastModified.After(*clientLM) {
		return true
	}
	if clientVV != nil && server.VersionVector != nil && !reflect.DeepEqual(clientVV, server.VersionVector) {
		return true
	}
	return false
}

// resolution is resolve's outcome: the payload that should end up applied
// and which side supplied it.
type resolution struct {
	data      map[string]any
	serverWon bool
}

// resolve applies one strategy to a detected conflict. server may be nil if
// the record vanished between detection and resolution; every branch then
// degrades to the client payload. Pure apart from its inputs; it never
// writes.
//
// LastWriteWins compares last_modified and breaks exact ties with the
// lexicographically greater device id, which keeps the outcome identical no
// matter which replica does the resolving.
func resolve(strategy Strategy, server *store.Invoice, clientData map[string]any, clientLM *time.Time, serverDevice, clientDevice string) resolution {
	switch strategy {
	case ClientWins:
		return resolution{data: clientData}

	case LastWriteWins:
		if server == nil || clientLM == nil {
			return resolution{data: clientData}
		}
		if server.LastModified.After(*clientLM) {
			return resolution{data: server.Snapshot(), serverWon: true}
		}
		if clientLM.After(server.LastModified) {
			return resolution{data: clientData}
		}
		if clientDevice > serverDevice {
			return resolution{data: clientData}
		}
		return resolution{data: server.Snapshot(), serverWon: true}

	default: // ServerWins
		if server == nil {
			return resolution{data: clientData}
		}
		return resolution{data: server.Snapshot(), serverWon: true}
	}
}
