package httpapi

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// cursor is a position in the invoice listing, keyed by (updated_at, id) so
// pagination is deterministic even when rows share a timestamp. Wire format
// is base64("<updated_at_ms>|<uuid>").
type cursor struct {
	Ms  int64
	UID uuid.UUID
}

func (c cursor) after() time.Time {
	return time.UnixMilli(c.Ms).UTC()
}

// encodeCursor renders the wire form; the zero cursor encodes to "".
func encodeCursor(c cursor) string {
	if c.Ms == 0 && c.UID == uuid.Nil {
		return ""
	}
	raw := fmt.Sprintf("%d|%s", c.Ms, c.UID.String())
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// decodeCursor parses the wire form, reporting false for anything invalid so
// a garbage cursor restarts the listing instead of erroring.
func decodeCursor(s string) (cursor, bool) {
	if s == "" {
		return cursor{}, false
	}

	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return cursor{}, false
	}

	parts := strings.Split(string(b), "|")
	if len(parts) != 2 {
		return cursor{}, false
	}

	ms, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return cursor{}, false
	}

	id, err := uuid.Parse(parts[1])
	if err != nil {
		return cursor{}, false
	}

	return cursor{Ms: ms, UID: id}, true
}
