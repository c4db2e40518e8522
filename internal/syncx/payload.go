package syncx

import (
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gigpilot/gigpilot-api/internal/store"
)

var errMalformedChange = errors.New("malformed change: no data and not deleted")

// getString safely extracts a string value from a map.
func getString(m map[string]any, k string) (string, bool) {
	if v, ok := m[k]; ok {
		if s, ok2 := v.(string); ok2 {
			return s, true
		}
	}
	return "", false
}

// getMap safely extracts a nested object from a map.
func getMap(m map[string]any, k string) (map[string]any, bool) {
	if v, ok := m[k]; ok {
		if mm, ok2 := v.(map[string]any); ok2 {
			return mm, true
		}
	}
	return nil, false
}

// parseTimestamp accepts RFC3339 (with or without fractional seconds) and
// numeric Unix milliseconds, the formats offline clients actually send.
func parseTimestamp(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts.UTC(), true
		}
		if ts, err := time.Parse(time.RFC3339, t); err == nil {
			return ts.UTC(), true
		}
		if ms, err := strconv.ParseInt(t, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), true
		}
	case float64:
		return time.UnixMilli(int64(t)).UTC(), true
	}
	return time.Time{}, false
}

// parseDate accepts a bare YYYY-MM-DD or a full timestamp, keeping the date
// part.
func parseDate(v any) (time.Time, bool) {
	if s, ok := v.(string); ok {
		if d, err := time.Parse("2006-01-02", s); err == nil {
			return d, true
		}
	}
	if ts, ok := parseTimestamp(v); ok {
		return ts.Truncate(24 * time.Hour), true
	}
	return time.Time{}, false
}

// parseAmount accepts the canonical string form and, for older clients, a
// raw JSON number.
func parseAmount(v any) (decimal.Decimal, bool) {
	switch a := v.(type) {
	case string:
		d, err := decimal.NewFromString(a)
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(a), true
	}
	return decimal.Decimal{}, false
}

// clientMeta pulls the optional conflict comparands out of an update payload.
func clientMeta(data map[string]any) (*time.Time, map[string]any) {
	var lm *time.Time
	if v, ok := data["last_modified"]; ok {
		if ts, ok2 := parseTimestamp(v); ok2 {
			lm = &ts
		}
	}
	vv, _ := getMap(data, "version_vector")
	return lm, vv
}

// vectorFor prefers the vector embedded in the payload, falling back to the
// wire-level field on the change.
func vectorFor(data map[string]any, change *PushChange) map[string]any {
	if vv, ok := getMap(data, "version_vector"); ok {
		return vv
	}
	return change.VersionVector
}

// invoiceFromPayload builds a full row for an insert. invoice_number,
// client_name and amount are required; currency, status and issue_date fall
// back to "USD", "draft" and today, matching what clients omit in practice.
func invoiceFromPayload(id, userID uuid.UUID, data, versionVector map[string]any) (*store.Invoice, error) {
	number, ok := getString(data, "invoice_number")
	if !ok {
		return nil, errors.New("missing invoice_number")
	}
	name, ok := getString(data, "client_name")
	if !ok {
		return nil, errors.New("missing client_name")
	}
	amount, ok := parseAmount(data["amount"])
	if !ok {
		return nil, errors.New("missing or invalid amount")
	}

	inv := &store.Invoice{
		ID:            id,
		UserID:        userID,
		InvoiceNumber: number,
		ClientName:    name,
		Amount:        amount,
		Currency:      "USD",
		Status:        store.StatusDraft,
		IssueDate:     time.Now().UTC().Truncate(24 * time.Hour),
		VersionVector: versionVector,
	}
	if s, ok := getString(data, "currency"); ok {
		inv.Currency = s
	}
	if s, ok := getString(data, "status"); ok {
		inv.Status = s
	}
	if s, ok := getString(data, "client_email"); ok {
		inv.ClientEmail = &s
	}
	if v, ok := data["due_date"]; ok {
		if d, ok2 := parseDate(v); ok2 {
			inv.DueDate = &d
		}
	}
	if v, ok := data["issue_date"]; ok {
		if d, ok2 := parseDate(v); ok2 {
			inv.IssueDate = d
		}
	}
	if s, ok := getString(data, "description"); ok {
		inv.Description = &s
	}
	if v, ok := data["line_items"]; ok && v != nil {
		inv.LineItems = v
	}
	if mm, ok := getMap(data, "metadata"); ok {
		inv.Metadata = mm
	}
	return inv, nil
}

// invoiceUpdateFromPayload maps payload keys onto the partial update set. A
// key that is absent leaves the column alone; an explicit null raises the
// Set flag with no value, which clears the nullable columns.
func invoiceUpdateFromPayload(data map[string]any) *store.InvoiceUpdate {
	upd := &store.InvoiceUpdate{}
	if s, ok := getString(data, "invoice_number"); ok {
		upd.InvoiceNumber = &s
	}
	if s, ok := getString(data, "client_name"); ok {
		upd.ClientName = &s
	}
	if v, ok := data["amount"]; ok {
		if d, ok2 := parseAmount(v); ok2 {
			upd.Amount = &d
		}
	}
	if s, ok := getString(data, "currency"); ok {
		upd.Currency = &s
	}
	if s, ok := getString(data, "status"); ok {
		upd.Status = &s
	}
	if v, ok := data["issue_date"]; ok {
		if d, ok2 := parseDate(v); ok2 {
			upd.IssueDate = &d
		}
	}

	if v, present := data["client_email"]; present {
		upd.ClientEmailSet = true
		if s, ok := v.(string); ok {
			upd.ClientEmail = &s
		}
	}
	if v, present := data["due_date"]; present {
		upd.DueDateSet = true
		if d, ok := parseDate(v); ok {
			upd.DueDate = &d
		}
	}
	if v, present := data["description"]; present {
		upd.DescriptionSet = true
		if s, ok := v.(string); ok {
			upd.Description = &s
		}
	}
	if v, present := data["line_items"]; present {
		upd.LineItemsSet = true
		upd.LineItems = v
	}
	if v, present := data["metadata"]; present {
		upd.MetadataSet = true
		if mm, ok := v.(map[string]any); ok {
			upd.Metadata = mm
		}
	}
	return upd
}

// mergeVersionVectors takes the pointwise maximum of two device counter
// maps. The merged vector never loses a device seen by either side, so the
// record's causal history only ever grows.
func mergeVersionVectors(server, client map[string]any) map[string]any {
	if server == nil && client == nil {
		return nil
	}
	out := make(map[string]any, len(server)+len(client))
	for k, v := range server {
		out[k] = v
	}
	for k, v := range client {
		cur, ok := out[k]
		if !ok || counterValue(v) > counterValue(cur) {
			out[k] = v
		}
	}
	return out
}

func counterValue(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}
