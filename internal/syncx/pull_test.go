package syncx

import (
	"testing"

	"github.com/google/uuid"

	"github.com/gigpilot/gigpilot-api/internal/store"
)

func TestBucketChange(t *testing.T) {
	recID := uuid.New()

	tests := []struct {
		name   string
		rec    store.ChangeRecord
		bucket string // created, updated, deleted or empty for skipped
	}{
		{
			name: "insert goes to created",
			rec: store.ChangeRecord{
				TableName: "invoices", RecordID: recID,
				Operation: store.OpInsert,
				NewData:   map[string]any{"invoice_number": "INV-1"},
			},
			bucket: "created",
		},
		{
			name: "update goes to updated",
			rec: store.ChangeRecord{
				TableName: "invoices", RecordID: recID,
				Operation: store.OpUpdate,
				NewData:   map[string]any{"status": "paid"},
			},
			bucket: "updated",
		},
		{
			name: "delete serves the old snapshot",
			rec: store.ChangeRecord{
				TableName: "invoices", RecordID: recID,
				Operation: store.OpDelete,
				OldData:   map[string]any{"invoice_number": "INV-1"},
			},
			bucket: "deleted",
		},
		{
			name: "delete without snapshot is skipped",
			rec: store.ChangeRecord{
				TableName: "invoices", RecordID: recID,
				Operation: store.OpDelete,
			},
		},
		{
			name: "insert without payload is skipped",
			rec: store.ChangeRecord{
				TableName: "invoices", RecordID: recID,
				Operation: store.OpInsert,
			},
		},
		{
			name: "unknown operation is skipped",
			rec: store.ChangeRecord{
				TableName: "invoices", RecordID: recID,
				Operation: "TRUNCATE",
				NewData:   map[string]any{"x": float64(1)},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := map[string]*TableChanges{}
			bucketChange(out, &tt.rec)

			if tt.bucket == "" {
				if len(out) != 0 {
					t.Fatalf("expected nothing bucketed, got %v", out)
				}
				return
			}

			tc := out["invoices"]
			if tc == nil {
				t.Fatal("invoices bucket missing")
			}
			var rows []map[string]any
			switch tt.bucket {
			case "created":
				rows = tc.Created
			case "updated":
				rows = tc.Updated
			case "deleted":
				rows = tc.Deleted
			}
			if len(rows) != 1 {
				t.Fatalf("%s len = %d, want 1", tt.bucket, len(rows))
			}
			if rows[0]["id"] != recID.String() {
				t.Errorf("id not injected: %v", rows[0])
			}
		})
	}
}

func TestBucketChangeDoesNotMutateJournalRow(t *testing.T) {
	rec := store.ChangeRecord{
		TableName: "invoices", RecordID: uuid.New(),
		Operation: store.OpInsert,
		NewData:   map[string]any{"invoice_number": "INV-1"},
	}
	out := map[string]*TableChanges{}
	bucketChange(out, &rec)

	if _, ok := rec.NewData["id"]; ok {
		t.Error("journal row payload was mutated by bucketing")
	}
}

func TestBucketChangeGroupsTables(t *testing.T) {
	out := map[string]*TableChanges{}
	recs := []store.ChangeRecord{
		{TableName: "invoices", RecordID: uuid.New(), Operation: store.OpInsert, NewData: map[string]any{"n": float64(1)}},
		{TableName: "invoices", RecordID: uuid.New(), Operation: store.OpUpdate, NewData: map[string]any{"n": float64(2)}},
		{TableName: "projects", RecordID: uuid.New(), Operation: store.OpInsert, NewData: map[string]any{"n": float64(3)}},
	}
	for i := range recs {
		bucketChange(out, &recs[i])
	}

	if len(out) != 2 {
		t.Fatalf("tables = %d, want 2", len(out))
	}
	if len(out["invoices"].Created) != 1 || len(out["invoices"].Updated) != 1 {
		t.Errorf("invoices buckets wrong: %+v", out["invoices"])
	}
	if len(out["projects"].Created) != 1 {
		t.Errorf("projects bucket wrong: %+v", out["projects"])
	}
	if out["invoices"].Deleted != nil {
		t.Error("untouched bucket should stay nil so it drops off the wire")
	}
}
