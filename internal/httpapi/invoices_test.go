package httpapi

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gigpilot/gigpilot-api/internal/store"
)

func listedInvoice(updatedAt time.Time) store.Invoice {
	return store.Invoice{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		InvoiceNumber: "INV-1",
		ClientName:    "Acme Corp",
		Amount:        decimal.RequireFromString("150.00"),
		Currency:      "USD",
		Status:        store.StatusSent,
		IssueDate:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:     updatedAt,
	}
}

func TestListInvoices(t *testing.T) {
	srv, _, invoices, _, _ := testServer()
	updated := time.Date(2025, 6, 10, 9, 30, 0, 0, time.UTC)
	invoices.list = []store.Invoice{listedInvoice(updated)}
	router := srv.Routes()

	rec := doJSON(t, router, "GET", "/invoices", nil, bearerFor(t, uuid.New()))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp invoiceListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Invoices) != 1 || resp.Invoices[0].InvoiceNumber != "INV-1" {
		t.Fatalf("invoices = %+v", resp.Invoices)
	}
	if resp.NextCursor == nil {
		t.Fatal("next_cursor missing on non-empty page")
	}

	// The cursor resumes after the row we just saw.
	cur, ok := decodeCursor(*resp.NextCursor)
	if !ok {
		t.Fatalf("next_cursor %q does not decode", *resp.NextCursor)
	}
	if cur.Ms != updated.UnixMilli() || cur.UID != resp.Invoices[0].ID {
		t.Errorf("cursor = %+v, want (%d, %s)", cur, updated.UnixMilli(), resp.Invoices[0].ID)
	}

	if invoices.gotLimit != 50 {
		t.Errorf("default limit = %d, want 50", invoices.gotLimit)
	}
}

func TestListInvoicesCursorAndLimit(t *testing.T) {
	srv, _, invoices, _, _ := testServer()
	router := srv.Routes()
	after := time.Date(2025, 6, 10, 9, 30, 0, 0, time.UTC)
	encoded := encodeCursor(cursor{Ms: after.UnixMilli(), UID: uuid.New()})

	rec := doJSON(t, router, "GET", "/invoices?cursor="+encoded+"&limit=5", nil, bearerFor(t, uuid.New()))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !invoices.gotAfter.Equal(after) {
		t.Errorf("after = %v, want %v", invoices.gotAfter, after)
	}
	if invoices.gotLimit != 5 {
		t.Errorf("limit = %d, want 5", invoices.gotLimit)
	}

	var resp invoiceListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.NextCursor != nil {
		t.Error("empty page should carry no next_cursor")
	}
}

func TestListInvoicesLimitCap(t *testing.T) {
	srv, _, invoices, _, _ := testServer()
	router := srv.Routes()

	doJSON(t, router, "GET", "/invoices?limit=9999", nil, bearerFor(t, uuid.New()))
	if invoices.gotLimit != 200 {
		t.Errorf("limit = %d, want the 200 cap", invoices.gotLimit)
	}

	doJSON(t, router, "GET", "/invoices?limit=garbage", nil, bearerFor(t, uuid.New()))
	if invoices.gotLimit != 50 {
		t.Errorf("limit = %d, want default on garbage", invoices.gotLimit)
	}
}

func TestGetInvoice(t *testing.T) {
	srv, _, invoices, _, _ := testServer()
	inv := listedInvoice(time.Now().UTC())
	invoices.one = &inv
	router := srv.Routes()

	rec := doJSON(t, router, "GET", "/invoices/"+inv.ID.String(), nil, bearerFor(t, uuid.New()))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeMap(t, rec)
	if body["invoice_number"] != "INV-1" {
		t.Errorf("body = %v", body)
	}
	if body["amount"] != "150" && body["amount"] != "150.00" {
		t.Errorf("amount = %v, want decimal string", body["amount"])
	}
}

func TestGetInvoiceNotFound(t *testing.T) {
	srv, _, _, _, _ := testServer()
	router := srv.Routes()

	rec := doJSON(t, router, "GET", "/invoices/"+uuid.NewString(), nil, bearerFor(t, uuid.New()))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestGetInvoiceSoftDeletedReadsAsMissing(t *testing.T) {
	srv, _, invoices, _, _ := testServer()
	inv := listedInvoice(time.Now().UTC())
	inv.IsDeleted = true
	invoices.one = &inv
	router := srv.Routes()

	rec := doJSON(t, router, "GET", "/invoices/"+inv.ID.String(), nil, bearerFor(t, uuid.New()))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for tombstone", rec.Code)
	}
}

func TestGetInvoiceBadID(t *testing.T) {
	srv, _, _, _, _ := testServer()
	router := srv.Routes()

	rec := doJSON(t, router, "GET", "/invoices/not-a-uuid", nil, bearerFor(t, uuid.New()))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
