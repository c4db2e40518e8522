package httpapi

import (
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/gigpilot/gigpilot-api/internal/search"
)

func TestIndexEmbedding(t *testing.T) {
	srv, _, _, _, searchSvc := testServer()
	router := srv.Routes()
	entityID := uuid.New()

	rec := doJSON(t, router, "POST", "/embeddings", map[string]any{
		"text":        "Invoice INV-7 for Acme, plumbing work",
		"entity_type": "invoice",
		"entity_id":   entityID.String(),
	}, bearerFor(t, uuid.New()))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if searchSvc.gotText != "Invoice INV-7 for Acme, plumbing work" {
		t.Errorf("indexed text = %q", searchSvc.gotText)
	}
	body := decodeMap(t, rec)
	if body["text_content"] != "Invoice INV-7 for Acme, plumbing work" {
		t.Errorf("body = %v", body)
	}
}

func TestIndexEmbeddingValidation(t *testing.T) {
	srv, _, _, _, _ := testServer()
	router := srv.Routes()
	token := bearerFor(t, uuid.New())

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing text", map[string]any{"entity_type": "invoice"}},
		{"missing entity type", map[string]any{"text": "hello"}},
		{"unknown entity type", map[string]any{"text": "hello", "entity_type": "unicorn"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, "POST", "/embeddings", tt.body, token)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestSearch(t *testing.T) {
	srv, _, _, _, searchSvc := testServer()
	searchSvc.results = []search.Result{
		{ID: uuid.New(), TextContent: "Invoice INV-7 for Acme", EntityType: "invoice", Similarity: 0.91},
	}
	router := srv.Routes()

	rec := doJSON(t, router, "GET", "/search?q=acme+plumbing", nil, bearerFor(t, uuid.New()))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if searchSvc.gotText != "acme plumbing" {
		t.Errorf("query = %q", searchSvc.gotText)
	}
	if searchSvc.gotLimit != 10 {
		t.Errorf("default limit = %d, want 10", searchSvc.gotLimit)
	}

	body := decodeMap(t, rec)
	if body["query"] != "acme plumbing" {
		t.Errorf("echoed query = %v", body["query"])
	}
	results, ok := body["results"].([]any)
	if !ok || len(results) != 1 {
		t.Fatalf("results = %v", body["results"])
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	srv, _, _, _, _ := testServer()
	router := srv.Routes()

	rec := doJSON(t, router, "GET", "/search", nil, bearerFor(t, uuid.New()))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSearchLimitCap(t *testing.T) {
	srv, _, _, _, searchSvc := testServer()
	router := srv.Routes()

	doJSON(t, router, "GET", "/search?q=x&limit=500", nil, bearerFor(t, uuid.New()))
	if searchSvc.gotLimit != 50 {
		t.Errorf("limit = %d, want the 50 cap", searchSvc.gotLimit)
	}
}
