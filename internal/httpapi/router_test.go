package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gigpilot/gigpilot-api/internal/auth"
	"github.com/gigpilot/gigpilot-api/internal/search"
	"github.com/gigpilot/gigpilot-api/internal/store"
	"github.com/gigpilot/gigpilot-api/internal/syncx"
)

// Fakes for the narrow handler interfaces. Each records its last call and
// returns canned values.

type fakeSync struct {
	pullResp *syncx.PullResponse
	pushResp *syncx.PushResponse
	err      error

	gotUser uuid.UUID
	gotPull *syncx.PullRequest
	gotPush *syncx.PushRequest
}

func (f *fakeSync) Pull(_ context.Context, userID uuid.UUID, req *syncx.PullRequest) (*syncx.PullResponse, error) {
	f.gotUser, f.gotPull = userID, req
	return f.pullResp, f.err
}

func (f *fakeSync) Push(_ context.Context, userID uuid.UUID, req *syncx.PushRequest) (*syncx.PushResponse, error) {
	f.gotUser, f.gotPush = userID, req
	return f.pushResp, f.err
}

type fakeInvoices struct {
	list     []store.Invoice
	one      *store.Invoice
	err      error
	gotAfter time.Time
	gotLimit int
}

func (f *fakeInvoices) ListInvoices(_ context.Context, _ uuid.UUID, after time.Time, _ uuid.UUID, limit int) ([]store.Invoice, error) {
	f.gotAfter, f.gotLimit = after, limit
	return f.list, f.err
}

func (f *fakeInvoices) FetchInvoice(_ context.Context, _, _ uuid.UUID) (*store.Invoice, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.one == nil {
		return nil, store.ErrNotFound
	}
	return f.one, nil
}

type fakeUsers struct {
	user       *store.User
	createErr  error
	touched    []uuid.UUID
	gotEmail   string
	gotHash    string
	createUser *store.User
}

func (f *fakeUsers) CreateUser(_ context.Context, email, passwordHash string, fullName *string) (*store.User, error) {
	f.gotEmail, f.gotHash = email, passwordHash
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createUser != nil {
		return f.createUser, nil
	}
	return &store.User{ID: uuid.New(), Email: email, IsActive: true}, nil
}

func (f *fakeUsers) GetUserByEmail(_ context.Context, email string) (*store.User, error) {
	f.gotEmail = email
	if f.user == nil {
		return nil, store.ErrNotFound
	}
	return f.user, nil
}

func (f *fakeUsers) TouchLastLogin(_ context.Context, id uuid.UUID) error {
	f.touched = append(f.touched, id)
	return nil
}

type fakeSearch struct {
	emb      *store.Embedding
	results  []search.Result
	err      error
	gotText  string
	gotLimit int
}

func (f *fakeSearch) Index(_ context.Context, userID uuid.UUID, text, entityType string, entityID *uuid.UUID) (*store.Embedding, error) {
	f.gotText = text
	if f.err != nil {
		return nil, f.err
	}
	if f.emb != nil {
		return f.emb, nil
	}
	return &store.Embedding{ID: uuid.New(), UserID: userID, TextContent: text, EntityType: entityType, EntityID: entityID}, nil
}

func (f *fakeSearch) Query(_ context.Context, _ uuid.UUID, query string, limit int) ([]search.Result, error) {
	f.gotText, f.gotLimit = query, limit
	return f.results, f.err
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func testAuthConfig() auth.Config {
	return auth.Config{Secret: "test-secret", Expiry: time.Hour}
}

// testServer wires a Server with fakes; individual tests overwrite the
// fields they care about.
func testServer() (*Server, *fakeSync, *fakeInvoices, *fakeUsers, *fakeSearch) {
	sync := &fakeSync{
		pullResp: &syncx.PullResponse{Changes: map[string]*syncx.TableChanges{}, Timestamp: time.Now().UTC()},
		pushResp: &syncx.PushResponse{ConflictedIDs: []uuid.UUID{}, Timestamp: time.Now().UTC()},
	}
	invoices := &fakeInvoices{}
	users := &fakeUsers{}
	searchSvc := &fakeSearch{}
	srv := &Server{
		Sync:     sync,
		Invoices: invoices,
		Users:    users,
		Search:   searchSvc,
		DB:       fakePinger{},
		Auth:     testAuthConfig(),
		Version:  "test",
	}
	return srv, sync, invoices, users, searchSvc
}

// doJSON performs a request against the router, optionally authenticated.
func doJSON(t *testing.T, router http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func bearerFor(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token, _, err := auth.Issue(testAuthConfig(), userID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return out
}

func TestHealth(t *testing.T) {
	srv, _, _, _, _ := testServer()
	rec := doJSON(t, srv.Routes(), "GET", "/health", nil, "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeMap(t, rec)
	if body["status"] != "ok" || body["service"] != "gigpilot-api" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
}

func TestHealthDB(t *testing.T) {
	srv, _, _, _, _ := testServer()
	router := srv.Routes()

	rec := doJSON(t, router, "GET", "/health/db", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	srv.DB = fakePinger{err: errors.New("connection refused")}
	rec = doJSON(t, srv.Routes(), "GET", "/health/db", nil, "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	body := decodeMap(t, rec)
	if body["database"] != "unreachable" {
		t.Errorf("body = %v", body)
	}
}

func TestCorrelationIDEchoed(t *testing.T) {
	srv, _, _, _, _ := testServer()
	router := srv.Routes()

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Correlation-ID", "corr-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Correlation-ID"); got != "corr-123" {
		t.Errorf("X-Correlation-ID = %q, want echo", got)
	}

	// Absent header: the server generates one.
	rec = doJSON(t, router, "GET", "/health", nil, "")
	if rec.Header().Get("X-Correlation-ID") == "" {
		t.Error("no correlation id generated")
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	srv, _, _, _, _ := testServer()
	router := srv.Routes()

	tests := []struct {
		method, path string
	}{
		{"POST", "/sync/pull"},
		{"POST", "/sync/push"},
		{"GET", "/invoices"},
		{"GET", "/invoices/" + uuid.NewString()},
		{"POST", "/embeddings"},
		{"GET", "/search?q=x"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := doJSON(t, router, tt.method, tt.path, nil, "")
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}
