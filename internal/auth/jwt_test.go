package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testSecret = "test-secret"

func testConfig() Config {
	return Config{Secret: testSecret, Expiry: time.Hour}
}

// signToken builds a token with arbitrary claims for the negative cases.
func signToken(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestIssueRoundTrip(t *testing.T) {
	cfg := testConfig()
	userID := uuid.New()

	token, expiresAt, err := Issue(cfg, userID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if remaining := time.Until(expiresAt); remaining < 59*time.Minute || remaining > time.Hour {
		t.Errorf("expiry %v not about an hour out", remaining)
	}

	var gotUser uuid.UUID
	var called bool
	handler := Middleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		gotUser, _ = UserID(r.Context())
	}))

	req := httptest.NewRequest("POST", "/sync/pull", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", w.Code, w.Body.String())
	}
	if !called {
		t.Fatal("handler never ran")
	}
	if gotUser != userID {
		t.Errorf("context user = %s, want %s", gotUser, userID)
	}
}

func TestMiddlewareRejections(t *testing.T) {
	cfg := testConfig()
	userID := uuid.New()
	now := time.Now()

	tests := []struct {
		name   string
		header string
	}{
		{name: "no header", header: ""},
		{name: "not a bearer", header: "Basic dXNlcjpwYXNz"},
		{name: "garbage token", header: "Bearer not.a.jwt"},
		{
			name: "wrong secret",
			header: "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("other-secret"), jwt.MapClaims{
				"sub": userID.String(),
				"exp": now.Add(time.Hour).Unix(),
			}),
		},
		{
			name: "expired",
			header: "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
				"sub": userID.String(),
				"exp": now.Add(-time.Minute).Unix(),
			}),
		},
		{
			name: "missing subject",
			header: "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
				"exp": now.Add(time.Hour).Unix(),
			}),
		},
		{
			name: "subject not a uuid",
			header: "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
				"sub": "user-42",
				"exp": now.Add(time.Hour).Unix(),
			}),
		},
		{
			// alg=none style downgrade: unsigned tokens never pass.
			name: "unsigned token",
			header: "Bearer " + func() string {
				tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
					"sub": userID.String(),
					"exp": now.Add(time.Hour).Unix(),
				}).SignedString(jwt.UnsafeAllowNoneSignatureType)
				if err != nil {
					t.Fatalf("sign none token: %v", err)
				}
				return tok
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Middleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("handler ran despite invalid credentials")
			}))

			req := httptest.NewRequest("POST", "/sync/push", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
		})
	}
}

func TestUserIDMissingFromContext(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if _, ok := UserID(req.Context()); ok {
		t.Error("UserID reported a user on an empty context")
	}
}
