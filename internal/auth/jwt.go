// Package auth guards the HTTP surface with stateless HS256 bearer tokens.
// The token subject is the user's UUID; there is no session store.
package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type ctxKey string

const ctxUserID ctxKey = "uid"

// Config holds token signing settings.
type Config struct {
	Secret string        // HMAC secret for HS256 tokens
	Expiry time.Duration // lifetime of minted tokens
}

// Issue mints a signed token for a user. Claims are the minimal
// {sub, iat, exp} triple the clients expect.
func Issue(cfg Config, userID uuid.UUID) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(cfg.Expiry)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID.String(),
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
	})
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Middleware validates the Authorization bearer token and stores the user id
// in the request context. Every failure mode is the same uniform 401 so
// callers cannot probe which check tripped.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				log.Warn().Str("path", r.URL.Path).Msg("missing bearer token")
				unauthorized(w)
				return
			}
			tok := strings.TrimPrefix(header, "Bearer ")

			claims := jwt.MapClaims{}
			parsed, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
				// HS256 only; an RS256 token must not verify against the
				// HMAC secret.
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(cfg.Secret), nil
			})
			if err != nil || !parsed.Valid {
				log.Warn().Err(err).Msg("jwt validation failed")
				unauthorized(w)
				return
			}

			sub, ok := claims["sub"].(string)
			if !ok {
				log.Warn().Msg("jwt has no subject claim")
				unauthorized(w)
				return
			}
			userID, err := uuid.Parse(sub)
			if err != nil {
				log.Warn().Str("sub", sub).Msg("jwt subject is not a UUID")
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), ctxUserID, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID extracts the authenticated user from the request context.
func UserID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ctxUserID).(uuid.UUID)
	return id, ok
}

func unauthorized(w http.ResponseWriter) {
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}
