package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/gigpilot/gigpilot-api/internal/auth"
	"github.com/gigpilot/gigpilot-api/internal/store"
)

type registerRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=8"`
	FullName *string `json:"full_name,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	UserID    uuid.UUID `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleRegister creates an account. POST /auth/register.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error().Err(err).Msg("bcrypt hash failed")
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	user, err := s.Users.CreateUser(r.Context(), req.Email, string(hash), req.FullName)
	if errors.Is(err, store.ErrDuplicateEmail) {
		writeError(w, http.StatusConflict, "email already registered")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("create user failed")
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	log.Info().Str("user_id", user.ID.String()).Msg("user registered")
	writeJSON(w, http.StatusCreated, user)
}

// handleLogin verifies credentials and mints a bearer token. Unknown email,
// wrong password and inactive account all return the same 401 so the
// endpoint cannot be used to probe which addresses have accounts.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	user, err := s.Users.GetUserByEmail(r.Context(), req.Email)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("login lookup failed")
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	if !user.IsActive {
		log.Warn().Str("user_id", user.ID.String()).Msg("login attempt on inactive account")
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, expiresAt, err := auth.Issue(s.Auth, user.ID)
	if err != nil {
		log.Error().Err(err).Msg("token mint failed")
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	// Best-effort bookkeeping; a failure here must not fail the login.
	if err := s.Users.TouchLastLogin(r.Context(), user.ID); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID.String()).Msg("last_login_at update failed")
	}

	log.Info().Str("user_id", user.ID.String()).Msg("user logged in")
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: expiresAt,
	})
}
