package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/salescope/salescope/internal/api/response"
	"github.com/salescope/salescope/internal/auth"
	"github.com/salescope/salescope/internal/store"
	"github.com/salescope/salescope/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 8

// NewRegisterHandler returns an http.HandlerFunc for POST /api/v1/auth/register.
// Role is assignable only at creation; it defaults to viewer.
func NewRegisterHandler(s store.Store, tokens *auth.Tokens) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
			Name     string `json:"name"`
			Role     string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		req.Email = strings.TrimSpace(strings.ToLower(req.Email))
		if req.Email == "" || !strings.Contains(req.Email, "@") {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "a valid email is required", nil)
			return
		}
		if len(req.Password) < minPasswordLen {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"password must be at least 8 characters", nil)
			return
		}
		if req.Role == "" {
			req.Role = models.RoleViewer
		}
		if !models.ValidRole(req.Role) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"role must be one of admin, analyst, viewer", nil)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to hash password", nil)
			return
		}

		now := time.Now().UTC()
		user := &models.User{
			ID:           uuid.New(),
			Email:        req.Email,
			PasswordHash: string(hash),
			Name:         req.Name,
			Role:         req.Role,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err := s.CreateUser(r.Context(), user); err != nil {
			if errors.Is(err, store.ErrDuplicateKey) {
				response.Error(w, http.StatusConflict, "EMAIL_TAKEN", "Email already registered", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create user", nil)
			return
		}

		token, err := tokens.Issue(user.ID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to issue token", nil)
			return
		}

		response.Created(w, authResponse{Token: token, User: user})
	}
}

// NewLoginHandler returns an http.HandlerFunc for POST /api/v1/auth/login.
func NewLoginHandler(s store.Store, tokens *auth.Tokens) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		req.Email = strings.TrimSpace(strings.ToLower(req.Email))

		user, err := s.GetUserByEmail(r.Context(), req.Email)
		if err != nil {
			// Same response for unknown email and wrong password.
			response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
			return
		}

		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
			response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
			return
		}

		token, err := tokens.Issue(user.ID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to issue token", nil)
			return
		}

		response.JSON(w, authResponse{Token: token, User: user})
	}
}

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}
