package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gridshare/gridshare/internal/auth"
	"github.com/gridshare/gridshare/internal/db"
	apperrors "github.com/gridshare/gridshare/internal/errors"
	"github.com/gridshare/gridshare/internal/models"
)

// AuthHandler handles account registration and login.
type AuthHandler struct {
	repo     *db.Repository
	verifier *auth.Verifier
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(repo *db.Repository, verifier *auth.Verifier) *AuthHandler {
	return &AuthHandler{repo: repo, verifier: verifier}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		WriteError(w, apperrors.New(apperrors.ErrInvalid, "invalid request body"))
		return
	}
	request.Email = strings.TrimSpace(strings.ToLower(request.Email))
	if request.Email == "" || !strings.Contains(request.Email, "@") {
		WriteError(w, apperrors.New(apperrors.ErrInvalid, "valid email is required"))
		return
	}
	if len(request.Password) < 6 {
		WriteError(w, apperrors.New(apperrors.ErrInvalid, "password too short"))
		return
	}

	hash, err := auth.HashPassword(request.Password)
	if err != nil {
		WriteError(w, err)
		return
	}

	user := &models.User{Email: request.Email, Name: request.Name, PasswordHash: hash}
	if err := h.repo.CreateUser(user); err != nil {
		// unique email constraint
		WriteError(w, apperrors.Wrap(apperrors.ErrDuplicate, "email already registered", err))
		return
	}

	token, err := h.verifier.Sign(user.ID.String(), user.Email)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"token": token, "user": user})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		WriteError(w, apperrors.New(apperrors.ErrInvalid, "invalid request body"))
		return
	}

	user, err := h.repo.GetUserByEmail(strings.TrimSpace(strings.ToLower(request.Email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteError(w, apperrors.New(apperrors.ErrAuthFailed, "invalid credentials"))
			return
		}
		WriteError(w, apperrors.Wrap(apperrors.ErrPersistence, "failed to load user", err))
		return
	}
	if !auth.VerifyPassword(request.Password, user.PasswordHash) {
		WriteError(w, apperrors.New(apperrors.ErrAuthFailed, "invalid credentials"))
		return
	}

	token, err := h.verifier.Sign(user.ID.String(), user.Email)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"token": token, "user": user})
}
