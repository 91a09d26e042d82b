package handlers

import (
	"net/http"
	"strings"

	"github.com/gridshare/gridshare/internal/db"
	apperrors "github.com/gridshare/gridshare/internal/errors"
)

// UserHandler handles account lookup. Sharing needs it: the permission
// endpoint takes a target user id, which clients find here.
type UserHandler struct {
	repo *db.Repository
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(repo *db.Repository) *UserHandler {
	return &UserHandler{repo: repo}
}

// Search handles GET /api/users?q=. Matches email or name, newest first,
// capped at 50.
func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))

	users, err := h.repo.SearchUsers(q)
	if err != nil {
		WriteError(w, apperrors.Wrap(apperrors.ErrPersistence, "failed to search users", err))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}
