package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/gridshare/gridshare/internal/db"
	apperrors "github.com/gridshare/gridshare/internal/errors"
	"github.com/gridshare/gridshare/internal/models"
	"github.com/gridshare/gridshare/internal/perms"
)

// InviteHandler handles shareable invite links.
type InviteHandler struct {
	repo      *db.Repository
	resolver  *perms.Resolver
	publicURL string
}

// NewInviteHandler creates a new InviteHandler. publicURL is the frontend
// origin used to build shareable URLs.
func NewInviteHandler(repo *db.Repository, resolver *perms.Resolver, publicURL string) *InviteHandler {
	return &InviteHandler{repo: repo, resolver: resolver, publicURL: publicURL}
}

// Create handles POST /api/documents/{id}/invite-links. Owner only.
func (h *InviteHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r)

	var request struct {
		CanView   bool  `json:"canView"`
		CanEdit   bool  `json:"canEdit"`
		CanPrint  bool  `json:"canPrint"`
		CanCopy   bool  `json:"canCopy"`
		ExpiresAt int64 `json:"expiresAt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		WriteError(w, apperrors.New(apperrors.ErrInvalid, "invalid request body"))
		return
	}
	if request.ExpiresAt != 0 && request.ExpiresAt <= time.Now().Unix() {
		WriteError(w, apperrors.New(apperrors.ErrInvalid, "expiresAt must be in the future"))
		return
	}

	doc, access, err := h.resolver.ResolveByID(user.UserID, mux.Vars(r)["id"])
	if err != nil {
		WriteError(w, err)
		return
	}
	if !access.IsOwner {
		WriteError(w, apperrors.New(apperrors.ErrPermission, "only the owner can create invite links"))
		return
	}

	link := &models.InviteLink{
		DocumentID: doc.ID,
		CreatorID:  models.UUID(user.UserID),
		CanView:    request.CanView,
		CanEdit:    request.CanEdit,
		CanPrint:   request.CanPrint,
		CanCopy:    request.CanCopy,
		ExpiresAt:  request.ExpiresAt,
	}
	if err := h.repo.CreateInviteLink(link); err != nil {
		WriteError(w, apperrors.Wrap(apperrors.ErrPersistence, "failed to create invite link", err))
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"link": link,
		"url":  fmt.Sprintf("%s/invite/%s", h.publicURL, link.Token),
	})
}

// Revoke handles POST /api/documents/{id}/invite-links/{token}/revoke.
// Owner only; revoking twice is an error.
func (h *InviteHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r)
	vars := mux.Vars(r)

	_, access, err := h.resolver.ResolveByID(user.UserID, vars["id"])
	if err != nil {
		WriteError(w, err)
		return
	}
	if !access.IsOwner {
		WriteError(w, apperrors.New(apperrors.ErrPermission, "only the owner can revoke invite links"))
		return
	}

	if err := h.repo.RevokeInviteLink(vars["token"]); err != nil {
		WriteError(w, apperrors.Wrap(apperrors.ErrNotFound, "invite link not found or already revoked", err))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"revoked": true})
}

// Consume handles POST /api/invites/consume. The authenticated caller
// redeems a token and receives the link's capability bundle.
func (h *InviteHandler) Consume(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r)

	var request struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil || request.Token == "" {
		WriteError(w, apperrors.New(apperrors.ErrInvalid, "token is required"))
		return
	}

	perm, err := h.resolver.ConsumeInvite(user.UserID, request.Token)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"permission": perm})
}
