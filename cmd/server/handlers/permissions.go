package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/gridshare/gridshare/internal/db"
	apperrors "github.com/gridshare/gridshare/internal/errors"
	"github.com/gridshare/gridshare/internal/models"
	"github.com/gridshare/gridshare/internal/perms"
	"github.com/gridshare/gridshare/internal/uuid"
)

// PermissionHandler handles per-document capability grants. Only the
// document owner may change them.
type PermissionHandler struct {
	repo     *db.Repository
	resolver *perms.Resolver
}

// NewPermissionHandler creates a new PermissionHandler.
func NewPermissionHandler(repo *db.Repository, resolver *perms.Resolver) *PermissionHandler {
	return &PermissionHandler{repo: repo, resolver: resolver}
}

// Upsert handles PUT /api/documents/{id}/permissions. The four flags are
// replaced wholesale for the target user.
func (h *PermissionHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r)

	var request struct {
		UserID   string `json:"userId"`
		CanView  bool   `json:"canView"`
		CanEdit  bool   `json:"canEdit"`
		CanPrint bool   `json:"canPrint"`
		CanCopy  bool   `json:"canCopy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		WriteError(w, apperrors.New(apperrors.ErrInvalid, "invalid request body"))
		return
	}
	if !uuid.IsValid(request.UserID) {
		WriteError(w, apperrors.New(apperrors.ErrInvalid, "userId must be a valid id"))
		return
	}

	doc, access, err := h.resolver.ResolveByID(user.UserID, mux.Vars(r)["id"])
	if err != nil {
		WriteError(w, err)
		return
	}
	if !access.IsOwner {
		WriteError(w, apperrors.New(apperrors.ErrPermission, "only the owner can manage permissions"))
		return
	}
	if request.UserID == doc.OwnerID.String() {
		WriteError(w, apperrors.New(apperrors.ErrInvalid, "owner permissions are implicit"))
		return
	}
	if _, err := h.repo.GetUser(request.UserID); err != nil {
		WriteError(w, apperrors.Wrap(apperrors.ErrNotFound, "target user not found", err))
		return
	}

	perm := &models.Permission{
		UserID:     models.UUID(request.UserID),
		DocumentID: doc.ID,
		CanView:    request.CanView,
		CanEdit:    request.CanEdit,
		CanPrint:   request.CanPrint,
		CanCopy:    request.CanCopy,
	}
	if err := h.repo.UpsertPermission(perm); err != nil {
		WriteError(w, apperrors.Wrap(apperrors.ErrPersistence, "failed to store permission", err))
		return
	}

	stored, err := h.repo.GetPermission(request.UserID, doc.ID.String())
	if err != nil {
		WriteError(w, apperrors.Wrap(apperrors.ErrPersistence, "failed to reload permission", err))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"permission": stored})
}
