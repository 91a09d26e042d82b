// Package perms resolves user capabilities on documents. All authorization
// decisions, both on the live-session path and the REST path, go through
// the single Resolver so the semantics cannot drift apart.
package perms

import (
	"database/sql"
	"errors"
	"time"

	"github.com/gridshare/gridshare/internal/db"
	apperrors "github.com/gridshare/gridshare/internal/errors"
	"github.com/gridshare/gridshare/internal/models"
)

// Access is the resolved capability set of one user on one document.
type Access struct {
	IsOwner  bool `json:"isOwner"`
	CanView  bool `json:"canView"`
	CanEdit  bool `json:"canEdit"`
	CanPrint bool `json:"canPrint"`
	CanCopy  bool `json:"canCopy"`
}

// Resolver answers capability questions for (user, document) pairs.
type Resolver struct {
	repo *db.Repository
}

// NewResolver creates a Resolver backed by the given repository.
func NewResolver(repo *db.Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve computes the user's access on an already-loaded document.
// The owner implicitly holds every capability; otherwise each flag comes
// from the stored permission row, and no row means no access.
func (r *Resolver) Resolve(userID string, doc *models.Document) (Access, error) {
	if doc.OwnerID.String() == userID {
		return Access{IsOwner: true, CanView: true, CanEdit: true, CanPrint: true, CanCopy: true}, nil
	}

	perm, err := r.repo.GetPermission(userID, doc.ID.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Access{}, nil
		}
		return Access{}, apperrors.Wrap(apperrors.ErrPersistence, "failed to load permission", err)
	}

	return Access{
		CanView:  perm.CanView,
		CanEdit:  perm.CanEdit,
		CanPrint: perm.CanPrint,
		CanCopy:  perm.CanCopy,
	}, nil
}

// ResolveByID loads the document and resolves access in one step.
// Returns NOT_FOUND when the document does not exist.
func (r *Resolver) ResolveByID(userID, documentID string) (*models.Document, Access, error) {
	doc, err := r.repo.GetDocument(documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, Access{}, apperrors.New(apperrors.ErrNotFound, "document not found")
		}
		return nil, Access{}, apperrors.Wrap(apperrors.ErrPersistence, "failed to load document", err)
	}
	access, err := r.Resolve(userID, doc)
	if err != nil {
		return nil, Access{}, err
	}
	return doc, access, nil
}

// ConsumeInvite materializes a permission row for the consuming user from
// an invite link's capability bundle, overwriting any existing row.
func (r *Resolver) ConsumeInvite(userID, token string) (*models.Permission, error) {
	link, err := r.repo.GetInviteLinkByToken(token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.New(apperrors.ErrNotFound, "invalid invite link")
		}
		return nil, apperrors.Wrap(apperrors.ErrPersistence, "failed to load invite link", err)
	}
	if link.Revoked() {
		return nil, apperrors.New(apperrors.ErrLinkRevoked, "invite link revoked")
	}
	if link.Expired(time.Now()) {
		return nil, apperrors.New(apperrors.ErrLinkExpired, "invite link expired")
	}

	perm := &models.Permission{
		UserID:     models.UUID(userID),
		DocumentID: link.DocumentID,
		CanView:    link.CanView,
		CanEdit:    link.CanEdit,
		CanPrint:   link.CanPrint,
		CanCopy:    link.CanCopy,
	}
	if err := r.repo.UpsertPermission(perm); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrPersistence, "failed to store permission", err)
	}
	// Re-read so the caller sees the stored row, not the upsert input.
	stored, err := r.repo.GetPermission(userID, link.DocumentID.String())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrPersistence, "failed to reload permission", err)
	}
	return stored, nil
}
