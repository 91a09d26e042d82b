package collab

import (
	"database/sql"
	"encoding/json"
	"errors"
	"sync"

	"github.com/gridshare/gridshare/internal/db"
	apperrors "github.com/gridshare/gridshare/internal/errors"
	"github.com/gridshare/gridshare/internal/logging"
	"github.com/gridshare/gridshare/internal/models"
	"github.com/gridshare/gridshare/internal/perms"
	"github.com/gridshare/gridshare/internal/uuid"
)

// Coordinator is the serialization point for every content mutation. Each
// document has a lock covering the whole read-modify-persist-log sequence:
// a second mutation for the same document waits until the first completes,
// which is what keeps the change log's before/after chain intact. Mutations
// on different documents proceed in parallel.
//
// The broadcast is enqueued before the document lock is released so that a
// concurrently connecting session either snapshots the new content or is
// already registered to receive the frame; actual delivery stays
// fire-and-forget through each session's send buffer.
type Coordinator struct {
	repo     *db.Repository
	registry *Registry
	resolver *perms.Resolver

	mu       sync.Mutex
	docLocks map[string]*sync.Mutex
}

// NewCoordinator creates a Coordinator with its own session registry.
func NewCoordinator(repo *db.Repository, resolver *perms.Resolver) *Coordinator {
	return &Coordinator{
		repo:     repo,
		registry: NewRegistry(),
		resolver: resolver,
		docLocks: make(map[string]*sync.Mutex),
	}
}

// Registry exposes the coordinator's session registry.
func (c *Coordinator) Registry() *Registry {
	return c.registry
}

// lockFor returns the mutex serializing mutations for one document.
// Locks are small and live for the process lifetime; they are not reaped.
func (c *Coordinator) lockFor(documentID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	lock, ok := c.docLocks[documentID]
	if !ok {
		lock = &sync.Mutex{}
		c.docLocks[documentID] = lock
	}
	return lock
}

// Connect opens a live session for a user on a document. It requires the
// view capability; on denial the caller must refuse the connection rather
// than answer with an error frame. The returned content snapshot is read
// under the document lock, so a connecting client sees either the state
// before or after any in-flight mutation, never a torn one.
func (c *Coordinator) Connect(documentID, userID string, sender Sender) (*Session, json.RawMessage, error) {
	doc, access, err := c.resolver.ResolveByID(userID, documentID)
	if err != nil {
		return nil, nil, err
	}
	if !access.CanView {
		return nil, nil, apperrors.New(apperrors.ErrPermission, "no view rights")
	}

	session := &Session{
		id:         uuid.New(),
		userID:     userID,
		documentID: documentID,
		canEdit:    access.CanEdit,
		sender:     sender,
	}

	lock := c.lockFor(documentID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock; the resolve above ran outside it.
	doc, err = c.repo.GetDocument(documentID)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrPersistence, "failed to read snapshot", err)
	}
	c.registry.Register(session)

	logging.Info("session connected", map[string]interface{}{
		"document_id": documentID,
		"user_id":     userID,
		"can_edit":    session.canEdit,
		"sessions":    c.registry.Count(documentID),
	})
	return session, doc.ContentJSON(), nil
}

// Disconnect removes a session from the registry. Idempotent.
func (c *Coordinator) Disconnect(s *Session) {
	if s == nil {
		return
	}
	c.registry.Unregister(s)
	logging.Info("session disconnected", map[string]interface{}{
		"document_id": s.documentID,
		"user_id":     s.userID,
		"sessions":    c.registry.Count(s.documentID),
	})
}

// SubmitUpdate applies a full-content edit proposed over a live session.
// Updates from sessions without the cached edit capability are dropped
// silently: no error to the submitter, no log entry, no broadcast. That is
// deliberate policy, not an oversight. A persistence failure aborts the
// whole operation and is returned to the submitter only.
func (c *Coordinator) SubmitUpdate(s *Session, content json.RawMessage) error {
	if !s.canEdit {
		logging.Debug("dropping update from non-editor", map[string]interface{}{
			"document_id": s.documentID,
			"user_id":     s.userID,
		})
		return nil
	}
	if !json.Valid(content) {
		// Protocol noise; drop without touching the document.
		return nil
	}

	lock := c.lockFor(s.documentID)
	lock.Lock()
	defer lock.Unlock()

	entry, err := c.applyLocked(s.documentID, s.userID, models.ChangeUpdate, string(content), "")
	if err != nil {
		return err
	}

	c.registry.Broadcast(s.documentID, s, Message{
		Type:    MessageRemoteUpdate,
		Content: json.RawMessage(entry.After),
	})
	return nil
}

// Update applies a full-content edit arriving through the REST boundary.
// Unlike the live-session path the capability check failure is surfaced,
// since a request/response caller expects an answer. The accepted edit is
// broadcast to every live session on the document.
func (c *Coordinator) Update(documentID, userID string, content json.RawMessage) (*models.ChangeEntry, error) {
	_, access, err := c.resolver.ResolveByID(userID, documentID)
	if err != nil {
		return nil, err
	}
	if !access.CanEdit {
		return nil, apperrors.New(apperrors.ErrPermission, "no edit rights")
	}
	if !json.Valid(content) {
		return nil, apperrors.New(apperrors.ErrInvalid, "content is not valid JSON")
	}

	lock := c.lockFor(documentID)
	lock.Lock()
	defer lock.Unlock()

	entry, err := c.applyLocked(documentID, userID, models.ChangeUpdate, string(content), "")
	if err != nil {
		return nil, err
	}

	c.registry.Broadcast(documentID, nil, Message{
		Type:    MessageRemoteUpdate,
		Content: json.RawMessage(entry.After),
	})
	return entry, nil
}

// Revert restores the document to the state recorded before the target
// change entry and logs the revert as a new entry referencing it. History
// only grows; the target entry itself is untouched. The restored content
// is broadcast to every live session, including other sessions of the
// reverting user.
func (c *Coordinator) Revert(documentID, userID, targetEntryID string) (*models.ChangeEntry, error) {
	_, access, err := c.resolver.ResolveByID(userID, documentID)
	if err != nil {
		return nil, err
	}
	if !access.CanEdit {
		return nil, apperrors.New(apperrors.ErrPermission, "no edit rights")
	}

	target, err := c.repo.GetChange(targetEntryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.New(apperrors.ErrNotFound, "change entry not found")
		}
		return nil, apperrors.Wrap(apperrors.ErrPersistence, "failed to load change entry", err)
	}
	if target.DocumentID.String() != documentID {
		return nil, apperrors.New(apperrors.ErrNotFound, "change entry belongs to another document")
	}

	lock := c.lockFor(documentID)
	lock.Lock()
	defer lock.Unlock()

	entry, err := c.applyLocked(documentID, userID, models.ChangeRevert, target.Before, target.ID.String())
	if err != nil {
		return nil, err
	}

	c.registry.Broadcast(documentID, nil, Message{
		Type:    MessageRemoteUpdate,
		Content: json.RawMessage(entry.After),
	})
	return entry, nil
}

// applyLocked runs the read-modify-persist-log sequence. The caller must
// hold the document's lock.
func (c *Coordinator) applyLocked(documentID, userID string, kind models.ChangeKind, after, basedOn string) (*models.ChangeEntry, error) {
	doc, err := c.repo.GetDocument(documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.New(apperrors.ErrNotFound, "document not found")
		}
		return nil, apperrors.Wrap(apperrors.ErrPersistence, "failed to read document", err)
	}

	entry := &models.ChangeEntry{
		DocumentID: doc.ID,
		UserID:     models.UUID(userID),
		Kind:       kind,
		Before:     doc.Content,
		After:      after,
		BasedOn:    models.UUID(basedOn),
	}
	if err := c.repo.ApplyChange(entry); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrPersistence, "failed to apply change", err)
	}

	logging.Debug("change applied", map[string]interface{}{
		"document_id": documentID,
		"user_id":     userID,
		"kind":        string(kind),
		"entry_id":    entry.ID.String(),
	})
	return entry, nil
}
