// Package db provides CRUD repository operations for gridshare data models.
package db

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/gridshare/gridshare/internal/models"
	"github.com/gridshare/gridshare/internal/uuid"
)

// Repository provides CRUD operations for all models.
// Frequently used point queries go through a prepared statement cache.
type Repository struct {
	db *sql.DB

	// Statements are prepared on first use and cached for reuse
	stmtCache sync.Map // map[string]*sql.Stmt
}

// NewRepository creates a new Repository instance.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// PrepareStmt gets or creates a prepared statement from cache.
// Key is the query string, value is the prepared statement.
func (r *Repository) PrepareStmt(query string) (*sql.Stmt, error) {
	if stmt, ok := r.stmtCache.Load(query); ok {
		return stmt.(*sql.Stmt), nil
	}

	stmt, err := r.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	actual, loaded := r.stmtCache.LoadOrStore(query, stmt)
	if loaded {
		// Another goroutine already prepared this, close our duplicate
		stmt.Close()
		return actual.(*sql.Stmt), nil
	}

	return stmt, nil
}

// Close closes all cached prepared statements.
// Should be called when the Repository is no longer needed.
func (r *Repository) Close() error {
	var firstErr error
	r.stmtCache.Range(func(key, value interface{}) bool {
		stmt := value.(*sql.Stmt)
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}

// =====================================================
// User Operations
// =====================================================

// CreateUser creates a new user account.
func (r *Repository) CreateUser(user *models.User) error {
	user.ID = models.UUID(uuid.New())
	user.CreatedAt = time.Now().Unix()

	query := `
	INSERT INTO users (id, email, name, password_hash, created_at)
	VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, user.ID, user.Email, user.Name,
		user.PasswordHash, user.CreatedAt)
	return err
}

// GetUser retrieves a user by ID.
func (r *Repository) GetUser(id string) (*models.User, error) {
	query := `SELECT id, email, name, password_hash, created_at FROM users WHERE id = ?`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return nil, err
	}

	var user models.User
	err = stmt.QueryRow(id).Scan(&user.ID, &user.Email, &user.Name,
		&user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email.
func (r *Repository) GetUserByEmail(email string) (*models.User, error) {
	query := `SELECT id, email, name, password_hash, created_at FROM users WHERE email = ?`
	var user models.User
	err := r.db.QueryRow(query, email).Scan(&user.ID, &user.Email, &user.Name,
		&user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SearchUsers returns accounts whose email or name contains the query,
// newest first, capped at 50. An empty query lists the newest accounts.
func (r *Repository) SearchUsers(q string) ([]*models.User, error) {
	query := `
	SELECT id, email, name, password_hash, created_at FROM users
	WHERE email LIKE ? OR name LIKE ?
	ORDER BY created_at DESC, rowid DESC LIMIT 50
	`
	pattern := "%" + q + "%"
	rows, err := r.db.Query(query, pattern, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var user models.User
		err := rows.Scan(&user.ID, &user.Email, &user.Name,
			&user.PasswordHash, &user.CreatedAt)
		if err != nil {
			return nil, err
		}
		users = append(users, &user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// =====================================================
// Document Operations
// =====================================================

// CreateDocument creates a new document.
func (r *Repository) CreateDocument(doc *models.Document) error {
	now := time.Now().Unix()
	doc.ID = models.UUID(uuid.New())
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if doc.Content == "" {
		doc.Content = models.EmptyContent
	}

	query := `
	INSERT INTO documents (id, owner_id, title, content, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, doc.ID, doc.OwnerID, doc.Title, doc.Content,
		doc.CreatedAt, doc.UpdatedAt)
	return err
}

// GetDocument retrieves a document by ID.
func (r *Repository) GetDocument(id string) (*models.Document, error) {
	query := `SELECT id, owner_id, title, content, created_at, updated_at FROM documents WHERE id = ?`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return nil, err
	}

	var doc models.Document
	err = stmt.QueryRow(id).Scan(&doc.ID, &doc.OwnerID, &doc.Title, &doc.Content,
		&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListOwnedDocuments returns documents owned by the user.
func (r *Repository) ListOwnedDocuments(userID string) ([]*models.Document, error) {
	query := `
	SELECT id, owner_id, title, content, created_at, updated_at
	FROM documents WHERE owner_id = ? ORDER BY updated_at DESC
	`
	return r.queryDocuments(query, userID)
}

// ListSharedDocuments returns documents shared with the user through a
// stored permission row.
func (r *Repository) ListSharedDocuments(userID string) ([]*models.Document, error) {
	query := `
	SELECT d.id, d.owner_id, d.title, d.content, d.created_at, d.updated_at
	FROM documents d
	JOIN permissions p ON p.document_id = d.id
	WHERE p.user_id = ? AND p.can_view = 1 ORDER BY d.updated_at DESC
	`
	return r.queryDocuments(query, userID)
}

func (r *Repository) queryDocuments(query string, args ...interface{}) ([]*models.Document, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		var doc models.Document
		err := rows.Scan(&doc.ID, &doc.OwnerID, &doc.Title, &doc.Content,
			&doc.CreatedAt, &doc.UpdatedAt)
		if err != nil {
			return nil, err
		}
		docs = append(docs, &doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

// =====================================================
// Permission Operations
// =====================================================

// GetPermission retrieves the stored permission row for a (user, document)
// pair. Returns sql.ErrNoRows when no row exists.
func (r *Repository) GetPermission(userID, documentID string) (*models.Permission, error) {
	query := `
	SELECT id, user_id, document_id, can_view, can_edit, can_print, can_copy, created_at, updated_at
	FROM permissions WHERE user_id = ? AND document_id = ?
	`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return nil, err
	}

	var p models.Permission
	err = stmt.QueryRow(userID, documentID).Scan(&p.ID, &p.UserID, &p.DocumentID,
		&p.CanView, &p.CanEdit, &p.CanPrint, &p.CanCopy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertPermission creates or overwrites the permission row for the pair.
func (r *Repository) UpsertPermission(p *models.Permission) error {
	now := time.Now().Unix()
	if p.ID == "" {
		p.ID = models.UUID(uuid.New())
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	query := `
	INSERT INTO permissions (id, user_id, document_id, can_view, can_edit, can_print, can_copy, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id, document_id) DO UPDATE SET
		can_view = excluded.can_view,
		can_edit = excluded.can_edit,
		can_print = excluded.can_print,
		can_copy = excluded.can_copy,
		updated_at = excluded.updated_at
	`
	_, err := r.db.Exec(query, p.ID, p.UserID, p.DocumentID, p.CanView, p.CanEdit,
		p.CanPrint, p.CanCopy, p.CreatedAt, p.UpdatedAt)
	return err
}

// =====================================================
// Change Log Operations
// =====================================================

// ApplyChange persists a content transition atomically: the document's
// current content and the new change log entry become visible together or
// not at all. Callers must serialize invocations per document; this method
// provides atomicity, not ordering.
func (r *Repository) ApplyChange(entry *models.ChangeEntry) error {
	entry.ID = models.UUID(uuid.New())
	entry.CreatedAt = time.Now().Unix()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`UPDATE documents SET content = ?, updated_at = ? WHERE id = ?`,
		entry.After, entry.CreatedAt, entry.DocumentID,
	)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("document not found: %s", entry.DocumentID)
	}

	var basedOn interface{}
	if entry.BasedOn != "" {
		basedOn = entry.BasedOn.String()
	}
	_, err = tx.Exec(`
	INSERT INTO change_log (id, document_id, user_id, kind, before_content, after_content, based_on, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.DocumentID, entry.UserID, entry.Kind,
		entry.Before, entry.After, basedOn, entry.CreatedAt,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// ListChanges returns all change entries for a document, most recent first.
// The rowid tiebreak keeps entries written within the same second ordered
// by insertion.
func (r *Repository) ListChanges(documentID string) ([]*models.ChangeEntry, error) {
	query := `
	SELECT id, document_id, user_id, kind, before_content, after_content, based_on, created_at
	FROM change_log WHERE document_id = ?
	ORDER BY created_at DESC, rowid DESC
	`
	rows, err := r.db.Query(query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.ChangeEntry
	for rows.Next() {
		entry, err := scanChangeEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// GetChange retrieves a change entry by ID.
func (r *Repository) GetChange(id string) (*models.ChangeEntry, error) {
	query := `
	SELECT id, document_id, user_id, kind, before_content, after_content, based_on, created_at
	FROM change_log WHERE id = ?
	`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return nil, err
	}
	return scanChangeEntry(stmt.QueryRow(id).Scan)
}

func scanChangeEntry(scan func(dest ...interface{}) error) (*models.ChangeEntry, error) {
	var entry models.ChangeEntry
	var basedOn sql.NullString
	err := scan(&entry.ID, &entry.DocumentID, &entry.UserID, &entry.Kind,
		&entry.Before, &entry.After, &basedOn, &entry.CreatedAt)
	if err != nil {
		return nil, err
	}
	if basedOn.Valid {
		entry.BasedOn = models.UUID(basedOn.String)
	}
	return &entry, nil
}

// =====================================================
// Invite Link Operations
// =====================================================

// CreateInviteLink creates a new invite link.
func (r *Repository) CreateInviteLink(link *models.InviteLink) error {
	link.ID = models.UUID(uuid.New())
	if link.Token == "" {
		link.Token = uuid.New()
	}
	link.CreatedAt = time.Now().Unix()

	query := `
	INSERT INTO invite_links (id, token, document_id, creator_id, can_view, can_edit, can_print, can_copy, expires_at, revoked_at, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, link.ID, link.Token, link.DocumentID, link.CreatorID,
		link.CanView, link.CanEdit, link.CanPrint, link.CanCopy,
		link.ExpiresAt, link.RevokedAt, link.CreatedAt)
	return err
}

// GetInviteLinkByToken retrieves an invite link by its token.
func (r *Repository) GetInviteLinkByToken(token string) (*models.InviteLink, error) {
	query := `
	SELECT id, token, document_id, creator_id, can_view, can_edit, can_print, can_copy, expires_at, revoked_at, created_at
	FROM invite_links WHERE token = ?
	`
	var link models.InviteLink
	err := r.db.QueryRow(query, token).Scan(&link.ID, &link.Token, &link.DocumentID,
		&link.CreatorID, &link.CanView, &link.CanEdit, &link.CanPrint, &link.CanCopy,
		&link.ExpiresAt, &link.RevokedAt, &link.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// RevokeInviteLink marks an invite link as revoked.
func (r *Repository) RevokeInviteLink(token string) error {
	query := `UPDATE invite_links SET revoked_at = ? WHERE token = ? AND revoked_at = 0`
	result, err := r.db.Exec(query, time.Now().Unix(), token)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// =====================================================
// Snapshot Operations
// =====================================================

// CreateSnapshot stores a labeled copy of a document's current content.
func (r *Repository) CreateSnapshot(snap *models.Snapshot) error {
	snap.ID = models.UUID(uuid.New())
	snap.CreatedAt = time.Now().Unix()

	query := `
	INSERT INTO snapshots (id, document_id, content, label, created_at)
	VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, snap.ID, snap.DocumentID, snap.Content,
		snap.Label, snap.CreatedAt)
	return err
}

// ListSnapshots returns all snapshots for a document, most recent first.
func (r *Repository) ListSnapshots(documentID string) ([]*models.Snapshot, error) {
	query := `
	SELECT id, document_id, content, label, created_at
	FROM snapshots WHERE document_id = ?
	ORDER BY created_at DESC, rowid DESC
	`
	rows, err := r.db.Query(query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []*models.Snapshot
	for rows.Next() {
		var snap models.Snapshot
		err := rows.Scan(&snap.ID, &snap.DocumentID, &snap.Content,
			&snap.Label, &snap.CreatedAt)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, &snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return snaps, nil
}
