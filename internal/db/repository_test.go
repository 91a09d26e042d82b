// Package db provides unit tests for CRUD repository operations.
package db

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gridshare/gridshare/internal/models"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	// In-memory SQLite is per-connection; keep the pool at one
	db.SetMaxOpenConns(1)

	if err := Ensure(db); err != nil {
		t.Fatalf("Failed to apply schema: %v", err)
	}
	return db
}

func createTestUser(t *testing.T, repo *Repository, email string) *models.User {
	t.Helper()
	user := &models.User{Email: email, Name: "Test User", PasswordHash: "x"}
	if err := repo.CreateUser(user); err != nil {
		t.Fatalf("Failed to create user %s: %v", email, err)
	}
	return user
}

func createTestDocument(t *testing.T, repo *Repository, owner *models.User, content string) *models.Document {
	t.Helper()
	doc := &models.Document{OwnerID: owner.ID, Title: "Test Doc", Content: content}
	if err := repo.CreateDocument(doc); err != nil {
		t.Fatalf("Failed to create document: %v", err)
	}
	return doc
}

// TestCreateAndGetUser tests user creation and lookup.
func TestCreateAndGetUser(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	user := createTestUser(t, repo, "a@example.com")
	if user.ID == "" {
		t.Fatal("CreateUser should assign an ID")
	}

	got, err := repo.GetUser(user.ID.String())
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if got.Email != "a@example.com" {
		t.Errorf("Email = %q, want a@example.com", got.Email)
	}

	byEmail, err := repo.GetUserByEmail("a@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if byEmail.ID != user.ID {
		t.Errorf("GetUserByEmail returned wrong user: %s", byEmail.ID)
	}
}

// TestSearchUsers verifies the email/name filter and the empty-query list.
func TestSearchUsers(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	createTestUser(t, repo, "alice@example.com")
	createTestUser(t, repo, "bob@example.com")

	users, err := repo.SearchUsers("bob")
	if err != nil {
		t.Fatalf("SearchUsers failed: %v", err)
	}
	if len(users) != 1 || users[0].Email != "bob@example.com" {
		t.Errorf("SearchUsers(bob) = %+v, want only bob", users)
	}

	// Name matches too; both fixtures share the same name.
	users, err = repo.SearchUsers("Test User")
	if err != nil {
		t.Fatalf("SearchUsers failed: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("Name search = %d users, want 2", len(users))
	}

	users, err = repo.SearchUsers("")
	if err != nil {
		t.Fatalf("SearchUsers failed: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("Empty query = %d users, want 2", len(users))
	}
}

// TestDuplicateEmailRejected tests the unique email constraint.
func TestDuplicateEmailRejected(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	createTestUser(t, repo, "dup@example.com")
	err := repo.CreateUser(&models.User{Email: "dup@example.com", PasswordHash: "y"})
	if err == nil {
		t.Fatal("Expected duplicate email to be rejected")
	}
}

// TestCreateAndGetDocument tests document creation defaults and lookup.
func TestCreateAndGetDocument(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	owner := createTestUser(t, repo, "owner@example.com")

	doc := &models.Document{OwnerID: owner.ID, Title: "Untitled"}
	if err := repo.CreateDocument(doc); err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}
	if doc.Content != models.EmptyContent {
		t.Errorf("Content = %q, want default %q", doc.Content, models.EmptyContent)
	}

	got, err := repo.GetDocument(doc.ID.String())
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if got.Title != "Untitled" || got.OwnerID != owner.ID {
		t.Errorf("Unexpected document: %+v", got)
	}
}

// TestGetDocumentNotFound verifies sql.ErrNoRows for missing documents.
func TestGetDocumentNotFound(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	_, err := repo.GetDocument("no-such-id")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Expected sql.ErrNoRows, got %v", err)
	}
}

// TestListSharedDocuments verifies the permission join.
func TestListSharedDocuments(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	owner := createTestUser(t, repo, "owner@example.com")
	guest := createTestUser(t, repo, "guest@example.com")
	doc := createTestDocument(t, repo, owner, `{"rows":[]}`)
	createTestDocument(t, repo, owner, `{"rows":[1]}`)

	err := repo.UpsertPermission(&models.Permission{
		UserID: guest.ID, DocumentID: doc.ID, CanView: true,
	})
	if err != nil {
		t.Fatalf("UpsertPermission failed: %v", err)
	}

	owned, err := repo.ListOwnedDocuments(owner.ID.String())
	if err != nil {
		t.Fatalf("ListOwnedDocuments failed: %v", err)
	}
	if len(owned) != 2 {
		t.Errorf("owned = %d, want 2", len(owned))
	}

	shared, err := repo.ListSharedDocuments(guest.ID.String())
	if err != nil {
		t.Fatalf("ListSharedDocuments failed: %v", err)
	}
	if len(shared) != 1 || shared[0].ID != doc.ID {
		t.Errorf("shared = %+v, want only %s", shared, doc.ID)
	}
}

// TestUpsertPermissionOverwrites verifies at most one row per pair.
func TestUpsertPermissionOverwrites(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	owner := createTestUser(t, repo, "owner@example.com")
	guest := createTestUser(t, repo, "guest@example.com")
	doc := createTestDocument(t, repo, owner, `{}`)

	first := &models.Permission{UserID: guest.ID, DocumentID: doc.ID, CanView: true}
	if err := repo.UpsertPermission(first); err != nil {
		t.Fatalf("First upsert failed: %v", err)
	}

	second := &models.Permission{UserID: guest.ID, DocumentID: doc.ID, CanView: true, CanEdit: true}
	if err := repo.UpsertPermission(second); err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}

	got, err := repo.GetPermission(guest.ID.String(), doc.ID.String())
	if err != nil {
		t.Fatalf("GetPermission failed: %v", err)
	}
	if !got.CanEdit {
		t.Error("Second upsert should have enabled can_edit")
	}
	if got.ID != first.ID {
		t.Errorf("Upsert should keep the original row, got id %s want %s", got.ID, first.ID)
	}
}

// TestApplyChangeUpdatesContentAndLog verifies the transactional pair.
func TestApplyChangeUpdatesContentAndLog(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	owner := createTestUser(t, repo, "owner@example.com")
	doc := createTestDocument(t, repo, owner, `{"rows":[]}`)

	entry := &models.ChangeEntry{
		DocumentID: doc.ID,
		UserID:     owner.ID,
		Kind:       models.ChangeUpdate,
		Before:     `{"rows":[]}`,
		After:      `{"rows":[{"id":0}]}`,
	}
	if err := repo.ApplyChange(entry); err != nil {
		t.Fatalf("ApplyChange failed: %v", err)
	}
	if entry.ID == "" || entry.CreatedAt == 0 {
		t.Error("ApplyChange should assign ID and timestamp")
	}

	got, err := repo.GetDocument(doc.ID.String())
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if got.Content != entry.After {
		t.Errorf("Content = %q, want %q", got.Content, entry.After)
	}

	stored, err := repo.GetChange(entry.ID.String())
	if err != nil {
		t.Fatalf("GetChange failed: %v", err)
	}
	if stored.Before != entry.Before || stored.After != entry.After {
		t.Errorf("Stored entry mismatch: %+v", stored)
	}
	if stored.BasedOn != "" {
		t.Errorf("Update entry should have empty based_on, got %q", stored.BasedOn)
	}
}

// TestApplyChangeMissingDocumentRollsBack verifies atomicity: a failed
// document update must leave no change log entry behind.
func TestApplyChangeMissingDocumentRollsBack(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	owner := createTestUser(t, repo, "owner@example.com")

	entry := &models.ChangeEntry{
		DocumentID: "missing-doc",
		UserID:     owner.ID,
		Kind:       models.ChangeUpdate,
		Before:     `{}`,
		After:      `{"x":1}`,
	}
	if err := repo.ApplyChange(entry); err == nil {
		t.Fatal("ApplyChange should fail for a missing document")
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM change_log`).Scan(&count); err != nil {
		t.Fatalf("Count query failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected empty change log after rollback, got %d rows", count)
	}
}

// TestListChangesChainAndOrder verifies most-recent-first ordering and the
// before/after chain across successive changes.
func TestListChangesChainAndOrder(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	owner := createTestUser(t, repo, "owner@example.com")
	doc := createTestDocument(t, repo, owner, `{"v":0}`)

	contents := []string{`{"v":1}`, `{"v":2}`, `{"v":3}`}
	before := `{"v":0}`
	for _, after := range contents {
		entry := &models.ChangeEntry{
			DocumentID: doc.ID,
			UserID:     owner.ID,
			Kind:       models.ChangeUpdate,
			Before:     before,
			After:      after,
		}
		if err := repo.ApplyChange(entry); err != nil {
			t.Fatalf("ApplyChange failed: %v", err)
		}
		before = after
	}

	entries, err := repo.ListChanges(doc.ID.String())
	if err != nil {
		t.Fatalf("ListChanges failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	if entries[0].After != `{"v":3}` {
		t.Errorf("Most recent entry first expected, got %q", entries[0].After)
	}
	// entries are newest-first: entries[i+1].after == entries[i].before
	for i := 0; i < len(entries)-1; i++ {
		if entries[i+1].After != entries[i].Before {
			t.Errorf("Chain broken between entries %d and %d: %q != %q",
				i+1, i, entries[i+1].After, entries[i].Before)
		}
	}

	doc2, err := repo.GetDocument(doc.ID.String())
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if doc2.Content != entries[0].After {
		t.Errorf("Current content %q must equal latest entry after %q", doc2.Content, entries[0].After)
	}
}

// TestInviteLinkLifecycle tests create, lookup and revoke.
func TestInviteLinkLifecycle(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	owner := createTestUser(t, repo, "owner@example.com")
	doc := createTestDocument(t, repo, owner, `{}`)

	link := &models.InviteLink{
		DocumentID: doc.ID,
		CreatorID:  owner.ID,
		CanView:    true,
		CanEdit:    true,
	}
	if err := repo.CreateInviteLink(link); err != nil {
		t.Fatalf("CreateInviteLink failed: %v", err)
	}
	if link.Token == "" {
		t.Fatal("CreateInviteLink should assign a token")
	}

	got, err := repo.GetInviteLinkByToken(link.Token)
	if err != nil {
		t.Fatalf("GetInviteLinkByToken failed: %v", err)
	}
	if got.Revoked() {
		t.Error("Fresh link should not be revoked")
	}
	if got.Expired(time.Now()) {
		t.Error("Link without expiry should never expire")
	}

	if err := repo.RevokeInviteLink(link.Token); err != nil {
		t.Fatalf("RevokeInviteLink failed: %v", err)
	}
	got, err = repo.GetInviteLinkByToken(link.Token)
	if err != nil {
		t.Fatalf("GetInviteLinkByToken after revoke failed: %v", err)
	}
	if !got.Revoked() {
		t.Error("Link should be revoked")
	}

	// Second revoke finds nothing to update
	if err := repo.RevokeInviteLink(link.Token); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Expected sql.ErrNoRows on double revoke, got %v", err)
	}
}

// TestSnapshots tests snapshot create and list.
func TestSnapshots(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	owner := createTestUser(t, repo, "owner@example.com")
	doc := createTestDocument(t, repo, owner, `{"rows":[1,2]}`)

	snap := &models.Snapshot{DocumentID: doc.ID, Content: doc.Content, Label: "before cleanup"}
	if err := repo.CreateSnapshot(snap); err != nil {
		t.Fatalf("CreateSnapshot failed: %v", err)
	}

	snaps, err := repo.ListSnapshots(doc.ID.String())
	if err != nil {
		t.Fatalf("ListSnapshots failed: %v", err)
	}
	if len(snaps) != 1 || snaps[0].Label != "before cleanup" {
		t.Errorf("Unexpected snapshots: %+v", snaps)
	}
}
