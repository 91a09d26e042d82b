package models

import (
	"encoding/json"
	"time"
)

// ChangeKind identifies what produced a change log entry.
type ChangeKind string

const (
	ChangeUpdate ChangeKind = "update"
	ChangeRevert ChangeKind = "revert"
)

// ChangeEntry records one content transition of a document. Entries are
// immutable once written and never deleted; each entry's Before must equal
// the previous entry's After for the same document.
type ChangeEntry struct {
	ID         UUID       `db:"id" json:"id"`
	DocumentID UUID       `db:"document_id" json:"document_id"`
	UserID     UUID       `db:"user_id" json:"user_id"`
	Kind       ChangeKind `db:"kind" json:"kind"`
	Before     string     `db:"before_content" json:"-"`
	After      string     `db:"after_content" json:"-"`
	BasedOn    UUID       `db:"based_on" json:"based_on,omitempty"`
	CreatedAt  int64      `db:"created_at" json:"created_at"`
}

// TableName returns the table name for ChangeEntry.
func (ChangeEntry) TableName() string {
	return "change_log"
}

// Time returns the CreatedAt as time.Time.
func (e *ChangeEntry) Time() time.Time {
	return time.Unix(e.CreatedAt, 0)
}

// MarshalJSON emits the before/after snapshots as raw JSON values.
func (e *ChangeEntry) MarshalJSON() ([]byte, error) {
	type alias ChangeEntry
	return json.Marshal(struct {
		*alias
		Before json.RawMessage `json:"before"`
		After  json.RawMessage `json:"after"`
	}{
		alias:  (*alias)(e),
		Before: json.RawMessage(e.Before),
		After:  json.RawMessage(e.After),
	})
}
