package models

import "encoding/json"

// Snapshot is a labeled point-in-time copy of a document's content,
// independent of the change log.
type Snapshot struct {
	ID         UUID   `db:"id" json:"id"`
	DocumentID UUID   `db:"document_id" json:"document_id"`
	Content    string `db:"content" json:"-"`
	Label      string `db:"label" json:"label,omitempty"`
	CreatedAt  int64  `db:"created_at" json:"created_at"`
}

// TableName returns the table name for Snapshot.
func (Snapshot) TableName() string {
	return "snapshots"
}

// MarshalJSON emits the content as a raw JSON value.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	type alias Snapshot
	return json.Marshal(struct {
		*alias
		Content json.RawMessage `json:"content"`
	}{
		alias:   (*alias)(s),
		Content: json.RawMessage(s.Content),
	})
}
