package models

import (
	"encoding/json"
	"time"
)

// EmptyContent is the content a document starts with when none is supplied.
const EmptyContent = "{}"

// Document represents a shared structured document. Content is an opaque
// JSON blob replaced wholesale on every accepted edit; it is never merged
// field by field.
type Document struct {
	ID        UUID   `db:"id" json:"id"`
	OwnerID   UUID   `db:"owner_id" json:"owner_id"`
	Title     string `db:"title" json:"title"`
	Content   string `db:"content" json:"-"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
	UpdatedAt int64  `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for Document.
func (Document) TableName() string {
	return "documents"
}

// ContentJSON returns the stored content as a raw JSON value suitable for
// embedding in API responses without re-encoding.
func (d *Document) ContentJSON() json.RawMessage {
	if d.Content == "" {
		return json.RawMessage(EmptyContent)
	}
	return json.RawMessage(d.Content)
}

// UpdatedAtTime returns the UpdatedAt as time.Time.
func (d *Document) UpdatedAtTime() time.Time {
	return time.Unix(d.UpdatedAt, 0)
}

// MarshalJSON includes the raw content blob under "content".
func (d *Document) MarshalJSON() ([]byte, error) {
	type alias Document
	return json.Marshal(struct {
		*alias
		Content json.RawMessage `json:"content"`
	}{
		alias:   (*alias)(d),
		Content: d.ContentJSON(),
	})
}
