package models

// Permission grants a non-owner user a set of capabilities on one document.
// At most one row exists per (user, document) pair; absence means no access.
// The owner implicitly holds every capability regardless of stored rows.
type Permission struct {
	ID         UUID  `db:"id" json:"id"`
	UserID     UUID  `db:"user_id" json:"user_id"`
	DocumentID UUID  `db:"document_id" json:"document_id"`
	CanView    bool  `db:"can_view" json:"can_view"`
	CanEdit    bool  `db:"can_edit" json:"can_edit"`
	CanPrint   bool  `db:"can_print" json:"can_print"`
	CanCopy    bool  `db:"can_copy" json:"can_copy"`
	CreatedAt  int64 `db:"created_at" json:"created_at"`
	UpdatedAt  int64 `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for Permission.
func (Permission) TableName() string {
	return "permissions"
}
