package models

import "time"

// InviteLink is a shareable token carrying a capability bundle for one
// document. Consuming it materializes a Permission row for the consumer.
type InviteLink struct {
	ID         UUID   `db:"id" json:"id"`
	Token      string `db:"token" json:"token"`
	DocumentID UUID   `db:"document_id" json:"document_id"`
	CreatorID  UUID   `db:"creator_id" json:"creator_id"`
	CanView    bool   `db:"can_view" json:"can_view"`
	CanEdit    bool   `db:"can_edit" json:"can_edit"`
	CanPrint   bool   `db:"can_print" json:"can_print"`
	CanCopy    bool   `db:"can_copy" json:"can_copy"`
	ExpiresAt  int64  `db:"expires_at" json:"expires_at,omitempty"`
	RevokedAt  int64  `db:"revoked_at" json:"revoked_at,omitempty"`
	CreatedAt  int64  `db:"created_at" json:"created_at"`
}

// TableName returns the table name for InviteLink.
func (InviteLink) TableName() string {
	return "invite_links"
}

// Expired reports whether the link's expiry has passed at the given time.
// A zero ExpiresAt means the link never expires.
func (l *InviteLink) Expired(now time.Time) bool {
	return l.ExpiresAt > 0 && l.ExpiresAt < now.Unix()
}

// Revoked reports whether the link has been revoked.
func (l *InviteLink) Revoked() bool {
	return l.RevokedAt > 0
}
