package collab

// Sender delivers encoded frames to one connected peer. Implementations
// must be safe for concurrent use; a typical implementation enqueues onto
// a buffered channel drained by a write pump.
type Sender interface {
	Send(data []byte) error
	Close() error
}

// Session is one live, authenticated connection of a user to a document.
// The edit capability is resolved once at connect time and cached for the
// lifetime of the session; it is not re-resolved per message.
type Session struct {
	id         string
	userID     string
	documentID string
	canEdit    bool
	sender     Sender
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// UserID returns the connected user.
func (s *Session) UserID() string {
	return s.userID
}

// DocumentID returns the document the session is attached to.
func (s *Session) DocumentID() string {
	return s.documentID
}

// CanEdit reports the edit capability cached at connect time.
func (s *Session) CanEdit() bool {
	return s.canEdit
}

func (s *Session) send(data []byte) error {
	return s.sender.Send(data)
}
