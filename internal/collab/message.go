// Package collab implements the real-time collaboration core: live session
// tracking, per-document serialized mutations, and fan-out of accepted edits.
package collab

import "encoding/json"

// Wire frame types exchanged over a live session.
const (
	// MessageInit is sent by the server right after a successful connect
	// and carries the current content snapshot.
	MessageInit = "init"

	// MessageUpdate is sent by a client to propose a full replacement of
	// the document content.
	MessageUpdate = "update"

	// MessageRemoteUpdate is fanned out to peers when an edit is accepted.
	MessageRemoteUpdate = "remote_update"
)

// Message is the envelope for every live-session frame. Content is the
// whole document blob; this core never merges it field by field.
type Message struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

// Encode marshals the message for transmission.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}
