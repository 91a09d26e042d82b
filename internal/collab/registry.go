package collab

import (
	"sync"

	"github.com/gridshare/gridshare/internal/logging"
)

// Registry is the process-local map from document ID to the set of live
// sessions attached to it. It is shared mutable state touched by every
// connection lifecycle and every accepted mutation, so all access goes
// through the lock. An instance is owned by its Coordinator; there is no
// ambient global registry.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]map[*Session]struct{}
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]map[*Session]struct{}),
	}
}

// Register adds a session to the set for its document.
func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.sessions[s.documentID]
	if !ok {
		set = make(map[*Session]struct{})
		r.sessions[s.documentID] = set
	}
	set[s] = struct{}{}
}

// Unregister removes a session. When a document's set becomes empty the
// map key is dropped so the registry never leaks empty sets. Calling it
// for a session that is already gone is a no-op.
func (r *Registry) Unregister(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.sessions[s.documentID]
	if !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(r.sessions, s.documentID)
	}
}

// Count returns the number of live sessions on a document.
func (r *Registry) Count(documentID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[documentID])
}

// Broadcast delivers a message to every registered session for the
// document except the excluded one (nil excludes nobody). Delivery is best
// effort: a failing session is logged and unregistered, and never prevents
// delivery to the remaining sessions or surfaces an error to the caller.
func (r *Registry) Broadcast(documentID string, exclude *Session, msg Message) {
	data, err := msg.Encode()
	if err != nil {
		logging.Error("failed to encode broadcast frame", err, map[string]interface{}{
			"document_id": documentID,
			"type":        msg.Type,
		})
		return
	}

	// Snapshot the set so sends happen outside the lock; a session torn
	// down mid-broadcast just fails its own send.
	r.mu.RLock()
	targets := make([]*Session, 0, len(r.sessions[documentID]))
	for s := range r.sessions[documentID] {
		if s != exclude {
			targets = append(targets, s)
		}
	}
	r.mu.RUnlock()

	for _, s := range targets {
		if err := s.send(data); err != nil {
			logging.Warn("dropping unreachable session", map[string]interface{}{
				"document_id": documentID,
				"user_id":     s.userID,
				"error":       err.Error(),
			})
			r.Unregister(s)
			_ = s.sender.Close()
		}
	}
}
