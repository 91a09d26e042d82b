package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gridshare/gridshare/internal/auth"
	"github.com/gridshare/gridshare/internal/collab"
	apperrors "github.com/gridshare/gridshare/internal/errors"
	"github.com/gridshare/gridshare/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 1 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The browser client runs on a separate origin in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsSender adapts a gorilla connection to the collab.Sender interface.
// Send enqueues onto a buffered channel drained by writePump; a full
// buffer fails the send, which makes the registry evict the session.
// The mutex keeps a late broadcast from racing a concurrent Close.
type wsSender struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newWSSender(conn *websocket.Conn) *wsSender {
	return &wsSender{conn: conn, send: make(chan []byte, 256)}
}

func (s *wsSender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return apperrors.New(apperrors.ErrInternal, "session closed")
	}
	select {
	case s.send <- data:
		return nil
	default:
		return apperrors.New(apperrors.ErrInternal, "send buffer full")
	}
}

func (s *wsSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.send)
	}
	return nil
}

// writePump drains the send channel onto the connection and keeps the
// peer alive with periodic pings. It owns all writes to the connection.
func (s *wsSender) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleCollab serves GET /ws?documentId=...&token=... . The token is
// verified before the upgrade so an unauthenticated caller never gets a
// socket; a permission denial closes the connection right after the
// handshake, before any frame is sent.
func handleCollab(verifier *auth.Verifier, coordinator *collab.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		documentID := r.URL.Query().Get("documentId")
		token := r.URL.Query().Get("token")

		claims, err := verifier.Verify(token)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if documentID == "" {
			http.Error(w, "documentId is required", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Warn("websocket upgrade failed", map[string]interface{}{"error": err.Error()})
			return
		}

		sender := newWSSender(conn)
		go sender.writePump()

		session, snapshot, err := coordinator.Connect(documentID, claims.UserID, sender)
		if err != nil {
			logging.Debug("live connect refused", map[string]interface{}{
				"document_id": documentID,
				"user_id":     claims.UserID,
				"error":       err.Error(),
			})
			sender.Close()
			return
		}

		init, err := collab.Message{Type: collab.MessageInit, Content: snapshot}.Encode()
		if err == nil {
			err = sender.Send(init)
		}
		if err != nil {
			logging.Error("failed to deliver init frame", err)
			coordinator.Disconnect(session)
			sender.Close()
			return
		}

		readPump(conn, coordinator, session, sender)
	}
}

// readPump consumes client frames until the connection dies. Malformed
// frames and unknown types are dropped; a rejected update never tears
// down the session.
func readPump(conn *websocket.Conn, coordinator *collab.Coordinator, session *collab.Session, sender *wsSender) {
	defer func() {
		coordinator.Disconnect(session)
		sender.Close()
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logging.Warn("websocket read error", map[string]interface{}{"error": err.Error()})
			}
			return
		}

		var msg collab.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			logging.Debug("dropping malformed frame", map[string]interface{}{"session_id": session.ID()})
			continue
		}

		switch msg.Type {
		case collab.MessageUpdate:
			if err := coordinator.SubmitUpdate(session, msg.Content); err != nil {
				logging.Error("failed to apply update", err, map[string]interface{}{
					"session_id":  session.ID(),
					"document_id": session.DocumentID(),
				})
			}
		default:
			logging.Debug("dropping unknown frame type", map[string]interface{}{"type": msg.Type})
		}
	}
}
