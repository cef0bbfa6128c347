package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// snapshotInterval is how often the websocket feed pushes a snapshot.
const snapshotInterval = time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// handleWS streams snapshots to clients that would otherwise poll
// GET /v1/snapshot. One snapshot is pushed per interval; the stream ends
// when the client disconnects.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("httpapi: ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Consume control frames; a read error means the client went away.
	disconnected := make(chan struct{})
	go func() {
		defer close(disconnected)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-disconnected:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
			snap, err := s.orch.Snapshot(r.Context())
			if err != nil {
				// No active session: push an empty frame so the client
				// can render the idle state.
				snap = nil
			}
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(snap); err != nil {
				return
			}
		}
	}
}
