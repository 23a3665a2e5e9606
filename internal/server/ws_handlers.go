package server

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// local app; allow all
		return true
	},
}

// handleWSStatus subscribes a client to status broadcasts. The current
// connection state is sent first; no exchange is made for it.
func (s *Server) handleWSStatus(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	client := s.wsStatus.Add(conn)

	s.dev.mu.Lock()
	hello := s.snapshotLocked(nil)
	s.dev.mu.Unlock()
	if err := client.Send(WSMessage{Type: "hello", Data: hello}); err != nil {
		s.wsStatus.Remove(client)
		return
	}

	// Keep reading until client disconnects
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.wsStatus.Remove(client)
			return
		}
	}
}
