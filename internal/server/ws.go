package server

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSMessage is one status notification. Type is hello, connected, status
// or disconnected.
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type WSClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *WSClient) Send(msg WSMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(msg)
}

func (c *WSClient) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// WSHub fans status messages out to every subscribed indicator. A client
// whose write fails is dropped.
type WSHub struct {
	logger *zap.Logger

	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

func NewWSHub(logger *zap.Logger) *WSHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHub{logger: logger, clients: make(map[*WSClient]struct{})}
}

func (h *WSHub) Add(conn *websocket.Conn) *WSClient {
	c := &WSClient{conn: conn}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

// Remove unsubscribes c and closes its connection. Removing twice is harmless.
func (h *WSHub) Remove(c *WSClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	_ = c.conn.Close()
}

func (h *WSHub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *WSHub) Broadcast(msg WSMessage) {
	b, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("websocket message not encodable", zap.String("type", msg.Type), zap.Error(err))
		return
	}

	h.mu.RLock()
	var failed []*WSClient
	for c := range h.clients {
		if err := c.write(b); err != nil {
			h.logger.Warn("websocket client dropped",
				zap.String("type", msg.Type),
				zap.Stringer("remote", c.conn.RemoteAddr()),
				zap.Error(err))
			failed = append(failed, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range failed {
		h.Remove(c)
	}
}
