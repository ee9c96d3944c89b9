// Package push delivers real-time events to connected clients over
// websockets. Delivery is fire-and-forget, at-most-once: a client that is
// offline simply misses the event.
package push

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const writeTimeout = 5 * time.Second

type Hub struct {
	mu     sync.RWMutex
	conns  map[int]map[*websocket.Conn]struct{}
	logger *logrus.Logger
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		conns:  make(map[int]map[*websocket.Conn]struct{}),
		logger: logger,
	}
}

func (h *Hub) Register(userID int, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[userID] == nil {
		h.conns[userID] = make(map[*websocket.Conn]struct{})
	}
	h.conns[userID][conn] = struct{}{}
}

func (h *Hub) Unregister(userID int, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.conns[userID]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(h.conns, userID)
		}
	}
	_ = conn.Close()
}

// Send pushes a payload to every connection of one user. Broken connections
// are dropped; errors are logged, never returned.
func (h *Hub) Send(userID int, payload []byte) {
	h.mu.RLock()
	var targets []*websocket.Conn
	for conn := range h.conns[userID] {
		targets = append(targets, conn)
	}
	h.mu.RUnlock()

	for _, conn := range targets {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			if h.logger != nil {
				h.logger.WithFields(logrus.Fields{
					"field":   "push",
					"user_id": userID,
				}).Warn("websocket write failed, dropping connection: " + err.Error())
			}
			h.Unregister(userID, conn)
		}
	}
}

// Broadcast pushes a payload to every connected client (admin board updates).
func (h *Hub) Broadcast(payload []byte) {
	h.mu.RLock()
	userIDs := make([]int, 0, len(h.conns))
	for userID := range h.conns {
		userIDs = append(userIDs, userID)
	}
	h.mu.RUnlock()

	for _, userID := range userIDs {
		h.Send(userID, payload)
	}
}

func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.conns {
		n += len(set)
	}
	return n
}
