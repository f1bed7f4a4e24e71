package services

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
)

// Suggestion lifecycle event kinds carried over the websocket feed.
const (
	EventSuggestionsGenerating = "suggestions.generating"
	EventSuggestionsReady      = "suggestions.ready"
	EventSuggestionsSkipped    = "suggestions.skipped"
)

// SuggestionEvent is the wire payload of the suggestion feed. Count is only
// meaningful for the ready event.
type SuggestionEvent struct {
	Kind  string `json:"kind"`
	Count int    `json:"count,omitempty"`
}

// WSClient is one websocket subscriber for a user's suggestion events.
type WSClient struct {
	UserID uint
	Conn   *websocket.Conn
}

// RealtimeHub fans suggestion lifecycle events (generating, ready, skipped)
// out to a user's connected clients.
type RealtimeHub struct {
	mu      sync.RWMutex
	clients map[uint]map[*WSClient]struct{}
}

func NewRealtimeHub() *RealtimeHub {
	return &RealtimeHub{clients: make(map[uint]map[*WSClient]struct{})}
}

func (h *RealtimeHub) Register(c *WSClient) {
	h.mu.Lock()
	if h.clients[c.UserID] == nil {
		h.clients[c.UserID] = make(map[*WSClient]struct{})
	}
	h.clients[c.UserID][c] = struct{}{}
	h.mu.Unlock()
}

func (h *RealtimeHub) Unregister(c *WSClient) {
	h.mu.Lock()
	if set := h.clients[c.UserID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.UserID)
		}
	}
	h.mu.Unlock()
	_ = c.Conn.Close()
}

// Broadcast sends the event to every client of the user. Write errors are
// ignored; a dead connection gets cleaned up on its read loop.
func (h *RealtimeHub) Broadcast(userID uint, event SuggestionEvent) {
	msg, _ := json.Marshal(event)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[userID] {
		_ = c.Conn.WriteMessage(websocket.TextMessage, msg)
	}
}
