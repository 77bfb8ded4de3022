package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"modqueue/internal/middleware"

	"github.com/gofiber/websocket/v2"
)

const (
	maxConnsPerSession = 8
	maxTotalConns      = 4096
)

// Errors returned by Register.
var (
	ErrHubClosed          = errors.New("event hub is shut down")
	ErrTooManyConnections = errors.New("server connection limit reached")
	ErrSessionConnLimit   = errors.New("session connection limit reached")
)

// Hub fans session events out to the websockets watching each session.
type Hub struct {
	mu         sync.RWMutex
	conns      map[string]map[*Client]struct{}
	totalConns int
	closed     bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[string]map[*Client]struct{})}
}

// Register adds a connection for sessionID. conn may be nil.
func (h *Hub) Register(sessionID string, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	if h.totalConns >= maxTotalConns {
		return nil, ErrTooManyConnections
	}
	m, ok := h.conns[sessionID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[sessionID] = m
	}
	if len(m) >= maxConnsPerSession {
		return nil, ErrSessionConnLimit
	}

	client := newClient(h, conn, sessionID)
	m[client] = struct{}{}
	h.totalConns++
	return client, nil
}

// Unregister removes client and closes its Send channel. Repeated calls are no-ops.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client)
}

func (h *Hub) removeLocked(client *Client) {
	m, ok := h.conns[client.SessionID]
	if !ok {
		return
	}
	if _, exists := m[client]; !exists {
		return
	}
	delete(m, client)
	h.totalConns--
	close(client.Send)
	if len(m) == 0 {
		delete(h.conns, client.SessionID)
	}
}

// Broadcast queues message for every client of sessionID and returns how many
// accepted it.
func (h *Hub) Broadcast(sessionID string, message []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sent := 0
	for c := range h.conns[sessionID] {
		if c.trySend(message) {
			sent++
		}
	}
	return sent
}

// Count returns the number of clients watching sessionID.
func (h *Hub) Count(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[sessionID])
}

// CloseSession disconnects every client of sessionID.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns[sessionID] {
		h.removeLocked(c)
	}
}

// StartWiring subscribes n to every session channel and forwards each event to
// the clients of its session. It returns once the subscription is active.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartSessionSubscriber(ctx, func(channel string, ev ModerationEvent) {
		sessionID := ev.SessionID
		if sessionID == "" {
			sessionID = strings.TrimPrefix(channel, sessionChannelPrefix)
		}
		payload, err := json.Marshal(ev)
		if err != nil {
			middleware.Logger.Error("failed to encode moderation event", slog.String("error", err.Error()))
			return
		}
		h.Broadcast(sessionID, payload)
	})
}

// Shutdown disconnects every client and refuses new registrations.
// Each client's write pump sends a close frame when its channel closes.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, m := range h.conns {
		for c := range m {
			h.removeLocked(c)
		}
	}
	return nil
}
