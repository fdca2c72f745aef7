package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	authsvc "github.com/prymskiwen/crewvar-sub001/internal/services/auth"
	presencesvc "github.com/prymskiwen/crewvar-sub001/internal/services/presence"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 45 * time.Second
	maxMessageSize = 4 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ClientFrame is what a connected client sends: a presence state change
// or a typing heartbeat.
type ClientFrame struct {
	Type   string `json:"type"`
	State  string `json:"state,omitempty"`
	RoomID int64  `json:"room_id,omitempty"`
}

type ServerFrame struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

type client struct {
	id     uuid.UUID
	userID int64
	conn   *websocket.Conn
	send   chan ServerFrame
}

// PresenceHub upgrades crew connections and feeds their frames into the
// presence tracker. A user may hold several connections (phone plus
// crew-mess tablet); the user reads as offline only after the last one
// goes away.
type PresenceHub struct {
	tracker *presencesvc.Tracker
	log     *zap.Logger

	mu      sync.Mutex
	clients map[int64]map[uuid.UUID]*client
}

func NewPresenceHub(tracker *presencesvc.Tracker, log *zap.Logger) *PresenceHub {
	if log == nil {
		log = zap.NewNop()
	}
	return &PresenceHub{
		tracker: tracker,
		log:     log,
		clients: make(map[int64]map[uuid.UUID]*client),
	}
}

// Serve is the HTTP entry point; it expects the auth middleware to have
// placed an identity on the context before the upgrade.
func (h *PresenceHub) Serve(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	if h.tracker == nil {
		http.Error(w, "presence is unavailable", http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Int64("user_id", identity.UserID), zap.Error(err))
		return
	}

	c := &client{
		id:     uuid.New(),
		userID: identity.UserID,
		conn:   conn,
		send:   make(chan ServerFrame, 16),
	}

	h.register(c)
	if err := h.tracker.SetStatus(r.Context(), c.userID, "online"); err != nil {
		h.log.Warn("set online on connect", zap.Int64("user_id", c.userID), zap.Error(err))
	}

	go h.writePump(c)
	h.readPump(c)
}

func (h *PresenceHub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.userID] == nil {
		h.clients[c.userID] = make(map[uuid.UUID]*client)
	}
	h.clients[c.userID][c.id] = c
}

// unregister drops the connection and reports whether it was the user's
// last one.
func (h *PresenceHub) unregister(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.clients[c.userID]
	if !ok {
		return false
	}
	delete(conns, c.id)
	if len(conns) > 0 {
		return false
	}
	delete(h.clients, c.userID)
	return true
}

// ConnectedUsers reports how many users hold at least one connection.
func (h *PresenceHub) ConnectedUsers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *PresenceHub) readPump(c *client) {
	defer func() {
		last := h.unregister(c)
		close(c.send)
		_ = c.conn.Close()

		if last {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := h.tracker.SetStatus(ctx, c.userID, "offline"); err != nil {
				h.log.Warn("set offline on disconnect", zap.Int64("user_id", c.userID), zap.Error(err))
			}
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket read error", zap.Int64("user_id", c.userID), zap.Error(err))
			}
			return
		}

		var frame ClientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.reply(ServerFrame{Type: "error", Code: "INVALID_FRAME", Message: "frame is not valid json"})
			continue
		}

		h.handleFrame(c, frame)
	}
}

func (h *PresenceHub) handleFrame(c *client, frame ClientFrame) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch frame.Type {
	case "status":
		if err := h.tracker.SetStatus(ctx, c.userID, frame.State); err != nil {
			c.reply(ServerFrame{Type: "error", Code: "INVALID_STATE", Message: "unknown presence state"})
		}
	case "typing_start":
		if err := h.tracker.StartTyping(c.userID, frame.RoomID); err != nil {
			c.reply(ServerFrame{Type: "error", Code: "INVALID_ROOM", Message: "invalid room id"})
		}
	case "typing_stop":
		if err := h.tracker.StopTyping(c.userID, frame.RoomID); err != nil {
			c.reply(ServerFrame{Type: "error", Code: "INVALID_ROOM", Message: "invalid room id"})
		}
	default:
		c.reply(ServerFrame{Type: "error", Code: "UNKNOWN_TYPE", Message: "unknown frame type"})
	}
}

func (c *client) reply(frame ServerFrame) {
	select {
	case c.send <- frame:
	default:
		// Slow consumer, drop the frame rather than block the read loop.
	}
}

func (h *PresenceHub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
