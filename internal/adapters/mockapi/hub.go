package mockapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/taskmaster/client/internal/adapters/push"
	"github.com/taskmaster/client/internal/domain/entities"
	"github.com/taskmaster/client/internal/infrastructure/logger"
)

const (
	authTimeout  = 10 * time.Second
	writeTimeout = 5 * time.Second
	sendBuffer   = 32
)

type subscriber struct {
	conn   *websocket.Conn
	userID string
	send   chan interface{}
	once   sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.send) })
}

// Hub serves the notification push endpoint. A connection subscribes to
// the user named in its first frame.
type Hub struct {
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	logger       *logger.Logger

	mu          sync.Mutex
	subscribers map[string]map[*subscriber]struct{}
}

// NewHub creates a hub that pings every subscriber at pingInterval
func NewHub(pingInterval time.Duration, log *logger.Logger) *Hub {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		pingInterval: pingInterval,
		logger:       log.WithComponent("push_hub"),
		subscribers:  map[string]map[*subscriber]struct{}{},
	}
}

// ServeHTTP upgrades the request and runs the connection until it closes
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(authTimeout))
	var auth push.AuthFrame
	if err := conn.ReadJSON(&auth); err != nil {
		h.logger.WithError(err).Warn("Missing authentication frame")
		return
	}
	userID := auth.UserIDString()
	if userID == "" {
		h.logger.Warnw("Authentication frame without user id")
		return
	}
	conn.SetReadDeadline(time.Time{})

	sub := &subscriber{conn: conn, userID: userID, send: make(chan interface{}, sendBuffer)}
	sub.send <- push.Frame{Type: push.FrameAuthenticated, Status: "success"}
	h.register(sub)
	defer h.unregister(sub)

	h.logger.Infow("Subscriber connected", "user_id", userID)
	go h.writeLoop(sub)

	for {
		var frame push.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			h.logger.Debugw("Subscriber disconnected", "user_id", userID, "error", err)
			return
		}
		if frame.Type != push.FramePong {
			h.logger.Debugw("Unexpected frame", "type", frame.Type)
		}
	}
}

func (h *Hub) writeLoop(sub *subscriber) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-sub.send:
			if !ok {
				sub.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
				return
			}
			sub.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := sub.conn.WriteJSON(msg); err != nil {
				sub.conn.Close()
				return
			}
		case <-ticker.C:
			sub.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := sub.conn.WriteJSON(push.Frame{Type: push.FramePing}); err != nil {
				sub.conn.Close()
				return
			}
		}
	}
}

func (h *Hub) register(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.subscribers[sub.userID]
	if !ok {
		subs = map[*subscriber]struct{}{}
		h.subscribers[sub.userID] = subs
	}
	subs[sub] = struct{}{}
}

func (h *Hub) unregister(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.subscribers[sub.userID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.subscribers, sub.userID)
		}
	}
	sub.close()
}

// Subscribers counts the open connections of userID
func (h *Hub) Subscribers(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[userID])
}

// Publish sends a notification frame to every connection of userID.
// Slow subscribers drop frames rather than block the caller.
func (h *Hub) Publish(userID string, n entities.Notification) {
	h.broadcast(userID, push.Frame{Type: push.FrameNotification, Notification: &n})
}

// PublishRead tells every connection of userID that a notification was read
func (h *Hub) PublishRead(userID string, id int64) {
	h.broadcast(userID, push.Frame{Type: push.FrameNotificationRead, NotificationID: id})
}

func (h *Hub) broadcast(userID string, frame push.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subscribers[userID] {
		select {
		case sub.send <- frame:
		default:
			h.logger.Warnw("Dropping frame for slow subscriber", "user_id", userID, "type", frame.Type)
		}
	}
}

// Close disconnects every subscriber
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, subs := range h.subscribers {
		for sub := range subs {
			sub.close()
		}
		delete(h.subscribers, userID)
	}
}
