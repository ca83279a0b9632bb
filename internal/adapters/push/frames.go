package push

import (
	"encoding/json"
	"strconv"

	"github.com/taskmaster/client/internal/domain/entities"
)

// Frame types of the notification stream
const (
	FrameNotification     = "notification"
	FrameNotificationRead = "notification_read"
	FramePing             = "ping"
	FramePong             = "pong"
	FrameAuthenticated    = "authenticated"
)

// Frame is one message of the notification stream, in either direction
type Frame struct {
	Type           string                 `json:"type"`
	Notification   *entities.Notification `json:"notification,omitempty"`
	NotificationID int64                  `json:"notification_id,omitempty"`
	Status         string                 `json:"status,omitempty"`
}

// AuthFrame is the first message a client sends after connecting
type AuthFrame struct {
	UserID interface{} `json:"user_id"`
}

// NewAuthFrame sends numeric user ids as numbers and anything else as a string
func NewAuthFrame(userID string) AuthFrame {
	if n, err := strconv.ParseInt(userID, 10, 64); err == nil {
		return AuthFrame{UserID: n}
	}
	return AuthFrame{UserID: userID}
}

// UserIDString returns the user id of the frame as a string
func (f AuthFrame) UserIDString() string {
	switch v := f.UserID.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	case json.Number:
		return v.String()
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}
