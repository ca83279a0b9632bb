package services

import (
	"context"
	"encoding/json"

	"github.com/taskmaster/client/internal/domain/entities"
	"github.com/taskmaster/client/internal/infrastructure/logger"
	"github.com/taskmaster/client/internal/ports"
)

var _ ports.NotificationService = (*NotificationService)(nil)

// NotificationService handles the notification feed endpoints
type NotificationService struct {
	transport ports.Transport
	pageSize  int
	logger    *logger.Logger
}

// NewNotificationService creates a new notification service. pageSize bounds
// the read performed by MarkAllAsRead.
func NewNotificationService(transport ports.Transport, pageSize int, logger *logger.Logger) *NotificationService {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &NotificationService{
		transport: transport,
		pageSize:  pageSize,
		logger:    logger.WithComponent("notifications"),
	}
}

// GetNotifications retrieves a page of notifications, newest first. Both a
// bare array and a {notifications: [...]} object are accepted.
func (s *NotificationService) GetNotifications(ctx context.Context, limit, offset int) ([]entities.Notification, error) {
	query := map[string]interface{}{"limit": nil, "offset": nil}
	if limit > 0 {
		query["limit"] = limit
	}
	if offset > 0 {
		query["offset"] = offset
	}

	var raw json.RawMessage
	if err := s.transport.Do(ctx, "GET", "/notifications", nil, query, &raw); err != nil {
		return nil, err
	}
	return decodeNotifications(raw)
}

func decodeNotifications(raw json.RawMessage) ([]entities.Notification, error) {
	list := []entities.Notification{}
	if len(raw) == 0 {
		return list, nil
	}
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var wrapped entities.NotificationsResponse
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, err
	}
	if wrapped.Notifications != nil {
		list = wrapped.Notifications
	}
	return list, nil
}

// GetUnreadCount retrieves the number of unread notifications
func (s *NotificationService) GetUnreadCount(ctx context.Context) (int, error) {
	var resp entities.UnreadCountResponse
	if err := s.transport.Do(ctx, "GET", "/notifications/unread-count", nil, nil, &resp); err != nil {
		return 0, err
	}
	return resp.UnreadCount, nil
}

// MarkAsRead marks the given notifications as read
func (s *NotificationService) MarkAsRead(ctx context.Context, ids []int64) error {
	req := entities.MarkAsReadRequest{NotificationIDs: ids}
	if err := entities.Validate(req); err != nil {
		return err
	}
	return s.transport.Do(ctx, "POST", "/notifications/mark-read", req, nil, nil)
}

// MarkAllAsRead reads the current feed and marks its unread entries. No
// request is sent when nothing is unread.
func (s *NotificationService) MarkAllAsRead(ctx context.Context) error {
	list, err := s.GetNotifications(ctx, s.pageSize, 0)
	if err != nil {
		return err
	}

	ids := make([]int64, 0, len(list))
	for i := range list {
		if list[i].IsUnread() {
			ids = append(ids, list[i].ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	s.logger.Debugw("Marking notifications read", "count", len(ids))
	return s.MarkAsRead(ctx, ids)
}
