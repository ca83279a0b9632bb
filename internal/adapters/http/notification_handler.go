package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster/client/internal/adapters/mockapi"
	"github.com/taskmaster/client/internal/domain/entities"
	"github.com/taskmaster/client/internal/infrastructure/logger"
)

// NotificationHandler handles the notification feed
type NotificationHandler struct {
	store   *mockapi.Store
	respond Responder
	logger  *logger.Logger
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(store *mockapi.Store, respond Responder, logger *logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		store:   store,
		respond: respond,
		logger:  logger,
	}
}

// ListNotifications returns the caller's notifications newest first
func (h *NotificationHandler) ListNotifications(c echo.Context) error {
	limit, err := optionalInt(c, "limit")
	if err != nil {
		return err
	}
	offset, err := optionalInt(c, "offset")
	if err != nil {
		return err
	}
	return h.respond.Send(c, http.StatusOK, h.store.Notifications(userID(c), limit, offset), "Notifications retrieved successfully")
}

func (h *NotificationHandler) UnreadCount(c echo.Context) error {
	resp := entities.UnreadCountResponse{UnreadCount: h.store.UnreadCount(userID(c))}
	return h.respond.Send(c, http.StatusOK, resp, "Unread count retrieved successfully")
}

func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	var req entities.MarkAsReadRequest
	if err := c.Bind(&req); err != nil {
		return NewAPIError(http.StatusBadRequest, "BAD_REQUEST", "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return ValidationFailed(err)
	}

	marked := h.store.MarkRead(userID(c), req.NotificationIDs)
	h.logger.Debugw("Notifications marked as read", "user_id", userID(c), "marked", marked)
	return h.respond.Send(c, http.StatusOK, map[string]string{"message": "Notifications marked as read"}, "Notifications marked as read successfully")
}

func optionalInt(c echo.Context, name string) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, ValidationFailed(&entities.ValidationError{Fields: map[string]string{name: "must be a non-negative integer"}})
	}
	return n, nil
}
