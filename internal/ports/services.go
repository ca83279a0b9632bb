package ports

import (
	"context"

	"github.com/taskmaster/client/internal/domain/entities"
)

// Transport issues authenticated requests against the REST API and decodes
// the unwrapped payload into out. out may be nil.
type Transport interface {
	Do(ctx context.Context, method, path string, body interface{}, query map[string]interface{}, out interface{}) error
}

// AuthService interface for authentication operations
type AuthService interface {
	Login(ctx context.Context, req entities.LoginRequest) (*entities.AuthResponse, error)
	Register(ctx context.Context, req entities.RegisterRequest) (*entities.AuthResponse, error)
	Me(ctx context.Context) (*entities.User, error)
	Logout(ctx context.Context) error
	IsAuthenticated(ctx context.Context) bool
	StoredUser(ctx context.Context) (*entities.User, error)
}

// TaskService interface for task operations
type TaskService interface {
	GetTasks(ctx context.Context, filters entities.TaskFilters) (*entities.TasksResponse, error)
	GetTask(ctx context.Context, id string) (*entities.Task, error)
	CreateTask(ctx context.Context, req entities.CreateTaskRequest) (*entities.Task, error)
	UpdateTask(ctx context.Context, id string, req entities.UpdateTaskRequest) (*entities.Task, error)
	DeleteTask(ctx context.Context, id string) (*entities.DeleteTaskResponse, error)
}

// StatsService interface for analytics operations
type StatsService interface {
	GetGeneralStats(ctx context.Context) (*entities.TaskStats, error)
	GetAnalyticsStats(ctx context.Context, query entities.StatsQuery) (*entities.TaskStats, error)
}

// NotificationService interface for notification operations
type NotificationService interface {
	GetNotifications(ctx context.Context, limit, offset int) ([]entities.Notification, error)
	GetUnreadCount(ctx context.Context) (int, error)
	MarkAsRead(ctx context.Context, ids []int64) error
	MarkAllAsRead(ctx context.Context) error
}

// PushChannel is a persistent notification stream keyed by user id.
// Subscription methods return an unsubscribe function.
type PushChannel interface {
	Connect(ctx context.Context, userID string) error
	Disconnect()
	IsConnected() bool
	OnNotification(fn func(entities.Notification)) func()
	OnNotificationRead(fn func(id int64)) func()
	OnStatusChange(fn func(connected bool)) func()
}

// Permission is the state of the desktop notification permission
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// DesktopNotifier surfaces notifications outside of the feed
type DesktopNotifier interface {
	Permission() Permission
	RequestPermission(ctx context.Context) Permission
	Show(n entities.Notification) error
}
