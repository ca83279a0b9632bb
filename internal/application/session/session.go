// Package session wires the transport, services, query cache and
// notification feed of one client process together.
package session

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/taskmaster/client/internal/adapters/api"
	"github.com/taskmaster/client/internal/adapters/credentials"
	"github.com/taskmaster/client/internal/adapters/push"
	"github.com/taskmaster/client/internal/adapters/render"
	"github.com/taskmaster/client/internal/application/cache"
	"github.com/taskmaster/client/internal/application/feed"
	"github.com/taskmaster/client/internal/application/services"
	"github.com/taskmaster/client/internal/domain/entities"
	"github.com/taskmaster/client/internal/infrastructure/config"
	"github.com/taskmaster/client/internal/infrastructure/logger"
	"github.com/taskmaster/client/internal/infrastructure/metrics"
	"github.com/taskmaster/client/internal/ports"
)

// Session is the composition root. One exists per process; it outlives
// logins.
type Session struct {
	Credentials   ports.CredentialStore
	Transport     *api.Client
	Auth          ports.AuthService
	TaskService   ports.TaskService
	Stats         ports.StatsService
	Notifications ports.NotificationService
	Cache         *cache.Cache
	Tasks         *cache.TaskStore
	Feed          *feed.Manager
	Metrics       *metrics.Client

	logger *logger.Logger
	closer io.Closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type options struct {
	credentials ports.CredentialStore
	channel     ports.PushChannel
	notifier    ports.DesktopNotifier
}

// Option overrides a collaborator built from config
type Option func(*options)

// WithCredentials uses store instead of the configured backend
func WithCredentials(store ports.CredentialStore) Option {
	return func(o *options) { o.credentials = store }
}

// WithPushChannel uses ch instead of a websocket channel
func WithPushChannel(ch ports.PushChannel) Option {
	return func(o *options) { o.channel = ch }
}

// WithNotifier uses n for desktop notifications
func WithNotifier(n ports.DesktopNotifier) Option {
	return func(o *options) { o.notifier = n }
}

// New builds a session from cfg
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts ...Option) (*Session, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	var m *metrics.Client
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics.Namespace)
	}

	var closer io.Closer = nopCloser{}
	if o.credentials == nil {
		store, c, err := credentials.Open(ctx, cfg.Credentials)
		if err != nil {
			return nil, fmt.Errorf("open credential store: %w", err)
		}
		o.credentials = store
		closer = c
	}

	transport, err := api.New(cfg.API.BaseURL, o.credentials, api.Options{
		Timeout:        cfg.API.Timeout,
		RateLimitRPS:   cfg.API.RateLimitRPS,
		RateLimitBurst: cfg.API.RateLimitBurst,
		Metrics:        m,
	}, log)
	if err != nil {
		closer.Close()
		return nil, err
	}

	if o.channel == nil {
		o.channel = push.New(cfg.API.WSURL, push.Options{
			MaxAttempts: cfg.Notifications.ReconnectMaxAttempts,
			Interval:    cfg.Notifications.ReconnectInterval,
			Metrics:     m,
		}, log)
	}
	if o.notifier == nil {
		o.notifier = render.NewTerminalNotifier(os.Stderr, cfg.Notifications.Desktop)
	}

	taskService := services.NewTaskService(transport, log)
	notifications := services.NewNotificationService(transport, cfg.Notifications.PageSize, log)
	queryCache := cache.New(cfg.Cache.StaleTime, log, cache.WithMetrics(m))

	return &Session{
		Credentials:   o.credentials,
		Transport:     transport,
		Auth:          services.NewAuthService(transport, o.credentials, log),
		TaskService:   taskService,
		Stats:         services.NewStatsService(transport, log),
		Notifications: notifications,
		Cache:         queryCache,
		Tasks:         cache.NewTaskStore(queryCache, taskService, log),
		Feed:          feed.New(notifications, o.channel, o.notifier, cfg.Notifications.PageSize, log),
		Metrics:       m,
		logger:        log.WithComponent("session"),
		closer:        closer,
	}, nil
}

// Login authenticates and starts the feed for the returned user
func (s *Session) Login(ctx context.Context, req entities.LoginRequest) (*entities.AuthResponse, error) {
	resp, err := s.Auth.Login(ctx, req)
	if err != nil {
		return nil, err
	}
	s.begin(ctx, &resp.User)
	return resp, nil
}

// Register creates an account and starts the feed for it
func (s *Session) Register(ctx context.Context, req entities.RegisterRequest) (*entities.AuthResponse, error) {
	resp, err := s.Auth.Register(ctx, req)
	if err != nil {
		return nil, err
	}
	s.begin(ctx, &resp.User)
	return resp, nil
}

// CurrentUser returns the stored user when a usable token is present, or
// nil, nil when nobody is signed in. The feed is left alone.
func (s *Session) CurrentUser(ctx context.Context) (*entities.User, error) {
	if !s.Auth.IsAuthenticated(ctx) {
		return nil, nil
	}
	user, err := s.Auth.StoredUser(ctx)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return s.Auth.Me(ctx)
	}
	return user, nil
}

// RequireUser is CurrentUser that fails with ErrNotAuthenticated instead of
// returning a nil user
func (s *Session) RequireUser(ctx context.Context) (*entities.User, error) {
	user, err := s.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, entities.ErrNotAuthenticated
	}
	return user, nil
}

// Resume starts the feed for the signed-in user
func (s *Session) Resume(ctx context.Context) (*entities.User, error) {
	user, err := s.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	s.begin(ctx, user)
	return user, nil
}

func (s *Session) begin(ctx context.Context, user *entities.User) {
	s.Cache.Clear()
	if err := s.Feed.Start(ctx, user); err != nil {
		// the feed recovers on the next refresh
		s.logger.WithUserID(user.ID).WithError(err).Warn("Notification feed failed to load")
	}
}

// Logout clears the stored credentials, the query cache and the feed
func (s *Session) Logout(ctx context.Context) error {
	s.Feed.Stop()
	s.Cache.Clear()
	return s.Auth.Logout(ctx)
}

// Close stops background work and releases the credential store
func (s *Session) Close() error {
	s.Feed.Stop()
	s.Cache.Close()
	return s.closer.Close()
}
