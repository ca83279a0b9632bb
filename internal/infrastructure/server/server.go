package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	httpHandlers "github.com/taskmaster/client/internal/adapters/http"
	"github.com/taskmaster/client/internal/adapters/mockapi"
	"github.com/taskmaster/client/internal/domain/entities"
	"github.com/taskmaster/client/internal/infrastructure/config"
	"github.com/taskmaster/client/internal/infrastructure/logger"
)

// Server is the in-memory task backend used for development and tests
type Server struct {
	echo   *echo.Echo
	config *config.Config
	logger *logger.Logger
	store  *mockapi.Store
	tokens *mockapi.Tokens
	hub    *mockapi.Hub
	cancel context.CancelFunc
}

// CustomValidator routes echo validation through the request validator
type CustomValidator struct{}

// Validate validates structs
func (cv *CustomValidator) Validate(i interface{}) error {
	return entities.Validate(i)
}

// New creates a new server instance. store may be nil.
func New(cfg *config.Config, store *mockapi.Store, appLogger *logger.Logger) (*Server, error) {
	if cfg.MockServer.JWTSecret == "" {
		return nil, fmt.Errorf("mock server jwt secret is required")
	}
	if store == nil {
		store = mockapi.NewStore()
	}

	e := echo.New()

	// Set custom validator
	e.Validator = &CustomValidator{}

	// Configure Echo
	e.HideBanner = true
	e.HidePort = true

	// Custom error handler
	e.HTTPErrorHandler = customErrorHandler(appLogger)

	hub := mockapi.NewHub(cfg.MockServer.PingInterval, appLogger)
	store.OnNotification(hub.Publish)
	store.OnNotificationRead(hub.PublishRead)

	server := &Server{
		echo:   e,
		config: cfg,
		logger: appLogger.WithComponent("mock_server"),
		store:  store,
		tokens: mockapi.NewTokens(cfg.MockServer.JWTSecret, cfg.MockServer.JWTExpiresIn),
		hub:    hub,
	}

	respond := httpHandlers.Responder{Legacy: cfg.MockServer.LegacyEnvelope}

	// Setup middleware
	server.setupMiddleware()

	// Setup metrics
	if cfg.Metrics.Enabled {
		server.setupMetrics()
	}

	// Setup routes
	server.setupRoutes(
		httpHandlers.NewAuthHandler(store, server.tokens, respond, appLogger),
		httpHandlers.NewTaskHandler(store, respond, appLogger),
		httpHandlers.NewNotificationHandler(store, respond, appLogger),
		httpHandlers.NewStatsHandler(store, respond, appLogger),
	)

	return server, nil
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.echo.Use(middleware.Recover())

	// Request ID middleware
	s.echo.Use(middleware.RequestID())

	// Logger middleware
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogError:     true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, values middleware.RequestLoggerValues) error {
			fields := []interface{}{
				"method", values.Method,
				"uri", values.URI,
				"status", values.Status,
				"latency_ms", float64(values.Latency.Nanoseconds()) / 1000000,
				"remote_ip", values.RemoteIP,
				"request_id", values.RequestID,
			}

			if values.Error != nil {
				fields = append(fields, "error", values.Error.Error())
				s.logger.Warnw("HTTP request failed", fields...)
			} else {
				s.logger.Infow("HTTP request", fields...)
			}

			return nil
		},
	}))

	// CORS middleware
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderXRequestID},
		AllowMethods: []string{echo.GET, echo.HEAD, echo.PUT, echo.POST, echo.DELETE},
	}))

	// Rate limiting middleware
	if s.config.MockServer.RateLimitRequests > 0 {
		window := s.config.MockServer.RateLimitWindow
		if window <= 0 {
			window = time.Minute
		}
		s.echo.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Skipper: isWebSocket,
			Store: middleware.NewRateLimiterMemoryStoreWithConfig(
				middleware.RateLimiterMemoryStoreConfig{
					Rate:      rate.Limit(float64(s.config.MockServer.RateLimitRequests) / window.Seconds()),
					Burst:     s.config.MockServer.RateLimitRequests,
					ExpiresIn: window,
				},
			),
			IdentifierExtractor: func(ctx echo.Context) (string, error) {
				return ctx.RealIP(), nil
			},
			ErrorHandler: func(c echo.Context, err error) error {
				return httpHandlers.NewAPIError(http.StatusForbidden, "FORBIDDEN", "rate limit exceeded")
			},
			DenyHandler: func(c echo.Context, identifier string, err error) error {
				return httpHandlers.NewAPIError(http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
			},
		}))
	}

	// Security headers
	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
	}))

	// Timeout middleware; the push endpoint is long lived
	s.echo.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Skipper: isWebSocket,
		Timeout: 30 * time.Second,
	}))
}

func isWebSocket(c echo.Context) bool {
	return strings.HasPrefix(c.Request().URL.Path, "/ws/")
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(authHandler *httpHandlers.AuthHandler, taskHandler *httpHandlers.TaskHandler, notificationHandler *httpHandlers.NotificationHandler, statsHandler *httpHandlers.StatsHandler) {
	// Health check routes
	s.echo.GET("/health", s.healthCheck)

	// Push channel
	s.echo.GET("/ws/notifications", echo.WrapHandler(s.hub))

	// API v1 routes
	v1 := s.echo.Group("/api/v1")

	// Auth routes
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", authHandler.Me, s.authMiddleware())

	// Task routes (authenticated)
	taskGroup := v1.Group("/tasks", s.authMiddleware())
	taskGroup.GET("", taskHandler.ListTasks)
	taskGroup.POST("", taskHandler.CreateTask)
	taskGroup.GET("/:id", taskHandler.GetTask)
	taskGroup.PUT("/:id", taskHandler.UpdateTask)
	taskGroup.DELETE("/:id", taskHandler.DeleteTask)

	// Notification routes (authenticated)
	notificationGroup := v1.Group("/notifications", s.authMiddleware())
	notificationGroup.GET("", notificationHandler.ListNotifications)
	notificationGroup.GET("/unread-count", notificationHandler.UnreadCount)
	notificationGroup.POST("/mark-read", notificationHandler.MarkAsRead)

	// Statistics (authenticated)
	v1.GET("/statistics", statsHandler.GetStatistics, s.authMiddleware())
}

// setupMetrics configures Prometheus metrics
func (s *Server) setupMetrics() {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	registry.MustRegister(requestsTotal, requestDuration)

	// Custom metrics middleware
	s.echo.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			if err != nil {
				// the error handler has not written the reply yet
				var he *echo.HTTPError
				var ae *httpHandlers.APIError
				switch {
				case errors.As(err, &ae):
					status = ae.Status
				case errors.As(err, &he):
					status = he.Code
				default:
					status = http.StatusInternalServerError
				}
			}

			requestsTotal.WithLabelValues(
				c.Request().Method,
				c.Path(),
				fmt.Sprintf("%d", status),
			).Inc()

			requestDuration.WithLabelValues(
				c.Request().Method,
				c.Path(),
			).Observe(time.Since(start).Seconds())

			return err
		}
	})

	// Metrics endpoint
	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	s.echo.GET("/metrics", echo.WrapHandler(metricsHandler))
}

// Health check handler
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Handler exposes the router, for httptest servers
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Store returns the backing store
func (s *Server) Store() *mockapi.Store {
	return s.store
}

// Start runs the deadline sweeper and serves on address until Shutdown
func (s *Server) Start(address string) error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.sweepDeadlines(ctx)

	s.logger.Infow("Starting server", "address", address)
	return s.echo.Start(address)
}

func (s *Server) sweepDeadlines(ctx context.Context) {
	interval := s.config.MockServer.DeadlineSweep
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.store.SweepDeadlines(); n > 0 {
				s.logger.Infow("Deadline notifications sent", "count", n)
			}
		}
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Infow("Shutting down server")
	if s.cancel != nil {
		s.cancel()
	}
	s.hub.Close()
	return s.echo.Shutdown(ctx)
}

// customErrorHandler renders handler errors as the error envelope
func customErrorHandler(logger *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		status, writeErr := httpHandlers.WriteError(c, err)
		if status == http.StatusInternalServerError {
			logger.Errorw("Internal server error", "error", err, "path", c.Request().URL.Path)
		}
		if writeErr != nil {
			logger.Errorw("Error sending response", "error", writeErr)
		}
	}
}
