package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the client
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	API           APIConfig           `mapstructure:"api"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Credentials   CredentialsConfig   `mapstructure:"credentials"`
	Logger        LoggerConfig        `mapstructure:"logger"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
	MockServer    MockServerConfig    `mapstructure:"mock_server"`
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// APIConfig points the client at the remote REST and push endpoints
type APIConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	WSURL          string        `mapstructure:"ws_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

// CacheConfig holds query cache configuration
type CacheConfig struct {
	StaleTime time.Duration `mapstructure:"stale_time"`
}

// NotificationsConfig holds notification feed configuration
type NotificationsConfig struct {
	PageSize             int           `mapstructure:"page_size"`
	ReconnectMaxAttempts int           `mapstructure:"reconnect_max_attempts"`
	ReconnectInterval    time.Duration `mapstructure:"reconnect_interval"`
	Desktop              bool          `mapstructure:"desktop"`
}

// CredentialsConfig selects where the bearer token and user profile live
type CredentialsConfig struct {
	Backend       string `mapstructure:"backend"`
	FilePath      string `mapstructure:"file_path"`
	SQLitePath    string `mapstructure:"sqlite_path"`
	Profile       string `mapstructure:"profile"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	RedisPrefix   string `mapstructure:"redis_prefix"`
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	Filename string `mapstructure:"filename"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// MockServerConfig holds configuration of the in-memory development backend
type MockServerConfig struct {
	Port              int           `mapstructure:"port"`
	JWTSecret         string        `mapstructure:"jwt_secret"`
	JWTExpiresIn      time.Duration `mapstructure:"jwt_expires_in"`
	LegacyEnvelope    bool          `mapstructure:"legacy_envelope"`
	RateLimitRequests int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow   time.Duration `mapstructure:"rate_limit_window"`
	PingInterval      time.Duration `mapstructure:"ping_interval"`
	DeadlineSweep     time.Duration `mapstructure:"deadline_sweep"`
}

// Load loads configuration from .env, an optional YAML file and the environment
func Load(configFile string) (*Config, error) {
	// Load .env file if it exists (ignore errors)
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)
	bindEnvVars(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.API.WSURL == "" {
		wsURL, err := DeriveWSURL(cfg.API.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		cfg.API.WSURL = wsURL
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "taskctl")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)

	// API defaults
	v.SetDefault("api.base_url", "http://localhost:8000/api/v1")
	v.SetDefault("api.ws_url", "")
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.rate_limit_rps", 0)
	v.SetDefault("api.rate_limit_burst", 10)

	// Cache defaults
	v.SetDefault("cache.stale_time", "5s")

	// Notification defaults
	v.SetDefault("notifications.page_size", 50)
	v.SetDefault("notifications.reconnect_max_attempts", 5)
	v.SetDefault("notifications.reconnect_interval", "1s")
	v.SetDefault("notifications.desktop", true)

	// Credential store defaults
	v.SetDefault("credentials.backend", "file")
	v.SetDefault("credentials.file_path", ".taskctl/credentials.yaml")
	v.SetDefault("credentials.sqlite_path", ".taskctl/credentials.db")
	v.SetDefault("credentials.profile", "default")
	v.SetDefault("credentials.redis_addr", "localhost:6379")
	v.SetDefault("credentials.redis_password", "")
	v.SetDefault("credentials.redis_db", 0)
	v.SetDefault("credentials.redis_prefix", "taskctl")

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output", "stderr")
	v.SetDefault("logger.filename", "")

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.namespace", "taskctl")

	// Mock server defaults
	v.SetDefault("mock_server.port", 8000)
	v.SetDefault("mock_server.jwt_secret", "mock-server-secret")
	v.SetDefault("mock_server.jwt_expires_in", "24h")
	v.SetDefault("mock_server.legacy_envelope", false)
	v.SetDefault("mock_server.rate_limit_requests", 100)
	v.SetDefault("mock_server.rate_limit_window", "1m")
	v.SetDefault("mock_server.ping_interval", "30s")
	v.SetDefault("mock_server.deadline_sweep", "1m")
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.environment", "APP_ENVIRONMENT")
	v.BindEnv("app.debug", "APP_DEBUG")

	// API
	v.BindEnv("api.base_url", "API_BASE_URL")
	v.BindEnv("api.ws_url", "API_WS_URL")
	v.BindEnv("api.timeout", "API_TIMEOUT")
	v.BindEnv("api.rate_limit_rps", "API_RATE_LIMIT_RPS")
	v.BindEnv("api.rate_limit_burst", "API_RATE_LIMIT_BURST")

	// Cache
	v.BindEnv("cache.stale_time", "CACHE_STALE_TIME")

	// Notifications
	v.BindEnv("notifications.page_size", "NOTIFICATIONS_PAGE_SIZE")
	v.BindEnv("notifications.reconnect_max_attempts", "NOTIFICATIONS_RECONNECT_MAX_ATTEMPTS")
	v.BindEnv("notifications.reconnect_interval", "NOTIFICATIONS_RECONNECT_INTERVAL")
	v.BindEnv("notifications.desktop", "NOTIFICATIONS_DESKTOP")

	// Credentials
	v.BindEnv("credentials.backend", "CREDENTIALS_BACKEND")
	v.BindEnv("credentials.file_path", "CREDENTIALS_FILE_PATH")
	v.BindEnv("credentials.sqlite_path", "CREDENTIALS_SQLITE_PATH")
	v.BindEnv("credentials.profile", "CREDENTIALS_PROFILE")
	v.BindEnv("credentials.redis_addr", "REDIS_ADDR")
	v.BindEnv("credentials.redis_password", "REDIS_PASSWORD")
	v.BindEnv("credentials.redis_db", "REDIS_DB")
	v.BindEnv("credentials.redis_prefix", "REDIS_PREFIX")

	// Logger
	v.BindEnv("logger.level", "LOG_LEVEL")
	v.BindEnv("logger.format", "LOG_FORMAT")
	v.BindEnv("logger.output", "LOG_OUTPUT")
	v.BindEnv("logger.filename", "LOG_FILENAME")

	// Metrics
	v.BindEnv("metrics.enabled", "ENABLE_METRICS")

	// Mock server
	v.BindEnv("mock_server.port", "MOCK_SERVER_PORT")
	v.BindEnv("mock_server.jwt_secret", "JWT_SECRET")
	v.BindEnv("mock_server.jwt_expires_in", "JWT_EXPIRES_IN")
	v.BindEnv("mock_server.legacy_envelope", "MOCK_SERVER_LEGACY_ENVELOPE")
	v.BindEnv("mock_server.rate_limit_requests", "RATE_LIMIT_REQUESTS")
	v.BindEnv("mock_server.rate_limit_window", "RATE_LIMIT_WINDOW")
	v.BindEnv("mock_server.ping_interval", "MOCK_SERVER_PING_INTERVAL")
	v.BindEnv("mock_server.deadline_sweep", "MOCK_SERVER_DEADLINE_SWEEP")
}

func validateConfig(cfg *Config) error {
	u, err := url.Parse(cfg.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api base url must be an absolute http(s) url")
	}

	switch cfg.Credentials.Backend {
	case "memory", "file", "sqlite", "redis":
	default:
		return fmt.Errorf("unknown credentials backend %q", cfg.Credentials.Backend)
	}

	if cfg.Cache.StaleTime < 0 {
		return fmt.Errorf("cache stale time must not be negative")
	}

	if cfg.Notifications.ReconnectMaxAttempts < 0 {
		return fmt.Errorf("reconnect max attempts must not be negative")
	}

	if cfg.MockServer.Port <= 0 || cfg.MockServer.Port > 65535 {
		return fmt.Errorf("mock server port must be between 1 and 65535")
	}

	return nil
}

// DeriveWSURL maps the REST base URL onto the notification push endpoint
func DeriveWSURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws/notifications"
	u.RawQuery = ""
	return u.String(), nil
}

// IsDevelopment returns true if the environment is development
func (cfg *AppConfig) IsDevelopment() bool {
	return cfg.Environment == "development"
}
