package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000/api/v1", cfg.API.BaseURL)
	assert.Equal(t, "ws://localhost:8000/ws/notifications", cfg.API.WSURL)
	assert.Equal(t, 5*time.Second, cfg.Cache.StaleTime)
	assert.Equal(t, 5, cfg.Notifications.ReconnectMaxAttempts)
	assert.Equal(t, time.Second, cfg.Notifications.ReconnectInterval)
	assert.Equal(t, "file", cfg.Credentials.Backend)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://tasks.example.com/api/v1")
	t.Setenv("CACHE_STALE_TIME", "10s")
	t.Setenv("CREDENTIALS_BACKEND", "memory")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "wss://tasks.example.com/ws/notifications", cfg.API.WSURL)
	assert.Equal(t, 10*time.Second, cfg.Cache.StaleTime)
	assert.Equal(t, "memory", cfg.Credentials.Backend)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  ws_url: ws://push.local/ws\nnotifications:\n  page_size: 20\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ws://push.local/ws", cfg.API.WSURL)
	assert.Equal(t, 20, cfg.Notifications.PageSize)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("CREDENTIALS_BACKEND", "floppy")
	_, err := Load("")
	assert.Error(t, err)
}

func TestDeriveWSURL(t *testing.T) {
	got, err := DeriveWSURL("http://192.168.1.4:8000/api/v1?x=1")
	require.NoError(t, err)
	assert.Equal(t, "ws://192.168.1.4:8000/ws/notifications", got)
}
