package commands

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster/client/internal/domain/entities"
	"github.com/taskmaster/client/internal/infrastructure/config"
	"github.com/taskmaster/client/internal/infrastructure/logger"
	"github.com/taskmaster/client/internal/infrastructure/server"
)

func listFlags(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := newTasksListCommand()
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestParseTaskFilters(t *testing.T) {
	cmd := listFlags(t, "--page", "3", "--status", "doing", "--due-from", "2026-03-01")
	filters, err := parseTaskFilters(cmd.Flags())
	require.NoError(t, err)

	assert.Equal(t, 3, filters.Page)
	assert.Equal(t, entities.DefaultLimit, filters.Limit)
	assert.Equal(t, entities.TaskStatusDoing, filters.Status)
	require.NotNil(t, filters.DueFrom)

	cmd = listFlags(t, "--priority", "urgent")
	_, err = parseTaskFilters(cmd.Flags())
	assert.ErrorIs(t, err, entities.ErrInvalidPriority)
}

func TestParseLocalFilters(t *testing.T) {
	local, err := parseLocalFilters(listFlags(t).Flags())
	require.NoError(t, err)
	assert.Equal(t, entities.DefaultLocalFilters(), local)

	local, err = parseLocalFilters(listFlags(t, "--group-by", "tag", "--hide-completed", "--date-filter", "custom", "--from", "2026-01-01").Flags())
	require.NoError(t, err)
	assert.Equal(t, entities.GroupByTag, local.GroupBy)
	assert.False(t, local.ShowCompleted)
	require.NotNil(t, local.CustomDateFrom)
	assert.Nil(t, local.CustomDateTo)

	_, err = parseLocalFilters(listFlags(t, "--group-by", "colour").Flags())
	assert.Error(t, err)
}

func TestParseUpdate(t *testing.T) {
	cmd := newTasksUpdateCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--status", "done", "--tags", "a,b"}))

	req, err := parseUpdate(cmd.Flags())
	require.NoError(t, err)
	require.NotNil(t, req.Status)
	assert.Equal(t, entities.TaskStatusDone, *req.Status)
	assert.Equal(t, []string{"a", "b"}, req.Tags)
	assert.Nil(t, req.Title)
	assert.Nil(t, req.Priority)

	empty := newTasksUpdateCommand()
	require.NoError(t, empty.ParseFlags(nil))
	req, err = parseUpdate(empty.Flags())
	require.NoError(t, err)
	assert.True(t, req.IsEmpty())
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommands_EndToEnd(t *testing.T) {
	cfg := &config.Config{MockServer: config.MockServerConfig{JWTSecret: "cli-secret", JWTExpiresIn: time.Hour, PingInterval: time.Minute}}
	backend, err := server.New(cfg, nil, logger.NewNop())
	require.NoError(t, err)
	ts := httptest.NewServer(backend.Handler())
	defer ts.Close()

	t.Setenv("API_BASE_URL", ts.URL+"/api/v1")
	t.Setenv("CREDENTIALS_BACKEND", "file")
	t.Setenv("CREDENTIALS_FILE_PATH", filepath.Join(t.TempDir(), "credentials.yaml"))
	t.Setenv("NOTIFICATIONS_DESKTOP", "false")
	t.Setenv("NOTIFICATIONS_RECONNECT_MAX_ATTEMPTS", "0")
	t.Setenv("LOG_LEVEL", "error")

	_, err = run(t, "tasks", "list")
	assert.ErrorIs(t, err, entities.ErrNotAuthenticated)

	out, err := run(t, "register", "--name", "Ada", "--email", "ada@example.com", "--password", "secret1")
	require.NoError(t, err)
	assert.Contains(t, out, "Account created for ada@example.com")

	out, err = run(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "ada@example.com")

	out, err = run(t, "tasks", "create", "--title", "Buy milk", "--priority", "low", "--tags", "home")
	require.NoError(t, err)
	assert.Contains(t, out, "Created task")

	out, err = run(t, "tasks", "list", "--group-by", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Buy milk")
	assert.Contains(t, out, "#home")

	out, err = run(t, "stats")
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	out, err = run(t, "notifications", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "New Task Assigned")

	_, err = run(t, "logout")
	require.NoError(t, err)
	_, err = run(t, "whoami")
	assert.ErrorIs(t, err, entities.ErrNotAuthenticated)
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "taskctl v"+Version)
}
