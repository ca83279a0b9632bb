package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster/client/internal/adapters/api"
	"github.com/taskmaster/client/internal/adapters/credentials"
	"github.com/taskmaster/client/internal/domain/entities"
	"github.com/taskmaster/client/internal/infrastructure/logger"
)

type call struct {
	method string
	path   string
	body   interface{}
	query  map[string]interface{}
}

// fakeTransport answers requests with canned JSON keyed by "METHOD path"
type fakeTransport struct {
	calls     []call
	responses map[string]string
	errs      map[string]error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{responses: map[string]string{}, errs: map[string]error{}}
}

func (f *fakeTransport) Do(ctx context.Context, method, path string, body interface{}, query map[string]interface{}, out interface{}) error {
	f.calls = append(f.calls, call{method: method, path: path, body: body, query: query})
	key := method + " " + path
	if err := f.errs[key]; err != nil {
		return err
	}
	if resp, ok := f.responses[key]; ok && out != nil {
		return json.Unmarshal([]byte(resp), out)
	}
	return nil
}

func TestAuthService_LoginPersistsCredentials(t *testing.T) {
	ctx := context.Background()
	tr := newFakeTransport()
	tr.responses["POST /auth/login"] = `{"user":{"id":"u1","name":"Alice","email":"alice@example.com"},"token":"tok"}`
	store := credentials.NewMemoryStore()
	svc := NewAuthService(tr, store, logger.NewNop())

	resp, err := svc.Login(ctx, entities.LoginRequest{Email: "alice@example.com", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "Alice", resp.User.Name)

	token, _ := store.Token(ctx)
	assert.Equal(t, "tok", token)
	user, _ := store.User(ctx)
	require.NotNil(t, user)
	assert.Equal(t, "u1", user.ID)
	assert.True(t, svc.IsAuthenticated(ctx))

	require.NoError(t, svc.Logout(ctx))
	assert.False(t, svc.IsAuthenticated(ctx))
}

// sessionStore records atomic writes and refuses piecemeal ones
type sessionStore struct {
	*credentials.MemoryStore
	sessions int
}

func (s *sessionStore) SetToken(ctx context.Context, token string) error {
	return errors.New("token written outside a session")
}

func (s *sessionStore) SetSession(ctx context.Context, token string, user *entities.User) error {
	s.sessions++
	if err := s.MemoryStore.SetToken(ctx, token); err != nil {
		return err
	}
	return s.MemoryStore.SetUser(ctx, user)
}

func TestAuthService_LoginWritesSessionAtomically(t *testing.T) {
	ctx := context.Background()
	tr := newFakeTransport()
	tr.responses["POST /auth/login"] = `{"user":{"id":"u1","name":"Alice","email":"alice@example.com"},"token":"tok"}`
	store := &sessionStore{MemoryStore: credentials.NewMemoryStore()}
	svc := NewAuthService(tr, store, logger.NewNop())

	_, err := svc.Login(ctx, entities.LoginRequest{Email: "alice@example.com", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, 1, store.sessions)

	user, err := svc.StoredUser(ctx)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "u1", user.ID)
}

func TestAuthService_LoginValidatesBeforeNetwork(t *testing.T) {
	tr := newFakeTransport()
	svc := NewAuthService(tr, credentials.NewMemoryStore(), logger.NewNop())

	_, err := svc.Login(context.Background(), entities.LoginRequest{Email: "nope"})
	var verr *entities.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Empty(t, tr.calls)
}

func TestAuthService_FailedLoginStoresNothing(t *testing.T) {
	ctx := context.Background()
	tr := newFakeTransport()
	tr.errs["POST /auth/login"] = &api.TransportError{Status: 401, Message: "Invalid credentials"}
	store := credentials.NewMemoryStore()
	svc := NewAuthService(tr, store, logger.NewNop())

	_, err := svc.Login(ctx, entities.LoginRequest{Email: "a@b.co", Password: "x"})
	assert.EqualError(t, err, "Invalid credentials")
	assert.True(t, api.IsUnauthorized(err))
	token, _ := store.Token(ctx)
	assert.Empty(t, token)
}

func TestAuthService_ExpiredJWTIsNotAuthenticated(t *testing.T) {
	ctx := context.Background()
	store := credentials.NewMemoryStore()
	svc := NewAuthService(newFakeTransport(), store, logger.NewNop())

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	require.NoError(t, store.SetToken(ctx, expired))
	assert.False(t, svc.IsAuthenticated(ctx))

	valid, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	require.NoError(t, store.SetToken(ctx, valid))
	assert.True(t, svc.IsAuthenticated(ctx))
}

func TestTaskService_GetTasksSendsAllFilterKeys(t *testing.T) {
	tr := newFakeTransport()
	tr.responses["GET /tasks"] = `{"tasks":[{"id":"1","title":"Buy milk"}],"total":1,"page":1,"limit":10,"total_pages":1}`
	svc := NewTaskService(tr, logger.NewNop())

	resp, err := svc.GetTasks(context.Background(), entities.TaskFilters{Status: entities.TaskStatusTodo}.Normalize())
	require.NoError(t, err)
	require.Len(t, resp.Tasks, 1)

	q := tr.calls[0].query
	assert.Equal(t, "todo", q["status"])
	assert.Equal(t, 1, q["page"])
	assert.Nil(t, q["priority"])
}

func TestTaskService_CreateNormalizesTags(t *testing.T) {
	tr := newFakeTransport()
	tr.responses["POST /tasks"] = `{"id":"9","title":"Buy milk","tags":["home"]}`
	svc := NewTaskService(tr, logger.NewNop())

	task, err := svc.CreateTask(context.Background(), entities.CreateTaskRequest{
		Title: "Buy milk",
		Tags:  []string{"Home", "home ", "HOME"},
	})
	require.NoError(t, err)
	assert.Equal(t, "9", task.ID)

	body := tr.calls[0].body.(entities.CreateTaskRequest)
	assert.Equal(t, []string{"home"}, body.Tags)
}

func TestTaskService_CreateRejectsShortTitle(t *testing.T) {
	tr := newFakeTransport()
	svc := NewTaskService(tr, logger.NewNop())

	_, err := svc.CreateTask(context.Background(), entities.CreateTaskRequest{Title: "ab"})
	assert.Error(t, err)
	assert.Empty(t, tr.calls)
}

func TestTaskService_PassesTransportErrorsThrough(t *testing.T) {
	tr := newFakeTransport()
	notFound := &api.TransportError{Status: 404, Code: "TASK_NOT_FOUND", Message: "Task not found"}
	tr.errs["GET /tasks/42"] = notFound
	svc := NewTaskService(tr, logger.NewNop())

	_, err := svc.GetTask(context.Background(), "42")
	assert.Same(t, notFound, err)
	assert.ErrorIs(t, err, entities.ErrTaskNotFound)
}

func TestTaskService_DeleteDefaultsToDeleted(t *testing.T) {
	tr := newFakeTransport()
	svc := NewTaskService(tr, logger.NewNop())

	resp, err := svc.DeleteTask(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, resp.Deleted)
	assert.Equal(t, "DELETE", tr.calls[0].method)
	assert.Equal(t, "/tasks/1", tr.calls[0].path)
}

func TestStatsService_AnalyticsQuery(t *testing.T) {
	tr := newFakeTransport()
	tr.responses["GET /statistics"] = `{"total_tasks":3,"completion_rate":33.3}`
	svc := NewStatsService(tr, logger.NewNop())

	stats, err := svc.GetAnalyticsStats(context.Background(), entities.StatsQuery{Period: entities.StatsPeriodWeek})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalTasks)
	assert.Equal(t, "week", tr.calls[0].query["period"])

	_, err = svc.GetAnalyticsStats(context.Background(), entities.StatsQuery{Period: "decade"})
	assert.Error(t, err)
	assert.Len(t, tr.calls, 1)
}

func TestNotificationService_AcceptsBothListShapes(t *testing.T) {
	tr := newFakeTransport()
	svc := NewNotificationService(tr, 50, logger.NewNop())

	tr.responses["GET /notifications"] = `[{"id":1,"title":"a"}]`
	list, err := svc.GetNotifications(context.Background(), 20, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 20, tr.calls[0].query["limit"])
	assert.Nil(t, tr.calls[0].query["offset"])

	tr.responses["GET /notifications"] = `{"notifications":[{"id":1},{"id":2}],"unread_count":2}`
	list, err = svc.GetNotifications(context.Background(), 20, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestNotificationService_MarkAllAsReadSendsOnlyUnread(t *testing.T) {
	tr := newFakeTransport()
	tr.responses["GET /notifications"] = `[{"id":1,"read_at":null},{"id":2,"read_at":"2026-01-01T00:00:00Z"},{"id":3}]`
	svc := NewNotificationService(tr, 50, logger.NewNop())

	require.NoError(t, svc.MarkAllAsRead(context.Background()))
	require.Len(t, tr.calls, 2)
	assert.Equal(t, "/notifications/mark-read", tr.calls[1].path)
	body := tr.calls[1].body.(entities.MarkAsReadRequest)
	assert.Equal(t, []int64{1, 3}, body.NotificationIDs)
}

func TestNotificationService_MarkAllAsReadNothingUnread(t *testing.T) {
	tr := newFakeTransport()
	tr.responses["GET /notifications"] = `[{"id":2,"read_at":"2026-01-01T00:00:00Z"}]`
	svc := NewNotificationService(tr, 50, logger.NewNop())

	require.NoError(t, svc.MarkAllAsRead(context.Background()))
	assert.Len(t, tr.calls, 1)
}

func TestNotificationService_UnreadCount(t *testing.T) {
	tr := newFakeTransport()
	tr.responses["GET /notifications/unread-count"] = `{"unread_count":4}`
	svc := NewNotificationService(tr, 50, logger.NewNop())

	n, err := svc.GetUnreadCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}
