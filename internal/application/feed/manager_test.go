package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster/client/internal/domain/entities"
	"github.com/taskmaster/client/internal/infrastructure/logger"
	"github.com/taskmaster/client/internal/ports"
)

type fakeService struct {
	mu        sync.Mutex
	list      []entities.Notification
	unread    int
	marked    [][]int64
	markAll   int
	failMark  error
	failLoad  error
	loadCalls int
}

func (f *fakeService) GetNotifications(ctx context.Context, limit, offset int) ([]entities.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadCalls++
	if f.failLoad != nil {
		return nil, f.failLoad
	}
	return append([]entities.Notification(nil), f.list...), nil
}

func (f *fakeService) GetUnreadCount(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unread, nil
}

func (f *fakeService) MarkAsRead(ctx context.Context, ids []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failMark != nil {
		return f.failMark
	}
	f.marked = append(f.marked, ids)
	return nil
}

func (f *fakeService) MarkAllAsRead(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failMark != nil {
		return f.failMark
	}
	f.markAll++
	return nil
}

type fakeChannel struct {
	mu          sync.Mutex
	connectedTo string
	connects    int
	disconnects int
	onNotify    func(entities.Notification)
	onRead      func(int64)
	onStatus    func(bool)
}

func (c *fakeChannel) Connect(ctx context.Context, userID string) error {
	c.mu.Lock()
	c.connectedTo = userID
	c.connects++
	fn := c.onStatus
	c.mu.Unlock()
	if fn != nil {
		fn(true)
	}
	return nil
}

func (c *fakeChannel) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnects++
}

func (c *fakeChannel) IsConnected() bool { return true }

func (c *fakeChannel) OnNotification(fn func(entities.Notification)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onNotify = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.onNotify = nil
	}
}

func (c *fakeChannel) OnNotificationRead(fn func(int64)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRead = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.onRead = nil
	}
}

func (c *fakeChannel) OnStatusChange(fn func(bool)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStatus = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.onStatus = nil
	}
}

func (c *fakeChannel) push(n entities.Notification) {
	c.mu.Lock()
	fn := c.onNotify
	c.mu.Unlock()
	if fn != nil {
		fn(n)
	}
}

type fakeNotifier struct {
	permission ports.Permission
	grant      ports.Permission
	requests   int
	shown      []entities.Notification
}

func (n *fakeNotifier) Permission() ports.Permission { return n.permission }

func (n *fakeNotifier) RequestPermission(ctx context.Context) ports.Permission {
	n.requests++
	n.permission = n.grant
	return n.permission
}

func (n *fakeNotifier) Show(notification entities.Notification) error {
	n.shown = append(n.shown, notification)
	return nil
}

func readAt() *time.Time {
	t := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &t
}

func seed() *fakeService {
	return &fakeService{
		list: []entities.Notification{
			{ID: 3, Title: "c"},
			{ID: 2, Title: "b", ReadAt: readAt()},
			{ID: 1, Title: "a"},
		},
		unread: 2,
	}
}

func newTestManager(svc *fakeService, notifier *fakeNotifier) (*Manager, *fakeChannel) {
	ch := &fakeChannel{}
	var n ports.DesktopNotifier
	if notifier != nil {
		n = notifier
	}
	return New(svc, ch, n, 50, logger.NewNop()), ch
}

func TestStart_LoadsFeedAndConnects(t *testing.T) {
	svc := seed()
	m, ch := newTestManager(svc, nil)

	require.NoError(t, m.Start(context.Background(), &entities.User{ID: "42"}))

	state := m.State()
	assert.Len(t, state.Notifications, 3)
	assert.Equal(t, 2, state.UnreadCount)
	assert.True(t, state.Connected)
	assert.False(t, state.Loading)
	assert.Equal(t, "42", ch.connectedTo)
}

func TestStart_NilUserClearsState(t *testing.T) {
	svc := seed()
	m, ch := newTestManager(svc, nil)
	require.NoError(t, m.Start(context.Background(), &entities.User{ID: "42"}))

	require.NoError(t, m.Start(context.Background(), nil))
	state := m.State()
	assert.Empty(t, state.Notifications)
	assert.Zero(t, state.UnreadCount)
	assert.False(t, state.Connected)
	assert.Equal(t, 1, ch.disconnects)

	ch.push(entities.Notification{ID: 9})
	assert.Empty(t, m.State().Notifications)
}

func TestPush_PrependsAndCountsUnread(t *testing.T) {
	svc := seed()
	notifier := &fakeNotifier{permission: ports.PermissionDefault, grant: ports.PermissionGranted}
	m, ch := newTestManager(svc, notifier)
	require.NoError(t, m.Start(context.Background(), &entities.User{ID: "42"}))

	ch.push(entities.Notification{ID: 4, Title: "new"})
	ch.push(entities.Notification{ID: 5, Title: "already read", ReadAt: readAt()})

	state := m.State()
	require.Len(t, state.Notifications, 5)
	assert.EqualValues(t, 5, state.Notifications[0].ID)
	assert.EqualValues(t, 4, state.Notifications[1].ID)
	assert.Equal(t, 3, state.UnreadCount)
	assert.Len(t, notifier.shown, 2)
}

func TestPermission_RequestedOnceOnFirstConnect(t *testing.T) {
	notifier := &fakeNotifier{permission: ports.PermissionDefault, grant: ports.PermissionDenied}
	m, ch := newTestManager(seed(), notifier)
	ctx := context.Background()

	require.NoError(t, m.Start(ctx, &entities.User{ID: "1"}))
	require.NoError(t, m.Start(ctx, nil))
	require.NoError(t, m.Start(ctx, &entities.User{ID: "2"}))
	assert.Equal(t, 1, notifier.requests)

	ch.push(entities.Notification{ID: 10})
	assert.Empty(t, notifier.shown)
}

func TestMarkAsRead_DecrementsOnlyPreviouslyUnread(t *testing.T) {
	svc := seed()
	m, _ := newTestManager(svc, nil)
	ctx := context.Background()
	require.NoError(t, m.Start(ctx, &entities.User{ID: "42"}))

	// 2 is already read, 99 is unknown, 3 is listed twice
	require.NoError(t, m.MarkAsRead(ctx, []int64{3, 2, 99, 3}))
	state := m.State()
	assert.Equal(t, 1, state.UnreadCount)
	assert.NotNil(t, state.Notifications[0].ReadAt)
	assert.Nil(t, state.Notifications[2].ReadAt)

	require.NoError(t, m.MarkAsRead(ctx, []int64{3}))
	assert.Equal(t, 1, m.State().UnreadCount)

	require.NoError(t, m.MarkAsRead(ctx, []int64{1}))
	assert.Equal(t, 0, m.State().UnreadCount)
	assert.Len(t, svc.marked, 3)
}

func TestMarkAsRead_StampsRepeatedPush(t *testing.T) {
	svc := seed()
	m, ch := newTestManager(svc, nil)
	ctx := context.Background()
	require.NoError(t, m.Start(ctx, &entities.User{ID: "42"}))

	ch.push(entities.Notification{ID: 3, Title: "c"})
	require.Equal(t, 3, m.State().UnreadCount)

	require.NoError(t, m.MarkAsRead(ctx, []int64{3}))
	state := m.State()
	for _, n := range state.Notifications {
		if n.ID == 3 {
			assert.NotNil(t, n.ReadAt)
		}
	}
	assert.Equal(t, 2, state.UnreadCount)
}

func TestMarkAsRead_FloorsAtZero(t *testing.T) {
	svc := seed()
	svc.unread = 1 // server count lags behind the list
	m, _ := newTestManager(svc, nil)
	ctx := context.Background()
	require.NoError(t, m.Start(ctx, &entities.User{ID: "42"}))

	require.NoError(t, m.MarkAsRead(ctx, []int64{1, 3}))
	assert.Equal(t, 0, m.State().UnreadCount)
}

func TestMarkAsRead_FailureLeavesState(t *testing.T) {
	svc := seed()
	m, _ := newTestManager(svc, nil)
	ctx := context.Background()
	require.NoError(t, m.Start(ctx, &entities.User{ID: "42"}))

	svc.failMark = errors.New("offline")
	assert.Error(t, m.MarkAsRead(ctx, []int64{1}))
	assert.Equal(t, 2, m.State().UnreadCount)
	assert.Error(t, m.MarkAllAsRead(ctx))
	assert.Equal(t, 2, m.State().UnreadCount)
}

func TestMarkAllAsRead(t *testing.T) {
	svc := seed()
	m, _ := newTestManager(svc, nil)
	ctx := context.Background()
	require.NoError(t, m.Start(ctx, &entities.User{ID: "42"}))

	require.NoError(t, m.MarkAllAsRead(ctx))
	state := m.State()
	assert.Zero(t, state.UnreadCount)
	for _, n := range state.Notifications {
		assert.NotNil(t, n.ReadAt)
	}
	assert.Equal(t, readAt(), state.Notifications[1].ReadAt, "existing read_at is kept")
}

func TestNotificationReadFrame(t *testing.T) {
	svc := seed()
	m, ch := newTestManager(svc, nil)
	require.NoError(t, m.Start(context.Background(), &entities.User{ID: "42"}))

	ch.mu.Lock()
	onRead := ch.onRead
	ch.mu.Unlock()
	onRead(1)
	onRead(1)
	assert.Equal(t, 1, m.State().UnreadCount)
}

func TestRefresh_ErrorKeepsPreviousFeed(t *testing.T) {
	svc := seed()
	m, _ := newTestManager(svc, nil)
	ctx := context.Background()
	require.NoError(t, m.Start(ctx, &entities.User{ID: "42"}))

	svc.failLoad = errors.New("boom")
	assert.Error(t, m.Refresh(ctx))
	state := m.State()
	assert.Len(t, state.Notifications, 3)
	assert.False(t, state.Loading)
}

func TestRefresh_RequiresSession(t *testing.T) {
	m, _ := newTestManager(seed(), nil)
	assert.ErrorIs(t, m.Refresh(context.Background()), entities.ErrNotAuthenticated)
}

func TestSubscribe(t *testing.T) {
	m, ch := newTestManager(seed(), nil)
	require.NoError(t, m.Start(context.Background(), &entities.User{ID: "42"}))

	var got []State
	unsubscribe := m.Subscribe(func(s State) { got = append(got, s) })
	ch.push(entities.Notification{ID: 8})
	unsubscribe()
	ch.push(entities.Notification{ID: 9})

	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].UnreadCount)
}
