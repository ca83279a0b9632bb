// Package feed keeps the notification feed of the signed-in user: the
// newest-first list, the unread count and the push connection state.
package feed

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/taskmaster/client/internal/domain/entities"
	"github.com/taskmaster/client/internal/infrastructure/logger"
	"github.com/taskmaster/client/internal/ports"
)

// State is a copy of the feed for rendering
type State struct {
	Notifications []entities.Notification
	UnreadCount   int
	Connected     bool
	Loading       bool
}

// Manager owns the feed state. It is safe for concurrent use.
type Manager struct {
	service  ports.NotificationService
	channel  ports.PushChannel
	notifier ports.DesktopNotifier
	pageSize int
	logger   *logger.Logger
	now      func() time.Time

	mu              sync.Mutex
	user            *entities.User
	epoch           uint64
	notifications   []entities.Notification
	unread          int
	connected       bool
	loading         bool
	permissionAsked bool
	unsubscribe     []func()

	listenerMu sync.Mutex
	nextID     int
	listeners  map[int]func(State)
}

// New creates an idle manager. notifier may be nil.
func New(service ports.NotificationService, channel ports.PushChannel, notifier ports.DesktopNotifier, pageSize int, log *logger.Logger) *Manager {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Manager{
		service:   service,
		channel:   channel,
		notifier:  notifier,
		pageSize:  pageSize,
		logger:    log.WithComponent("feed"),
		now:       time.Now,
		listeners: map[int]func(State){},
	}
}

// Start begins a session for user: it opens the push channel, asks for the
// desktop permission on the first connect and loads the first page and the
// unread count. A nil user ends the session like Stop.
func (m *Manager) Start(ctx context.Context, user *entities.User) error {
	if user == nil {
		m.Stop()
		return nil
	}

	m.mu.Lock()
	if m.user != nil && m.user.ID == user.ID {
		m.mu.Unlock()
		return m.Refresh(ctx)
	}
	m.mu.Unlock()
	m.Stop()

	u := *user
	m.mu.Lock()
	m.user = &u
	m.epoch++
	m.unsubscribe = []func(){
		m.channel.OnNotification(m.Add),
		m.channel.OnNotificationRead(m.markReadLocally),
		m.channel.OnStatusChange(m.setConnected),
	}
	m.mu.Unlock()

	if err := m.channel.Connect(ctx, u.ID); err != nil {
		m.logger.WithUserID(u.ID).WithError(err).Warn("Notification stream unavailable")
	}
	m.requestPermissionOnce(ctx)

	return m.Refresh(ctx)
}

func (m *Manager) requestPermissionOnce(ctx context.Context) {
	if m.notifier == nil {
		return
	}
	m.mu.Lock()
	asked := m.permissionAsked
	m.permissionAsked = true
	m.mu.Unlock()

	if !asked && m.notifier.Permission() == ports.PermissionDefault {
		p := m.notifier.RequestPermission(ctx)
		m.logger.Debugw("Desktop notification permission", "permission", p)
	}
}

// Stop closes the push channel and clears all state
func (m *Manager) Stop() {
	m.mu.Lock()
	unsubscribe := m.unsubscribe
	active := m.user != nil
	m.unsubscribe = nil
	m.user = nil
	m.epoch++
	m.notifications = nil
	m.unread = 0
	m.connected = false
	m.loading = false
	m.mu.Unlock()

	for _, fn := range unsubscribe {
		fn()
	}
	if active {
		m.channel.Disconnect()
	}
	m.publish()
}

// Refresh reloads the first page and the unread count concurrently
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	if m.user == nil {
		m.mu.Unlock()
		return entities.ErrNotAuthenticated
	}
	epoch := m.epoch
	m.loading = true
	m.mu.Unlock()
	m.publish()

	var (
		list  []entities.Notification
		count int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		list, err = m.service.GetNotifications(gctx, m.pageSize, 0)
		return err
	})
	g.Go(func() error {
		var err error
		count, err = m.service.GetUnreadCount(gctx)
		return err
	})
	err := g.Wait()

	m.mu.Lock()
	if m.epoch != epoch {
		// the session ended while loading
		m.mu.Unlock()
		return err
	}
	m.loading = false
	if err == nil {
		m.notifications = list
		m.unread = count
	}
	m.mu.Unlock()

	if err != nil {
		m.logger.WithError(err).Warn("Failed to load notifications")
	}
	m.publish()
	return err
}

// Add puts a pushed notification at the front of the feed and shows it on
// the desktop when permitted.
func (m *Manager) Add(n entities.Notification) {
	m.mu.Lock()
	if m.user == nil {
		m.mu.Unlock()
		return
	}
	m.notifications = append([]entities.Notification{n}, m.notifications...)
	if n.IsUnread() {
		m.unread++
	}
	m.mu.Unlock()

	if m.notifier != nil && m.notifier.Permission() == ports.PermissionGranted {
		if err := m.notifier.Show(n); err != nil {
			m.logger.WithError(err).Warnw("Failed to show desktop notification", "notification_id", n.ID)
		}
	}
	m.publish()
}

// MarkAsRead marks ids read on the server, then locally. The unread count
// drops by the number of ids that were unread before the call.
func (m *Manager) MarkAsRead(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if err := m.service.MarkAsRead(ctx, ids); err != nil {
		m.logger.WithError(err).Warn("Failed to mark notifications as read")
		return err
	}

	m.mu.Lock()
	m.applyReadLocked(ids)
	m.mu.Unlock()
	m.publish()
	return nil
}

// applyReadLocked stamps read_at on the unread notifications in ids.
// m.mu must be held.
func (m *Manager) applyReadLocked(ids []int64) {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}

	stamp := m.now().UTC()
	counted := make(map[int64]struct{}, len(ids))
	updated := make([]entities.Notification, len(m.notifications))
	for i, n := range m.notifications {
		if _, ok := set[n.ID]; ok && n.IsUnread() {
			ts := stamp
			n.ReadAt = &ts
			// every copy is stamped, the id is counted once
			counted[n.ID] = struct{}{}
		}
		updated[i] = n
	}
	read := len(counted)
	m.notifications = updated

	m.unread -= read
	if m.unread < 0 {
		m.unread = 0
	}
}

func (m *Manager) markReadLocally(id int64) {
	m.mu.Lock()
	if m.user == nil {
		m.mu.Unlock()
		return
	}
	m.applyReadLocked([]int64{id})
	m.mu.Unlock()
	m.publish()
}

// MarkAllAsRead marks every notification read and zeroes the unread count
func (m *Manager) MarkAllAsRead(ctx context.Context) error {
	if err := m.service.MarkAllAsRead(ctx); err != nil {
		m.logger.WithError(err).Warn("Failed to mark all notifications as read")
		return err
	}

	m.mu.Lock()
	stamp := m.now().UTC()
	updated := make([]entities.Notification, len(m.notifications))
	for i, n := range m.notifications {
		if n.IsUnread() {
			ts := stamp
			n.ReadAt = &ts
		}
		updated[i] = n
	}
	m.notifications = updated
	m.unread = 0
	m.mu.Unlock()

	m.publish()
	return nil
}

func (m *Manager) setConnected(connected bool) {
	m.mu.Lock()
	m.connected = connected
	m.mu.Unlock()
	m.publish()
}

// State returns a copy of the current feed
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{
		Notifications: append([]entities.Notification(nil), m.notifications...),
		UnreadCount:   m.unread,
		Connected:     m.connected,
		Loading:       m.loading,
	}
}

// Subscribe calls fn with the new state after every change
func (m *Manager) Subscribe(fn func(State)) func() {
	m.listenerMu.Lock()
	defer m.listenerMu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	return func() {
		m.listenerMu.Lock()
		defer m.listenerMu.Unlock()
		delete(m.listeners, id)
	}
}

func (m *Manager) publish() {
	m.listenerMu.Lock()
	fns := make([]func(State), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.listenerMu.Unlock()
	if len(fns) == 0 {
		return
	}

	state := m.State()
	for _, fn := range fns {
		fn(state)
	}
}
