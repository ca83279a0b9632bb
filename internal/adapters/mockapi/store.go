// Package mockapi is an in-memory implementation of the task server: user
// accounts, tasks, notifications and the notification push hub.
package mockapi

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskmaster/client/internal/domain/entities"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrNoUpdates          = errors.New("no fields to update")
	ErrDueDateInPast      = errors.New("due date must be in the future")
)

const maxLimit = 100

type account struct {
	user         entities.User
	passwordHash []byte
}

// Store holds all server state. It is safe for concurrent use.
type Store struct {
	mu                 sync.RWMutex
	now                func() time.Time
	passwordCost       int
	nextUserID         int64
	nextNotificationID int64
	accounts           map[string]*account
	emails             map[string]string
	tasks              map[string]entities.Task
	owners             map[string]string
	notifications      map[string][]entities.Notification
	deadlineNotified   map[string]bool

	listenerMu sync.RWMutex
	onNotify   []func(userID string, n entities.Notification)
	onRead     []func(userID string, id int64)
}

// Option configures a Store
type Option func(*Store)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithPasswordCost sets the bcrypt cost of new accounts
func WithPasswordCost(cost int) Option {
	return func(s *Store) { s.passwordCost = cost }
}

// NewStore creates an empty store
func NewStore(opts ...Option) *Store {
	s := &Store{
		now:              time.Now,
		passwordCost:     bcrypt.DefaultCost,
		accounts:         map[string]*account{},
		emails:           map[string]string{},
		tasks:            map[string]entities.Task{},
		owners:           map[string]string{},
		notifications:    map[string][]entities.Notification{},
		deadlineNotified: map[string]bool{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnNotification registers fn to be called for every new notification
func (s *Store) OnNotification(fn func(userID string, n entities.Notification)) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	s.onNotify = append(s.onNotify, fn)
}

// OnNotificationRead registers fn to be called for every notification marked read
func (s *Store) OnNotificationRead(fn func(userID string, id int64)) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	s.onRead = append(s.onRead, fn)
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}

// Register creates an account. User ids are sequential numbers.
func (s *Store) Register(req entities.RegisterRequest) (entities.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.passwordCost)
	if err != nil {
		return entities.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, ok := s.emails[email]; ok {
		return entities.User{}, ErrEmailTaken
	}

	s.nextUserID++
	user := entities.User{
		ID:        strconv.FormatInt(s.nextUserID, 10),
		Name:      req.Name,
		Email:     email,
		CreatedAt: s.timestamp(),
	}
	s.accounts[user.ID] = &account{user: user, passwordHash: hash}
	s.emails[email] = user.ID
	return user, nil
}

// Authenticate checks an email and password pair
func (s *Store) Authenticate(email, password string) (entities.User, error) {
	s.mu.RLock()
	id, ok := s.emails[strings.ToLower(strings.TrimSpace(email))]
	var acc account
	if ok {
		acc = *s.accounts[id]
	}
	s.mu.RUnlock()

	if !ok {
		return entities.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(password)); err != nil {
		return entities.User{}, ErrInvalidCredentials
	}
	return acc.user, nil
}

// User returns an account by id
func (s *Store) User(id string) (entities.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[id]
	if !ok {
		return entities.User{}, ErrUserNotFound
	}
	return acc.user, nil
}

// ListTasks returns one page of the user's tasks
func (s *Store) ListTasks(userID string, f entities.TaskFilters) entities.TasksResponse {
	f = f.Normalize()
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}

	s.mu.RLock()
	var matched []entities.Task
	for id, t := range s.tasks {
		if s.owners[id] == userID && matches(t, f) {
			matched = append(matched, t.Clone())
		}
	}
	s.mu.RUnlock()

	sortTasks(matched, f.SortBy, f.SortOrder)

	total := len(matched)
	start := (f.Page - 1) * f.Limit
	if start > total {
		start = total
	}
	end := start + f.Limit
	if end > total {
		end = total
	}

	return entities.TasksResponse{
		Tasks:      append([]entities.Task{}, matched[start:end]...),
		Total:      total,
		Page:       f.Page,
		Limit:      f.Limit,
		TotalPages: (total + f.Limit - 1) / f.Limit,
	}
}

func matches(t entities.Task, f entities.TaskFilters) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		desc := ""
		if t.Description != nil {
			desc = strings.ToLower(*t.Description)
		}
		if !strings.Contains(strings.ToLower(t.Title), q) && !strings.Contains(desc, q) {
			return false
		}
	}
	if f.Tag != "" {
		q := strings.ToLower(f.Tag)
		found := false
		for _, tag := range t.Tags {
			if strings.Contains(strings.ToLower(tag), q) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.CreatedFrom != nil && t.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && t.CreatedAt.After(*f.CreatedTo) {
		return false
	}
	if f.DueFrom != nil && (t.DueDate == nil || t.DueDate.Before(*f.DueFrom)) {
		return false
	}
	if f.DueTo != nil && (t.DueDate == nil || t.DueDate.After(*f.DueTo)) {
		return false
	}
	return true
}

var statusRank = map[entities.TaskStatus]int{
	entities.TaskStatusTodo:  0,
	entities.TaskStatusDoing: 1,
	entities.TaskStatusDone:  2,
}

// sortTasks orders like the SQL server did: created_at desc by default and
// tasks without a due date counted as the latest.
func sortTasks(tasks []entities.Task, by, order string) {
	less := func(a, b entities.Task) int {
		switch by {
		case "title":
			return strings.Compare(a.Title, b.Title)
		case "status":
			return statusRank[a.Status] - statusRank[b.Status]
		case "priority":
			return a.Priority.Rank() - b.Priority.Rank()
		case "due_date":
			switch {
			case a.DueDate == nil && b.DueDate == nil:
				return 0
			case a.DueDate == nil:
				return 1
			case b.DueDate == nil:
				return -1
			}
			return a.DueDate.Compare(*b.DueDate)
		case "updated_at":
			return a.UpdatedAt.Compare(b.UpdatedAt)
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}
	desc := order != "asc"
	sort.SliceStable(tasks, func(i, j int) bool {
		c := less(tasks[i], tasks[j])
		if c == 0 {
			c = strings.Compare(tasks[i].ID, tasks[j].ID)
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

// GetTask returns a task owned by userID
func (s *Store) GetTask(userID, id string) (entities.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok || s.owners[id] != userID {
		return entities.Task{}, entities.ErrTaskNotFound
	}
	return t.Clone(), nil
}

// CreateTask stores a new task and notifies its owner
func (s *Store) CreateTask(userID string, req entities.CreateTaskRequest) (entities.Task, error) {
	now := s.timestamp()
	if req.DueDate != nil && !req.DueDate.After(now) {
		return entities.Task{}, ErrDueDateInPast
	}

	task := entities.Task{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		DueDate:     utcPtr(req.DueDate),
		Tags:        entities.NormalizeTags(req.Tags),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if task.Status == "" {
		task.Status = entities.TaskStatusTodo
	}
	if task.Priority == "" {
		task.Priority = entities.PriorityMedium
	}
	if task.Tags == nil {
		task.Tags = []string{}
	}

	s.mu.Lock()
	s.tasks[task.ID] = task
	s.owners[task.ID] = userID
	n := s.addNotificationLocked(userID, entities.NotificationTaskAssigned,
		"New Task Assigned", fmt.Sprintf("'%s' has been assigned to you", task.Title), task.ID)
	s.mu.Unlock()

	s.emit(userID, n)
	return task.Clone(), nil
}

// UpdateTask applies a partial update. It notifies on completion and on a
// priority change.
func (s *Store) UpdateTask(userID, id string, req entities.UpdateTaskRequest) (entities.Task, error) {
	if req.IsEmpty() {
		return entities.Task{}, ErrNoUpdates
	}
	now := s.timestamp()
	if req.DueDate != nil && !req.DueDate.After(now) {
		return entities.Task{}, ErrDueDateInPast
	}
	req.Tags = entities.NormalizeTags(req.Tags)
	req.DueDate = utcPtr(req.DueDate)

	s.mu.Lock()
	old, ok := s.tasks[id]
	if !ok || s.owners[id] != userID {
		s.mu.Unlock()
		return entities.Task{}, entities.ErrTaskNotFound
	}

	task := old.Apply(req)
	if !now.After(old.UpdatedAt) {
		now = old.UpdatedAt.Add(time.Microsecond)
	}
	task.UpdatedAt = now
	s.tasks[id] = task

	var pending []entities.Notification
	if task.Status == entities.TaskStatusDone && old.Status != entities.TaskStatusDone {
		pending = append(pending, s.addNotificationLocked(userID, entities.NotificationTaskCompleted,
			"Task Completed", fmt.Sprintf("'%s' has been marked as completed", task.Title), id))
	}
	if task.Priority != old.Priority {
		pending = append(pending, s.addNotificationLocked(userID, entities.NotificationTaskPriorityChanged,
			"Task Priority Changed", fmt.Sprintf("'%s' priority changed to %s", task.Title, task.Priority), id))
	}
	if req.DueDate != nil {
		delete(s.deadlineNotified, id+"/"+string(entities.NotificationTaskDueSoon))
		delete(s.deadlineNotified, id+"/"+string(entities.NotificationTaskOverdue))
	}
	s.mu.Unlock()

	for _, n := range pending {
		s.emit(userID, n)
	}
	return task.Clone(), nil
}

// DeleteTask removes a task
func (s *Store) DeleteTask(userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok || s.owners[id] != userID {
		return entities.ErrTaskNotFound
	}
	delete(s.tasks, id)
	delete(s.owners, id)
	return nil
}

// SweepDeadlines notifies owners of open tasks due within the next two hours
// and of open tasks past due. Each task is reported once per kind until its
// due date changes. It returns the number of notifications created.
func (s *Store) SweepDeadlines() int {
	now := s.timestamp()
	type pendingNotification struct {
		userID string
		n      entities.Notification
	}

	s.mu.Lock()
	var pending []pendingNotification
	for id, t := range s.tasks {
		if t.DueDate == nil || t.IsDone() {
			continue
		}
		owner := s.owners[id]
		switch {
		case t.DueDate.Before(now):
			key := id + "/" + string(entities.NotificationTaskOverdue)
			if s.deadlineNotified[key] {
				continue
			}
			s.deadlineNotified[key] = true
			pending = append(pending, pendingNotification{owner, s.addNotificationLocked(owner, entities.NotificationTaskOverdue,
				"Task Overdue", fmt.Sprintf("'%s' is now overdue", t.Title), id)})
		case t.DueDate.Sub(now) <= 2*time.Hour:
			key := id + "/" + string(entities.NotificationTaskDueSoon)
			if s.deadlineNotified[key] {
				continue
			}
			s.deadlineNotified[key] = true
			hours := int(t.DueDate.Sub(now) / time.Hour)
			pending = append(pending, pendingNotification{owner, s.addNotificationLocked(owner, entities.NotificationTaskDueSoon,
				"Task Due Soon", fmt.Sprintf("'%s' is due in %d hours", t.Title, hours), id)})
		}
	}
	s.mu.Unlock()

	for _, p := range pending {
		s.emit(p.userID, p.n)
	}
	return len(pending)
}

// UserTasks returns every task of userID
func (s *Store) UserTasks(userID string) []entities.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var tasks []entities.Task
	for id, t := range s.tasks {
		if s.owners[id] == userID {
			tasks = append(tasks, t.Clone())
		}
	}
	return tasks
}

// addNotificationLocked records a notification. s.mu must be held.
func (s *Store) addNotificationLocked(userID string, typ entities.NotificationType, title, message, taskID string) entities.Notification {
	s.nextNotificationID++
	n := entities.Notification{
		ID:               s.nextNotificationID,
		NotificationType: typ,
		Title:            title,
		Message:          message,
		CreatedAt:        s.timestamp(),
		Metadata:         map[string]interface{}{"task_id": taskID},
	}
	s.notifications[userID] = append([]entities.Notification{n}, s.notifications[userID]...)
	return n
}

func (s *Store) emit(userID string, n entities.Notification) {
	s.listenerMu.RLock()
	fns := append([]func(string, entities.Notification){}, s.onNotify...)
	s.listenerMu.RUnlock()
	for _, fn := range fns {
		fn(userID, n)
	}
}

// Notifications returns the user's notifications newest first
func (s *Store) Notifications(userID string, limit, offset int) []entities.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.notifications[userID]
	if offset < 0 {
		offset = 0
	}
	if offset > len(all) {
		offset = len(all)
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return append([]entities.Notification{}, all[offset:end]...)
}

// UnreadCount counts the user's unread notifications
func (s *Store) UnreadCount(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for i := range s.notifications[userID] {
		if s.notifications[userID][i].IsUnread() {
			count++
		}
	}
	return count
}

// MarkRead stamps read_at on the user's unread notifications among ids.
// Unknown ids and ids of other users are ignored.
func (s *Store) MarkRead(userID string, ids []int64) int {
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	now := s.timestamp()
	var marked []int64
	s.mu.Lock()
	list := s.notifications[userID]
	for i := range list {
		if want[list[i].ID] && list[i].IsUnread() {
			ts := now
			list[i].ReadAt = &ts
			marked = append(marked, list[i].ID)
		}
	}
	s.mu.Unlock()

	s.listenerMu.RLock()
	fns := append([]func(string, int64){}, s.onRead...)
	s.listenerMu.RUnlock()
	for _, id := range marked {
		for _, fn := range fns {
			fn(userID, id)
		}
	}
	return len(marked)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
