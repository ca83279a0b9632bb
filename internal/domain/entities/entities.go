package entities

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Common errors
var (
	ErrNotFound         = errors.New("resource not found")
	ErrTaskNotFound     = errors.New("task not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrInvalidPriority  = errors.New("invalid priority")
	ErrInvalidFilter    = errors.New("invalid filter")
	ErrMutationSettled  = errors.New("mutation already settled")
)

// Enums and types
type TaskStatus string

const (
	TaskStatusTodo  TaskStatus = "todo"
	TaskStatusDoing TaskStatus = "doing"
	TaskStatusDone  TaskStatus = "done"
)

// TaskStatuses lists every status in board order.
var TaskStatuses = []TaskStatus{TaskStatusTodo, TaskStatusDoing, TaskStatusDone}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "med"
	PriorityHigh   Priority = "high"
)

type NotificationType string

const (
	NotificationTaskDueSoon         NotificationType = "task_due_soon"
	NotificationTaskAssigned        NotificationType = "task_assigned"
	NotificationTaskCompleted       NotificationType = "task_completed"
	NotificationTaskOverdue         NotificationType = "task_overdue"
	NotificationTaskPriorityChanged NotificationType = "task_priority_changed"
)

// User represents the authenticated account
type User struct {
	ID        string    `json:"id" yaml:"id" db:"id"`
	Name      string    `json:"name" yaml:"name" db:"name"`
	Email     string    `json:"email" yaml:"email" db:"email"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at" db:"created_at"`
}

// Task represents a task owned by a single user
type Task struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Tags        []string   `json:"tags"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TasksResponse is one page of tasks as returned by GET /tasks
type TasksResponse struct {
	Tasks      []Task `json:"tasks"`
	Total      int    `json:"total"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	TotalPages int    `json:"total_pages"`
}

// Notification represents an entry of the notification feed
type Notification struct {
	ID               int64                  `json:"id"`
	NotificationType NotificationType       `json:"notification_type"`
	Title            string                 `json:"title"`
	Message          string                 `json:"message"`
	ReadAt           *time.Time             `json:"read_at"`
	CreatedAt        time.Time              `json:"created_at"`
	Metadata         map[string]interface{} `json:"metadata"`
}

// TaskStats is the analytics payload of GET /statistics
type TaskStats struct {
	TotalTasks      int            `json:"total_tasks"`
	TasksByStatus   map[string]int `json:"tasks_by_status"`
	TasksByPriority map[string]int `json:"tasks_by_priority"`
	CompletionRate  float64        `json:"completion_rate"`
	PeriodSummary   PeriodSummary  `json:"period_summary"`
	TimeSeries      TimeSeries     `json:"time_series"`
	OverdueTasks    int            `json:"overdue_tasks"`
	DueToday        int            `json:"due_today"`
	DueThisWeek     int            `json:"due_this_week"`
}

type PeriodSummary struct {
	Period         string  `json:"period"`
	FromDate       *string `json:"from_date,omitempty"`
	ToDate         *string `json:"to_date,omitempty"`
	TasksCreated   int     `json:"tasks_created"`
	TasksCompleted int     `json:"tasks_completed"`
	TasksUpdated   int     `json:"tasks_updated"`
}

type TimeSeries struct {
	Labels    []string `json:"labels"`
	Created   []int    `json:"created"`
	Completed []int    `json:"completed"`
	Updated   []int    `json:"updated"`
}

// Business logic methods for Task

// IsDone reports whether the task is completed.
func (t *Task) IsDone() bool {
	return t.Status == TaskStatusDone
}

// IsOverdue reports whether the task is due before the given day and not done.
func (t *Task) IsOverdue(today time.Time) bool {
	if t.DueDate == nil {
		return false
	}
	return t.DueDate.Before(today) && !t.IsDone()
}

// Clone returns a deep copy so cached values are never shared with callers.
func (t Task) Clone() Task {
	if t.Description != nil {
		d := *t.Description
		t.Description = &d
	}
	if t.DueDate != nil {
		d := *t.DueDate
		t.DueDate = &d
	}
	if t.Tags != nil {
		t.Tags = append([]string(nil), t.Tags...)
	}
	return t
}

// Apply merges the set fields of req into a copy of t.
func (t Task) Apply(req UpdateTaskRequest) Task {
	merged := t.Clone()
	if req.Title != nil {
		merged.Title = *req.Title
	}
	if req.Description != nil {
		d := *req.Description
		merged.Description = &d
	}
	if req.Status != nil {
		merged.Status = *req.Status
	}
	if req.Priority != nil {
		merged.Priority = *req.Priority
	}
	if req.DueDate != nil {
		d := *req.DueDate
		merged.DueDate = &d
	}
	if req.Tags != nil {
		merged.Tags = append([]string{}, req.Tags...)
	}
	return merged
}

// Clone returns a copy of the page with its own task slice.
func (r TasksResponse) Clone() TasksResponse {
	tasks := make([]Task, len(r.Tasks))
	for i, t := range r.Tasks {
		tasks[i] = t.Clone()
	}
	r.Tasks = tasks
	return r
}

// Business logic methods for Notification

// IsUnread reports whether the notification has not been read yet.
func (n *Notification) IsUnread() bool {
	return n.ReadAt == nil
}

// TaskID extracts the task id from the notification metadata, if any.
func (n *Notification) TaskID() (string, bool) {
	v, ok := n.Metadata["task_id"]
	if !ok || v == nil {
		return "", false
	}
	switch id := v.(type) {
	case string:
		return id, true
	case float64:
		return strconv.FormatInt(int64(id), 10), true
	default:
		return fmt.Sprint(id), true
	}
}

// Utility methods
func (ts TaskStatus) IsValid() bool {
	switch ts {
	case TaskStatusTodo, TaskStatusDoing, TaskStatusDone:
		return true
	default:
		return false
	}
}

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// Rank orders priorities low=1, med=2, high=3. Unknown priorities rank 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	default:
		return 0
	}
}

// ParseTaskStatus accepts the wire value of a status.
func ParseTaskStatus(s string) (TaskStatus, error) {
	status := TaskStatus(strings.ToLower(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return status, nil
}

// ParsePriority accepts the wire value of a priority; "medium" is an alias of "med".
func ParsePriority(s string) (Priority, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "medium" {
		v = string(PriorityMedium)
	}
	p := Priority(v)
	if !p.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPriority, s)
	}
	return p, nil
}

// NormalizeTags trims, case-folds and de-duplicates tags keeping first-seen order.
func NormalizeTags(tags []string) []string {
	if tags == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		t := strings.ToLower(strings.TrimSpace(tag))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// SortedKeys returns the keys of a count map in lexical order.
func SortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
