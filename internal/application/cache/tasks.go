package cache

import (
	"context"
	"errors"
	"time"

	"github.com/taskmaster/client/internal/domain/entities"
	"github.com/taskmaster/client/internal/infrastructure/logger"
	"github.com/taskmaster/client/internal/ports"
)

// TaskStore layers the task mutations over the query cache. List entries
// hold entities.TasksResponse values and detail entries entities.Task values;
// callers always receive copies.
type TaskStore struct {
	cache  *Cache
	tasks  ports.TaskService
	logger *logger.Logger
	now    func() time.Time
}

// NewTaskStore creates a task store backed by c
func NewTaskStore(c *Cache, tasks ports.TaskService, log *logger.Logger) *TaskStore {
	return &TaskStore{
		cache:  c,
		tasks:  tasks,
		logger: log.WithComponent("task_store"),
		now:    c.now,
	}
}

// Cache returns the underlying cache
func (s *TaskStore) Cache() *Cache {
	return s.cache
}

// List returns the page of tasks for filters, serving cached data while fresh
func (s *TaskStore) List(ctx context.Context, filters entities.TaskFilters) (*entities.TasksResponse, error) {
	filters = filters.Normalize()
	v, err := s.cache.Fetch(ctx, TaskListKey(filters), func(ctx context.Context) (interface{}, error) {
		resp, err := s.tasks.GetTasks(ctx, filters)
		if err != nil {
			return nil, err
		}
		return *resp, nil
	})
	if err != nil {
		return nil, err
	}
	resp := v.(entities.TasksResponse).Clone()
	return &resp, nil
}

// CachedList returns the cached page for filters without fetching
func (s *TaskStore) CachedList(filters entities.TaskFilters) (*entities.TasksResponse, bool) {
	v, ok := s.cache.Peek(TaskListKey(filters))
	if !ok {
		return nil, false
	}
	resp := v.(entities.TasksResponse).Clone()
	return &resp, true
}

// Get returns a single task
func (s *TaskStore) Get(ctx context.Context, id string) (*entities.Task, error) {
	v, err := s.cache.Fetch(ctx, TaskDetailKey(id), func(ctx context.Context) (interface{}, error) {
		task, err := s.tasks.GetTask(ctx, id)
		if err != nil {
			return nil, err
		}
		return *task, nil
	})
	if err != nil {
		return nil, err
	}
	task := v.(entities.Task).Clone()
	return &task, nil
}

// Create creates a task. On success the task is prepended to every cached
// list and all lists are refetched.
func (s *TaskStore) Create(ctx context.Context, req entities.CreateTaskRequest) (*entities.Task, error) {
	task, err := s.tasks.CreateTask(ctx, req)
	if err != nil {
		return nil, err
	}

	created := task.Clone()
	s.cache.MarkStale(TasksKey)
	s.cache.SetQueriesData(TaskListsKey, func(old interface{}) interface{} {
		resp, ok := old.(entities.TasksResponse)
		if !ok {
			return old
		}
		tasks := make([]entities.Task, 0, len(resp.Tasks)+1)
		tasks = append(tasks, created.Clone())
		tasks = append(tasks, resp.Tasks...)
		resp.Tasks = tasks
		resp.Total++
		return resp
	})
	s.cache.Refetch(TaskListsKey)

	s.logger.Debugw("Task created", "task_id", task.ID)
	return task, nil
}

// Update applies req optimistically to every cached list, sends it and
// rolls the lists back if the server rejects it. Every task query is
// invalidated once the request settles. An invalid req is rejected before
// the cache is touched.
func (s *TaskStore) Update(ctx context.Context, id string, req entities.UpdateTaskRequest) (*entities.Task, error) {
	req.Tags = entities.NormalizeTags(req.Tags)
	if err := entities.Validate(req); err != nil {
		return nil, err
	}

	stamped := s.now().UTC()
	op := s.cache.BeginOptimistic(TaskListsKey, func(old interface{}) interface{} {
		resp, ok := old.(entities.TasksResponse)
		if !ok {
			return old
		}
		tasks := make([]entities.Task, len(resp.Tasks))
		for i, t := range resp.Tasks {
			if t.ID == id {
				t = t.Apply(req)
				t.UpdatedAt = stamped
			}
			tasks[i] = t
		}
		resp.Tasks = tasks
		return resp
	})
	defer s.cache.Invalidate(TasksKey)

	task, err := s.tasks.UpdateTask(ctx, id, req)
	if err != nil {
		if rbErr := op.Rollback(); rbErr != nil {
			s.logger.WithError(rbErr).Warnw("Rollback failed", "task_id", id)
		}
		return nil, err
	}

	if err := op.Commit(); err != nil {
		s.logger.WithError(err).Warnw("Commit failed", "task_id", id)
	}
	s.cache.SetData(TaskDetailKey(task.ID), task.Clone())
	return task, nil
}

// Move changes the status of a task, the kanban drag-and-drop transition.
// Moving a task to its current status sends nothing.
func (s *TaskStore) Move(ctx context.Context, id string, status entities.TaskStatus) (*entities.Task, error) {
	if !status.IsValid() {
		return nil, entities.ErrInvalidStatus
	}

	current, ok := s.lookup(id)
	if !ok {
		var err error
		if current, err = s.Get(ctx, id); err != nil {
			return nil, err
		}
	}
	if current.Status == status {
		return current, nil
	}

	return s.Update(ctx, id, entities.UpdateTaskRequest{Status: &status})
}

// lookup finds id in the detail entry or any cached list
func (s *TaskStore) lookup(id string) (*entities.Task, bool) {
	if v, ok := s.cache.Peek(TaskDetailKey(id)); ok {
		task := v.(entities.Task).Clone()
		return &task, true
	}
	for _, key := range s.cache.Keys(TaskListsKey) {
		v, ok := s.cache.Peek(key)
		if !ok {
			continue
		}
		for _, t := range v.(entities.TasksResponse).Tasks {
			if t.ID == id {
				task := t.Clone()
				return &task, true
			}
		}
	}
	return nil, false
}

// Delete deletes a task, drops its detail entry and then invalidates every
// task query. The detail goes first so it is never refetched.
func (s *TaskStore) Delete(ctx context.Context, id string) (*entities.DeleteTaskResponse, error) {
	resp, err := s.tasks.DeleteTask(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cache.Remove(TaskDetailKey(id))
	s.cache.Invalidate(TasksKey)
	return resp, nil
}

// IsNotFound reports whether err means the task does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, entities.ErrNotFound) || errors.Is(err, entities.ErrTaskNotFound)
}
