package services

import (
	"context"
	"net/url"

	"github.com/taskmaster/client/internal/domain/entities"
	"github.com/taskmaster/client/internal/infrastructure/logger"
	"github.com/taskmaster/client/internal/ports"
)

var _ ports.TaskService = (*TaskService)(nil)

// TaskService handles task-related operations
type TaskService struct {
	transport ports.Transport
	logger    *logger.Logger
}

// NewTaskService creates a new task service
func NewTaskService(transport ports.Transport, logger *logger.Logger) *TaskService {
	return &TaskService{
		transport: transport,
		logger:    logger.WithComponent("tasks"),
	}
}

func taskPath(id string) string {
	return "/tasks/" + url.PathEscape(id)
}

// GetTasks retrieves one page of tasks matching the filters
func (s *TaskService) GetTasks(ctx context.Context, filters entities.TaskFilters) (*entities.TasksResponse, error) {
	var resp entities.TasksResponse
	if err := s.transport.Do(ctx, "GET", "/tasks", nil, filters.Params(), &resp); err != nil {
		return nil, err
	}
	if resp.Tasks == nil {
		resp.Tasks = []entities.Task{}
	}
	return &resp, nil
}

// GetTask retrieves a single task
func (s *TaskService) GetTask(ctx context.Context, id string) (*entities.Task, error) {
	var task entities.Task
	if err := s.transport.Do(ctx, "GET", taskPath(id), nil, nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CreateTask creates a new task
func (s *TaskService) CreateTask(ctx context.Context, req entities.CreateTaskRequest) (*entities.Task, error) {
	req.Tags = entities.NormalizeTags(req.Tags)
	if err := entities.Validate(req); err != nil {
		return nil, err
	}

	var task entities.Task
	if err := s.transport.Do(ctx, "POST", "/tasks", req, nil, &task); err != nil {
		return nil, err
	}

	s.logger.Debugw("Task created", "task_id", task.ID)
	return &task, nil
}

// UpdateTask sends the set fields of req to the server
func (s *TaskService) UpdateTask(ctx context.Context, id string, req entities.UpdateTaskRequest) (*entities.Task, error) {
	req.Tags = entities.NormalizeTags(req.Tags)
	if err := entities.Validate(req); err != nil {
		return nil, err
	}

	var task entities.Task
	if err := s.transport.Do(ctx, "PUT", taskPath(id), req, nil, &task); err != nil {
		return nil, err
	}

	s.logger.Debugw("Task updated", "task_id", id)
	return &task, nil
}

// DeleteTask deletes a task
func (s *TaskService) DeleteTask(ctx context.Context, id string) (*entities.DeleteTaskResponse, error) {
	resp := entities.DeleteTaskResponse{Deleted: true}
	if err := s.transport.Do(ctx, "DELETE", taskPath(id), nil, nil, &resp); err != nil {
		return nil, err
	}

	s.logger.Debugw("Task deleted", "task_id", id)
	return &resp, nil
}
