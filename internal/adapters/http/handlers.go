package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster/client/internal/adapters/mockapi"
	"github.com/taskmaster/client/internal/domain/entities"
	"github.com/taskmaster/client/internal/infrastructure/logger"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	store   *mockapi.Store
	tokens  *mockapi.Tokens
	respond Responder
	logger  *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(store *mockapi.Store, tokens *mockapi.Tokens, respond Responder, logger *logger.Logger) *AuthHandler {
	return &AuthHandler{
		store:   store,
		tokens:  tokens,
		respond: respond,
		logger:  logger,
	}
}

// Register handles account creation
func (h *AuthHandler) Register(c echo.Context) error {
	var req entities.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return NewAPIError(http.StatusBadRequest, "BAD_REQUEST", "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return ValidationFailed(err)
	}

	user, err := h.store.Register(req)
	if errors.Is(err, mockapi.ErrEmailTaken) {
		return NewAPIError(http.StatusConflict, "CONFLICT", "Email already registered")
	}
	if err != nil {
		h.logger.Errorw("Register failed", "error", err)
		return err
	}

	return h.issue(c, http.StatusCreated, user, "User registered successfully")
}

// Login handles user login
func (h *AuthHandler) Login(c echo.Context) error {
	var req entities.LoginRequest
	if err := c.Bind(&req); err != nil {
		return NewAPIError(http.StatusBadRequest, "BAD_REQUEST", "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return ValidationFailed(err)
	}

	user, err := h.store.Authenticate(req.Email, req.Password)
	if err != nil {
		h.logger.LogSecurityEvent("login_failed", "", c.RealIP(), map[string]interface{}{"email": req.Email})
		return NewAPIError(http.StatusUnauthorized, "UNAUTHORIZED", "Invalid email or password")
	}

	return h.issue(c, http.StatusOK, user, "Login successful")
}

func (h *AuthHandler) issue(c echo.Context, status int, user entities.User, message string) error {
	token, err := h.tokens.Issue(user)
	if err != nil {
		return err
	}
	h.logger.LogUserAction(user.ID, "authenticated", nil)
	return h.respond.Send(c, status, entities.AuthResponse{User: user, Token: token}, message)
}

// Me returns the caller's profile
func (h *AuthHandler) Me(c echo.Context) error {
	user, err := h.store.User(userID(c))
	if err != nil {
		return NotFound("user")
	}
	return h.respond.Send(c, http.StatusOK, user, "User retrieved successfully")
}

// TaskHandler handles task-related requests
type TaskHandler struct {
	store   *mockapi.Store
	respond Responder
	logger  *logger.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(store *mockapi.Store, respond Responder, logger *logger.Logger) *TaskHandler {
	return &TaskHandler{
		store:   store,
		respond: respond,
		logger:  logger,
	}
}

// ListTasks returns one filtered page of the caller's tasks
func (h *TaskHandler) ListTasks(c echo.Context) error {
	filters, err := parseTaskFilters(c)
	if err != nil {
		return err
	}
	return h.respond.Send(c, http.StatusOK, h.store.ListTasks(userID(c), filters), "Tasks retrieved successfully")
}

func (h *TaskHandler) GetTask(c echo.Context) error {
	task, err := h.store.GetTask(userID(c), c.Param("id"))
	if err != nil {
		return NotFound("task")
	}
	return h.respond.Send(c, http.StatusOK, task, "Task retrieved successfully")
}

func (h *TaskHandler) CreateTask(c echo.Context) error {
	var req entities.CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return NewAPIError(http.StatusBadRequest, "BAD_REQUEST", "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return ValidationFailed(err)
	}

	task, err := h.store.CreateTask(userID(c), req)
	if err != nil {
		return taskError(err)
	}
	h.logger.LogUserAction(userID(c), "task_created", map[string]interface{}{"task_id": task.ID})
	return h.respond.Send(c, http.StatusCreated, task, "Task created successfully")
}

func (h *TaskHandler) UpdateTask(c echo.Context) error {
	var req entities.UpdateTaskRequest
	if err := c.Bind(&req); err != nil {
		return NewAPIError(http.StatusBadRequest, "BAD_REQUEST", "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return ValidationFailed(err)
	}

	task, err := h.store.UpdateTask(userID(c), c.Param("id"), req)
	if err != nil {
		return taskError(err)
	}
	return h.respond.Send(c, http.StatusOK, task, "Task updated successfully")
}

func (h *TaskHandler) DeleteTask(c echo.Context) error {
	if err := h.store.DeleteTask(userID(c), c.Param("id")); err != nil {
		return taskError(err)
	}
	h.logger.LogUserAction(userID(c), "task_deleted", map[string]interface{}{"task_id": c.Param("id")})
	return h.respond.Send(c, http.StatusOK, entities.DeleteTaskResponse{Deleted: true}, "Task deleted successfully")
}

func taskError(err error) error {
	switch {
	case errors.Is(err, entities.ErrTaskNotFound):
		return NotFound("task")
	case errors.Is(err, mockapi.ErrNoUpdates):
		return NewAPIError(http.StatusBadRequest, "NO_UPDATES", "No fields to update")
	case errors.Is(err, mockapi.ErrDueDateInPast):
		return NewAPIError(http.StatusBadRequest, "INVALID_DUE_DATE", "Due date must be in the future")
	default:
		return err
	}
}

func parseTaskFilters(c echo.Context) (entities.TaskFilters, error) {
	var f entities.TaskFilters
	fields := map[string]string{}

	if v := c.QueryParam("status"); v != "" {
		s, err := entities.ParseTaskStatus(v)
		if err != nil {
			fields["status"] = "must be one of [todo doing done]"
		}
		f.Status = s
	}
	if v := c.QueryParam("priority"); v != "" {
		p, err := entities.ParsePriority(v)
		if err != nil {
			fields["priority"] = "must be one of [low med high]"
		}
		f.Priority = p
	}
	f.Tag = c.QueryParam("tag")
	f.Search = c.QueryParam("search")
	f.SortBy = c.QueryParam("sort_by")
	f.SortOrder = c.QueryParam("sort_order")

	for name, dst := range map[string]*int{"page": &f.Page, "limit": &f.Limit} {
		if v := c.QueryParam(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				fields[name] = "must be a positive integer"
				continue
			}
			*dst = n
		}
	}

	for name, dst := range map[string]**time.Time{
		"created_from": &f.CreatedFrom,
		"created_to":   &f.CreatedTo,
		"due_from":     &f.DueFrom,
		"due_to":       &f.DueTo,
	} {
		if v := c.QueryParam(name); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				fields[name] = "must be an RFC 3339 timestamp"
				continue
			}
			*dst = &t
		}
	}

	if len(fields) > 0 {
		return f, ValidationFailed(&entities.ValidationError{Fields: fields})
	}
	return f, nil
}
