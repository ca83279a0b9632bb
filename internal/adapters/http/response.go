package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster/client/internal/domain/entities"
)

// UserContextKey is where the auth middleware stores the caller's user id
const UserContextKey = "user"

// SuccessResponse is the {success, data, message} envelope
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
}

// ErrorResponse is the error envelope of every non-2xx reply
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   ErrorDetails `json:"error"`
}

type ErrorDetails struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// APIError is returned by handlers and rendered by WriteError
type APIError struct {
	Status  int
	Code    string
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	return e.Message
}

// NewAPIError creates an error reply
func NewAPIError(status int, code, message string) *APIError {
	return &APIError{Status: status, Code: code, Message: message}
}

// NotFound is the 404 of a missing resource, coded like TASK_NOT_FOUND
func NotFound(resource string) *APIError {
	return NewAPIError(http.StatusNotFound, strings.ToUpper(resource)+"_NOT_FOUND", resource+" not found")
}

// ValidationFailed converts a validation error into a 400 reply
func ValidationFailed(err error) *APIError {
	var verr *entities.ValidationError
	if errors.As(err, &verr) {
		return &APIError{Status: http.StatusBadRequest, Code: "VALIDATION_ERROR", Message: "Validation failed", Fields: verr.Fields}
	}
	return NewAPIError(http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
}

// Responder writes success replies either enveloped or bare
type Responder struct {
	Legacy bool
}

// Send writes data with status
func (r Responder) Send(c echo.Context, status int, data interface{}, message string) error {
	if r.Legacy {
		return c.JSON(status, data)
	}
	return c.JSON(status, SuccessResponse{Success: true, Data: data, Message: message})
}

// WriteError renders any handler error as the error envelope and returns
// the status written.
func WriteError(c echo.Context, err error) (int, error) {
	var (
		apiErr  *APIError
		httpErr *echo.HTTPError
		details ErrorDetails
		status  = http.StatusInternalServerError
	)

	switch {
	case errors.As(err, &apiErr):
		status = apiErr.Status
		details = ErrorDetails{Code: apiErr.Code, Message: apiErr.Message, Fields: apiErr.Fields}
	case errors.As(err, &httpErr):
		status = httpErr.Code
		message, ok := httpErr.Message.(string)
		if !ok {
			message = http.StatusText(status)
		}
		details = ErrorDetails{Code: statusCode(status), Message: message}
	default:
		details = ErrorDetails{Code: "INTERNAL_ERROR", Message: http.StatusText(status)}
	}

	if c.Response().Committed {
		return status, nil
	}
	if c.Request().Method == http.MethodHead {
		return status, c.NoContent(status)
	}
	return status, c.JSON(status, ErrorResponse{Success: false, Error: details})
}

func statusCode(status int) string {
	return strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))
}

func userID(c echo.Context) string {
	id, _ := c.Get(UserContextKey).(string)
	return id
}
