package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/taskmaster/client/internal/domain/entities"
)

// TransportError is returned for non-2xx responses, malformed bodies and
// failed round trips. Status is 0 when no response was received.
type TransportError struct {
	Status  int
	Code    string
	Message string
	Fields  map[string]interface{}
	Err     error
}

func (e *TransportError) Error() string {
	return e.Message
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is maps HTTP statuses onto the domain sentinels.
func (e *TransportError) Is(target error) bool {
	switch target {
	case entities.ErrNotFound:
		return e.Status == http.StatusNotFound
	case entities.ErrTaskNotFound:
		return e.Status == http.StatusNotFound && e.Code == "TASK_NOT_FOUND"
	case entities.ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	}
	return false
}

// IsNotFound reports whether err is a 404 from the API
func IsNotFound(err error) bool {
	return errors.Is(err, entities.ErrNotFound)
}

// IsUnauthorized reports whether err is a 401 from the API
func IsUnauthorized(err error) bool {
	return errors.Is(err, entities.ErrUnauthorized)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Status
	}
	return 0
}

func statusError(status int) *TransportError {
	return &TransportError{Status: status, Message: fmt.Sprintf("HTTP %d", status)}
}
