package entities

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const MaxTags = 5

// Auth related types
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type AuthResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// Task related types
type CreateTaskRequest struct {
	Title       string     `json:"title" validate:"required,min=3,max=120"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=2000"`
	Status      TaskStatus `json:"status,omitempty" validate:"omitempty,oneof=todo doing done"`
	Priority    Priority   `json:"priority,omitempty" validate:"omitempty,oneof=low med high"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Tags        []string   `json:"tags,omitempty" validate:"max=5,dive,min=1,max=50"`
}

type UpdateTaskRequest struct {
	Title       *string     `json:"title,omitempty" validate:"omitempty,min=3,max=120"`
	Description *string     `json:"description,omitempty" validate:"omitempty,max=2000"`
	Status      *TaskStatus `json:"status,omitempty" validate:"omitempty,oneof=todo doing done"`
	Priority    *Priority   `json:"priority,omitempty" validate:"omitempty,oneof=low med high"`
	DueDate     *time.Time  `json:"due_date,omitempty"`
	Tags        []string    `json:"tags,omitempty" validate:"omitempty,max=5,dive,min=1,max=50"`
}

// MarshalJSON sends tags whenever they are set, so an empty non-nil list
// clears the task's tags.
func (r UpdateTaskRequest) MarshalJSON() ([]byte, error) {
	type fields UpdateTaskRequest
	out := struct {
		fields
		Tags *[]string `json:"tags,omitempty"`
	}{fields: fields(r)}
	if r.Tags != nil {
		out.Tags = &r.Tags
	}
	return json.Marshal(out)
}

// IsEmpty reports whether the update carries no field at all.
func (r UpdateTaskRequest) IsEmpty() bool {
	return r.Title == nil && r.Description == nil && r.Status == nil &&
		r.Priority == nil && r.DueDate == nil && r.Tags == nil
}

type DeleteTaskResponse struct {
	Deleted bool `json:"deleted"`
}

// Notification related types
type MarkAsReadRequest struct {
	NotificationIDs []int64 `json:"notification_ids" validate:"required,min=1"`
}

type UnreadCountResponse struct {
	UnreadCount int `json:"unread_count"`
}

type NotificationsResponse struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unread_count"`
}

// ValidationError reports client-side constraint violations. It is returned
// before any network call is made.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

var validate = validator.New()

// Validate checks a request struct against its validate tags.
func Validate(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[jsonFieldName(fe)] = describe(fe)
	}
	return &ValidationError{Fields: fields}
}

func jsonFieldName(fe validator.FieldError) string {
	ns := fe.StructNamespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return toSnake(ns)
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && s[i-1] != '.' && s[i-1] != '[' {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return fmt.Sprintf("must be at least %s long", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s long", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "datetime":
		return fmt.Sprintf("must match %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
