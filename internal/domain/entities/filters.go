package entities

import (
	"fmt"
	"strconv"
	"time"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// TaskFilters is the server-side query of GET /tasks.
// Zero values mean the filter is not applied.
type TaskFilters struct {
	Status      TaskStatus `json:"status,omitempty"`
	Priority    Priority   `json:"priority,omitempty"`
	Tag         string     `json:"tag,omitempty"`
	Search      string     `json:"search,omitempty"`
	Page        int        `json:"page,omitempty"`
	Limit       int        `json:"limit,omitempty"`
	SortBy      string     `json:"sort_by,omitempty"`
	SortOrder   string     `json:"sort_order,omitempty"`
	CreatedFrom *time.Time `json:"created_from,omitempty"`
	CreatedTo   *time.Time `json:"created_to,omitempty"`
	DueFrom     *time.Time `json:"due_from,omitempty"`
	DueTo       *time.Time `json:"due_to,omitempty"`
}

// DefaultTaskFilters is the initial filter state of a task view.
func DefaultTaskFilters() TaskFilters {
	return TaskFilters{Page: DefaultPage, Limit: DefaultLimit}
}

// Reset returns the initial filter state, keeping nothing of f.
func (f TaskFilters) Reset() TaskFilters {
	return DefaultTaskFilters()
}

// Normalize defaults page and limit so equivalent filters share a cache entry.
func (f TaskFilters) Normalize() TaskFilters {
	if f.Page <= 0 {
		f.Page = DefaultPage
	}
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	return f
}

// Params renders the filters as query parameters. Unset fields are nil.
func (f TaskFilters) Params() map[string]interface{} {
	params := map[string]interface{}{
		"status":       nil,
		"priority":     nil,
		"tag":          nil,
		"search":       nil,
		"page":         nil,
		"limit":        nil,
		"sort_by":      nil,
		"sort_order":   nil,
		"created_from": nil,
		"created_to":   nil,
		"due_from":     nil,
		"due_to":       nil,
	}
	if f.Status != "" {
		params["status"] = string(f.Status)
	}
	if f.Priority != "" {
		params["priority"] = string(f.Priority)
	}
	if f.Tag != "" {
		params["tag"] = f.Tag
	}
	if f.Search != "" {
		params["search"] = f.Search
	}
	if f.Page > 0 {
		params["page"] = f.Page
	}
	if f.Limit > 0 {
		params["limit"] = f.Limit
	}
	if f.SortBy != "" {
		params["sort_by"] = f.SortBy
	}
	if f.SortOrder != "" {
		params["sort_order"] = f.SortOrder
	}
	setTime(params, "created_from", f.CreatedFrom)
	setTime(params, "created_to", f.CreatedTo)
	setTime(params, "due_from", f.DueFrom)
	setTime(params, "due_to", f.DueTo)
	return params
}

func setTime(params map[string]interface{}, key string, t *time.Time) {
	if t != nil {
		params[key] = t.UTC().Format(time.RFC3339)
	}
}

// Set returns a copy with the named query parameter changed. Changing any
// parameter other than page resets the page to 1. An empty value clears it.
func (f TaskFilters) Set(key, value string) (TaskFilters, error) {
	var err error
	switch key {
	case "status":
		f.Status = ""
		if value != "" {
			f.Status, err = ParseTaskStatus(value)
		}
	case "priority":
		f.Priority = ""
		if value != "" {
			f.Priority, err = ParsePriority(value)
		}
	case "tag":
		f.Tag = value
	case "search":
		f.Search = value
	case "page":
		f.Page, err = parseOptionalInt(value)
	case "limit":
		f.Limit, err = parseOptionalInt(value)
	case "sort_by":
		f.SortBy = value
	case "sort_order":
		if value != "" && value != "asc" && value != "desc" {
			err = fmt.Errorf("%w: sort_order must be asc or desc", ErrInvalidFilter)
		}
		f.SortOrder = value
	case "created_from":
		f.CreatedFrom, err = parseOptionalTime(value)
	case "created_to":
		f.CreatedTo, err = parseOptionalTime(value)
	case "due_from":
		f.DueFrom, err = parseOptionalTime(value)
	case "due_to":
		f.DueTo, err = parseOptionalTime(value)
	default:
		return f, fmt.Errorf("%w: unknown filter %q", ErrInvalidFilter, key)
	}
	if err != nil {
		return f, err
	}
	if key != "page" {
		f.Page = DefaultPage
	}
	return f, nil
}

func parseOptionalInt(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q is not a non-negative integer", ErrInvalidFilter, value)
	}
	return n, nil
}

func parseOptionalTime(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := ParseDate(value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ParseDate accepts RFC3339 timestamps or plain YYYY-MM-DD dates (local midnight).
func ParseDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a date", ErrInvalidFilter, value)
	}
	return t, nil
}

type GroupBy string

const (
	GroupByNone     GroupBy = "none"
	GroupByStatus   GroupBy = "status"
	GroupByPriority GroupBy = "priority"
	GroupByTag      GroupBy = "tag"
	GroupByDueDate  GroupBy = "due_date"
)

type SortBy string

const (
	SortByTitle     SortBy = "title"
	SortByCreatedAt SortBy = "created_at"
	SortByUpdatedAt SortBy = "updated_at"
	SortByDueDate   SortBy = "due_date"
	SortByPriority  SortBy = "priority"
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

type DateFilter string

const (
	DateFilterAll     DateFilter = "all"
	DateFilterToday   DateFilter = "today"
	DateFilterWeek    DateFilter = "week"
	DateFilterMonth   DateFilter = "month"
	DateFilterOverdue DateFilter = "overdue"
	DateFilterCustom  DateFilter = "custom"
)

// LocalFilters are applied in memory after a page has been fetched.
type LocalFilters struct {
	GroupBy        GroupBy    `json:"group_by" validate:"omitempty,oneof=none status priority tag due_date"`
	SortBy         SortBy     `json:"sort_by" validate:"omitempty,oneof=title created_at updated_at due_date priority"`
	SortOrder      SortOrder  `json:"sort_order" validate:"omitempty,oneof=asc desc"`
	DateFilter     DateFilter `json:"date_filter" validate:"omitempty,oneof=all today week month overdue custom"`
	CustomDateFrom *time.Time `json:"custom_date_from,omitempty"`
	CustomDateTo   *time.Time `json:"custom_date_to,omitempty"`
	ShowCompleted  bool       `json:"show_completed"`
}

// DefaultLocalFilters returns the filter bar's reset state.
func DefaultLocalFilters() LocalFilters {
	return LocalFilters{
		GroupBy:       GroupByNone,
		SortBy:        SortByCreatedAt,
		SortOrder:     SortDesc,
		DateFilter:    DateFilterAll,
		ShowCompleted: true,
	}
}

// HasActive reports whether any filter differs from its default.
func (f LocalFilters) HasActive() bool {
	d := DefaultLocalFilters()
	return (f.GroupBy != "" && f.GroupBy != d.GroupBy) ||
		(f.SortBy != "" && f.SortBy != d.SortBy) ||
		(f.SortOrder != "" && f.SortOrder != d.SortOrder) ||
		(f.DateFilter != "" && f.DateFilter != d.DateFilter) ||
		!f.ShowCompleted
}

type StatsPeriod string

const (
	StatsPeriodDay   StatsPeriod = "day"
	StatsPeriodWeek  StatsPeriod = "week"
	StatsPeriodMonth StatsPeriod = "month"
	StatsPeriodYear  StatsPeriod = "year"
)

// StatsQuery parameterises the analytics view.
type StatsQuery struct {
	Period   StatsPeriod `json:"period,omitempty" validate:"omitempty,oneof=day week month year"`
	FromDate string      `json:"from_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	ToDate   string      `json:"to_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// Params renders the query as request parameters. Unset fields are nil.
func (q StatsQuery) Params() map[string]interface{} {
	params := map[string]interface{}{"period": nil, "from_date": nil, "to_date": nil}
	if q.Period != "" {
		params["period"] = string(q.Period)
	}
	if q.FromDate != "" {
		params["from_date"] = q.FromDate
	}
	if q.ToDate != "" {
		params["to_date"] = q.ToDate
	}
	return params
}
