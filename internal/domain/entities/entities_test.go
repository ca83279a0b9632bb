package entities

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTags(t *testing.T) {
	assert.Nil(t, NormalizeTags(nil))
	assert.Equal(t, []string{"home", "errands"}, NormalizeTags([]string{" Home ", "errands", "HOME", "", "Errands"}))
}

func TestTaskFilters_SetResetsPage(t *testing.T) {
	f := DefaultTaskFilters()
	f, err := f.Set("page", "4")
	require.NoError(t, err)
	assert.Equal(t, 4, f.Page)

	f, err = f.Set("status", "doing")
	require.NoError(t, err)
	assert.Equal(t, TaskStatusDoing, f.Status)
	assert.Equal(t, 1, f.Page)

	f, err = f.Set("page", "2")
	require.NoError(t, err)
	f, err = f.Set("search", "milk")
	require.NoError(t, err)
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, "milk", f.Search)

	_, err = f.Set("status", "blocked")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = f.Set("colour", "red")
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestTaskFilters_NormalizeAndParams(t *testing.T) {
	n := TaskFilters{}.Normalize()
	assert.Equal(t, 1, n.Page)
	assert.Equal(t, 10, n.Limit)

	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	params := TaskFilters{Priority: PriorityHigh, DueFrom: &due}.Params()
	assert.Equal(t, "high", params["priority"])
	assert.Equal(t, "2026-03-01T00:00:00Z", params["due_from"])
	assert.Nil(t, params["status"])
	assert.Contains(t, params, "status")
}

func TestValidate_CreateTaskRequest(t *testing.T) {
	err := Validate(CreateTaskRequest{Title: "ok"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "title")

	err = Validate(CreateTaskRequest{Title: strings.Repeat("x", 121)})
	require.True(t, errors.As(err, &verr))

	err = Validate(CreateTaskRequest{Title: "Buy milk", Tags: []string{"a", "b", "c", "d", "e", "f"}})
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "tags")

	err = Validate(CreateTaskRequest{Title: "Buy milk", Status: "blocked"})
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "status")

	assert.NoError(t, Validate(CreateTaskRequest{Title: "Buy milk", Status: TaskStatusTodo, Priority: PriorityLow}))
}

func TestValidate_LoginRequest(t *testing.T) {
	err := Validate(LoginRequest{Email: "not-an-email", Password: "x"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "must be a valid email", verr.Fields["email"])
}

func TestTask_ApplyDoesNotAlias(t *testing.T) {
	orig := Task{ID: "1", Title: "a", Status: TaskStatusTodo, Tags: []string{"x"}}
	status := TaskStatusDone
	merged := orig.Apply(UpdateTaskRequest{Status: &status, Tags: []string{"y"}})

	assert.Equal(t, TaskStatusDone, merged.Status)
	assert.Equal(t, []string{"y"}, merged.Tags)
	assert.Equal(t, TaskStatusTodo, orig.Status)
	assert.Equal(t, []string{"x"}, orig.Tags)
}

func TestPriorityRankAndParse(t *testing.T) {
	assert.Less(t, PriorityLow.Rank(), PriorityMedium.Rank())
	assert.Less(t, PriorityMedium.Rank(), PriorityHigh.Rank())

	p, err := ParsePriority("Medium")
	require.NoError(t, err)
	assert.Equal(t, PriorityMedium, p)
}

func TestTaskIsOverdue(t *testing.T) {
	today := time.Date(2026, 5, 10, 0, 0, 0, 0, time.Local)
	yesterday := today.AddDate(0, 0, -1)

	task := Task{Status: TaskStatusTodo, DueDate: &yesterday}
	assert.True(t, task.IsOverdue(today))

	task.Status = TaskStatusDone
	assert.False(t, task.IsOverdue(today))

	assert.False(t, (&Task{}).IsOverdue(today))
}

func TestNotificationTaskID(t *testing.T) {
	n := Notification{Metadata: map[string]interface{}{"task_id": float64(42)}}
	id, ok := n.TaskID()
	assert.True(t, ok)
	assert.Equal(t, "42", id)

	_, ok = (&Notification{}).TaskID()
	assert.False(t, ok)
}

func TestLocalFiltersHasActive(t *testing.T) {
	f := DefaultLocalFilters()
	assert.False(t, f.HasActive())
	f.ShowCompleted = false
	assert.True(t, f.HasActive())
}

func TestUpdateTaskRequest_MarshalTags(t *testing.T) {
	data, err := json.Marshal(UpdateTaskRequest{Tags: []string{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tags":[]}`, string(data))

	status := TaskStatusDone
	data, err = json.Marshal(UpdateTaskRequest{Status: &status})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"done"}`, string(data))

	var back UpdateTaskRequest
	require.NoError(t, json.Unmarshal([]byte(`{"tags":[]}`), &back))
	assert.NotNil(t, back.Tags)
	assert.False(t, back.IsEmpty())
}

func TestTask_ApplyClearsTags(t *testing.T) {
	task := Task{ID: "1", Tags: []string{"a", "b"}}
	cleared := task.Apply(UpdateTaskRequest{Tags: []string{}})
	assert.NotNil(t, cleared.Tags)
	assert.Empty(t, cleared.Tags)
}
