package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster/client/internal/domain/entities"
	"github.com/taskmaster/client/internal/infrastructure/logger"
)

// fakeTaskService is an in-memory server. UpdateTask blocks on gate when set.
type fakeTaskService struct {
	mu         sync.Mutex
	tasks      []entities.Task
	nextID     int
	gate       chan struct{}
	failUpdate error
	calls      map[string]int
	clock      func() time.Time
}

func newFakeTaskService(clock func() time.Time, tasks ...entities.Task) *fakeTaskService {
	return &fakeTaskService{tasks: tasks, nextID: 100, calls: map[string]int{}, clock: clock}
}

func (f *fakeTaskService) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeTaskService) GetTasks(ctx context.Context, filters entities.TaskFilters) (*entities.TasksResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["GetTasks"]++
	out := []entities.Task{}
	for _, t := range f.tasks {
		if filters.Status != "" && t.Status != filters.Status {
			continue
		}
		out = append(out, t.Clone())
	}
	return &entities.TasksResponse{Tasks: out, Total: len(out), Page: filters.Page, Limit: filters.Limit, TotalPages: 1}, nil
}

func (f *fakeTaskService) GetTask(ctx context.Context, id string) (*entities.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["GetTask"]++
	for _, t := range f.tasks {
		if t.ID == id {
			task := t.Clone()
			return &task, nil
		}
	}
	return nil, entities.ErrTaskNotFound
}

func (f *fakeTaskService) CreateTask(ctx context.Context, req entities.CreateTaskRequest) (*entities.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["CreateTask"]++
	f.nextID++
	now := f.clock()
	task := entities.Task{
		ID:        strconv.Itoa(f.nextID),
		Title:     req.Title,
		Status:    entities.TaskStatusTodo,
		Priority:  entities.PriorityMedium,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.tasks = append([]entities.Task{task}, f.tasks...)
	out := task.Clone()
	return &out, nil
}

func (f *fakeTaskService) UpdateTask(ctx context.Context, id string, req entities.UpdateTaskRequest) (*entities.Task, error) {
	f.mu.Lock()
	f.calls["UpdateTask"]++
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate != nil {
		return nil, f.failUpdate
	}
	for i, t := range f.tasks {
		if t.ID == id {
			f.tasks[i] = t.Apply(req)
			f.tasks[i].UpdatedAt = f.clock()
			out := f.tasks[i].Clone()
			return &out, nil
		}
	}
	return nil, entities.ErrTaskNotFound
}

func (f *fakeTaskService) DeleteTask(ctx context.Context, id string) (*entities.DeleteTaskResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["DeleteTask"]++
	for i, t := range f.tasks {
		if t.ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return &entities.DeleteTaskResponse{Deleted: true}, nil
		}
	}
	return nil, entities.ErrTaskNotFound
}

func seedTask(id string, status entities.TaskStatus, created time.Time) entities.Task {
	return entities.Task{
		ID:        id,
		Title:     "Task " + id,
		Status:    status,
		Priority:  entities.PriorityLow,
		Tags:      []string{"home"},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func newTestStore(t *testing.T, tasks ...entities.Task) (*TaskStore, *fakeTaskService, *fakeClock) {
	t.Helper()
	c, clock := newTestCache(t)
	svc := newFakeTaskService(clock.Now, tasks...)
	return NewTaskStore(c, svc, logger.NewNop()), svc, clock
}

func TestTaskStore_ListIsCached(t *testing.T) {
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	store, svc, _ := newTestStore(t, seedTask("1", entities.TaskStatusTodo, base))
	ctx := context.Background()

	_, err := store.List(ctx, entities.TaskFilters{})
	require.NoError(t, err)
	resp, err := store.List(ctx, entities.TaskFilters{Page: 1, Limit: 10})
	require.NoError(t, err)

	assert.Len(t, resp.Tasks, 1)
	assert.Equal(t, 1, svc.count("GetTasks"))
}

func TestTaskStore_ListReturnsCopies(t *testing.T) {
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	store, _, _ := newTestStore(t, seedTask("1", entities.TaskStatusTodo, base))
	ctx := context.Background()

	resp, err := store.List(ctx, entities.TaskFilters{})
	require.NoError(t, err)
	resp.Tasks[0].Title = "mutated"
	resp.Tasks[0].Tags[0] = "mutated"

	cached, ok := store.CachedList(entities.TaskFilters{})
	require.True(t, ok)
	assert.Equal(t, "Task 1", cached.Tasks[0].Title)
	assert.Equal(t, "home", cached.Tasks[0].Tags[0])
}

func TestTaskStore_UpdateIsVisibleBeforeResponse(t *testing.T) {
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	store, svc, _ := newTestStore(t, seedTask("1", entities.TaskStatusTodo, base))
	ctx := context.Background()

	_, err := store.List(ctx, entities.TaskFilters{})
	require.NoError(t, err)

	svc.gate = make(chan struct{})
	high := entities.PriorityHigh
	done := make(chan error, 1)
	go func() {
		_, err := store.Update(ctx, "1", entities.UpdateTaskRequest{Priority: &high})
		done <- err
	}()

	require.Eventually(t, func() bool { return svc.count("UpdateTask") == 1 }, time.Second, time.Millisecond)
	cached, ok := store.CachedList(entities.TaskFilters{})
	require.True(t, ok)
	assert.Equal(t, entities.PriorityHigh, cached.Tasks[0].Priority)
	assert.True(t, cached.Tasks[0].UpdatedAt.After(base))

	close(svc.gate)
	require.NoError(t, <-done)
	store.Cache().Wait()

	task, err := store.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, entities.PriorityHigh, task.Priority)
}

func TestTaskStore_FailedUpdateRollsBack(t *testing.T) {
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	store, svc, _ := newTestStore(t, seedTask("1", entities.TaskStatusTodo, base))
	ctx := context.Background()

	_, err := store.List(ctx, entities.TaskFilters{})
	require.NoError(t, err)
	before, _ := store.CachedList(entities.TaskFilters{})

	boom := errors.New("network down")
	svc.failUpdate = boom
	done := entities.TaskStatusDone
	_, err = store.Update(ctx, "1", entities.UpdateTaskRequest{Status: &done})
	assert.ErrorIs(t, err, boom)

	store.Cache().Wait()
	after, ok := store.CachedList(entities.TaskFilters{})
	require.True(t, ok)
	assert.Equal(t, before, after)
	assert.Equal(t, entities.TaskStatusTodo, after.Tasks[0].Status)
}

func TestTaskStore_InvalidUpdateLeavesCacheAlone(t *testing.T) {
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	store, svc, _ := newTestStore(t, seedTask("1", entities.TaskStatusTodo, base))
	ctx := context.Background()

	_, err := store.List(ctx, entities.TaskFilters{})
	require.NoError(t, err)
	before, _ := store.CachedList(entities.TaskFilters{})

	short := "ab"
	_, err = store.Update(ctx, "1", entities.UpdateTaskRequest{Title: &short})
	var verr *entities.ValidationError
	require.ErrorAs(t, err, &verr)

	tooMany := entities.UpdateTaskRequest{Tags: []string{"a", "b", "c", "d", "e", "f"}}
	_, err = store.Update(ctx, "1", tooMany)
	require.ErrorAs(t, err, &verr)

	store.Cache().Wait()
	after, ok := store.CachedList(entities.TaskFilters{})
	require.True(t, ok)
	assert.Equal(t, before, after)
	assert.Equal(t, 0, svc.count("UpdateTask"))
	assert.Equal(t, 1, svc.count("GetTasks"), "a rejected update must not invalidate")
}

func TestTaskStore_UpdateNormalizesTagsBeforeApplying(t *testing.T) {
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	store, svc, _ := newTestStore(t, seedTask("1", entities.TaskStatusTodo, base))
	ctx := context.Background()

	_, err := store.List(ctx, entities.TaskFilters{})
	require.NoError(t, err)

	svc.gate = make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := store.Update(ctx, "1", entities.UpdateTaskRequest{Tags: []string{" Work ", "work", "Urgent"}})
		done <- err
	}()

	require.Eventually(t, func() bool { return svc.count("UpdateTask") == 1 }, time.Second, time.Millisecond)
	cached, ok := store.CachedList(entities.TaskFilters{})
	require.True(t, ok)
	assert.Equal(t, []string{"work", "urgent"}, cached.Tasks[0].Tags)

	close(svc.gate)
	require.NoError(t, <-done)
}

func TestTaskStore_RollbackRestoresEveryList(t *testing.T) {
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	store, svc, _ := newTestStore(t, seedTask("1", entities.TaskStatusTodo, base), seedTask("2", entities.TaskStatusDoing, base))
	ctx := context.Background()

	all := entities.TaskFilters{}
	todo := entities.TaskFilters{Status: entities.TaskStatusTodo}
	_, err := store.List(ctx, all)
	require.NoError(t, err)
	_, err = store.List(ctx, todo)
	require.NoError(t, err)

	snapAll, _ := store.CachedList(all)
	snapTodo, _ := store.CachedList(todo)

	svc.failUpdate = errors.New("rejected")
	title := "Renamed"
	_, err = store.Update(ctx, "1", entities.UpdateTaskRequest{Title: &title})
	require.Error(t, err)
	store.Cache().Wait()

	gotAll, _ := store.CachedList(all)
	gotTodo, _ := store.CachedList(todo)
	assert.Equal(t, snapAll, gotAll)
	assert.Equal(t, snapTodo, gotTodo)
}

func TestTaskStore_CreatePrependsAndRefetches(t *testing.T) {
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	store, svc, _ := newTestStore(t, seedTask("1", entities.TaskStatusTodo, base))
	ctx := context.Background()

	_, err := store.List(ctx, entities.TaskFilters{})
	require.NoError(t, err)
	_, err = store.List(ctx, entities.TaskFilters{Page: 2})
	require.NoError(t, err)

	created, err := store.Create(ctx, entities.CreateTaskRequest{Title: "Buy milk"})
	require.NoError(t, err)

	// before the refetch settles every list already starts with the new task
	for _, f := range []entities.TaskFilters{{}, {Page: 2}} {
		cached, ok := store.CachedList(f)
		require.True(t, ok)
		assert.Equal(t, created.ID, cached.Tasks[0].ID)
	}

	store.Cache().Wait()
	assert.Equal(t, 4, svc.count("GetTasks"))
	cached, _ := store.CachedList(entities.TaskFilters{})
	assert.Equal(t, created.ID, cached.Tasks[0].ID)
	assert.Len(t, cached.Tasks, 2)
}

func TestTaskStore_DeleteDropsDetail(t *testing.T) {
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	store, _, _ := newTestStore(t, seedTask("1", entities.TaskStatusTodo, base))
	ctx := context.Background()

	_, err := store.Get(ctx, "1")
	require.NoError(t, err)

	resp, err := store.Delete(ctx, "1")
	require.NoError(t, err)
	assert.True(t, resp.Deleted)
	store.Cache().Wait()

	_, ok := store.Cache().Peek(TaskDetailKey("1"))
	assert.False(t, ok)

	_, err = store.Get(ctx, "1")
	assert.True(t, IsNotFound(err))
}

func TestTaskStore_DeleteDoesNotRefetchDeletedDetail(t *testing.T) {
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	store, svc, _ := newTestStore(t, seedTask("1", entities.TaskStatusTodo, base), seedTask("2", entities.TaskStatusTodo, base))
	ctx := context.Background()

	_, err := store.List(ctx, entities.TaskFilters{})
	require.NoError(t, err)
	_, err = store.Get(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, 1, svc.count("GetTask"))

	_, err = store.Delete(ctx, "1")
	require.NoError(t, err)
	store.Cache().Wait()

	// the list is reloaded but the deleted detail never is
	assert.Equal(t, 2, svc.count("GetTasks"))
	assert.Equal(t, 1, svc.count("GetTask"))
	cached, ok := store.CachedList(entities.TaskFilters{})
	require.True(t, ok)
	require.Len(t, cached.Tasks, 1)
	assert.Equal(t, "2", cached.Tasks[0].ID)
}

func TestTaskStore_FailedDeleteKeepsCache(t *testing.T) {
	store, svc, _ := newTestStore(t)
	_, err := store.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, entities.ErrTaskNotFound)
	assert.Equal(t, 1, svc.count("DeleteTask"))
}

func TestTaskStore_MoveToSameStatusIsNoop(t *testing.T) {
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	store, svc, _ := newTestStore(t, seedTask("1", entities.TaskStatusDoing, base))
	ctx := context.Background()

	_, err := store.List(ctx, entities.TaskFilters{})
	require.NoError(t, err)

	task, err := store.Move(ctx, "1", entities.TaskStatusDoing)
	require.NoError(t, err)
	assert.Equal(t, entities.TaskStatusDoing, task.Status)
	assert.Equal(t, 0, svc.count("UpdateTask"))

	task, err = store.Move(ctx, "1", entities.TaskStatusDone)
	require.NoError(t, err)
	assert.Equal(t, entities.TaskStatusDone, task.Status)
	assert.Equal(t, 1, svc.count("UpdateTask"))

	_, err = store.Move(ctx, "1", "blocked")
	assert.ErrorIs(t, err, entities.ErrInvalidStatus)
}
