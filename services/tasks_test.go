package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CrowderSoup/task-tracker/backend"
	"github.com/CrowderSoup/task-tracker/models"
	"github.com/CrowderSoup/task-tracker/services"
)

func ptr[T any](v T) *T { return &v }

func fixedClock() services.Clock {
	return func() time.Time { return time.Date(2024, 5, 15, 12, 0, 0, 0, time.Local) }
}

func newTaskService(store *memStore, userID string) *services.TaskService {
	return services.NewTaskService(store, identity{userID: userID}, fixedClock())
}

func TestCreateTaskRequiresIdentity(t *testing.T) {
	store := newMemStore()
	svc := newTaskService(store, "")

	_, err := svc.Create(context.Background(), models.TaskInput{Title: "Buy milk"})
	assert.ErrorIs(t, err, services.ErrNotAuthenticated)
	assert.Equal(t, 0, store.callCount())
}

func TestCreateTaskValidatesBeforeRemoteCall(t *testing.T) {
	store := newMemStore()
	svc := newTaskService(store, "u1")

	_, err := svc.Create(context.Background(), models.TaskInput{Title: "  "})
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 0, store.callCount())
}

func TestCreateTask(t *testing.T) {
	store := newMemStore()
	svc := newTaskService(store, "u1")

	task, err := svc.Create(context.Background(), models.TaskInput{
		Title:       "  Buy milk ",
		Description: ptr(" "),
		DueDate:     &civil.Date{Year: 2024, Month: 5, Day: 20},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "u1", task.UserID)
	assert.Equal(t, "Buy milk", task.Title)
	assert.Nil(t, task.Description)
	assert.Equal(t, models.PriorityMedium, task.Priority)
	assert.Equal(t, models.StatusTodo, task.Status)
	assert.Equal(t, civil.Date{Year: 2024, Month: 5, Day: 20}, *task.DueDate)
	assert.False(t, task.CreatedAt.IsZero())
}

func TestListTasksNewestFirst(t *testing.T) {
	store := newMemStore()
	svc := newTaskService(store, "u1")
	ctx := context.Background()

	for _, title := range []string{"first", "second", "third"} {
		_, err := svc.Create(ctx, models.TaskInput{Title: title})
		require.NoError(t, err)
	}

	tasks, err := svc.List(ctx, models.DefaultFilters())
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, "third", tasks[0].Title)
	assert.Equal(t, "first", tasks[2].Title)
}

func TestListTasksFilters(t *testing.T) {
	store := newMemStore()
	svc := newTaskService(store, "u1")
	ctx := context.Background()

	inputs := []models.TaskInput{
		{Title: "late report", DueDate: &civil.Date{Year: 2024, Month: 5, Day: 1}},
		{Title: "late but done", DueDate: &civil.Date{Year: 2024, Month: 5, Day: 1}, Status: models.StatusCompleted},
		{Title: "today call", DueDate: &civil.Date{Year: 2024, Month: 5, Day: 15}, Priority: models.PriorityHigh},
		{Title: "next week", DueDate: &civil.Date{Year: 2024, Month: 5, Day: 22}},
		{Title: "someday", Description: ptr("the REPORT draft")},
	}
	for _, in := range inputs {
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}

	titles := func(f models.TaskFilters) []string {
		tasks, err := svc.List(ctx, f)
		require.NoError(t, err)
		out := []string{}
		for _, task := range tasks {
			out = append(out, task.Title)
		}
		return out
	}

	assert.Equal(t, []string{"late report"}, titles(models.TaskFilters{Due: models.DueOverdue}))
	assert.Equal(t, []string{"today call"}, titles(models.TaskFilters{Due: models.DueToday}))
	assert.Equal(t, []string{"next week", "today call"}, titles(models.TaskFilters{Due: models.DueThisWeek}))
	assert.Equal(t, []string{"someday"}, titles(models.TaskFilters{Due: models.DueNoDueDate}))
	assert.Equal(t, []string{"today call"}, titles(models.TaskFilters{Priority: models.PriorityHigh}))
	assert.Equal(t, []string{"someday", "late report"}, titles(models.TaskFilters{Search: "report"}))
}

func TestWhitespaceSearchIsNoFilter(t *testing.T) {
	store := newMemStore()
	svc := newTaskService(store, "u1")
	ctx := context.Background()

	for _, title := range []string{"a", "b"} {
		_, err := svc.Create(ctx, models.TaskInput{Title: title})
		require.NoError(t, err)
	}

	all, err := svc.List(ctx, models.DefaultFilters())
	require.NoError(t, err)
	blank, err := svc.List(ctx, models.TaskFilters{Search: "  "})
	require.NoError(t, err)

	assert.Equal(t, all, blank)
}

func TestUpdateTask(t *testing.T) {
	store := newMemStore()
	svc := newTaskService(store, "u1")
	ctx := context.Background()

	task, err := svc.Create(ctx, models.TaskInput{
		Title:   "Plan trip",
		DueDate: &civil.Date{Year: 2024, Month: 6, Day: 1},
	})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, task.ID, models.TaskPatch{
		Status:  models.Set(models.StatusInProgress),
		DueDate: models.Clear[civil.Date](),
	})
	require.NoError(t, err)

	assert.Equal(t, "Plan trip", updated.Title)
	assert.Equal(t, models.StatusInProgress, updated.Status)
	assert.Nil(t, updated.DueDate)
}

func TestUpdateMissingTaskIsRemoteFailure(t *testing.T) {
	svc := newTaskService(newMemStore(), "u1")

	_, err := svc.Update(context.Background(), "missing", models.TaskPatch{Title: models.Set("x")})
	var rf *services.RemoteFailure
	assert.ErrorAs(t, err, &rf)
	assert.ErrorIs(t, err, backend.ErrNotFound)
}

func TestRemoteFailureKeepsMessage(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("JWT expired")
	svc := newTaskService(store, "u1")

	_, err := svc.List(context.Background(), models.DefaultFilters())

	var rf *services.RemoteFailure
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, "JWT expired", rf.Message)
	assert.Equal(t, "JWT expired", err.Error())
}

func TestDeleteTask(t *testing.T) {
	store := newMemStore()
	svc := newTaskService(store, "u1")
	ctx := context.Background()

	task, err := svc.Create(ctx, models.TaskInput{Title: "temp"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, task.ID))

	tasks, err := svc.List(ctx, models.DefaultFilters())
	require.NoError(t, err)
	assert.Empty(t, tasks)

	var rf *services.RemoteFailure
	assert.ErrorAs(t, svc.Delete(ctx, task.ID), &rf)
}

func TestToday(t *testing.T) {
	svc := newTaskService(newMemStore(), "u1")
	assert.Equal(t, civil.Date{Year: 2024, Month: 5, Day: 15}, svc.Today())
}
