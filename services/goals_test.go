package services_test

import (
	"context"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CrowderSoup/task-tracker/models"
	"github.com/CrowderSoup/task-tracker/services"
	"github.com/CrowderSoup/task-tracker/stats"
)

func TestCreateGoalRequiresIdentity(t *testing.T) {
	store := newMemStore()
	svc := services.NewGoalService(store, identity{})

	_, err := svc.Create(context.Background(), models.GoalInput{Name: "Fitness"})
	assert.ErrorIs(t, err, services.ErrNotAuthenticated)
	assert.Equal(t, 0, store.callCount())
}

func TestCreateGoalRejectsInvertedRange(t *testing.T) {
	store := newMemStore()
	svc := services.NewGoalService(store, identity{userID: "u1"})

	_, err := svc.Create(context.Background(), models.GoalInput{
		Name:      "Fitness",
		StartDate: &civil.Date{Year: 2024, Month: 2, Day: 1},
		EndDate:   &civil.Date{Year: 2024, Month: 1, Day: 1},
	})
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "end_date")
	assert.Equal(t, 0, store.callCount())
}

func TestGoalOptionsAndUpdate(t *testing.T) {
	store := newMemStore()
	svc := services.NewGoalService(store, identity{userID: "u1"})
	ctx := context.Background()

	first, err := svc.Create(ctx, models.GoalInput{Name: "Fitness"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, models.GoalInput{Name: "Reading", Description: ptr("12 books")})
	require.NoError(t, err)

	opts, err := svc.Options(ctx)
	require.NoError(t, err)
	require.Len(t, opts, 2)
	assert.Equal(t, "Reading", opts[0].Name)
	assert.Equal(t, models.GoalOption{ID: first.ID, Name: "Fitness"}, opts[1])

	updated, err := svc.Update(ctx, first.ID, models.GoalPatch{Name: models.Set("Running")})
	require.NoError(t, err)
	assert.Equal(t, "Running", updated.Name)
	assert.Equal(t, "u1", updated.UserID)
}

func TestGoalProgress(t *testing.T) {
	store := newMemStore()
	goals := services.NewGoalService(store, identity{userID: "u1"})
	tasks := newTaskService(store, "u1")
	ctx := context.Background()

	goal, err := goals.Create(ctx, models.GoalInput{Name: "Fitness"})
	require.NoError(t, err)
	empty, err := goals.Create(ctx, models.GoalInput{Name: "Empty"})
	require.NoError(t, err)

	for _, status := range []models.TaskStatus{models.StatusCompleted, models.StatusTodo, models.StatusTodo} {
		_, err := tasks.Create(ctx, models.TaskInput{Title: "run", Status: status, GoalID: &goal.ID})
		require.NoError(t, err)
	}
	_, err = tasks.Create(ctx, models.TaskInput{Title: "loose"})
	require.NoError(t, err)

	progress, err := goals.Progress(ctx)
	require.NoError(t, err)

	require.Contains(t, progress, goal.ID)
	assert.Equal(t, 3, progress[goal.ID].Total)
	assert.Equal(t, 1, progress[goal.ID].Completed)
	assert.Equal(t, 33, progress[goal.ID].Pct())

	assert.NotContains(t, progress, empty.ID)
	assert.Equal(t, 0, progress[empty.ID].Pct())
}

func TestDeletingGoalKeepsTasks(t *testing.T) {
	store := newMemStore()
	goals := services.NewGoalService(store, identity{userID: "u1"})
	tasks := newTaskService(store, "u1")
	ctx := context.Background()

	goal, err := goals.Create(ctx, models.GoalInput{Name: "Fitness"})
	require.NoError(t, err)
	_, err = tasks.Create(ctx, models.TaskInput{Title: "run", GoalID: &goal.ID})
	require.NoError(t, err)

	require.NoError(t, goals.Delete(ctx, goal.ID))

	list, err := tasks.List(ctx, models.DefaultFilters())
	require.NoError(t, err)
	require.Len(t, list, 1)

	opts, err := goals.Options(ctx)
	require.NoError(t, err)
	assert.Empty(t, opts)

	d := stats.Compute(list, opts, tasks.Today())
	require.Len(t, d.Goals, 1)
	assert.Equal(t, stats.UnknownGoal, d.Goals[0].Name)
}

func TestExport(t *testing.T) {
	store := newMemStore()
	tasks := newTaskService(store, "u1")
	goals := services.NewGoalService(store, identity{userID: "u1"})
	exporter := services.NewExportService(tasks, goals, fixedClock())
	ctx := context.Background()

	_, err := goals.Create(ctx, models.GoalInput{Name: "Fitness"})
	require.NoError(t, err)
	_, err = tasks.Create(ctx, models.TaskInput{Title: "run"})
	require.NoError(t, err)

	export, err := exporter.Export(ctx)
	require.NoError(t, err)
	assert.Len(t, export.Tasks, 1)
	assert.Len(t, export.Goals, 1)
	assert.Equal(t, fixedClock()().UTC(), export.ExportedAt)
}
