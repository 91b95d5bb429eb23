package services

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog/log"

	"github.com/CrowderSoup/task-tracker/backend"
	"github.com/CrowderSoup/task-tracker/filters"
	"github.com/CrowderSoup/task-tracker/models"
)

// Identity reports the signed-in user, if any.
type Identity interface {
	UserID() (string, bool)
}

// Clock returns the current local time.
type Clock func() time.Time

// Today resolves the local calendar date of c.
func (c Clock) Today() civil.Date {
	return civil.DateOf(c().Local())
}

// TaskService handles task records on the backend. Each call is a single
// attempt; failures are returned as they happen.
type TaskService struct {
	store    backend.Store
	identity Identity
	clock    Clock
}

func NewTaskService(store backend.Store, identity Identity, clock Clock) *TaskService {
	if clock == nil {
		clock = time.Now
	}
	return &TaskService{
		store:    store,
		identity: identity,
		clock:    clock,
	}
}

// List returns the tasks matching f, newest first.
func (s *TaskService) List(ctx context.Context, f models.TaskFilters) ([]models.Task, error) {
	preds := filters.Build(f, s.clock.Today())

	recs, err := s.store.Query(ctx, backend.TableTasks, preds, backend.CreatedDesc)
	if err != nil {
		return nil, remoteFailure("list tasks", err)
	}

	tasks, err := backend.DecodeAll[models.Task](recs)
	if err != nil {
		return nil, decodeFailure("list tasks", err)
	}
	return tasks, nil
}

// Create inserts a task owned by the signed-in user.
func (s *TaskService) Create(ctx context.Context, in models.TaskInput) (*models.Task, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	userID, ok := s.identity.UserID()
	if !ok {
		return nil, ErrNotAuthenticated
	}

	rec, err := backend.Encode(in)
	if err != nil {
		return nil, err
	}
	rec["user_id"] = userID

	out, err := s.store.Insert(ctx, backend.TableTasks, rec)
	if err != nil {
		return nil, remoteFailure("create task", err)
	}

	var task models.Task
	if err := backend.Decode(out, &task); err != nil {
		return nil, decodeFailure("create task", err)
	}

	log.Debug().Str("task", task.ID).Msg("task created")
	return &task, nil
}

// Update applies patch to the task with the given id. Fields absent from
// the patch keep their stored value.
func (s *TaskService) Update(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error) {
	patch = patch.Normalize()
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	rec, err := backend.Encode(patch.Changes())
	if err != nil {
		return nil, err
	}

	out, err := s.store.Update(ctx, backend.TableTasks, id, rec)
	if err != nil {
		return nil, remoteFailure("update task", err)
	}

	var task models.Task
	if err := backend.Decode(out, &task); err != nil {
		return nil, decodeFailure("update task", err)
	}
	return &task, nil
}

// Delete removes the task. A missing id is reported as the backend reports it.
func (s *TaskService) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, backend.TableTasks, id); err != nil {
		return remoteFailure("delete task", err)
	}
	return nil
}

// Today is the date the service uses for due buckets.
func (s *TaskService) Today() civil.Date {
	return s.clock.Today()
}
