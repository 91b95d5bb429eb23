package services

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/CrowderSoup/task-tracker/backend"
	"github.com/CrowderSoup/task-tracker/models"
)

// GoalService handles goal records on the backend.
type GoalService struct {
	store    backend.Store
	identity Identity
}

func NewGoalService(store backend.Store, identity Identity) *GoalService {
	return &GoalService{
		store:    store,
		identity: identity,
	}
}

// List returns all goals, newest first.
func (s *GoalService) List(ctx context.Context) ([]models.Goal, error) {
	recs, err := s.store.Query(ctx, backend.TableGoals, nil, backend.CreatedDesc)
	if err != nil {
		return nil, remoteFailure("list goals", err)
	}

	goals, err := backend.DecodeAll[models.Goal](recs)
	if err != nil {
		return nil, decodeFailure("list goals", err)
	}
	return goals, nil
}

// Options returns id/name pairs for goal pickers, newest first.
func (s *GoalService) Options(ctx context.Context) ([]models.GoalOption, error) {
	recs, err := s.store.Query(ctx, backend.TableGoals, nil, backend.CreatedDesc)
	if err != nil {
		return nil, remoteFailure("list goal options", err)
	}

	opts, err := backend.DecodeAll[models.GoalOption](recs)
	if err != nil {
		return nil, decodeFailure("list goal options", err)
	}
	return opts, nil
}

// Progress counts total and completed tasks for every goal that has tasks.
func (s *GoalService) Progress(ctx context.Context) (map[string]models.GoalProgress, error) {
	preds := []backend.Predicate{{Field: "goal_id", Op: backend.OpNotNull}}

	recs, err := s.store.Query(ctx, backend.TableTasks, preds, backend.CreatedDesc)
	if err != nil {
		return nil, remoteFailure("goal progress", err)
	}

	tasks, err := backend.DecodeAll[models.Task](recs)
	if err != nil {
		return nil, decodeFailure("goal progress", err)
	}

	progress := make(map[string]models.GoalProgress)
	for _, t := range tasks {
		if t.GoalID == nil {
			continue
		}
		p := progress[*t.GoalID]
		p.GoalID = *t.GoalID
		p.Total++
		if t.Status == models.StatusCompleted {
			p.Completed++
		}
		progress[*t.GoalID] = p
	}
	return progress, nil
}

// Create inserts a goal owned by the signed-in user.
func (s *GoalService) Create(ctx context.Context, in models.GoalInput) (*models.Goal, error) {
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

	out, err := s.store.Insert(ctx, backend.TableGoals, rec)
	if err != nil {
		return nil, remoteFailure("create goal", err)
	}

	var goal models.Goal
	if err := backend.Decode(out, &goal); err != nil {
		return nil, decodeFailure("create goal", err)
	}

	log.Debug().Str("goal", goal.ID).Msg("goal created")
	return &goal, nil
}

// Update applies patch to the goal with the given id.
func (s *GoalService) Update(ctx context.Context, id string, patch models.GoalPatch) (*models.Goal, error) {
	patch = patch.Normalize()
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	rec, err := backend.Encode(patch.Changes())
	if err != nil {
		return nil, err
	}

	out, err := s.store.Update(ctx, backend.TableGoals, id, rec)
	if err != nil {
		return nil, remoteFailure("update goal", err)
	}

	var goal models.Goal
	if err := backend.Decode(out, &goal); err != nil {
		return nil, decodeFailure("update goal", err)
	}
	return &goal, nil
}

// Delete removes the goal. Its tasks stay, detached by the backend.
func (s *GoalService) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, backend.TableGoals, id); err != nil {
		return remoteFailure("delete goal", err)
	}
	return nil
}
