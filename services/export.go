package services

import (
	"context"
	"time"

	"github.com/CrowderSoup/task-tracker/models"
)

// Export is the downloadable copy of a user's data.
type Export struct {
	ExportedAt time.Time     `json:"exported_at"`
	Tasks      []models.Task `json:"tasks"`
	Goals      []models.Goal `json:"goals"`
}

type ExportService struct {
	tasks *TaskService
	goals *GoalService
	clock Clock
}

func NewExportService(tasks *TaskService, goals *GoalService, clock Clock) *ExportService {
	if clock == nil {
		clock = time.Now
	}
	return &ExportService{tasks: tasks, goals: goals, clock: clock}
}

func (s *ExportService) Export(ctx context.Context) (*Export, error) {
	tasks, err := s.tasks.List(ctx, models.DefaultFilters())
	if err != nil {
		return nil, err
	}
	goals, err := s.goals.List(ctx)
	if err != nil {
		return nil, err
	}
	return &Export{
		ExportedAt: s.clock().UTC(),
		Tasks:      tasks,
		Goals:      goals,
	}, nil
}
