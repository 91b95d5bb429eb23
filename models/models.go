package models

import (
	"time"

	"cloud.google.com/go/civil"
)

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"

	// PriorityAll is only meaningful as a filter value.
	PriorityAll TaskPriority = "all"
)

// Valid reports whether p is one of the stored priorities.
func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"

	// StatusAll is only meaningful as a filter value.
	StatusAll TaskStatus = "all"
)

// Valid reports whether s is one of the stored statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Task is a single unit of work owned by a user and optionally attached to a Goal.
type Task struct {
	ID          string       `json:"id"`
	UserID      string       `json:"user_id"`
	Title       string       `json:"title"`
	Description *string      `json:"description"`
	DueDate     *civil.Date  `json:"due_date"`
	Priority    TaskPriority `json:"priority"`
	Status      TaskStatus   `json:"status"`
	GoalID      *string      `json:"goal_id"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Goal groups tasks. Deleting a goal detaches its tasks rather than removing them.
type Goal struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	Name        string      `json:"name"`
	Description *string     `json:"description"`
	StartDate   *civil.Date `json:"start_date"`
	EndDate     *civil.Date `json:"end_date"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// GoalOption is the id/name pair used to populate goal pickers.
type GoalOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GoalProgress counts the tasks attached to a goal.
type GoalProgress struct {
	GoalID    string `json:"goalId"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
}

// Pct is the rounded completion percentage, 0 for a goal without tasks.
func (p GoalProgress) Pct() int {
	return Percent(p.Completed, p.Total)
}

// Percent returns round(done/total*100), or 0 when total is 0.
func Percent(done, total int) int {
	if total <= 0 {
		return 0
	}
	return (done*200 + total) / (total * 2)
}

type DueFilter string

const (
	DueAll       DueFilter = "all"
	DueOverdue   DueFilter = "overdue"
	DueToday     DueFilter = "today"
	DueThisWeek  DueFilter = "this_week"
	DueNoDueDate DueFilter = "no_due_date"
)

// Valid reports whether d is a known due bucket, "all" included.
func (d DueFilter) Valid() bool {
	switch d {
	case DueAll, DueOverdue, DueToday, DueThisWeek, DueNoDueDate:
		return true
	}
	return false
}

// TaskFilters is the transient filter state of the tasks list.
// Zero values are treated the same as their "all"/empty defaults.
type TaskFilters struct {
	Status   TaskStatus   `json:"status"`
	Priority TaskPriority `json:"priority"`
	Due      DueFilter    `json:"due"`
	Search   string       `json:"search"`
	GoalID   *string      `json:"goal_id"`
}

// DefaultFilters returns filters that match every task.
func DefaultFilters() TaskFilters {
	return TaskFilters{
		Status:   StatusAll,
		Priority: PriorityAll,
		Due:      DueAll,
	}
}
