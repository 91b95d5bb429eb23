// Package stats derives the dashboard figures from an in-memory snapshot of
// tasks and goals. Everything here is pure: the same input and "today"
// always give the same Dashboard.
package stats

import (
	"sort"

	"cloud.google.com/go/civil"

	"github.com/CrowderSoup/task-tracker/models"
)

const (
	// FocusLimit caps the focus list.
	FocusLimit = 6
	// UpcomingDays is the number of daily buckets starting today.
	UpcomingDays = 7
	// DueSoonDays is the inclusive window after today counted by DueNext7.
	DueSoonDays = 7

	UnknownGoal = "Unknown goal"
)

type DayCount struct {
	Date  civil.Date `json:"date"`
	Count int        `json:"count"`
}

type GoalProgress struct {
	GoalID    string `json:"goalId"`
	Name      string `json:"name"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Pct       int    `json:"pct"`
}

type Dashboard struct {
	Today civil.Date `json:"today"`

	Total      int `json:"total"`
	Todo       int `json:"todo"`
	InProgress int `json:"inProgress"`
	Completed  int `json:"completed"`

	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`

	CompletionRate int `json:"completionRate"`

	Overdue   int `json:"overdue"`
	DueToday  int `json:"dueToday"`
	DueNext7  int `json:"dueNext7"`
	NoDueDate int `json:"noDueDate"`

	Upcoming []DayCount     `json:"upcoming"`
	Goals    []GoalProgress `json:"goals"`
	Focus    []models.Task  `json:"focus"`
}

// IsOverdue reports whether t is past due and still open.
func IsOverdue(t models.Task, today civil.Date) bool {
	return t.DueDate != nil && t.DueDate.Before(today) && t.Status != models.StatusCompleted
}

// IsDueToday reports whether t is due on today.
func IsDueToday(t models.Task, today civil.Date) bool {
	return t.DueDate != nil && *t.DueDate == today
}

// IsDueWithin reports whether t is due between today and today+days inclusive.
func IsDueWithin(t models.Task, today civil.Date, days int) bool {
	if t.DueDate == nil {
		return false
	}
	return !t.DueDate.Before(today) && !t.DueDate.After(today.AddDays(days))
}

// Compute aggregates tasks. goals only resolve names; today is fixed for the
// whole pass.
func Compute(tasks []models.Task, goals []models.GoalOption, today civil.Date) Dashboard {
	d := Dashboard{
		Today:    today,
		Total:    len(tasks),
		Upcoming: make([]DayCount, UpcomingDays),
		Goals:    []GoalProgress{},
		Focus:    []models.Task{},
	}

	for i := range d.Upcoming {
		d.Upcoming[i].Date = today.AddDays(i)
	}

	names := make(map[string]string, len(goals))
	for _, g := range goals {
		names[g.ID] = g.Name
	}

	progress := make(map[string]*models.GoalProgress)
	order := []string{}

	for _, t := range tasks {
		switch t.Status {
		case models.StatusTodo:
			d.Todo++
		case models.StatusInProgress:
			d.InProgress++
		case models.StatusCompleted:
			d.Completed++
		}

		switch t.Priority {
		case models.PriorityLow:
			d.Low++
		case models.PriorityMedium:
			d.Medium++
		case models.PriorityHigh:
			d.High++
		}

		overdue := IsOverdue(t, today)
		dueToday := IsDueToday(t, today)
		if overdue {
			d.Overdue++
		}
		if dueToday {
			d.DueToday++
		}
		if IsDueWithin(t, today, DueSoonDays) {
			d.DueNext7++
		}
		if t.DueDate == nil {
			d.NoDueDate++
		} else if offset := t.DueDate.DaysSince(today); offset >= 0 && offset < UpcomingDays {
			d.Upcoming[offset].Count++
		}

		if (overdue || dueToday) && t.Status != models.StatusCompleted {
			d.Focus = append(d.Focus, t)
		}

		if t.GoalID != nil {
			p, ok := progress[*t.GoalID]
			if !ok {
				p = &models.GoalProgress{GoalID: *t.GoalID}
				progress[*t.GoalID] = p
				order = append(order, *t.GoalID)
			}
			p.Total++
			if t.Status == models.StatusCompleted {
				p.Completed++
			}
		}
	}

	d.CompletionRate = models.Percent(d.Completed, d.Total)

	for _, id := range order {
		p := progress[id]
		name, ok := names[id]
		if !ok {
			name = UnknownGoal
		}
		d.Goals = append(d.Goals, GoalProgress{
			GoalID:    id,
			Name:      name,
			Total:     p.Total,
			Completed: p.Completed,
			Pct:       p.Pct(),
		})
	}
	sort.SliceStable(d.Goals, func(i, j int) bool {
		return d.Goals[i].Pct > d.Goals[j].Pct
	})

	SortByDueDate(d.Focus)
	if len(d.Focus) > FocusLimit {
		d.Focus = d.Focus[:FocusLimit]
	}

	return d
}

// SortByDueDate orders tasks by ascending due date, undated tasks last. The
// sort is stable.
func SortByDueDate(tasks []models.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i].DueDate, tasks[j].DueDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.Before(*b)
	})
}
