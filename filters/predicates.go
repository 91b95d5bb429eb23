package filters

import (
	"strings"

	"cloud.google.com/go/civil"

	"github.com/CrowderSoup/task-tracker/backend"
	"github.com/CrowderSoup/task-tracker/models"
)

// ThisWeekDays is the length of the this_week window after today.
const ThisWeekDays = 7

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// LikePattern wraps s for a substring match, escaping LIKE wildcards with a backslash.
func LikePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// Build translates f into backend predicates. today is the caller's local
// calendar date and is only consulted by the due buckets.
func Build(f models.TaskFilters, today civil.Date) []backend.Predicate {
	f = Normalize(f)
	preds := []backend.Predicate{}

	if f.Status != models.StatusAll {
		preds = append(preds, backend.Predicate{Field: "status", Op: backend.OpEq, Value: string(f.Status)})
	}
	if f.Priority != models.PriorityAll {
		preds = append(preds, backend.Predicate{Field: "priority", Op: backend.OpEq, Value: string(f.Priority)})
	}
	if f.GoalID != nil {
		preds = append(preds, backend.Predicate{Field: "goal_id", Op: backend.OpEq, Value: *f.GoalID})
	}

	todayStr := today.String()
	switch f.Due {
	case models.DueOverdue:
		preds = append(preds,
			backend.Predicate{Field: "due_date", Op: backend.OpNotNull},
			backend.Predicate{Field: "due_date", Op: backend.OpLt, Value: todayStr},
			backend.Predicate{Field: "status", Op: backend.OpNeq, Value: string(models.StatusCompleted)},
		)
	case models.DueToday:
		preds = append(preds, backend.Predicate{Field: "due_date", Op: backend.OpEq, Value: todayStr})
	case models.DueThisWeek:
		preds = append(preds,
			backend.Predicate{Field: "due_date", Op: backend.OpNotNull},
			backend.Predicate{Field: "due_date", Op: backend.OpGte, Value: todayStr},
			backend.Predicate{Field: "due_date", Op: backend.OpLte, Value: today.AddDays(ThisWeekDays).String()},
		)
	case models.DueNoDueDate:
		preds = append(preds, backend.Predicate{Field: "due_date", Op: backend.OpIsNull})
	}

	if f.Search != "" {
		pattern := LikePattern(f.Search)
		preds = append(preds, backend.Predicate{
			Op: backend.OpOr,
			Any: []backend.Predicate{
				{Field: "title", Op: backend.OpILike, Value: pattern},
				{Field: "description", Op: backend.OpILike, Value: pattern},
			},
		})
	}

	return preds
}
