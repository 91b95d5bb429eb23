// Package filters maps the tasks list filter state to and from URL query
// strings and to backend predicates.
package filters

import (
	"net/url"
	"strings"

	"github.com/CrowderSoup/task-tracker/models"
)

// URL query keys.
const (
	KeyStatus   = "status"
	KeyPriority = "priority"
	KeyDue      = "due"
	KeySearch   = "search"
	KeyGoalID   = "goalId"
)

// Normalize replaces unknown or empty values with their defaults so that
// equal filter states compare equal.
func Normalize(f models.TaskFilters) models.TaskFilters {
	out := models.DefaultFilters()
	if f.Status.Valid() {
		out.Status = f.Status
	}
	if f.Priority.Valid() {
		out.Priority = f.Priority
	}
	if f.Due.Valid() {
		out.Due = f.Due
	}
	out.Search = strings.TrimSpace(f.Search)
	out.GoalID = models.NullIfBlank(f.GoalID)
	return out
}

// HasFilters reports whether any filter narrows the list.
func HasFilters(f models.TaskFilters) bool {
	return len(ToQuery(f)) > 0
}

// ToQuery writes the non-default filters. Keys holding a default value are omitted.
func ToQuery(f models.TaskFilters) url.Values {
	f = Normalize(f)
	q := url.Values{}
	if f.Status != models.StatusAll {
		q.Set(KeyStatus, string(f.Status))
	}
	if f.Priority != models.PriorityAll {
		q.Set(KeyPriority, string(f.Priority))
	}
	if f.Due != models.DueAll {
		q.Set(KeyDue, string(f.Due))
	}
	if f.Search != "" {
		q.Set(KeySearch, f.Search)
	}
	if f.GoalID != nil {
		q.Set(KeyGoalID, *f.GoalID)
	}
	return q
}

// FromQuery reads filters from q. Unknown or invalid values fall back to the
// field default; it never fails.
func FromQuery(q url.Values) models.TaskFilters {
	f := models.TaskFilters{
		Status:   models.TaskStatus(q.Get(KeyStatus)),
		Priority: models.TaskPriority(q.Get(KeyPriority)),
		Due:      models.DueFilter(q.Get(KeyDue)),
		Search:   q.Get(KeySearch),
	}
	if id := q.Get(KeyGoalID); id != "" {
		f.GoalID = &id
	}
	return Normalize(f)
}

// Equal compares two filter states after normalization.
func Equal(a, b models.TaskFilters) bool {
	return ToQuery(a).Encode() == ToQuery(b).Encode()
}
