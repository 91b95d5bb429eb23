package filters

import (
	"context"
	"net/url"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/CrowderSoup/task-tracker/models"
)

// TaskLister loads the tasks matching a filter state.
type TaskLister interface {
	List(ctx context.Context, f models.TaskFilters) ([]models.Task, error)
}

// Snapshot is what the tasks page renders.
type Snapshot struct {
	Filters    models.TaskFilters `json:"filters"`
	Query      string             `json:"query"`
	HasFilters bool               `json:"hasFilters"`
	Tasks      []models.Task      `json:"tasks"`
	Loading    bool               `json:"loading"`
	Error      string             `json:"error,omitempty"`
}

// TasksView is the tasks page state: the synced filters and the rows of the
// latest completed load.
type TasksView struct {
	lister TaskLister
	sync   *Sync
	seq    Sequencer

	mu      sync.RWMutex
	tasks   []models.Task
	loading bool
	err     string
}

func NewTasksView(lister TaskLister) *TasksView {
	return &TasksView{
		lister: lister,
		sync:   NewSync(),
		tasks:  []models.Task{},
	}
}

// Navigate applies a URL query and reloads. Rows are always fetched again so
// that writes made since the last load, and failed loads, are picked up.
func (v *TasksView) Navigate(ctx context.Context, q url.Values) (Snapshot, error) {
	v.sync.FromURL(q)
	return v.Load(ctx)
}

// SetFilters applies a filter change and reloads. The returned query is
// non-nil only when the URL must be rewritten.
func (v *TasksView) SetFilters(ctx context.Context, f models.TaskFilters) (url.Values, Snapshot, error) {
	next, write := v.sync.Set(f)
	if !write {
		next = nil
	}
	snap, err := v.Load(ctx)
	return next, snap, err
}

// Load fetches the rows for the current filters. A response that has been
// overtaken by a later load is discarded.
func (v *TasksView) Load(ctx context.Context) (Snapshot, error) {
	id := v.seq.Next()
	f := v.sync.Filters()

	v.mu.Lock()
	v.loading = true
	v.mu.Unlock()

	tasks, err := v.lister.List(ctx, f)

	if !v.seq.IsLatest(id) {
		log.Debug().Uint64("load", id).Err(err).Msg("discarding stale tasks load")
		return v.Snapshot(), nil
	}

	v.mu.Lock()
	v.loading = false
	if err != nil {
		v.err = err.Error()
	} else {
		v.err = ""
		v.tasks = tasks
	}
	v.mu.Unlock()

	return v.Snapshot(), err
}

func (v *TasksView) Snapshot() Snapshot {
	f := v.sync.Filters()

	v.mu.RLock()
	defer v.mu.RUnlock()

	return Snapshot{
		Filters:    f,
		Query:      ToQuery(f).Encode(),
		HasFilters: HasFilters(f),
		Tasks:      v.tasks,
		Loading:    v.loading,
		Error:      v.err,
	}
}

// Reset drops loaded rows and discards any load in flight. It runs whenever
// the signed-in user changes.
func (v *TasksView) Reset() {
	v.seq.Next()

	v.mu.Lock()
	defer v.mu.Unlock()
	v.tasks = []models.Task{}
	v.loading = false
	v.err = ""
}
