package filters

import (
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/CrowderSoup/task-tracker/models"
)

// Sync keeps the filter state and the URL query in step. A URL change
// adopts its filters and records their canonical query, so the filters->URL
// reaction that follows finds nothing to write. A filter change writes the
// URL only when the serialized form differs from the current one.
type Sync struct {
	mu      sync.Mutex
	filters models.TaskFilters
	query   string
}

func NewSync() *Sync {
	return &Sync{filters: models.DefaultFilters()}
}

// Filters returns the current normalized filters.
func (s *Sync) Filters() models.TaskFilters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters
}

// Query returns the canonical serialized form of the current URL.
func (s *Sync) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// FromURL handles a URL change. It reports whether the filters changed.
func (s *Sync) FromURL(q url.Values) (models.TaskFilters, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := FromQuery(q)
	changed := !Equal(s.filters, f)
	s.filters = f
	s.query = ToQuery(f).Encode()
	return s.filters, changed
}

// Set handles a filter change. It returns the query to write and true when
// the URL needs updating.
func (s *Sync) Set(f models.TaskFilters) (url.Values, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.filters = Normalize(f)
	next := ToQuery(s.filters)
	if encoded := next.Encode(); encoded != s.query {
		s.query = encoded
		return next, true
	}
	return nil, false
}

// Sequencer numbers loads so that only the response of the most recently
// started load is applied.
type Sequencer struct {
	last atomic.Uint64
}

// Next starts a load and returns its id.
func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// IsLatest reports whether no load has started after id.
func (s *Sequencer) IsLatest(id uint64) bool {
	return s.last.Load() == id
}
