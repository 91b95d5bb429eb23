package services_test

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/CrowderSoup/task-tracker/backend"
)

// memStore is an in-memory backend.Store. Deleting a goal leaves its tasks
// untouched, like a backend without referential actions.
type memStore struct {
	mu     sync.Mutex
	tables map[string][]backend.Record
	nextID int
	now    time.Time
	calls  int
	err    error
}

func newMemStore() *memStore {
	return &memStore{
		tables: map[string][]backend.Record{},
		now:    time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func copyRecord(rec backend.Record) backend.Record {
	out := make(backend.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

func (s *memStore) Query(_ context.Context, table string, preds []backend.Predicate, order backend.Order) ([]backend.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}

	out := []backend.Record{}
	for _, rec := range s.tables[table] {
		if matchAll(rec, preds) {
			out = append(out, copyRecord(rec))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := fmt.Sprint(out[i][order.Column]), fmt.Sprint(out[j][order.Column])
		if order.Ascending {
			return a < b
		}
		return a > b
	})
	return out, nil
}

func (s *memStore) Insert(_ context.Context, table string, rec backend.Record) (backend.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}

	s.nextID++
	s.now = s.now.Add(time.Minute)
	row := copyRecord(rec)
	row["id"] = fmt.Sprintf("%s-%d", table, s.nextID)
	row["created_at"] = s.now.Format(time.RFC3339)
	row["updated_at"] = s.now.Format(time.RFC3339)
	s.tables[table] = append(s.tables[table], row)
	return copyRecord(row), nil
}

func (s *memStore) Update(_ context.Context, table, id string, patch backend.Record) (backend.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}

	for _, row := range s.tables[table] {
		if row["id"] == id {
			for k, v := range patch {
				row[k] = v
			}
			return copyRecord(row), nil
		}
	}
	return nil, backend.ErrNotFound
}

func (s *memStore) Delete(_ context.Context, table, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return s.err
	}

	rows := s.tables[table]
	for i, row := range rows {
		if row["id"] == id {
			s.tables[table] = append(rows[:i], rows[i+1:]...)
			return nil
		}
	}
	return backend.ErrNotFound
}

func (s *memStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func matchAll(rec backend.Record, preds []backend.Predicate) bool {
	for _, p := range preds {
		if !match(rec, p) {
			return false
		}
	}
	return true
}

func match(rec backend.Record, p backend.Predicate) bool {
	if p.Op == backend.OpOr {
		for _, sub := range p.Any {
			if match(rec, sub) {
				return true
			}
		}
		return false
	}

	v, ok := rec[p.Field]
	isNull := !ok || v == nil
	switch p.Op {
	case backend.OpIsNull:
		return isNull
	case backend.OpNotNull:
		return !isNull
	}
	if isNull {
		return false
	}

	got, want := fmt.Sprint(v), fmt.Sprint(p.Value)
	switch p.Op {
	case backend.OpEq:
		return got == want
	case backend.OpNeq:
		return got != want
	case backend.OpLt:
		return got < want
	case backend.OpLte:
		return got <= want
	case backend.OpGt:
		return got > want
	case backend.OpGte:
		return got >= want
	case backend.OpILike:
		needle := strings.Trim(want, "%")
		needle = strings.NewReplacer(`\%`, `%`, `\_`, `_`, `\\`, `\`).Replace(needle)
		return strings.Contains(strings.ToLower(got), strings.ToLower(needle))
	}
	return false
}

type identity struct {
	userID string
}

func (i identity) UserID() (string, bool) {
	return i.userID, i.userID != ""
}
