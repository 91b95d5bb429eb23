package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/CrowderSoup/task-tracker/backend"
)

// Options configure a Backend.
type Options struct {
	JWTSecret                []byte
	SessionTTL               time.Duration
	RequireEmailConfirmation bool
	// PublicURL is the base of confirmation links, e.g. http://localhost:3001.
	PublicURL string
	Mailer    Mailer
	Now       func() time.Time
}

// Backend is a self-contained backend.Backend on top of sqlite. Rows are
// always scoped to the signed-in user.
type Backend struct {
	db   *sql.DB
	opts Options

	mu        sync.Mutex
	current   *backend.Session
	listeners map[int]backend.SessionListener
	nextID    int
}

var _ backend.Backend = (*Backend)(nil)
var _ backend.Confirmer = (*Backend)(nil)

// New wraps a database opened with InitDB.
func New(db *sql.DB, opts Options) *Backend {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 7 * 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Mailer == nil {
		opts.Mailer = LogMailer{}
	}
	return &Backend{
		db:        db,
		opts:      opts,
		listeners: make(map[int]backend.SessionListener),
	}
}

func (b *Backend) sessionUserID() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return "", backend.ErrRowLevelSecurity
	}
	return b.current.User.ID, nil
}

// Query returns the signed-in user's rows of table matching every predicate.
func (b *Backend) Query(ctx context.Context, tableName string, preds []backend.Predicate, order backend.Order) ([]backend.Record, error) {
	t, err := lookupTable(tableName)
	if err != nil {
		return nil, err
	}
	userID, err := b.sessionUserID()
	if err != nil {
		return nil, err
	}

	where, args, err := t.whereClause(preds)
	if err != nil {
		return nil, err
	}
	orderBy, err := t.orderClause(order)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE user_id = ?", t.selectList(), t.name)
	if where != "" {
		query += " AND " + where
	}
	query += " " + orderBy

	rows, err := b.db.QueryContext(ctx, query, append([]any{userID}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", t.name, err)
	}
	defer rows.Close()

	recs := []backend.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows, t.columns)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", t.name, err)
	}
	return recs, nil
}

// Insert stores rec for the signed-in user and returns the stored row.
func (b *Backend) Insert(ctx context.Context, tableName string, rec backend.Record) (backend.Record, error) {
	t, err := lookupTable(tableName)
	if err != nil {
		return nil, err
	}
	userID, err := b.sessionUserID()
	if err != nil {
		return nil, err
	}
	if owner, ok := rec["user_id"]; ok && owner != userID {
		return nil, backend.ErrRowLevelSecurity
	}

	now := formatTime(b.opts.Now())
	cols := []string{"id", "user_id", "created_at", "updated_at"}
	args := []any{uuid.NewString(), userID, now, now}

	for _, col := range sortedKeys(rec) {
		v := rec[col]
		if col == "user_id" {
			continue
		}
		if !t.writable[col] {
			return nil, fmt.Errorf("column %q of %s is not writable", col, t.name)
		}
		val, err := columnValue(col, v)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
		args = append(args, val)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.name, strings.Join(cols, ", "), placeholders)
	if _, err := b.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to insert into %s: %w", t.name, err)
	}

	return b.fetch(ctx, t, args[0].(string), userID)
}

// Update writes only the columns present in patch.
func (b *Backend) Update(ctx context.Context, tableName, id string, patch backend.Record) (backend.Record, error) {
	t, err := lookupTable(tableName)
	if err != nil {
		return nil, err
	}
	userID, err := b.sessionUserID()
	if err != nil {
		return nil, err
	}

	sets := []string{"updated_at = ?"}
	args := []any{formatTime(b.opts.Now())}
	for _, col := range sortedKeys(patch) {
		v := patch[col]
		if !t.writable[col] {
			return nil, fmt.Errorf("column %q of %s is not writable", col, t.name)
		}
		val, err := columnValue(col, v)
		if err != nil {
			return nil, err
		}
		sets = append(sets, col+" = ?")
		args = append(args, val)
	}
	args = append(args, id, userID)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ? AND user_id = ?", t.name, strings.Join(sets, ", "))
	res, err := b.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update %s: %w", t.name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, backend.ErrNotFound
	}

	return b.fetch(ctx, t, id, userID)
}

// Delete removes a row. Deleting a goal detaches its tasks.
func (b *Backend) Delete(ctx context.Context, tableName, id string) error {
	t, err := lookupTable(tableName)
	if err != nil {
		return err
	}
	userID, err := b.sessionUserID()
	if err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id = ? AND user_id = ?", t.name)
	res, err := b.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", t.name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return backend.ErrNotFound
	}
	return nil
}

func (b *Backend) fetch(ctx context.Context, t table, id, userID string) (backend.Record, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ? AND user_id = ?", t.selectList(), t.name)
	rows, err := b.db.QueryContext(ctx, query, id, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", t.name, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to query %s: %w", t.name, err)
		}
		return nil, backend.ErrNotFound
	}
	return scanRecord(rows, t.columns)
}

func scanRecord(rows *sql.Rows, columns []string) (backend.Record, error) {
	values := make([]sql.NullString, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	rec := make(backend.Record, len(columns))
	for i, col := range columns {
		if values[i].Valid {
			rec[col] = values[i].String
		} else {
			rec[col] = nil
		}
	}
	return rec, nil
}

func sortedKeys(rec backend.Record) []string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
