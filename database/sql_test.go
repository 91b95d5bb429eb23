package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CrowderSoup/task-tracker/backend"
)

func TestWhereClause(t *testing.T) {
	tasks := tables[backend.TableTasks]

	where, args, err := tasks.whereClause([]backend.Predicate{
		{Field: "status", Op: backend.OpEq, Value: "todo"},
		{Field: "due_date", Op: backend.OpNotNull},
		{Field: "due_date", Op: backend.OpLt, Value: "2024-05-15"},
		{Op: backend.OpOr, Any: []backend.Predicate{
			{Field: "title", Op: backend.OpILike, Value: "%milk%"},
			{Field: "description", Op: backend.OpILike, Value: "%milk%"},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t,
		`status = ? AND due_date IS NOT NULL AND due_date < ? AND (lower(title) LIKE lower(?) ESCAPE '\' OR lower(description) LIKE lower(?) ESCAPE '\')`,
		where)
	assert.Equal(t, []any{"todo", "2024-05-15", "%milk%", "%milk%"}, args)
}

func TestWhereClauseRejectsUnknownColumn(t *testing.T) {
	_, _, err := tables[backend.TableGoals].whereClause([]backend.Predicate{
		{Field: "password_hash", Op: backend.OpEq, Value: "x"},
	})
	assert.EqualError(t, err, `column "password_hash" does not exist on goals`)

	_, _, err = tables[backend.TableGoals].whereClause([]backend.Predicate{{Op: backend.OpOr}})
	assert.Error(t, err)
}

func TestOrderClause(t *testing.T) {
	tasks := tables[backend.TableTasks]

	order, err := tasks.orderClause(backend.CreatedDesc)
	require.NoError(t, err)
	assert.Equal(t, "ORDER BY created_at DESC, rowid DESC", order)

	order, err = tasks.orderClause(backend.Order{Column: "due_date", Ascending: true})
	require.NoError(t, err)
	assert.Equal(t, "ORDER BY due_date ASC, rowid ASC", order)

	_, err = tasks.orderClause(backend.Order{Column: "nope"})
	assert.Error(t, err)
}

func mockBackend(t *testing.T) (*Backend, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	b := New(db, Options{
		JWTSecret: []byte("test"),
		Now:       func() time.Time { return time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC) },
	})
	b.current = &backend.Session{User: backend.User{ID: "u1"}}
	return b, mock
}

func TestQueryScopesToUser(t *testing.T) {
	b, mock := mockBackend(t)

	rows := sqlmock.NewRows(tables[backend.TableTasks].columns).
		AddRow("t1", "u1", "Buy milk", nil, "2024-05-16", "high", "todo", nil, "2024-05-01T09:00:00.000000Z", "2024-05-01T09:00:00.000000Z")

	mock.ExpectQuery("SELECT id, user_id, title, description, due_date, priority, status, goal_id, created_at, updated_at FROM tasks WHERE user_id = ? AND priority = ? ORDER BY created_at DESC, rowid DESC").
		WithArgs("u1", "high").
		WillReturnRows(rows)

	recs, err := b.Query(context.Background(), backend.TableTasks,
		[]backend.Predicate{{Field: "priority", Op: backend.OpEq, Value: "high"}}, backend.CreatedDesc)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	assert.Equal(t, "Buy milk", recs[0]["title"])
	assert.Nil(t, recs[0]["description"])
	assert.Equal(t, "2024-05-16", recs[0]["due_date"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMissingRow(t *testing.T) {
	b, mock := mockBackend(t)

	mock.ExpectExec("UPDATE goals SET updated_at = ?, name = ? WHERE id = ? AND user_id = ?").
		WithArgs("2024-05-15T10:00:00.000000Z", "Run", "g1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := b.Update(context.Background(), backend.TableGoals, "g1", backend.Record{"name": "Run"})
	assert.ErrorIs(t, err, backend.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRejectsOwnerColumn(t *testing.T) {
	b, mock := mockBackend(t)

	_, err := b.Update(context.Background(), backend.TableTasks, "t1", backend.Record{"user_id": "u2"})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRequiresSession(t *testing.T) {
	b, mock := mockBackend(t)
	b.current = nil

	_, err := b.Query(context.Background(), backend.TableTasks, nil, backend.CreatedDesc)
	assert.ErrorIs(t, err, backend.ErrRowLevelSecurity)

	_, err = b.Insert(context.Background(), backend.TableTasks, backend.Record{"title": "x"})
	assert.ErrorIs(t, err, backend.ErrRowLevelSecurity)

	assert.NoError(t, mock.ExpectationsWereMet())
}

const userQuery = "SELECT id, email, confirmed_at, created_at FROM users WHERE id = ?"

func sessionWithToken(t *testing.T, b *Backend) *backend.Session {
	now := b.opts.Now()
	token, err := b.createJWT(b.current.User, now, now.Add(time.Hour))
	require.NoError(t, err)
	b.current.AccessToken = token
	return b.current
}

func TestGetCurrentSessionKeepsSessionOnQueryError(t *testing.T) {
	b, mock := mockBackend(t)
	sess := sessionWithToken(t, b)

	var events []backend.AuthEvent
	b.OnSessionChanged(func(event backend.AuthEvent, _ *backend.Session) {
		events = append(events, event)
	})

	mock.ExpectQuery(userQuery).WithArgs("u1").WillReturnError(errors.New("database is locked"))

	got, err := b.GetCurrentSession(context.Background())
	assert.ErrorContains(t, err, "database is locked")
	assert.Nil(t, got)
	assert.Empty(t, events)
	assert.Same(t, sess, b.current)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCurrentSessionDropsMissingUser(t *testing.T) {
	b, mock := mockBackend(t)
	sessionWithToken(t, b)

	var events []backend.AuthEvent
	b.OnSessionChanged(func(event backend.AuthEvent, _ *backend.Session) {
		events = append(events, event)
	})

	mock.ExpectQuery(userQuery).WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "confirmed_at", "created_at"}))
	mock.ExpectExec("DELETE FROM current_session").WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := b.GetCurrentSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, []backend.AuthEvent{backend.EventSignedOut}, events)
	assert.Nil(t, b.current)
	require.NoError(t, mock.ExpectationsWereMet())
}
