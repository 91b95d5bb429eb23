// Package backend describes the hosted data and auth service the application
// talks to. Implementations own persistence, authentication and row-level
// authorization; callers only see records, predicates and sessions.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound           = errors.New("no rows found")
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrEmailNotConfirmed  = errors.New("email not confirmed")
	ErrUserExists         = errors.New("user already registered")
	ErrRowLevelSecurity   = errors.New("new row violates row-level security policy")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Tables known to every backend.
const (
	TableTasks = "tasks"
	TableGoals = "goals"
)

// Record is one row as exchanged with the backend.
type Record map[string]any

type Operator string

const (
	OpEq      Operator = "eq"
	OpNeq     Operator = "neq"
	OpLt      Operator = "lt"
	OpLte     Operator = "lte"
	OpGt      Operator = "gt"
	OpGte     Operator = "gte"
	OpIsNull  Operator = "is_null"
	OpNotNull Operator = "not_null"
	// OpILike is a case-insensitive LIKE; Value holds the pattern.
	OpILike Operator = "ilike"
	// OpOr matches when any predicate in Any matches.
	OpOr Operator = "or"
)

// Predicate is a single {field, operator, value} condition. Predicates in a
// list are combined with AND.
type Predicate struct {
	Field string      `json:"field,omitempty"`
	Op    Operator    `json:"op"`
	Value any         `json:"value,omitempty"`
	Any   []Predicate `json:"any,omitempty"`
}

func (p Predicate) String() string {
	switch p.Op {
	case OpIsNull, OpNotNull:
		return fmt.Sprintf("%s.%s", p.Field, p.Op)
	case OpOr:
		return fmt.Sprintf("or%v", p.Any)
	}
	return fmt.Sprintf("%s.%s.%v", p.Field, p.Op, p.Value)
}

type Order struct {
	Column    string
	Ascending bool
}

// CreatedDesc is the list order used throughout the application.
var CreatedDesc = Order{Column: "created_at"}

// Store is the query/command side of the backend.
type Store interface {
	Query(ctx context.Context, table string, preds []Predicate, order Order) ([]Record, error)
	Insert(ctx context.Context, table string, rec Record) (Record, error)
	Update(ctx context.Context, table, id string, patch Record) (Record, error)
	Delete(ctx context.Context, table, id string) error
}

type User struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type Session struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        User      `json:"user"`
}

type AuthEvent string

const (
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
)

// SessionListener receives every session change. A nil session means signed out.
type SessionListener func(event AuthEvent, session *Session)

// Auth is the authentication side of the backend.
type Auth interface {
	GetCurrentSession(ctx context.Context) (*Session, error)
	// OnSessionChanged registers l and returns a function that removes it.
	// The returned function is safe to call more than once.
	OnSessionChanged(l SessionListener) (unsubscribe func())
	// SignUp returns a nil session when the account awaits email confirmation.
	SignUp(ctx context.Context, email, password string) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context) error
}

// Confirmer is implemented by backends that confirm accounts through a
// one-time token sent by email.
type Confirmer interface {
	ConfirmEmail(ctx context.Context, token string) (*Session, error)
}

type Backend interface {
	Store
	Auth
}

// Encode converts v to a Record through its JSON form.
func Encode(v any) (Record, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return rec, nil
}

// Decode fills out from rec through its JSON form.
func Decode(rec Record, out any) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return nil
}

// DecodeAll decodes every record into a new slice of T.
func DecodeAll[T any](recs []Record) ([]T, error) {
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		var v T
		if err := Decode(rec, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
