// Package session holds the process-wide authentication state.
//
// The state changes through exactly two paths: the result of an auth
// command (login, register, logout, confirm) and the backend's session
// change notifications. Notifications always overwrite the current session;
// a command result is only applied when no notification arrived while the
// command was in flight, so the notification stays authoritative.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/CrowderSoup/task-tracker/backend"
)

type Status string

const (
	StatusAnonymous           Status = "anonymous"
	StatusLoading             Status = "loading"
	StatusAuthenticated       Status = "authenticated"
	StatusPendingConfirmation Status = "pending_confirmation"
	StatusError               Status = "error"
)

const PendingConfirmationInfo = "Account created. Please check your email to confirm your account."

var (
	ErrAlreadyStarted = errors.New("session store already started")
	ErrClosed         = errors.New("session store closed")
	ErrUnsupported    = errors.New("backend does not support email confirmation")
)

// State is a copy of the current session state.
type State struct {
	Status  Status           `json:"status"`
	Session *backend.Session `json:"-"`
	User    *backend.User    `json:"user"`
	Error   string           `json:"error,omitempty"`
	Info    string           `json:"info,omitempty"`
}

// Authenticated reports whether a session is present.
func (s State) Authenticated() bool {
	return s.Session != nil
}

func fromSession(sess *backend.Session) State {
	if sess == nil {
		return State{Status: StatusAnonymous}
	}
	user := sess.User
	return State{Status: StatusAuthenticated, Session: sess, User: &user}
}

// Store owns the session state. All mutation is serialized by the store.
type Store struct {
	auth backend.Auth

	// notifyMu orders state changes together with their delivery to watchers.
	notifyMu sync.Mutex

	mu          sync.Mutex
	state       State
	version     uint64
	started     bool
	closed      bool
	unsubscribe func()
	watchers    map[int]func(State)
	nextWatcher int
}

func NewStore(auth backend.Auth) *Store {
	return &Store{
		auth:     auth,
		state:    State{Status: StatusLoading},
		watchers: make(map[int]func(State)),
	}
}

// Start subscribes to session changes and resolves the current session. It
// may be called once. The subscription is held until Close, even when
// resolving the current session fails.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	unsubscribe := s.auth.OnSessionChanged(s.handleChange)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		unsubscribe()
		return ErrClosed
	}
	s.unsubscribe = unsubscribe
	version := s.version
	s.mu.Unlock()

	sess, err := s.auth.GetCurrentSession(ctx)
	if err != nil {
		s.commit(version, func(st *State) {
			st.Status = StatusError
			st.Error = err.Error()
		})
		return err
	}

	s.commit(version, func(st *State) {
		*st = fromSession(sess)
	})
	return nil
}

// Close releases the backend subscription. It is safe to call more than once.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.watchers = make(map[int]func(State))
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
		log.Debug().Msg("session subscription released")
	}
}

// Current returns a copy of the state.
func (s *Store) Current() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// UserID returns the signed-in user's id.
func (s *Store) UserID() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Session == nil {
		return "", false
	}
	return s.state.Session.User.ID, true
}

// Watch calls fn after every state change until the returned cancel is
// called. fn must not issue commands on the store.
func (s *Store) Watch(fn func(State)) (cancel func()) {
	s.mu.Lock()
	id := s.nextWatcher
	s.nextWatcher++
	s.watchers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

// Login signs in with email and password.
func (s *Store) Login(ctx context.Context, email, password string) error {
	version := s.begin()

	sess, err := s.auth.SignIn(ctx, email, password)
	if err != nil {
		s.fail(err)
		return err
	}

	s.commit(version, func(st *State) {
		*st = fromSession(sess)
	})
	return nil
}

// Register creates an account. A nil session from the backend leaves the
// store in StatusPendingConfirmation, which is not an error.
func (s *Store) Register(ctx context.Context, email, password string) error {
	version := s.begin()

	sess, err := s.auth.SignUp(ctx, email, password)
	if err != nil {
		s.fail(err)
		return err
	}

	s.commit(version, func(st *State) {
		if sess == nil {
			*st = State{Status: StatusPendingConfirmation, Info: PendingConfirmationInfo}
			return
		}
		*st = fromSession(sess)
	})
	return nil
}

// Logout ends the session.
func (s *Store) Logout(ctx context.Context) error {
	version := s.begin()

	if err := s.auth.SignOut(ctx); err != nil {
		s.fail(err)
		return err
	}

	s.commit(version, func(st *State) {
		*st = State{Status: StatusAnonymous}
	})
	return nil
}

// ConfirmEmail consumes a confirmation token and signs the user in.
func (s *Store) ConfirmEmail(ctx context.Context, token string) error {
	confirmer, ok := s.auth.(backend.Confirmer)
	if !ok {
		return ErrUnsupported
	}

	version := s.begin()

	sess, err := confirmer.ConfirmEmail(ctx, token)
	if err != nil {
		s.fail(err)
		return err
	}

	s.commit(version, func(st *State) {
		*st = fromSession(sess)
	})
	return nil
}

func (s *Store) handleChange(event backend.AuthEvent, sess *backend.Session) {
	log.Debug().Str("event", string(event)).Bool("session", sess != nil).Msg("auth state changed")
	s.apply(nil, true, func(st *State) {
		*st = fromSession(sess)
	})
}

// begin marks a command as in flight and returns the version it started at.
func (s *Store) begin() uint64 {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.state.Status = StatusLoading
	s.state.Error = ""
	s.state.Info = ""
	version := s.version
	state, watchers := s.state, s.snapshotWatchers()
	s.mu.Unlock()

	deliver(state, watchers)
	return version
}

// fail records a command error. The session itself is left as it is.
func (s *Store) fail(err error) {
	s.apply(nil, false, func(st *State) {
		st.Status = StatusError
		st.Error = err.Error()
		st.Info = ""
	})
}

// commit applies a command result unless a notification arrived after version.
func (s *Store) commit(version uint64, mutate func(*State)) {
	s.apply(&version, false, mutate)
}

// apply runs mutate and delivers the result to watchers. With a non-nil
// since, mutate is skipped when a notification arrived after *since.
func (s *Store) apply(since *uint64, notification bool, mutate func(*State)) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if since != nil && s.version != *since {
		// A notification already defined the session; only settle the
		// loading indicator.
		if s.state.Status == StatusLoading {
			s.state = fromSession(s.state.Session)
		}
	} else {
		mutate(&s.state)
	}
	if notification {
		s.version++
	}
	state, watchers := s.state, s.snapshotWatchers()
	s.mu.Unlock()

	deliver(state, watchers)
}

func (s *Store) snapshotWatchers() []func(State) {
	out := make([]func(State), 0, len(s.watchers))
	for _, fn := range s.watchers {
		out = append(out, fn)
	}
	return out
}

func deliver(state State, watchers []func(State)) {
	for _, fn := range watchers {
		fn(state)
	}
}
