package database

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/CrowderSoup/task-tracker/backend"
)

const MinPasswordLength = 6

var (
	ErrInvalidEmail = errors.New("unable to validate email address: invalid format")
	ErrWeakPassword = fmt.Errorf("password should be at least %d characters", MinPasswordLength)
)

// Claims are the access token claims. Subject is the user id.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// OnSessionChanged registers l for every session change.
func (b *Backend) OnSessionChanged(l backend.SessionListener) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = l
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

// ListenerCount returns the number of registered session listeners.
func (b *Backend) ListenerCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

// setSession stores sess as the current session and notifies listeners
// after the lock is released.
func (b *Backend) setSession(ctx context.Context, event backend.AuthEvent, sess *backend.Session) error {
	if err := b.persistSession(ctx, sess); err != nil {
		return err
	}

	b.mu.Lock()
	b.current = sess
	listeners := make([]backend.SessionListener, 0, len(b.listeners))
	for _, l := range b.listeners {
		listeners = append(listeners, l)
	}
	b.mu.Unlock()

	for _, l := range listeners {
		l(event, sess)
	}
	return nil
}

func (b *Backend) persistSession(ctx context.Context, sess *backend.Session) error {
	if sess == nil {
		if _, err := b.db.ExecContext(ctx, "DELETE FROM current_session"); err != nil {
			return fmt.Errorf("failed to clear session: %w", err)
		}
		return nil
	}
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO current_session (id, access_token) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET access_token = excluded.access_token
	`, sess.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// GetCurrentSession returns the stored session, refreshing an expired
// access token when its user still exists. The session is dropped only
// when the user is gone; other failures are returned and the session kept.
func (b *Backend) GetCurrentSession(ctx context.Context) (*backend.Session, error) {
	b.mu.Lock()
	current := b.current
	b.mu.Unlock()

	token := ""
	if current != nil {
		token = current.AccessToken
	} else {
		err := b.db.QueryRowContext(ctx, "SELECT access_token FROM current_session WHERE id = 1").Scan(&token)
		if isNoRows(err) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load session: %w", err)
		}
	}

	claims, err := b.verifyJWT(token)
	switch {
	case err == nil:
		user, err := b.userByID(ctx, claims.Subject)
		if errors.Is(err, backend.ErrNotFound) {
			return b.dropSession(ctx)
		}
		if err != nil {
			return nil, err
		}
		sess := &backend.Session{AccessToken: token, ExpiresAt: claims.ExpiresAt.Time, User: *user}
		if current == nil {
			b.mu.Lock()
			b.current = sess
			b.mu.Unlock()
		}
		return sess, nil
	case errors.Is(err, jwt.ErrTokenExpired) && claims != nil:
		user, err := b.userByID(ctx, claims.Subject)
		if errors.Is(err, backend.ErrNotFound) {
			return b.dropSession(ctx)
		}
		if err != nil {
			return nil, err
		}
		sess, err := b.newSession(*user)
		if err != nil {
			return nil, err
		}
		if err := b.setSession(ctx, backend.EventTokenRefreshed, sess); err != nil {
			return nil, err
		}
		log.Debug().Str("user", user.ID).Msg("access token refreshed")
		return sess, nil
	default:
		return b.dropSession(ctx)
	}
}

func (b *Backend) dropSession(ctx context.Context) (*backend.Session, error) {
	b.mu.Lock()
	hadSession := b.current != nil
	b.mu.Unlock()

	if !hadSession {
		return nil, b.persistSession(ctx, nil)
	}
	return nil, b.setSession(ctx, backend.EventSignedOut, nil)
}

// SignUp registers a user. With email confirmation required it returns a
// nil session and mails a confirmation link.
func (b *Backend) SignUp(ctx context.Context, email, password string) (*backend.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}
	if len(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := b.opts.Now()
	user := backend.User{ID: uuid.NewString(), Email: email, CreatedAt: now.UTC()}
	var confirmedAt any
	if !b.opts.RequireEmailConfirmation {
		confirmed := now.UTC()
		user.ConfirmedAt = &confirmed
		confirmedAt = formatTime(now)
	}

	_, err = b.db.ExecContext(ctx,
		"INSERT INTO users (id, email, password_hash, confirmed_at, created_at) VALUES (?, ?, ?, ?, ?)",
		user.ID, email, string(hash), confirmedAt, formatTime(now))
	if isUniqueViolation(err) {
		return nil, backend.ErrUserExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	if b.opts.RequireEmailConfirmation {
		if err := b.startConfirmation(ctx, user); err != nil {
			return nil, err
		}
		return nil, nil
	}

	return b.signIn(ctx, user)
}

// SignIn checks the password and starts a session.
func (b *Backend) SignIn(ctx context.Context, email, password string) (*backend.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var (
		user        backend.User
		hash        string
		confirmedAt sql.NullString
		createdAt   string
	)
	err := b.db.QueryRowContext(ctx,
		"SELECT id, email, password_hash, confirmed_at, created_at FROM users WHERE email = ?", email,
	).Scan(&user.ID, &user.Email, &hash, &confirmedAt, &createdAt)
	if isNoRows(err) {
		return nil, backend.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, backend.ErrInvalidCredentials
	}
	if !confirmedAt.Valid {
		return nil, backend.ErrEmailNotConfirmed
	}

	if err := fillUserTimes(&user, confirmedAt, createdAt); err != nil {
		return nil, err
	}
	return b.signIn(ctx, user)
}

// SignOut ends the current session. Without a session it does nothing.
func (b *Backend) SignOut(ctx context.Context) error {
	b.mu.Lock()
	hadSession := b.current != nil
	b.mu.Unlock()

	if !hadSession {
		return b.persistSession(ctx, nil)
	}
	return b.setSession(ctx, backend.EventSignedOut, nil)
}

// ConfirmEmail consumes a confirmation token and signs its user in.
func (b *Backend) ConfirmEmail(ctx context.Context, token string) (*backend.Session, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var userID string
	err = tx.QueryRowContext(ctx, "SELECT user_id FROM confirmations WHERE token = ?", token).Scan(&userID)
	if isNoRows(err) {
		return nil, backend.ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query confirmation: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM confirmations WHERE token = ?", token); err != nil {
		return nil, fmt.Errorf("failed to delete confirmation: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE users SET confirmed_at = ? WHERE id = ? AND confirmed_at IS NULL",
		formatTime(b.opts.Now()), userID); err != nil {
		return nil, fmt.Errorf("failed to confirm user: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	user, err := b.userByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return b.signIn(ctx, *user)
}

func (b *Backend) signIn(ctx context.Context, user backend.User) (*backend.Session, error) {
	sess, err := b.newSession(user)
	if err != nil {
		return nil, err
	}
	if err := b.setSession(ctx, backend.EventSignedIn, sess); err != nil {
		return nil, err
	}
	log.Info().Str("user", user.ID).Msg("signed in")
	return sess, nil
}

func (b *Backend) startConfirmation(ctx context.Context, user backend.User) error {
	token, err := generateSecureToken(32)
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}

	_, err = b.db.ExecContext(ctx,
		"INSERT INTO confirmations (token, user_id, created_at) VALUES (?, ?, ?)",
		token, user.ID, formatTime(b.opts.Now()))
	if err != nil {
		return fmt.Errorf("failed to store confirmation: %w", err)
	}

	link := fmt.Sprintf("%s/api/auth/confirm?token=%s", strings.TrimSuffix(b.opts.PublicURL, "/"), url.QueryEscape(token))
	if err := b.opts.Mailer.SendConfirmation(user.Email, link); err != nil {
		log.Warn().Err(err).Str("user", user.ID).Msg("failed to send confirmation email")
	}
	return nil
}

func (b *Backend) userByID(ctx context.Context, id string) (*backend.User, error) {
	var (
		user        backend.User
		confirmedAt sql.NullString
		createdAt   string
	)
	err := b.db.QueryRowContext(ctx,
		"SELECT id, email, confirmed_at, created_at FROM users WHERE id = ?", id,
	).Scan(&user.ID, &user.Email, &confirmedAt, &createdAt)
	if isNoRows(err) {
		return nil, backend.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	if err := fillUserTimes(&user, confirmedAt, createdAt); err != nil {
		return nil, err
	}
	return &user, nil
}

func fillUserTimes(user *backend.User, confirmedAt sql.NullString, createdAt string) error {
	created, err := parseTime(createdAt)
	if err != nil {
		return fmt.Errorf("failed to parse created_at: %w", err)
	}
	user.CreatedAt = created
	if confirmedAt.Valid {
		confirmed, err := parseTime(confirmedAt.String)
		if err != nil {
			return fmt.Errorf("failed to parse confirmed_at: %w", err)
		}
		user.ConfirmedAt = &confirmed
	}
	return nil
}

func (b *Backend) newSession(user backend.User) (*backend.Session, error) {
	now := b.opts.Now()
	expiresAt := now.Add(b.opts.SessionTTL)
	token, err := b.createJWT(user, now, expiresAt)
	if err != nil {
		return nil, err
	}
	return &backend.Session{AccessToken: token, ExpiresAt: expiresAt.UTC(), User: user}, nil
}

// createJWT generates an access token for a user
func (b *Backend) createJWT(user backend.User, issuedAt, expiresAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	tokenString, err := token.SignedString(b.opts.JWTSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// verifyJWT parses an access token. For an expired but otherwise valid
// token the claims are returned together with jwt.ErrTokenExpired.
func (b *Backend) verifyJWT(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return b.opts.JWTSecret, nil
	}, jwt.WithTimeFunc(b.opts.Now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) && claims.Subject != "" {
			return claims, err
		}
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// generateSecureToken returns a random URL-safe token of length bytes.
func generateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
