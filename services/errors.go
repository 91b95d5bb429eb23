package services

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// ErrNotAuthenticated is returned by commands that need a signed-in user
// when there is none. No remote call has been made when it is returned.
var ErrNotAuthenticated = errors.New("not authenticated")

// RemoteFailure wraps any error reported by the backend. Message is the
// backend's message, unchanged.
type RemoteFailure struct {
	Op      string
	Message string
	Err     error
}

func (e *RemoteFailure) Error() string {
	return e.Message
}

func (e *RemoteFailure) Unwrap() error {
	return e.Err
}

func remoteFailure(op string, err error) error {
	log.Warn().Err(err).Str("op", op).Msg("backend call failed")
	return &RemoteFailure{Op: op, Message: err.Error(), Err: err}
}

func decodeFailure(op string, err error) error {
	return remoteFailure(op, fmt.Errorf("unexpected response: %w", err))
}
