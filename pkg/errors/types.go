package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	// ErrAdapterUnavailable marks a classifier without credentials. Permanent; callers skip it.
	ErrAdapterUnavailable = stderrors.New("classifier adapter unavailable")
	// ErrConflict is returned when a versioned write lost a race.
	ErrConflict = stderrors.New("concurrent update conflict")
	// ErrValidation rejects input before any moderation runs.
	ErrValidation = stderrors.New("validation failed")
	// ErrUserNotFound is returned by user stores for unknown ids.
	ErrUserNotFound = stderrors.New("user not found")
	// ErrUserBanned rejects submissions from a user whose ban is still active.
	ErrUserBanned = stderrors.New("user is temporarily banned")
	// ErrNotFound is returned for unknown feedback or notification ids.
	ErrNotFound = stderrors.New("not found")
)

// TransientError wraps a failed classifier call (timeout or transport failure).
// It triggers the fallback adapter and is never surfaced to end users.
type TransientError struct {
	Provider string
	Timeout  bool
	Err      error
}

func (e *TransientError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: classifier timeout: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: classifier failure: %v", e.Provider, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is (or wraps) a TransientError
func IsTransient(err error) bool {
	var te *TransientError
	return stderrors.As(err, &te)
}

// Is and As re-export the standard helpers so callers importing this
// package under the name "errors" keep them at hand.
func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }

// New re-exports errors.New
func New(text string) error { return stderrors.New(text) }
