package domain

import (
	"errors"
	"time"
)

// Common domain errors
var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInsufficientSpace = errors.New("insufficient space")

	// Transfer error kinds
	ErrNetwork        = errors.New("network error")
	ErrRemoteRejected = errors.New("remote rejected request")
	ErrFilesystem     = errors.New("filesystem error")
	ErrCanceled       = errors.New("transfer canceled")

	// Integrity errors
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// Download journal errors
	ErrJobNotFound       = errors.New("download job not found")
	ErrJobAlreadyClaimed = errors.New("download job is already claimed by another owner")
	ErrJobDeferred       = errors.New("download job is waiting out its retry backoff")

	// Session errors
	ErrNotLoggedIn = errors.New("not logged in")
	ErrAuthFailed  = errors.New("authentication failed")
)

// RetryableError represents an error that should trigger a retry.
type RetryableError struct {
	Err        error
	RetryAfter time.Duration
}

// Error returns the error message
func (e *RetryableError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return "retryable error"
}

// Unwrap returns the underlying error
func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error, retryAfter time.Duration) *RetryableError {
	return &RetryableError{Err: err, RetryAfter: retryAfter}
}

// IsRetryable returns true if the error should be retried
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// GetRetryAfter returns the retry duration if the error is retryable
func GetRetryAfter(err error) (time.Duration, bool) {
	var re *RetryableError
	if errors.As(err, &re) {
		return re.RetryAfter, true
	}
	return 0, false
}

// PermanentError marks a failure that will not go away by trying again,
// such as a 404 from the file endpoint or an unwritable install directory.
type PermanentError struct {
	Err    error
	Reason string
}

// Error returns the error message
func (e *PermanentError) Error() string {
	if e.Reason != "" {
		if e.Err != nil {
			return e.Reason + ": " + e.Err.Error()
		}
		return e.Reason
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "permanent error"
}

// Unwrap returns the underlying error
func (e *PermanentError) Unwrap() error {
	return e.Err
}

// NewPermanentError creates a new permanent error
func NewPermanentError(err error, reason string) *PermanentError {
	return &PermanentError{Err: err, Reason: reason}
}

// IsPermanent returns true if retrying cannot help
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
