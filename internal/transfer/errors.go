package transfer

import (
	"errors"
	"fmt"

	"github.com/remakesof/launcher/internal/domain"
)

// maxErrBodySize caps how much of a rejected response body is kept for
// diagnostics.
const maxErrBodySize = 4 << 10 // 4KB

var (
	// ErrOffsetMismatch means the partial file on disk does not hold exactly
	// resumeOffset bytes.
	ErrOffsetMismatch = errors.New("partial file size does not match resume offset")
	// ErrRangeMismatch means the server answered a range request with a
	// different range than the one asked for.
	ErrRangeMismatch = errors.New("server returned a different range")
	// ErrIncompleteBody means the stream ended before Content-Length bytes arrived.
	ErrIncompleteBody = errors.New("response body ended early")
)

// Error describes a failed transfer step. Kind is one of domain.ErrNetwork,
// domain.ErrFilesystem, domain.ErrRemoteRejected, domain.ErrInvalidInput or
// domain.ErrCanceled; errors.Is matches both Kind and the underlying cause.
type Error struct {
	Op   string
	URL  string
	Path string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	target := e.URL
	if errors.Is(e.Kind, domain.ErrFilesystem) {
		target = e.Path
	}
	return fmt.Sprintf("%v: %s %s: %v", e.Kind, e.Op, target, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// StatusError is returned when the file endpoint answers with a status the
// engine cannot stream from. Body holds up to 4KB of the response.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: GET %s: %d, body: %s", domain.ErrRemoteRejected, e.URL, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return domain.ErrRemoteRejected
}
