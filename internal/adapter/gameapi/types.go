package gameapi

import (
	"fmt"
	"net/http"

	"github.com/remakesof/launcher/internal/domain"
)

const (
	apiPrefix       = "/api"
	loginPath       = apiPrefix + "/loginUser"
	refreshPath     = apiPrefix + "/refreshToken"
	versionPath     = apiPrefix + "/game/version"
	downloadPath    = apiPrefix + "/game/download"
	maxErrBodySize  = 4 << 10 // 4KB
	maxRespBodySize = 1 << 20 // 1MB
)

// loginRequest is the body of POST /api/loginUser
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// APIError is returned when the backend answers with a non-2xx status
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: backend returned %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.StatusCode, e.Body)
}

// Unwrap lets callers match ErrAuthFailed for 401/403 and
// ErrRemoteRejected for every status.
func (e *APIError) Unwrap() []error {
	if e.IsAuthError() {
		return []error{domain.ErrAuthFailed, domain.ErrRemoteRejected}
	}
	return []error{domain.ErrRemoteRejected}
}

// IsAuthError returns true if the credentials or token were refused
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsTemporary returns true for statuses worth retrying later
func (e *APIError) IsTemporary() bool {
	return e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= 500
}
