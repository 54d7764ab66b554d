package installer

import (
	"errors"
	"net/http"

	"github.com/remakesof/launcher/internal/domain"
	"github.com/remakesof/launcher/internal/transfer"
)

// isTemporary reports whether a failed transfer is worth resuming
func isTemporary(err error) bool {
	if err == nil || errors.Is(err, domain.ErrCanceled) {
		return false
	}

	var se *transfer.StatusError
	if errors.As(err, &se) {
		return isTemporaryStatus(se.StatusCode)
	}

	return errors.Is(err, domain.ErrNetwork)
}

func isTemporaryStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return code >= 500
}
