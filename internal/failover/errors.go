package failover

import (
	"errors"
	"fmt"

	"github.com/insightgym/insightgym/internal/provider"
)

// ErrUnavailable means the generation capability could not produce text:
// every configured model failed or the bounded timeout elapsed. Callers are
// expected to recover with a fallback reply rather than propagate a fault.
var ErrUnavailable = errors.New("text generation unavailable")

func IsRateLimitError(err error) bool {
	var ae *provider.APIError
	if errors.As(err, &ae) {
		return ae.StatusCode == 429
	}
	return false
}

func IsAuthError(err error) bool {
	var ae *provider.APIError
	if errors.As(err, &ae) {
		return ae.StatusCode == 401 || ae.StatusCode == 403
	}
	return false
}

// IsRetryable reports whether the next fallback model is worth trying.
func IsRetryable(err error) bool {
	var ae *provider.APIError
	if errors.As(err, &ae) {
		return ae.StatusCode == 429 || ae.StatusCode >= 500
	}
	// Transport-level failures (connection refused, DNS) are retryable.
	return true
}

type AllExhaustedError struct {
	Attempted []string
}

func (e *AllExhaustedError) Error() string {
	return fmt.Sprintf("all models exhausted, attempted: %v", e.Attempted)
}
