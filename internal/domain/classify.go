package domain

import (
	"errors"

	"github.com/lexgate/lexgate/internal/resilience"
)

// ClassifyFailure maps the error taxonomy onto the resilience classes:
// rate limits and upstream 5xx are retried, a missing model switches to
// the next fallback candidate, everything else (validation, auth,
// cancellation) is fatal.
func ClassifyFailure(err error) resilience.Class {
	switch {
	case errors.Is(err, ErrRateLimited), errors.Is(err, ErrUpstreamServer):
		return resilience.Retryable
	case errors.Is(err, ErrModelUnavailable):
		return resilience.Switch
	default:
		return resilience.Fatal
	}
}
