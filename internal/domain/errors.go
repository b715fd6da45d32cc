package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the failure taxonomy consumed by the
// resilience layer and the HTTP boundary.
var (
	// ErrValidation marks malformed or unauthorized requests. Fatal:
	// never retried, never falls back.
	ErrValidation = errors.New("validation failed")

	// ErrRateLimited marks an upstream 429. Retryable with backoff.
	ErrRateLimited = errors.New("rate limited")

	// ErrUpstreamServer marks an upstream 5xx. Retryable with backoff.
	ErrUpstreamServer = errors.New("upstream server error")

	// ErrModelUnavailable marks a missing or unsupported model.
	// Triggers an immediate switch to the next fallback candidate.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrEmbeddingQuota marks embedding quota exhaustion. Retrieval
	// degrades to an empty context; never surfaced to the caller.
	ErrEmbeddingQuota = errors.New("embedding quota exhausted")

	// ErrServiceUnavailable is returned once every retry and fallback
	// candidate has been exhausted. It wraps the last underlying error.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrInsufficientFunds rejects a request before generation starts.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrCacheMiss indicates no cached entry was found.
	ErrCacheMiss = errors.New("cache miss")
)

// PartialStreamError marks a stream that failed after delivering some
// fragments. Fragments already delivered remain valid and are billed.
type PartialStreamError struct {
	Err       error
	Delivered int // fragments delivered before the failure
}

func (e *PartialStreamError) Error() string {
	return fmt.Sprintf("stream failed after %d fragments: %v", e.Delivered, e.Err)
}

func (e *PartialStreamError) Unwrap() error {
	return e.Err
}

// Unavailable wraps the last underlying error as a single
// ServiceUnavailable once resilience is exhausted.
func Unavailable(last error) error {
	if last == nil {
		return ErrServiceUnavailable
	}
	return fmt.Errorf("%w: %w", ErrServiceUnavailable, last)
}
