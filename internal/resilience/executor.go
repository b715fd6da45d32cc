// Package resilience provides a generic bounded-retry plus
// cross-candidate-fallback execution strategy. Candidates are tried
// strictly sequentially, never concurrently, so at most one attempt of
// a logical request can ever succeed.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/lexgate/lexgate/internal/observability"
)

// Class partitions failures for the executor.
type Class int

const (
	// Fatal failures propagate immediately: no retry, no fallback.
	Fatal Class = iota
	// Retryable failures are retried on the same candidate with
	// exponential backoff until the attempt budget is spent.
	Retryable
	// Switch failures abandon the current candidate after a single
	// attempt and advance to the next one with no backoff delay.
	Switch
)

// Classifier maps an operation error to a failure class.
type Classifier func(error) Class

// ErrExhausted is returned once every candidate's budget is spent. It
// wraps the last underlying error.
var ErrExhausted = errors.New("all candidates exhausted")

// Default budgets and delays.
const (
	DefaultMaxAttempts      = 3
	DefaultFallbackAttempts = 2
	DefaultBaseDelay        = 500 * time.Millisecond
	DefaultMaxJitter        = 250 * time.Millisecond
)

// Policy bounds a single execution. Policies are per-invocation values;
// nothing in them is shared mutable state across requests.
type Policy struct {
	MaxAttempts      int           // attempt budget on the primary candidate
	FallbackAttempts int           // reduced budget per fallback candidate
	BaseDelay        time.Duration // backoff base
	MaxJitter        time.Duration // upper bound of the random jitter
	Classify         Classifier
}

// DefaultPolicy returns the standard budgets with the given classifier.
func DefaultPolicy(classify Classifier) Policy {
	return Policy{
		MaxAttempts:      DefaultMaxAttempts,
		FallbackAttempts: DefaultFallbackAttempts,
		BaseDelay:        DefaultBaseDelay,
		MaxJitter:        DefaultMaxJitter,
		Classify:         classify,
	}
}

// Operation is a single upstream call against one candidate.
type Operation[T any] func(ctx context.Context, candidate string) (T, error)

// Execute runs op against candidates in order until one succeeds. It
// returns the successful value and the candidate that produced it.
// Fatal errors propagate unchanged; spending every budget returns the
// last error wrapped in ErrExhausted.
func Execute[T any](ctx context.Context, policy Policy, candidates []string, op Operation[T]) (T, string, error) {
	var zero T

	candidates = dedupe(candidates)
	if len(candidates) == 0 {
		return zero, "", fmt.Errorf("%w: no candidates", ErrExhausted)
	}

	logger := observability.FromContext(ctx)

	var lastErr error
	for i, candidate := range candidates {
		budget := policy.MaxAttempts
		if i > 0 {
			budget = policy.FallbackAttempts
		}
		if budget < 1 {
			budget = 1
		}

		for attempt := 0; attempt < budget; attempt++ {
			if err := ctx.Err(); err != nil {
				return zero, "", err
			}

			value, err := op(ctx, candidate)
			if err == nil {
				return value, candidate, nil
			}
			lastErr = err

			switch policy.classify(err) {
			case Fatal:
				return zero, "", err
			case Switch:
				logger.Warn("candidate unavailable, switching",
					observability.String("candidate", candidate),
					observability.Error(err))
				attempt = budget // abandon this candidate immediately
			case Retryable:
				if attempt == budget-1 {
					logger.Warn("retry budget spent on candidate",
						observability.String("candidate", candidate),
						observability.Int("attempts", budget),
						observability.Error(err))
					break
				}
				if sleepErr := backoff(ctx, policy, attempt); sleepErr != nil {
					return zero, "", sleepErr
				}
			}
		}
	}

	return zero, "", fmt.Errorf("%w: %w", ErrExhausted, lastErr)
}

func (p Policy) classify(err error) Class {
	if p.Classify == nil {
		return Fatal
	}
	return p.Classify(err)
}

// backoff sleeps 2^attempt * base plus random jitter, honoring ctx.
func backoff(ctx context.Context, policy Policy, attempt int) error {
	delay := time.Duration(1<<uint(attempt)) * policy.BaseDelay
	if policy.MaxJitter > 0 {
		delay += rand.N(policy.MaxJitter)
	}
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// dedupe drops empty entries and repeats, preserving order, so a model
// already marked failed is never re-tried within the same request.
func dedupe(candidates []string) []string {
	seen := make(map[string]struct{}, len(candidates))
	result := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if _, dup := seen[candidate]; dup {
			continue
		}
		seen[candidate] = struct{}{}
		result = append(result, candidate)
	}
	return result
}
