// Package redis implements the balance ledger. The ledger owns the
// atomic balance mutation; the pipeline only pre-checks and requests
// the debit.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/lexgate/lexgate/internal/observability"
)

const keyPrefix = "balance:"

// Ledger implements domain.BalanceLedger on Redis.
type Ledger struct {
	client *redis.Client
}

// NewLedger creates a Redis-backed balance ledger.
func NewLedger(client *redis.Client) *Ledger {
	return &Ledger{client: client}
}

// Balance returns the user's current balance; unknown users hold 0.
func (l *Ledger) Balance(ctx context.Context, userID string) (float64, error) {
	value, err := l.client.Get(ctx, keyPrefix+userID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("balance read failed: %w", err)
	}

	balance, parseErr := strconv.ParseFloat(value, 64)
	if parseErr != nil {
		return 0, fmt.Errorf("corrupt balance for user %s: %w", userID, parseErr)
	}
	return balance, nil
}

// Debit atomically subtracts amount from the user's balance.
func (l *Ledger) Debit(ctx context.Context, userID string, amount float64) error {
	if amount < 0 {
		return errors.New("debit amount cannot be negative")
	}

	remaining, err := l.client.IncrByFloat(ctx, keyPrefix+userID, -amount).Result()
	if err != nil {
		return fmt.Errorf("debit failed: %w", err)
	}

	if remaining < 0 {
		// The pre-check passed but a concurrent debit drained the
		// balance first. The charge stands; flag it for reconciliation.
		observability.FromContext(ctx).Warn("balance went negative after debit",
			observability.String("user_id", userID),
			observability.Float64("remaining", remaining))
	}

	return nil
}

// Credit adds amount to the user's balance.
func (l *Ledger) Credit(ctx context.Context, userID string, amount float64) error {
	if amount < 0 {
		return errors.New("credit amount cannot be negative")
	}

	if err := l.client.IncrByFloat(ctx, keyPrefix+userID, amount).Err(); err != nil {
		return fmt.Errorf("credit failed: %w", err)
	}
	return nil
}
