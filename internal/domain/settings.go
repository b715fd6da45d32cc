package domain

import (
	"context"
	"errors"
	"sync"
)

// InMemorySettings stores dynamic configuration in memory. It backs
// tests and single-node deployments without Redis.
type InMemorySettings struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewInMemorySettings creates an empty in-memory settings store.
func NewInMemorySettings() *InMemorySettings {
	return &InMemorySettings{
		mu:     sync.RWMutex{},
		values: make(map[string]string),
	}
}

// Get returns the value for key and whether it was present.
func (s *InMemorySettings) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	return value, ok, nil
}

// Set stores value under key, replacing any previous value.
func (s *InMemorySettings) Set(_ context.Context, key, value string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return nil
}

// InMemoryLedger keeps user balances in memory. It backs tests and
// development; production uses the Redis ledger.
type InMemoryLedger struct {
	mu       sync.Mutex
	balances map[string]float64
}

// NewInMemoryLedger creates an empty ledger.
func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{
		mu:       sync.Mutex{},
		balances: make(map[string]float64),
	}
}

// Credit adds amount to the user's balance.
func (l *InMemoryLedger) Credit(_ context.Context, userID string, amount float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[userID] += amount
}

// Balance returns the user's current balance; unknown users hold 0.
func (l *InMemoryLedger) Balance(_ context.Context, userID string) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[userID], nil
}

// Debit subtracts amount from the user's balance.
func (l *InMemoryLedger) Debit(_ context.Context, userID string, amount float64) error {
	if amount < 0 {
		return errors.New("debit amount cannot be negative")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[userID] -= amount
	return nil
}
