// Package redis backs the dynamic configuration store: prompt
// overrides, pricing rules, model rates and per-mode model defaults.
// Configuration is read-mostly and refreshed per request; concurrent
// writers resolve last-write-wins.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "settings:"

// Store implements domain.SettingsStore on Redis.
type Store struct {
	client *redis.Client
}

// NewStore creates a Redis-backed settings store.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Get returns the value for key and whether it was present.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, keyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("settings get failed: %w", err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}

	if err := s.client.Set(ctx, keyPrefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("settings set failed: %w", err)
	}
	return nil
}
