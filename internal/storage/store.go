// Package storage provides the key/value store that holds every persisted value of the
// application as a JSON string, mirroring the browser local storage the product was designed
// around. Drivers exist for Redis, PostgreSQL, a JSON file on disk and process memory.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("storage: key not found")

// ErrWatchUnsupported is returned when the driver cannot report changes.
var ErrWatchUnsupported = errors.New("storage: watch not supported")

// Store is a flat string key/value store. Writes are last-writer-wins.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Change describes a write observed on a store, possibly made by another process.
type Change struct {
	Key     string `json:"key"`
	Deleted bool   `json:"deleted"`
}

// Watcher is implemented by stores able to report writes made by any client.
type Watcher interface {
	Watch(ctx context.Context) (<-chan Change, error)
}

// LoadJSON decodes the value stored under key into dest. A missing key leaves dest untouched.
// A value that is not valid JSON is logged, removed and treated as missing so the next read
// does not trip over it again. Backend failures are returned to the caller.
func LoadJSON(ctx context.Context, s Store, key string, dest any) (bool, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("storage: get %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		slog.Default().Warn("storage: dropping corrupt value", slog.String("key", key), slog.Any("error", err))
		if delErr := s.Delete(ctx, key); delErr != nil {
			slog.Default().Warn("storage: delete corrupt value", slog.String("key", key), slog.Any("error", delErr))
		}
		return false, nil
	}
	return true, nil
}

// SaveJSON encodes value and stores it under key.
func SaveJSON(ctx context.Context, s Store, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", key, err)
	}
	if err := s.Set(ctx, key, string(raw)); err != nil {
		return fmt.Errorf("storage: set %s: %w", key, err)
	}
	return nil
}
