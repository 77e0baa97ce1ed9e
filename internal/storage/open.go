package storage

import (
	"context"
	"fmt"

	"github.com/assistente-financeiro/assistente-financeiro/internal/platform/cache"
	"github.com/assistente-financeiro/assistente-financeiro/internal/platform/db"
)

// Driver names accepted by Open.
const (
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverFile     = "file"
	DriverMemory   = "memory"
)

// Options selects and configures a driver.
type Options struct {
	Driver      string
	RedisAddr   string
	PostgresDSN string
	FilePath    string
}

// Open connects the configured driver. The returned close function releases its resources.
func Open(ctx context.Context, opts Options) (Store, func(), error) {
	switch opts.Driver {
	case DriverRedis, "":
		client, err := cache.New(ctx, opts.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		return NewRedis(client), func() { _ = client.Close() }, nil
	case DriverPostgres:
		pool, err := db.New(ctx, opts.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		store := NewPostgres(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil
	case DriverFile:
		store, err := NewFile(opts.FilePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	case DriverMemory:
		return NewMemory(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("storage: unknown driver %q", opts.Driver)
	}
}
