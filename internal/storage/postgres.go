package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/assistente-financeiro/assistente-financeiro/internal/platform/db"
	"github.com/assistente-financeiro/assistente-financeiro/internal/storage/migrations"
)

// NotifyChannel is the LISTEN/NOTIFY channel used for change notifications.
const NotifyChannel = "kv_changes"

// Postgres keeps values in the kv_entries table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an existing pool. Call Migrate once before use.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate applies the embedded schema migrations.
func (p *Postgres) Migrate(ctx context.Context) error {
	sqlDB := stdlib.OpenDBFromPool(p.pool)
	defer func() { _ = sqlDB.Close() }()
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("storage: goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, sqlDB, "."); err != nil {
		return fmt.Errorf("storage: migrate: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := p.pool.QueryRow(ctx, `SELECT value FROM kv_entries WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

func (p *Postgres) Set(ctx context.Context, key, value string) error {
	const query = `INSERT INTO kv_entries (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	return db.WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, query, key, value); err != nil {
			return err
		}
		return notify(ctx, tx, Change{Key: key})
	})
}

func (p *Postgres) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return db.WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `DELETE FROM kv_entries WHERE key = ANY($1) RETURNING key`, keys)
		if err != nil {
			return err
		}
		removed, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return err
		}
		for _, k := range removed {
			if err := notify(ctx, tx, Change{Key: k, Deleted: true}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *Postgres) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT key FROM kv_entries WHERE starts_with(key, $1) ORDER BY key`, prefix)
	if err != nil {
		return nil, err
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// Watch holds a dedicated connection listening on NotifyChannel until ctx is done.
func (p *Postgres) Watch(ctx context.Context) (<-chan Change, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: acquire listener: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("storage: listen: %w", err)
	}
	out := make(chan Change, 32)
	go func() {
		defer close(out)
		defer func() {
			_, _ = conn.Exec(context.Background(), "UNLISTEN "+NotifyChannel)
			conn.Release()
		}()
		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				return
			}
			var change Change
			if err := json.Unmarshal([]byte(n.Payload), &change); err != nil || change.Key == "" {
				continue
			}
			select {
			case out <- change:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// notify queues a notification inside tx; PostgreSQL delivers it on commit.
func notify(ctx context.Context, tx pgx.Tx, change Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, string(payload))
	return err
}
