package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/aliskhannn/quran-companion/internal/infra/postgres"
	"github.com/aliskhannn/quran-companion/internal/storage"
)

// TxRunner runs a function inside a database transaction.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx postgres.DBTX) error) error
}

// KVRepository stores JSON blobs by key in the kv_store table.
type KVRepository struct {
	db postgres.DBTX
	tr TxRunner
}

// NewKVRepository creates a new KVRepository. tr may be nil when db is
// already a transaction.
func NewKVRepository(db postgres.DBTX, tr TxRunner) *KVRepository {
	return &KVRepository{db: db, tr: tr}
}

// EnsureSchema creates the kv_store table if it does not exist.
func (r *KVRepository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS kv_store (
			key        TEXT PRIMARY KEY,
			value      JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`

	if _, err := r.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure kv schema: %w", err)
	}
	return nil
}

// Get retrieves the value stored under key.
func (r *KVRepository) Get(ctx context.Context, key string) ([]byte, error) {
	query := `SELECT value FROM kv_store WHERE key = $1`

	var value []byte
	err := r.db.QueryRow(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get value: %w", err)
	}

	return value, nil
}

// Set inserts or replaces the value stored under key. Concurrent writers
// resolve as last write wins.
func (r *KVRepository) Set(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at
	`

	if _, err := r.db.Exec(ctx, query, key, string(value)); err != nil {
		return fmt.Errorf("set value: %w", err)
	}
	return nil
}

// Delete removes all keys within one transaction.
func (r *KVRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	if r.tr == nil {
		return deleteKeys(ctx, r.db, keys)
	}

	return r.tr.WithinTx(ctx, func(ctx context.Context, tx postgres.DBTX) error {
		return deleteKeys(ctx, tx, keys)
	})
}

func deleteKeys(ctx context.Context, db postgres.DBTX, keys []string) error {
	for _, k := range keys {
		if _, err := db.Exec(ctx, `DELETE FROM kv_store WHERE key = $1`, k); err != nil {
			return fmt.Errorf("delete %q: %w", k, err)
		}
	}
	return nil
}
