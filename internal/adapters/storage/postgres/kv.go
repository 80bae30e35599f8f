package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"medicine-history/internal/ports/store"
)

// KV persiste los agregados JSON en una tabla kv_store (key text primary
// key, value jsonb). Ver schema.sql.
type KV struct {
	db *sql.DB
}

func NewKV(db *sql.DB) *KV {
	return &KV{db: db}
}

var _ store.KV = (*KV)(nil)

func (s *KV) Get(ctx context.Context, key string) (string, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT value FROM kv_store WHERE key = $1
	`, key)

	var value string
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("kv get %q: %w", key, err)
	}
	return value, true, nil
}

func (s *KV) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_store (key, value)
		VALUES ($1, $2::jsonb)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("kv set %q: %w", key, err)
	}
	return nil
}

func (s *KV) Remove(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM kv_store WHERE key = $1
	`, key)
	if err != nil {
		return fmt.Errorf("kv remove %q: %w", key, err)
	}
	return nil
}
