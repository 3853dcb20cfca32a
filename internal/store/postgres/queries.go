package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/alfredjeanlab/fleetreplay/internal/store"
)

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryGet(ctx context.Context, db executor, key string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM checkpoints WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func querySet(ctx context.Context, db executor, key, value string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO checkpoints (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = NOW()`,
		key, value,
	)
	return err
}

func queryRemove(ctx context.Context, db executor, key string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM checkpoints WHERE key = $1`, key)
	return err
}
