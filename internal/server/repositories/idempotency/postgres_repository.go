package idempotency

import (
	"context"
	"fmt"

	"github.com/edgemed/edgemed/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Seen(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM idempotency_keys WHERE key = $1)`, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error performing sql request: %w", err)
	}
	return exists, nil
}

// Remember records the key. A concurrent duplicate insert is tolerated: the
// conflict clause keeps the first writer's row.
func (r *PostgresRepository) Remember(ctx context.Context, key, noteID, deviceID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO idempotency_keys (key, note_id, device_id) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO NOTHING`, key, noteID, deviceID)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}
