package metrics

import (
	"context"
	"fmt"

	"github.com/edgemed/edgemed/internal/dbx"
	"github.com/edgemed/edgemed/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, metric *models.SyncMetric) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sync_metrics (device_id, mode, synced_count, failed_count, timing_ms)
		 VALUES ($1, $2, $3, $4, $5)`,
		metric.DeviceID, metric.Mode, metric.SyncedCount, metric.FailedCount, metric.TimingMS)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}
