package metrics

import (
	"context"

	"github.com/edgemed/edgemed/internal/server/models"
)

// Repository appends per-batch ingestion metrics.
type Repository interface {
	Insert(ctx context.Context, metric *models.SyncMetric) error
}
