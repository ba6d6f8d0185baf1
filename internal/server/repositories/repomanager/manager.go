// Package repomanager wires the server repositories to one shared database
// handle and owns schema migration at startup.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/edgemed/edgemed/internal/server/repositories/encounters"
	"github.com/edgemed/edgemed/internal/server/repositories/idempotency"
	"github.com/edgemed/edgemed/internal/server/repositories/metrics"
)

type RepositoryManager interface {
	Conn() *sql.DB
	Encounters() encounters.Repository
	Idempotency() idempotency.Repository
	Metrics() metrics.Repository
	RunMigrations(ctx context.Context) error
	Close() error
}
