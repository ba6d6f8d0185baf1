package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/edgemed/edgemed/internal/server/migrations"
	"github.com/edgemed/edgemed/internal/server/repositories/encounters"
	"github.com/edgemed/edgemed/internal/server/repositories/idempotency"
	"github.com/edgemed/edgemed/internal/server/repositories/metrics"
)

type PostgresRepositoryManager struct {
	db          *sql.DB
	encounters  encounters.Repository
	idempotency idempotency.Repository
	metrics     metrics.Repository
}

func (m *PostgresRepositoryManager) Conn() *sql.DB {
	return m.db
}

func (m *PostgresRepositoryManager) Encounters() encounters.Repository {
	return m.encounters
}

func (m *PostgresRepositoryManager) Idempotency() idempotency.Repository {
	return m.idempotency
}

func (m *PostgresRepositoryManager) Metrics() metrics.Repository {
	return m.metrics
}

func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, m.db, ".")
}

func (m *PostgresRepositoryManager) Close() error {
	return m.db.Close()
}

// NewManagerWithDB wraps an already-open handle without running migrations.
// Used by tests and by deployments that manage schema out of band.
func NewManagerWithDB(db *sql.DB) RepositoryManager {
	return &PostgresRepositoryManager{
		db:          db,
		encounters:  encounters.NewPostgresRepository(db),
		idempotency: idempotency.NewPostgresRepository(db),
		metrics:     metrics.NewPostgresRepository(db),
	}
}

func NewPostgresRepositoryManager(ctx context.Context, dsn string) (RepositoryManager, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	m := &PostgresRepositoryManager{
		db:          db,
		encounters:  encounters.NewPostgresRepository(db),
		idempotency: idempotency.NewPostgresRepository(db),
		metrics:     metrics.NewPostgresRepository(db),
	}

	if err := m.RunMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return m, nil
}
