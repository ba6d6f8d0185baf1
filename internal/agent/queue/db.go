package queue

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/edgemed/edgemed/internal/agent/migrations"
	"github.com/edgemed/edgemed/internal/filex"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// InitDatabase opens the queue database at dsn (creating parent directories
// for file-backed paths) and applies the embedded goose migrations.
func InitDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn != ":memory:" {
		if _, err := filex.EnsureParentDir(dsn); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return nil, fmt.Errorf("goose dialect error: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return db, nil
}
