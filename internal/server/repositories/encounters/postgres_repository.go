package encounters

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/edgemed/edgemed/internal/common"
	"github.com/edgemed/edgemed/internal/dbx"
	"github.com/edgemed/edgemed/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the encounter, replacing an earlier submission of the same
// note. A note re-saved on the device arrives with a fresh idempotency key
// and the newest version wins.
func (r *PostgresRepository) Create(ctx context.Context, encounter *models.Encounter) error {
	query := `
		INSERT INTO encounters (note_id, device_id, schema_version, record, flags, raw_note_text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (note_id) DO UPDATE SET
			device_id = EXCLUDED.device_id,
			schema_version = EXCLUDED.schema_version,
			record = EXCLUDED.record,
			flags = EXCLUDED.flags,
			raw_note_text = EXCLUDED.raw_note_text,
			created_at = EXCLUDED.created_at,
			received_at = now()`

	_, err := r.db.ExecContext(ctx, query,
		encounter.NoteID, encounter.DeviceID, encounter.SchemaVersion,
		encounter.Record, encounter.Flags, encounter.RawNoteText, encounter.CreatedAt)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByNoteID(ctx context.Context, noteID string) (*models.Encounter, error) {
	query := `
		SELECT note_id, device_id, schema_version, record, flags, raw_note_text, created_at, received_at
		FROM encounters WHERE note_id = $1`

	var e models.Encounter
	err := r.db.QueryRowContext(ctx, query, noteID).Scan(
		&e.NoteID, &e.DeviceID, &e.SchemaVersion, &e.Record, &e.Flags,
		&e.RawNoteText, &e.CreatedAt, &e.ReceivedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	return &e, nil
}
