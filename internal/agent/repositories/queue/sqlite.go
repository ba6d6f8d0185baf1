package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/edgemed/edgemed/internal/common"
	"github.com/edgemed/edgemed/internal/dbx"
	"github.com/edgemed/edgemed/internal/models"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, item *models.QueueItem) error {
	query := `INSERT OR REPLACE INTO queue_items
			(note_id, idempotency_key, mode, ciphertext, status, fail_reason, retry_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, NULL, 0, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		item.NoteID, item.IdempotencyKey, string(item.Mode), item.Ciphertext,
		string(item.Status), item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert queue item: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetPending(ctx context.Context, limit int) ([]models.QueueItem, error) {
	query := `SELECT note_id, idempotency_key, mode, ciphertext, status, retry_count, created_at, updated_at
		FROM queue_items
		WHERE status = ?
		ORDER BY created_at ASC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, string(models.StatusQueued), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select pending items: %w", err)
	}
	defer rows.Close()

	var result []models.QueueItem
	for rows.Next() {
		var item models.QueueItem
		if err := rows.Scan(&item.NoteID, &item.IdempotencyKey, &item.Mode, &item.Ciphertext,
			&item.Status, &item.RetryCount, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// transition performs a guarded single-row status update. Zero affected rows
// means the item does not exist or is not in an allowed source status.
func (r *SQLiteRepository) transition(ctx context.Context, noteID string, to models.Status, from ...models.Status) error {
	query := `UPDATE queue_items SET status = ?, updated_at = ? WHERE note_id = ? AND status IN (`
	args := []any{string(to), time.Now().UTC(), noteID}
	for i, s := range from {
		if i > 0 {
			query += ", "
		}
		query += "?"
		args = append(args, string(s))
	}
	query += ")"

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("%s -> %s for %s: %w", from, to, noteID, common.ErrInvalidTransition)
	}
	return nil
}

func (r *SQLiteRepository) MarkSyncing(ctx context.Context, noteID string) error {
	return r.transition(ctx, noteID, models.StatusSyncing, models.StatusQueued)
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, noteID string) error {
	return r.transition(ctx, noteID, models.StatusSynced, models.StatusSyncing)
}

func (r *SQLiteRepository) MarkFailed(ctx context.Context, noteID string, reason string) error {
	query := `UPDATE queue_items
		SET status = ?, fail_reason = ?, retry_count = retry_count + 1, updated_at = ?
		WHERE note_id = ? AND status IN (?, ?)
	`
	res, err := r.db.ExecContext(ctx, query,
		string(models.StatusFailed), reason, time.Now().UTC(), noteID,
		string(models.StatusQueued), string(models.StatusSyncing))
	if err != nil {
		return fmt.Errorf("failed to mark failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("mark failed for %s: %w", noteID, common.ErrInvalidTransition)
	}
	return nil
}

func (r *SQLiteRepository) ResetForRetry(ctx context.Context, noteID string) error {
	return r.transition(ctx, noteID, models.StatusQueued, models.StatusFailed)
}

func (r *SQLiteRepository) StatusCounts(ctx context.Context) (map[models.Status]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM queue_items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count statuses: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[models.Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *SQLiteRepository) AllMetadata(ctx context.Context) ([]models.QueueItemMeta, error) {
	query := `SELECT note_id, idempotency_key, mode, status, fail_reason, retry_count, created_at, updated_at
		FROM queue_items
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select metadata: %w", err)
	}
	defer rows.Close()

	var result []models.QueueItemMeta
	for rows.Next() {
		var meta models.QueueItemMeta
		var failReason sql.NullString
		if err := rows.Scan(&meta.NoteID, &meta.IdempotencyKey, &meta.Mode, &meta.Status,
			&failReason, &meta.RetryCount, &meta.CreatedAt, &meta.UpdatedAt); err != nil {
			return nil, err
		}
		meta.FailReason = failReason.String
		result = append(result, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) AllItems(ctx context.Context) ([]models.QueueItem, error) {
	query := `SELECT note_id, idempotency_key, mode, ciphertext, status, fail_reason, retry_count, created_at, updated_at
		FROM queue_items
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select items: %w", err)
	}
	defer rows.Close()

	var result []models.QueueItem
	for rows.Next() {
		var item models.QueueItem
		var failReason sql.NullString
		if err := rows.Scan(&item.NoteID, &item.IdempotencyKey, &item.Mode, &item.Ciphertext,
			&item.Status, &failReason, &item.RetryCount, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		item.FailReason = failReason.String
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) InsertAttempt(ctx context.Context, attempt *models.SyncAttempt) error {
	query := `INSERT INTO sync_attempts (note_id, success, response_code, error_message, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	createdAt := attempt.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, query,
		attempt.NoteID, attempt.Success, attempt.ResponseCode, attempt.ErrorMessage,
		attempt.DurationMS, createdAt)
	if err != nil {
		return fmt.Errorf("failed to insert sync attempt: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) RecentAttempts(ctx context.Context, limit int) ([]models.SyncAttempt, error) {
	query := `SELECT id, note_id, success, response_code, error_message, duration_ms, created_at
		FROM sync_attempts
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select sync attempts: %w", err)
	}
	defer rows.Close()

	var result []models.SyncAttempt
	for rows.Next() {
		var a models.SyncAttempt
		var code sql.NullInt64
		var msg sql.NullString
		if err := rows.Scan(&a.ID, &a.NoteID, &a.Success, &code, &msg, &a.DurationMS, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.ResponseCode = int(code.Int64)
		a.ErrorMessage = msg.String
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
