// Package queue provides the SQLite-backed repository for the agent's
// durable encrypted queue: queue item rows, their status state machine, and
// the append-only sync attempt audit log.
package queue

import (
	"context"

	"github.com/edgemed/edgemed/internal/models"
)

// Repository describes the durable queue operations. Rows hold ciphertext
// only; encryption and decryption happen one layer up.
type Repository interface {
	// Upsert inserts or replaces the row keyed by NoteID. Replacing a
	// pending note_id is allowed (a re-save overwrites pending state and
	// implicitly resets retry bookkeeping).
	Upsert(ctx context.Context, item *models.QueueItem) error

	// GetPending returns queued items, oldest created_at first.
	GetPending(ctx context.Context, limit int) ([]models.QueueItem, error)

	// MarkSyncing moves queued -> syncing.
	MarkSyncing(ctx context.Context, noteID string) error

	// MarkSynced moves syncing -> synced. synced is terminal.
	MarkSynced(ctx context.Context, noteID string) error

	// MarkFailed moves queued|syncing -> failed, recording the reason and
	// incrementing retry_count atomically with the status write.
	MarkFailed(ctx context.Context, noteID string, reason string) error

	// ResetForRetry moves failed -> queued, preserving retry_count.
	ResetForRetry(ctx context.Context, noteID string) error

	// StatusCounts returns the number of items per status.
	StatusCounts(ctx context.Context) (map[models.Status]int, error)

	// AllMetadata lists every item without ciphertext, newest first.
	AllMetadata(ctx context.Context) ([]models.QueueItemMeta, error)

	// AllItems lists every item including ciphertext, newest first.
	AllItems(ctx context.Context) ([]models.QueueItem, error)

	// InsertAttempt appends one delivery attempt audit record.
	InsertAttempt(ctx context.Context, attempt *models.SyncAttempt) error

	// RecentAttempts lists the newest audit records, up to limit.
	RecentAttempts(ctx context.Context, limit int) ([]models.SyncAttempt, error)
}
