package queue

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/edgemed/edgemed/internal/common"
	"github.com/edgemed/edgemed/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE queue_items (
  note_id TEXT PRIMARY KEY,
  idempotency_key TEXT NOT NULL,
  mode TEXT NOT NULL,
  ciphertext BLOB NOT NULL,
  status TEXT NOT NULL DEFAULT 'queued',
  fail_reason TEXT,
  retry_count INTEGER NOT NULL DEFAULT 0,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
);
CREATE TABLE sync_attempts (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  note_id TEXT NOT NULL,
  success INTEGER NOT NULL,
  response_code INTEGER,
  error_message TEXT,
  duration_ms INTEGER,
  created_at TIMESTAMP NOT NULL
);
`)
	require.NoError(t, err)

	return db
}

func newItem(noteID string, createdAt time.Time) *models.QueueItem {
	return &models.QueueItem{
		NoteID:         noteID,
		IdempotencyKey: "dev-001:" + noteID + ":token",
		Mode:           models.ModeDemo,
		Ciphertext:     []byte{0xde, 0xad, 0xbe, 0xef},
		Status:         models.StatusQueued,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
}

func TestUpsert_ReplaceKeepsSingleRow(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, r.Upsert(ctx, newItem("n1", now)))

	second := newItem("n1", now.Add(time.Second))
	second.Ciphertext = []byte{0x01, 0x02}
	second.IdempotencyKey = "dev-001:n1:fresh"
	require.NoError(t, r.Upsert(ctx, second))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM queue_items WHERE note_id='n1'`).Scan(&count))
	assert.Equal(t, 1, count, "re-save must leave exactly one row")

	var ct []byte
	var key string
	require.NoError(t, db.QueryRow(`SELECT ciphertext, idempotency_key FROM queue_items WHERE note_id='n1'`).Scan(&ct, &key))
	assert.Equal(t, []byte{0x01, 0x02}, ct, "most recent payload wins")
	assert.Equal(t, "dev-001:n1:fresh", key)
}

func TestUpsert_ReplaceResetsRetryBookkeeping(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, r.Upsert(ctx, newItem("n1", now)))
	require.NoError(t, r.MarkFailed(ctx, "n1", "boom"))

	require.NoError(t, r.Upsert(ctx, newItem("n1", now.Add(time.Second))))

	var retry int
	var status string
	require.NoError(t, db.QueryRow(`SELECT retry_count, status FROM queue_items WHERE note_id='n1'`).Scan(&retry, &status))
	assert.Equal(t, 0, retry)
	assert.Equal(t, "queued", status)
}

func TestGetPending_FIFOAndLimit(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	base := time.Now().UTC()
	require.NoError(t, r.Upsert(ctx, newItem("new", base.Add(2*time.Second))))
	require.NoError(t, r.Upsert(ctx, newItem("old", base)))
	require.NoError(t, r.Upsert(ctx, newItem("mid", base.Add(time.Second))))

	got, err := r.GetPending(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "old", got[0].NoteID, "oldest first")
	assert.Equal(t, "mid", got[1].NoteID)
}

func TestGetPending_SkipsNonQueued(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, r.Upsert(ctx, newItem("a", now)))
	require.NoError(t, r.Upsert(ctx, newItem("b", now.Add(time.Second))))
	require.NoError(t, r.MarkSyncing(ctx, "a"))

	got, err := r.GetPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].NoteID)
}

func TestStateMachine_HappyPath(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, newItem("n1", time.Now().UTC())))

	require.NoError(t, r.MarkSyncing(ctx, "n1"))
	require.NoError(t, r.MarkSynced(ctx, "n1"))

	counts, err := r.StatusCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.StatusSynced])
}

func TestStateMachine_SyncedOnlyViaSyncing(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, newItem("n1", time.Now().UTC())))

	err := r.MarkSynced(ctx, "n1")
	require.ErrorIs(t, err, common.ErrInvalidTransition, "queued must not jump to synced")

	counts, err := r.StatusCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.StatusQueued])
}

func TestStateMachine_SyncedIsTerminal(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, newItem("n1", time.Now().UTC())))
	require.NoError(t, r.MarkSyncing(ctx, "n1"))
	require.NoError(t, r.MarkSynced(ctx, "n1"))

	require.ErrorIs(t, r.MarkSyncing(ctx, "n1"), common.ErrInvalidTransition)
	require.ErrorIs(t, r.MarkFailed(ctx, "n1", "x"), common.ErrInvalidTransition)
	require.ErrorIs(t, r.ResetForRetry(ctx, "n1"), common.ErrInvalidTransition)
}

func TestMarkFailed_IncrementsRetryCount(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, newItem("n1", time.Now().UTC())))

	require.NoError(t, r.MarkFailed(ctx, "n1", "connection timeout"))

	meta, err := r.AllMetadata(ctx)
	require.NoError(t, err)
	require.Len(t, meta, 1)
	assert.Equal(t, 1, meta[0].RetryCount)
	assert.Equal(t, "connection timeout", meta[0].FailReason)

	// retry preserves the count, the next failure increments again
	require.NoError(t, r.ResetForRetry(ctx, "n1"))
	meta, err = r.AllMetadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, meta[0].RetryCount, "reset must never decrease retry_count")

	require.NoError(t, r.MarkFailed(ctx, "n1", "still down"))
	meta, err = r.AllMetadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, meta[0].RetryCount)
}

func TestAllMetadata_NeverExposesCiphertext(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, newItem("n1", time.Now().UTC())))

	meta, err := r.AllMetadata(ctx)
	require.NoError(t, err)
	require.Len(t, meta, 1)
	assert.Equal(t, "n1", meta[0].NoteID)
	assert.NotEmpty(t, meta[0].IdempotencyKey)
}

func TestSyncAttempts_AppendOnlyAndOrdered(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.InsertAttempt(ctx, &models.SyncAttempt{
		NoteID: "n1", Success: false, ResponseCode: 0, ErrorMessage: "offline", DurationMS: 12,
	}))
	require.NoError(t, r.InsertAttempt(ctx, &models.SyncAttempt{
		NoteID: "n1", Success: true, ResponseCode: 200, DurationMS: 34,
	}))

	got, err := r.RecentAttempts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Success, "newest first")
	assert.Equal(t, 200, got[0].ResponseCode)
	assert.Equal(t, "offline", got[1].ErrorMessage)
}
