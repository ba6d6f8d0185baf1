package sync

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/edgemed/edgemed/internal/agent/queue"
	repo "github.com/edgemed/edgemed/internal/agent/repositories/queue"
	"github.com/edgemed/edgemed/internal/cryptox"
	"github.com/edgemed/edgemed/internal/logging"
	"github.com/edgemed/edgemed/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient scripts connectivity and batch outcomes and records requests.
type fakeClient struct {
	healthErr  error
	submitErr  error
	response   *models.SyncResponse
	code       int
	requests   []*models.SyncRequest
	healthHits int
}

func (f *fakeClient) CheckHealth(ctx context.Context) error {
	f.healthHits++
	return f.healthErr
}

func (f *fakeClient) SubmitBatch(ctx context.Context, req *models.SyncRequest) (*models.SyncResponse, int, error) {
	f.requests = append(f.requests, req)
	if f.submitErr != nil {
		return nil, f.code, f.submitErr
	}
	return f.response, f.code, nil
}

func setupQueue(t *testing.T) (*queue.Manager, *repo.SQLiteRepository) {
	t.Helper()

	db, err := queue.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	aead, err := cryptox.New(bytes.Repeat([]byte{0x11}, cryptox.KeySize))
	require.NoError(t, err)

	r := repo.NewSQLiteRepository(db)
	return queue.NewManager(r, aead, "dev-001"), r
}

func newTestWorker(q *queue.Manager, client Client, mode models.Mode) *Worker {
	return NewWorker(q, client, logging.NopLogger{}, Options{
		DeviceID:    "dev-001",
		Mode:        mode,
		BatchSize:   10,
		MinInterval: 10 * time.Millisecond,
		MaxInterval: 80 * time.Millisecond,
	})
}

func enqueue(t *testing.T, q *queue.Manager, noteID string, raw *string) {
	t.Helper()
	_, err := q.Enqueue(context.Background(), noteID, &models.NotePayload{
		Record:      models.ClinicalRecord{ChiefComplaint: "cough"},
		Flags:       models.Flags{CompletenessScore: 0.9},
		RawNoteText: raw,
	}, models.ModeDemo)
	require.NoError(t, err)
}

func strptr(s string) *string { return &s }

func TestSyncBatch_NoPendingItems(t *testing.T) {
	q, _ := setupQueue(t)
	client := &fakeClient{}
	w := newTestWorker(q, client, models.ModeDemo)

	res, err := w.SyncBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.SyncedCount)
	assert.Empty(t, client.requests, "nothing to submit")
}

func TestSyncBatch_DemoModeStripsRawNoteText(t *testing.T) {
	q, _ := setupQueue(t)
	ctx := context.Background()

	enqueue(t, q, "n1", nil)
	enqueue(t, q, "n2", strptr("raw clinical narrative"))
	enqueue(t, q, "n3", nil)

	client := &fakeClient{
		code:     200,
		response: &models.SyncResponse{Synced: []string{"n1", "n2", "n3"}},
	}
	w := newTestWorker(q, client, models.ModeDemo)

	res, err := w.SyncBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.SyncedCount)

	require.Len(t, client.requests, 1)
	req := client.requests[0]
	require.Len(t, req.Items, 3)
	for _, item := range req.Items {
		assert.Nil(t, item.RawNoteText, "raw text must never leave the device in demo mode")
		assert.Equal(t, "1.0.0", item.SchemaVersion)
		assert.NotEmpty(t, item.IdempotencyKey)
	}

	counts, err := q.StatusCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, counts[models.StatusSynced])
}

func TestSyncBatch_ProdModeKeepsRawNoteText(t *testing.T) {
	q, _ := setupQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, "n1", &models.NotePayload{
		Record:      models.ClinicalRecord{ChiefComplaint: "cough"},
		RawNoteText: strptr("full narrative"),
	}, models.ModeProd)
	require.NoError(t, err)

	client := &fakeClient{code: 200, response: &models.SyncResponse{Synced: []string{"n1"}}}
	w := newTestWorker(q, client, models.ModeProd)

	_, err = w.SyncBatch(ctx)
	require.NoError(t, err)

	require.Len(t, client.requests, 1)
	require.Len(t, client.requests[0].Items, 1)
	require.NotNil(t, client.requests[0].Items[0].RawNoteText)
	assert.Equal(t, "full narrative", *client.requests[0].Items[0].RawNoteText)
}

func TestSyncBatch_TransportFailureFailsWholeBatch(t *testing.T) {
	q, _ := setupQueue(t)
	ctx := context.Background()

	enqueue(t, q, "n1", nil)
	enqueue(t, q, "n2", nil)

	client := &fakeClient{submitErr: errors.New("connection refused")}
	w := newTestWorker(q, client, models.ModeDemo)

	res, err := w.SyncBatch(ctx)
	require.Error(t, err)
	assert.Equal(t, 2, res.FailedCount)

	meta, err := q.AllMetadata(ctx)
	require.NoError(t, err)
	require.Len(t, meta, 2)
	for _, m := range meta {
		assert.Equal(t, models.StatusFailed, m.Status)
		assert.Equal(t, 1, m.RetryCount)
		assert.Contains(t, m.FailReason, "connection refused")
	}

	attempts, err := q.RecentAttempts(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, attempts, 2, "one audit row per item")
	for _, a := range attempts {
		assert.False(t, a.Success)
	}
}

func TestSyncBatch_PerItemOutcomes(t *testing.T) {
	q, _ := setupQueue(t)
	ctx := context.Background()

	enqueue(t, q, "ok", nil)
	enqueue(t, q, "rejected", nil)

	client := &fakeClient{
		code: 200,
		response: &models.SyncResponse{
			Synced: []string{"ok"},
			Failed: []models.SyncFailure{{NoteID: "rejected", Reason: "schema mismatch"}},
		},
	}
	w := newTestWorker(q, client, models.ModeDemo)

	res, err := w.SyncBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SyncedCount)
	assert.Equal(t, 1, res.FailedCount)

	meta, err := q.AllMetadata(ctx)
	require.NoError(t, err)
	byID := map[string]models.QueueItemMeta{}
	for _, m := range meta {
		byID[m.NoteID] = m
	}
	assert.Equal(t, models.StatusSynced, byID["ok"].Status)
	assert.Equal(t, models.StatusFailed, byID["rejected"].Status)
	assert.Equal(t, "schema mismatch", byID["rejected"].FailReason)
}

func TestSyncBatch_UndecryptableItemDoesNotAbortOthers(t *testing.T) {
	q, r := setupQueue(t)
	ctx := context.Background()

	enqueue(t, q, "good", nil)
	require.NoError(t, r.Upsert(ctx, &models.QueueItem{
		NoteID:         "bad",
		IdempotencyKey: "dev-001:bad:token",
		Mode:           models.ModeDemo,
		Ciphertext:     []byte("not a valid ciphertext"),
		Status:         models.StatusQueued,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}))

	client := &fakeClient{code: 200, response: &models.SyncResponse{Synced: []string{"good"}}}
	w := newTestWorker(q, client, models.ModeDemo)

	res, err := w.SyncBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SyncedCount)

	require.Len(t, client.requests, 1)
	require.Len(t, client.requests[0].Items, 1)
	assert.Equal(t, "good", client.requests[0].Items[0].NoteID)

	meta, err := q.AllMetadata(ctx)
	require.NoError(t, err)
	byID := map[string]models.QueueItemMeta{}
	for _, m := range meta {
		byID[m.NoteID] = m
	}
	assert.Equal(t, models.StatusFailed, byID["bad"].Status)
}

func TestRunOnce_OfflineDoublesIntervalCapped(t *testing.T) {
	q, _ := setupQueue(t)
	client := &fakeClient{healthErr: errors.New("no route to host")}
	w := newTestWorker(q, client, models.ModeDemo)

	next := w.runOnce(context.Background())
	assert.Equal(t, 20*time.Millisecond, next)

	w.interval = next
	next = w.runOnce(context.Background())
	assert.Equal(t, 40*time.Millisecond, next)

	w.interval = 80 * time.Millisecond
	next = w.runOnce(context.Background())
	assert.Equal(t, 80*time.Millisecond, next, "growth is capped at MaxInterval")
}

func TestRunOnce_ProgressResetsInterval(t *testing.T) {
	q, _ := setupQueue(t)
	enqueue(t, q, "n1", nil)

	client := &fakeClient{code: 200, response: &models.SyncResponse{Synced: []string{"n1"}}}
	w := newTestWorker(q, client, models.ModeDemo)
	w.interval = 80 * time.Millisecond

	next := w.runOnce(context.Background())
	assert.Equal(t, 10*time.Millisecond, next, "at least one synced item resets to the minimum")
}

func TestRunOnce_FruitlessDrainBacksOffSlowly(t *testing.T) {
	q, _ := setupQueue(t)
	client := &fakeClient{code: 200, response: &models.SyncResponse{}}
	w := newTestWorker(q, client, models.ModeDemo)
	w.interval = 20 * time.Millisecond

	next := w.runOnce(context.Background())
	assert.Equal(t, 30*time.Millisecond, next, "x1.5 when nothing synced")
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	q, _ := setupQueue(t)
	client := &fakeClient{healthErr: errors.New("offline")}
	w := newTestWorker(q, client, models.ModeDemo)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on cancel")
	}
	assert.GreaterOrEqual(t, client.healthHits, 1)
}
