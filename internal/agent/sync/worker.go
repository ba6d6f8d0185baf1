package sync

import (
	"context"
	"time"

	"github.com/edgemed/edgemed/internal/agent/queue"
	"github.com/edgemed/edgemed/internal/common"
	"github.com/edgemed/edgemed/internal/logging"
	"github.com/edgemed/edgemed/internal/models"
)

// Options configure the worker loop.
type Options struct {
	DeviceID    string
	Mode        models.Mode
	BatchSize   int
	MinInterval time.Duration
	MaxInterval time.Duration
}

func (o *Options) applyDefaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = 10
	}
	if o.MinInterval <= 0 {
		o.MinInterval = 30 * time.Second
	}
	if o.MaxInterval <= 0 {
		o.MaxInterval = 300 * time.Second
	}
}

// BatchResult summarizes one drain of the queue.
type BatchResult struct {
	SyncedCount int    `json:"synced_count"`
	FailedCount int    `json:"failed_count"`
	TimingMS    int64  `json:"timing_ms,omitempty"`
	Message     string `json:"message,omitempty"`
}

// Worker is the single background process draining the queue against the
// remote collaborator. It is the sole writer of queue status transitions
// during drain; concurrent readers are fine because every update touches a
// single row.
type Worker struct {
	queue  *queue.Manager
	client Client
	log    logging.Logger
	opts   Options

	// interval is the current adaptive poll interval, private to the loop.
	interval time.Duration
}

func NewWorker(q *queue.Manager, client Client, log logging.Logger, opts Options) *Worker {
	opts.applyDefaults()
	return &Worker{
		queue:    q,
		client:   client,
		log:      log.With("component", "sync-worker"),
		opts:     opts,
		interval: opts.MinInterval,
	}
}

// Run executes the worker loop until ctx is cancelled. The loop never
// terminates on an error; every failure degrades to a longer poll interval.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info(ctx, "sync worker started",
		"interval", w.opts.MinInterval, "batch_size", w.opts.BatchSize)

	for {
		w.interval = w.runOnce(ctx)

		timer := time.NewTimer(w.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			w.log.Info(ctx, "sync worker stopped")
			return
		case <-timer.C:
		}
	}
}

// runOnce performs one probe-and-drain cycle and returns the next poll
// interval: offline doubles it, a fruitless drain multiplies it by 1.5,
// progress resets it to the minimum. All growth is capped at MaxInterval.
func (w *Worker) runOnce(ctx context.Context) time.Duration {
	if err := w.client.CheckHealth(ctx); err != nil {
		next := capInterval(w.interval*2, w.opts.MaxInterval)
		w.log.Info(ctx, "offline, backing off", "next_check", next, "error", err)
		return next
	}

	result, err := w.SyncBatch(ctx)
	if err != nil {
		return capInterval(time.Duration(float64(w.interval)*1.5), w.opts.MaxInterval)
	}
	if result.SyncedCount > 0 {
		return w.opts.MinInterval
	}
	return capInterval(time.Duration(float64(w.interval)*1.5), w.opts.MaxInterval)
}

func capInterval(d, max time.Duration) time.Duration {
	if d > max {
		return max
	}
	return d
}

// SyncBatch drains one bounded batch of queued items: marks them syncing,
// decrypts and prepares the submission (stripping raw note text for
// demo-mode items), posts it, and applies per-item outcomes plus audit
// records. A transport failure fails the whole in-flight batch; individual
// item failures never abort it.
func (w *Worker) SyncBatch(ctx context.Context) (*BatchResult, error) {
	pending, err := w.queue.GetPending(ctx, w.opts.BatchSize)
	if err != nil {
		w.log.Error(ctx, "pending query failed", "error", err)
		return nil, err
	}
	if len(pending) == 0 {
		return &BatchResult{Message: "no pending items"}, nil
	}

	items := make([]models.SyncItem, 0, len(pending))
	noteIDs := make([]string, 0, len(pending))

	for _, row := range pending {
		if err := w.queue.MarkSyncing(ctx, row.NoteID); err != nil {
			w.log.Warn(ctx, "skipping item, not in queued state", "note_id", short(row.NoteID))
			continue
		}

		payload, err := w.queue.DecryptPayload(row.NoteID, row.Ciphertext)
		if err != nil {
			w.log.Error(ctx, "failed to prepare item", "note_id", short(row.NoteID), "error", err)
			if err := w.queue.MarkFailed(ctx, row.NoteID, err.Error()); err != nil {
				w.log.Error(ctx, "mark failed error", "note_id", short(row.NoteID), "error", err)
			}
			continue
		}

		rawText := payload.RawNoteText
		if row.Mode == models.ModeDemo {
			// raw free text never leaves the device in demo mode
			rawText = nil
		}

		items = append(items, models.SyncItem{
			NoteID:         row.NoteID,
			Record:         payload.Record,
			Flags:          payload.Flags,
			CreatedAt:      row.CreatedAt,
			SchemaVersion:  common.SchemaVersion,
			IdempotencyKey: row.IdempotencyKey,
			RawNoteText:    rawText,
		})
		noteIDs = append(noteIDs, row.NoteID)
	}

	if len(items) == 0 {
		return &BatchResult{FailedCount: len(pending)}, nil
	}

	req := &models.SyncRequest{
		DeviceID: w.opts.DeviceID,
		Mode:     w.opts.Mode,
		Items:    items,
	}

	start := time.Now()
	resp, code, err := w.client.SubmitBatch(ctx, req)
	durationMS := time.Since(start).Milliseconds()

	if err != nil {
		w.log.Error(ctx, "sync request failed", "error", err, "timing_ms", durationMS)
		for _, noteID := range noteIDs {
			if e := w.queue.MarkFailed(ctx, noteID, err.Error()); e != nil {
				w.log.Error(ctx, "mark failed error", "note_id", short(noteID), "error", e)
			}
			w.logAttempt(ctx, noteID, false, code, err.Error(), durationMS)
		}
		return &BatchResult{FailedCount: len(noteIDs), TimingMS: durationMS}, err
	}

	for _, noteID := range resp.Synced {
		if e := w.queue.MarkSynced(ctx, noteID); e != nil {
			w.log.Error(ctx, "mark synced error", "note_id", short(noteID), "error", e)
		}
		w.logAttempt(ctx, noteID, true, code, "", durationMS)
	}
	for _, failure := range resp.Failed {
		if e := w.queue.MarkFailed(ctx, failure.NoteID, failure.Reason); e != nil {
			w.log.Error(ctx, "mark failed error", "note_id", short(failure.NoteID), "error", e)
		}
		w.logAttempt(ctx, failure.NoteID, false, code, failure.Reason, durationMS)
	}

	w.log.Info(ctx, "sync batch done",
		"synced", len(resp.Synced), "failed", len(resp.Failed), "timing_ms", durationMS)

	return &BatchResult{
		SyncedCount: len(resp.Synced),
		FailedCount: len(resp.Failed),
		TimingMS:    durationMS,
	}, nil
}

func (w *Worker) logAttempt(ctx context.Context, noteID string, success bool, code int, errorMessage string, durationMS int64) {
	attempt := &models.SyncAttempt{
		NoteID:       noteID,
		Success:      success,
		ResponseCode: code,
		ErrorMessage: errorMessage,
		DurationMS:   durationMS,
	}
	if err := w.queue.LogAttempt(ctx, attempt); err != nil {
		w.log.Error(ctx, "audit log error", "note_id", short(noteID), "error", err)
	}
}

// short truncates a note id for log output.
func short(noteID string) string {
	if len(noteID) > 8 {
		return noteID[:8]
	}
	return noteID
}
