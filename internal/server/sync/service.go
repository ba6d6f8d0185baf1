// Package sync implements the server-side ingestion of agent batches:
// per-item idempotency, durable encounter storage and batch metrics.
package sync

import (
	"context"
	"encoding/json"
	"time"

	"github.com/edgemed/edgemed/internal/dbx"
	"github.com/edgemed/edgemed/internal/logging"
	"github.com/edgemed/edgemed/internal/models"
	servermodels "github.com/edgemed/edgemed/internal/server/models"
	"github.com/edgemed/edgemed/internal/server/repositories/encounters"
	"github.com/edgemed/edgemed/internal/server/repositories/idempotency"
	"github.com/edgemed/edgemed/internal/server/repositories/repomanager"
)

// Service applies sync batches. Each item is applied in its own transaction
// so one poisoned item never takes down its batch-mates.
type Service struct {
	repos repomanager.RepositoryManager
	log   logging.Logger
	now   func() time.Time
}

func NewService(repos repomanager.RepositoryManager, log logging.Logger) *Service {
	return &Service{repos: repos, log: log.With("component", "sync-service"), now: time.Now}
}

// ProcessBatch applies every item of the request and reports per-item
// outcomes. An idempotency key seen before means the item was already
// applied: it is reported synced again without touching the encounter.
// Demo-mode submissions carrying raw note text are rejected per item.
func (s *Service) ProcessBatch(ctx context.Context, req *models.SyncRequest) *models.SyncResponse {
	start := s.now()
	resp := &models.SyncResponse{Synced: []string{}, Failed: []models.SyncFailure{}}

	for i := range req.Items {
		item := &req.Items[i]

		if req.Mode == models.ModeDemo && item.RawNoteText != nil {
			resp.Failed = append(resp.Failed, models.SyncFailure{
				NoteID: item.NoteID,
				Reason: "raw_note_text not allowed in demo mode",
			})
			continue
		}

		seen, err := s.repos.Idempotency().Seen(ctx, item.IdempotencyKey)
		if err != nil {
			s.log.Error(ctx, "idempotency lookup failed", "note_id", item.NoteID, "error", err)
			resp.Failed = append(resp.Failed, models.SyncFailure{NoteID: item.NoteID, Reason: "storage error"})
			continue
		}
		if seen {
			// already applied in a previous delivery of this obligation
			resp.Synced = append(resp.Synced, item.NoteID)
			continue
		}

		if err := s.applyItem(ctx, req.DeviceID, item); err != nil {
			s.log.Error(ctx, "item apply failed", "note_id", item.NoteID, "error", err)
			resp.Failed = append(resp.Failed, models.SyncFailure{NoteID: item.NoteID, Reason: "storage error"})
			continue
		}
		resp.Synced = append(resp.Synced, item.NoteID)
	}

	resp.TimingMS = s.now().Sub(start).Milliseconds()

	metric := &servermodels.SyncMetric{
		DeviceID:    req.DeviceID,
		Mode:        string(req.Mode),
		SyncedCount: len(resp.Synced),
		FailedCount: len(resp.Failed),
		TimingMS:    resp.TimingMS,
	}
	if err := s.repos.Metrics().Insert(ctx, metric); err != nil {
		s.log.Error(ctx, "metrics insert failed", "error", err)
	}

	return resp
}

// applyItem stores the encounter and records the idempotency key in a single
// transaction: either both land or neither does, so a replay after a crash
// re-applies cleanly through the encounter upsert.
func (s *Service) applyItem(ctx context.Context, deviceID string, item *models.SyncItem) error {
	recordJSON, err := json.Marshal(item.Record)
	if err != nil {
		return err
	}
	flagsJSON, err := json.Marshal(item.Flags)
	if err != nil {
		return err
	}

	encounter := &servermodels.Encounter{
		NoteID:        item.NoteID,
		DeviceID:      deviceID,
		SchemaVersion: item.SchemaVersion,
		Record:        recordJSON,
		Flags:         flagsJSON,
		RawNoteText:   item.RawNoteText,
		CreatedAt:     item.CreatedAt,
	}

	return dbx.WithTx(ctx, s.repos.Conn(), nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := encounters.NewPostgresRepository(tx).Create(ctx, encounter); err != nil {
			return err
		}
		return idempotency.NewPostgresRepository(tx).Remember(ctx, item.IdempotencyKey, item.NoteID, deviceID)
	})
}
