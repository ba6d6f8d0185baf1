// Package queue implements the agent's durable encrypted queue: payloads are
// serialized, sealed with AEAD (associated data = note id) and persisted via
// the SQLite repository. Only ciphertext plus queue-management metadata ever
// touches disk.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	repo "github.com/edgemed/edgemed/internal/agent/repositories/queue"
	"github.com/edgemed/edgemed/internal/cryptox"
	"github.com/edgemed/edgemed/internal/models"
	"github.com/google/uuid"
)

// DecryptedItem is one queue item decrypted for display. A decryption
// failure on one item is reported in Err and never aborts the others.
type DecryptedItem struct {
	NoteID    string                 `json:"note_id"`
	Mode      models.Mode            `json:"mode"`
	Status    models.Status          `json:"status"`
	CreatedAt time.Time              `json:"created_at"`
	Record    *models.ClinicalRecord `json:"record,omitempty"`
	Flags     *models.Flags          `json:"flags,omitempty"`
	Err       string                 `json:"error,omitempty"`
}

// Manager composes the queue repository with the AEAD primitive and owns
// idempotency key generation.
type Manager struct {
	repo     repo.Repository
	aead     *cryptox.AEAD
	deviceID string
	now      func() time.Time
}

func NewManager(r repo.Repository, aead *cryptox.AEAD, deviceID string) *Manager {
	return &Manager{repo: r, aead: aead, deviceID: deviceID, now: func() time.Time { return time.Now().UTC() }}
}

// Enqueue serializes and encrypts the payload and inserts or replaces the
// row for noteID with status queued. The returned idempotency key is fresh
// per call: a re-save after a previous sync creates a logically new delivery
// obligation with its own key.
func (m *Manager) Enqueue(ctx context.Context, noteID string, payload *models.NotePayload, mode models.Mode) (string, error) {
	idempotencyKey := fmt.Sprintf("%s:%s:%s", m.deviceID, noteID, uuid.NewString())

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("payload serialization error: %w", err)
	}
	ciphertext, err := m.aead.Encrypt(plaintext, []byte(noteID))
	if err != nil {
		return "", fmt.Errorf("encryption error: %w", err)
	}

	now := m.now()
	item := &models.QueueItem{
		NoteID:         noteID,
		IdempotencyKey: idempotencyKey,
		Mode:           mode,
		Ciphertext:     ciphertext,
		Status:         models.StatusQueued,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := m.repo.Upsert(ctx, item); err != nil {
		return "", err
	}
	return idempotencyKey, nil
}

// DecryptPayload opens a queue item's ciphertext under its note id.
func (m *Manager) DecryptPayload(noteID string, ciphertext []byte) (*models.NotePayload, error) {
	plaintext, err := m.aead.Decrypt(ciphertext, []byte(noteID))
	if err != nil {
		return nil, err
	}
	var payload models.NotePayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, fmt.Errorf("payload deserialization error: %w", err)
	}
	return &payload, nil
}

func (m *Manager) GetPending(ctx context.Context, limit int) ([]models.QueueItem, error) {
	return m.repo.GetPending(ctx, limit)
}

func (m *Manager) MarkSyncing(ctx context.Context, noteID string) error {
	return m.repo.MarkSyncing(ctx, noteID)
}

func (m *Manager) MarkSynced(ctx context.Context, noteID string) error {
	return m.repo.MarkSynced(ctx, noteID)
}

func (m *Manager) MarkFailed(ctx context.Context, noteID string, reason string) error {
	return m.repo.MarkFailed(ctx, noteID, reason)
}

func (m *Manager) ResetForRetry(ctx context.Context, noteID string) error {
	return m.repo.ResetForRetry(ctx, noteID)
}

func (m *Manager) StatusCounts(ctx context.Context) (map[models.Status]int, error) {
	return m.repo.StatusCounts(ctx)
}

func (m *Manager) AllMetadata(ctx context.Context) ([]models.QueueItemMeta, error) {
	return m.repo.AllMetadata(ctx)
}

// AllDecrypted decrypts every queue item for display. Items that fail to
// decrypt carry an error marker instead of content.
func (m *Manager) AllDecrypted(ctx context.Context) ([]DecryptedItem, error) {
	items, err := m.repo.AllItems(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]DecryptedItem, 0, len(items))
	for _, item := range items {
		out := DecryptedItem{
			NoteID:    item.NoteID,
			Mode:      item.Mode,
			Status:    item.Status,
			CreatedAt: item.CreatedAt,
		}
		payload, err := m.DecryptPayload(item.NoteID, item.Ciphertext)
		if err != nil {
			out.Err = "decryption failed"
		} else {
			out.Record = &payload.Record
			out.Flags = &payload.Flags
		}
		result = append(result, out)
	}
	return result, nil
}

// LogAttempt appends one delivery attempt to the audit log.
func (m *Manager) LogAttempt(ctx context.Context, attempt *models.SyncAttempt) error {
	return m.repo.InsertAttempt(ctx, attempt)
}

// RecentAttempts lists the newest audit records.
func (m *Manager) RecentAttempts(ctx context.Context, limit int) ([]models.SyncAttempt, error) {
	return m.repo.RecentAttempts(ctx, limit)
}
