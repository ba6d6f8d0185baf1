package models

import "time"

// Status is the queue item lifecycle state. Transitions are driven
// exclusively by the sync worker: queued -> syncing -> synced | failed,
// with failed -> queued as the only back-edge (retry). synced is terminal.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusSyncing Status = "syncing"
	StatusSynced  Status = "synced"
	StatusFailed  Status = "failed"
)

// QueueItem is one durable row of the encrypted local queue. Ciphertext is
// the only form in which the payload ever touches disk; everything else is
// plaintext queue-management metadata.
type QueueItem struct {
	NoteID         string
	IdempotencyKey string
	Mode           Mode
	Ciphertext     []byte
	Status         Status
	FailReason     string
	RetryCount     int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// QueueItemMeta is the introspection view of a queue item: everything
// except the ciphertext.
type QueueItemMeta struct {
	NoteID         string    `json:"note_id"`
	IdempotencyKey string    `json:"idempotency_key"`
	Mode           Mode      `json:"mode"`
	Status         Status    `json:"status"`
	FailReason     string    `json:"fail_reason,omitempty"`
	RetryCount     int       `json:"retry_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SyncAttempt is an immutable audit record of one delivery attempt.
// Rows are append-only: never updated or deleted.
type SyncAttempt struct {
	ID           int64     `json:"id"`
	NoteID       string    `json:"note_id"`
	Success      bool      `json:"success"`
	ResponseCode int       `json:"response_code,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	DurationMS   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// NotePayload is the plaintext unit that gets encrypted into a queue item:
// the structured record, its validation flags, and (prod mode only,
// when configured) the raw note text.
type NotePayload struct {
	Record      ClinicalRecord `json:"record"`
	Flags       Flags          `json:"flags"`
	RawNoteText *string        `json:"raw_note_text,omitempty"`
}
