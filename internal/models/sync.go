package models

import "time"

// SyncItem is one element of a batch submission to the remote endpoint.
// RawNoteText has no omitempty on purpose: the wire contract requires the
// field to be present (null when stripped).
type SyncItem struct {
	NoteID         string         `json:"note_id" validate:"required"`
	Record         ClinicalRecord `json:"record"`
	Flags          Flags          `json:"flags"`
	CreatedAt      time.Time      `json:"created_at"`
	SchemaVersion  string         `json:"schema_version" validate:"required"`
	IdempotencyKey string         `json:"idempotency_key" validate:"required"`
	RawNoteText    *string        `json:"raw_note_text"`
}

// SyncRequest is the batch submission accepted by POST /v1/sync.
type SyncRequest struct {
	DeviceID string     `json:"device_id" validate:"required"`
	Mode     Mode       `json:"mode" validate:"required,oneof=demo prod"`
	Items    []SyncItem `json:"items" validate:"required,min=1,max=50,dive"`
}

// SyncFailure reports one rejected item and the reason.
type SyncFailure struct {
	NoteID string `json:"note_id"`
	Reason string `json:"reason"`
}

// SyncResponse enumerates per-item outcomes of a batch submission.
type SyncResponse struct {
	Synced   []string      `json:"synced"`
	Failed   []SyncFailure `json:"failed"`
	TimingMS int64         `json:"timing_ms"`
}

// StructuredResult is the finalized extraction result as stored by the
// remote system of record.
type StructuredResult struct {
	NoteID        string         `json:"note_id"`
	CreatedAt     time.Time      `json:"created_at"`
	SchemaVersion string         `json:"schema_version"`
	Record        ClinicalRecord `json:"record"`
	Flags         Flags          `json:"flags"`
	ModelInfo     ModelInfo      `json:"model_info"`
}

// HealthResponse is returned by the health endpoints on both surfaces.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
