// Package models defines the sync server's persistence entities.
package models

import "time"

// Encounter is one accepted clinical record, stored as received. Record and
// Flags hold the submitted JSON verbatim so schema evolution on the agent
// side never breaks ingestion.
type Encounter struct {
	NoteID        string
	DeviceID      string
	SchemaVersion string
	Record        []byte
	Flags         []byte
	RawNoteText   *string
	CreatedAt     time.Time
	ReceivedAt    time.Time
}

// SyncMetric is one per-batch ingestion metrics row.
type SyncMetric struct {
	DeviceID    string
	Mode        string
	SyncedCount int
	FailedCount int
	TimingMS    int64
}
