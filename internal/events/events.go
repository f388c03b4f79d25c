package events

import (
	"time"

	"github.com/google/uuid"
)

// Stream and subject names for the usage trail.
const (
	StreamUsage = "PARLA_USAGE"

	SubjectMinutesRecorded = "parla.usage.minutes"
	SubjectTTSRecorded     = "parla.usage.tts"
	SubjectQuotaDenied     = "parla.usage.denied"
)

// MinutesRecorded is published after a conversation cost lands in the ledger.
type MinutesRecorded struct {
	UserID     uuid.UUID `json:"user_id"`
	Day        string    `json:"day"` // YYYY-MM-DD, server-local
	Minutes    float64   `json:"minutes"`
	RecordedAt time.Time `json:"recorded_at"`
}

// TTSRecorded is published after a premium synthesis call lands in the ledger.
type TTSRecorded struct {
	UserID     uuid.UUID `json:"user_id"`
	RecordedAt time.Time `json:"recorded_at"`
}

// QuotaDenied is published when admission rejects a metered operation.
type QuotaDenied struct {
	UserID   uuid.UUID `json:"user_id"`
	Resource string    `json:"resource"` // "minutes" or "tts"
	Used     float64   `json:"used"`
	Limit    float64   `json:"limit"`
	DeniedAt time.Time `json:"denied_at"`
}
