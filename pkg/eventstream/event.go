package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeSeedApplied is emitted after a dataset was fully ingested.
	EventTypeSeedApplied = "corpus.seed.applied"

	// EventTypeBackfillCompleted is emitted after a backfill run finished.
	EventTypeBackfillCompleted = "corpus.backfill.completed"
)

// SeedEvent is a transport-neutral event payload for seeding milestones.
type SeedEvent struct {
	SchemaVersion int           `json:"schema_version"`
	EventType     string        `json:"event_type"`
	EventID       string        `json:"event_id"`
	EmittedAt     time.Time     `json:"emitted_at"`
	RunID         string        `json:"run_id"`
	Source        EventSource   `json:"source"`
	Seed          *SeedMeta     `json:"seed,omitempty"`
	Backfill      *BackfillMeta `json:"backfill,omitempty"`
}

// EventSource identifies the dataset and store the event is about.
type EventSource struct {
	Location      string `json:"location"`
	Fingerprint   string `json:"fingerprint,omitempty"`
	StorageDriver string `json:"storage_driver"`
}

// SeedMeta describes an ingestion.
type SeedMeta struct {
	Inserted   int   `json:"inserted"`
	Embedded   int   `json:"embedded"`
	Skipped    int   `json:"skipped"`
	DurationMs int64 `json:"duration_ms"`
}

// BackfillMeta describes a backfill run.
type BackfillMeta struct {
	Missing   int64 `json:"missing"`
	Updated   int   `json:"updated"`
	Remaining int64 `json:"remaining"`
	Pages     int   `json:"pages"`
	Stalled   bool  `json:"stalled"`
}

// NewSeedEvent fills in the envelope fields of a new event.
func NewSeedEvent(eventType, runID string, source EventSource) *SeedEvent {
	return &SeedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		RunID:         runID,
		Source:        source,
	}
}
