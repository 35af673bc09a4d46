package seed

import (
	"fmt"
	"time"

	"github.com/papercomputeco/corpus/pkg/backfill"
	"github.com/papercomputeco/corpus/pkg/dotdir"
)

// Outcome is what a seeding pass decided to do with the dataset.
type Outcome string

const (
	OutcomeDisabled           Outcome = "disabled"
	OutcomeSkippedNotEmpty    Outcome = "skipped_not_empty"
	OutcomeSkippedFingerprint Outcome = "skipped_fingerprint"
	OutcomeNoDataset          Outcome = "no_dataset"
	OutcomeIngested           Outcome = "ingested"
)

// Result describes one seeding pass.
type Result struct {
	RunID       string
	Location    string
	Fingerprint string
	Outcome     Outcome

	Inserted int
	Embedded int
	Blank    int

	// BootstrapErr is the non-fatal schema bootstrap failure, if any.
	BootstrapErr error

	Backfill *backfill.Result

	StartedAt  time.Time
	FinishedAt time.Time
	Err        error
}

// Skipped reports whether the dataset was not read in this pass.
func (r *Result) Skipped() bool {
	return r.Outcome != OutcomeIngested
}

// Summary returns a human-readable summary of the run.
func (r *Result) Summary() string {
	var s string
	switch r.Outcome {
	case OutcomeIngested:
		s = fmt.Sprintf("Seeded %s: %d items inserted, %d embedded, %d blank records skipped",
			r.Location, r.Inserted, r.Embedded, r.Blank)
	case OutcomeSkippedFingerprint:
		s = fmt.Sprintf("Dataset %s already applied, ingestion skipped", r.Location)
	case OutcomeSkippedNotEmpty:
		s = "Store is not empty, ingestion skipped"
	case OutcomeNoDataset:
		s = fmt.Sprintf("Dataset %s not found, nothing seeded", r.Location)
	case OutcomeDisabled:
		s = "Seeding is disabled"
	default:
		s = "Seeding did not complete"
	}
	if r.Backfill != nil {
		s += "\n" + r.Backfill.Summary()
	}
	return s
}

// RunState converts the result to the record kept in the .corpus directory.
func (r *Result) RunState() *dotdir.RunState {
	state := &dotdir.RunState{
		RunID:       r.RunID,
		Source:      r.Location,
		Fingerprint: r.Fingerprint,
		Skipped:     r.Skipped(),
		Inserted:    r.Inserted,
		Embedded:    r.Embedded,
		Blank:       r.Blank,
		FinishedAt:  r.FinishedAt,
	}
	if r.Backfill != nil {
		state.Backfilled = r.Backfill.Updated
	}
	if r.Err != nil {
		state.Error = r.Err.Error()
	}
	return state
}
