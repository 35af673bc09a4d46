package backfill

import "fmt"

// Result contains statistics from a backfill run.
type Result struct {
	Missing   int64
	Pages     int
	Updated   int
	Remaining int64
	Stalled   bool
}

// Summary returns a human-readable summary of the backfill result.
func (r *Result) Summary() string {
	s := fmt.Sprintf(
		"Backfill complete: %d of %d missing embeddings filled in %d pages\n"+
			"Still missing: %d",
		r.Updated, r.Missing, r.Pages,
		r.Remaining,
	)
	if r.Stalled {
		s += "\nStopped early: a page produced no embeddings (is the embedding service up?)"
	}
	return s
}
