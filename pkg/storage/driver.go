// Package storage defines the item store used by seeding, backfill and
// retrieval, with postgres, sqlite and in-memory implementations.
package storage

import (
	"cmp"
	"context"
	"slices"
	"time"
)

// Item is one corpus row. Text is whitespace normalized and never blank.
// Embedding is nil until computed; when present its length is the configured
// dimension. Tags is nil when the source row had none.
type Item struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Label     string    `json:"label"`
	LabelID   int16     `json:"label_id"`
	Reason    *string   `json:"reason,omitempty"`
	Context   *string   `json:"context,omitempty"`
	Tags      []int     `json:"tags,omitempty"`
	Embedding []float32 `json:"-"`
}

// Hit is an item ranked by a search. For dense searches Score is
// 1 - cosine distance, for sparse searches it is trigram similarity.
type Hit struct {
	Item
	Score float64 `json:"score"`
}

// EmbeddingUpdate attaches a vector to an existing item.
type EmbeddingUpdate struct {
	ID        int64
	Embedding []float32
}

// SeedApplication records that a dataset with Fingerprint was fully ingested.
type SeedApplication struct {
	Fingerprint string
	AppliedAt   time.Time
}

// Stats summarizes store contents.
type Stats struct {
	Items              int64 `json:"items"`
	Embedded           int64 `json:"embedded"`
	Missing            int64 `json:"missing"`
	DistinctEmbeddings int64 `json:"distinct_embeddings"`
	SeedApplications   int64 `json:"seed_applications"`
}

// ItemStore persists items and their embeddings.
type ItemStore interface {
	// Count returns the number of stored items.
	Count(ctx context.Context) (int64, error)

	// UpsertItems writes items in one round trip, keyed by id. An existing
	// row keeps its embedding unless its text changed, in which case the
	// embedding is cleared so backfill picks it up again.
	UpsertItems(ctx context.Context, items []Item) (int, error)

	// UpdateEmbeddings sets embeddings in one round trip and returns the
	// number of rows changed.
	UpdateEmbeddings(ctx context.Context, updates []EmbeddingUpdate) (int, error)

	// MissingEmbeddings returns up to limit items with no embedding and an
	// id greater than afterID, ordered by id ascending.
	MissingEmbeddings(ctx context.Context, afterID int64, limit int) ([]Item, error)

	// CountMissing returns the number of items with no embedding.
	CountMissing(ctx context.Context) (int64, error)

	// GetItems returns the items with the given ids, in no particular order.
	GetItems(ctx context.Context, ids []int64) ([]Item, error)

	// Stats reports item, embedding and seed history counts.
	Stats(ctx context.Context) (*Stats, error)
}

// SeedHistory stores dataset fingerprints.
type SeedHistory interface {
	// HasSeed reports whether fingerprint was recorded.
	HasSeed(ctx context.Context, fingerprint string) (bool, error)

	// RecordSeed inserts fingerprint if absent. Concurrent callers never
	// fail on the uniqueness constraint; exactly one of them gets true.
	RecordSeed(ctx context.Context, fingerprint string) (bool, error)

	// SeedApplications lists recorded fingerprints, oldest first.
	SeedApplications(ctx context.Context) ([]SeedApplication, error)
}

// Searcher answers retrieval queries. Results are ordered by score
// descending then id ascending and never exceed k.
type Searcher interface {
	// DenseSearch ranks embedded items by cosine distance to query.
	DenseSearch(ctx context.Context, query []float32, k int) ([]Hit, error)

	// SparseSearch returns items whose text and label pass the trigram
	// threshold or contain query case-insensitively in text or label.
	SparseSearch(ctx context.Context, query string, threshold float64, k int) ([]Hit, error)

	// RankAll ranks every item by trigram similarity without filtering.
	RankAll(ctx context.Context, query string, k int) ([]Hit, error)
}

// Driver is a complete item store.
type Driver interface {
	ItemStore
	SeedHistory
	Searcher

	// Bootstrap ensures vector and trigram acceleration structures. It is
	// idempotent; failures come back as a *BootstrapError and never leave
	// the store unusable for plain inserts.
	Bootstrap(ctx context.Context) error

	// Truncate removes every item and every seed history row.
	Truncate(ctx context.Context) error

	// Close releases any resources held by the driver.
	Close() error
}

// DedupeByID keeps the last occurrence of each id, preserving first-seen order.
func DedupeByID(items []Item) []Item {
	pos := make(map[int64]int, len(items))
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if i, ok := pos[it.ID]; ok {
			out[i] = it
			continue
		}
		pos[it.ID] = len(out)
		out = append(out, it)
	}
	return out
}

// SortHits orders hits by score descending then id ascending.
func SortHits(hits []Hit) {
	slices.SortStableFunc(hits, func(a, b Hit) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
