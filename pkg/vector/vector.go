// Package vector holds the embedding vector codec and the optional external
// nearest-neighbour index that can mirror item embeddings.
package vector

import "context"

// Point is one embedding keyed by the item id it belongs to.
type Point struct {
	ID        int64
	Embedding []float32
}

// Match is an index hit. Score is cosine similarity, higher is closer.
type Match struct {
	ID    int64
	Score float32
}

// Index is a nearest-neighbour index over item embeddings that lives beside
// the item store. The store stays the source of truth: an index only returns
// ids and scores, rows are hydrated from storage.
type Index interface {
	// Upsert adds or replaces points by id.
	Upsert(ctx context.Context, points []Point) error

	// Query returns at most k matches ordered by descending score.
	Query(ctx context.Context, embedding []float32, k int) ([]Match, error)

	// Reset drops every point, used when the corpus is truncated.
	Reset(ctx context.Context) error

	// Close releases any resources held by the index.
	Close() error
}
