// Package ingest writes dataset drafts to the item store in batches and
// attaches embeddings right after each insert.
package ingest

import (
	"context"
	"log/slog"

	"github.com/papercomputeco/corpus/pkg/dataset"
	"github.com/papercomputeco/corpus/pkg/embeddings"
	"github.com/papercomputeco/corpus/pkg/storage"
	"github.com/papercomputeco/corpus/pkg/vector"
)

const (
	// DefaultBatchSize is the number of drafts per insert.
	DefaultBatchSize = 1000

	// DefaultUpdateChunk is the number of embedding updates per round trip.
	DefaultUpdateChunk = 200
)

// BatchEmbedder is the part of embeddings.Client the writer needs.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, embeddings.Stats, error)
}

// Config configures a Writer.
type Config struct {
	BatchSize   int
	UpdateChunk int

	// EmbedOnInsert embeds each batch right after inserting it.
	EmbedOnInsert bool
}

// Stats counts what a Writer has done.
type Stats struct {
	Batches  int
	Inserted int
	Embedded int

	// Unembedded rows were inserted but left for backfill.
	Unembedded int
}

// Writer buffers drafts and flushes them in batches. It is not safe for
// concurrent use.
type Writer struct {
	store    storage.ItemStore
	embedder BatchEmbedder
	index    vector.Index
	cfg      Config
	logger   *slog.Logger

	buf   []dataset.Draft
	stats Stats
}

// NewWriter creates a Writer. embedder may be nil when EmbedOnInsert is
// false and EmbedMissing is never called; index may be nil.
func NewWriter(store storage.ItemStore, embedder BatchEmbedder, index vector.Index, cfg Config, logger *slog.Logger) *Writer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.UpdateChunk <= 0 {
		cfg.UpdateChunk = DefaultUpdateChunk
	}
	return &Writer{
		store:    store,
		embedder: embedder,
		index:    index,
		cfg:      cfg,
		logger:   logger,
		buf:      make([]dataset.Draft, 0, cfg.BatchSize),
	}
}

// Add buffers d and flushes when the batch is full.
func (w *Writer) Add(ctx context.Context, d dataset.Draft) error {
	w.buf = append(w.buf, d)
	if len(w.buf) >= w.cfg.BatchSize {
		return w.Flush(ctx)
	}
	return nil
}

// Flush writes buffered drafts in one upsert, then embeds them when
// configured. Embedding failures leave rows for backfill; only store
// failures are returned.
func (w *Writer) Flush(ctx context.Context) error {
	if len(w.buf) == 0 {
		return nil
	}
	items := make([]storage.Item, len(w.buf))
	for i, d := range w.buf {
		items[i] = d.Item()
	}
	w.buf = w.buf[:0]

	n, err := w.store.UpsertItems(ctx, items)
	if err != nil {
		return err
	}
	w.stats.Batches++
	w.stats.Inserted += n
	w.logger.Info("inserted batch", "rows", n, "batch", w.stats.Batches)

	if !w.cfg.EmbedOnInsert {
		w.stats.Unembedded += n
		return nil
	}

	updated, err := w.EmbedMissing(ctx, storage.DedupeByID(items))
	w.stats.Unembedded += n - updated
	if err != nil {
		return err
	}
	w.logger.Info("embedded batch", "rows", updated, "batch", w.stats.Batches)
	return nil
}

// EmbedMissing embeds items and stores the vectors in chunks of
// UpdateChunk. It returns how many rows were updated. A failing chunk stops
// the run; chunks already written stay written.
func (w *Writer) EmbedMissing(ctx context.Context, items []storage.Item) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	texts := make([]string, len(items))
	for i, it := range items {
		texts[i] = it.Text
	}
	vecs, stats, err := w.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, err
	}
	if stats.Fallback || stats.Failed > 0 {
		w.logger.Warn("embedding batch degraded",
			"texts", stats.Texts,
			"batched", stats.Batched,
			"single", stats.Single,
			"failed", stats.Failed,
			"reason", stats.Reason,
		)
	}

	updates := make([]storage.EmbeddingUpdate, 0, len(items))
	for i, v := range vecs {
		if v != nil {
			updates = append(updates, storage.EmbeddingUpdate{ID: items[i].ID, Embedding: v})
		}
	}

	updated := 0
	for start := 0; start < len(updates); start += w.cfg.UpdateChunk {
		chunk := updates[start:min(start+w.cfg.UpdateChunk, len(updates))]

		if w.index != nil {
			if err := w.index.Upsert(ctx, toPoints(chunk)); err != nil {
				w.logger.Warn("vector index upsert failed, leaving rows for backfill",
					"rows", len(chunk),
					"error", err,
				)
				continue
			}
		}

		n, err := w.store.UpdateEmbeddings(ctx, chunk)
		if err != nil {
			w.stats.Embedded += updated
			return updated, err
		}
		updated += n
	}
	w.stats.Embedded += updated
	return updated, nil
}

// Stats returns counters accumulated since the Writer was created.
func (w *Writer) Stats() Stats {
	return w.stats
}

func toPoints(updates []storage.EmbeddingUpdate) []vector.Point {
	points := make([]vector.Point, len(updates))
	for i, u := range updates {
		points[i] = vector.Point{ID: u.ID, Embedding: u.Embedding}
	}
	return points
}
