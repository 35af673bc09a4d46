// Package retrieval answers queries against the item store, either by dense
// vector similarity or by trigram similarity with a whole-corpus fallback.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/papercomputeco/corpus/pkg/storage"
	"github.com/papercomputeco/corpus/pkg/vector"
)

// Mode selects the retrieval strategy. It is fixed per deployment.
type Mode string

const (
	ModeDense  Mode = "dense"
	ModeSparse Mode = "sparse"
)

const (
	DefaultK         = 5
	DefaultMaxK      = 100
	DefaultThreshold = 0.3
)

// QueryEmbedder embeds query text. *embeddings.Client implements it.
type QueryEmbedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// Store is what the engine reads from.
type Store interface {
	storage.Searcher
	GetItems(ctx context.Context, ids []int64) ([]storage.Item, error)
}

// Config configures an Engine.
type Config struct {
	Mode      Mode
	DefaultK  int
	MaxK      int
	Threshold float64
}

// Result is the answer to one query.
type Result struct {
	QueryText string        `json:"query_text"`
	K         int           `json:"k"`
	Items     []storage.Hit `json:"items"`
}

// Engine answers retrieval queries. It is safe for concurrent use.
type Engine struct {
	store    Store
	embedder QueryEmbedder
	index    vector.Index
	cfg      Config
	logger   *slog.Logger
}

// NewEngine creates an Engine. Dense mode needs an embedder; index is
// optional and, when set, answers dense queries in place of the store.
func NewEngine(store Store, embedder QueryEmbedder, index vector.Index, cfg Config, logger *slog.Logger) (*Engine, error) {
	if cfg.Mode == "" {
		cfg.Mode = ModeDense
	}
	if cfg.Mode != ModeDense && cfg.Mode != ModeSparse {
		return nil, fmt.Errorf("unknown retrieval mode: %q", cfg.Mode)
	}
	if cfg.Mode == ModeDense && embedder == nil {
		return nil, fmt.Errorf("dense retrieval needs an embedder")
	}
	if cfg.MaxK <= 0 {
		cfg.MaxK = DefaultMaxK
	}
	if cfg.DefaultK <= 0 {
		cfg.DefaultK = DefaultK
	}
	cfg.DefaultK = min(cfg.DefaultK, cfg.MaxK)
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}

	return &Engine{
		store:    store,
		embedder: embedder,
		index:    index,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Mode returns the configured mode.
func (e *Engine) Mode() Mode {
	return e.cfg.Mode
}

// ResolveK applies the default to non-positive k and caps it at MaxK.
func (e *Engine) ResolveK(k int) int {
	if k <= 0 {
		return e.cfg.DefaultK
	}
	return min(k, e.cfg.MaxK)
}

// Retrieve answers payload, a raw query or a JSON array of turns, with at
// most k items ordered by score descending then id ascending.
func (e *Engine) Retrieve(ctx context.Context, payload string, k int) (*Result, error) {
	start := time.Now()
	res := &Result{
		QueryText: QueryText(payload),
		K:         e.ResolveK(k),
	}

	var (
		hits []storage.Hit
		err  error
	)
	switch e.cfg.Mode {
	case ModeSparse:
		hits, err = e.sparse(ctx, res.QueryText, res.K)
	default:
		hits, err = e.dense(ctx, res.QueryText, res.K)
	}
	if err != nil {
		e.logger.Warn("retrieval failed",
			"mode", e.cfg.Mode,
			"kind", ErrorKind(err),
			"error", err,
		)
		return nil, err
	}

	if len(hits) > res.K {
		hits = hits[:res.K]
	}
	if hits == nil {
		hits = []storage.Hit{}
	}
	res.Items = hits

	e.logger.Debug("retrieval done",
		"mode", e.cfg.Mode,
		"k", res.K,
		"items", len(hits),
		"duration", time.Since(start),
	)
	return res, nil
}

func (e *Engine) dense(ctx context.Context, text string, k int) ([]storage.Hit, error) {
	query, err := e.embedder.EmbedOne(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	e.logger.Debug("query embedded", "dimensions", len(query))

	if e.index != nil {
		return e.denseIndex(ctx, query, k)
	}
	return e.store.DenseSearch(ctx, query, k)
}

// denseIndex takes ids and scores from the index and hydrates rows from the
// store. Ids the store no longer has are dropped.
func (e *Engine) denseIndex(ctx context.Context, query []float32, k int) ([]storage.Hit, error) {
	matches, err := e.index.Query(ctx, query, k)
	if err != nil {
		return nil, storage.Persistence("vector index query", err)
	}
	if len(matches) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	items, err := e.store.GetItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]storage.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	hits := make([]storage.Hit, 0, len(matches))
	for _, m := range matches {
		it, ok := byID[m.ID]
		if !ok {
			e.logger.Debug("index returned unknown item", "id", m.ID)
			continue
		}
		hits = append(hits, storage.Hit{Item: it, Score: float64(m.Score)})
	}
	storage.SortHits(hits)
	return hits, nil
}

// sparse runs the filtered trigram search and, only when it finds nothing,
// ranks the whole corpus so a non-empty corpus always yields results.
func (e *Engine) sparse(ctx context.Context, text string, k int) ([]storage.Hit, error) {
	hits, err := e.store.SparseSearch(ctx, text, e.cfg.Threshold, k)
	if err != nil {
		return nil, err
	}
	if len(hits) > 0 {
		return hits, nil
	}

	e.logger.Debug("sparse search empty, ranking whole corpus", "query", text)
	return e.store.RankAll(ctx, text, k)
}
