// Package backfill embeds stored items that still have no embedding.
package backfill

import (
	"context"
	"log/slog"

	"github.com/papercomputeco/corpus/pkg/storage"
)

// DefaultPageSize is the number of missing rows fetched per page.
const DefaultPageSize = 1000

// Updater embeds items and stores their vectors, returning how many rows
// were updated. ingest.Writer implements it.
type Updater interface {
	EmbedMissing(ctx context.Context, items []storage.Item) (int, error)
}

// Progress is reported after every page.
type Progress struct {
	Page      int
	Processed int
	Updated   int
	Missing   int64
}

// Options configures backfill behavior.
type Options struct {
	PageSize int

	// OnPage, when set, is called after each page.
	OnPage func(Progress)
}

// Scanner pages through items with no embedding in id order.
type Scanner struct {
	store   storage.ItemStore
	updater Updater
	options Options
	logger  *slog.Logger
}

// NewScanner creates a Scanner.
func NewScanner(store storage.ItemStore, updater Updater, opts Options, logger *slog.Logger) *Scanner {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	return &Scanner{
		store:   store,
		updater: updater,
		options: opts,
		logger:  logger,
	}
}

// Run embeds missing rows page by page. Pages are keyed on the last id seen,
// so rows that fail in one page are not fetched again in the same run. The
// run stops when no rows remain or when a whole page updates nothing, which
// bounds a run against an embedding service that is down.
func (s *Scanner) Run(ctx context.Context) (*Result, error) {
	missing, err := s.store.CountMissing(ctx)
	if err != nil {
		return nil, err
	}
	result := &Result{Missing: missing}
	if missing == 0 {
		s.logger.Info("backfill: nothing to do")
		return result, nil
	}
	s.logger.Info("backfill starting", "missing", missing, "page_size", s.options.PageSize)

	processed := 0
	var afterID int64
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		page, err := s.store.MissingEmbeddings(ctx, afterID, s.options.PageSize)
		if err != nil {
			return result, err
		}
		if len(page) == 0 {
			break
		}
		afterID = page[len(page)-1].ID
		result.Pages++
		processed += len(page)

		updated, err := s.updater.EmbedMissing(ctx, page)
		result.Updated += updated
		if err != nil {
			return result, err
		}

		if s.options.OnPage != nil {
			s.options.OnPage(Progress{
				Page:      result.Pages,
				Processed: processed,
				Updated:   result.Updated,
				Missing:   missing,
			})
		}

		if updated == 0 {
			result.Stalled = true
			s.logger.Warn("backfill made no progress, stopping",
				"page", result.Pages,
				"rows", len(page),
				"after_id", afterID,
			)
			break
		}
		s.logger.Debug("backfill page done", "page", result.Pages, "updated", updated, "rows", len(page))
	}

	remaining, err := s.store.CountMissing(ctx)
	if err != nil {
		return result, err
	}
	result.Remaining = remaining
	s.logger.Info("backfill done",
		"updated", result.Updated,
		"remaining", result.Remaining,
		"pages", result.Pages,
		"stalled", result.Stalled,
	)
	return result, nil
}
