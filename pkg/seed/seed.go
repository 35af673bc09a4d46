// Package seed runs one dataset seeding pass: bootstrap the store, decide
// whether the dataset must be ingested, ingest it, record its fingerprint and
// backfill missing embeddings.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/corpus/pkg/backfill"
	"github.com/papercomputeco/corpus/pkg/dataset"
	"github.com/papercomputeco/corpus/pkg/eventstream"
	"github.com/papercomputeco/corpus/pkg/eventstream/nop"
	"github.com/papercomputeco/corpus/pkg/fingerprint"
	"github.com/papercomputeco/corpus/pkg/ingest"
	"github.com/papercomputeco/corpus/pkg/storage"
	"github.com/papercomputeco/corpus/pkg/vector"
)

// Options configures a Seeder. It is built once from configuration and not
// changed afterwards.
type Options struct {
	Enabled        bool
	Location       string
	EmbedOnSeed    bool
	SkipIfNotEmpty bool
	UseFingerprint bool
	Reset          bool

	BatchSize   int
	UpdateChunk int
	PageSize    int

	// StorageDriver names the store in published events.
	StorageDriver string

	// Opener resolves Location. Defaults to dataset.NewOpener with no S3
	// credentials.
	Opener *dataset.Opener

	// Index, when set, mirrors embeddings and is reset with the store.
	Index vector.Index

	// Publisher receives seed and backfill events. Defaults to a no-op.
	Publisher eventstream.Publisher

	// OnBackfillPage is handed to the backfill scanner.
	OnBackfillPage func(backfill.Progress)
}

// Seeder runs seeding passes against one store.
type Seeder struct {
	store    storage.Driver
	embedder ingest.BatchEmbedder
	guard    *fingerprint.Guard
	opts     Options
	logger   *slog.Logger
}

// NewSeeder creates a Seeder. embedder may be nil when EmbedOnSeed is false.
func NewSeeder(store storage.Driver, embedder ingest.BatchEmbedder, opts Options, logger *slog.Logger) *Seeder {
	if opts.Opener == nil {
		opts.Opener = dataset.NewOpener(dataset.S3Config{})
	}
	if opts.Publisher == nil {
		opts.Publisher = nop.NewPublisher()
	}
	return &Seeder{
		store:    store,
		embedder: embedder,
		guard:    fingerprint.NewGuard(store, logger),
		opts:     opts,
		logger:   logger,
	}
}

// Run performs one seeding pass. It never panics: a panic inside the pass is
// returned as an error. The fingerprint is recorded only after every record
// of the dataset was written.
func (s *Seeder) Run(ctx context.Context) (res *Result, err error) {
	res = &Result{
		RunID:     uuid.NewString(),
		Location:  s.opts.Location,
		StartedAt: time.Now().UTC(),
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("seeding panicked", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("seeding panicked: %v", r)
		}
		res.FinishedAt = time.Now().UTC()
		res.Err = err
	}()

	if !s.opts.Enabled {
		s.logger.Info("seeding disabled")
		res.Outcome = OutcomeDisabled
		return res, nil
	}

	logger := s.logger.With("run_id", res.RunID, "dataset", s.opts.Location)

	if berr := s.store.Bootstrap(ctx); berr != nil {
		logger.Warn("schema bootstrap incomplete, continuing", "error", berr)
		res.BootstrapErr = berr
	}

	if s.opts.Reset {
		if err := s.reset(ctx); err != nil {
			return res, err
		}
		logger.Info("store reset before seeding")
	}

	if !s.opts.Reset && s.opts.SkipIfNotEmpty {
		count, err := s.store.Count(ctx)
		if err != nil {
			return res, err
		}
		if count > 0 {
			logger.Info("store not empty, skipping dataset", "items", count)
			res.Outcome = OutcomeSkippedNotEmpty
			return res, s.backfill(ctx, res)
		}
	}

	if s.opts.UseFingerprint {
		res.Fingerprint = s.fingerprint(ctx, logger)
		if res.Fingerprint != "" {
			skip, err := s.guard.ShouldSkip(ctx, res.Fingerprint, s.opts.Reset)
			if err != nil {
				logger.Warn("seed history lookup failed, ingesting anyway", "error", err)
			}
			if skip {
				res.Outcome = OutcomeSkippedFingerprint
				return res, s.backfill(ctx, res)
			}
		}
	}

	hasher := fingerprint.NewHasher()
	src, err := s.opts.Opener.OpenTee(ctx, s.opts.Location, hasher)
	if err != nil {
		if errors.Is(err, dataset.ErrSourceNotFound) {
			logger.Warn("dataset not found, nothing to seed", "error", err)
			res.Outcome = OutcomeNoDataset
			return res, nil
		}
		return res, err
	}
	defer src.Close()

	start := time.Now()
	if err := s.ingest(ctx, src, res, logger); err != nil {
		return res, err
	}
	res.Outcome = OutcomeIngested

	// The recorded fingerprint is that of the bytes actually ingested.
	if s.opts.UseFingerprint {
		if err := src.Finish(); err != nil {
			return res, err
		}
		if ingested := hasher.Sum(); ingested != res.Fingerprint {
			if res.Fingerprint != "" {
				logger.Warn("dataset changed while seeding, recording the ingested content",
					"checked", res.Fingerprint, "ingested", ingested)
			}
			res.Fingerprint = ingested
		}
	}
	logger.Info("dataset ingested",
		"inserted", res.Inserted,
		"embedded", res.Embedded,
		"blank", res.Blank,
		"duration", time.Since(start),
	)

	if res.Fingerprint != "" {
		if err := s.guard.Record(ctx, res.Fingerprint); err != nil {
			return res, err
		}
	}

	s.logDistinct(ctx, logger)
	s.publish(ctx, res, eventstream.EventTypeSeedApplied, &eventstream.SeedMeta{
		Inserted:   res.Inserted,
		Embedded:   res.Embedded,
		Skipped:    res.Blank,
		DurationMs: time.Since(start).Milliseconds(),
	}, nil)

	return res, s.backfill(ctx, res)
}

func (s *Seeder) reset(ctx context.Context) error {
	if err := s.store.Truncate(ctx); err != nil {
		return err
	}
	if s.opts.Index != nil {
		if err := s.opts.Index.Reset(ctx); err != nil {
			return fmt.Errorf("resetting vector index: %w", err)
		}
	}
	return nil
}

// fingerprint hashes the raw dataset bytes for the skip check. Failures are
// logged and give an empty fingerprint, which skips the check.
func (s *Seeder) fingerprint(ctx context.Context, logger *slog.Logger) string {
	raw, err := s.opts.Opener.OpenRaw(ctx, s.opts.Location)
	if err != nil {
		logger.Warn("fingerprint unavailable", "error", err)
		return ""
	}
	defer raw.Close()

	fp, err := fingerprint.Compute(raw)
	if err != nil {
		logger.Warn("fingerprint unavailable", "error", err)
		return ""
	}
	return fp
}

func (s *Seeder) ingest(ctx context.Context, src io.Reader, res *Result, logger *slog.Logger) error {
	reader, err := dataset.NewReader(src, logger)
	if err != nil {
		return err
	}
	logger.Info("loading dataset", "format", reader.Format())

	writer := s.writer()
	for d, err := range reader.All() {
		if err != nil {
			return err
		}
		if err := writer.Add(ctx, d); err != nil {
			return err
		}
	}
	if err := writer.Flush(ctx); err != nil {
		return err
	}

	stats := writer.Stats()
	res.Inserted = stats.Inserted
	res.Embedded = stats.Embedded
	res.Blank = reader.Skipped()
	return nil
}

func (s *Seeder) writer() *ingest.Writer {
	return ingest.NewWriter(s.store, s.embedder, s.opts.Index, ingest.Config{
		BatchSize:     s.opts.BatchSize,
		UpdateChunk:   s.opts.UpdateChunk,
		EmbedOnInsert: s.opts.EmbedOnSeed && s.embedder != nil,
	}, s.logger)
}

// backfill runs only when embedding is part of seeding. Its failures are
// logged and do not fail the run: the rows stay eligible for the next pass.
func (s *Seeder) backfill(ctx context.Context, res *Result) error {
	if !s.opts.EmbedOnSeed || s.embedder == nil {
		return nil
	}

	scanner := backfill.NewScanner(s.store, s.writer(), backfill.Options{
		PageSize: s.opts.PageSize,
		OnPage:   s.opts.OnBackfillPage,
	}, s.logger)

	br, err := scanner.Run(ctx)
	res.Backfill = br
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		s.logger.Warn("backfill failed", "error", err)
		return nil
	}

	s.publish(ctx, res, eventstream.EventTypeBackfillCompleted, nil, &eventstream.BackfillMeta{
		Missing:   br.Missing,
		Updated:   br.Updated,
		Remaining: br.Remaining,
		Pages:     br.Pages,
		Stalled:   br.Stalled,
	})
	return nil
}

func (s *Seeder) logDistinct(ctx context.Context, logger *slog.Logger) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		logger.Warn("vector distinct check failed", "error", err)
		return
	}
	logger.Info("vector distinct check",
		"total", stats.Items,
		"embedded", stats.Embedded,
		"distinct", stats.DistinctEmbeddings,
	)
	if stats.Embedded > 1 && stats.DistinctEmbeddings == 1 {
		logger.Warn("every stored embedding is identical, the embedding service may be ignoring its input")
	}
}

func (s *Seeder) publish(ctx context.Context, res *Result, eventType string, seed *eventstream.SeedMeta, bf *eventstream.BackfillMeta) {
	event := eventstream.NewSeedEvent(eventType, res.RunID, eventstream.EventSource{
		Location:      s.opts.Location,
		Fingerprint:   res.Fingerprint,
		StorageDriver: s.opts.StorageDriver,
	})
	event.Seed = seed
	event.Backfill = bf

	if err := s.opts.Publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("publishing event failed", "event_type", eventType, "error", err)
	}
}
