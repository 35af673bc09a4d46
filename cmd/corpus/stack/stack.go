// Package stack builds the store, embedding client, vector index and event
// publisher shared by the corpus commands from the layered configuration.
package stack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/corpus/cmd/corpus/sqlitepath"
	"github.com/papercomputeco/corpus/pkg/backfill"
	"github.com/papercomputeco/corpus/pkg/config"
	"github.com/papercomputeco/corpus/pkg/dataset"
	"github.com/papercomputeco/corpus/pkg/dotdir"
	"github.com/papercomputeco/corpus/pkg/embeddings"
	embeddingutils "github.com/papercomputeco/corpus/pkg/embeddings/utils"
	"github.com/papercomputeco/corpus/pkg/eventstream"
	eventstreamutils "github.com/papercomputeco/corpus/pkg/eventstream/utils"
	"github.com/papercomputeco/corpus/pkg/ingest"
	"github.com/papercomputeco/corpus/pkg/logger"
	"github.com/papercomputeco/corpus/pkg/retrieval"
	"github.com/papercomputeco/corpus/pkg/seed"
	"github.com/papercomputeco/corpus/pkg/storage"
	storageutils "github.com/papercomputeco/corpus/pkg/storage/utils"
	"github.com/papercomputeco/corpus/pkg/vector"
	vectorutils "github.com/papercomputeco/corpus/pkg/vector/utils"
)

// ClientID identifies corpus processes to the event stream.
const ClientID = "corpus"

// Stack is the set of components a command works with. Index is nil when no
// external vector index is configured.
type Stack struct {
	Config    *config.Config
	ConfigDir string
	Logger    *slog.Logger

	Store     storage.Driver
	Embedder  *embeddings.Client
	Index     vector.Index
	Publisher eventstream.Publisher
	Opener    *dataset.Opener
}

// ConfigDir returns the --config-dir flag value.
func ConfigDir(cmd *cobra.Command) string {
	dir, _ := cmd.Flags().GetString("config-dir")
	return dir
}

// LoadConfig resolves the configuration for cmd: defaults, config.toml,
// environment, then the flags registered in f.
func LoadConfig(cmd *cobra.Command, f *Flags) (*config.Config, error) {
	v, err := config.InitViper(ConfigDir(cmd))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if f != nil {
		config.BindRegisteredFlags(v, cmd, config.Flags, f.Keys())
	}
	return config.Unmarshal(v)
}

// NewLogger returns the terminal logger honoring the --debug flag.
func NewLogger(cmd *cobra.Command) *slog.Logger {
	debug, _ := cmd.Flags().GetBool("debug")
	return logger.New(
		logger.WithDebug(debug),
		logger.WithPretty(true),
		logger.WithWriter(os.Stderr),
	)
}

// Open builds every configured component. On error the components opened so
// far are closed.
func Open(ctx context.Context, cfg *config.Config, configDir string, logger *slog.Logger) (*Stack, error) {
	s := &Stack{
		Config:    cfg,
		ConfigDir: configDir,
		Logger:    logger,
		Opener: dataset.NewOpener(dataset.S3Config{
			Endpoint:  cfg.Source.Endpoint,
			Region:    cfg.Source.Region,
			AccessKey: cfg.Source.AccessKey,
			SecretKey: cfg.Source.SecretKey,
			UseSSL:    cfg.Source.UseSSL,
		}),
	}
	dims := int(cfg.Embedding.Dimensions)

	var err error
	s.Store, err = storageutils.NewDriver(ctx, &storageutils.NewDriverOpts{
		Driver:      cfg.Storage.Driver,
		PostgresDSN: cfg.Storage.PostgresDSN,
		SQLitePath:  sqlitePath(cfg, configDir),
		Dimensions:  dims,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Storage.Driver, err)
	}

	s.Embedder, err = embeddingutils.NewClient(&embeddingutils.NewClientOpts{
		NewEmbedderOpts: embeddingutils.NewEmbedderOpts{
			ProviderType: cfg.Embedding.Provider,
			TargetURL:    cfg.Embedding.Target,
			Model:        cfg.Embedding.Model,
			APIKey:       cfg.Embedding.APIKey,
			Dimensions:   dims,
			Timeout:      time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second,
		},
		FallbackChunk:       int(cfg.Embedding.FallbackChunk),
		FallbackConcurrency: int(cfg.Embedding.FallbackConcurrency),
		RateLimit:           cfg.Embedding.RateLimit,
		CachePath:           resolveInDir(cfg.Embedding.CachePath, configDir),
		Logger:              logger,
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("creating embedding client: %w", err), s.Close())
	}

	s.Index, err = vectorutils.NewIndex(ctx, &vectorutils.NewIndexOpts{
		ProviderType: cfg.VectorStore.Provider,
		Target:       cfg.VectorStore.Target,
		Collection:   cfg.VectorStore.Collection,
		APIKey:       cfg.VectorStore.APIKey,
		Dimensions:   dims,
		Logger:       logger,
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("opening vector index: %w", err), s.Close())
	}

	s.Publisher, err = eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		Type:     cfg.EventStream.Provider,
		Brokers:  cfg.EventStream.Brokers,
		Topic:    cfg.EventStream.Topic,
		ClientID: ClientID,
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("creating event publisher: %w", err), s.Close())
	}

	logger.Debug("components ready",
		"storage", cfg.Storage.Driver,
		"embedding_provider", cfg.Embedding.Provider,
		"dimensions", dims,
		"vector_store", cfg.VectorStore.Provider,
		"eventstream", cfg.EventStream.Provider,
	)
	return s, nil
}

// SeedOptions maps the seed configuration onto seed.Options.
func (s *Stack) SeedOptions() seed.Options {
	c := s.Config.Seed
	return seed.Options{
		Enabled:        c.Enabled,
		Location:       c.Dataset,
		EmbedOnSeed:    c.EmbedOnSeed,
		SkipIfNotEmpty: c.SkipIfNotEmpty,
		UseFingerprint: c.UseFingerprint,
		Reset:          c.Reset,
		BatchSize:      int(c.BatchSize),
		UpdateChunk:    int(c.UpdateChunk),
		PageSize:       int(c.PageSize),
		StorageDriver:  s.Config.Storage.Driver,
		Opener:         s.Opener,
		Index:          s.Index,
		Publisher:      s.Publisher,
	}
}

// Seeder returns a seeder over the stack's store and embedding client.
func (s *Stack) Seeder(opts seed.Options) *seed.Seeder {
	return seed.NewSeeder(s.Store, s.Embedder, opts, s.Logger)
}

// Writer returns an ingest writer that embeds and mirrors into the index.
func (s *Stack) Writer() *ingest.Writer {
	return ingest.NewWriter(s.Store, s.Embedder, s.Index, ingest.Config{
		BatchSize:     int(s.Config.Seed.BatchSize),
		UpdateChunk:   int(s.Config.Seed.UpdateChunk),
		EmbedOnInsert: true,
	}, s.Logger)
}

// Scanner returns a backfill scanner that reports each page to onPage.
func (s *Stack) Scanner(onPage func(backfill.Progress)) *backfill.Scanner {
	return backfill.NewScanner(s.Store, s.Writer(), backfill.Options{
		PageSize: int(s.Config.Seed.PageSize),
		OnPage:   onPage,
	}, s.Logger)
}

// Engine returns a retrieval engine for the configured mode.
func (s *Stack) Engine() (*retrieval.Engine, error) {
	r := s.Config.Retrieval
	return retrieval.NewEngine(s.Store, s.Embedder, s.Index, retrieval.Config{
		Mode:      retrieval.Mode(r.Mode),
		DefaultK:  int(r.TopK),
		MaxK:      int(r.MaxK),
		Threshold: r.SimilarityThreshold,
	}, s.Logger)
}

// SaveRunState records res in the .corpus directory. A missing directory is
// not an error: the record is simply not kept.
func (s *Stack) SaveRunState(res *seed.Result) {
	if res == nil {
		return
	}
	manager := dotdir.NewManager()
	dir, err := manager.Target(s.ConfigDir)
	if err != nil || dir == "" {
		s.Logger.Debug("no .corpus directory, run state not saved")
		return
	}
	if err := manager.SaveRunState(res.RunState(), s.ConfigDir); err != nil {
		s.Logger.Warn("could not save run state", "error", err)
	}
}

// Close releases every opened component.
func (s *Stack) Close() error {
	var errs []error
	if s.Publisher != nil {
		errs = append(errs, s.Publisher.Close())
	}
	if s.Index != nil {
		errs = append(errs, s.Index.Close())
	}
	if s.Embedder != nil {
		errs = append(errs, s.Embedder.Close())
	}
	if s.Store != nil {
		errs = append(errs, s.Store.Close())
	}
	return errors.Join(errs...)
}

func sqlitePath(cfg *config.Config, configDir string) string {
	if cfg.Storage.Driver != "" && cfg.Storage.Driver != "sqlite" {
		return cfg.Storage.SQLitePath
	}
	return sqlitepath.ResolveSQLitePath(cfg.Storage.SQLitePath, configDir)
}

func resolveInDir(path, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if full, err := dotdir.NewManager().File(configDir, path); err == nil && full != "" {
		return full
	}
	return path
}
