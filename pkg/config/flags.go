package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline, so the same logical flag
// reads the same on `corpus seed`, `corpus serve` and `corpus backfill`.
type Flag struct {
	// Name is the long flag name (e.g. "dataset").
	Name string

	// Shorthand is the one-letter short flag (e.g. "d"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "seed.dataset").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag registry keys to their definitions.
type FlagSet map[string]Flag

// Flag registry keys.
const (
	FlagStorageDriver  = "storage-driver"
	FlagPostgresDSN    = "postgres-dsn"
	FlagSQLite         = "sqlite"
	FlagDataset        = "dataset"
	FlagReset          = "reset"
	FlagEmbedOnSeed    = "embed"
	FlagSkipNotEmpty   = "skip-if-not-empty"
	FlagFingerprint    = "fingerprint"
	FlagBatchSize      = "batch-size"
	FlagWatch          = "watch"
	FlagEmbeddingProv  = "embedding-provider"
	FlagEmbeddingTgt   = "embedding-target"
	FlagEmbeddingModel = "embedding-model"
	FlagEmbeddingDims  = "embedding-dimensions"
	FlagRetrievalMode  = "mode"
	FlagTopK           = "top-k"
	FlagAPIListen      = "listen"
	FlagAPITarget      = "api-target"
	FlagIndexProvider  = "vector-store-provider"
	FlagIndexTarget    = "vector-store-target"
	FlagStreamProvider = "eventstream-provider"
	FlagStreamBrokers  = "kafka-brokers"
)

// Flags is the registry shared by every corpus command.
var Flags = FlagSet{
	FlagStorageDriver:  {Name: "storage-driver", ViperKey: "storage.driver", Description: "Item store driver: postgres, sqlite or memory"},
	FlagPostgresDSN:    {Name: "postgres-dsn", ViperKey: "storage.postgres_dsn", Description: "Postgres connection string"},
	FlagSQLite:         {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to the SQLite database (default .corpus/corpus.db)"},
	FlagDataset:        {Name: "dataset", Shorthand: "d", ViperKey: "seed.dataset", Description: "Dataset location: a file path, classpath:, or s3://bucket/key"},
	FlagReset:          {Name: "reset", ViperKey: "seed.reset", Description: "Truncate items and seed history before seeding"},
	FlagEmbedOnSeed:    {Name: "embed", ViperKey: "seed.embed_on_seed", Description: "Embed items while seeding"},
	FlagSkipNotEmpty:   {Name: "skip-if-not-empty", ViperKey: "seed.skip_if_not_empty", Description: "Skip ingestion when the store already holds items"},
	FlagFingerprint:    {Name: "fingerprint", ViperKey: "seed.use_fingerprint", Description: "Skip datasets whose content hash was already applied"},
	FlagBatchSize:      {Name: "batch-size", ViperKey: "seed.batch_size", Description: "Items per insert batch"},
	FlagWatch:          {Name: "watch", ViperKey: "seed.watch", Description: "Re-seed when the dataset file changes"},
	FlagEmbeddingProv:  {Name: "embedding-provider", ViperKey: "embedding.provider", Description: "Embedding provider: http, ollama or openai"},
	FlagEmbeddingTgt:   {Name: "embedding-target", ViperKey: "embedding.target", Description: "Embedding service base URL"},
	FlagEmbeddingModel: {Name: "embedding-model", ViperKey: "embedding.model", Description: "Embedding model name"},
	FlagEmbeddingDims:  {Name: "embedding-dimensions", ViperKey: "embedding.dimensions", Description: "Embedding dimension D"},
	FlagRetrievalMode:  {Name: "mode", Shorthand: "m", ViperKey: "retrieval.mode", Description: "Retrieval mode: dense or sparse"},
	FlagTopK:           {Name: "top-k", Shorthand: "k", ViperKey: "retrieval.top_k", Description: "Default number of results"},
	FlagAPIListen:      {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	FlagAPITarget:      {Name: "api-target", Shorthand: "a", ViperKey: "client.api_target", Description: "Corpus API server URL"},
	FlagIndexProvider:  {Name: "vector-store-provider", ViperKey: "vector_store.provider", Description: "Optional vector index: qdrant or sqlitevec"},
	FlagIndexTarget:    {Name: "vector-store-target", ViperKey: "vector_store.target", Description: "Vector index address or path"},
	FlagStreamProvider: {Name: "eventstream-provider", ViperKey: "eventstream.provider", Description: "Event stream provider: kafka"},
	FlagStreamBrokers:  {Name: "kafka-brokers", ViperKey: "eventstream.brokers", Description: "Comma separated Kafka brokers"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}
	cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaults().GetString(def.ViperKey), def.Description)
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, key string, target *uint) {
	def, ok := fs[key]
	if !ok {
		return
	}
	cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaults().GetUint(def.ViperKey), def.Description)
}

// AddBoolFlag registers a bool flag on cmd from the given FlagSet.
func AddBoolFlag(cmd *cobra.Command, fs FlagSet, key string, target *bool) {
	def, ok := fs[key]
	if !ok {
		return
	}
	cmd.Flags().BoolVarP(target, def.Name, def.Shorthand, defaults().GetBool(def.ViperKey), def.Description)
}

// AddStringSliceFlag registers a comma separated list flag on cmd.
func AddStringSliceFlag(cmd *cobra.Command, fs FlagSet, key string, target *[]string) {
	def, ok := fs[key]
	if !ok {
		return
	}
	cmd.Flags().StringSliceVarP(target, def.Name, def.Shorthand, defaults().GetStringSlice(def.ViperKey), def.Description)
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
// Only flags the user actually set override lower layers.
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, keys []string) {
	for _, key := range keys {
		def, ok := fs[key]
		if !ok {
			continue
		}
		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}
		_ = v.BindPFlag(def.ViperKey, f)
	}
}

func defaults() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
}
