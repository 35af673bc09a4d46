package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/papercomputeco/corpus/pkg/dotdir"
)

// legacyEnv maps older deployment variables onto config keys. They are
// consulted after the CORPUS_ prefixed name.
var legacyEnv = map[string][]string{
	"embedding.target":     {"EMBEDDER_URL"},
	"embedding.dimensions": {"RAG_EMBED_DIM"},
	"storage.postgres_dsn": {"DATABASE_URL"},
	"seed.dataset":         {"SEED_DATASET"},
}

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the CORPUS_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (CORPUS_SEED_DATASET, CORPUS_API_LISTEN, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()
	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	target, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}
	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("CORPUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range legacyEnv {
		envs := append([]string{"CORPUS_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	return v, nil
}

// Unmarshal builds the immutable Config value from every layer of v and
// validates it.
func Unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
	})
	if err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)

	v.SetDefault("seed.enabled", d.Seed.Enabled)
	v.SetDefault("seed.dataset", d.Seed.Dataset)
	v.SetDefault("seed.embed_on_seed", d.Seed.EmbedOnSeed)
	v.SetDefault("seed.skip_if_not_empty", d.Seed.SkipIfNotEmpty)
	v.SetDefault("seed.use_fingerprint", d.Seed.UseFingerprint)
	v.SetDefault("seed.reset", d.Seed.Reset)
	v.SetDefault("seed.batch_size", d.Seed.BatchSize)
	v.SetDefault("seed.update_chunk", d.Seed.UpdateChunk)
	v.SetDefault("seed.page_size", d.Seed.PageSize)
	v.SetDefault("seed.watch", d.Seed.Watch)

	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.api_key", d.Embedding.APIKey)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)
	v.SetDefault("embedding.timeout_seconds", d.Embedding.TimeoutSeconds)
	v.SetDefault("embedding.fallback_chunk", d.Embedding.FallbackChunk)
	v.SetDefault("embedding.fallback_concurrency", d.Embedding.FallbackConcurrency)
	v.SetDefault("embedding.rate_limit", d.Embedding.RateLimit)
	v.SetDefault("embedding.cache_path", d.Embedding.CachePath)

	v.SetDefault("retrieval.mode", d.Retrieval.Mode)
	v.SetDefault("retrieval.top_k", d.Retrieval.TopK)
	v.SetDefault("retrieval.max_k", d.Retrieval.MaxK)
	v.SetDefault("retrieval.similarity_threshold", d.Retrieval.SimilarityThreshold)

	v.SetDefault("api.listen", d.API.Listen)
	v.SetDefault("client.api_target", d.Client.APITarget)

	v.SetDefault("vector_store.provider", d.VectorStore.Provider)
	v.SetDefault("vector_store.target", d.VectorStore.Target)
	v.SetDefault("vector_store.collection", d.VectorStore.Collection)
	v.SetDefault("vector_store.api_key", d.VectorStore.APIKey)

	v.SetDefault("eventstream.provider", d.EventStream.Provider)
	v.SetDefault("eventstream.brokers", d.EventStream.Brokers)
	v.SetDefault("eventstream.topic", d.EventStream.Topic)

	v.SetDefault("source.endpoint", d.Source.Endpoint)
	v.SetDefault("source.region", d.Source.Region)
	v.SetDefault("source.access_key", d.Source.AccessKey)
	v.SetDefault("source.secret_key", d.Source.SecretKey)
	v.SetDefault("source.use_ssl", d.Source.UseSSL)
}
