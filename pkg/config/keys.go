package config

import (
	"fmt"
	"strconv"
	"strings"
)

// configKey maps a user-facing dotted key to a getter and setter on *Config.
type configKey struct {
	name string
	get  func(c *Config) string
	set  func(c *Config, v string) error
}

func stringKey(name string, field func(c *Config) *string) configKey {
	return configKey{
		name: name,
		get:  func(c *Config) string { return *field(c) },
		set:  func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func uintKey(name string, field func(c *Config) *uint) configKey {
	return configKey{
		name: name,
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func boolKey(name string, field func(c *Config) *bool) configKey {
	return configKey{
		name: name,
		get:  func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = b
			return nil
		},
	}
}

func floatKey(name string, field func(c *Config) *float64) configKey {
	return configKey{
		name: name,
		get: func(c *Config) string {
			return strconv.FormatFloat(*field(c), 'g', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = f
			return nil
		},
	}
}

// configKeys lists every supported key in TOML section order.
var configKeys = []configKey{
	stringKey("storage.driver", func(c *Config) *string { return &c.Storage.Driver }),
	stringKey("storage.postgres_dsn", func(c *Config) *string { return &c.Storage.PostgresDSN }),
	stringKey("storage.sqlite_path", func(c *Config) *string { return &c.Storage.SQLitePath }),

	boolKey("seed.enabled", func(c *Config) *bool { return &c.Seed.Enabled }),
	stringKey("seed.dataset", func(c *Config) *string { return &c.Seed.Dataset }),
	boolKey("seed.embed_on_seed", func(c *Config) *bool { return &c.Seed.EmbedOnSeed }),
	boolKey("seed.skip_if_not_empty", func(c *Config) *bool { return &c.Seed.SkipIfNotEmpty }),
	boolKey("seed.use_fingerprint", func(c *Config) *bool { return &c.Seed.UseFingerprint }),
	boolKey("seed.reset", func(c *Config) *bool { return &c.Seed.Reset }),
	uintKey("seed.batch_size", func(c *Config) *uint { return &c.Seed.BatchSize }),
	uintKey("seed.update_chunk", func(c *Config) *uint { return &c.Seed.UpdateChunk }),
	uintKey("seed.page_size", func(c *Config) *uint { return &c.Seed.PageSize }),
	boolKey("seed.watch", func(c *Config) *bool { return &c.Seed.Watch }),

	stringKey("embedding.provider", func(c *Config) *string { return &c.Embedding.Provider }),
	stringKey("embedding.target", func(c *Config) *string { return &c.Embedding.Target }),
	stringKey("embedding.model", func(c *Config) *string { return &c.Embedding.Model }),
	stringKey("embedding.api_key", func(c *Config) *string { return &c.Embedding.APIKey }),
	uintKey("embedding.dimensions", func(c *Config) *uint { return &c.Embedding.Dimensions }),
	uintKey("embedding.timeout_seconds", func(c *Config) *uint { return &c.Embedding.TimeoutSeconds }),
	uintKey("embedding.fallback_chunk", func(c *Config) *uint { return &c.Embedding.FallbackChunk }),
	uintKey("embedding.fallback_concurrency", func(c *Config) *uint { return &c.Embedding.FallbackConcurrency }),
	floatKey("embedding.rate_limit", func(c *Config) *float64 { return &c.Embedding.RateLimit }),
	stringKey("embedding.cache_path", func(c *Config) *string { return &c.Embedding.CachePath }),

	stringKey("retrieval.mode", func(c *Config) *string { return &c.Retrieval.Mode }),
	uintKey("retrieval.top_k", func(c *Config) *uint { return &c.Retrieval.TopK }),
	uintKey("retrieval.max_k", func(c *Config) *uint { return &c.Retrieval.MaxK }),
	floatKey("retrieval.similarity_threshold", func(c *Config) *float64 { return &c.Retrieval.SimilarityThreshold }),

	stringKey("api.listen", func(c *Config) *string { return &c.API.Listen }),
	stringKey("client.api_target", func(c *Config) *string { return &c.Client.APITarget }),

	stringKey("vector_store.provider", func(c *Config) *string { return &c.VectorStore.Provider }),
	stringKey("vector_store.target", func(c *Config) *string { return &c.VectorStore.Target }),
	stringKey("vector_store.collection", func(c *Config) *string { return &c.VectorStore.Collection }),
	stringKey("vector_store.api_key", func(c *Config) *string { return &c.VectorStore.APIKey }),

	stringKey("eventstream.provider", func(c *Config) *string { return &c.EventStream.Provider }),
	{
		name: "eventstream.brokers",
		get:  func(c *Config) string { return strings.Join(c.EventStream.Brokers, ",") },
		set: func(c *Config, v string) error {
			c.EventStream.Brokers = splitList(v)
			return nil
		},
	},
	stringKey("eventstream.topic", func(c *Config) *string { return &c.EventStream.Topic }),

	stringKey("source.endpoint", func(c *Config) *string { return &c.Source.Endpoint }),
	stringKey("source.region", func(c *Config) *string { return &c.Source.Region }),
	stringKey("source.access_key", func(c *Config) *string { return &c.Source.AccessKey }),
	stringKey("source.secret_key", func(c *Config) *string { return &c.Source.SecretKey }),
	boolKey("source.use_ssl", func(c *Config) *bool { return &c.Source.UseSSL }),
}

func lookupKey(name string) (configKey, bool) {
	for _, k := range configKeys {
		if k.name == name {
			return k, true
		}
	}
	return configKey{}, false
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ValidConfigKeys returns all supported configuration keys in section order.
func ValidConfigKeys() []string {
	names := make([]string, len(configKeys))
	for i, k := range configKeys {
		names[i] = k.name
	}
	return names
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := lookupKey(key)
	return ok
}

// Value returns the string form of key on c.
func (c *Config) Value(key string) (string, error) {
	k, ok := lookupKey(key)
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}
	return k.get(c), nil
}
