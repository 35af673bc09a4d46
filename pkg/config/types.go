package config

// Config is the corpus configuration stored as config.toml in the .corpus/
// directory. It is built once per process and handed to each component by
// value; nothing mutates it after startup.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	Seed        SeedConfig        `toml:"seed"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Retrieval   RetrievalConfig   `toml:"retrieval"`
	API         APIConfig         `toml:"api"`
	Client      ClientConfig      `toml:"client"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	EventStream EventStreamConfig `toml:"eventstream"`
	Source      SourceConfig      `toml:"source"`
}

// StorageConfig selects the item store.
type StorageConfig struct {
	// Driver is one of "postgres", "sqlite" or "memory".
	Driver      string `toml:"driver,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
}

// SeedConfig controls dataset ingestion.
type SeedConfig struct {
	Enabled        bool   `toml:"enabled"`
	Dataset        string `toml:"dataset,omitempty"`
	EmbedOnSeed    bool   `toml:"embed_on_seed"`
	SkipIfNotEmpty bool   `toml:"skip_if_not_empty"`
	UseFingerprint bool   `toml:"use_fingerprint"`
	Reset          bool   `toml:"reset"`
	BatchSize      uint   `toml:"batch_size,omitempty"`
	UpdateChunk    uint   `toml:"update_chunk,omitempty"`
	PageSize       uint   `toml:"page_size,omitempty"`
	Watch          bool   `toml:"watch"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider is one of "http", "ollama" or "openai".
	Provider            string  `toml:"provider,omitempty"`
	Target              string  `toml:"target,omitempty"`
	Model               string  `toml:"model,omitempty"`
	APIKey              string  `toml:"api_key,omitempty"`
	Dimensions          uint    `toml:"dimensions,omitempty"`
	TimeoutSeconds      uint    `toml:"timeout_seconds,omitempty"`
	FallbackChunk       uint    `toml:"fallback_chunk,omitempty"`
	FallbackConcurrency uint    `toml:"fallback_concurrency,omitempty"`
	RateLimit           float64 `toml:"rate_limit,omitempty"`
	CachePath           string  `toml:"cache_path,omitempty"`
}

// RetrievalConfig holds query settings.
type RetrievalConfig struct {
	// Mode is "dense" or "sparse". It is a deployment choice, not per request.
	Mode                string  `toml:"mode,omitempty"`
	TopK                uint    `toml:"top_k,omitempty"`
	MaxK                uint    `toml:"max_k,omitempty"`
	SimilarityThreshold float64 `toml:"similarity_threshold,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds the API URL used by commands such as `corpus search`.
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// VectorStoreConfig configures the optional external vector index.
type VectorStoreConfig struct {
	// Provider is "", "qdrant" or "sqlitevec".
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Collection string `toml:"collection,omitempty"`
	APIKey     string `toml:"api_key,omitempty"`
}

// EventStreamConfig configures where seed events are published.
type EventStreamConfig struct {
	// Provider is "" (disabled) or "kafka".
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// SourceConfig holds credentials for s3:// dataset locations.
type SourceConfig struct {
	Endpoint  string `toml:"endpoint,omitempty"`
	Region    string `toml:"region,omitempty"`
	AccessKey string `toml:"access_key,omitempty"`
	SecretKey string `toml:"secret_key,omitempty"`
	UseSSL    bool   `toml:"use_ssl"`
}
