package config

const (
	defaultStorageDriver = "sqlite"

	defaultBatchSize   = 1000
	defaultUpdateChunk = 200
	defaultPageSize    = 1000

	defaultEmbeddingProvider   = "http"
	defaultEmbeddingTarget     = "http://embedder:8081"
	defaultEmbeddingDimensions = 384
	defaultEmbeddingTimeout    = 60
	defaultFallbackChunk       = 64

	defaultRetrievalMode = "dense"
	defaultTopK          = 5
	defaultMaxK          = 100
	defaultThreshold     = 0.3

	defaultAPIListen       = ":8080"
	defaultClientAPITarget = "http://localhost:8080"

	defaultCollection = "rag_items"

	defaultKafkaBroker = "localhost:9092"
	defaultTopic       = "corpus.events"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		Seed: SeedConfig{
			Enabled:        true,
			EmbedOnSeed:    true,
			UseFingerprint: true,
			BatchSize:      defaultBatchSize,
			UpdateChunk:    defaultUpdateChunk,
			PageSize:       defaultPageSize,
		},
		Embedding: EmbeddingConfig{
			Provider:            defaultEmbeddingProvider,
			Target:              defaultEmbeddingTarget,
			Dimensions:          defaultEmbeddingDimensions,
			TimeoutSeconds:      defaultEmbeddingTimeout,
			FallbackChunk:       defaultFallbackChunk,
			FallbackConcurrency: 1,
		},
		Retrieval: RetrievalConfig{
			Mode:                defaultRetrievalMode,
			TopK:                defaultTopK,
			MaxK:                defaultMaxK,
			SimilarityThreshold: defaultThreshold,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		VectorStore: VectorStoreConfig{
			Collection: defaultCollection,
		},
		EventStream: EventStreamConfig{
			Brokers: []string{defaultKafkaBroker},
			Topic:   defaultTopic,
		},
		Source: SourceConfig{
			UseSSL: true,
		},
	}
}
