// Package embeddingutils is the embeddings utility package
package embeddingutils

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/papercomputeco/corpus/pkg/embeddings"
	"github.com/papercomputeco/corpus/pkg/embeddings/cache"
	"github.com/papercomputeco/corpus/pkg/embeddings/httpembed"
	"github.com/papercomputeco/corpus/pkg/embeddings/ollama"
	"github.com/papercomputeco/corpus/pkg/embeddings/openai"
)

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	APIKey       string
	Dimensions   int
	Timeout      time.Duration
}

func NewEmbedder(o *NewEmbedderOpts) (embeddings.Embedder, error) {
	switch o.ProviderType {
	case "", "http":
		return httpembed.NewEmbedder(httpembed.Config{
			BaseURL: o.TargetURL,
			Timeout: o.Timeout,
		})
	case "ollama":
		return ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL: o.TargetURL,
			Model:   o.Model,
			Timeout: o.Timeout,
		})
	case "openai":
		return openai.NewEmbedder(openai.Config{
			BaseURL:    o.TargetURL,
			APIKey:     o.APIKey,
			Model:      o.Model,
			Dimensions: o.Dimensions,
			Timeout:    o.Timeout,
		})
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", o.ProviderType)
	}
}

type NewClientOpts struct {
	NewEmbedderOpts
	FallbackChunk       int
	FallbackConcurrency int
	RateLimit           float64

	// CachePath enables the bbolt vector cache when set.
	CachePath string

	Logger *slog.Logger
}

// NewClient builds the provider, the optional cache and the Client around them.
func NewClient(o *NewClientOpts) (*embeddings.Client, error) {
	provider, err := NewEmbedder(&o.NewEmbedderOpts)
	if err != nil {
		return nil, err
	}

	cfg := embeddings.ClientConfig{
		Dimensions:          o.Dimensions,
		FallbackChunk:       o.FallbackChunk,
		FallbackConcurrency: o.FallbackConcurrency,
		RateLimit:           o.RateLimit,
	}
	if o.CachePath != "" {
		store, err := cache.Open(o.CachePath, cache.Scope{
			Provider:   o.ProviderType,
			Model:      o.Model,
			Dimensions: o.Dimensions,
		})
		if err != nil {
			provider.Close()
			return nil, err
		}
		cfg.Cache = store
	}
	return embeddings.NewClient(provider, cfg, o.Logger), nil
}
