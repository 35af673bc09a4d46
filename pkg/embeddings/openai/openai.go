// Package openai implements embeddings.BatchEmbedder with the OpenAI
// embeddings API or any service compatible with it.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/papercomputeco/corpus/pkg/embeddings"
)

// DefaultModel is used when no model is configured.
const DefaultModel = string(goopenai.SmallEmbedding3)

// Config holds configuration for the OpenAI embedder.
type Config struct {
	// BaseURL overrides the API root, e.g. for a local compatible server.
	BaseURL string

	// APIKey falls back to OPENAI_API_KEY.
	APIKey string

	Model string

	// Dimensions asks text-embedding-3 models to shorten their output.
	Dimensions int

	Timeout time.Duration
}

// Embedder wraps a go-openai client.
type Embedder struct {
	client     *goopenai.Client
	model      string
	dimensions int
}

var _ embeddings.BatchEmbedder = (*Embedder)(nil)

// NewEmbedder creates an Embedder.
func NewEmbedder(cfg Config) (*Embedder, error) {
	key := cfg.APIKey
	if key == "" {
		key = os.Getenv("OPENAI_API_KEY")
	}
	if key == "" && cfg.BaseURL == "" {
		return nil, errors.New("openai api key is required")
	}

	clientCfg := goopenai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Embedder{
		client:     goopenai.NewClientWithConfig(clientCfg),
		model:      model,
		dimensions: cfg.Dimensions,
	}, nil
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", embeddings.ErrUpstream)
	}
	return vecs[0], nil
}

// EmbedBatch returns vectors ordered by the index the API reports.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequestStrings{
		Input:      texts,
		Model:      goopenai.EmbeddingModel(e.model),
		Dimensions: e.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", embeddings.ErrUpstream, err)
	}

	out := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", embeddings.ErrUpstream, d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func (e *Embedder) Close() error {
	return nil
}
