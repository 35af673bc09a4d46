// Package embeddings turns texts into fixed-dimension vectors through an
// upstream embedding service.
package embeddings

import (
	"context"
	"errors"
)

// ErrUpstream wraps every failure of the embedding service: transport
// errors, non-success statuses, unparsable bodies and unusable vectors.
var ErrUpstream = errors.New("embedding upstream error")

// Embedder provides text embedding capabilities.
type Embedder interface {
	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}

// BatchEmbedder is an Embedder with a batch endpoint. EmbedBatch returns the
// vectors as the upstream sent them; Client validates count, dimension and
// degeneracy.
type BatchEmbedder interface {
	Embedder
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Cache stores validated vectors by text. Lookup returns a slice aligned with
// texts holding nil for misses.
type Cache interface {
	Lookup(texts []string) ([][]float32, error)
	Store(texts []string, vectors [][]float32) error
	Close() error
}
