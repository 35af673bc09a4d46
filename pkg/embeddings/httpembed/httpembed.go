// Package httpembed implements embeddings.BatchEmbedder against a plain
// HTTP embedding service exposing /embed and /embed-batch.
package httpembed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/corpus/pkg/embeddings"
)

const (
	// DefaultBaseURL is where the embedding service listens in the compose stack.
	DefaultBaseURL = "http://embedder:8081"

	// DefaultTimeout bounds every request.
	DefaultTimeout = 60 * time.Second

	batchSuffix  = "/embed-batch"
	singleSuffix = "/embed"
)

// Config holds configuration for the HTTP embedder.
type Config struct {
	// BaseURL may be the service root or either endpoint; both endpoints
	// are derived from it.
	BaseURL string

	// Timeout bounds each request. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// Embedder talks to the embedding service.
type Embedder struct {
	batchURL   string
	singleURL  string
	httpClient *http.Client
}

var _ embeddings.BatchEmbedder = (*Embedder)(nil)

// NewEmbedder creates an Embedder.
func NewEmbedder(cfg Config) (*Embedder, error) {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Embedder{
		batchURL:  BatchURL(base),
		singleURL: SingleURL(base),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// BatchURL derives the batch endpoint from a base URL.
func BatchURL(base string) string {
	switch {
	case strings.HasSuffix(base, batchSuffix):
		return base
	case strings.HasSuffix(base, singleSuffix):
		return strings.TrimSuffix(base, singleSuffix) + batchSuffix
	default:
		return strings.TrimSuffix(base, "/") + batchSuffix
	}
}

// SingleURL derives the single-item endpoint from a base URL.
func SingleURL(base string) string {
	switch {
	case strings.HasSuffix(base, singleSuffix):
		return base
	case strings.HasSuffix(base, batchSuffix):
		return strings.TrimSuffix(base, batchSuffix) + singleSuffix
	default:
		return strings.TrimSuffix(base, "/") + singleSuffix
	}
}

type batchRequest struct {
	Texts []string `json:"texts"`
}

type singleRequest struct {
	Text string `json:"text"`
}

// EmbedBatch posts {"texts": [...]} to the batch endpoint.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := e.post(ctx, e.batchURL, batchRequest{Texts: texts})
	if err != nil {
		return nil, err
	}
	vecs, err := ParseResponse(body, len(texts))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", embeddings.ErrUpstream, err)
	}
	return vecs, nil
}

// Embed posts {"text": ...} to the single-item endpoint.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := e.post(ctx, e.singleURL, singleRequest{Text: text})
	if err != nil {
		return nil, err
	}
	vecs, err := ParseResponse(body, 1)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", embeddings.ErrUpstream, err)
	}
	return vecs[0], nil
}

func (e *Embedder) post(ctx context.Context, url string, payload any) ([]byte, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sending request: %w", embeddings.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", embeddings.ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned status %d: %s",
			embeddings.ErrUpstream, url, resp.StatusCode, preview(body))
	}
	return body, nil
}

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	e.httpClient.CloseIdleConnections()
	return nil
}

func preview(body []byte) string {
	const limit = 250
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
