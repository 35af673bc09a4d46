package embeddings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/papercomputeco/corpus/pkg/vector"
)

const (
	// DefaultFallbackChunk is how many single-item calls are grouped per chunk.
	DefaultFallbackChunk = 64

	// DefaultFallbackConcurrency keeps single-item calls sequential.
	DefaultFallbackConcurrency = 1
)

// ErrDegenerate marks a batch response in which every vector is identical
// for inputs that are not.
var ErrDegenerate = errors.New("degenerate batch response")

// ClientConfig configures a Client.
type ClientConfig struct {
	// Dimensions is the expected vector length. Zero disables the check.
	Dimensions int

	// FallbackChunk and FallbackConcurrency shape the single-item path.
	FallbackChunk       int
	FallbackConcurrency int

	// RateLimit caps upstream requests per second. Zero is unlimited.
	RateLimit float64

	// Cache is consulted before the upstream. Optional.
	Cache Cache
}

// Stats describes how one EmbedBatch call was served.
type Stats struct {
	Texts    int
	Cached   int
	Batched  int
	Single   int
	Failed   int
	Fallback bool

	// Reason is why the batch result was rejected, empty when it was not.
	Reason string
}

// Embedded is the number of texts that got a vector.
func (s Stats) Embedded() int {
	return s.Cached + s.Batched + s.Single
}

// Client wraps a provider with batch validation, the single-item fallback,
// rate limiting and an optional cache.
type Client struct {
	provider    Embedder
	dimensions  int
	chunk       int
	concurrency int
	limiter     *rate.Limiter
	cache       Cache
	logger      *slog.Logger
}

// NewClient creates a Client over provider.
func NewClient(provider Embedder, c ClientConfig, logger *slog.Logger) *Client {
	cl := &Client{
		provider:    provider,
		dimensions:  c.Dimensions,
		chunk:       c.FallbackChunk,
		concurrency: c.FallbackConcurrency,
		cache:       c.Cache,
		logger:      logger,
	}
	if cl.chunk <= 0 {
		cl.chunk = DefaultFallbackChunk
	}
	if cl.concurrency <= 0 {
		cl.concurrency = DefaultFallbackConcurrency
	}
	if c.RateLimit > 0 {
		cl.limiter = rate.NewLimiter(rate.Limit(c.RateLimit), 1)
	}
	return cl
}

// Dimensions returns the expected vector length.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// EmbedOne embeds a single text, typically a query.
func (c *Client) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if c.cache != nil {
		if hit, err := c.cache.Lookup([]string{text}); err == nil && hit[0] != nil {
			return hit[0], nil
		}
	}

	v, err := c.single(ctx, text)
	if err != nil {
		return nil, err
	}
	c.store([]string{text}, [][]float32{v})
	return v, nil
}

// EmbedBatch returns one slot per text, nil where no vector could be
// obtained. The batch endpoint is tried first; a response with the wrong
// count, a wrong dimension or identical vectors for distinct inputs is
// discarded and every remaining text is embedded on its own. Only context
// cancellation is returned as an error.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, Stats, error) {
	stats := Stats{Texts: len(texts)}
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out, stats, nil
	}

	pending := c.fromCache(texts, out, &stats)
	if len(pending) == 0 {
		return out, stats, nil
	}

	pendingTexts := make([]string, len(pending))
	for i, idx := range pending {
		pendingTexts[i] = texts[idx]
	}

	if be, ok := c.provider.(BatchEmbedder); ok {
		vecs, err := c.batch(ctx, be, pendingTexts)
		if err == nil {
			for i, idx := range pending {
				out[idx] = vecs[i]
			}
			stats.Batched = len(pending)
			c.store(pendingTexts, vecs)
			return out, stats, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, stats, ctxErr
		}
		stats.Fallback = true
		stats.Reason = err.Error()
		c.logger.Warn("batch embedding rejected, falling back to single requests",
			"texts", len(pending),
			"error", err,
		)
	}

	if err := c.fallback(ctx, texts, pending, out, &stats); err != nil {
		return out, stats, err
	}
	return out, stats, nil
}

// Close closes the provider and the cache.
func (c *Client) Close() error {
	var errs []error
	if err := c.provider.Close(); err != nil {
		errs = append(errs, err)
	}
	if c.cache != nil {
		if err := c.cache.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// fromCache fills cached slots of out and returns the indices still missing.
func (c *Client) fromCache(texts []string, out [][]float32, stats *Stats) []int {
	pending := make([]int, 0, len(texts))
	var hits [][]float32
	if c.cache != nil {
		var err error
		if hits, err = c.cache.Lookup(texts); err != nil {
			c.logger.Warn("embedding cache lookup failed", "error", err)
			hits = nil
		}
	}
	for i := range texts {
		if hits != nil && hits[i] != nil && vector.CheckDimension(hits[i], c.dimensions) == nil {
			out[i] = hits[i]
			stats.Cached++
			continue
		}
		pending = append(pending, i)
	}
	return pending
}

func (c *Client) batch(ctx context.Context, be BatchEmbedder, texts []string) ([][]float32, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	vecs, err := be.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d vectors, got %d", ErrUpstream, len(texts), len(vecs))
	}
	for i, v := range vecs {
		if err := c.checkVector(v); err != nil {
			return nil, fmt.Errorf("vector %d: %w", i, err)
		}
	}
	if Degenerate(texts, vecs) {
		return nil, fmt.Errorf("%w: %w: %d identical vectors", ErrUpstream, ErrDegenerate, len(vecs))
	}
	return vecs, nil
}

// fallback embeds texts[pending] one by one in chunks. Failures leave nil.
func (c *Client) fallback(ctx context.Context, texts []string, pending []int, out [][]float32, stats *Stats) error {
	var mu sync.Mutex
	for start := 0; start < len(pending); start += c.chunk {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+c.chunk, len(pending))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.concurrency)
		for _, idx := range pending[start:end] {
			g.Go(func() error {
				v, err := c.single(gctx, texts[idx])
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					stats.Failed++
					c.logger.Warn("single embedding failed", "index", idx, "error", err)
					return nil
				}
				out[idx] = v
				stats.Single++
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		var done []string
		var vecs [][]float32
		for _, idx := range pending[start:end] {
			if out[idx] != nil {
				done = append(done, texts[idx])
				vecs = append(vecs, out[idx])
			}
		}
		c.store(done, vecs)
	}
	return nil
}

func (c *Client) single(ctx context.Context, text string) ([]float32, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	v, err := c.provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.checkVector(v); err != nil {
		return nil, err
	}
	return v, nil
}

func (c *Client) checkVector(v []float32) error {
	if len(v) == 0 {
		return fmt.Errorf("%w: empty vector", ErrUpstream)
	}
	if err := vector.CheckDimension(v, c.dimensions); err != nil {
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	return nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *Client) store(texts []string, vecs [][]float32) {
	if c.cache == nil || len(texts) == 0 {
		return
	}
	if err := c.cache.Store(texts, vecs); err != nil {
		c.logger.Warn("embedding cache store failed", "error", err)
	}
}

// Degenerate reports whether more than one vector came back, all of them
// serialize identically, and the inputs were not all the same text.
func Degenerate(texts []string, vecs [][]float32) bool {
	if len(vecs) < 2 {
		return false
	}
	first := vector.Encode(vecs[0])
	for _, v := range vecs[1:] {
		if vector.Encode(v) != first {
			return false
		}
	}
	for _, t := range texts[1:] {
		if t != texts[0] {
			return true
		}
	}
	return false
}
