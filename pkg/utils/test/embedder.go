package testutils

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sync"

	"github.com/papercomputeco/corpus/pkg/embeddings"
	"github.com/papercomputeco/corpus/pkg/trigram"
)

// HashEmbedding is a deterministic embedding: every trigram of text bumps
// one of dims buckets chosen by hash, and the result is normalized. Equal
// texts give equal vectors; texts sharing words point the same way.
func HashEmbedding(text string, dims int) []float32 {
	v := make([]float32, dims)
	for t := range trigram.Trigrams(text) {
		h := fnv.New32a()
		h.Write([]byte(t))
		v[h.Sum32()%uint32(dims)]++
	}

	var norm float64
	for _, f := range v {
		norm += float64(f) * float64(f)
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}

// MockEmbedder is an in-process embeddings.BatchEmbedder using HashEmbedding.
type MockEmbedder struct {
	Dims int

	// Embeddings overrides the vector returned for a given text.
	Embeddings map[string][]float32

	// FailOn makes single-item and batch calls containing these texts fail.
	FailOn map[string]bool

	// Degenerate makes batch calls return the same vector for every text.
	Degenerate bool

	// BatchDown makes every batch call fail.
	BatchDown bool

	// AllDown makes every call fail.
	AllDown bool

	mu          sync.Mutex
	batchCalls  int
	singleCalls int
}

var _ embeddings.BatchEmbedder = (*MockEmbedder)(nil)

func NewMockEmbedder(dims int) *MockEmbedder {
	return &MockEmbedder{
		Dims:       dims,
		Embeddings: make(map[string][]float32),
		FailOn:     make(map[string]bool),
	}
}

func (m *MockEmbedder) vector(text string) []float32 {
	if v, ok := m.Embeddings[text]; ok {
		return v
	}
	return HashEmbedding(text, m.Dims)
}

func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.singleCalls++

	if m.AllDown || m.FailOn[text] {
		return nil, fmt.Errorf("%w: mock embedding failure for: %s", embeddings.ErrUpstream, text)
	}
	return m.vector(text), nil
}

func (m *MockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchCalls++

	if m.AllDown || m.BatchDown {
		return nil, fmt.Errorf("%w: mock batch endpoint down", embeddings.ErrUpstream)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if m.FailOn[t] {
			return nil, fmt.Errorf("%w: mock embedding failure for: %s", embeddings.ErrUpstream, t)
		}
		if m.Degenerate {
			out[i] = m.vector(texts[0])
			continue
		}
		out[i] = m.vector(t)
	}
	return out, nil
}

// Calls returns how many batch and single calls were made.
func (m *MockEmbedder) Calls() (batch, single int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batchCalls, m.singleCalls
}

func (m *MockEmbedder) Close() error {
	return nil
}
