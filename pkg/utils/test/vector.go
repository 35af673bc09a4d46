package testutils

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/papercomputeco/corpus/pkg/vector"
)

// MockIndex is an in-memory vector.Index.
type MockIndex struct {
	mu     sync.Mutex
	points map[int64][]float32

	// FailUpsert makes Upsert return an error.
	FailUpsert bool

	Resets int
}

var _ vector.Index = (*MockIndex)(nil)

func NewMockIndex() *MockIndex {
	return &MockIndex{points: make(map[int64][]float32)}
}

func (m *MockIndex) Upsert(_ context.Context, points []vector.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailUpsert {
		return errors.New("mock index upsert failure")
	}
	for _, p := range points {
		m.points[p.ID] = slices.Clone(p.Embedding)
	}
	return nil
}

func (m *MockIndex) Query(_ context.Context, embedding []float32, k int) ([]vector.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	matches := make([]vector.Match, 0, len(m.points))
	for id, v := range m.points {
		matches = append(matches, vector.Match{ID: id, Score: float32(1 - vector.CosineDistance(embedding, v))})
	}
	slices.SortFunc(matches, func(a, b vector.Match) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (m *MockIndex) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points = make(map[int64][]float32)
	m.Resets++
	return nil
}

// Len returns the number of stored points.
func (m *MockIndex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.points)
}

func (m *MockIndex) Close() error {
	return nil
}
