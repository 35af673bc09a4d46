// Package inmemory provides a storage.Driver held entirely in process memory.
// It backs tests and short-lived `corpus serve --storage-driver memory` runs.
package inmemory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/papercomputeco/corpus/pkg/storage"
	"github.com/papercomputeco/corpus/pkg/trigram"
	"github.com/papercomputeco/corpus/pkg/vector"
)

// Driver implements storage.Driver using maps guarded by a RWMutex.
type Driver struct {
	mu sync.RWMutex

	// items is keyed by item id
	items map[int64]storage.Item

	// seeds is keyed by fingerprint
	seeds map[string]time.Time

	dimensions int
}

var _ storage.Driver = (*Driver)(nil)

// NewDriver creates an empty store. dimensions of 0 disables the length check.
func NewDriver(dimensions int) *Driver {
	return &Driver{
		items:      make(map[int64]storage.Item),
		seeds:      make(map[string]time.Time),
		dimensions: dimensions,
	}
}

// Bootstrap has nothing to build in memory.
func (d *Driver) Bootstrap(context.Context) error { return nil }

func (d *Driver) Count(context.Context) (int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return int64(len(d.items)), nil
}

func (d *Driver) Truncate(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items = make(map[int64]storage.Item)
	d.seeds = make(map[string]time.Time)
	return nil
}

func (d *Driver) UpsertItems(_ context.Context, items []storage.Item) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	items = storage.DedupeByID(items)
	for _, it := range items {
		stored := cloneItem(it)
		if prev, ok := d.items[it.ID]; ok && prev.Text == it.Text && stored.Embedding == nil {
			stored.Embedding = prev.Embedding
		}
		d.items[it.ID] = stored
	}
	return len(items), nil
}

func (d *Driver) UpdateEmbeddings(_ context.Context, updates []storage.EmbeddingUpdate) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, u := range updates {
		if err := vector.CheckDimension(u.Embedding, d.dimensions); err != nil {
			return 0, storage.Persistence("updating embeddings", err)
		}
	}

	changed := 0
	for _, u := range updates {
		it, ok := d.items[u.ID]
		if !ok {
			continue
		}
		it.Embedding = slices.Clone(u.Embedding)
		d.items[u.ID] = it
		changed++
	}
	return changed, nil
}

func (d *Driver) MissingEmbeddings(_ context.Context, afterID int64, limit int) ([]storage.Item, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []storage.Item
	for _, it := range d.sorted() {
		if it.ID <= afterID || it.Embedding != nil {
			continue
		}
		out = append(out, cloneItem(it))
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (d *Driver) CountMissing(context.Context) (int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var n int64
	for _, it := range d.items {
		if it.Embedding == nil {
			n++
		}
	}
	return n, nil
}

func (d *Driver) GetItems(_ context.Context, ids []int64) ([]storage.Item, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]storage.Item, 0, len(ids))
	for _, id := range ids {
		if it, ok := d.items[id]; ok {
			out = append(out, cloneItem(it))
		}
	}
	return out, nil
}

func (d *Driver) Stats(context.Context) (*storage.Stats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stats := &storage.Stats{
		Items:            int64(len(d.items)),
		SeedApplications: int64(len(d.seeds)),
	}
	distinct := make(map[string]struct{})
	for _, it := range d.items {
		if it.Embedding == nil {
			continue
		}
		stats.Embedded++
		distinct[vector.Encode(it.Embedding)] = struct{}{}
	}
	stats.Missing = stats.Items - stats.Embedded
	stats.DistinctEmbeddings = int64(len(distinct))
	return stats, nil
}

func (d *Driver) HasSeed(_ context.Context, fingerprint string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.seeds[fingerprint]
	return ok, nil
}

func (d *Driver) RecordSeed(_ context.Context, fingerprint string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seeds[fingerprint]; ok {
		return false, nil
	}
	d.seeds[fingerprint] = time.Now().UTC()
	return true, nil
}

func (d *Driver) SeedApplications(context.Context) ([]storage.SeedApplication, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]storage.SeedApplication, 0, len(d.seeds))
	for fp, at := range d.seeds {
		out = append(out, storage.SeedApplication{Fingerprint: fp, AppliedAt: at})
	}
	slices.SortFunc(out, func(a, b storage.SeedApplication) int {
		if c := a.AppliedAt.Compare(b.AppliedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Fingerprint, b.Fingerprint)
	})
	return out, nil
}

func (d *Driver) DenseSearch(_ context.Context, query []float32, k int) ([]storage.Hit, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var hits []storage.Hit
	for _, it := range d.items {
		if it.Embedding == nil || len(it.Embedding) != len(query) {
			continue
		}
		hits = append(hits, storage.Hit{
			Item:  cloneItem(it),
			Score: 1 - vector.CosineDistance(query, it.Embedding),
		})
	}
	return top(hits, k), nil
}

func (d *Driver) SparseSearch(_ context.Context, query string, threshold float64, k int) ([]storage.Hit, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var hits []storage.Hit
	for _, it := range d.items {
		if score, ok := trigram.Matches(it.Text, it.Label, query, threshold); ok {
			hits = append(hits, storage.Hit{Item: cloneItem(it), Score: score})
		}
	}
	return top(hits, k), nil
}

func (d *Driver) RankAll(_ context.Context, query string, k int) ([]storage.Hit, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	hits := make([]storage.Hit, 0, len(d.items))
	for _, it := range d.items {
		hits = append(hits, storage.Hit{
			Item:  cloneItem(it),
			Score: trigram.Similarity(it.Text+" "+it.Label, query),
		})
	}
	return top(hits, k), nil
}

func (d *Driver) Close() error { return nil }

// sorted returns items by ascending id. Caller holds the lock.
func (d *Driver) sorted() []storage.Item {
	out := make([]storage.Item, 0, len(d.items))
	for _, it := range d.items {
		out = append(out, it)
	}
	slices.SortFunc(out, func(a, b storage.Item) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func top(hits []storage.Hit, k int) []storage.Hit {
	storage.SortHits(hits)
	if k >= 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func cloneItem(it storage.Item) storage.Item {
	it.Tags = slices.Clone(it.Tags)
	it.Embedding = slices.Clone(it.Embedding)
	return it
}
