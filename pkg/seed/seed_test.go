package seed_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/corpus/pkg/dataset"
	"github.com/papercomputeco/corpus/pkg/embeddings"
	"github.com/papercomputeco/corpus/pkg/eventstream"
	"github.com/papercomputeco/corpus/pkg/fingerprint"
	"github.com/papercomputeco/corpus/pkg/logger"
	"github.com/papercomputeco/corpus/pkg/seed"
	"github.com/papercomputeco/corpus/pkg/storage"
	"github.com/papercomputeco/corpus/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/corpus/pkg/utils/test"
)

const dims = 16

const jsonlDataset = `{"id": 1, "text": "  hello   world ", "label": "greeting", "label_id": 1}
{"id": 2, "text": "hello there", "label": "greeting", "label_id": 1, "tags": [3, 4]}
{"id": 3, "text": "goodbye", "label": "farewell", "label_id": 2, "reason": "polite"}
{"id": 4, "text": "   ", "label": "empty", "label_id": 0}
`

type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.SeedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event *eventstream.SeedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType
	}
	return out
}

type panickingStore struct {
	storage.Driver
}

func (panickingStore) Bootstrap(context.Context) error {
	panic("bootstrap exploded")
}

// rewritingStore replaces the dataset file when the seed history is
// consulted, between the skip check and ingestion.
type rewritingStore struct {
	storage.Driver
	path    string
	content string
}

func (r rewritingStore) HasSeed(ctx context.Context, fp string) (bool, error) {
	if err := os.WriteFile(r.path, []byte(r.content), 0o644); err != nil {
		return false, err
	}
	return r.Driver.HasSeed(ctx, fp)
}

func writeDataset(dir, name, content string) string {
	path := filepath.Join(dir, name)
	Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
	return path
}

var _ = Describe("Seeder", func() {
	var (
		ctx       context.Context
		store     *inmemory.Driver
		mock      *testutils.MockEmbedder
		client    *embeddings.Client
		publisher *recordingPublisher
		path      string
		opts      seed.Options
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = inmemory.NewDriver(dims)
		mock = testutils.NewMockEmbedder(dims)
		client = embeddings.NewClient(mock, embeddings.ClientConfig{Dimensions: dims}, logger.Nop())
		publisher = &recordingPublisher{}
		path = writeDataset(GinkgoT().TempDir(), "items.jsonl", jsonlDataset)
		opts = seed.Options{
			Enabled:        true,
			Location:       path,
			EmbedOnSeed:    true,
			UseFingerprint: true,
			StorageDriver:  "memory",
			Publisher:      publisher,
		}
	})

	newSeeder := func() *seed.Seeder {
		return seed.NewSeeder(store, client, opts, logger.Nop())
	}

	It("ingests, embeds and records the dataset", func() {
		res, err := newSeeder().Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(res.Outcome).To(Equal(seed.OutcomeIngested))
		Expect(res.Inserted).To(Equal(3))
		Expect(res.Embedded).To(Equal(3))
		Expect(res.Blank).To(Equal(1))
		Expect(res.Fingerprint).To(HaveLen(64))

		items, err := store.GetItems(ctx, []int64{1, 2, 4})
		Expect(err).NotTo(HaveOccurred())
		Expect(items).To(HaveLen(2))
		for _, it := range items {
			if it.ID == 1 {
				Expect(it.Text).To(Equal("hello world"))
			}
			Expect(it.Embedding).To(HaveLen(dims))
		}

		applied, err := store.HasSeed(ctx, res.Fingerprint)
		Expect(err).NotTo(HaveOccurred())
		Expect(applied).To(BeTrue())

		Expect(publisher.types()).To(Equal([]string{
			eventstream.EventTypeSeedApplied,
			eventstream.EventTypeBackfillCompleted,
		}))
	})

	It("skips an unchanged dataset on the second run", func() {
		_, err := newSeeder().Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		batchBefore, singleBefore := mock.Calls()

		res, err := newSeeder().Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Outcome).To(Equal(seed.OutcomeSkippedFingerprint))
		Expect(res.Backfill).NotTo(BeNil())
		Expect(res.Backfill.Missing).To(BeZero())

		batchAfter, singleAfter := mock.Calls()
		Expect(batchAfter).To(Equal(batchBefore))
		Expect(singleAfter).To(Equal(singleBefore))

		count, err := store.Count(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(int64(3)))

		history, err := store.SeedApplications(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(history).To(HaveLen(1))
	})

	It("ingests again when the dataset changes", func() {
		_, err := newSeeder().Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		writeDataset(filepath.Dir(path), "items.jsonl", jsonlDataset+`{"id": 5, "text": "fresh", "label": "new", "label_id": 3}`+"\n")
		res, err := newSeeder().Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Outcome).To(Equal(seed.OutcomeIngested))

		count, err := store.Count(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(int64(4)))

		history, err := store.SeedApplications(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(history).To(HaveLen(2))
	})

	It("skips a non-empty store when configured", func() {
		_, err := store.UpsertItems(ctx, []storage.Item{{ID: 99, Text: "existing", Label: "x"}})
		Expect(err).NotTo(HaveOccurred())

		opts.SkipIfNotEmpty = true
		res, err := newSeeder().Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Outcome).To(Equal(seed.OutcomeSkippedNotEmpty))
		Expect(res.Backfill.Updated).To(Equal(1))

		count, err := store.Count(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(int64(1)))
	})

	It("truncates the store and the index on reset", func() {
		_, err := newSeeder().Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		_, err = store.UpsertItems(ctx, []storage.Item{{ID: 99, Text: "stale", Label: "x"}})
		Expect(err).NotTo(HaveOccurred())

		index := testutils.NewMockIndex()
		opts.Reset = true
		opts.Index = index
		res, err := newSeeder().Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Outcome).To(Equal(seed.OutcomeIngested))
		Expect(index.Resets).To(Equal(1))
		Expect(index.Len()).To(Equal(3))

		items, err := store.GetItems(ctx, []int64{99})
		Expect(err).NotTo(HaveOccurred())
		Expect(items).To(BeEmpty())

		history, err := store.SeedApplications(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(history).To(HaveLen(1))
	})

	It("does nothing when disabled", func() {
		opts.Enabled = false
		res, err := newSeeder().Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Outcome).To(Equal(seed.OutcomeDisabled))

		count, err := store.Count(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(BeZero())
	})

	It("treats a missing dataset as nothing to seed", func() {
		opts.Location = filepath.Join(GinkgoT().TempDir(), "missing.jsonl")
		res, err := newSeeder().Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Outcome).To(Equal(seed.OutcomeNoDataset))
	})

	It("aborts on a structural error without recording the fingerprint", func() {
		opts.Location = writeDataset(GinkgoT().TempDir(), "bad.jsonl",
			`{"id": 1, "text": "ok", "label": "a", "label_id": 1}`+"\n"+`{"id": "x", "text": "bad", "label": "a", "label_id": 1}`+"\n")
		res, err := newSeeder().Run(ctx)

		var verr *dataset.ValidationError
		Expect(errors.As(err, &verr)).To(BeTrue())
		Expect(res.Err).To(Equal(err))

		history, err := store.SeedApplications(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(history).To(BeEmpty())
	})

	It("leaves rows for backfill when the embedding service is down", func() {
		mock.AllDown = true
		res, err := newSeeder().Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Outcome).To(Equal(seed.OutcomeIngested))
		Expect(res.Embedded).To(BeZero())
		Expect(res.Backfill.Stalled).To(BeTrue())
		Expect(res.Backfill.Pages).To(Equal(1))

		missing, err := store.CountMissing(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(missing).To(Equal(int64(3)))

		mock.AllDown = false
		opts.SkipIfNotEmpty = true
		res, err = newSeeder().Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Backfill.Updated).To(Equal(3))
	})

	It("skips embedding when embed on seed is off", func() {
		opts.EmbedOnSeed = false
		res, err := newSeeder().Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Embedded).To(BeZero())
		Expect(res.Backfill).To(BeNil())

		batch, single := mock.Calls()
		Expect(batch + single).To(BeZero())
	})

	It("lets concurrent runs over the same dataset both succeed", func() {
		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := range errs {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				_, errs[i] = newSeeder().Run(ctx)
			}()
		}
		wg.Wait()

		Expect(errs).To(HaveEach(BeNil()))
		history, err := store.SeedApplications(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(history).To(HaveLen(1))
	})

	It("records the fingerprint of the content it ingested", func() {
		before, err := fingerprint.Compute(strings.NewReader(jsonlDataset))
		Expect(err).NotTo(HaveOccurred())
		changed := `{"id": 9, "text": "replaced", "label": "new", "label_id": 3}` + "\n"
		after, err := fingerprint.Compute(strings.NewReader(changed))
		Expect(err).NotTo(HaveOccurred())

		s := seed.NewSeeder(rewritingStore{Driver: store, path: path, content: changed}, client, opts, logger.Nop())
		res, err := s.Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Outcome).To(Equal(seed.OutcomeIngested))
		Expect(res.Fingerprint).To(Equal(after))

		count, err := store.Count(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(int64(1)))

		applied, err := store.HasSeed(ctx, after)
		Expect(err).NotTo(HaveOccurred())
		Expect(applied).To(BeTrue())
		applied, err = store.HasSeed(ctx, before)
		Expect(err).NotTo(HaveOccurred())
		Expect(applied).To(BeFalse())
	})

	It("returns panics as errors", func() {
		s := seed.NewSeeder(panickingStore{Driver: store}, client, opts, logger.Nop())
		res, err := s.Run(ctx)
		Expect(err).To(MatchError(ContainSubstring("bootstrap exploded")))
		Expect(res).NotTo(BeNil())
		Expect(res.RunState().Error).To(ContainSubstring("bootstrap exploded"))
	})
})
