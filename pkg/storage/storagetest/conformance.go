// Package storagetest holds the behaviour every storage.Driver must show,
// shared by the driver test suites.
package storagetest

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/corpus/pkg/embeddings"
	"github.com/papercomputeco/corpus/pkg/logger"
	"github.com/papercomputeco/corpus/pkg/seed"
	"github.com/papercomputeco/corpus/pkg/storage"
	testutils "github.com/papercomputeco/corpus/pkg/utils/test"
)

// Dimensions is the embedding size used by the shared specs.
const Dimensions = 3

func ptr(s string) *string { return &s }

// Items returns the three item corpus used across retrieval specs.
func Items() []storage.Item {
	return []storage.Item{
		{ID: 1, Text: "hello world", Label: "greeting", LabelID: 0, Tags: []int{1, 2}},
		{ID: 2, Text: "hello there", Label: "greeting", LabelID: 0, Reason: ptr("casual")},
		{ID: 3, Text: "goodbye", Label: "farewell", LabelID: 1, Context: ptr("end of call")},
	}
}

// dataset is Items as JSON lines.
const dataset = `{"id": 1, "text": "hello world", "label": "greeting", "label_id": 0, "tags": [1, 2]}
{"id": 2, "text": "hello there", "label": "greeting", "label_id": 0, "reason": "casual"}
{"id": 3, "text": "goodbye", "label": "farewell", "label_id": 1, "context": "end of call"}
`

func ids(hits []storage.Hit) []int64 {
	out := make([]int64, len(hits))
	for i, h := range hits {
		out[i] = h.ID
	}
	return out
}

// DescribeDriver registers the shared specs. newDriver must return an empty,
// bootstrapped driver using Dimensions.
func DescribeDriver(newDriver func() storage.Driver) {
	var (
		ctx    context.Context
		driver storage.Driver
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = newDriver()
		DeferCleanup(func() { Expect(driver.Close()).To(Succeed()) })
	})

	Describe("UpsertItems", func() {
		It("stores items with optional fields", func() {
			n, err := driver.UpsertItems(ctx, Items())
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(3))

			count, err := driver.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(3)))

			got, err := driver.GetItems(ctx, []int64{1, 2, 3})
			Expect(err).NotTo(HaveOccurred())
			byID := map[int64]storage.Item{}
			for _, it := range got {
				byID[it.ID] = it
			}
			Expect(byID[1].Tags).To(Equal([]int{1, 2}))
			Expect(byID[1].Reason).To(BeNil())
			Expect(*byID[2].Reason).To(Equal("casual"))
			Expect(byID[2].Tags).To(BeNil())
			Expect(*byID[3].Context).To(Equal("end of call"))
			Expect(byID[3].LabelID).To(Equal(int16(1)))
		})

		It("is idempotent and keeps embeddings of unchanged rows", func() {
			_, err := driver.UpsertItems(ctx, Items())
			Expect(err).NotTo(HaveOccurred())
			_, err = driver.UpdateEmbeddings(ctx, []storage.EmbeddingUpdate{
				{ID: 1, Embedding: []float32{1, 0, 0}},
				{ID: 2, Embedding: []float32{0, 1, 0}},
			})
			Expect(err).NotTo(HaveOccurred())

			changed := Items()
			changed[1].Text = "hello again"
			_, err = driver.UpsertItems(ctx, changed)
			Expect(err).NotTo(HaveOccurred())

			count, err := driver.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(3)))

			missing, err := driver.MissingEmbeddings(ctx, 0, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(missing).To(HaveLen(2))
			Expect(missing[0].ID).To(Equal(int64(2)))
			Expect(missing[0].Text).To(Equal("hello again"))
			Expect(missing[1].ID).To(Equal(int64(3)))
		})

		It("keeps the last duplicate within one batch", func() {
			batch := []storage.Item{
				{ID: 9, Text: "first", Label: "x"},
				{ID: 9, Text: "second", Label: "x"},
			}
			_, err := driver.UpsertItems(ctx, batch)
			Expect(err).NotTo(HaveOccurred())

			got, err := driver.GetItems(ctx, []int64{9})
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(1))
			Expect(got[0].Text).To(Equal("second"))
		})
	})

	Describe("embeddings", func() {
		BeforeEach(func() {
			_, err := driver.UpsertItems(ctx, Items())
			Expect(err).NotTo(HaveOccurred())
		})

		It("pages missing rows by id after a cursor", func() {
			page, err := driver.MissingEmbeddings(ctx, 0, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(page).To(HaveLen(2))
			Expect(page[0].ID).To(Equal(int64(1)))
			Expect(page[1].ID).To(Equal(int64(2)))

			page, err = driver.MissingEmbeddings(ctx, 2, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(page).To(HaveLen(1))
			Expect(page[0].ID).To(Equal(int64(3)))
		})

		It("counts updates and reports stats", func() {
			n, err := driver.UpdateEmbeddings(ctx, []storage.EmbeddingUpdate{
				{ID: 1, Embedding: []float32{1, 0, 0}},
				{ID: 2, Embedding: []float32{1, 0, 0}},
				{ID: 404, Embedding: []float32{0, 0, 1}},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))

			missing, err := driver.CountMissing(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(missing).To(Equal(int64(1)))

			stats, err := driver.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Items).To(Equal(int64(3)))
			Expect(stats.Embedded).To(Equal(int64(2)))
			Expect(stats.Missing).To(Equal(int64(1)))
			Expect(stats.DistinctEmbeddings).To(Equal(int64(1)))
		})
	})

	Describe("DenseSearch", func() {
		BeforeEach(func() {
			_, err := driver.UpsertItems(ctx, Items())
			Expect(err).NotTo(HaveOccurred())
			_, err = driver.UpdateEmbeddings(ctx, []storage.EmbeddingUpdate{
				{ID: 1, Embedding: []float32{1, 0, 0}},
				{ID: 2, Embedding: []float32{0.8, 0.6, 0}},
				{ID: 3, Embedding: []float32{0, 0, 1}},
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("ranks by cosine similarity", func() {
			hits, err := driver.DenseSearch(ctx, []float32{1, 0, 0}, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(hits)).To(Equal([]int64{1, 2}))
			Expect(hits[0].Score).To(BeNumerically("~", 1, 1e-5))
			Expect(hits[1].Score).To(BeNumerically("~", 0.8, 1e-5))
			Expect(hits[0].Text).To(Equal("hello world"))
		})

		It("breaks ties by id", func() {
			_, err := driver.UpdateEmbeddings(ctx, []storage.EmbeddingUpdate{
				{ID: 3, Embedding: []float32{1, 0, 0}},
			})
			Expect(err).NotTo(HaveOccurred())

			hits, err := driver.DenseSearch(ctx, []float32{2, 0, 0}, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(hits)).To(Equal([]int64{1, 3, 2}))
		})

		It("skips rows without embeddings", func() {
			_, err := driver.UpsertItems(ctx, []storage.Item{{ID: 4, Text: "fresh", Label: "new"}})
			Expect(err).NotTo(HaveOccurred())

			hits, err := driver.DenseSearch(ctx, []float32{1, 0, 0}, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(hits)).NotTo(ContainElement(int64(4)))
			Expect(hits).To(HaveLen(3))
		})
	})

	Describe("sparse search", func() {
		BeforeEach(func() {
			_, err := driver.UpsertItems(ctx, Items())
			Expect(err).NotTo(HaveOccurred())
		})

		It("filters by similarity or substring", func() {
			hits, err := driver.SparseSearch(ctx, "hello", 0.3, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(hits)).To(ConsistOf(int64(1), int64(2)))
		})

		It("matches labels case-insensitively", func() {
			hits, err := driver.SparseSearch(ctx, "FAREWELL", 0.99, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(hits)).To(Equal([]int64{3}))
		})

		It("returns nothing when nothing matches", func() {
			hits, err := driver.SparseSearch(ctx, "zzz", 0.3, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(hits).To(BeEmpty())
		})

		It("ranks the whole corpus without filtering", func() {
			hits, err := driver.RankAll(ctx, "zzz", 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(hits)).To(Equal([]int64{1, 2}))
		})

		It("ranks the best match first", func() {
			hits, err := driver.RankAll(ctx, "goodbye", 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(hits).To(HaveLen(3))
			Expect(hits[0].ID).To(Equal(int64(3)))
		})
	})

	Describe("seed history", func() {
		It("records a fingerprint once", func() {
			has, err := driver.HasSeed(ctx, "abc")
			Expect(err).NotTo(HaveOccurred())
			Expect(has).To(BeFalse())

			inserted, err := driver.RecordSeed(ctx, "abc")
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(BeTrue())

			inserted, err = driver.RecordSeed(ctx, "abc")
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(BeFalse())

			has, err = driver.HasSeed(ctx, "abc")
			Expect(err).NotTo(HaveOccurred())
			Expect(has).To(BeTrue())
		})

		It("tolerates concurrent recorders", func() {
			var (
				wg       sync.WaitGroup
				mu       sync.Mutex
				winners  int
				failures []error
			)
			for range 8 {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					inserted, err := driver.RecordSeed(ctx, "race")
					mu.Lock()
					defer mu.Unlock()
					if err != nil {
						failures = append(failures, err)
					}
					if inserted {
						winners++
					}
				}()
			}
			wg.Wait()

			Expect(failures).To(BeEmpty())
			Expect(winners).To(Equal(1))
			apps, err := driver.SeedApplications(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(apps).To(HaveLen(1))
		})
	})

	Describe("concurrent seeding", func() {
		It("lets seeders over the same dataset all succeed with one history row", func() {
			path := filepath.Join(GinkgoT().TempDir(), "items.jsonl")
			Expect(os.WriteFile(path, []byte(dataset), 0o644)).To(Succeed())

			client := embeddings.NewClient(testutils.NewMockEmbedder(Dimensions), embeddings.ClientConfig{Dimensions: Dimensions}, logger.Nop())
			DeferCleanup(client.Close)
			opts := seed.Options{
				Enabled:        true,
				Location:       path,
				EmbedOnSeed:    true,
				UseFingerprint: true,
			}

			var wg sync.WaitGroup
			errs := make([]error, 3)
			for i := range errs {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					_, errs[i] = seed.NewSeeder(driver, client, opts, logger.Nop()).Run(ctx)
				}()
			}
			wg.Wait()

			Expect(errs).To(HaveEach(BeNil()))
			apps, err := driver.SeedApplications(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(apps).To(HaveLen(1))
			count, err := driver.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(len(Items()))))
			missing, err := driver.CountMissing(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(missing).To(BeZero())
		})
	})

	Describe("Truncate", func() {
		It("clears items and seed history", func() {
			_, err := driver.UpsertItems(ctx, Items())
			Expect(err).NotTo(HaveOccurred())
			_, err = driver.RecordSeed(ctx, "abc")
			Expect(err).NotTo(HaveOccurred())

			Expect(driver.Truncate(ctx)).To(Succeed())

			count, err := driver.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(BeZero())
			has, err := driver.HasSeed(ctx, "abc")
			Expect(err).NotTo(HaveOccurred())
			Expect(has).To(BeFalse())
		})
	})

	Describe("Bootstrap", func() {
		It("is idempotent", func() {
			Expect(driver.Bootstrap(ctx)).To(Succeed())
			Expect(driver.Bootstrap(ctx)).To(Succeed())
		})
	})
}
