package backfill_test

import (
	"context"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/corpus/pkg/backfill"
	"github.com/papercomputeco/corpus/pkg/embeddings"
	"github.com/papercomputeco/corpus/pkg/ingest"
	"github.com/papercomputeco/corpus/pkg/logger"
	"github.com/papercomputeco/corpus/pkg/storage"
	"github.com/papercomputeco/corpus/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/corpus/pkg/utils/test"
)

const dims = 8

func itemText(id int) string {
	return fmt.Sprintf("stored item %d", id)
}

var _ = Describe("Scanner", func() {
	var (
		ctx   context.Context
		store *inmemory.Driver
		mock  *testutils.MockEmbedder
	)

	newScanner := func(pageSize int, onPage func(backfill.Progress)) *backfill.Scanner {
		client := embeddings.NewClient(mock, embeddings.ClientConfig{Dimensions: dims}, logger.Nop())
		writer := ingest.NewWriter(store, client, nil, ingest.Config{}, logger.Nop())
		return backfill.NewScanner(store, writer, backfill.Options{PageSize: pageSize, OnPage: onPage}, logger.Nop())
	}

	BeforeEach(func() {
		ctx = context.Background()
		store = inmemory.NewDriver(dims)
		mock = testutils.NewMockEmbedder(dims)

		items := make([]storage.Item, 5)
		for i := range items {
			items[i] = storage.Item{ID: int64(i + 1), Text: itemText(i + 1), Label: "l"}
		}
		_, err := store.UpsertItems(ctx, items)
		Expect(err).NotTo(HaveOccurred())
	})

	It("fills every missing embedding", func() {
		var pages []backfill.Progress
		result, err := newScanner(2, func(p backfill.Progress) { pages = append(pages, p) }).Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(result.Missing).To(Equal(int64(5)))
		Expect(result.Updated).To(Equal(5))
		Expect(result.Pages).To(Equal(3))
		Expect(result.Remaining).To(BeZero())
		Expect(result.Stalled).To(BeFalse())

		Expect(pages).To(HaveLen(3))
		Expect(pages[2].Processed).To(Equal(5))
	})

	It("does nothing when nothing is missing", func() {
		_, err := newScanner(2, nil).Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		before, _ := mock.Calls()
		result, err := newScanner(2, nil).Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Pages).To(BeZero())

		after, _ := mock.Calls()
		Expect(after).To(Equal(before))
	})

	It("stops after exactly one page when the embedding service is down", func() {
		mock.AllDown = true
		result, err := newScanner(2, nil).Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(result.Pages).To(Equal(1))
		Expect(result.Updated).To(BeZero())
		Expect(result.Stalled).To(BeTrue())
		Expect(result.Remaining).To(Equal(int64(5)))
		Expect(result.Summary()).To(ContainSubstring("Stopped early"))
	})

	It("moves past rows that fail while others succeed", func() {
		mock.FailOn[itemText(2)] = true
		result, err := newScanner(2, nil).Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(result.Pages).To(Equal(3))
		Expect(result.Updated).To(Equal(4))
		Expect(result.Remaining).To(Equal(int64(1)))
		Expect(result.Stalled).To(BeFalse())
	})

	It("stops at the first page with no progress", func() {
		mock.FailOn[itemText(3)] = true
		mock.FailOn[itemText(4)] = true
		result, err := newScanner(2, nil).Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(result.Pages).To(Equal(2))
		Expect(result.Updated).To(Equal(2))
		Expect(result.Remaining).To(Equal(int64(3)))
		Expect(result.Stalled).To(BeTrue())
	})

	It("returns the context error when cancelled", func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := newScanner(2, nil).Run(cctx)
		Expect(err).To(MatchError(context.Canceled))
	})
})
