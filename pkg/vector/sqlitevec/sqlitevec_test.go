package sqlitevec_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/corpus/pkg/logger"
	"github.com/papercomputeco/corpus/pkg/vector"
	"github.com/papercomputeco/corpus/pkg/vector/sqlitevec"
)

var _ = Describe("Index", func() {
	var (
		ctx context.Context
		idx *sqlitevec.Index
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		idx, err = sqlitevec.New(sqlitevec.Config{DBPath: ":memory:", Dimensions: 3}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(idx.Close()).To(Succeed())
	})

	It("requires a path and a dimension", func() {
		_, err := sqlitevec.New(sqlitevec.Config{Dimensions: 3}, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("database path is required")))

		_, err = sqlitevec.New(sqlitevec.Config{DBPath: ":memory:"}, logger.Nop())
		Expect(err).To(HaveOccurred())
	})

	It("returns the closest points first", func() {
		Expect(idx.Upsert(ctx, []vector.Point{
			{ID: 1, Embedding: []float32{1, 0, 0}},
			{ID: 2, Embedding: []float32{0, 1, 0}},
			{ID: 3, Embedding: []float32{0.9, 0.1, 0}},
		})).To(Succeed())

		matches, err := idx.Query(ctx, []float32{1, 0, 0}, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(matches).To(HaveLen(2))
		Expect(matches[0].ID).To(Equal(int64(1)))
		Expect(matches[0].Score).To(BeNumerically("~", 1, 1e-5))
		Expect(matches[1].ID).To(Equal(int64(3)))
	})

	It("replaces points on upsert", func() {
		Expect(idx.Upsert(ctx, []vector.Point{{ID: 1, Embedding: []float32{1, 0, 0}}})).To(Succeed())
		Expect(idx.Upsert(ctx, []vector.Point{{ID: 1, Embedding: []float32{0, 0, 1}}})).To(Succeed())

		matches, err := idx.Query(ctx, []float32{0, 0, 1}, 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(matches).To(HaveLen(1))
		Expect(matches[0].Score).To(BeNumerically("~", 1, 1e-5))
	})

	It("rejects points with the wrong dimension", func() {
		err := idx.Upsert(ctx, []vector.Point{{ID: 1, Embedding: []float32{1, 0}}})
		Expect(err).To(MatchError(vector.ErrDimension))
	})

	It("empties on reset", func() {
		Expect(idx.Upsert(ctx, []vector.Point{{ID: 1, Embedding: []float32{1, 0, 0}}})).To(Succeed())
		Expect(idx.Reset(ctx)).To(Succeed())

		matches, err := idx.Query(ctx, []float32{1, 0, 0}, 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(matches).To(BeEmpty())
	})
})
