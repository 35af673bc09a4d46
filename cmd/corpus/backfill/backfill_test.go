package backfillcmder

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/corpus/cmd/corpus/stack"
	"github.com/papercomputeco/corpus/pkg/backfill"
	"github.com/papercomputeco/corpus/pkg/config"
	"github.com/papercomputeco/corpus/pkg/logger"
	testutils "github.com/papercomputeco/corpus/pkg/utils/test"
)

var _ = Describe("NewBackfillCmd", func() {
	It("creates a command with correct use name", func() {
		cmd := NewBackfillCmd()
		Expect(cmd.Use).To(Equal("backfill"))
	})

	It("has the expected flags", func() {
		cmd := NewBackfillCmd()

		sqliteFlag := cmd.Flags().Lookup("sqlite")
		Expect(sqliteFlag).NotTo(BeNil())
		Expect(sqliteFlag.Shorthand).To(Equal("s"))

		Expect(cmd.Flags().Lookup("embedding-target")).NotTo(BeNil())
		Expect(cmd.Flags().Lookup("vector-store-provider")).NotTo(BeNil())

		quietFlag := cmd.Flags().Lookup("quiet")
		Expect(quietFlag).NotTo(BeNil())
		Expect(quietFlag.Shorthand).To(Equal("q"))
	})
})

var _ = Describe("barUpdater", func() {
	It("advances by the rows of each page", func() {
		var out bytes.Buffer
		bar := newBar(&out, 10)
		update := barUpdater(bar)

		update(backfill.Progress{Page: 1, Processed: 4, Updated: 4, Missing: 10})
		Expect(bar.State().CurrentNum).To(Equal(int64(4)))

		update(backfill.Progress{Page: 2, Processed: 10, Updated: 7, Missing: 10})
		Expect(bar.State().CurrentNum).To(Equal(int64(10)))
	})
})

var _ = Describe("backfill command", func() {
	It("embeds rows a previous seed left missing", func() {
		ctx := context.Background()
		server := testutils.NewEmbedServer(8, testutils.ShapeLabelled)
		DeferCleanup(server.Close)

		root := GinkgoT().TempDir()
		dbPath := filepath.Join(root, "corpus.db")
		dataset := filepath.Join(root, "items.jsonl")
		Expect(os.WriteFile(dataset, []byte(
			`{"id": 1, "text": "alpha", "label": "a", "label_id": 1}`+"\n"+
				`{"id": 2, "text": "beta", "label": "b", "label_id": 2}`+"\n"), 0o644)).To(Succeed())

		cfg := config.NewDefaultConfig()
		cfg.Storage.SQLitePath = dbPath
		cfg.Embedding.Target = server.URL
		cfg.Embedding.Dimensions = 8
		cfg.Seed.Dataset = dataset
		cfg.Seed.EmbedOnSeed = false

		s, err := stack.Open(ctx, cfg, root, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		_, err = s.Seeder(s.SeedOptions()).Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Close()).To(Succeed())

		var out bytes.Buffer
		cmd := NewBackfillCmd()
		cmd.PersistentFlags().String("config-dir", root, "")
		cmd.PersistentFlags().Bool("debug", false, "")
		cmd.SetOut(&out)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{
			"--sqlite", dbPath,
			"--embedding-target", server.URL,
			"--embedding-dimensions", "8",
			"--quiet",
		})

		Expect(cmd.ExecuteContext(ctx)).To(Succeed())
		Expect(out.String()).To(ContainSubstring("2 of 2 missing embeddings filled"))
		Expect(out.String()).To(ContainSubstring("Still missing: 0"))
	})
})
