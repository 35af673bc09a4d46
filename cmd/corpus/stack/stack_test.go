package stack_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/corpus/cmd/corpus/stack"
	"github.com/papercomputeco/corpus/pkg/backfill"
	"github.com/papercomputeco/corpus/pkg/config"
	"github.com/papercomputeco/corpus/pkg/dotdir"
	"github.com/papercomputeco/corpus/pkg/logger"
	"github.com/papercomputeco/corpus/pkg/seed"
	testutils "github.com/papercomputeco/corpus/pkg/utils/test"
)

const dims = 16

const items = `{"id": 1, "text": "how do I reset my password", "label": "account", "label_id": 1}
{"id": 2, "text": "the invoice total looks wrong", "label": "billing", "label_id": 2}
{"id": 3, "text": "password reset link expired", "label": "account", "label_id": 1}
`

func newCmd(configDir string, keys ...string) (*cobra.Command, *stack.Flags) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("config-dir", configDir, "")
	cmd.Flags().Bool("debug", false, "")
	return cmd, stack.NewFlags(cmd, keys...)
}

func writeConfig(dir, body string) {
	Expect(os.MkdirAll(dir, 0o755)).To(Succeed())
	Expect(os.WriteFile(filepath.Join(dir, "config.toml"), []byte(body), 0o600)).To(Succeed())
}

var _ = Describe("LoadConfig", func() {
	var configDir string

	BeforeEach(func() {
		configDir = filepath.Join(GinkgoT().TempDir(), ".corpus")
	})

	It("returns defaults without a config file", func() {
		cmd, f := newCmd(configDir, stack.StoreFlags...)
		cfg, err := stack.LoadConfig(cmd, f)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Storage.Driver).To(Equal("sqlite"))
		Expect(cfg.Retrieval.TopK).To(Equal(uint(5)))
	})

	It("reads config.toml from the config directory", func() {
		writeConfig(configDir, "[storage]\ndriver = \"memory\"\n\n[retrieval]\nmode = \"sparse\"\n")
		cmd, f := newCmd(configDir, stack.StoreFlags...)
		cfg, err := stack.LoadConfig(cmd, f)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Storage.Driver).To(Equal("memory"))
		Expect(cfg.Retrieval.Mode).To(Equal("sparse"))
	})

	It("lets set flags override the file", func() {
		writeConfig(configDir, "[storage]\ndriver = \"memory\"\n")
		cmd, f := newCmd(configDir, stack.Join(stack.StoreFlags, stack.SeedFlags)...)
		Expect(cmd.ParseFlags([]string{"--storage-driver", "sqlite", "--batch-size", "7", "--reset"})).To(Succeed())

		cfg, err := stack.LoadConfig(cmd, f)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Storage.Driver).To(Equal("sqlite"))
		Expect(cfg.Seed.BatchSize).To(Equal(uint(7)))
		Expect(cfg.Seed.Reset).To(BeTrue())
	})

	It("rejects invalid values", func() {
		cmd, f := newCmd(configDir, stack.StoreFlags...)
		Expect(cmd.ParseFlags([]string{"--storage-driver", "mongo"})).To(Succeed())
		_, err := stack.LoadConfig(cmd, f)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("storage.driver"))
	})
})

var _ = Describe("Stack", func() {
	var (
		ctx       context.Context
		server    *testutils.EmbedServer
		configDir string
		cfg       *config.Config
		s         *stack.Stack
	)

	BeforeEach(func() {
		ctx = context.Background()
		server = testutils.NewEmbedServer(dims, testutils.ShapeLabelled)
		DeferCleanup(server.Close)

		root := GinkgoT().TempDir()
		configDir = filepath.Join(root, ".corpus")
		dataset := filepath.Join(root, "items.jsonl")
		Expect(os.WriteFile(dataset, []byte(items), 0o644)).To(Succeed())

		cfg = config.NewDefaultConfig()
		cfg.Storage.Driver = "memory"
		cfg.Embedding.Target = server.URL
		cfg.Embedding.Dimensions = dims
		cfg.Seed.Dataset = dataset

		var err error
		s, err = stack.Open(ctx, cfg, configDir, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { _ = s.Close() })
	})

	It("opens the configured components", func() {
		Expect(s.Store).NotTo(BeNil())
		Expect(s.Embedder).NotTo(BeNil())
		Expect(s.Index).To(BeNil())
		Expect(s.Publisher).NotTo(BeNil())
		Expect(s.Opener).NotTo(BeNil())
	})

	It("seeds and answers dense queries", func() {
		res, err := s.Seeder(s.SeedOptions()).Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Outcome).To(Equal(seed.OutcomeIngested))
		Expect(res.Inserted).To(Equal(3))

		engine, err := s.Engine()
		Expect(err).NotTo(HaveOccurred())
		out, err := engine.Retrieve(ctx, "how do I reset my password", 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Items).To(HaveLen(2))
		Expect(out.Items[0].ID).To(Equal(int64(1)))
	})

	It("backfills rows left without embeddings", func() {
		opts := s.SeedOptions()
		opts.EmbedOnSeed = false
		_, err := s.Seeder(opts).Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		pages := 0
		res, err := s.Scanner(func(_ backfill.Progress) { pages++ }).Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Updated).To(Equal(3))
		Expect(res.Remaining).To(BeZero())
		Expect(pages).To(Equal(1))
	})

	It("saves the run state into the config directory", func() {
		_, err := dotdir.NewManager().Init(filepath.Dir(configDir))
		Expect(err).NotTo(HaveOccurred())

		res, err := s.Seeder(s.SeedOptions()).Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		s.SaveRunState(res)

		state, err := dotdir.NewManager().LoadRunState(configDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(state).NotTo(BeNil())
		Expect(state.RunID).To(Equal(res.RunID))
		Expect(state.Inserted).To(Equal(3))
	})

	It("rejects an unknown vector store", func() {
		bad := *cfg
		bad.VectorStore.Provider = "pinecone"
		_, err := stack.Open(ctx, &bad, configDir, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("unsupported vector index provider")))
	})
})
