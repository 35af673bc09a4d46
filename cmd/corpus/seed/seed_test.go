package seedcmder_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	seedcmder "github.com/papercomputeco/corpus/cmd/corpus/seed"
	"github.com/papercomputeco/corpus/pkg/dotdir"
	testutils "github.com/papercomputeco/corpus/pkg/utils/test"
)

const items = `{"id": 1, "text": "first item", "label": "a", "label_id": 1}
{"id": 2, "text": "second item", "label": "b", "label_id": 2}
`

func newSeedCmd(configDir string, out *bytes.Buffer, args ...string) *cobra.Command {
	cmd := seedcmder.NewSeedCmd()
	cmd.PersistentFlags().String("config-dir", configDir, "")
	cmd.PersistentFlags().Bool("debug", false, "")
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	return cmd
}

var _ = Describe("NewSeedCmd", func() {
	It("takes no arguments", func() {
		cmd := seedcmder.NewSeedCmd()
		Expect(cmd.Use).To(Equal("seed"))
		Expect(cmd.Args(cmd, []string{"extra"})).To(HaveOccurred())
	})

	It("registers the seed flags", func() {
		cmd := seedcmder.NewSeedCmd()
		for _, name := range []string{"dataset", "reset", "embed", "fingerprint", "storage-driver", "embedding-target"} {
			Expect(cmd.Flags().Lookup(name)).NotTo(BeNil(), name)
		}
	})
})

var _ = Describe("seed command", func() {
	var (
		server    *testutils.EmbedServer
		root      string
		configDir string
		dataset   string
	)

	BeforeEach(func() {
		server = testutils.NewEmbedServer(8, testutils.ShapeArray)
		DeferCleanup(server.Close)

		root = GinkgoT().TempDir()
		var err error
		configDir, err = dotdir.NewManager().Init(root)
		Expect(err).NotTo(HaveOccurred())

		dataset = filepath.Join(root, "items.jsonl")
		Expect(os.WriteFile(dataset, []byte(items), 0o644)).To(Succeed())
	})

	It("seeds the dataset and records the run", func() {
		var out bytes.Buffer
		cmd := newSeedCmd(configDir, &out,
			"--storage-driver", "memory",
			"--embedding-target", server.URL,
			"--embedding-dimensions", "8",
			"--dataset", dataset,
		)
		Expect(cmd.ExecuteContext(context.Background())).To(Succeed())
		Expect(out.String()).To(ContainSubstring("2 items inserted"))
		Expect(server.BatchCalls.Load()).To(BeNumerically(">=", 1))

		state, err := dotdir.NewManager().LoadRunState(configDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(state).NotTo(BeNil())
		Expect(state.Inserted).To(Equal(2))
		Expect(state.Source).To(Equal(dataset))
	})

	It("fails without a dataset", func() {
		var out bytes.Buffer
		cmd := newSeedCmd(configDir, &out, "--storage-driver", "memory")
		err := cmd.ExecuteContext(context.Background())
		Expect(err).To(MatchError(ContainSubstring("no dataset configured")))
	})

	It("returns validation errors from the dataset", func() {
		bad := filepath.Join(root, "bad.jsonl")
		Expect(os.WriteFile(bad, []byte(`{"id": "x", "text": "bad", "label": "a", "label_id": 1}`+"\n"), 0o644)).To(Succeed())

		var out bytes.Buffer
		cmd := newSeedCmd(configDir, &out,
			"--storage-driver", "memory",
			"--embedding-target", server.URL,
			"--embedding-dimensions", "8",
			"--dataset", bad,
		)
		Expect(cmd.ExecuteContext(context.Background())).To(HaveOccurred())
	})
})
