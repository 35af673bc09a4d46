package statuscmder_test

import (
	"bytes"
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	statuscmder "github.com/papercomputeco/corpus/cmd/corpus/status"
	"github.com/papercomputeco/corpus/pkg/dotdir"
	"github.com/papercomputeco/corpus/pkg/storage"
)

var _ = Describe("PrintRunState", func() {
	It("hints at seeding when nothing ran", func() {
		var out bytes.Buffer
		statuscmder.PrintRunState(&out, nil)
		Expect(out.String()).To(ContainSubstring("No seeding run recorded yet"))
	})

	It("prints the last run", func() {
		var out bytes.Buffer
		statuscmder.PrintRunState(&out, &dotdir.RunState{
			RunID:       "run-1",
			Source:      "classpath:items.jsonl",
			Fingerprint: "abc123",
			Inserted:    10,
			Embedded:    9,
			Blank:       1,
			FinishedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		})
		Expect(out.String()).To(ContainSubstring("run-1"))
		Expect(out.String()).To(ContainSubstring("classpath:items.jsonl"))
		Expect(out.String()).To(ContainSubstring("abc123"))
		Expect(out.String()).To(ContainSubstring("10 inserted, 9 embedded, 1 blank"))
		Expect(out.String()).To(ContainSubstring("2026-01-02T03:04:05Z"))
	})

	It("reports skipped runs and errors", func() {
		var out bytes.Buffer
		statuscmder.PrintRunState(&out, &dotdir.RunState{RunID: "run-2", Skipped: true, Error: "embedding service down"})
		Expect(out.String()).To(ContainSubstring("skipped"))
		Expect(out.String()).To(ContainSubstring("embedding service down"))
	})
})

var _ = Describe("status command", func() {
	It("prints store counts", func() {
		var out bytes.Buffer
		cmd := statuscmder.NewStatusCmd()
		cmd.PersistentFlags().String("config-dir", GinkgoT().TempDir(), "")
		cmd.PersistentFlags().Bool("debug", false, "")
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--storage-driver", "memory"})

		Expect(cmd.ExecuteContext(context.Background())).To(Succeed())
		Expect(out.String()).To(ContainSubstring("No seeding run recorded yet"))
		Expect(out.String()).To(ContainSubstring("memory"))
	})
})

var _ = Describe("PrintStats", func() {
	It("prints every count", func() {
		var out bytes.Buffer
		statuscmder.PrintStats(&out, "sqlite", &storage.Stats{Items: 5, Embedded: 4, Missing: 1, DistinctEmbeddings: 4, SeedApplications: 2})
		Expect(out.String()).To(ContainSubstring("sqlite"))
		Expect(out.String()).To(ContainSubstring("4 (4 distinct)"))
	})
})
