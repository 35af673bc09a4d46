package dotdir_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/corpus/pkg/dotdir"
)

var _ = Describe("Manager", func() {
	var (
		tmpDir string
		m      *dotdir.Manager
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = filepath.EvalSymlinks(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
		m = dotdir.NewManager()

		origDir, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())
		DeferCleanup(func() { Expect(os.Chdir(origDir)).To(Succeed()) })

		GinkgoT().Setenv("HOME", filepath.Join(tmpDir, "home"))
	})

	Describe("Target", func() {
		It("creates and returns the override", func() {
			dir := filepath.Join(tmpDir, "custom")
			result, err := m.Target(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(dir))
			Expect(dir).To(BeADirectory())
		})

		It("prefers a local .corpus directory", func() {
			local := filepath.Join(tmpDir, ".corpus")
			Expect(os.Mkdir(local, 0o755)).To(Succeed())

			result, err := m.Target("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(local))
		})

		It("falls back to the home directory", func() {
			home := filepath.Join(tmpDir, "home", ".corpus")
			Expect(os.MkdirAll(home, 0o755)).To(Succeed())

			result, err := m.Target("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(home))
		})

		It("returns empty when nothing exists", func() {
			result, err := m.Target("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(BeEmpty())
		})
	})

	Describe("Init and File", func() {
		It("creates .corpus and resolves files inside it", func() {
			dir, err := m.Init("")
			Expect(err).NotTo(HaveOccurred())
			Expect(dir).To(Equal(filepath.Join(tmpDir, ".corpus")))

			path, err := m.File("", "corpus.db")
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(Equal(filepath.Join(dir, "corpus.db")))
		})

		It("returns an empty file path without a directory", func() {
			path, err := m.File("", "corpus.db")
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(BeEmpty())
		})
	})

	Describe("RunState", func() {
		It("returns nil before anything was saved", func() {
			state, err := m.LoadRunState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(state).To(BeNil())
		})

		It("round trips the last run", func() {
			saved := &dotdir.RunState{
				RunID:       "run-1",
				Source:      "data/items.csv",
				Fingerprint: "abc",
				Inserted:    3,
				Embedded:    3,
				FinishedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			}
			Expect(m.SaveRunState(saved, tmpDir)).To(Succeed())

			loaded, err := m.LoadRunState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(saved))
		})

		It("refuses nil state", func() {
			Expect(m.SaveRunState(nil, tmpDir)).To(MatchError(ContainSubstring("nil run state")))
		})
	})
})
