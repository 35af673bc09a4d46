package sqlitepath

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ResolveSQLitePath", func() {
	var (
		origHome   string
		origXDG    string
		origSQLite string
		origCwd    string
		tmpDir     string
	)

	BeforeEach(func() {
		origHome = os.Getenv("HOME")
		origXDG = os.Getenv("XDG_DATA_HOME")
		origSQLite = os.Getenv("CORPUS_SQLITE")
		var err error
		origCwd, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		tmpDir = GinkgoT().TempDir()
		Expect(os.Setenv("HOME", tmpDir)).To(Succeed())
		Expect(os.Setenv("XDG_DATA_HOME", "")).To(Succeed())
		Expect(os.Setenv("CORPUS_SQLITE", "")).To(Succeed())
		Expect(os.Chdir(tmpDir)).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.Setenv("HOME", origHome)).To(Succeed())
		Expect(os.Setenv("XDG_DATA_HOME", origXDG)).To(Succeed())
		Expect(os.Setenv("CORPUS_SQLITE", origSQLite)).To(Succeed())
		Expect(os.Chdir(origCwd)).To(Succeed())
	})

	It("returns the override untouched", func() {
		Expect(ResolveSQLitePath("/tmp/explicit.db", "")).To(Equal("/tmp/explicit.db"))
	})

	It("prefers CORPUS_SQLITE when set", func() {
		Expect(os.Setenv("CORPUS_SQLITE", "/tmp/custom.db")).To(Succeed())
		Expect(ResolveSQLitePath("", "")).To(Equal("/tmp/custom.db"))
	})

	It("finds an existing database in the working directory", func() {
		Expect(os.WriteFile(DefaultName, []byte("test"), 0o644)).To(Succeed())
		Expect(ResolveSQLitePath("", "")).To(Equal(DefaultName))
	})

	It("places the database in the config directory", func() {
		configDir := filepath.Join(tmpDir, "cfg")
		path := ResolveSQLitePath("", configDir)
		Expect(path).To(HaveSuffix(filepath.Join("cfg", DefaultName)))
	})

	It("falls back to the working directory", func() {
		Expect(ResolveSQLitePath("", "")).To(Equal(DefaultName))
	})
})
