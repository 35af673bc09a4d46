package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/corpus/pkg/config"
)

var _ = Describe("Configer", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	writeConfig := func(data string) {
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())
	}

	Describe("LoadConfig", func() {
		It("returns the defaults when no file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).To(Equal(config.NewDefaultConfig()))
		})

		It("gates seeding on the fingerprint rather than on a non-empty store by default", func() {
			cfg := config.NewDefaultConfig()
			Expect(cfg.Seed.UseFingerprint).To(BeTrue())
			Expect(cfg.Seed.SkipIfNotEmpty).To(BeFalse())
		})

		It("layers the file over the defaults", func() {
			writeConfig(`
[seed]
dataset = "classpath:data/items.csv"
use_fingerprint = false

[embedding]
target = "http://embedder:9000/embed"
dimensions = 768
`)
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Seed.Dataset).To(Equal("classpath:data/items.csv"))
			Expect(cfg.Seed.UseFingerprint).To(BeFalse())
			Expect(cfg.Seed.Enabled).To(BeTrue())
			Expect(cfg.Seed.BatchSize).To(Equal(uint(1000)))
			Expect(cfg.Embedding.Target).To(Equal("http://embedder:9000/embed"))
			Expect(cfg.Embedding.Dimensions).To(Equal(uint(768)))
			Expect(cfg.Retrieval.TopK).To(Equal(uint(5)))
		})

		It("rejects malformed TOML", func() {
			writeConfig("[seed\nenabled = ")
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(MatchError(ContainSubstring("parsing config TOML")))
		})

		It("rejects unknown versions", func() {
			writeConfig("version = 7\n")
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(MatchError(ContainSubstring("unsupported config version 7")))
		})
	})

	Describe("SaveConfig", func() {
		It("persists and reloads", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg := config.NewDefaultConfig()
			cfg.Retrieval.Mode = "sparse"
			cfg.EventStream.Brokers = []string{"k1:9092", "k2:9092"}
			Expect(c.SaveConfig(cfg)).To(Succeed())

			loaded, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(cfg))
		})

		It("refuses nil", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SaveConfig(nil)).To(MatchError("cannot save nil config"))
		})
	})

	Describe("SetConfigValue and GetConfigValue", func() {
		var c *config.Configer

		BeforeEach(func() {
			var err error
			c, err = config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
		})

		DescribeTable("round trips typed keys",
			func(key, value string) {
				Expect(c.SetConfigValue(key, value)).To(Succeed())
				got, err := c.GetConfigValue(key)
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(Equal(value))
			},
			Entry("string", "seed.dataset", "s3://bucket/items.jsonl.gz"),
			Entry("uint", "embedding.dimensions", "768"),
			Entry("bool", "seed.reset", "true"),
			Entry("float", "retrieval.similarity_threshold", "0.45"),
			Entry("list", "eventstream.brokers", "a:9092,b:9092"),
		)

		It("rejects unknown keys", func() {
			Expect(c.SetConfigValue("proxy.upstream", "x")).To(MatchError(ContainSubstring("unknown config key")))
			_, err := c.GetConfigValue("proxy.upstream")
			Expect(err).To(MatchError(ContainSubstring("unknown config key")))
		})

		It("rejects values of the wrong type", func() {
			Expect(c.SetConfigValue("seed.batch_size", "lots")).To(MatchError(ContainSubstring("invalid value for seed.batch_size")))
		})

		It("rejects values outside the allowed set", func() {
			Expect(c.SetConfigValue("retrieval.mode", "hybrid")).To(MatchError(ContainSubstring("invalid retrieval.mode")))
		})
	})
})

var _ = Describe("Keys", func() {
	It("lists keys in section order", func() {
		keys := config.ValidConfigKeys()
		Expect(keys[0]).To(Equal("storage.driver"))
		Expect(keys).To(ContainElements("seed.dataset", "embedding.target", "retrieval.top_k"))
	})

	It("knows which keys are valid", func() {
		Expect(config.IsValidConfigKey("seed.embed_on_seed")).To(BeTrue())
		Expect(config.IsValidConfigKey("seed.nope")).To(BeFalse())
	})
})

var _ = Describe("Validate", func() {
	It("accepts the defaults", func() {
		Expect(config.NewDefaultConfig().Validate()).To(Succeed())
	})

	It("reports every problem", func() {
		cfg := config.NewDefaultConfig()
		cfg.Storage.Driver = "mongo"
		cfg.Embedding.Dimensions = 0
		cfg.Retrieval.SimilarityThreshold = 2

		err := cfg.Validate()
		Expect(err).To(MatchError(ContainSubstring("storage.driver")))
		Expect(err).To(MatchError(ContainSubstring("embedding.dimensions")))
		Expect(err).To(MatchError(ContainSubstring("similarity_threshold")))
	})
})
