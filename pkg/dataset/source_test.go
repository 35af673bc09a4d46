package dataset_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/corpus/pkg/dataset"
)

var _ = Describe("Opener", func() {
	var (
		dir    string
		opener *dataset.Opener
		ctx    context.Context
	)

	const body = `[{"id":1,"text":"a","label":"x","label_id":0}]`

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
		opener = dataset.NewOpener(dataset.S3Config{})
		opener.SearchPaths = []string{filepath.Join(dir, "missing"), dir}
	})

	read := func(location string) string {
		rc, err := opener.Open(ctx, location)
		Expect(err).NotTo(HaveOccurred())
		defer rc.Close()
		b, err := io.ReadAll(rc)
		Expect(err).NotTo(HaveOccurred())
		return string(b)
	}

	It("opens plain and file: paths", func() {
		p := filepath.Join(dir, "items.json")
		Expect(os.WriteFile(p, []byte(body), 0o644)).To(Succeed())

		Expect(read(p)).To(Equal(body))
		Expect(read("file:" + p)).To(Equal(body))
	})

	It("resolves classpath: locations against the search paths", func() {
		Expect(os.WriteFile(filepath.Join(dir, "rag_dataset.jsonl"), []byte(body), 0o644)).To(Succeed())

		Expect(read("classpath:rag_dataset.jsonl")).To(Equal(body))
		p, ok := opener.LocalPath("classpath:rag_dataset.jsonl")
		Expect(ok).To(BeTrue())
		Expect(p).To(Equal(filepath.Join(dir, "rag_dataset.jsonl")))
	})

	It("decompresses gzip and zstd sources", func() {
		var gz bytes.Buffer
		zw := gzip.NewWriter(&gz)
		_, err := zw.Write([]byte(body))
		Expect(err).NotTo(HaveOccurred())
		Expect(zw.Close()).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "items.json.gz"), gz.Bytes(), 0o644)).To(Succeed())

		enc, err := zstd.NewWriter(nil)
		Expect(err).NotTo(HaveOccurred())
		zst := enc.EncodeAll([]byte(body), nil)
		Expect(enc.Close()).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "items.json.zst"), zst, 0o644)).To(Succeed())

		Expect(read(filepath.Join(dir, "items.json.gz"))).To(Equal(body))
		Expect(read(filepath.Join(dir, "items.json.zst"))).To(Equal(body))

		raw, err := opener.OpenRaw(ctx, filepath.Join(dir, "items.json.gz"))
		Expect(err).NotTo(HaveOccurred())
		defer raw.Close()
		b, err := io.ReadAll(raw)
		Expect(err).NotTo(HaveOccurred())
		Expect(b).To(Equal(gz.Bytes()))
	})

	It("copies every stored byte to the tee writer", func() {
		var gz bytes.Buffer
		zw := gzip.NewWriter(&gz)
		_, err := zw.Write([]byte(body))
		Expect(err).NotTo(HaveOccurred())
		Expect(zw.Close()).To(Succeed())
		p := filepath.Join(dir, "items.json.gz")
		Expect(os.WriteFile(p, gz.Bytes(), 0o644)).To(Succeed())

		var seen bytes.Buffer
		tee, err := opener.OpenTee(ctx, p, &seen)
		Expect(err).NotTo(HaveOccurred())
		defer tee.Close()

		decoded, err := io.ReadAll(tee)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(decoded)).To(Equal(body))

		Expect(tee.Finish()).To(Succeed())
		Expect(seen.Bytes()).To(Equal(gz.Bytes()))
	})

	It("tees plain sources even when the reader stops early", func() {
		p := filepath.Join(dir, "items.json")
		Expect(os.WriteFile(p, []byte(body), 0o644)).To(Succeed())

		var seen bytes.Buffer
		tee, err := opener.OpenTee(ctx, p, &seen)
		Expect(err).NotTo(HaveOccurred())
		defer tee.Close()

		_, err = io.ReadFull(tee, make([]byte, 4))
		Expect(err).NotTo(HaveOccurred())
		Expect(tee.Finish()).To(Succeed())
		Expect(seen.String()).To(Equal(body))
	})

	It("reports missing sources", func() {
		_, err := opener.Open(ctx, filepath.Join(dir, "nope.csv"))
		Expect(err).To(MatchError(dataset.ErrSourceNotFound))

		_, err = opener.Open(ctx, "classpath:nope.csv")
		Expect(err).To(MatchError(dataset.ErrSourceNotFound))

		_, err = opener.Open(ctx, "")
		Expect(err).To(MatchError(dataset.ErrSourceNotFound))

		_, err = opener.OpenTee(ctx, filepath.Join(dir, "nope.csv"), io.Discard)
		Expect(err).To(MatchError(dataset.ErrSourceNotFound))
	})

	It("validates s3 locations", func() {
		_, err := opener.Open(ctx, "s3://bucket-only")
		Expect(err).To(MatchError(ContainSubstring("want s3://bucket/key")))

		_, err = opener.Open(ctx, "s3://bucket/key.csv")
		Expect(err).To(MatchError(ContainSubstring("requires an endpoint")))
	})
})
