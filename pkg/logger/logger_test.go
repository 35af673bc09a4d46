package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/corpus/pkg/logger"
)

func decodeLine(buf *bytes.Buffer) map[string]any {
	var parsed map[string]any
	ExpectWithOffset(1, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &parsed)).To(Succeed())
	return parsed
}

var _ = Describe("New", func() {
	var buf bytes.Buffer

	BeforeEach(func() {
		buf.Reset()
	})

	It("writes text records with attributes", func() {
		logger.New(logger.WithWriter(&buf)).Info("seeded", "rows", 3)
		Expect(buf.String()).To(ContainSubstring("seeded"))
		Expect(buf.String()).To(ContainSubstring("rows=3"))
	})

	It("drops debug records unless debug is on", func() {
		logger.New(logger.WithWriter(&buf)).Debug("quiet")
		Expect(buf.String()).To(BeEmpty())

		logger.New(logger.WithWriter(&buf), logger.WithDebug(true)).Debug("loud")
		Expect(buf.String()).To(ContainSubstring("loud"))
	})

	It("writes JSON records", func() {
		logger.New(logger.WithWriter(&buf), logger.WithJSON(true)).With("component", "backfill").Info("page", "updated", 7)

		parsed := decodeLine(&buf)
		Expect(parsed["msg"]).To(Equal("page"))
		Expect(parsed["component"]).To(Equal("backfill"))
		Expect(parsed["updated"]).To(BeNumerically("==", 7))
	})

	It("writes pretty records", func() {
		logger.New(logger.WithWriter(&buf), logger.WithPretty(true)).Info("serving")
		Expect(buf.String()).To(ContainSubstring("serving"))
	})

	It("copies records to every writer", func() {
		var other bytes.Buffer
		logger.New(logger.WithWriters(&buf, &other)).Info("twice")
		Expect(buf.String()).To(ContainSubstring("twice"))
		Expect(other.String()).To(ContainSubstring("twice"))
	})
})

var _ = Describe("Nop", func() {
	It("is disabled at every level", func() {
		l := logger.Nop()
		Expect(l.Handler().Enabled(context.Background(), slog.LevelError)).To(BeFalse())
		Expect(func() { l.With("k", "v").WithGroup("g").Error("ignored") }).NotTo(Panic())
	})
})

var _ = Describe("Multi", func() {
	It("fans records out to each logger", func() {
		var a, b bytes.Buffer
		multi := logger.Multi(logger.New(logger.WithWriter(&a)), logger.New(logger.WithWriter(&b), logger.WithJSON(true)))
		multi.WithGroup("request").Info("retrieve", "k", 5)

		Expect(a.String()).To(ContainSubstring("retrieve"))
		parsed := decodeLine(&b)
		group, ok := parsed["request"].(map[string]any)
		Expect(ok).To(BeTrue())
		Expect(group["k"]).To(BeNumerically("==", 5))
	})

	It("skips loggers whose level filters the record", func() {
		var info, debug bytes.Buffer
		multi := logger.Multi(
			logger.New(logger.WithWriter(&info)),
			logger.New(logger.WithWriter(&debug), logger.WithDebug(true)),
		)
		multi.Debug("detail")

		Expect(info.String()).To(BeEmpty())
		Expect(debug.String()).To(ContainSubstring("detail"))
	})
})
