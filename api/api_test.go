package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/corpus/pkg/embeddings"
	corpuslogger "github.com/papercomputeco/corpus/pkg/logger"
	"github.com/papercomputeco/corpus/pkg/retrieval"
	"github.com/papercomputeco/corpus/pkg/storage"
	"github.com/papercomputeco/corpus/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/corpus/pkg/utils/test"
)

const testDims = 16

// newTestServer builds a server over an in-memory store holding three
// embedded items.
func newTestServer(mode retrieval.Mode, cfg Config) (*Server, *inmemory.Driver, *testutils.MockEmbedder) {
	ctx := context.Background()
	store := inmemory.NewDriver(testDims)
	items := []storage.Item{
		{ID: 1, Text: "hello world", Label: "a", LabelID: 1},
		{ID: 2, Text: "hello there", Label: "a", LabelID: 1},
		{ID: 3, Text: "goodbye", Label: "b", LabelID: 2},
	}
	_, err := store.UpsertItems(ctx, items)
	Expect(err).NotTo(HaveOccurred())
	for _, it := range items {
		_, err := store.UpdateEmbeddings(ctx, []storage.EmbeddingUpdate{{ID: it.ID, Embedding: testutils.HashEmbedding(it.Text, testDims)}})
		Expect(err).NotTo(HaveOccurred())
	}

	mock := testutils.NewMockEmbedder(testDims)
	client := embeddings.NewClient(mock, embeddings.ClientConfig{Dimensions: testDims}, corpuslogger.Nop())
	engine, err := retrieval.NewEngine(store, client, nil, retrieval.Config{Mode: mode}, corpuslogger.Nop())
	Expect(err).NotTo(HaveOccurred())

	server, err := NewServer(cfg, engine, store, corpuslogger.Nop())
	Expect(err).NotTo(HaveOccurred())
	return server, store, mock
}

func decodeBody(resp *http.Response, into any) {
	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	Expect(json.Unmarshal(body, into)).To(Succeed())
}

var _ = Describe("NewServer", func() {
	It("requires an engine, a store and a logger", func() {
		store := inmemory.NewDriver(testDims)
		engine, err := retrieval.NewEngine(store, nil, nil, retrieval.Config{Mode: retrieval.ModeSparse}, corpuslogger.Nop())
		Expect(err).NotTo(HaveOccurred())

		_, err = NewServer(Config{}, nil, store, corpuslogger.Nop())
		Expect(err).To(MatchError(ContainSubstring("retrieval engine is required")))

		_, err = NewServer(Config{}, engine, nil, corpuslogger.Nop())
		Expect(err).To(MatchError(ContainSubstring("storage driver is required")))

		_, err = NewServer(Config{}, engine, store, nil)
		Expect(err).To(MatchError(ContainSubstring("logger is required")))
	})
})

var _ = Describe("handlePing", func() {
	It("answers pong", func() {
		server, _, _ := newTestServer(retrieval.ModeDense, Config{ListenAddr: ":0"})
		req, err := http.NewRequest(http.MethodGet, "/ping", nil)
		Expect(err).NotTo(HaveOccurred())

		resp, err := server.app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

		var got string
		decodeBody(resp, &got)
		Expect(got).To(Equal("pong"))
	})
})

var _ = Describe("handleStats", func() {
	It("reports item and embedding counts", func() {
		server, store, _ := newTestServer(retrieval.ModeDense, Config{ListenAddr: ":0"})
		_, err := store.UpsertItems(context.Background(), []storage.Item{{ID: 4, Text: "unembedded", Label: "c"}})
		Expect(err).NotTo(HaveOccurred())

		req, err := http.NewRequest(http.MethodGet, "/v1/stats", nil)
		Expect(err).NotTo(HaveOccurred())
		resp, err := server.app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

		var stats storage.Stats
		decodeBody(resp, &stats)
		Expect(stats.Items).To(Equal(int64(4)))
		Expect(stats.Embedded).To(Equal(int64(3)))
		Expect(stats.Missing).To(Equal(int64(1)))
	})
})

var _ = Describe("MCP mount", func() {
	It("routes /mcp to the configured handler", func() {
		handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})
		server, _, _ := newTestServer(retrieval.ModeDense, Config{ListenAddr: ":0", MCPHandler: handler})

		req, err := http.NewRequest(http.MethodPost, "/mcp", nil)
		Expect(err).NotTo(HaveOccurred())
		resp, err := server.app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusTeapot))
	})

	It("is absent without a handler", func() {
		server, _, _ := newTestServer(retrieval.ModeDense, Config{ListenAddr: ":0"})

		req, err := http.NewRequest(http.MethodPost, "/mcp", nil)
		Expect(err).NotTo(HaveOccurred())
		resp, err := server.app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
	})
})
