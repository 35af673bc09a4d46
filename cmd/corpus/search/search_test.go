package searchcmder_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	searchcmder "github.com/papercomputeco/corpus/cmd/corpus/search"
	"github.com/papercomputeco/corpus/pkg/retrieval"
	"github.com/papercomputeco/corpus/pkg/storage"
)

const resultBody = `{"query_text":"reset password","k":2,"items":[
  {"id":3,"text":"password reset link expired","label":"account","label_id":1,"score":0.91},
  {"id":1,"text":"how do I reset my password","label":"account","label_id":1,"score":0.88}
]}`

func newSearchCmd(target string, out *bytes.Buffer, args ...string) *cobra.Command {
	cmd := searchcmder.NewSearchCmd()
	cmd.PersistentFlags().String("config-dir", GinkgoT().TempDir(), "")
	cmd.PersistentFlags().Bool("debug", false, "")
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(append(args, "--api-target", target))
	return cmd
}

var _ = Describe("search command", func() {
	var (
		server    *httptest.Server
		lastQuery string
		lastTopK  string
		status    int
		body      string
	)

	BeforeEach(func() {
		status = http.StatusOK
		body = resultBody
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lastQuery = r.URL.Query().Get("query")
			lastTopK = r.URL.Query().Get("top_k")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
		}))
		DeferCleanup(server.Close)
	})

	It("requires exactly one query", func() {
		cmd := searchcmder.NewSearchCmd()
		Expect(cmd.Args(cmd, []string{})).To(HaveOccurred())
		Expect(cmd.Args(cmd, []string{"a", "b"})).To(HaveOccurred())
	})

	It("prints ranked results", func() {
		var out bytes.Buffer
		cmd := newSearchCmd(server.URL, &out, "reset password", "--top", "2")
		Expect(cmd.ExecuteContext(context.Background())).To(Succeed())

		Expect(lastQuery).To(Equal("reset password"))
		Expect(lastTopK).To(Equal("2"))
		Expect(out.String()).To(ContainSubstring("#1"))
		Expect(out.String()).To(ContainSubstring("password reset link expired"))
		Expect(out.String()).To(ContainSubstring("0.9100"))
	})

	It("leaves top_k to the server by default", func() {
		var out bytes.Buffer
		cmd := newSearchCmd(server.URL, &out, "reset password")
		Expect(cmd.ExecuteContext(context.Background())).To(Succeed())
		Expect(lastTopK).To(BeEmpty())
	})

	It("prints only ids with --quiet", func() {
		var out bytes.Buffer
		cmd := newSearchCmd(server.URL, &out, "reset password", "--quiet")
		Expect(cmd.ExecuteContext(context.Background())).To(Succeed())
		Expect(out.String()).To(Equal("3\n1\n"))
	})

	It("reports an empty result", func() {
		body = `{"query_text":"nothing","k":5,"items":[]}`
		var out bytes.Buffer
		cmd := newSearchCmd(server.URL, &out, "nothing")
		Expect(cmd.ExecuteContext(context.Background())).To(Succeed())
		Expect(out.String()).To(ContainSubstring("No results found."))
	})

	It("surfaces the API error message", func() {
		status = http.StatusBadGateway
		body = `{"error":"upstream: embedding service unavailable"}`
		var out bytes.Buffer
		cmd := newSearchCmd(server.URL, &out, "reset password")
		err := cmd.ExecuteContext(context.Background())
		Expect(err).To(MatchError(ContainSubstring("HTTP 502")))
		Expect(err).To(MatchError(ContainSubstring("upstream: embedding service unavailable")))
	})
})

var _ = Describe("Markdown", func() {
	It("renders a table row per item and escapes pipes", func() {
		md := searchcmder.Markdown(&retrieval.Result{
			QueryText: "q",
			Items: []storage.Hit{
				{Item: storage.Item{ID: 7, Text: "a | b", Label: "x"}, Score: 0.5},
			},
		})
		Expect(md).To(ContainSubstring(`| 1 | 7 | 0.5000 | x | a \| b |`))
	})
})
