// Package searchcmder provides the search command, a client for the corpus
// retrieval API.
package searchcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/corpus/api"
	"github.com/papercomputeco/corpus/cmd/corpus/stack"
	"github.com/papercomputeco/corpus/pkg/cliui"
	"github.com/papercomputeco/corpus/pkg/config"
	"github.com/papercomputeco/corpus/pkg/retrieval"
	"github.com/papercomputeco/corpus/pkg/utils"
)

type searchCommander struct {
	flags *stack.Flags

	query    string
	topK     int
	quiet    bool
	markdown bool
}

const searchLongDesc string = `Search the corpus via the corpus API.

Sends the query to a running corpus API server and prints the nearest items,
ranked by score. Whether the server searches embeddings or text similarity is
decided by its retrieval.mode.

Use --quiet to output only item ids, one per line, and --markdown to render
the results as a markdown table.

Example:
  corpus search "how do I reset my password"
  corpus search "refund policy" --api-target http://localhost:8080 --top 10
  corpus search "invoice" --quiet`

const searchShortDesc string = "Search the corpus"

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.query = args[0]

			cfg, err := stack.LoadConfig(cmd, cmder.flags)
			if err != nil {
				return err
			}
			return cmder.run(cmd.Context(), cmd.OutOrStdout(), cfg.Client.APITarget)
		},
	}

	cmder.flags = stack.NewFlags(cmd, config.FlagAPITarget)
	cmd.Flags().IntVarP(&cmder.topK, "top", "k", 0, "Number of results to return (default: server top_k)")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only item ids, one per line (for piping)")
	cmd.Flags().BoolVar(&cmder.markdown, "markdown", false, "Render results as a markdown table")

	return cmd
}

func (c *searchCommander) run(ctx context.Context, w io.Writer, apiTarget string) error {
	output, err := SearchAPI(ctx, apiTarget, c.query, c.topK)
	if err != nil {
		return err
	}

	if len(output.Items) == 0 {
		if !c.quiet {
			fmt.Fprintln(w, "No results found.")
		}
		return nil
	}

	if c.quiet {
		for _, item := range output.Items {
			fmt.Fprintln(w, item.ID)
		}
		return nil
	}

	if c.markdown {
		rendered, err := cliui.RenderMarkdown(Markdown(output))
		fmt.Fprint(w, rendered)
		return err
	}

	fmt.Fprintf(w, "\n%s %s\n\n",
		cliui.HeaderStyle.Render("Search Results for:"),
		cliui.LabelStyle.Render(fmt.Sprintf("%q", output.QueryText)),
	)
	for i, item := range output.Items {
		fmt.Fprintf(w, "  %s  %s  %s %s\n",
			cliui.RankStyle.Render(fmt.Sprintf("#%d", i+1)),
			cliui.ScoreStyle.Render(fmt.Sprintf("score: %.4f", item.Score)),
			cliui.LabelStyle.Render(item.Label),
			cliui.DimStyle.Render(fmt.Sprintf("(id %d)", item.ID)),
		)
		fmt.Fprintf(w, "  %s\n\n", utils.Truncate(strings.ReplaceAll(item.Text, "\n", " "), 100))
	}

	return nil
}

// Markdown renders a result as a markdown table.
func Markdown(res *retrieval.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Results for %q\n\n", res.QueryText)
	b.WriteString("| # | id | score | label | text |\n|---|---|---|---|---|\n")
	for i, item := range res.Items {
		text := strings.ReplaceAll(utils.Truncate(item.Text, 80), "|", `\|`)
		fmt.Fprintf(&b, "| %d | %d | %.4f | %s | %s |\n", i+1, item.ID, item.Score, item.Label, text)
	}
	return b.String()
}

// SearchAPI calls GET /v1/search and returns the parsed result. topK <= 0
// leaves the default to the server.
func SearchAPI(ctx context.Context, apiTarget, query string, topK int) (*retrieval.Result, error) {
	searchURL, err := url.Parse(apiTarget)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	searchURL.Path = "/v1/search"
	q := searchURL.Query()
	q.Set("query", query)
	if topK > 0 {
		q.Set("top_k", strconv.Itoa(topK))
	}
	searchURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to corpus API at %s: %w", apiTarget, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr api.ErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("search request failed (HTTP %d): %s", resp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("search request failed (HTTP %d): %s", resp.StatusCode, string(body))
	}

	var output retrieval.Result
	if err := json.Unmarshal(body, &output); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	return &output, nil
}
