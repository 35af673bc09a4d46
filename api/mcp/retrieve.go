package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/corpus/pkg/retrieval"
	"github.com/papercomputeco/corpus/pkg/storage"
)

var (
	retrieveToolName    = "retrieve"
	retrieveDescription = "Retrieve the corpus items most relevant to a query. The query is plain text or a JSON array of {speaker, message} turns. Returns items ordered by relevance with their labels and scores."
)

// RetrieveInput represents the input arguments for the retrieve tool.
type RetrieveInput struct {
	Query string `json:"query" jsonschema:"the query text, or a JSON array of {speaker, message} turns"`
	K     int    `json:"k,omitempty" jsonschema:"number of items to return (default: 5)"`
}

// RetrieveItem is one retrieved corpus item.
type RetrieveItem struct {
	ID      int64   `json:"id"`
	Text    string  `json:"text"`
	Label   string  `json:"label"`
	LabelID int     `json:"label_id"`
	Reason  string  `json:"reason,omitempty"`
	Context string  `json:"context,omitempty"`
	Tags    []int   `json:"tags,omitempty"`
	Score   float64 `json:"score"`
}

// RetrieveOutput represents the output of the retrieve tool.
type RetrieveOutput struct {
	QueryText string         `json:"query_text"`
	K         int            `json:"k"`
	Items     []RetrieveItem `json:"items"`
	Count     int            `json:"count"`
}

func errorResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
	}
}

// handleRetrieve processes a retrieve request.
func (s *Server) handleRetrieve(ctx context.Context, _ *mcp.CallToolRequest, input RetrieveInput) (*mcp.CallToolResult, RetrieveOutput, error) {
	logger := s.config.Logger
	logger.Debug("MCP retrieve request", "query", input.Query, "k", input.K)

	if input.Query == "" {
		return errorResult("validation: query is required"), RetrieveOutput{}, nil
	}

	res, err := s.config.Engine.Retrieve(ctx, input.Query, input.K)
	if err != nil {
		logger.Error("retrieve failed", "error", err)
		return errorResult("%s", retrieval.ErrorMessage(err)), RetrieveOutput{}, nil
	}

	output := buildOutput(res)

	// Tools returning structured content also return the serialized JSON in
	// a TextContent block for older clients.
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		logger.Error("failed to marshal retrieve output", "error", err)
		return errorResult("internal: failed to serialize results: %v", err), RetrieveOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}

// buildOutput flattens a retrieval result into the tool output.
func buildOutput(res *retrieval.Result) RetrieveOutput {
	items := make([]RetrieveItem, len(res.Items))
	for i, h := range res.Items {
		items[i] = buildItem(h)
	}
	return RetrieveOutput{
		QueryText: res.QueryText,
		K:         res.K,
		Items:     items,
		Count:     len(items),
	}
}

func buildItem(h storage.Hit) RetrieveItem {
	item := RetrieveItem{
		ID:      h.ID,
		Text:    h.Text,
		Label:   h.Label,
		LabelID: int(h.LabelID),
		Tags:    h.Tags,
		Score:   h.Score,
	}
	if h.Reason != nil {
		item.Reason = *h.Reason
	}
	if h.Context != nil {
		item.Context = *h.Context
	}
	return item
}
