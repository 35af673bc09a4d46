package api

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/corpus/pkg/retrieval"
)

// handleRetrieve handles POST /v1/retrieve requests. The body is the raw
// query: plain text or a JSON array of {speaker, message} turns.
// Query parameters:
//   - k (optional): number of results, default and cap from configuration
func (s *Server) handleRetrieve(c *fiber.Ctx) error {
	payload := string(c.Body())
	if strings.TrimSpace(payload) == "" {
		return s.writeError(c, fmt.Errorf("%w: request body is empty", retrieval.ErrInvalidQuery))
	}

	k := 0
	if kStr := c.Query("k"); kStr != "" {
		parsed, err := strconv.Atoi(kStr)
		if err != nil {
			return s.writeError(c, fmt.Errorf("%w: k must be an integer", retrieval.ErrInvalidQuery))
		}
		k = parsed
	}

	res, err := s.engine.Retrieve(c.Context(), payload, k)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(res)
}

// handleSearchEndpoint handles GET /v1/search requests.
// Query parameters:
//   - query (required): the search query text
//   - top_k (optional): number of results to return
func (s *Server) handleSearchEndpoint(c *fiber.Ctx) error {
	query := c.Query("query")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "query parameter is required",
		})
	}

	topK := 0
	if topKStr := c.Query("top_k"); topKStr != "" {
		parsed, err := strconv.Atoi(topKStr)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error: "top_k must be a positive integer",
			})
		}
		topK = parsed
	}

	res, err := s.engine.Retrieve(c.Context(), query, topK)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(res)
}
