package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/corpus/pkg/retrieval"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleStats returns item and embedding counts.
func (s *Server) handleStats(c *fiber.Ctx) error {
	stats, err := s.store.Stats(c.Context())
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(stats)
}

// writeError answers with the status of the error's kind and a
// "<kind>: <message>" body.
func (s *Server) writeError(c *fiber.Ctx, err error) error {
	kind := retrieval.ErrorKind(err)
	if kind == retrieval.KindInternal {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(kind.Status()).JSON(ErrorResponse{Error: retrieval.ErrorMessage(err)})
}
