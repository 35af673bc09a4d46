package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/corpus/pkg/retrieval"
	"github.com/papercomputeco/corpus/pkg/storage"
)

// Server is the API server for querying the corpus.
type Server struct {
	config Config
	engine *retrieval.Engine
	store  storage.ItemStore
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server. The store is shared with the seeder
// running in the same process and only read here.
func NewServer(config Config, engine *retrieval.Engine, store storage.ItemStore, logger *slog.Logger) (*Server, error) {
	if engine == nil {
		return nil, errors.New("retrieval engine is required")
	}
	if store == nil {
		return nil, errors.New("storage driver is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		engine: engine,
		store:  store,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/v1/stats", s.handleStats)
	app.Post("/v1/retrieve", s.handleRetrieve)
	app.Get("/v1/search", s.handleSearchEndpoint)

	if config.MCPHandler != nil {
		app.All("/mcp", adaptor.HTTPHandler(config.MCPHandler))
	}

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
		"mode", s.engine.Mode(),
		"mcp", s.config.MCPHandler != nil,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
