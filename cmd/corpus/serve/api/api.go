// Package apicmder provides the corpus retrieval API server cobra command.
package apicmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/corpus/api"
	"github.com/papercomputeco/corpus/api/mcp"
	"github.com/papercomputeco/corpus/cmd/corpus/stack"
	"github.com/papercomputeco/corpus/pkg/config"
)

type apiCommander struct {
	flags *stack.Flags
}

const apiLongDesc string = `Run the corpus retrieval API server.

Serves POST /v1/retrieve, GET /v1/search, GET /v1/stats and the MCP retrieve
tool at /mcp over an already seeded store. No seeding happens in this mode;
use "corpus serve" to seed in the background while serving.`

const apiShortDesc string = "Run the retrieval API server"

// APIFlags are the flags shared by every command that runs the API server.
var APIFlags = []string{
	config.FlagAPIListen,
	config.FlagRetrievalMode,
	config.FlagTopK,
}

func NewAPICmd() *cobra.Command {
	cmder := &apiCommander{}

	cmd := &cobra.Command{
		Use:   "api",
		Short: apiShortDesc,
		Long:  apiLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmder.flags = stack.NewFlags(cmd, stack.Join(
		stack.StoreFlags,
		stack.EmbeddingFlags,
		stack.IndexFlags,
		APIFlags,
	)...)

	return cmd
}

func (c *apiCommander) run(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := stack.LoadConfig(cmd, c.flags)
	if err != nil {
		return err
	}

	logger := stack.NewLogger(cmd)
	s, err := stack.Open(ctx, cfg, stack.ConfigDir(cmd), logger)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	server, err := NewServer(s)
	if err != nil {
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		logger.Info("received signal, shutting down", "signal", sig.String())
		return server.Shutdown()
	}
}

// NewServer builds the retrieval engine, the MCP server and the API server
// on top of s.
func NewServer(s *stack.Stack) (*api.Server, error) {
	engine, err := s.Engine()
	if err != nil {
		return nil, fmt.Errorf("creating retrieval engine: %w", err)
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Engine: engine,
		Logger: s.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}

	return api.NewServer(api.Config{
		ListenAddr: s.Config.API.Listen,
		MCPHandler: mcpServer.Handler(),
	}, engine, s.Store, s.Logger)
}
