// Package servecmder provides the serve command: the retrieval API with the
// MCP tool, plus seeding in the background.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	apicmder "github.com/papercomputeco/corpus/cmd/corpus/serve/api"
	"github.com/papercomputeco/corpus/cmd/corpus/stack"
	"github.com/papercomputeco/corpus/pkg/config"
	"github.com/papercomputeco/corpus/pkg/logger"
	"github.com/papercomputeco/corpus/pkg/seed"
)

type ServeCommander struct {
	flags   *stack.Flags
	logFile string
}

const serveLongDesc string = `Run corpus services.

Starts the retrieval API and the MCP retrieve tool, and seeds the configured
dataset in the background. The server answers queries while seeding runs;
seeding failures are logged and never stop the server.

  corpus serve          Run the API server and seed in the background
  corpus serve api      Run just the API server over an existing store

With --watch the dataset file is re-seeded whenever it changes.`

const serveShortDesc string = "Run corpus services"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	cmder.flags = stack.NewFlags(cmd, stack.Join(
		stack.StoreFlags,
		stack.EmbeddingFlags,
		stack.IndexFlags,
		stack.SeedFlags,
		apicmder.APIFlags,
		[]string{config.FlagWatch},
	)...)
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")

	cmd.AddCommand(apicmder.NewAPICmd())

	return cmd
}

func (c *ServeCommander) run(cmd *cobra.Command) error {
	cfg, err := stack.LoadConfig(cmd, c.flags)
	if err != nil {
		return err
	}

	log, closeLog, err := c.newLogger(cmd)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	s, err := stack.Open(ctx, cfg, stack.ConfigDir(cmd), log)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	server, err := apicmder.NewServer(s)
	if err != nil {
		return err
	}

	// Channel to capture errors from goroutines
	errChan := make(chan error, 2)

	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	if cfg.Seed.Enabled && cfg.Seed.Dataset != "" {
		seeder := s.Seeder(s.SeedOptions())
		go func() {
			res, _ := RunSeed(ctx, seeder, log)
			s.SaveRunState(res)
			if cfg.Seed.Watch {
				c.watch(ctx, s, seeder, log)
			}
		}()
	} else {
		log.Info("seeding disabled or no dataset configured")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		log.Info("received signal, shutting down", "signal", sig.String())
		cancel()
		return server.Shutdown()
	}
}

func (c *ServeCommander) watch(ctx context.Context, s *stack.Stack, seeder seed.Runner, log *slog.Logger) {
	path, ok := s.Opener.LocalPath(s.Config.Seed.Dataset)
	if !ok {
		log.Warn("dataset is not a local file, not watching", "dataset", s.Config.Seed.Dataset)
		return
	}

	log.Info("watching dataset", "path", path)
	err := seed.Watch(ctx, path, seeder, seed.DefaultDebounce, func(res *seed.Result, err error) {
		if err != nil {
			log.Error("re-seed failed", "error", err)
		} else {
			log.Info("re-seed finished", "outcome", res.Outcome, "inserted", res.Inserted)
		}
		s.SaveRunState(res)
	})
	if err != nil && ctx.Err() == nil {
		log.Error("dataset watch stopped", "error", err)
	}
}

func (c *ServeCommander) newLogger(cmd *cobra.Command) (*slog.Logger, func(), error) {
	log := stack.NewLogger(cmd)
	if c.logFile == "" {
		return log, func() {}, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	debug, _ := cmd.Flags().GetBool("debug")
	fileLog := logger.New(logger.WithJSON(true), logger.WithDebug(debug), logger.WithWriter(f))
	return logger.Multi(log, fileLog), func() { _ = f.Close() }, nil
}

// RunSeed runs one seeding pass and logs its outcome. A panic is logged and
// returned as an error so the server keeps running.
func RunSeed(ctx context.Context, r seed.Runner, log *slog.Logger) (res *seed.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("background seeding panicked: %v", p)
			log.Error("background seeding panicked", "panic", p)
		}
	}()

	log.Info("background seeding started")
	res, err = r.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			log.Info("background seeding cancelled")
			return res, err
		}
		log.Error("background seeding failed", "error", err)
		return res, err
	}

	log.Info("background seeding finished", "outcome", res.Outcome, "summary", res.Summary())
	return res, nil
}
