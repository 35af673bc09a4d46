// Package seedcmder provides the `corpus seed` CLI command.
package seedcmder

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/corpus/cmd/corpus/stack"
	"github.com/papercomputeco/corpus/pkg/cliui"
	"github.com/papercomputeco/corpus/pkg/config"
	"github.com/papercomputeco/corpus/pkg/seed"
)

const seedLongDesc string = `Seed the corpus from a dataset.

Reads the dataset (JSON array, JSON lines or CSV), writes the items to the
configured store in batches and embeds them. A dataset whose content was
already applied is skipped, and rows still missing embeddings are backfilled.

Dataset locations may be a file path, a classpath: location searched in
., data/ and resources/, or an s3://bucket/key object. Files ending in .gz or
.zst are decompressed.

Examples:
  corpus seed --dataset ./data/items.jsonl
  corpus seed --dataset s3://corpora/support.jsonl.zst --storage-driver postgres
  corpus seed --reset
  corpus seed --embed=false`

const seedShortDesc string = "Seed the corpus from a dataset"

type seedCommander struct {
	flags *stack.Flags
}

func NewSeedCmd() *cobra.Command {
	cmder := &seedCommander{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: seedShortDesc,
		Long:  seedLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmder.flags = stack.NewFlags(cmd, stack.Join(
		stack.StoreFlags,
		stack.EmbeddingFlags,
		stack.IndexFlags,
		stack.SeedFlags,
	)...)

	return cmd
}

func (c *seedCommander) run(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := stack.LoadConfig(cmd, c.flags)
	if err != nil {
		return err
	}
	if cfg.Seed.Dataset == "" {
		return fmt.Errorf("no dataset configured: pass --%s or set seed.dataset", config.Flags[config.FlagDataset].Name)
	}
	// An explicit seed command always runs, whatever seed.enabled says.
	cfg.Seed.Enabled = true

	logger := stack.NewLogger(cmd)
	s, err := stack.Open(ctx, cfg, stack.ConfigDir(cmd), logger)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	res, err := Run(ctx, cmd.OutOrStdout(), s, logger)
	s.SaveRunState(res)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\n  %s %s\n\n", cliui.Mark(nil), res.Summary())
	return nil
}

// Run performs one seeding pass behind a spinner step. It is shared with
// `corpus serve`.
func Run(ctx context.Context, w io.Writer, s *stack.Stack, logger *slog.Logger) (*seed.Result, error) {
	var res *seed.Result
	err := cliui.Step(w, "Seeding "+s.Config.Seed.Dataset, func() error {
		var runErr error
		res, runErr = s.Seeder(s.SeedOptions()).Run(ctx)
		return runErr
	})
	if res != nil && res.BootstrapErr != nil {
		logger.Debug("continuing without acceleration structures", "run_id", res.RunID)
		fmt.Fprintf(w, "  %s %s\n", cliui.SkipMark, cliui.DimStyle.Render("schema bootstrap incomplete: "+res.BootstrapErr.Error()))
	}
	return res, err
}
