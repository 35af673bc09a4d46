// Package backfillcmder provides the `corpus backfill` CLI command.
package backfillcmder

import (
	"context"
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/corpus/cmd/corpus/stack"
	"github.com/papercomputeco/corpus/pkg/backfill"
)

const backfillLongDesc string = `Embed items that are still missing an embedding.

Pages through the store in id order, embeds each page through the embedding
service and writes the vectors back. Rows that cannot be embedded stay
missing and are retried by the next run; a page that embeds nothing ends the
run early.

Examples:
  corpus backfill
  corpus backfill --storage-driver postgres --postgres-dsn postgres://localhost/corpus
  corpus backfill --quiet`

const backfillShortDesc string = "Embed items missing an embedding"

type backfillCommander struct {
	flags *stack.Flags
	quiet bool
}

// NewBackfillCmd creates the backfill cobra command.
func NewBackfillCmd() *cobra.Command {
	cmder := &backfillCommander{}

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: backfillShortDesc,
		Long:  backfillLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmder.flags = stack.NewFlags(cmd, stack.Join(
		stack.StoreFlags,
		stack.EmbeddingFlags,
		stack.IndexFlags,
	)...)
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Hide the progress bar")

	return cmd
}

func (c *backfillCommander) run(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := stack.LoadConfig(cmd, c.flags)
	if err != nil {
		return err
	}

	s, err := stack.Open(ctx, cfg, stack.ConfigDir(cmd), stack.NewLogger(cmd))
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	missing, err := s.Store.CountMissing(ctx)
	if err != nil {
		return err
	}

	var onPage func(backfill.Progress)
	if !c.quiet && missing > 0 {
		bar := newBar(cmd.ErrOrStderr(), missing)
		defer func() { _ = bar.Finish() }()
		onPage = barUpdater(bar)
	}

	result, err := s.Scanner(onPage).Run(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.Summary())
	return nil
}

func newBar(w io.Writer, missing int64) *progressbar.ProgressBar {
	return progressbar.NewOptions64(missing,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("embedding"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionClearOnFinish(),
	)
}

// barUpdater advances bar by the rows processed since the previous page, so
// the bar reaches its end even when some rows fail to embed.
func barUpdater(bar *progressbar.ProgressBar) func(backfill.Progress) {
	seen := 0
	return func(p backfill.Progress) {
		_ = bar.Add(p.Processed - seen)
		seen = p.Processed
	}
}
