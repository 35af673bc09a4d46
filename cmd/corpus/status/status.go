// Package statuscmder provides the status command for displaying the last
// seeding run and the store contents.
package statuscmder

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/corpus/cmd/corpus/stack"
	"github.com/papercomputeco/corpus/pkg/cliui"
	"github.com/papercomputeco/corpus/pkg/dotdir"
	"github.com/papercomputeco/corpus/pkg/storage"
)

const statusLongDesc string = `Show the corpus status.

Reads the record of the last seeding run from the .corpus/ directory and
queries the configured store for item, embedding and seed history counts.

Examples:
  corpus status
  corpus status --storage-driver postgres`

const statusShortDesc string = "Show the last seeding run and store counts"

type statusCommander struct {
	flags *stack.Flags
}

func NewStatusCmd() *cobra.Command {
	cmder := &statusCommander{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmder.flags = stack.NewFlags(cmd, stack.StoreFlags...)

	return cmd
}

func (c *statusCommander) run(ctx context.Context, cmd *cobra.Command) error {
	w := cmd.OutOrStdout()

	state, err := dotdir.NewManager().LoadRunState(stack.ConfigDir(cmd))
	if err != nil {
		return fmt.Errorf("loading run state: %w", err)
	}
	PrintRunState(w, state)

	cfg, err := stack.LoadConfig(cmd, c.flags)
	if err != nil {
		return err
	}
	s, err := stack.Open(ctx, cfg, stack.ConfigDir(cmd), stack.NewLogger(cmd))
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	stats, err := s.Store.Stats(ctx)
	if err != nil {
		return err
	}
	PrintStats(w, cfg.Storage.Driver, stats)
	return nil
}

// PrintRunState writes the last run record, or a hint when there is none.
func PrintRunState(w io.Writer, state *dotdir.RunState) {
	if state == nil {
		fmt.Fprintf(w, "\n  %s No seeding run recorded yet. Run `corpus seed` to ingest a dataset.\n", cliui.DimStyle.Render("●"))
		return
	}

	outcome := "ingested"
	if state.Skipped {
		outcome = "skipped"
	}

	fmt.Fprintf(w, "\n  %s  %s %s\n", cliui.KeyStyle.Render("Last run:   "), cliui.NameStyle.Render(state.RunID), cliui.DimStyle.Render(state.FinishedAt.Format(time.RFC3339)))
	fmt.Fprintf(w, "  %s  %s\n", cliui.KeyStyle.Render("Dataset:    "), cliui.ValueStyle.Render(state.Source))
	fmt.Fprintf(w, "  %s  %s\n", cliui.KeyStyle.Render("Outcome:    "), cliui.ValueStyle.Render(outcome))
	if state.Fingerprint != "" {
		fmt.Fprintf(w, "  %s  %s\n", cliui.KeyStyle.Render("Fingerprint:"), cliui.DimStyle.Render(state.Fingerprint))
	}
	fmt.Fprintf(w, "  %s  %s inserted, %s embedded, %s blank, %s backfilled\n",
		cliui.KeyStyle.Render("Items:      "),
		strconv.Itoa(state.Inserted),
		strconv.Itoa(state.Embedded),
		strconv.Itoa(state.Blank),
		strconv.Itoa(state.Backfilled),
	)
	if state.Error != "" {
		fmt.Fprintf(w, "  %s %s\n", cliui.FailMark, state.Error)
	}
}

// PrintStats writes store counts.
func PrintStats(w io.Writer, driver string, stats *storage.Stats) {
	fmt.Fprintf(w, "\n  %s  %s\n", cliui.KeyStyle.Render("Store:      "), cliui.NameStyle.Render(driver))
	fmt.Fprintf(w, "  %s  %d\n", cliui.KeyStyle.Render("Items:      "), stats.Items)
	fmt.Fprintf(w, "  %s  %d (%d distinct)\n", cliui.KeyStyle.Render("Embedded:   "), stats.Embedded, stats.DistinctEmbeddings)
	fmt.Fprintf(w, "  %s  %d\n", cliui.KeyStyle.Render("Missing:    "), stats.Missing)
	fmt.Fprintf(w, "  %s  %d\n\n", cliui.KeyStyle.Render("Seeds:      "), stats.SeedApplications)
}
