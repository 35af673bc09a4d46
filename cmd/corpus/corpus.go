// Package corpuscmder is the root of the corpus CLI.
package corpuscmder

import (
	"github.com/spf13/cobra"

	backfillcmder "github.com/papercomputeco/corpus/cmd/corpus/backfill"
	configcmder "github.com/papercomputeco/corpus/cmd/corpus/config"
	initcmder "github.com/papercomputeco/corpus/cmd/corpus/init"
	searchcmder "github.com/papercomputeco/corpus/cmd/corpus/search"
	seedcmder "github.com/papercomputeco/corpus/cmd/corpus/seed"
	servecmder "github.com/papercomputeco/corpus/cmd/corpus/serve"
	statuscmder "github.com/papercomputeco/corpus/cmd/corpus/status"
	versioncmder "github.com/papercomputeco/corpus/cmd/version"
)

const corpusLongDesc string = `corpus ingests a text corpus into a searchable store and answers
nearest-neighbour retrieval queries for RAG applications.

Datasets are seeded idempotently: a dataset whose content was already
applied is skipped, and items the embedding service could not embed are
backfilled on later runs. Queries are answered by embedding similarity
(dense) or trigram text similarity (sparse).

Configuration lives in .corpus/config.toml (see "corpus config"), can be
overridden with CORPUS_* environment variables and with flags.`

const corpusShortDesc string = "Corpus ingestion and retrieval"

func NewCorpusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "corpus",
		Short:        corpusShortDesc,
		Long:         corpusLongDesc,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolP("debug", "D", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .corpus/ config directory")

	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(seedcmder.NewSeedCmd())
	cmd.AddCommand(backfillcmder.NewBackfillCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
