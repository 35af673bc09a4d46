// Package configcmder provides the config command for managing persistent
// corpus configuration stored in the .corpus/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/corpus/pkg/cliui"
	"github.com/papercomputeco/corpus/pkg/config"
)

const configLongDesc string = `Manage persistent corpus configuration.

Configuration is stored as config.toml in the .corpus/ directory and provides
default values for command flags. Environment variables (CORPUS_SEED_DATASET,
CORPUS_EMBEDDING_TARGET, ...) override the file, and CLI flags override both.

Keys use dotted notation matching the TOML section structure, for example:
  storage.driver, storage.postgres_dsn, storage.sqlite_path,
  seed.dataset, seed.embed_on_seed, seed.use_fingerprint,
  embedding.provider, embedding.target, embedding.dimensions,
  retrieval.mode, retrieval.top_k, retrieval.similarity_threshold,
  vector_store.provider, eventstream.brokers

Use subcommands to get, set, or list configuration values:
  corpus config set <key> <value>    Set a configuration value
  corpus config get <key>            Get a configuration value
  corpus config list                 List all configuration values

Examples:
  corpus config set storage.driver postgres
  corpus config set embedding.target http://localhost:8081
  corpus config get retrieval.mode
  corpus config list`

const configShortDesc string = "Manage persistent corpus configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func checkKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

func printTarget(w io.Writer, cfger *config.Configer) {
	if target := cfger.GetTarget(); target != "" {
		fmt.Fprintf(w, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
		return
	}
	fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
}
