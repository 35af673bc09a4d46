// Package initcmder provides the init command for initializing a local
// .corpus directory in the current working directory.
package initcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/corpus/pkg/cliui"
	"github.com/papercomputeco/corpus/pkg/config"
	"github.com/papercomputeco/corpus/pkg/dotdir"
)

const initLongDesc string = `Initialize a new .corpus/ directory in the current working directory.

Creates a local .corpus/ directory that takes precedence over ~/.corpus/ and
writes a config.toml with default values. The directory also holds the
default SQLite database and the record of the last seeding run.

Use --preset to start from an embedding provider preset, or pass an http(s)
URL to fetch a shared config.toml.

Examples:
  corpus init
  corpus init --preset ollama
  corpus init --preset https://example.com/corpus/config.toml`

const initShortDesc string = "Initialize a local .corpus/ directory"

// presets adjust the default config for a known embedding provider.
var presets = map[string]func(*config.Config){
	"http": func(*config.Config) {},
	"ollama": func(c *config.Config) {
		c.Embedding.Provider = "ollama"
		c.Embedding.Target = "http://localhost:11434"
		c.Embedding.Model = "nomic-embed-text"
		c.Embedding.Dimensions = 768
	},
	"openai": func(c *config.Config) {
		c.Embedding.Provider = "openai"
		c.Embedding.Target = "https://api.openai.com/v1"
		c.Embedding.Model = "text-embedding-3-small"
		c.Embedding.Dimensions = 1536
	},
}

type initCommander struct {
	preset string
}

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "", "Embedding preset ("+strings.Join(presetNames(), ", ")+") or URL of a config.toml")

	return cmd
}

func (c *initCommander) run(ctx context.Context, w io.Writer) error {
	dir, err := dotdir.NewManager().Init("")
	if err != nil {
		return err
	}

	path := filepath.Join(dir, "config.toml")
	_, statErr := os.Stat(path)
	exists := statErr == nil
	if statErr != nil && !errors.Is(statErr, os.ErrNotExist) {
		return fmt.Errorf("checking config: %w", statErr)
	}

	if exists && c.preset == "" {
		fmt.Fprintf(w, "Already initialized: %s\n", dir)
		return nil
	}

	cfg, err := c.config(ctx)
	if err != nil {
		return err
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return err
	}
	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(w, "  %s Initialized .corpus directory: %s\n", cliui.SuccessMark, dir)
	return nil
}

func (c *initCommander) config(ctx context.Context) (*config.Config, error) {
	if strings.HasPrefix(c.preset, "http://") || strings.HasPrefix(c.preset, "https://") {
		return fetchConfig(ctx, c.preset)
	}

	cfg := config.NewDefaultConfig()
	if c.preset == "" {
		return cfg, nil
	}
	apply, ok := presets[c.preset]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q (valid: %s)", c.preset, strings.Join(presetNames(), ", "))
	}
	apply(cfg)
	return cfg, nil
}

func fetchConfig(ctx context.Context, url string) (*config.Config, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating preset request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching preset %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching preset %s: HTTP %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading preset: %w", err)
	}

	cfg, err := config.ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid preset config: %w", err)
	}
	return cfg, nil
}

func presetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
