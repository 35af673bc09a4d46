package stack

import (
	"github.com/spf13/cobra"

	"github.com/papercomputeco/corpus/pkg/config"
)

// Flags records which registry flags a command registered. Flag values are
// read back through viper, so the registration targets are not kept.
type Flags struct {
	keys []string
}

// NewFlags registers keys from config.Flags on cmd.
func NewFlags(cmd *cobra.Command, keys ...string) *Flags {
	for _, key := range keys {
		switch key {
		case config.FlagEmbedOnSeed, config.FlagReset, config.FlagSkipNotEmpty,
			config.FlagFingerprint, config.FlagWatch:
			config.AddBoolFlag(cmd, config.Flags, key, new(bool))
		case config.FlagBatchSize, config.FlagEmbeddingDims, config.FlagTopK:
			config.AddUintFlag(cmd, config.Flags, key, new(uint))
		case config.FlagStreamBrokers:
			config.AddStringSliceFlag(cmd, config.Flags, key, new([]string))
		default:
			config.AddStringFlag(cmd, config.Flags, key, new(string))
		}
	}
	return &Flags{keys: keys}
}

// Keys returns the registered registry keys.
func (f *Flags) Keys() []string {
	return f.keys
}

// StoreFlags select and locate the item store.
var StoreFlags = []string{
	config.FlagStorageDriver,
	config.FlagPostgresDSN,
	config.FlagSQLite,
}

// EmbeddingFlags select the embedding provider.
var EmbeddingFlags = []string{
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
}

// IndexFlags select the optional vector index.
var IndexFlags = []string{
	config.FlagIndexProvider,
	config.FlagIndexTarget,
}

// SeedFlags control a seeding pass.
var SeedFlags = []string{
	config.FlagDataset,
	config.FlagReset,
	config.FlagEmbedOnSeed,
	config.FlagSkipNotEmpty,
	config.FlagFingerprint,
	config.FlagBatchSize,
	config.FlagStreamProvider,
	config.FlagStreamBrokers,
}

// Join concatenates flag key groups.
func Join(groups ...[]string) []string {
	var out []string
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
