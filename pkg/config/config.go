// Package config loads, validates and persists the corpus configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/corpus/pkg/dotdir"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

var (
	storageDrivers     = []string{"postgres", "sqlite", "memory"}
	embeddingProviders = []string{"http", "ollama", "openai"}
	retrievalModes     = []string{"dense", "sparse"}
	indexProviders     = []string{"", "none", "qdrant", "sqlitevec", "sqlite-vec"}
	streamProviders    = []string{"", "none", "kafka"}
)

// Configer reads and writes config.toml inside a .corpus/ directory.
type Configer struct {
	ddm        *dotdir.Manager
	targetPath string
}

func NewConfiger(override string) (*Configer, error) {
	cfger := &Configer{ddm: dotdir.NewManager()}

	target, err := cfger.ddm.Target(override)
	if err != nil {
		return nil, err
	}
	if target == "" {
		return cfger, nil
	}

	path := filepath.Join(target, configFile)
	if _, err := os.Stat(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfger.targetPath = path

	return cfger, nil
}

func (c *Configer) GetTarget() string {
	return c.targetPath
}

// LoadConfig reads config.toml. A missing file yields NewDefaultConfig, and
// zero fields of a present file are filled from the defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return ParseConfigTOML(data)
}

// SaveConfig persists cfg to config.toml.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}
	if c.targetPath == "" {
		return errors.New("no .corpus directory found, run `corpus init` first")
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// SetConfigValue loads the config, sets key to value, validates and saves it.
func (c *Configer) SetConfigValue(key string, value string) error {
	k, ok := lookupKey(key)
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}
	if err := k.set(cfg, value); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the string form of key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}
	return cfg.Value(key)
}

// ParseConfigTOML parses raw TOML bytes into a Config on top of the defaults.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := NewDefaultConfig()
	cfg.Version = -1
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version == -1 {
		cfg.Version = CurrentV
	}
	if cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}
	return cfg, nil
}

// Validate checks enumerated settings and numeric ranges.
func (c *Config) Validate() error {
	var errs []error
	check := func(key, value string, allowed []string) {
		if !slices.Contains(allowed, value) {
			errs = append(errs, fmt.Errorf("invalid %s %q (allowed: %v)", key, value, allowed))
		}
	}

	check("storage.driver", c.Storage.Driver, storageDrivers)
	check("embedding.provider", c.Embedding.Provider, embeddingProviders)
	check("retrieval.mode", c.Retrieval.Mode, retrievalModes)
	check("vector_store.provider", c.VectorStore.Provider, indexProviders)
	check("eventstream.provider", c.EventStream.Provider, streamProviders)

	if c.Embedding.Dimensions == 0 {
		errs = append(errs, errors.New("embedding.dimensions must be positive"))
	}
	if c.Retrieval.SimilarityThreshold < 0 || c.Retrieval.SimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("retrieval.similarity_threshold %v is outside [0,1]", c.Retrieval.SimilarityThreshold))
	}
	if c.EventStream.Provider == "kafka" && len(c.EventStream.Brokers) == 0 {
		errs = append(errs, errors.New("eventstream.brokers is required for kafka"))
	}
	return errors.Join(errs...)
}
