// Package storageutils selects a storage.Driver implementation from configuration.
package storageutils

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/corpus/pkg/storage"
	"github.com/papercomputeco/corpus/pkg/storage/inmemory"
	"github.com/papercomputeco/corpus/pkg/storage/postgres"
	"github.com/papercomputeco/corpus/pkg/storage/sqlite"
)

type NewDriverOpts struct {
	Driver      string
	PostgresDSN string
	SQLitePath  string
	Dimensions  int
	Logger      *slog.Logger
}

// NewDriver opens the configured store. Bootstrap is left to the caller.
func NewDriver(ctx context.Context, o *NewDriverOpts) (storage.Driver, error) {
	switch o.Driver {
	case "postgres", "postgresql":
		return postgres.NewDriver(ctx, postgres.Config{
			DSN:        o.PostgresDSN,
			Dimensions: o.Dimensions,
		}, o.Logger)
	case "", "sqlite":
		return sqlite.NewDriver(ctx, sqlite.Config{
			Path:       o.SQLitePath,
			Dimensions: o.Dimensions,
		}, o.Logger)
	case "memory", "inmemory":
		return inmemory.NewDriver(o.Dimensions), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", o.Driver)
	}
}
