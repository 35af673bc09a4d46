// Package vectorutils selects a vector.Index implementation from configuration.
package vectorutils

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/corpus/pkg/vector"
	"github.com/papercomputeco/corpus/pkg/vector/qdrant"
	"github.com/papercomputeco/corpus/pkg/vector/sqlitevec"
)

type NewIndexOpts struct {
	ProviderType string
	Target       string
	Collection   string
	APIKey       string
	Dimensions   int
	Logger       *slog.Logger
}

// NewIndex returns nil without error when no provider is configured: the item
// store then answers dense queries itself.
func NewIndex(ctx context.Context, o *NewIndexOpts) (vector.Index, error) {
	switch o.ProviderType {
	case "", "none":
		return nil, nil
	case "qdrant":
		return qdrant.New(ctx, qdrant.Config{
			Target:     o.Target,
			Collection: o.Collection,
			Dimensions: o.Dimensions,
			APIKey:     o.APIKey,
		}, o.Logger)
	case "sqlitevec", "sqlite-vec":
		return sqlitevec.New(sqlitevec.Config{
			DBPath:     o.Target,
			Dimensions: o.Dimensions,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector index provider: %s", o.ProviderType)
	}
}
