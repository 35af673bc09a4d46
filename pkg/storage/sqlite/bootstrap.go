package sqlite

import (
	"context"

	"github.com/papercomputeco/corpus/pkg/storage"
)

// Bootstrap checks that sqlite-vec is loaded, clears vectors stored with
// another dimension, and indexes the rows backfill scans.
func (d *Driver) Bootstrap(ctx context.Context) error {
	berr := &storage.BootstrapError{}

	var version string
	if err := d.db.QueryRowContext(ctx, `SELECT vec_version()`).Scan(&version); err != nil {
		d.logger.Warn("sqlite-vec is not available", "error", err)
		berr.Add("sqlite-vec", err)
	} else {
		d.logger.Debug("sqlite-vec loaded", "vec_version", version)
		res, err := d.db.ExecContext(ctx,
			`UPDATE rag_items SET embedding = NULL WHERE embedding IS NOT NULL AND vec_length(embedding) <> ?`,
			d.dimensions)
		if err != nil {
			berr.Add("embedding dimension", err)
		} else if n, _ := res.RowsAffected(); n > 0 {
			d.logger.Info("cleared embeddings with a stale dimension", "rows", n, "dimensions", d.dimensions)
		}
	}

	steps := []struct{ name, stmt string }{
		{"missing embedding index", `CREATE INDEX IF NOT EXISTS rag_items_missing_embedding_idx ON rag_items (id) WHERE embedding IS NULL`},
		{"trigram functions", `SELECT trgm_similarity('a', 'a'), icontains('a', 'a')`},
		{"analyze", `ANALYZE`},
	}
	for _, s := range steps {
		if _, err := d.db.ExecContext(ctx, s.stmt); err != nil {
			d.logger.Warn("schema bootstrap step failed", "step", s.name, "error", err)
			berr.Add(s.name, err)
		}
	}

	return berr.OrNil()
}
