package postgres

import (
	"context"
	"fmt"

	"github.com/papercomputeco/corpus/pkg/storage"
)

// ivfflatLists is the ivfflat partition count for the cosine index.
const ivfflatLists = 100

// Bootstrap ensures the pgvector column and ivfflat index, the pg_trgm
// extension and the trigram index over text and label, then refreshes
// planner statistics. Each statement runs on its own; a failure is logged,
// collected and the remaining statements still run.
func (d *Driver) Bootstrap(ctx context.Context) error {
	berr := &storage.BootstrapError{}
	run := func(name, stmt string, args ...any) bool {
		if _, err := d.pool.Exec(ctx, stmt, args...); err != nil {
			d.logger.Warn("schema bootstrap step failed", "step", name, "error", err)
			berr.Add(name, err)
			return false
		}
		d.logger.Debug("schema bootstrap step applied", "step", name)
		return true
	}

	if run("vector extension", `CREATE EXTENSION IF NOT EXISTS vector`) {
		run("embedding column", fmt.Sprintf(
			`ALTER TABLE rag_items ADD COLUMN IF NOT EXISTS embedding vector(%d)`, d.dimensions))
		d.probeVectorColumn(ctx)
		if d.hasVector.Load() {
			d.reconcileDimension(ctx, berr)
			run("ivfflat index", fmt.Sprintf(
				`CREATE INDEX IF NOT EXISTS rag_items_embedding_cos_idx ON rag_items
				 USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d)`, ivfflatLists))
		}
	}

	if run("pg_trgm extension", `CREATE EXTENSION IF NOT EXISTS pg_trgm`) {
		run("trigram index", `CREATE INDEX IF NOT EXISTS rag_items_text_label_trgm_idx ON rag_items
			USING gin ((text || ' ' || label) gin_trgm_ops)`)
	}

	run("analyze", `ANALYZE rag_items`)

	return berr.OrNil()
}

// reconcileDimension retypes the column when its declared dimension differs
// from the configured one. Stored vectors of another length are cleared first
// so the cast succeeds; backfill recomputes them.
func (d *Driver) reconcileDimension(ctx context.Context, berr *storage.BootstrapError) {
	want := fmt.Sprintf("vector(%d)", d.dimensions)

	var declared string
	err := d.pool.QueryRow(ctx, `
		SELECT format_type(atttypid, atttypmod)
		FROM pg_attribute
		WHERE attrelid = 'rag_items'::regclass AND attname = 'embedding' AND NOT attisdropped
	`).Scan(&declared)
	if err != nil {
		d.logger.Warn("could not read embedding column type", "error", err)
		berr.Add("embedding dimension", err)
		return
	}
	if declared == want {
		return
	}

	d.logger.Info("reconciling embedding column dimension", "declared", declared, "configured", want)
	stmts := []string{
		fmt.Sprintf(`UPDATE rag_items SET embedding = NULL
			WHERE embedding IS NOT NULL AND vector_dims(embedding) <> %d`, d.dimensions),
		`DROP INDEX IF EXISTS rag_items_embedding_cos_idx`,
		fmt.Sprintf(`ALTER TABLE rag_items ALTER COLUMN embedding TYPE %s`, want),
	}
	for _, stmt := range stmts {
		if _, err := d.pool.Exec(ctx, stmt); err != nil {
			d.logger.Warn("embedding dimension reconcile failed", "error", err)
			berr.Add("embedding dimension", err)
			return
		}
	}
}
