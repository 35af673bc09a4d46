package postgres

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/papercomputeco/corpus/pkg/storage"
	"github.com/papercomputeco/corpus/pkg/vector"
)

// tieMargin widens the index scan so that rows tied at the k-th distance can
// still be ordered by id.
const tieMargin = 16

const combined = `(text || ' ' || label)`

// DenseSearch lets the ivfflat index pick candidates by cosine distance and
// then orders them by distance and id.
func (d *Driver) DenseSearch(ctx context.Context, query []float32, k int) ([]storage.Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	if !d.hasVector.Load() {
		return nil, storage.Persistence("dense search", storage.ErrNoVectorColumn)
	}

	rows, err := d.pool.Query(ctx, `
		SELECT `+itemColumns+`, 1 - distance AS score FROM (
			SELECT `+itemColumns+`, embedding <=> $1::text::vector AS distance
			FROM rag_items
			WHERE embedding IS NOT NULL
			ORDER BY embedding <=> $1::text::vector
			LIMIT $2
		) nearest
		ORDER BY distance ASC, id ASC
		LIMIT $3`,
		vector.Encode(query), k+tieMargin, k,
	)
	if err != nil {
		return nil, storage.Persistence("dense search", err)
	}
	return collectHits(rows)
}

// SparseSearch is the filtered trigram stage. The similarity threshold is
// set for this transaction only.
func (d *Driver) SparseSearch(ctx context.Context, query string, threshold float64, k int) ([]storage.Hit, error) {
	if k <= 0 {
		return nil, nil
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return nil, storage.Persistence("sparse search", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT set_config('pg_trgm.similarity_threshold', $1, true)`,
		strconv.FormatFloat(threshold, 'f', -1, 64)); err != nil {
		return nil, storage.Persistence("sparse search", err)
	}

	rows, err := tx.Query(ctx, `
		SELECT `+itemColumns+`, similarity(`+combined+`, $1) AS score
		FROM rag_items
		WHERE `+combined+` % $1
		   OR text ILIKE $2
		   OR label ILIKE $2
		ORDER BY score DESC NULLS LAST, id ASC
		LIMIT $3`,
		query, "%"+escapeLike(query)+"%", k,
	)
	if err != nil {
		return nil, storage.Persistence("sparse search", err)
	}
	hits, err := collectHits(rows)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, storage.Persistence("sparse search", err)
	}
	return hits, nil
}

// RankAll ranks the whole table by trigram similarity.
func (d *Driver) RankAll(ctx context.Context, query string, k int) ([]storage.Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	rows, err := d.pool.Query(ctx, `
		SELECT `+itemColumns+`, similarity(`+combined+`, $1) AS score
		FROM rag_items
		ORDER BY score DESC NULLS LAST, id ASC
		LIMIT $2`,
		query, k,
	)
	if err != nil {
		return nil, storage.Persistence("ranking items", err)
	}
	return collectHits(rows)
}

func collectHits(rows pgx.Rows) ([]storage.Hit, error) {
	hits, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (storage.Hit, error) {
		var (
			h     storage.Hit
			tags  []int32
			score *float64
		)
		if err := row.Scan(&h.ID, &h.Text, &h.Label, &h.LabelID, &h.Reason, &h.Context, &tags, &score); err != nil {
			return h, err
		}
		h.Tags = fromInt32s(tags)
		if score != nil {
			h.Score = *score
		}
		return h, nil
	})
	if err != nil {
		return nil, storage.Persistence("scanning hits", err)
	}
	return hits, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
