package sqlite

import (
	"context"
	"database/sql"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"

	"github.com/papercomputeco/corpus/pkg/storage"
)

const combined = `(text || ' ' || label)`

// DenseSearch scans embedded rows with vec_distance_cosine. Rows whose
// stored length differs from the query are skipped.
func (d *Driver) DenseSearch(ctx context.Context, query []float32, k int) ([]storage.Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, storage.Persistence("dense search", err)
	}
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+itemColumns+`, 1.0 - distance AS score FROM (
			SELECT `+itemColumns+`, vec_distance_cosine(embedding, vec_f32(?1)) AS distance
			FROM rag_items
			WHERE embedding IS NOT NULL AND vec_length(embedding) = ?2
		)
		ORDER BY distance ASC, id ASC
		LIMIT ?3`,
		blob, len(query), k,
	)
	if err != nil {
		return nil, storage.Persistence("dense search", err)
	}
	return collectHits(rows)
}

// SparseSearch keeps rows passing the similarity threshold or containing
// the query in text or label.
func (d *Driver) SparseSearch(ctx context.Context, query string, threshold float64, k int) ([]storage.Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+itemColumns+`, score FROM (
			SELECT `+itemColumns+`, trgm_similarity(`+combined+`, ?1) AS score
			FROM rag_items
		)
		WHERE score >= ?2 OR icontains(text, ?1) OR icontains(label, ?1)
		ORDER BY score DESC, id ASC
		LIMIT ?3`,
		query, threshold, k,
	)
	if err != nil {
		return nil, storage.Persistence("sparse search", err)
	}
	return collectHits(rows)
}

func (d *Driver) RankAll(ctx context.Context, query string, k int) ([]storage.Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+itemColumns+`, trgm_similarity(`+combined+`, ?1) AS score
		FROM rag_items
		ORDER BY score DESC, id ASC
		LIMIT ?2`,
		query, k,
	)
	if err != nil {
		return nil, storage.Persistence("ranking items", err)
	}
	return collectHits(rows)
}

func collectHits(rows *sql.Rows) ([]storage.Hit, error) {
	defer rows.Close()

	var hits []storage.Hit
	for rows.Next() {
		var (
			h    storage.Hit
			tags sql.NullString
			err  error
		)
		if err = rows.Scan(&h.ID, &h.Text, &h.Label, &h.LabelID, &h.Reason, &h.Context, &tags, &h.Score); err != nil {
			return nil, storage.Persistence("scanning hits", err)
		}
		if h.Tags, err = decodeTags(tags); err != nil {
			return nil, storage.Persistence("scanning hits", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Persistence("scanning hits", err)
	}
	return hits, nil
}
