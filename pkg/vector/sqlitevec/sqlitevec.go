// Package sqlitevec provides a vector.Index backed by a sqlite-vec vec0
// virtual table. Row ids are item ids.
package sqlitevec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/corpus/pkg/vector"
)

// Index implements vector.Index using SQLite with sqlite-vec.
type Index struct {
	db         *sql.DB
	dimensions int
	logger     *slog.Logger
}

// Config holds configuration for the sqlite-vec index.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Dimensions is the embedding dimension. Required.
	Dimensions int
}

var _ vector.Index = (*Index)(nil)

// New opens (creating if needed) the vec0 table at c.DBPath.
func New(c Config, logger *slog.Logger) (*Index, error) {
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, errors.New("database path is required")
	}
	if c.Dimensions <= 0 {
		return nil, errors.New("sqlite-vec embedding dimensions must be configured")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %w", vector.ErrConnection, err)
	}
	db.SetMaxOpenConns(1)

	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: sqlite-vec not available: %w", vector.ErrConnection, err)
	}

	idx := &Index{db: db, dimensions: c.Dimensions, logger: logger}
	if err := idx.create(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("sqlite-vec index initialized",
		"db_path", c.DBPath,
		"dimensions", c.Dimensions,
		"vec_version", vecVersion,
	)
	return idx, nil
}

func (i *Index) create(ctx context.Context) error {
	stmt := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS item_vectors USING vec0(embedding float[%d] distance_metric=cosine)`,
		i.dimensions,
	)
	if _, err := i.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("creating vec0 table: %w", err)
	}
	return nil
}

// Upsert replaces the vectors for the given ids. vec0 has no UPDATE, so each
// point is deleted and inserted again inside one transaction.
func (i *Index) Upsert(ctx context.Context, points []vector.Point) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, p := range points {
		if err := vector.CheckDimension(p.Embedding, i.dimensions); err != nil {
			return fmt.Errorf("point %d: %w", p.ID, err)
		}
		blob, err := sqlite_vec.SerializeFloat32(p.Embedding)
		if err != nil {
			return fmt.Errorf("serializing point %d: %w", p.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM item_vectors WHERE rowid = ?`, p.ID); err != nil {
			return fmt.Errorf("deleting point %d: %w", p.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO item_vectors(rowid, embedding) VALUES (?, ?)`, p.ID, blob); err != nil {
			return fmt.Errorf("inserting point %d: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	i.logger.Debug("upserted points into sqlite-vec", "count", len(points))
	return nil
}

// Query runs a KNN match and converts cosine distance into similarity.
func (i *Index) Query(ctx context.Context, embedding []float32, k int) ([]vector.Match, error) {
	if k <= 0 {
		return nil, nil
	}
	blob, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return nil, fmt.Errorf("serializing query embedding: %w", err)
	}

	rows, err := i.db.QueryContext(ctx, `
		SELECT rowid, distance
		FROM item_vectors
		WHERE embedding MATCH ? AND k = ?
		ORDER BY distance
	`, blob, k)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var matches []vector.Match
	for rows.Next() {
		var (
			id       int64
			distance float64
		)
		if err := rows.Scan(&id, &distance); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		matches = append(matches, vector.Match{ID: id, Score: float32(1 - distance)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating matches: %w", err)
	}
	return matches, nil
}

// Reset drops and recreates the vec0 table.
func (i *Index) Reset(ctx context.Context) error {
	if _, err := i.db.ExecContext(ctx, `DROP TABLE IF EXISTS item_vectors`); err != nil {
		return fmt.Errorf("dropping vec0 table: %w", err)
	}
	return i.create(ctx)
}

// Close closes the database.
func (i *Index) Close() error {
	return i.db.Close()
}
