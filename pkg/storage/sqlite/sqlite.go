// Package sqlite provides a SQLite item store. Embeddings are sqlite-vec
// float32 blobs and sparse queries use trigram functions registered on each
// connection.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/corpus/pkg/storage"
	"github.com/papercomputeco/corpus/pkg/trigram"
	"github.com/papercomputeco/corpus/pkg/vector"
)

// driverName is the database/sql driver carrying the trigram functions.
const driverName = "sqlite3_corpus"

const itemColumns = "id, text, label, label_id, reason, context, tags"

var registerOnce sync.Once

func register() {
	registerOnce.Do(func() {
		sqlite_vec.Auto()
		sql.Register(driverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				if err := conn.RegisterFunc("trgm_similarity", trigram.Similarity, true); err != nil {
					return err
				}
				return conn.RegisterFunc("icontains", trigram.ContainsFold, true)
			},
		})
	})
}

// Config holds configuration for the SQLite driver.
type Config struct {
	// Path is the database file, or ":memory:".
	Path string

	// Dimensions is the embedding length accepted by UpdateEmbeddings.
	Dimensions int
}

// Driver implements storage.Driver on a single SQLite connection.
type Driver struct {
	db         *sql.DB
	dimensions int
	logger     *slog.Logger
}

var _ storage.Driver = (*Driver)(nil)

// NewDriver opens the database at c.Path and creates the tables.
func NewDriver(ctx context.Context, c Config, logger *slog.Logger) (*Driver, error) {
	if c.Path == "" {
		return nil, errors.New("sqlite database path is required")
	}
	if c.Dimensions <= 0 {
		return nil, errors.New("sqlite embedding dimensions must be configured")
	}
	register()

	db, err := sql.Open(driverName, c.Path)
	if err != nil {
		return nil, storage.Persistence("opening database", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	d := &Driver{db: db, dimensions: c.Dimensions, logger: logger}
	if err := d.createTables(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

func (d *Driver) createTables(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode = WAL`,
		`CREATE TABLE IF NOT EXISTS rag_items (
			id INTEGER PRIMARY KEY,
			text TEXT NOT NULL,
			label TEXT NOT NULL,
			label_id INTEGER NOT NULL,
			reason TEXT,
			context TEXT,
			tags TEXT,
			embedding BLOB
		)`,
		`CREATE TABLE IF NOT EXISTS seed_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			fingerprint TEXT UNIQUE NOT NULL,
			applied_at DATETIME NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return storage.Persistence("creating tables", err)
		}
	}
	return nil
}

func (d *Driver) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := d.db.QueryRowContext(ctx, `SELECT count(*) FROM rag_items`).Scan(&n); err != nil {
		return 0, storage.Persistence("counting items", err)
	}
	return n, nil
}

func (d *Driver) Truncate(ctx context.Context) error {
	return d.inTx(ctx, "truncating", func(tx *sql.Tx) error {
		for _, stmt := range []string{`DELETE FROM rag_items`, `DELETE FROM seed_history`} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *Driver) UpsertItems(ctx context.Context, items []storage.Item) (int, error) {
	items = storage.DedupeByID(items)
	if len(items) == 0 {
		return 0, nil
	}

	written := 0
	err := d.inTx(ctx, "upserting items", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO rag_items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				text = excluded.text,
				label = excluded.label,
				label_id = excluded.label_id,
				reason = excluded.reason,
				context = excluded.context,
				tags = excluded.tags,
				embedding = CASE WHEN rag_items.text = excluded.text THEN rag_items.embedding ELSE NULL END`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, it := range items {
			tags, err := encodeTags(it.Tags)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, it.ID, it.Text, it.Label, it.LabelID, it.Reason, it.Context, tags); err != nil {
				return err
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

func (d *Driver) UpdateEmbeddings(ctx context.Context, updates []storage.EmbeddingUpdate) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	blobs := make([][]byte, len(updates))
	for i, u := range updates {
		if err := vector.CheckDimension(u.Embedding, d.dimensions); err != nil {
			return 0, storage.Persistence("updating embeddings", err)
		}
		blob, err := sqlite_vec.SerializeFloat32(u.Embedding)
		if err != nil {
			return 0, storage.Persistence("updating embeddings", err)
		}
		blobs[i] = blob
	}

	changed := 0
	err := d.inTx(ctx, "updating embeddings", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `UPDATE rag_items SET embedding = vec_f32(?) WHERE id = ?`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, u := range updates {
			res, err := stmt.ExecContext(ctx, blobs[i], u.ID)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			changed += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

func (d *Driver) MissingEmbeddings(ctx context.Context, afterID int64, limit int) ([]storage.Item, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM rag_items WHERE id > ? AND embedding IS NULL ORDER BY id LIMIT ?`,
		afterID, limit,
	)
	if err != nil {
		return nil, storage.Persistence("listing missing embeddings", err)
	}
	defer rows.Close()

	var items []storage.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, storage.Persistence("scanning items", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Persistence("scanning items", err)
	}
	return items, nil
}

func (d *Driver) CountMissing(ctx context.Context) (int64, error) {
	var n int64
	if err := d.db.QueryRowContext(ctx, `SELECT count(*) FROM rag_items WHERE embedding IS NULL`).Scan(&n); err != nil {
		return 0, storage.Persistence("counting missing embeddings", err)
	}
	return n, nil
}

func (d *Driver) GetItems(ctx context.Context, ids []int64) ([]storage.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	// json_each keeps the statement fixed regardless of how many ids are asked for.
	list, err := json.Marshal(ids)
	if err != nil {
		return nil, storage.Persistence("getting items", err)
	}
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+itemColumns+`, embedding FROM rag_items WHERE id IN (SELECT value FROM json_each(?))`,
		string(list),
	)
	if err != nil {
		return nil, storage.Persistence("getting items", err)
	}
	defer rows.Close()

	var items []storage.Item
	for rows.Next() {
		var (
			it   storage.Item
			tags sql.NullString
			blob []byte
		)
		if err := rows.Scan(&it.ID, &it.Text, &it.Label, &it.LabelID, &it.Reason, &it.Context, &tags, &blob); err != nil {
			return nil, storage.Persistence("scanning items", err)
		}
		if it.Tags, err = decodeTags(tags); err != nil {
			return nil, storage.Persistence("scanning items", err)
		}
		if blob != nil {
			if it.Embedding, err = vector.UnmarshalBlob(blob); err != nil {
				return nil, storage.Persistence("scanning items", err)
			}
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Persistence("scanning items", err)
	}
	return items, nil
}

func (d *Driver) Stats(ctx context.Context) (*storage.Stats, error) {
	stats := &storage.Stats{}
	err := d.db.QueryRowContext(ctx, `
		SELECT count(*), count(embedding), count(DISTINCT embedding),
			(SELECT count(*) FROM seed_history)
		FROM rag_items`,
	).Scan(&stats.Items, &stats.Embedded, &stats.DistinctEmbeddings, &stats.SeedApplications)
	if err != nil {
		return nil, storage.Persistence("reading stats", err)
	}
	stats.Missing = stats.Items - stats.Embedded
	return stats, nil
}

func (d *Driver) HasSeed(ctx context.Context, fingerprint string) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM seed_history WHERE fingerprint = ?)`, fingerprint,
	).Scan(&exists)
	if err != nil {
		return false, storage.Persistence("reading seed history", err)
	}
	return exists, nil
}

func (d *Driver) RecordSeed(ctx context.Context, fingerprint string) (bool, error) {
	res, err := d.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO seed_history (fingerprint, applied_at) VALUES (?, ?)`,
		fingerprint, time.Now().UTC(),
	)
	if err != nil {
		return false, storage.Persistence("recording seed", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storage.Persistence("recording seed", err)
	}
	return n == 1, nil
}

func (d *Driver) SeedApplications(ctx context.Context) ([]storage.SeedApplication, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT fingerprint, applied_at FROM seed_history ORDER BY applied_at, id`)
	if err != nil {
		return nil, storage.Persistence("listing seed history", err)
	}
	defer rows.Close()

	var apps []storage.SeedApplication
	for rows.Next() {
		var app storage.SeedApplication
		if err := rows.Scan(&app.Fingerprint, &app.AppliedAt); err != nil {
			return nil, storage.Persistence("scanning seed history", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Persistence("scanning seed history", err)
	}
	return apps, nil
}

// Close closes the database.
func (d *Driver) Close() error {
	return d.db.Close()
}

func (d *Driver) inTx(ctx context.Context, op string, fn func(*sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.Persistence(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return storage.Persistence(op, err)
	}
	if err := tx.Commit(); err != nil {
		return storage.Persistence(op, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (storage.Item, error) {
	var (
		it   storage.Item
		tags sql.NullString
	)
	if err := row.Scan(&it.ID, &it.Text, &it.Label, &it.LabelID, &it.Reason, &it.Context, &tags); err != nil {
		return it, err
	}
	var err error
	it.Tags, err = decodeTags(tags)
	return it, err
}

func encodeTags(tags []int) (any, error) {
	if tags == nil {
		return nil, nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("encoding tags: %w", err)
	}
	return string(b), nil
}

func decodeTags(s sql.NullString) ([]int, error) {
	if !s.Valid {
		return nil, nil
	}
	var tags []int
	if err := json.Unmarshal([]byte(s.String), &tags); err != nil {
		return nil, fmt.Errorf("decoding tags: %w", err)
	}
	return tags, nil
}
