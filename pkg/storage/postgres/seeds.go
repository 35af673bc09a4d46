package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/papercomputeco/corpus/pkg/storage"
)

func (d *Driver) HasSeed(ctx context.Context, fingerprint string) (bool, error) {
	var exists bool
	err := d.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM seed_history WHERE fingerprint = $1)`, fingerprint,
	).Scan(&exists)
	if err != nil {
		return false, storage.Persistence("reading seed history", err)
	}
	return exists, nil
}

// RecordSeed relies on the unique constraint instead of a lock.
func (d *Driver) RecordSeed(ctx context.Context, fingerprint string) (bool, error) {
	tag, err := d.pool.Exec(ctx,
		`INSERT INTO seed_history (fingerprint) VALUES ($1) ON CONFLICT (fingerprint) DO NOTHING`, fingerprint)
	if err != nil {
		return false, storage.Persistence("recording seed", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (d *Driver) SeedApplications(ctx context.Context) ([]storage.SeedApplication, error) {
	rows, err := d.pool.Query(ctx, `SELECT fingerprint, applied_at FROM seed_history ORDER BY applied_at, id`)
	if err != nil {
		return nil, storage.Persistence("listing seed history", err)
	}
	apps, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (storage.SeedApplication, error) {
		var app storage.SeedApplication
		err := row.Scan(&app.Fingerprint, &app.AppliedAt)
		return app, err
	})
	if err != nil {
		return nil, storage.Persistence("scanning seed history", err)
	}
	return apps, nil
}
