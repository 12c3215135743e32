// Package catalog records finished import runs in a local SQLite
// database so past imports can be inspected without keeping their
// snapshots loaded.
package catalog

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	world       TEXT NOT NULL,
	snapshot_id TEXT NOT NULL,
	blocks      INTEGER NOT NULL,
	regions     INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_world ON runs(world);
`

// Run is one recorded import.
type Run struct {
	ID         int64
	World      string
	SnapshotID string
	Blocks     int
	Regions    int
	Duration   time.Duration
	CreatedAt  time.Time
}

// Catalog is a handle to the runs database.
type Catalog struct {
	db *sql.DB
}

// Open opens (creating if needed) the catalog at path.
func Open(ctx context.Context, path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open catalog")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "init catalog schema")
	}
	return &Catalog{db: db}, nil
}

// RecordRun inserts a run and returns its id.
func (c *Catalog) RecordRun(ctx context.Context, run Run) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		`INSERT INTO runs (world, snapshot_id, blocks, regions, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.World, run.SnapshotID, run.Blocks, run.Regions,
		run.Duration.Milliseconds(), run.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, errors.Wrap(err, "record run")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return id, nil
}

// ListRuns returns recorded runs, newest first. A non-empty world
// restricts the result to that world name.
func (c *Catalog) ListRuns(ctx context.Context, world string) ([]Run, error) {
	query := `SELECT id, world, snapshot_id, blocks, regions, duration_ms, created_at
	          FROM runs`
	args := []interface{}{}
	if world != "" {
		query += ` WHERE world = ?`
		args = append(args, world)
	}
	query += ` ORDER BY id DESC`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run        Run
			durationMS int64
			createdAt  string
		)
		if err := rows.Scan(&run.ID, &run.World, &run.SnapshotID, &run.Blocks,
			&run.Regions, &durationMS, &createdAt); err != nil {
			return nil, errors.WithStack(err)
		}
		run.Duration = time.Duration(durationMS) * time.Millisecond
		run.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, errors.Wrapf(err, "parse created_at for run %d", run.ID)
		}
		runs = append(runs, run)
	}
	return runs, errors.WithStack(rows.Err())
}

// Close closes the underlying database.
func (c *Catalog) Close() error {
	return errors.WithStack(c.db.Close())
}
