// Package index keeps a SQLite catalogue of observational data files and
// the redshift brackets of their datasets, so a redshift query only loads
// the files that can contribute.
package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/robert-malhotra/go-velociraptor/observational"
)

const schema = `
CREATE TABLE IF NOT EXISTS files (
    path TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    citation TEXT NOT NULL,
    bibcode TEXT NOT NULL,
    max_returns INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS brackets (
    path TEXT NOT NULL REFERENCES files(path) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    redshift REAL NOT NULL,
    z_lower REAL NOT NULL,
    z_upper REAL NOT NULL,
    PRIMARY KEY (path, position)
);
CREATE INDEX IF NOT EXISTS idx_brackets_range ON brackets(z_lower, z_upper);
`

// ErrNotIndexed is returned by Remove for a path the index does not hold.
var ErrNotIndexed = errors.New("file not indexed")

// Entry describes one indexed file.
type Entry struct {
	Path     string
	Name     string
	Citation string
	Bibcode  string
	Datasets int
}

// Index is a SQLite-backed catalogue of observational files.
type Index struct {
	db *sql.DB
}

// Open opens or creates the index database at path.
func Open(ctx context.Context, path string) (*Index, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create index directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index schema: %w", err)
	}
	return &Index{db: db}, nil
}

// Close closes the database.
func (x *Index) Close() error { return x.db.Close() }

// Add records c under path, replacing any earlier record of the same path.
func (x *Index) Add(ctx context.Context, path string, c *observational.Container) (retErr error) {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE path = ?`, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	k, _ := c.MaximumNumberOfReturns()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO files (path, name, citation, bibcode, max_returns) VALUES (?, ?, ?, ?, ?)`,
		path, c.Name(), c.Citation(), c.Bibcode(), k); err != nil {
		return fmt.Errorf("insert %s: %w", path, err)
	}
	for i, d := range c.Datasets() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO brackets (path, position, redshift, z_lower, z_upper) VALUES (?, ?, ?, ?, ?)`,
			path, i, d.Redshift, d.RedshiftLower, d.RedshiftUpper); err != nil {
			return fmt.Errorf("insert bracket %d of %s: %w", i, path, err)
		}
	}
	return tx.Commit()
}

// AddFile loads the observational file at path and records it.
func (x *Index) AddFile(ctx context.Context, path string) error {
	c, err := observational.Load(path)
	if err != nil {
		return err
	}
	return x.Add(ctx, path, c)
}

// Remove drops path from the index.
func (x *Index) Remove(ctx context.Context, path string) error {
	res, err := x.db.ExecContext(ctx, `DELETE FROM files WHERE path = ?`, path)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", path, ErrNotIndexed)
	}
	return nil
}

// Query returns the paths holding at least one dataset whose bracket
// overlaps [lo, hi], boundaries included, sorted by path.
func (x *Index) Query(ctx context.Context, lo, hi float64) ([]string, error) {
	if lo > hi {
		return nil, fmt.Errorf("%w: [%g, %g]", observational.ErrInvalidRange, lo, hi)
	}
	rows, err := x.db.QueryContext(ctx,
		`SELECT DISTINCT path FROM brackets WHERE z_lower <= ? AND z_upper >= ? ORDER BY path`, hi, lo)
	if err != nil {
		return nil, fmt.Errorf("query brackets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// Entries lists every indexed file, sorted by path.
func (x *Index) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := x.db.QueryContext(ctx, `
		SELECT f.path, f.name, f.citation, f.bibcode, COUNT(b.position)
		FROM files f LEFT JOIN brackets b ON b.path = f.path
		GROUP BY f.path ORDER BY f.path`)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Path, &e.Name, &e.Citation, &e.Bibcode, &e.Datasets); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
