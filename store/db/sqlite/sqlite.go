// Package sqlite implements the graph store on a single SQLite file. Nodes
// and edges live in two tables; identity keys are canonicalized to JSON so
// the UNIQUE(kind, identity) constraint carries merge semantics.
package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/mnemora/mnemora/internal/profile"
	"github.com/mnemora/mnemora/store"
)

// DB is the SQLite graph driver.
type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens the database file named by the profile DSN.
func NewDB(profile *profile.Profile) (*DB, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	// WAL keeps readers off the writer's lock; busy_timeout covers the
	// rare overlap. Referential integrity is enforced in Go, not SQLite,
	// so foreign_keys stays off.
	dsn := profile.DSN + "?_pragma=foreign_keys(0)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"

	sqliteDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", dsn)
	}

	// A single connection serializes writers, which keeps the
	// read-modify-write merges below race free.
	sqliteDB.SetMaxOpenConns(1)

	return &DB{db: sqliteDB, profile: profile}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS node (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	kind TEXT NOT NULL,
	labels TEXT NOT NULL,
	identity TEXT NOT NULL,
	props TEXT NOT NULL DEFAULT '{}',
	UNIQUE(kind, identity)
);
CREATE INDEX IF NOT EXISTS idx_node_kind ON node (kind);
CREATE TABLE IF NOT EXISTS edge (
	source INTEGER NOT NULL,
	target INTEGER NOT NULL,
	type TEXT NOT NULL,
	props TEXT NOT NULL DEFAULT '{}',
	UNIQUE(source, target, type)
);
CREATE INDEX IF NOT EXISTS idx_edge_source ON edge (source, type);
CREATE INDEX IF NOT EXISTS idx_edge_target ON edge (target, type);
`

// Migrate applies the schema. Every statement is idempotent so re-running
// on an existing file is safe.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "failed to apply schema")
	}
	return nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Run is unsupported. The SQLite driver has no graph query language and we
// prefer a clear error over a partial implementation.
func (d *DB) Run(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	return nil, errors.Wrap(store.ErrUnsupported, "raw graph queries require the neo4j driver")
}
