package sqlite

import "database/sql"

// migrations contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
//
// Every entity is one row in records, keyed by (kind, key), holding a
// versioned JSON document. record_index carries the secondary-index
// entries a document store would serve with a GSI.
const schema = `
CREATE TABLE IF NOT EXISTS records (
    kind TEXT NOT NULL,
    key TEXT NOT NULL,
    version INTEGER NOT NULL,
    data BLOB NOT NULL,
    PRIMARY KEY (kind, key)
);

CREATE TABLE IF NOT EXISTS record_index (
    kind TEXT NOT NULL,
    idx TEXT NOT NULL,
    value TEXT NOT NULL,
    key TEXT NOT NULL,
    PRIMARY KEY (kind, idx, key)
);

CREATE INDEX IF NOT EXISTS idx_record_index_lookup ON record_index(kind, idx, value);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
