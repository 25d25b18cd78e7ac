// Package sqliterepos implements the roster and attendance repositories on a
// single SQLite file, for small single-server deployments. The same
// (student_id, date) uniqueness constraint carries the dedup guarantee; only
// the SQL dialect differs from the postgres adapter.
package sqliterepos

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS student
(
    id          TEXT PRIMARY KEY,
    nis         TEXT      NOT NULL UNIQUE,
    nisn        TEXT      NOT NULL DEFAULT '',
    name        TEXT      NOT NULL,
    class_label TEXT      NOT NULL DEFAULT '',
    created_at  TIMESTAMP NOT NULL,
    updated_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS attendance
(
    id          TEXT PRIMARY KEY,
    student_id  TEXT      NOT NULL REFERENCES student (id),
    nis         TEXT      NOT NULL,
    date        TEXT      NOT NULL,
    time        TIMESTAMP NOT NULL,
    status      TEXT      NOT NULL,
    method      TEXT      NOT NULL,
    station_tag TEXT      NOT NULL DEFAULT '',
    UNIQUE (student_id, date)
);

CREATE INDEX IF NOT EXISTS attendance_date_idx ON attendance (date);
`

// Open opens (and bootstraps) the SQLite database at path.
// Use ":memory:" for an in-memory database.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, errors.Wrap(err, "opening sqlite database")
	}
	// a single writer at a time; readers go through WAL
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "bootstrapping sqlite schema")
	}
	return db, nil
}
