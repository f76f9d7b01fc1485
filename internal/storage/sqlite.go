package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

var sqliteDialect = dialect{
	migration: "migrations/sqlite.sql",
	insert:    `INSERT INTO journal (kind, logged_at, text) VALUES (?, ?, ?)`,
	selectAll: `SELECT logged_at, text FROM journal WHERE kind = ? ORDER BY id`,
	encode:    func(t time.Time) any { return t.Unix() },
	decode: func(src any) (time.Time, error) {
		secs, ok := src.(int64)
		if !ok {
			return time.Time{}, fmt.Errorf("unexpected timestamp type %T", src)
		}
		return time.Unix(secs, 0), nil
	},
}

// OpenSQLite opens the database file at path. The pool is limited to one
// connection so that ":memory:" databases behave as a single database.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to sqlite %s: %w", path, err)
	}
	return db, nil
}

// NewSQLiteLog returns the log of the given kind, creating the journal table
// when needed.
func NewSQLiteLog(ctx context.Context, db *sql.DB, kind string) (*SQLLog, error) {
	return newSQLLog(ctx, db, kind, sqliteDialect)
}
