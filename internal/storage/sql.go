package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Log kinds stored in the journal table.
const (
	KindLearned = "learned"
	KindSpoken  = "spoken"
	KindPosts   = "posts"
)

type dialect struct {
	migration string
	insert    string
	selectAll string
	// encode and decode convert between time.Time and the column value.
	encode func(time.Time) any
	decode func(src any) (time.Time, error)
}

// SQLLog stores entries of one kind in the shared journal table. The
// *sql.DB is owned by the caller.
type SQLLog struct {
	db      *sql.DB
	kind    string
	dialect dialect
	now     func() time.Time
}

func newSQLLog(ctx context.Context, db *sql.DB, kind string, d dialect) (*SQLLog, error) {
	l := &SQLLog{db: db, kind: kind, dialect: d, now: time.Now}
	if err := l.initializeSchema(ctx); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}
	return l, nil
}

func (l *SQLLog) initializeSchema(ctx context.Context) error {
	migrationSQL, err := migrations.ReadFile(l.dialect.migration)
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := l.db.ExecContext(ctx, string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}
	return nil
}

func (l *SQLLog) Append(ctx context.Context, text string) error {
	_, err := l.db.ExecContext(ctx, l.dialect.insert, l.kind, l.dialect.encode(l.now()), text)
	if err != nil {
		return fmt.Errorf("error appending %s entry: %w", l.kind, err)
	}
	return nil
}

func (l *SQLLog) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx, l.dialect.selectAll, l.kind)
	if err != nil {
		return nil, fmt.Errorf("error querying %s entries: %w", l.kind, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			stamp any
			text  string
		)
		if err := rows.Scan(&stamp, &text); err != nil {
			return nil, fmt.Errorf("error scanning %s entry: %w", l.kind, err)
		}
		ts, err := l.dialect.decode(stamp)
		if err != nil {
			return nil, fmt.Errorf("error decoding %s timestamp: %w", l.kind, err)
		}
		entries = append(entries, Entry{Time: ts, Text: text})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s entries: %w", l.kind, err)
	}
	return entries, nil
}

// Close leaves the shared database open.
func (l *SQLLog) Close() error {
	return nil
}
