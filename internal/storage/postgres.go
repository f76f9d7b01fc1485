package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

var postgresDialect = dialect{
	migration: "migrations/postgres.sql",
	insert:    `INSERT INTO journal (kind, logged_at, text) VALUES ($1, $2, $3)`,
	selectAll: `SELECT logged_at, text FROM journal WHERE kind = $1 ORDER BY id`,
	encode:    func(t time.Time) any { return t },
	decode: func(src any) (time.Time, error) {
		t, ok := src.(time.Time)
		if !ok {
			return time.Time{}, fmt.Errorf("unexpected timestamp type %T", src)
		}
		return t, nil
	},
}

// OpenPostgres connects to PostgreSQL and verifies the connection.
func OpenPostgres(ctx context.Context, config DatabaseConfig) (*sql.DB, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	return db, nil
}

// NewPostgresLog returns the log of the given kind, creating the journal
// table when needed.
func NewPostgresLog(ctx context.Context, db *sql.DB, kind string) (*SQLLog, error) {
	return newSQLLog(ctx, db, kind, postgresDialect)
}
