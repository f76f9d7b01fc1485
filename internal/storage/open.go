package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// Backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

type OpenConfig struct {
	Backend string
	// Files maps a log kind to its path for the file backend.
	Files      map[string]string
	SQLitePath string
	Database   DatabaseConfig
}

// Opener hands out the logs of one backend. Database backends share one
// connection pool between kinds.
type Opener struct {
	cfg  OpenConfig
	db   *sql.DB
	mu   sync.Mutex
	logs map[string]Log
}

// Open connects to the configured backend.
func Open(ctx context.Context, cfg OpenConfig) (*Opener, error) {
	o := &Opener{cfg: cfg, logs: make(map[string]Log)}

	var err error
	switch cfg.Backend {
	case BackendFile, BackendMemory:
	case BackendPostgres:
		o.db, err = OpenPostgres(ctx, cfg.Database)
	case BackendSQLite:
		o.db, err = OpenSQLite(ctx, cfg.SQLitePath)
	default:
		err = fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Log returns the log of the given kind. Repeated calls return the same log.
func (o *Opener) Log(ctx context.Context, kind string) (Log, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if l, ok := o.logs[kind]; ok {
		return l, nil
	}

	var (
		l   Log
		err error
	)
	switch o.cfg.Backend {
	case BackendFile:
		path, ok := o.cfg.Files[kind]
		if !ok {
			return nil, fmt.Errorf("no file configured for %s log", kind)
		}
		l = NewFileLog(path)
	case BackendMemory:
		l = NewMemoryLog()
	case BackendPostgres:
		l, err = NewPostgresLog(ctx, o.db, kind)
	case BackendSQLite:
		l, err = NewSQLiteLog(ctx, o.db, kind)
	}
	if err != nil {
		return nil, err
	}
	o.logs[kind] = l
	return l, nil
}

// Close releases the database connection, if any.
func (o *Opener) Close() error {
	if o.db == nil {
		return nil
	}
	return o.db.Close()
}
