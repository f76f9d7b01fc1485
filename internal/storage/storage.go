package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by readers when the underlying log does not exist.
var ErrNotFound = errors.New("log not found")

// Entry is one durable log record.
type Entry struct {
	Time time.Time
	Text string
}

// Log is an append-only record of texts.
type Log interface {
	// Append records text stamped with the current time.
	Append(ctx context.Context, text string) error
	// Entries returns every record in write order. A log that was never
	// written yields no entries and no error.
	Entries(ctx context.Context) ([]Entry, error)
	Close() error
}

// Texts returns the text of each entry.
func Texts(entries []Entry) []string {
	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Text
	}
	return texts
}
