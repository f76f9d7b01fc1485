package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileLog is a plain text log with one "[timestamp] text" line per entry.
type FileLog struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

func NewFileLog(path string) *FileLog {
	return &FileLog{path: path, now: time.Now}
}

func (l *FileLog) Append(ctx context.Context, text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log %s: %w", l.path, err)
	}
	line := FormatLine(Entry{Time: l.now(), Text: text}) + "\n"
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return fmt.Errorf("failed to append to log %s: %w", l.path, err)
	}
	return f.Close()
}

func (l *FileLog) Entries(ctx context.Context) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := ReadFile(l.path)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return entries, err
}

// Close is a no-op; the file is opened per append.
func (l *FileLog) Close() error {
	return nil
}

// ReadFile parses every well-formed line of the log at path. Malformed lines
// are skipped. A missing file returns ErrNotFound.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open log %s: %w", path, err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if e, ok := ParseLine(scanner.Text()); ok {
			entries = append(entries, e)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log %s: %w", path, err)
	}
	return entries, nil
}

// WriteFile replaces the log at path with entries. The content goes to a
// temporary file first and is renamed into place.
func WriteFile(path string, entries []Entry) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, e := range entries {
		if _, err := w.WriteString(FormatLine(e) + "\n"); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
