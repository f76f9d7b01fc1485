package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryLog keeps entries in process memory only.
type MemoryLog struct {
	mu      sync.RWMutex
	entries []Entry
	now     func() time.Time
	// fail, when set, is returned by Append.
	fail error
}

func NewMemoryLog(entries ...Entry) *MemoryLog {
	return &MemoryLog{
		entries: append([]Entry(nil), entries...),
		now:     time.Now,
	}
}

// FailAppends makes every later Append return err. A nil err restores normal
// behaviour.
func (l *MemoryLog) FailAppends(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fail = err
}

func (l *MemoryLog) Append(ctx context.Context, text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fail != nil {
		return l.fail
	}
	l.entries = append(l.entries, Entry{Time: l.now(), Text: text})
	return nil
}

func (l *MemoryLog) Entries(ctx context.Context) ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return append([]Entry(nil), l.entries...), nil
}

func (l *MemoryLog) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
