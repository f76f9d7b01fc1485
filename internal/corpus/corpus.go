// Package corpus keeps the bounded, deduplicated, arrival-ordered set of
// learned chat messages that the generator trains on.
package corpus

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/xaenox/markov-bot/internal/storage"
	"go.uber.org/zap"
)

// DefaultCapacity bounds the store when no capacity is configured.
const DefaultCapacity = 10000

// Store is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	capacity int
	entries  []string
	index    map[string]struct{}
	log      storage.Log
	logger   *zap.Logger
}

func New(log storage.Log, capacity int, logger *zap.Logger) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		index:    make(map[string]struct{}),
		log:      log,
		logger:   logger,
	}
}

// Append adds msg unless an equal entry is already held. The durable write is
// best effort: a failure is logged and the in-memory insert stands. Once the
// store is over capacity the oldest entry is evicted. It reports whether msg
// was inserted.
func (s *Store) Append(ctx context.Context, msg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.insert(msg) {
		return false
	}

	if err := s.log.Append(ctx, msg); err != nil {
		s.logger.Warn("Failed to persist learned message",
			zap.Error(err),
			zap.Int("length", len(msg)))
	}

	s.evict()
	return true
}

// evict drops the oldest entries until the store fits its capacity.
func (s *Store) evict() {
	for len(s.entries) > s.capacity {
		delete(s.index, s.entries[0])
		s.entries = s.entries[1:]
	}
}

func (s *Store) insert(msg string) bool {
	if _, ok := s.index[msg]; ok {
		return false
	}
	s.entries = append(s.entries, msg)
	s.index[msg] = struct{}{}
	return true
}

// Reload replaces the in-memory state with a replay of the durable log. Each
// entry goes through the same insert and eviction as Append, minus the log
// write, so a restart reproduces the ordered set held before it. No filters
// run on replay.
func (s *Store) Reload(ctx context.Context) error {
	entries, err := s.log.Entries(ctx)
	if err != nil {
		return fmt.Errorf("failed to replay corpus log: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make([]string, 0, min(len(entries), s.capacity))
	s.index = make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if s.insert(e.Text) {
			s.evict()
		}
	}
	s.entries = append([]string(nil), s.entries...)

	s.logger.Info("Corpus reloaded",
		zap.Int("log_entries", len(entries)),
		zap.Int("kept", len(s.entries)),
		zap.Int("capacity", s.capacity))
	return nil
}

// SnapshotText joins the entries with newlines in arrival order.
func (s *Store) SnapshotText() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return strings.Join(s.entries, "\n")
}

// Messages returns a copy of the entries, oldest first.
func (s *Store) Messages() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string(nil), s.entries...)
}

func (s *Store) Contains(msg string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.index[msg]
	return ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}
