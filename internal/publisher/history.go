package publisher

import (
	"context"
	"fmt"
	"sync"

	"github.com/xaenox/markov-bot/internal/storage"
)

// History is the set of texts already posted. Texts are compared exactly.
type History struct {
	mu     sync.RWMutex
	posted map[string]struct{}
}

func NewHistory(texts ...string) *History {
	h := &History{posted: make(map[string]struct{}, len(texts))}
	for _, t := range texts {
		h.posted[t] = struct{}{}
	}
	return h
}

// LoadHistory rebuilds the history from the post log.
func LoadHistory(ctx context.Context, log storage.Log) (*History, error) {
	entries, err := log.Entries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load post history: %w", err)
	}
	return NewHistory(storage.Texts(entries)...), nil
}

func (h *History) Contains(text string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.posted[text]
	return ok
}

func (h *History) Add(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.posted[text] = struct{}{}
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.posted)
}
