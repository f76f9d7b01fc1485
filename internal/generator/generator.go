// Package generator wraps the Markov chain so it can be rebuilt while other
// goroutines sample from it.
package generator

import (
	"fmt"
	"sync/atomic"

	"github.com/xaenox/markov-bot/internal/markov"
)

// Model holds the current chain. The zero chain is the valid "absent" state.
type Model struct {
	opts  markov.Options
	chain atomic.Pointer[markov.Chain]
}

// New returns an absent model that builds chains with opts.
func New(opts markov.Options) *Model {
	return &Model{opts: opts}
}

// Retrain builds a chain from text and swaps it in. On failure the previous
// chain stays in place.
func (m *Model) Retrain(text string) error {
	chain, err := markov.New(text, m.opts)
	if err != nil {
		return fmt.Errorf("failed to build model: %w", err)
	}
	m.chain.Store(chain)
	return nil
}

// Ready reports whether a chain has been built.
func (m *Model) Ready() bool {
	return m.chain.Load() != nil
}

// Sentences is the training sentence count of the current chain.
func (m *Model) Sentences() int {
	if c := m.chain.Load(); c != nil {
		return c.Sentences()
	}
	return 0
}

// Sample returns a sentence of at most maxLength runes, or false when the
// model is absent or produced nothing usable.
func (m *Model) Sample(maxLength int) (string, bool) {
	c := m.chain.Load()
	if c == nil {
		return "", false
	}
	return c.Sample(maxLength)
}
