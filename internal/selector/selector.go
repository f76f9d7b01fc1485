// Package selector turns model samples into a message that is safe to post.
//
// Pick runs the bounded generate-and-validate loop. Select adds the filler
// fallback so live chat posting always has something to say. Curate adds an
// approval step and settles for silence instead of filler.
package selector

import (
	"context"
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"
)

const (
	DefaultRetries   = 5
	DefaultAttempts  = 5
	DefaultMaxLength = 200
)

// Generator samples candidate sentences.
type Generator interface {
	// Ready reports whether the generator can produce anything at all.
	Ready() bool
	Sample(maxLength int) (string, bool)
}

// Approver accepts or rejects a candidate before it is posted.
type Approver interface {
	Approve(ctx context.Context, text string) (bool, error)
}

// Rand picks fallback filler. *rand.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

type Config struct {
	Retries   int
	Attempts  int
	MaxLength int
	Fallback  []string
}

type Selector struct {
	cfg    Config
	accept func(string) bool
	rand   Rand
	logger *zap.Logger
}

// New returns a selector that only hands out candidates accepted by accept.
func New(cfg Config, accept func(string) bool, logger *zap.Logger) *Selector {
	if cfg.Retries <= 0 {
		cfg.Retries = DefaultRetries
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = DefaultMaxLength
	}
	if accept == nil {
		accept = func(string) bool { return true }
	}
	return &Selector{cfg: cfg, accept: accept, rand: globalRand{}, logger: logger}
}

// WithRand replaces the filler random source.
func (s *Selector) WithRand(r Rand) *Selector {
	s.rand = r
	return s
}

// Pick samples up to Retries times and returns the first accepted candidate.
func (s *Selector) Pick(gen Generator) (string, bool) {
	return s.pick(gen, s.accept)
}

func (s *Selector) pick(gen Generator, accept func(string) bool) (string, bool) {
	if gen == nil || !gen.Ready() {
		return "", false
	}
	for i := 0; i < s.cfg.Retries; i++ {
		candidate, ok := gen.Sample(s.cfg.MaxLength)
		if !ok {
			continue
		}
		if accept(candidate) {
			return candidate, true
		}
		s.logger.Debug("Candidate rejected by filter", zap.Int("try", i+1))
	}
	return "", false
}

// Select returns an accepted candidate or, failing that, a random filler.
// It never blocks on anything but the generator and always returns text.
func (s *Selector) Select(gen Generator) string {
	if candidate, ok := s.Pick(gen); ok {
		return candidate
	}
	return s.Filler()
}

// Filler returns one of the fallback phrases chosen uniformly.
func (s *Selector) Filler() string {
	if len(s.cfg.Fallback) == 0 {
		return ""
	}
	return s.cfg.Fallback[s.rand.IntN(len(s.cfg.Fallback))]
}

// Curate asks approver about up to Attempts candidates and returns the first
// approved one. Exhausting the attempts yields ("", false, nil); there is no
// filler for curated posting. A rejected candidate is not offered again in
// the same call.
func (s *Selector) Curate(ctx context.Context, gen Generator, approver Approver) (string, bool, error) {
	if gen == nil || !gen.Ready() {
		return "", false, nil
	}

	rejected := make(map[string]struct{})
	accept := func(text string) bool {
		if _, seen := rejected[text]; seen {
			return false
		}
		return s.accept(text)
	}

	for attempt := 1; attempt <= s.cfg.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", false, err
		}

		candidate, ok := s.pick(gen, accept)
		if !ok {
			s.logger.Debug("No candidate produced", zap.Int("attempt", attempt))
			continue
		}

		approved, err := approver.Approve(ctx, candidate)
		if err != nil {
			return "", false, fmt.Errorf("approval failed: %w", err)
		}
		if approved {
			return candidate, true, nil
		}
		rejected[candidate] = struct{}{}
		s.logger.Info("Candidate declined", zap.Int("attempt", attempt))
	}
	return "", false, nil
}
