// Package prune reshapes a learned log offline: it drops mentions and
// case-insensitive duplicates, regroups one-word fragments and can
// pre-generate candidate posts for curated publishing.
package prune

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/markov-bot/internal/filter"
	"github.com/xaenox/markov-bot/internal/markov"
	"github.com/xaenox/markov-bot/internal/storage"
)

const (
	// GroupSize is how many one-word fragments make up a regrouped line.
	GroupSize = 5

	DefaultSamples   = 5
	DefaultMaxLength = 200
	// DefaultGenerateStateSize keeps mass generation on a one-word state so
	// small logs still branch.
	DefaultGenerateStateSize = 1

	// attemptsPerCandidate bounds mass generation at this many tries per
	// requested candidate.
	attemptsPerCandidate = 5
)

var (
	// ErrInputNotFound is returned when the input log does not exist.
	ErrInputNotFound = errors.New("input log not found")
	// ErrNoOutput is returned when neither an output path nor Overwrite is set.
	ErrNoOutput = errors.New("no output path; set one or enable overwrite")
)

type Options struct {
	Input     string
	Output    string
	Overwrite bool

	// Samples is the number of check generations from a state-size-1 chain.
	Samples int
	// Generate is the number of distinct candidates to write to GenerateOut.
	Generate          int
	GenerateOut       string
	GenerateStateSize int
	MaxLength         int

	// Filters, when set, restricts generated candidates to speakable text.
	Filters *filter.Sets

	Now  func() time.Time
	Rand markov.Rand
}

func (o *Options) setDefaults() {
	if o.Samples < 0 {
		o.Samples = 0
	}
	if o.GenerateStateSize <= 0 {
		o.GenerateStateSize = DefaultGenerateStateSize
	}
	if o.MaxLength <= 0 {
		o.MaxLength = DefaultMaxLength
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Result is the reshaped log and what happened to the input.
type Result struct {
	Entries    []storage.Entry
	Mentions   int
	Duplicates int
	Kept       int
	Grouped    int
}

// Reshape drops lines with an @mention and case-insensitive repeats (the
// first occurrence wins), keeps multi-word lines with their timestamps and
// joins one-word lines into groups of GroupSize stamped with now.
func Reshape(entries []storage.Entry, now time.Time) Result {
	var res Result
	seen := make(map[string]struct{}, len(entries))
	var singles []string

	for _, e := range entries {
		text := strings.TrimSpace(e.Text)
		if text == "" {
			continue
		}
		if filter.HasMention(text) {
			res.Mentions++
			continue
		}
		key := strings.ToLower(text)
		if _, dup := seen[key]; dup {
			res.Duplicates++
			continue
		}
		seen[key] = struct{}{}

		if len(strings.Fields(text)) >= 2 {
			if e.Time.IsZero() {
				e.Time = now
			}
			res.Entries = append(res.Entries, storage.Entry{Time: e.Time, Text: text})
			res.Kept++
			continue
		}
		singles = append(singles, text)
	}

	for i := 0; i < len(singles); i += GroupSize {
		end := min(i+GroupSize, len(singles))
		res.Entries = append(res.Entries, storage.Entry{
			Time: now,
			Text: strings.Join(singles[i:end], " "),
		})
		res.Grouped++
	}
	return res
}

// Report summarizes a Run.
type Report struct {
	Result
	Read    int
	Written string
	// Samples holds one check generation per requested sample; an empty
	// string means the chain produced nothing.
	Samples   []string
	Generated []string
	// GenerateStateSize is the state size of the generation chain.
	GenerateStateSize int
	GeneratedPath     string
}

// Run reshapes opts.Input and writes the result to opts.Output, or back to
// the input when Overwrite is set. Nothing is written when the input is
// missing or there is nowhere to write.
func Run(ctx context.Context, opts Options, logger *zap.Logger) (*Report, error) {
	opts.setDefaults()

	target := opts.Output
	if opts.Overwrite {
		target = opts.Input
	}
	if target == "" {
		return nil, ErrNoOutput
	}

	entries, err := storage.ReadFile(opts.Input)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", opts.Input, ErrInputNotFound)
		}
		return nil, err
	}

	report := &Report{Read: len(entries)}
	report.Result = Reshape(entries, opts.Now())

	if err := storage.WriteFile(target, report.Entries); err != nil {
		return nil, err
	}
	report.Written = target
	logger.Info("Wrote reshaped log",
		zap.String("path", target),
		zap.Int("entries", len(report.Entries)),
		zap.Int("kept", report.Kept),
		zap.Int("grouped", report.Grouped),
		zap.Int("mentions_dropped", report.Mentions),
		zap.Int("duplicates_dropped", report.Duplicates))

	text := strings.Join(storage.Texts(report.Entries), "\n")

	if opts.Samples > 0 {
		report.Samples = sample(text, opts, logger)
	}

	if opts.Generate > 0 && opts.GenerateOut != "" {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.GenerateStateSize = opts.GenerateStateSize
		report.Generated = generate(ctx, text, opts, logger)
		if err := writeLines(opts.GenerateOut, report.Generated); err != nil {
			return report, err
		}
		report.GeneratedPath = opts.GenerateOut
		logger.Info("Wrote generated candidates",
			zap.String("path", opts.GenerateOut),
			zap.Int("requested", opts.Generate),
			zap.Int("generated", len(report.Generated)))
	}
	return report, nil
}

func chainOptions(opts Options, stateSize int) markov.Options {
	mo := markov.DefaultOptions()
	mo.StateSize = stateSize
	mo.Rand = opts.Rand
	return mo
}

func sample(text string, opts Options, logger *zap.Logger) []string {
	out := make([]string, opts.Samples)
	chain, err := markov.New(text, chainOptions(opts, 1))
	if err != nil {
		logger.Warn("Cannot build check model", zap.Error(err))
		return out
	}
	for i := range out {
		out[i], _ = chain.Sample(opts.MaxLength)
	}
	return out
}

// generate collects up to opts.Generate distinct candidates, giving up after
// five attempts per requested candidate.
func generate(ctx context.Context, text string, opts Options, logger *zap.Logger) []string {
	chain, err := markov.New(text, chainOptions(opts, opts.GenerateStateSize))
	if err != nil {
		logger.Warn("Cannot build generation model", zap.Error(err))
		return nil
	}

	seen := make(map[string]struct{}, opts.Generate)
	var out []string
	for attempt := 0; attempt < attemptsPerCandidate*opts.Generate && len(out) < opts.Generate; attempt++ {
		if ctx.Err() != nil {
			break
		}
		candidate, ok := chain.Sample(opts.MaxLength)
		if !ok {
			continue
		}
		if _, dup := seen[candidate]; dup {
			continue
		}
		if opts.Filters != nil && !opts.Filters.IsSpeakable(candidate) {
			continue
		}
		seen[candidate] = struct{}{}
		out = append(out, candidate)
	}
	return out
}

func writeLines(path string, lines []string) error {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
