// Package markov implements an order-bounded Markov chain over whitespace
// tokens. Sentences are newline separated. A sentence is a walk from the
// begin state to the end state, rejected when it copies too long a run of the
// source text.
package markov

import (
	"errors"
	"math"
	"math/rand/v2"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	DefaultStateSize       = 2
	DefaultTries           = 10
	DefaultMaxOverlapRatio = 0.7
	DefaultMaxOverlapTotal = 15

	// maxWalk caps a single walk; a finite corpus ends long before this.
	maxWalk = 1000
)

const (
	begin = "\x00BEGIN"
	end   = "\x00END"
	// keySep joins state words into a map key.
	keySep = "\x1f"
)

// ErrEmptyCorpus is returned when the text holds no usable sentence.
var ErrEmptyCorpus = errors.New("markov: corpus has no usable sentences")

var (
	sentenceSplit = regexp.MustCompile(`\s*\n\s*`)
	// Sentences with quotes, brackets or dangling apostrophes are skipped.
	rejectInput = regexp.MustCompile(`(^')|('$)|\s'|'\s|["()\[\]]`)
)

// Rand is the random source used for walks. *rand.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

type Options struct {
	StateSize       int
	Tries           int
	MaxOverlapRatio float64
	MaxOverlapTotal int
	// SkipOverlapTest accepts walks that reproduce the source verbatim.
	SkipOverlapTest bool
	// Rand defaults to the goroutine-safe global source.
	Rand Rand
}

func DefaultOptions() Options {
	return Options{
		StateSize:       DefaultStateSize,
		Tries:           DefaultTries,
		MaxOverlapRatio: DefaultMaxOverlapRatio,
		MaxOverlapTotal: DefaultMaxOverlapTotal,
	}
}

type transitions struct {
	words      []string
	cumulative []int
}

func (t *transitions) choose(r Rand) string {
	total := t.cumulative[len(t.cumulative)-1]
	x := r.IntN(total)
	i := sort.Search(len(t.cumulative), func(i int) bool { return t.cumulative[i] > x })
	return t.words[i]
}

// Chain is immutable once built and safe for concurrent sampling when its
// Rand is.
type Chain struct {
	opts      Options
	model     map[string]*transitions
	rejoined  string
	sentences int
}

// New builds a chain from newline separated text.
func New(text string, opts Options) (*Chain, error) {
	if opts.StateSize < 1 {
		opts.StateSize = DefaultStateSize
	}
	if opts.Tries < 1 {
		opts.Tries = DefaultTries
	}
	if opts.MaxOverlapRatio <= 0 {
		opts.MaxOverlapRatio = DefaultMaxOverlapRatio
	}
	if opts.MaxOverlapTotal <= 0 {
		opts.MaxOverlapTotal = DefaultMaxOverlapTotal
	}
	if opts.Rand == nil {
		opts.Rand = globalRand{}
	}

	parsed := parseSentences(text)
	if len(parsed) == 0 {
		return nil, ErrEmptyCorpus
	}

	counts := make(map[string]map[string]int)
	order := make(map[string][]string)
	for _, words := range parsed {
		items := make([]string, 0, opts.StateSize+len(words)+1)
		for i := 0; i < opts.StateSize; i++ {
			items = append(items, begin)
		}
		items = append(items, words...)
		items = append(items, end)

		for i := 0; i+opts.StateSize < len(items); i++ {
			key := strings.Join(items[i:i+opts.StateSize], keySep)
			follow := items[i+opts.StateSize]
			if counts[key] == nil {
				counts[key] = make(map[string]int)
			}
			if counts[key][follow] == 0 {
				order[key] = append(order[key], follow)
			}
			counts[key][follow]++
		}
	}

	model := make(map[string]*transitions, len(counts))
	for key, follows := range counts {
		t := &transitions{
			words:      order[key],
			cumulative: make([]int, len(order[key])),
		}
		sum := 0
		for i, w := range order[key] {
			sum += follows[w]
			t.cumulative[i] = sum
		}
		model[key] = t
	}

	joined := make([]string, len(parsed))
	for i, words := range parsed {
		joined[i] = strings.Join(words, " ")
	}

	return &Chain{
		opts:      opts,
		model:     model,
		rejoined:  strings.Join(joined, " "),
		sentences: len(parsed),
	}, nil
}

func parseSentences(text string) [][]string {
	var parsed [][]string
	for _, line := range sentenceSplit.Split(text, -1) {
		line = strings.TrimSpace(line)
		if line == "" || rejectInput.MatchString(line) {
			continue
		}
		parsed = append(parsed, strings.Fields(line))
	}
	return parsed
}

// Sentences is the number of training sentences accepted.
func (c *Chain) Sentences() int { return c.sentences }

// StateSize is the chain order.
func (c *Chain) StateSize() int { return c.opts.StateSize }

// Walk produces one raw token sequence from begin to end.
func (c *Chain) Walk() []string {
	state := make([]string, c.opts.StateSize)
	for i := range state {
		state[i] = begin
	}

	var words []string
	for len(words) < maxWalk {
		t, ok := c.model[strings.Join(state, keySep)]
		if !ok {
			break
		}
		next := t.choose(c.opts.Rand)
		if next == end {
			break
		}
		words = append(words, next)
		state = append(state[1:], next)
	}
	return words
}

// MakeSentence walks up to Tries times and returns the first walk that passes
// the overlap test.
func (c *Chain) MakeSentence() (string, bool) {
	for i := 0; i < c.opts.Tries; i++ {
		words := c.Walk()
		if len(words) == 0 {
			continue
		}
		if !c.opts.SkipOverlapTest && !c.novel(words) {
			continue
		}
		return strings.Join(words, " "), true
	}
	return "", false
}

// Sample returns a sentence of at most maxLength runes, trying up to Tries
// sentences.
func (c *Chain) Sample(maxLength int) (string, bool) {
	for i := 0; i < c.opts.Tries; i++ {
		sentence, ok := c.MakeSentence()
		if ok && utf8.RuneCountInString(sentence) <= maxLength {
			return sentence, true
		}
	}
	return "", false
}

// novel rejects walks containing a run of more than
// min(MaxOverlapTotal, round(MaxOverlapRatio*len)) words found in the source.
func (c *Chain) novel(words []string) bool {
	overlapMax := min(c.opts.MaxOverlapTotal, int(math.RoundToEven(c.opts.MaxOverlapRatio*float64(len(words)))))
	overlapOver := overlapMax + 1
	gramCount := max(len(words)-overlapMax, 1)
	for i := 0; i < gramCount; i++ {
		endIdx := min(i+overlapOver, len(words))
		if strings.Contains(c.rejoined, strings.Join(words[i:endIdx], " ")) {
			return false
		}
	}
	return true
}
