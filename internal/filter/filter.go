// Package filter holds the word-list safety tiers and the chat message
// normalizer.
//
// Terms match as case-insensitive substrings, not whole tokens. The hard tier
// decides what may be remembered; hard, soft and spam together decide what may
// be said.
package filter

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Word list file names inside the filters directory.
const (
	HardBlockFile = "hard_block.txt"
	SoftBlockFile = "soft_block.txt"
	SpamBlockFile = "spam_block.txt"
)

// WordSet is an immutable set of lowercase terms.
type WordSet map[string]struct{}

// NewWordSet lowercases and trims terms, dropping empty ones.
func NewWordSet(terms ...string) WordSet {
	set := make(WordSet, len(terms))
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" {
			set[term] = struct{}{}
		}
	}
	return set
}

// matches reports whether any term is a substring of lower.
func (w WordSet) matches(lower string) bool {
	for term := range w {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// Sets groups the three blocking tiers.
type Sets struct {
	Hard WordSet
	Soft WordSet
	Spam WordSet
}

// Stats holds tier sizes.
type Stats struct {
	Hard int
	Soft int
	Spam int
}

func (s *Sets) Stats() Stats {
	return Stats{Hard: len(s.Hard), Soft: len(s.Soft), Spam: len(s.Spam)}
}

// IsLearnable reports whether text contains no hard-blocked term.
func (s *Sets) IsLearnable(text string) bool {
	return !s.Hard.matches(strings.ToLower(text))
}

// IsSpeakable reports whether text contains no term from any tier.
func (s *Sets) IsSpeakable(text string) bool {
	lower := strings.ToLower(text)
	return !s.Hard.matches(lower) && !s.Soft.matches(lower) && !s.Spam.matches(lower)
}

// LoadSets reads the three tier files from dir. Missing files yield empty
// tiers.
func LoadSets(dir string) (*Sets, error) {
	hard, err := LoadWordList(filepath.Join(dir, HardBlockFile))
	if err != nil {
		return nil, err
	}
	soft, err := LoadWordList(filepath.Join(dir, SoftBlockFile))
	if err != nil {
		return nil, err
	}
	spam, err := LoadWordList(filepath.Join(dir, SpamBlockFile))
	if err != nil {
		return nil, err
	}
	return &Sets{Hard: hard, Soft: soft, Spam: spam}, nil
}

// LoadWordList reads one term per line, ignoring blank lines and lines that
// start with '#'. A missing file is an empty set.
func LoadWordList(path string) (WordSet, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return WordSet{}, nil
		}
		return nil, fmt.Errorf("failed to open word list %s: %w", path, err)
	}
	defer f.Close()

	set := WordSet{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		set[strings.ToLower(line)] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read word list %s: %w", path, err)
	}
	return set, nil
}
