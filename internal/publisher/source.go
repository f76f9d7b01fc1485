package publisher

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/xaenox/markov-bot/internal/corpus"
	"github.com/xaenox/markov-bot/internal/generator"
	"github.com/xaenox/markov-bot/internal/selector"
)

// ErrNoStaticPosts means the curated posts file does not exist.
var ErrNoStaticPosts = errors.New("no static posts file")

// LoadStaticPosts reads one post per line, skipping blank lines.
func LoadStaticPosts(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrNoStaticPosts)
		}
		return nil, fmt.Errorf("failed to read static posts %s: %w", path, err)
	}

	var posts []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			posts = append(posts, line)
		}
	}
	return posts, nil
}

// StaticPool hands out curated posts in random order, each at most once.
type StaticPool struct {
	posts []string
	next  int
}

// NewStaticPool keeps the posts accepted by accept and shuffles them.
func NewStaticPool(posts []string, accept func(string) bool) *StaticPool {
	pool := &StaticPool{}
	for _, p := range posts {
		if accept == nil || accept(p) {
			pool.posts = append(pool.posts, p)
		}
	}
	rand.Shuffle(len(pool.posts), func(i, j int) {
		pool.posts[i], pool.posts[j] = pool.posts[j], pool.posts[i]
	})
	return pool
}

func (p *StaticPool) Ready() bool { return p.next < len(p.posts) }

func (p *StaticPool) Len() int { return len(p.posts) }

// Sample returns the next post that fits in maxLength runes.
func (p *StaticPool) Sample(maxLength int) (string, bool) {
	for p.next < len(p.posts) {
		post := p.posts[p.next]
		p.next++
		if utf8.RuneCountInString(post) <= maxLength {
			return post, true
		}
	}
	return "", false
}

// Source picks where a cycle's candidates come from: the curated posts file
// when it exists, otherwise a model retrained from the learned corpus.
type Source struct {
	StaticPath string
	Corpus     *corpus.Store
	Model      *generator.Model
	Logger     *zap.Logger
}

// Generator returns the candidate generator for one cycle. accept pre-filters
// curated posts.
func (s *Source) Generator(ctx context.Context, accept func(string) bool) (selector.Generator, error) {
	if s.StaticPath != "" {
		posts, err := LoadStaticPosts(s.StaticPath)
		if err == nil {
			pool := NewStaticPool(posts, accept)
			s.Logger.Info("Using static posts",
				zap.String("path", s.StaticPath),
				zap.Int("total", len(posts)),
				zap.Int("eligible", pool.Len()))
			return pool, nil
		}
		if !errors.Is(err, ErrNoStaticPosts) {
			return nil, err
		}
	}

	if s.Corpus == nil || s.Model == nil {
		return nil, ErrNoStaticPosts
	}

	if err := s.Corpus.Reload(ctx); err != nil {
		return nil, fmt.Errorf("failed to reload corpus: %w", err)
	}
	if err := s.Model.Retrain(s.Corpus.SnapshotText()); err != nil {
		s.Logger.Warn("Failed to retrain model", zap.Error(err))
	} else {
		s.Logger.Info("Model retrained from corpus",
			zap.Int("corpus_size", s.Corpus.Len()),
			zap.Int("sentences", s.Model.Sentences()))
	}
	return s.Model, nil
}
