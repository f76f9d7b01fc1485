// Package publisher posts generated or curated messages to Bluesky on a slow
// jittered schedule, never posting the same text twice.
package publisher

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xaenox/markov-bot/internal/filter"
	"github.com/xaenox/markov-bot/internal/logging"
	"github.com/xaenox/markov-bot/internal/metrics"
	"github.com/xaenox/markov-bot/internal/models"
	"github.com/xaenox/markov-bot/internal/review"
	"github.com/xaenox/markov-bot/internal/schedule"
	"github.com/xaenox/markov-bot/internal/selector"
	"github.com/xaenox/markov-bot/internal/storage"
)

// MaxPostLength is the Bluesky post limit in characters.
const MaxPostLength = 300

const surface = "bluesky"

// Session is a publishing account.
type Session interface {
	Login(ctx context.Context, handle, password string) error
	Post(ctx context.Context, text string) error
}

// CandidateSource yields the generator used for one cycle.
type CandidateSource interface {
	Generator(ctx context.Context, accept func(string) bool) (selector.Generator, error)
}

type Config struct {
	Handle   string
	Password string
	Interval schedule.Jitter
	Attempts int
	Retries  int
}

type Deps struct {
	Session  Session
	Source   CandidateSource
	Approver selector.Approver
	Filters  *filter.Sets
	History  *History
	Posts    storage.Log
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

type Poster struct {
	cfg      Config
	session  Session
	source   CandidateSource
	approver selector.Approver
	selector *selector.Selector
	filters  *filter.Sets
	history  *History
	posts    storage.Log
	metrics  *metrics.Metrics
	logger   *zap.Logger
	sleep    schedule.SleepFunc

	// canPost is cleared for good by the first failed post.
	canPost atomic.Bool
}

func New(cfg Config, deps Deps) *Poster {
	if cfg.Interval.Min <= 0 && cfg.Interval.Max <= 0 {
		cfg.Interval.Min, cfg.Interval.Max = 2*time.Hour, 8*time.Hour
	}
	history := deps.History
	if history == nil {
		history = NewHistory()
	}
	filters := deps.Filters
	if filters == nil {
		filters = &filter.Sets{}
	}
	approver := deps.Approver
	if approver == nil {
		approver = review.Auto{}
	}

	p := &Poster{
		cfg:      cfg,
		session:  deps.Session,
		source:   deps.Source,
		approver: approver,
		filters:  filters,
		history:  history,
		posts:    deps.Posts,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		sleep:    schedule.Sleep,
	}
	p.selector = selector.New(selector.Config{
		Retries:   cfg.Retries,
		Attempts:  cfg.Attempts,
		MaxLength: MaxPostLength,
	}, p.accept, deps.Logger)
	p.canPost.Store(true)
	return p
}

// accept admits speakable texts that have not been posted before.
func (p *Poster) accept(text string) bool {
	return p.filters.IsSpeakable(text) && !p.history.Contains(text)
}

// CanPost reports whether posting is still possible.
func (p *Poster) CanPost() bool {
	return p.canPost.Load()
}

// Run posts once per jittered interval until ctx is done.
func (p *Poster) Run(ctx context.Context) error {
	for {
		p.Cycle(ctx)

		delay := p.cfg.Interval.Next()
		p.logger.Info("Sleeping until next post", zap.Duration("delay", delay))
		if err := p.sleep(ctx, delay); err != nil {
			return nil
		}
	}
}

// Cycle logs in, asks for an approved candidate and posts it. A failed post
// disables posting for the rest of the process lifetime.
func (p *Poster) Cycle(ctx context.Context) models.Outcome {
	outcome := p.cycle(ctx)
	p.metrics.Posted(surface, outcome)
	return outcome
}

func (p *Poster) cycle(ctx context.Context) models.Outcome {
	if !p.canPost.Load() {
		return models.OutcomeSkippedDisabled
	}

	logger := p.logger.With(zap.String("cycle_id", uuid.NewString()))

	if err := p.session.Login(ctx, p.cfg.Handle, p.cfg.Password); err != nil {
		if ctx.Err() != nil {
			return models.OutcomeCanceled
		}
		logger.Warn("Login failed, retrying next cycle", zap.Error(err))
		return models.OutcomeSkippedNoSession
	}
	logger.Info("Logged in", zap.String("handle", p.cfg.Handle))

	gen, err := p.source.Generator(ctx, p.accept)
	if err != nil {
		logger.Warn("No candidate source", zap.Error(err))
		return models.OutcomeSkippedNoCandidate
	}

	text, ok, err := p.selector.Curate(ctx, gen, p.approver)
	if err != nil {
		if ctx.Err() != nil {
			return models.OutcomeCanceled
		}
		logger.Error("Candidate review failed", zap.Error(err))
		return models.OutcomeSkippedNoCandidate
	}
	if !ok {
		logger.Info("No new safe messages found")
		return models.OutcomeSkippedNoCandidate
	}

	if err := p.session.Post(ctx, text); err != nil {
		logger.Error("Failed to post, posting disabled", zap.Error(err))
		p.canPost.Store(false)
		return models.OutcomeFailed
	}

	p.history.Add(text)
	if err := p.posts.Append(ctx, text); err != nil {
		logger.Warn("Failed to record post", zap.Error(err))
	}

	logger.Info("Posted", zap.String("text", logging.Truncate(text, 80)))
	return models.OutcomeSent
}
