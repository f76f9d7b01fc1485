package bot

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xaenox/markov-bot/internal/chat"
	"github.com/xaenox/markov-bot/internal/corpus"
	"github.com/xaenox/markov-bot/internal/filter"
	"github.com/xaenox/markov-bot/internal/generator"
	"github.com/xaenox/markov-bot/internal/logging"
	"github.com/xaenox/markov-bot/internal/metrics"
	"github.com/xaenox/markov-bot/internal/models"
	"github.com/xaenox/markov-bot/internal/schedule"
	"github.com/xaenox/markov-bot/internal/selector"
	"github.com/xaenox/markov-bot/internal/storage"
)

// Learnable messages are longer than MinLength and shorter than MaxLength
// runes, both bounds exclusive.
const (
	MinLength = 3
	MaxLength = 200

	surface = "chat"
)

type Config struct {
	PostingEnabled  bool
	Period          time.Duration
	Jitter          schedule.Jitter
	RetrainInterval int
}

type Deps struct {
	Session  chat.Session
	Corpus   *corpus.Store
	Model    *generator.Model
	Selector *selector.Selector
	Filters  *filter.Sets
	Spoken   storage.Log
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// Bot learns from a chat session and posts generated messages back to it.
type Bot struct {
	cfg      Config
	session  chat.Session
	corpus   *corpus.Store
	model    *generator.Model
	selector *selector.Selector
	filters  *filter.Sets
	spoken   storage.Log
	metrics  *metrics.Metrics
	logger   *zap.Logger
	sleep    schedule.SleepFunc

	// ingestMu serialises ingestion so the accepted counter and retrains
	// follow arrival order.
	ingestMu sync.Mutex
	accepted int

	// canSpeak is cleared for good by the first failed send.
	canSpeak atomic.Bool
}

func New(cfg Config, deps Deps) *Bot {
	if cfg.RetrainInterval <= 0 {
		cfg.RetrainInterval = 50
	}
	if cfg.Period <= 0 {
		cfg.Period = 30 * time.Second
	}
	b := &Bot{
		cfg:      cfg,
		session:  deps.Session,
		corpus:   deps.Corpus,
		model:    deps.Model,
		selector: deps.Selector,
		filters:  deps.Filters,
		spoken:   deps.Spoken,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		sleep:    schedule.Sleep,
	}
	b.canSpeak.Store(true)
	return b
}

// Init replays the corpus log and builds the first model when there is
// anything to learn from.
func (b *Bot) Init(ctx context.Context) error {
	if err := b.corpus.Reload(ctx); err != nil {
		return err
	}
	b.metrics.CorpusSize(b.corpus.Len())
	if b.corpus.Len() > 0 {
		b.retrain()
	}
	return nil
}

// Start runs ingestion and the posting loop until ctx is done.
func (b *Bot) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return b.session.Run(ctx, func(ctx context.Context, msg models.ChatMessage) {
			b.HandleMessage(ctx, msg)
		})
	})
	g.Go(func() error {
		return b.postLoop(ctx)
	})

	return g.Wait()
}

// HandleMessage cleans an inbound message and learns it when it is long
// enough, passes the hard filter and is new. Every RetrainInterval learned
// messages the model is rebuilt before returning.
func (b *Bot) HandleMessage(ctx context.Context, msg models.ChatMessage) models.IngestResult {
	result := b.ingest(ctx, msg)
	b.metrics.Ingested(result)
	b.logger.Debug("Handled message",
		zap.String("author", msg.Author),
		zap.String("channel", msg.Channel),
		zap.Stringer("result", result))
	return result
}

func (b *Bot) ingest(ctx context.Context, msg models.ChatMessage) models.IngestResult {
	if msg.IsEcho {
		return models.IngestIgnored
	}

	cleaned := filter.Normalize(strings.TrimSpace(msg.Text))
	if cleaned == "" {
		return models.IngestIgnored
	}
	if n := utf8.RuneCountInString(cleaned); n <= MinLength || n >= MaxLength {
		return models.IngestRejectedLength
	}
	if !b.filters.IsLearnable(cleaned) {
		return models.IngestRejectedFilter
	}

	b.ingestMu.Lock()
	defer b.ingestMu.Unlock()

	if !b.corpus.Append(ctx, cleaned) {
		return models.IngestDuplicate
	}
	b.metrics.CorpusSize(b.corpus.Len())

	b.accepted++
	if b.accepted%b.cfg.RetrainInterval == 0 {
		b.retrain()
	}
	return models.IngestLearned
}

func (b *Bot) retrain() {
	b.logger.Info("Updating Markov model", zap.Int("corpus_size", b.corpus.Len()))

	err := b.model.Retrain(b.corpus.SnapshotText())
	b.metrics.Retrained(err)
	if err != nil {
		b.logger.Warn("Failed to retrain model", zap.Error(err))
		return
	}
	b.logger.Info("Model updated", zap.Int("sentences", b.model.Sentences()))
}

// CanSpeak reports whether posting is still possible.
func (b *Bot) CanSpeak() bool {
	return b.canSpeak.Load()
}

func (b *Bot) postLoop(ctx context.Context) error {
	ticker := time.NewTicker(b.cfg.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			b.PostCycle(ctx)
		}
	}
}

// PostCycle runs one posting attempt: skip when disabled or not yet in a
// channel, otherwise wait a jittered delay, pick a message and send it. A
// failed send disables posting for the rest of the process lifetime.
func (b *Bot) PostCycle(ctx context.Context) models.Outcome {
	outcome := b.postCycle(ctx)
	b.metrics.Posted(surface, outcome)
	return outcome
}

func (b *Bot) postCycle(ctx context.Context) models.Outcome {
	if !b.cfg.PostingEnabled || !b.canSpeak.Load() {
		return models.OutcomeSkippedDisabled
	}

	channels := b.session.Channels()
	if len(channels) == 0 {
		b.logger.Warn("Channel not yet joined, retrying later")
		return models.OutcomeSkippedNoChannel
	}

	logger := b.logger.With(zap.String("cycle_id", uuid.NewString()))

	delay := b.cfg.Jitter.Next()
	if err := b.sleep(ctx, delay); err != nil {
		return models.OutcomeCanceled
	}

	message := b.selector.Select(b.model)

	if err := b.session.Send(ctx, channels[0], message); err != nil {
		logger.Error("Could not send message, posting disabled",
			zap.Error(err),
			zap.String("channel", channels[0]))
		b.canSpeak.Store(false)
		return models.OutcomeFailed
	}

	if err := b.spoken.Append(ctx, message); err != nil {
		logger.Warn("Failed to record spoken message", zap.Error(err))
	}

	logger.Info("Sent message",
		zap.String("channel", channels[0]),
		zap.String("message", logging.Truncate(message, 80)),
		zap.Duration("delay", delay))
	return models.OutcomeSent
}
