package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/xaenox/markov-bot/internal/bot"
	"github.com/xaenox/markov-bot/internal/chat"
	"github.com/xaenox/markov-bot/internal/corpus"
	"github.com/xaenox/markov-bot/internal/filter"
	"github.com/xaenox/markov-bot/internal/generator"
	"github.com/xaenox/markov-bot/internal/logging"
	"github.com/xaenox/markov-bot/internal/markov"
	"github.com/xaenox/markov-bot/internal/metrics"
	"github.com/xaenox/markov-bot/internal/schedule"
	"github.com/xaenox/markov-bot/internal/selector"
	"github.com/xaenox/markov-bot/internal/storage"
	"github.com/xaenox/markov-bot/pkg/config"
)

const configPath = "config.yaml"

func main() {
	bootstrap, _ := zap.NewProduction()

	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		bootstrap.Fatal("Failed to load config", zap.Error(err), zap.String("path", configPath))
	}

	// Initialize logger
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		bootstrap.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load filters
	filters, err := filter.LoadSets(cfg.Filters.Dir)
	if err != nil {
		logger.Fatal("Failed to load filters", zap.Error(err), zap.String("dir", cfg.Filters.Dir))
	}
	logger.Info("Loaded filters", zap.Any("sizes", filters.Stats()))

	// Initialize storage
	logger.Info("Opening storage", zap.String("backend", cfg.Storage.Backend))
	store, err := storage.Open(ctx, cfg.StorageOptions())
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer store.Close()

	learned, err := store.Log(ctx, storage.KindLearned)
	if err != nil {
		logger.Fatal("Failed to open learned log", zap.Error(err))
	}
	spoken, err := store.Log(ctx, storage.KindSpoken)
	if err != nil {
		logger.Fatal("Failed to open spoken log", zap.Error(err))
	}

	// Initialize chat session
	var session chat.Session
	switch cfg.Chat.Platform {
	case config.PlatformDiscord:
		session, err = chat.NewDiscord(cfg.Discord.Token.Value(), cfg.Discord.ChannelID, logger.Named("discord"))
	default:
		session, err = chat.NewTelegram(cfg.Telegram.Token.Value(), cfg.Telegram.ChatID, logger.Named("telegram"))
	}
	if err != nil {
		logger.Fatal("Failed to create chat session", zap.Error(err), zap.String("platform", cfg.Chat.Platform))
	}

	// Metrics
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, registry, logger); err != nil {
				logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	opts := markov.DefaultOptions()
	opts.StateSize = cfg.Corpus.StateSize

	botLogger := logger.Named("bot")
	b := bot.New(bot.Config{
		PostingEnabled:  cfg.Posting.Enabled,
		Period:          cfg.Posting.Period,
		Jitter:          schedule.Jitter{Min: cfg.Posting.JitterMin, Max: cfg.Posting.JitterMax},
		RetrainInterval: cfg.Corpus.RetrainInterval,
	}, bot.Deps{
		Session: session,
		Corpus:  corpus.New(learned, cfg.Corpus.Capacity, botLogger),
		Model:   generator.New(opts),
		Selector: selector.New(selector.Config{
			Retries:   cfg.Posting.Retries,
			MaxLength: cfg.Posting.MaxLength,
			Fallback:  cfg.Posting.Fallback,
		}, filters.IsSpeakable, botLogger),
		Filters: filters,
		Spoken:  spoken,
		Metrics: m,
		Logger:  botLogger,
	})

	if err := b.Init(ctx); err != nil {
		logger.Fatal("Failed to load corpus", zap.Error(err))
	}

	logger.Info("Starting bot",
		zap.String("platform", cfg.Chat.Platform),
		zap.Bool("posting_enabled", cfg.Posting.Enabled))

	// Start the bot
	if err := b.Start(ctx); err != nil {
		logger.Fatal("Bot error", zap.Error(err))
	}
	logger.Info("Bot stopped")
}
