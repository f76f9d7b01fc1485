package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/xaenox/markov-bot/internal/corpus"
	"github.com/xaenox/markov-bot/internal/filter"
	"github.com/xaenox/markov-bot/internal/generator"
	"github.com/xaenox/markov-bot/internal/logging"
	"github.com/xaenox/markov-bot/internal/markov"
	"github.com/xaenox/markov-bot/internal/metrics"
	"github.com/xaenox/markov-bot/internal/publisher"
	"github.com/xaenox/markov-bot/internal/review"
	"github.com/xaenox/markov-bot/internal/schedule"
	"github.com/xaenox/markov-bot/internal/selector"
	"github.com/xaenox/markov-bot/internal/storage"
	"github.com/xaenox/markov-bot/pkg/config"
)

const configPath = "config.yaml"

func main() {
	bootstrap, _ := zap.NewProduction()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		bootstrap.Fatal("Failed to load config", zap.Error(err), zap.String("path", configPath))
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		bootstrap.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync()

	if cfg.Bluesky.Handle == "" || cfg.Bluesky.Password == "" {
		logger.Fatal("Bluesky handle and password are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	filters, err := filter.LoadSets(cfg.Filters.Dir)
	if err != nil {
		logger.Fatal("Failed to load filters", zap.Error(err), zap.String("dir", cfg.Filters.Dir))
	}

	store, err := storage.Open(ctx, cfg.StorageOptions())
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer store.Close()

	learned, err := store.Log(ctx, storage.KindLearned)
	if err != nil {
		logger.Fatal("Failed to open learned log", zap.Error(err))
	}
	posts, err := store.Log(ctx, storage.KindPosts)
	if err != nil {
		logger.Fatal("Failed to open post log", zap.Error(err))
	}

	history, err := publisher.LoadHistory(ctx, posts)
	if err != nil {
		logger.Fatal("Failed to load post history", zap.Error(err))
	}
	logger.Info("Loaded post history", zap.Int("posts", history.Len()))

	var approvers review.Chain
	if cfg.Moderation.Enabled {
		if cfg.OpenAI.APIKey == "" {
			logger.Fatal("Moderation is enabled but openai.api_key is empty")
		}
		approvers = append(approvers, review.NewModeration(cfg.OpenAI.APIKey.Value(), cfg.OpenAI.Model, logger.Named("moderation")))
	}
	if cfg.Bluesky.Curate {
		approvers = append(approvers, review.NewConsole(os.Stdin, os.Stdout))
	}
	var approver selector.Approver = review.Auto{}
	if len(approvers) > 0 {
		approver = approvers
	}

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
	opts.StateSize = cfg.Bluesky.StateSize

	posterLogger := logger.Named("skyposter")
	poster := publisher.New(publisher.Config{
		Handle:   cfg.Bluesky.Handle,
		Password: cfg.Bluesky.Password.Value(),
		Interval: schedule.Jitter{Min: cfg.Bluesky.IntervalMin, Max: cfg.Bluesky.IntervalMax},
		Attempts: cfg.Bluesky.Attempts,
		Retries:  cfg.Posting.Retries,
	}, publisher.Deps{
		Session: publisher.NewBluesky(cfg.Bluesky.Host, nil),
		Source: &publisher.Source{
			StaticPath: cfg.Bluesky.StaticPosts,
			Corpus:     corpus.New(learned, cfg.Corpus.Capacity, posterLogger),
			Model:      generator.New(opts),
			Logger:     posterLogger,
		},
		Approver: approver,
		Filters:  filters,
		History:  history,
		Posts:    posts,
		Metrics:  m,
		Logger:   posterLogger,
	})

	logger.Info("Starting skyposter",
		zap.String("handle", cfg.Bluesky.Handle),
		zap.Bool("curate", cfg.Bluesky.Curate),
		zap.Bool("moderation", cfg.Moderation.Enabled))

	if err := poster.Run(ctx); err != nil {
		logger.Fatal("Poster error", zap.Error(err))
	}
	logger.Info("Skyposter stopped")
}
