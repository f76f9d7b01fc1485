package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xaenox/markov-bot/internal/filter"
	"github.com/xaenox/markov-bot/internal/logging"
	"github.com/xaenox/markov-bot/internal/prune"
)

var (
	opts       prune.Options
	filtersDir string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "prune",
	Short:         "Prune and restructure the learned log",
	Long:          "Drops mentions and duplicates from the learned log, regroups one-word messages and optionally pre-generates posts for curated publishing.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&opts.Input, "input", "i", "learned.log", "Input learned log file")
	flags.StringVarP(&opts.Output, "output", "o", "learned_reshaped.log", "Output file (unless --overwrite is used)")
	flags.BoolVar(&opts.Overwrite, "overwrite", false, "Overwrite the input file directly")
	flags.IntVar(&opts.Samples, "samples", prune.DefaultSamples, "Sample sentences to print from the reshaped log")
	flags.IntVarP(&opts.Generate, "generate", "n", 0, "Number of distinct candidate posts to pre-generate")
	flags.StringVar(&opts.GenerateOut, "generate-out", "filters/static_posts.txt", "File the generated candidates are written to")
	flags.IntVar(&opts.GenerateStateSize, "state-size", prune.DefaultGenerateStateSize, "Model state size for generated candidates")
	flags.StringVar(&filtersDir, "filters", "", "Directory with block lists; generated candidates must pass them")
	flags.StringVar(&logLevel, "log-level", "warn", "Log level")
}

func run(cmd *cobra.Command, _ []string) error {
	logger, err := logging.New(logLevel, true)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	if filtersDir != "" {
		sets, err := filter.LoadSets(filtersDir)
		if err != nil {
			return fmt.Errorf("failed to load filters: %w", err)
		}
		opts.Filters = sets
		logger.Info("Loaded filters", zap.Any("sizes", sets.Stats()))
	}

	report, err := prune.Run(cmd.Context(), opts, logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "[PRUNE DONE] Wrote %d entries to %s\n", len(report.Entries), report.Written)
	fmt.Fprintf(out, "[INFO] %d long messages kept, %d new grouped lines, %d duplicates and %d mentions dropped.\n",
		report.Kept, report.Grouped, report.Duplicates, report.Mentions)

	if len(report.Samples) > 0 {
		fmt.Fprintln(out, "\n[MARKOV TEST] Generating sample messages...")
		for _, s := range report.Samples {
			if s == "" {
				s = "(No sentence generated)"
			}
			fmt.Fprintf(out, "→ %s\n", s)
		}
	}

	if report.GeneratedPath != "" {
		fmt.Fprintf(out, "\n[GENERATE] Wrote %d of %d requested posts to %s\n",
			len(report.Generated), opts.Generate, report.GeneratedPath)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		stop()
		os.Exit(1)
	}
}
