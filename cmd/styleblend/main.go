package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/styleblend/styleblend/pkg/corpus"
	"github.com/styleblend/styleblend/pkg/markov"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "styleblend",
		Short:        "Blend two text corpora into novel Markov-generated sentences",
		Version:      fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildDate),
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "styleblend.json", "path to the JSON config file")

	root.AddCommand(newGenerateCmd(&configPath))
	root.AddCommand(newStatsCmd(&configPath))

	return root
}

func newGenerateCmd(configPath *string) *cobra.Command {
	var count int
	var seed uint64

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Train both corpora, combine them, and print sampled sentences",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig(*configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("count") {
				cfg.Count = count
			}
			if cmd.Flags().Changed("seed") {
				cfg.Seed = seed
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := setupLogger(cfg.LogLevel)

			sentences, err := runGenerate(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}

			for _, s := range sentences {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			if len(sentences) < cfg.Count {
				fmt.Fprintf(cmd.ErrOrStderr(), "produced %d of %d requested sentences\n", len(sentences), cfg.Count)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 0, "number of sentences to generate (overrides config)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed for reproducible output (overrides config)")

	return cmd
}

func newStatsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Train both corpora and print model statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig(*configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := setupLogger(cfg.LogLevel)

			ctx := cmd.Context()
			g, _, cleanup, err := buildBlend(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := g.GetStats(ctx)
			if err != nil {
				return fmt.Errorf("failed to collect stats: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "vocabulary: %d tokens, %d prefixes\n", stats.VocabSize, stats.PrefixSize)
			for _, model := range stats.Models {
				ms := stats.Stats[model.Id]
				fmt.Fprintf(out, "model %-16s order %d  chains %-6d total weight %-10.1f start tokens %d\n",
					model.Name, model.Order, ms.TotalChains, ms.TotalFrequency, ms.StartingTokens)
			}
			return nil
		},
	}
}

// runGenerate executes the whole pipeline: load, train, combine, sample.
func runGenerate(ctx context.Context, cfg *Config, logger *slog.Logger) ([]string, error) {
	g, combined, cleanup, err := buildBlend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	opts := []markov.SentenceOption{
		markov.WithMaxChars(cfg.MaxChars),
		markov.WithMinWords(cfg.MinWords),
		markov.WithNovelty(cfg.Novelty),
		markov.WithTries(cfg.Tries),
	}
	if cfg.Seed != 0 {
		opts = append(opts, markov.WithSeed(cfg.Seed))
	}

	return g.Sentences(ctx, combined, cfg.Count, opts...)
}

// buildBlend loads both corpora into a throwaway in-memory database, trains
// one model per corpus, and combines them with the configured weights. The
// returned cleanup function releases the generator and the database.
func buildBlend(ctx context.Context, cfg *Config, logger *slog.Logger) (*markov.Generator, markov.ModelInfo, func(), error) {
	fail := func(err error) (*markov.Generator, markov.ModelInfo, func(), error) {
		return nil, markov.ModelInfo{}, nil, err
	}

	corpusA, err := corpus.Load(cfg.CorpusAName, cfg.CorpusAPaths...)
	if err != nil {
		return fail(err)
	}
	corpusB, err := corpus.Load(cfg.CorpusBName, cfg.CorpusBPaths...)
	if err != nil {
		return fail(err)
	}

	db, err := initDB(":memory:")
	if err != nil {
		return fail(fmt.Errorf("failed to open database: %w", err))
	}
	// An in-memory SQLite database exists per connection; the pool must not
	// open a second one.
	db.SetMaxOpenConns(1)

	cleanup := func() { _ = db.Close() }

	if err := markov.SetupSchema(db); err != nil {
		cleanup()
		return fail(fmt.Errorf("failed to set up schema: %w", err))
	}

	g, err := markov.NewGenerator(db, markov.NewDefaultTokenizer())
	if err != nil {
		cleanup()
		return fail(fmt.Errorf("failed to create generator: %w", err))
	}
	g.SetLogger(logger)

	genCleanup := func() {
		g.Close()
		_ = db.Close()
	}

	modelA, err := g.TrainModel(ctx, corpusA.Name, cfg.Order, corpusA.Reader())
	if err != nil {
		genCleanup()
		return fail(err)
	}
	modelB, err := g.TrainModel(ctx, corpusB.Name, cfg.Order, corpusB.Reader())
	if err != nil {
		genCleanup()
		return fail(err)
	}

	combined, err := g.Combine(ctx, "blend", []markov.ModelWeight{
		{Model: modelA, Weight: cfg.WeightA},
		{Model: modelB, Weight: cfg.WeightB},
	})
	if err != nil {
		genCleanup()
		return fail(err)
	}

	logger.Info("Models trained and combined",
		slog.String("corpus_a", corpusA.Name),
		slog.String("corpus_b", corpusB.Name),
		slog.Float64("weight_a", cfg.WeightA),
		slog.Float64("weight_b", cfg.WeightB),
		slog.Int("order", cfg.Order),
	)

	return g, combined, genCleanup, nil
}

// setupLogger builds the process logger at the configured level. Output goes
// to stderr so generated sentences on stdout stay clean.
func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
