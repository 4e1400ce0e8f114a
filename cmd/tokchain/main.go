package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"strconv"

	"github.com/CTAG07/tokchain/pkg/markov"
	"github.com/CTAG07/tokchain/pkg/tokenize"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	if err := NewCLI().Execute(); err != nil {
		os.Exit(1)
	}
}

// NewCLI builds the tokchain command tree.
func NewCLI() *cobra.Command {
	var (
		configPath string
		config     *Config
		logger     *slog.Logger
	)

	rootCmd := &cobra.Command{
		Use:     "tokchain",
		Short:   "Train and sample fixed-order Markov chains over tokenized text",
		Version: fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildDate),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Disable usage printing on errors
			cmd.SilenceUsage = true

			config = DefaultConfig()
			if configPath != "" {
				loaded, err := LoadConfig(configPath)
				if err != nil {
					return fmt.Errorf("failed to load configuration: %w", err)
				}
				config = loaded
			}

			flags := cmd.Flags()
			if flags.Changed("log-level") {
				config.LogLevel, _ = flags.GetString("log-level")
			}
			if flags.Changed("tokenizer") {
				config.Tokenizer, _ = flags.GetString("tokenizer")
			}
			if flags.Changed("model-name") {
				config.ModelName, _ = flags.GetString("model-name")
			}

			logger = newLogger(cmd.ErrOrStderr(), config.LogLevel)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "JSON config file (created with defaults if missing)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringP("tokenizer", "t", tokenize.EncodingO200kBase, "Tokenizer: a tiktoken encoding name or \"bytes\"")
	rootCmd.PersistentFlags().StringP("model-name", "n", "default", "Model name inside a SQLite model database")

	cobra.EnableCommandSorting = false

	// openTable opens the store at path and returns its table, or nil if
	// nothing is stored yet.
	openTable := func(ctx context.Context, path string) (modelStore, *markov.Table, error) {
		store, err := openStore(path, config.ModelName, logger)
		if err != nil {
			return nil, nil, err
		}
		table, found, err := store.Load(ctx)
		if err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		if !found {
			return store, nil, nil
		}
		return store, table, nil
	}

	// requireTable is openTable for commands that cannot start from scratch.
	requireTable := func(ctx context.Context, path string) (modelStore, *markov.Table, error) {
		store, table, err := openTable(ctx, path)
		if err != nil {
			return nil, nil, err
		}
		if table == nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("no model found at %q", path)
		}
		return store, table, nil
	}

	trainCmd := &cobra.Command{
		Use:   "train <model-path> [order]",
		Short: "Train a model on lines read from standard input",
		Long: "Train a model on lines read from standard input and save it when the input ends.\n" +
			"The order is required when the model does not exist yet and ignored otherwise.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]

			requestedOrder := 0
			if len(args) == 2 {
				order, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("%w: %q is not a number", markov.ErrInvalidOrder, args[1])
				}
				requestedOrder = order
			}

			tok, err := tokenize.New(config.Tokenizer)
			if err != nil {
				return err
			}

			store, table, err := openTable(ctx, path)
			if err != nil {
				return err
			}
			defer func(store modelStore) {
				_ = store.Close()
			}(store)

			var m *markov.Model
			if table == nil {
				if len(args) < 2 {
					return fmt.Errorf("%w: order is required to create a new model at %q", markov.ErrInvalidOrder, path)
				}
				if m, err = markov.NewModel(requestedOrder, tok); err != nil {
					return err
				}
				logger.Info("Created new model", "path", path, "order", requestedOrder)
			} else {
				m = markov.NewModelFromTable(table, tok)
				if len(args) == 2 && requestedOrder != m.Order() {
					logger.Warn("Ignoring order argument for existing model", "path", path, "order", m.Order(), "requested_order", requestedOrder)
				}
			}
			m.SetLogger(logger)

			summary, err := trainLines(cmd.InOrStdin(), m, logger)
			if err != nil {
				return err
			}
			logger.Info("Training completed",
				"lines_processed", summary.Lines,
				"lines_skipped", summary.Skipped,
				"windows_recorded", summary.Windows,
			)

			return store.Save(ctx, m.Table())
		},
	}

	completeCmd := &cobra.Command{
		Use:   "complete <model-path>",
		Short: "Complete each line read from standard input",
		Long: "Use each line read from standard input as a seed and print one completion per line.\n" +
			"A seed must tokenize to exactly the model's order.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := tokenize.New(config.Tokenizer)
			if err != nil {
				return err
			}

			store, table, err := requireTable(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer func(store modelStore) {
				_ = store.Close()
			}(store)

			m := markov.NewModelFromTable(table, tok)
			m.SetLogger(logger)

			length := config.CompletionLength
			if cmd.Flags().Changed("length") {
				length, _ = cmd.Flags().GetInt("length")
			}

			rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
			if cmd.Flags().Changed("seed") {
				seed, _ := cmd.Flags().GetUint64("seed")
				rng = rand.New(rand.NewPCG(seed, seed))
			}

			return completeLines(cmd.InOrStdin(), cmd.OutOrStdout(), m, length, rng, logger)
		},
	}
	completeCmd.Flags().IntP("length", "l", 8, "Maximum number of tokens to append to each seed")
	completeCmd.Flags().Uint64P("seed", "s", 0, "Seed for the random source (random if unset)")

	statsCmd := &cobra.Command{
		Use:   "stats <model-path>",
		Short: "Print statistics about a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, table, err := requireTable(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer func(store modelStore) {
				_ = store.Close()
			}(store)

			stats := table.Stats()
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "order: %d\nstates: %d\nchains: %d\nfrequency: %d\n",
				stats.Order, stats.States, stats.TotalChains, stats.TotalFrequency)
			return err
		},
	}

	pruneCmd := &cobra.Command{
		Use:   "prune <model-path> <min-freq>",
		Short: "Remove transitions seen min-freq times or fewer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			minFreq, err := strconv.Atoi(args[1])
			if err != nil || minFreq < 0 {
				return fmt.Errorf("invalid min-freq %q", args[1])
			}

			ctx := cmd.Context()
			store, table, err := requireTable(ctx, args[0])
			if err != nil {
				return err
			}
			defer func(store modelStore) {
				_ = store.Close()
			}(store)

			removed := table.Prune(minFreq)
			logger.Info("Model pruned",
				"path", args[0],
				"min_frequency", minFreq,
				"occurrences_removed", removed,
			)
			return store.Save(ctx, table)
		},
	}

	exportCmd := &cobra.Command{
		Use:   "export <model-path>",
		Short: "Write a model as JSON to standard output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, table, err := requireTable(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer func(store modelStore) {
				_ = store.Close()
			}(store)

			return markov.ExportJSON(cmd.OutOrStdout(), table)
		},
	}

	rootCmd.AddCommand(
		trainCmd,
		completeCmd,
		statsCmd,
		pruneCmd,
		exportCmd,
	)

	return rootCmd
}
