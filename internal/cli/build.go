package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/posindex/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/posindex/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/posindex/internal/indexer/history"
	"github.com/Adithya-Monish-Kumar-K/posindex/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/posindex/pkg/postgres"
)

var tokenizeCmd = &cobra.Command{
	Use:   "tokenize [corpus-dir]",
	Short: "Assign document and term ids and write the tokenizer files",
	Long: `Reads every regular file in the corpus directory, extracts and normalizes
its body text, and rewrites docids.txt, termids.txt and doc_index.txt in the
tokenizer directory. Files that cannot be read or parsed are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runTokenize,
}

var constructCmd = &cobra.Command{
	Use:   "construct",
	Short: "Build term_index.txt and term_info.txt from doc_index.txt",
	Args:  cobra.NoArgs,
	RunE:  runConstruct,
}

var buildCmd = &cobra.Command{
	Use:   "build [corpus-dir]",
	Short: "Run tokenize then construct",
	Args:  cobra.ExactArgs(1),
	RunE:  runBuild,
}

func init() {
	rootCmd.AddCommand(tokenizeCmd)
	rootCmd.AddCommand(constructCmd)
	rootCmd.AddCommand(buildCmd)
}

func runTokenize(cmd *cobra.Command, args []string) error {
	engine, cleanup, err := newEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	summary, err := engine.Tokenize(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("tokenization failed: %w", err)
	}
	printTokenizeSummary(cmd.OutOrStdout(), summary)
	return nil
}

func runConstruct(cmd *cobra.Command, _ []string) error {
	engine, cleanup, err := newEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	summary, err := engine.Construct(cmd.Context())
	if err != nil {
		return fmt.Errorf("index construction failed: %w", err)
	}
	printConstructSummary(cmd.OutOrStdout(), summary)
	return nil
}

func runBuild(cmd *cobra.Command, args []string) error {
	engine, cleanup, err := newEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	tok, con, err := engine.Build(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	printTokenizeSummary(cmd.OutOrStdout(), tok)
	fmt.Fprintln(cmd.OutOrStdout())
	printConstructSummary(cmd.OutOrStdout(), con)
	return nil
}

func printTokenizeSummary(w io.Writer, s corpus.Summary) {
	fmt.Fprintln(w, "Processing Summary:")
	fmt.Fprintf(w, "Total files: %d\n", s.Total)
	fmt.Fprintf(w, "Successfully processed: %d\n", s.Processed)
	fmt.Fprintf(w, "Skipped files: %d\n", s.Skipped)
	fmt.Fprintf(w, "\nOutput files written to: %s\n", s.OutputDir)
	fmt.Fprintln(w, "Files created:")
	for _, name := range s.Files {
		fmt.Fprintf(w, "- %s\n", name)
	}
}

func printConstructSummary(w io.Writer, s indexer.ConstructSummary) {
	fmt.Fprintf(w, "Index construction completed. Output files written to: %s\n", s.OutputDir)
	fmt.Fprintf(w, "Terms: %d\n", s.Terms)
	fmt.Fprintf(w, "Postings: %d\n", s.Postings)
	fmt.Fprintf(w, "Checksum: %08x\n", s.Checksum)
	fmt.Fprintln(w, "Files created:")
	fmt.Fprintln(w, "- term_index.txt")
	fmt.Fprintln(w, "- term_info.txt")
}

// newEngine wires the configured build notifiers. An enabled integration
// that cannot be reached is logged and left out; the index on disk does
// not depend on it.
func newEngine(ctx context.Context) (*indexer.Engine, func(), error) {
	var (
		notifiers indexer.Notifiers
		closers   []func() error
	)
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		notifiers = append(notifiers, indexer.NewEventNotifier(producer))
		closers = append(closers, producer.Close)
	}
	if cfg.Postgres.Enabled {
		if store, closeDB, err := openHistory(ctx); err != nil {
			slog.Warn("build history unavailable", "error", err)
		} else {
			notifiers = append(notifiers, store)
			closers = append(closers, closeDB)
		}
	}
	cleanup := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				slog.Warn("closing integration", "error", err)
			}
		}
	}

	opts := []indexer.Option{indexer.WithMetrics(appMetrics)}
	if len(notifiers) > 0 {
		opts = append(opts, indexer.WithNotifier(notifiers))
	}
	engine, err := indexer.NewEngine(cfg.Index, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return engine, cleanup, nil
}

func openHistory(ctx context.Context) (*history.Store, func() error, error) {
	client, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, err
	}
	if err := history.EnsureSchema(ctx, client); err != nil {
		client.Close()
		return nil, nil, err
	}
	return history.NewStore(client.DB), client.Close, nil
}
