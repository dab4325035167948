// Package cli implements the posindex command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/posindex/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/posindex/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/posindex/pkg/metrics"
)

var (
	configPath   string
	logLevel     string
	tokenizerDir string
	constructDir string
	stopwords    string
	maxLineBytes int64

	cfg        *config.Config
	appMetrics *metrics.Metrics
)

var rootCmd = &cobra.Command{
	Use:   "posindex",
	Short: "Build and query a positional inverted index over HTML documents",
	Long: `posindex tokenizes a directory of HTML documents, constructs a
delta-encoded positional inverted index with a byte-offset directory, and
answers document, term and term-in-document lookups from the CLI or over HTTP.`,
	SilenceUsage:       true,
	SilenceErrors:      true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: exportMetrics,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	flags.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&tokenizerDir, "tokenizer-dir", "", "directory for docids.txt, termids.txt and doc_index.txt")
	flags.StringVar(&constructDir, "construct-dir", "", "directory for term_index.txt and term_info.txt")
	flags.StringVar(&stopwords, "stopwords", "", "newline-separated stoplist replacing the built-in one")
	flags.Int64Var(&maxLineBytes, "max-line-bytes", 0, "reject postings lines longer than this many bytes (0 = no limit)")
}

// Execute runs the command tree against os.Args. Cancelling ctx aborts
// a running stage without publishing partial output.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func setup(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		loaded.Logging.Level = logLevel
	}
	if flags.Changed("tokenizer-dir") {
		loaded.Index.TokenizerDir = tokenizerDir
	}
	if flags.Changed("construct-dir") {
		loaded.Index.ConstructDir = constructDir
	}
	if flags.Changed("stopwords") {
		loaded.Index.StopwordsFile = stopwords
	}
	if flags.Changed("max-line-bytes") {
		loaded.Index.MaxLineBytes = maxLineBytes
	}
	if err := loaded.Validate(); err != nil {
		return err
	}
	logger.SetupWriter(cmd.ErrOrStderr(), loaded.Logging.Level, loaded.Logging.Format)
	cfg = loaded
	appMetrics = metrics.New()
	return nil
}

// exportMetrics writes the run's metrics for node_exporter's textfile
// collector, since a CLI process exits before anything could scrape it.
func exportMetrics(*cobra.Command, []string) error {
	if cfg == nil || cfg.Metrics.Textfile == "" {
		return nil
	}
	if err := appMetrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		slog.Warn("failed to write metrics textfile", "path", cfg.Metrics.Textfile, "error", err)
	}
	return nil
}

// reportedError marks an error whose message was already printed.
type reportedError struct {
	error
}

func (e reportedError) Unwrap() error {
	return e.error
}

// Reported reports whether err has already been shown to the user.
func Reported(err error) bool {
	var r reportedError
	return errors.As(err, &r)
}

func report(cmd *cobra.Command, err error, format string, args ...any) error {
	fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
	return reportedError{err}
}
