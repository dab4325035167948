// Package indexer runs the two offline stages of the pipeline: tokenizing a
// corpus into identifier files and constructing the delta-encoded postings
// file with its offset directory.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/posindex/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/posindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/posindex/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/posindex/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/posindex/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/posindex/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/posindex/pkg/tracing"
)

// ConstructSummary reports the outcome of one construct run.
type ConstructSummary struct {
	segment.Summary
	Documents int
	OutputDir string
}

type Engine struct {
	cfg        config.IndexConfig
	normalizer *tokenizer.Normalizer
	metrics    *metrics.Metrics
	notifier   Notifier
	logger     *slog.Logger
}

type Option func(*Engine)

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// NewEngine loads the configured stoplist (or the embedded default) and
// returns an Engine writing into the configured directories.
func NewEngine(cfg config.IndexConfig, opts ...Option) (*Engine, error) {
	stopwords := tokenizer.DefaultStopwords()
	if cfg.StopwordsFile != "" {
		var err error
		stopwords, err = tokenizer.LoadStopwords(cfg.StopwordsFile)
		if err != nil {
			return nil, fmt.Errorf("loading stopwords: %w", err)
		}
	}
	e := &Engine{
		cfg:        cfg,
		normalizer: tokenizer.New(stopwords),
		logger:     slog.Default().With("component", "indexer"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Tokenize rebuilds the tokenizer outputs from corpusDir.
func (e *Engine) Tokenize(ctx context.Context, corpusDir string) (corpus.Summary, error) {
	run := e.newRun(StageTokenize)
	ctx, span := e.startStage(ctx, StageTokenize, run.ID)
	defer span.End()

	summary, err := corpus.NewBuilder(e.normalizer, e.metrics).Run(ctx, corpusDir, e.cfg.TokenizerDir)
	if err != nil {
		return corpus.Summary{}, err
	}
	run.Duration = time.Since(run.StartedAt)
	e.metrics.ObserveStage(StageTokenize, run.Duration)
	span.SetAttr("documents", summary.Processed)
	span.SetAttr("skipped", summary.Skipped)

	run.CorpusDir = corpusDir
	run.OutputDir = summary.OutputDir
	run.Documents = summary.Processed
	run.Skipped = summary.Skipped
	run.Terms = summary.Terms
	run.Postings = summary.Postings
	e.notify(ctx, run)
	return summary, nil
}

// Construct reads doc_index.txt from the tokenizer directory and rebuilds
// term_index.txt and term_info.txt in the construct directory.
func (e *Engine) Construct(ctx context.Context) (ConstructSummary, error) {
	run := e.newRun(StageConstruct)
	ctx, span := e.startStage(ctx, StageConstruct, run.ID)
	defer span.End()

	mem := index.NewMemoryIndex()
	docIndexPath := filepath.Join(e.cfg.TokenizerDir, index.DocIndexFile)
	if err := index.ScanDocIndex(docIndexPath, func(entry index.DocTermEntry) error {
		mem.Add(entry)
		return nil
	}); err != nil {
		return ConstructSummary{}, fmt.Errorf("loading doc index: %w", err)
	}
	entries, err := mem.Snapshot()
	if err != nil {
		return ConstructSummary{}, err
	}
	if err := ctx.Err(); err != nil {
		return ConstructSummary{}, fmt.Errorf("constructing index: %w", err)
	}

	if err := index.ResetDir(e.cfg.ConstructDir); err != nil {
		return ConstructSummary{}, err
	}
	written, err := segment.NewWriter(e.cfg.ConstructDir).Write(entries)
	if err != nil {
		return ConstructSummary{}, fmt.Errorf("writing postings: %w", err)
	}

	summary := ConstructSummary{
		Summary:   written,
		Documents: mem.DocCount(),
		OutputDir: e.cfg.ConstructDir,
	}
	run.Duration = time.Since(run.StartedAt)
	e.metrics.ObserveStage(StageConstruct, run.Duration)
	e.metrics.IndexWritten(written.Terms, written.Postings, written.Bytes)
	span.SetAttr("terms", written.Terms)
	span.SetAttr("postings", written.Postings)

	e.logger.Info("index constructed",
		"terms", written.Terms,
		"postings", written.Postings,
		"bytes", written.Bytes,
		"checksum", fmt.Sprintf("%08x", written.Checksum),
	)

	run.OutputDir = e.cfg.ConstructDir
	run.Documents = summary.Documents
	run.Terms = written.Terms
	run.Postings = written.Postings
	run.Bytes = written.Bytes
	run.Checksum = written.Checksum
	e.notify(ctx, run)
	return summary, nil
}

// Build runs Tokenize then Construct under one trace.
func (e *Engine) Build(ctx context.Context, corpusDir string) (corpus.Summary, ConstructSummary, error) {
	ctx, span := tracing.StartSpan(ctx, "build", uuid.NewString())
	defer span.End()

	tok, err := e.Tokenize(ctx, corpusDir)
	if err != nil {
		return corpus.Summary{}, ConstructSummary{}, err
	}
	con, err := e.Construct(ctx)
	if err != nil {
		return tok, ConstructSummary{}, err
	}
	return tok, con, nil
}

func (e *Engine) newRun(stage string) BuildRun {
	return BuildRun{
		ID:        uuid.NewString(),
		Stage:     stage,
		StartedAt: time.Now().UTC(),
	}
}

func (e *Engine) startStage(ctx context.Context, stage, runID string) (context.Context, *tracing.Span) {
	if tracing.SpanFromContext(ctx) == nil {
		return tracing.StartSpan(ctx, stage, runID)
	}
	return tracing.StartChildSpan(ctx, stage)
}

// notify reports a finished stage. The index on disk is already complete,
// so notifier failures are logged and never fail the stage.
func (e *Engine) notify(ctx context.Context, run BuildRun) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, run); err != nil {
		e.logger.Error("failed to notify build", "run_id", run.ID, "stage", run.Stage, "error", err)
	}
}
