// Package corpus assigns document and term identifiers across a directory of
// HTML files and writes the tokenizer outputs: docids.txt, termids.txt and
// doc_index.txt.
package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/posindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/posindex/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/posindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/posindex/pkg/metrics"
)

// Summary reports the outcome of one tokenize run.
type Summary struct {
	Total     int
	Processed int
	Skipped   int
	Terms     int
	Lines     int
	Postings  int64
	OutputDir string
	Files     []string
}

// Builder owns the identifier counters for a single run. A Builder is not
// reusable; create a new one per corpus.
type Builder struct {
	normalizer *tokenizer.Normalizer
	metrics    *metrics.Metrics
	logger     *slog.Logger

	termIDs  map[string]int
	nextDoc  int
	readFile func(string) ([]byte, error)

	docs     *index.AtomicFile
	terms    *index.AtomicFile
	docIndex *index.AtomicFile

	summary Summary
}

// NewBuilder creates a Builder. m may be nil.
func NewBuilder(n *tokenizer.Normalizer, m *metrics.Metrics) *Builder {
	return &Builder{
		normalizer: n,
		metrics:    m,
		logger:     slog.Default().With("component", "corpus"),
		termIDs:    make(map[string]int),
		nextDoc:    1,
		readFile:   os.ReadFile,
	}
}

// Run tokenizes every regular file directly inside corpusDir, in name order,
// and writes the three tokenizer files into outDir after clearing it.
// Subdirectories and symlinks are counted in Total but never read. A
// document that cannot be read or parsed is logged and skipped. Failure to
// list the corpus or write an output aborts the whole run and leaves no
// partial output files.
func (b *Builder) Run(ctx context.Context, corpusDir, outDir string) (Summary, error) {
	entries, err := os.ReadDir(corpusDir)
	if err != nil {
		return Summary{}, fmt.Errorf("listing corpus %s: %w: %w", corpusDir, apperrors.ErrCorpusIO, err)
	}
	if err := index.ResetDir(outDir); err != nil {
		return Summary{}, err
	}
	if err := b.open(outDir); err != nil {
		return Summary{}, err
	}

	b.summary.Total = len(entries)
	b.summary.OutputDir = outDir
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			b.abort()
			return Summary{}, fmt.Errorf("tokenizing corpus: %w", err)
		}
		path := filepath.Join(corpusDir, entry.Name())
		info, err := os.Lstat(path)
		if err != nil {
			b.skip(entry.Name(), err)
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		raw, err := b.readFile(path)
		if err != nil {
			b.skip(entry.Name(), err)
			continue
		}
		if err := b.add(entry.Name(), raw); err != nil {
			if apperrors.ExitCode(err) == apperrors.ExitIOFailed {
				b.abort()
				return Summary{}, err
			}
			b.skip(entry.Name(), err)
			continue
		}
		b.logger.Debug("document processed",
			"file", entry.Name(),
			"progress", fmt.Sprintf("%d/%d", i+1, len(entries)),
		)
	}
	return b.commit()
}

// add normalizes one document and appends its records. The document only
// receives a docId once normalization has succeeded, so skipped files leave
// no gap in the identifier sequence.
func (b *Builder) add(name string, raw []byte) error {
	tokens, err := b.normalizer.Normalize(raw)
	if err != nil {
		return err
	}

	docID := b.nextDoc
	b.nextDoc++
	if _, err := b.docs.WriteLine(index.FormatDocRecord(index.DocRecord{DocID: docID, Name: name})); err != nil {
		return err
	}

	// Terms keep first-occurrence order within the document.
	var order []int
	positions := make(map[int][]int)
	for _, tok := range tokens {
		termID, ok := b.termIDs[tok.Term]
		if !ok {
			termID = len(b.termIDs) + 1
			b.termIDs[tok.Term] = termID
			if _, err := b.terms.WriteLine(index.FormatTermRecord(index.TermRecord{TermID: termID, Term: tok.Term})); err != nil {
				return err
			}
		}
		if _, seen := positions[termID]; !seen {
			order = append(order, termID)
		}
		positions[termID] = append(positions[termID], tok.Position)
	}
	for _, termID := range order {
		line := index.FormatDocTermEntry(index.DocTermEntry{
			DocID:     docID,
			TermID:    termID,
			Positions: positions[termID],
		})
		if _, err := b.docIndex.WriteLine(line); err != nil {
			return err
		}
	}

	b.summary.Processed++
	b.summary.Lines += len(order)
	b.summary.Postings += int64(len(tokens))
	b.metrics.DocumentIndexed()
	return nil
}

func (b *Builder) skip(name string, err error) {
	b.summary.Skipped++
	b.metrics.DocumentSkipped()
	b.logger.Warn("skipping document", "file", name, "error", err)
}

func (b *Builder) open(outDir string) error {
	var err error
	if b.docs, err = index.CreateAtomic(filepath.Join(outDir, index.DocIDsFile)); err != nil {
		return err
	}
	if b.terms, err = index.CreateAtomic(filepath.Join(outDir, index.TermIDsFile)); err != nil {
		b.docs.Abort()
		return err
	}
	if b.docIndex, err = index.CreateAtomic(filepath.Join(outDir, index.DocIndexFile)); err != nil {
		b.docs.Abort()
		b.terms.Abort()
		return err
	}
	return nil
}

func (b *Builder) abort() {
	for _, f := range []*index.AtomicFile{b.docs, b.terms, b.docIndex} {
		if f != nil {
			f.Abort()
		}
	}
}

func (b *Builder) commit() (Summary, error) {
	files := []*index.AtomicFile{b.docs, b.terms, b.docIndex}
	for i, f := range files {
		if err := f.Commit(); err != nil {
			for _, rest := range files[i+1:] {
				rest.Abort()
			}
			return Summary{}, err
		}
	}
	b.summary.Terms = len(b.termIDs)
	b.summary.Files = []string{index.DocIDsFile, index.TermIDsFile, index.DocIndexFile}
	b.logger.Info("corpus tokenized",
		"total", b.summary.Total,
		"processed", b.summary.Processed,
		"skipped", b.summary.Skipped,
		"terms", b.summary.Terms,
	)
	return b.summary, nil
}
