package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/posindex/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/posindex/internal/searcher/reader"
	apperrors "github.com/Adithya-Monish-Kumar-K/posindex/pkg/errors"
)

var (
	readDoc  string
	readTerm string
	readJSON bool
)

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Look up a document, a term, or a term within a document",
	Long: `Answers one lookup against the index on disk:

  --doc NAME             document statistics
  --term TERM            term statistics (the term is lower-cased and stemmed)
  --term TERM --doc NAME positions of the term within the document`,
	Args: cobra.NoArgs,
	RunE: runRead,
}

func init() {
	readCmd.Flags().StringVarP(&readDoc, "doc", "d", "", "document name")
	readCmd.Flags().StringVarP(&readTerm, "term", "t", "", "term to look up")
	readCmd.Flags().BoolVar(&readJSON, "json", false, "output the result as JSON")
	rootCmd.AddCommand(readCmd)
}

func runRead(cmd *cobra.Command, _ []string) error {
	if readDoc == "" && readTerm == "" {
		err := apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "--doc or --term is required")
		return report(cmd, err, "Please provide either --doc or --term option")
	}

	holder := reader.NewHolder(readerOptions())
	if _, _, err := holder.Reload(); err != nil {
		return fmt.Errorf("loading index: %w", err)
	}
	svc := searcher.NewService(holder, nil, appMetrics)
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case readDoc != "" && readTerm != "":
		info, err := svc.TermInDocument(ctx, readTerm, readDoc)
		if err != nil {
			return reportLookup(cmd, err)
		}
		if readJSON {
			return writeJSON(out, info)
		}
		fmt.Fprintf(out, "\nInverted list for term: %s\n", readTerm)
		fmt.Fprintf(out, "In document: %s\n", readDoc)
		fmt.Fprintf(out, "TERMID: %d\n", info.TermID)
		fmt.Fprintf(out, "DOCID: %d\n", info.DocID)
		fmt.Fprintf(out, "Term frequency in document: %d\n", info.Frequency)
		fmt.Fprintf(out, "Positions: %s\n", joinInts(info.Positions))
	case readDoc != "":
		info, err := svc.Document(ctx, readDoc)
		if err != nil {
			return reportLookup(cmd, err)
		}
		if readJSON {
			return writeJSON(out, info)
		}
		fmt.Fprintf(out, "\nListing for document: %s\n", readDoc)
		fmt.Fprintf(out, "DOCID: %d\n", info.DocID)
		fmt.Fprintf(out, "Distinct terms: %d\n", info.DistinctTerms)
		fmt.Fprintf(out, "Total terms: %d\n", info.TotalTerms)
	default:
		info, err := svc.Term(ctx, readTerm)
		if err != nil {
			return reportLookup(cmd, err)
		}
		if readJSON {
			return writeJSON(out, info)
		}
		fmt.Fprintf(out, "\nListing for term: %s\n", readTerm)
		fmt.Fprintf(out, "TERMID: %d\n", info.TermID)
		fmt.Fprintf(out, "Number of documents containing term: %d\n", info.DocumentCount)
		fmt.Fprintf(out, "Term frequency in corpus: %d\n", info.TotalOccurrences)
		fmt.Fprintf(out, "Inverted list offset: %d\n", info.Offset)
	}
	return nil
}

func readerOptions() reader.Options {
	return reader.Options{
		TokenizerDir: cfg.Index.TokenizerDir,
		ConstructDir: cfg.Index.ConstructDir,
		MaxLineBytes: cfg.Index.MaxLineBytes,
	}
}

// reportLookup prints lookup misses the way users expect to read them.
// Other failures are returned unprinted.
func reportLookup(cmd *cobra.Command, err error) error {
	switch {
	case errors.Is(err, apperrors.ErrDocumentNotFound):
		return report(cmd, err, "Document not found: %s", readDoc)
	case errors.Is(err, apperrors.ErrTermNotFound):
		return report(cmd, err, "Term not found: %s", readTerm)
	case errors.Is(err, apperrors.ErrNotFound):
		return report(cmd, err, "Term or document not found")
	case errors.Is(err, apperrors.ErrTermNotInDocument):
		return report(cmd, err, "Term not found in document")
	default:
		return err
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ", ")
}
