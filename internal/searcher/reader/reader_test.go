package reader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/posindex/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/posindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/posindex/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/posindex/pkg/errors"
)

func buildIndex(t *testing.T, docs map[string]string) Options {
	t.Helper()
	corpusDir := t.TempDir()
	for name, body := range docs {
		content := "<html><body>" + body + "</body></html>"
		require.NoError(t, os.WriteFile(filepath.Join(corpusDir, name), []byte(content), 0o644))
	}
	root := t.TempDir()
	cfg := config.IndexConfig{
		TokenizerDir: filepath.Join(root, "output_tokenizer"),
		ConstructDir: filepath.Join(root, "output_index_construct"),
	}
	engine, err := indexer.NewEngine(cfg)
	require.NoError(t, err)
	_, _, err = engine.Build(context.Background(), corpusDir)
	require.NoError(t, err)
	return Options{TokenizerDir: cfg.TokenizerDir, ConstructDir: cfg.ConstructDir}
}

var sampleCorpus = map[string]string{
	"a.html": "cat dog cat",
	"b.html": "Dogs chase cats. Dogs bark loudly at the mailman.",
	"c.html": "bird bird bird",
	"d.html": "the of and",
}

func TestDocumentLookup(t *testing.T) {
	r, err := Open(buildIndex(t, sampleCorpus))
	require.NoError(t, err)

	info, err := r.Document("a.html")
	require.NoError(t, err)
	assert.Equal(t, DocumentInfo{Name: "a.html", DocID: 1, DistinctTerms: 2, TotalTerms: 3}, info)

	_, err = r.Document("missing.html")
	assert.ErrorIs(t, err, apperrors.ErrDocumentNotFound)

	// d.html has a docId but contributed no terms.
	_, err = r.Document("d.html")
	assert.ErrorIs(t, err, apperrors.ErrDocumentNotFound)
}

func TestTermLookupNormalizesQuery(t *testing.T) {
	r, err := Open(buildIndex(t, sampleCorpus))
	require.NoError(t, err)

	info, err := r.Term("Cats")
	require.NoError(t, err)
	assert.Equal(t, "cat", info.Normalized)
	assert.Equal(t, 1, info.TermID)
	assert.Equal(t, 2, info.DocumentCount)
	assert.Equal(t, 3, info.TotalOccurrences)
	assert.EqualValues(t, 0, info.Offset)
}

func TestTermNotFoundDoesNotTouchPostings(t *testing.T) {
	opts := buildIndex(t, sampleCorpus)
	r, err := Open(opts)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(opts.ConstructDir, index.TermIndexFile)))

	_, err = r.Term("zebra")
	assert.ErrorIs(t, err, apperrors.ErrTermNotFound)
	assert.Equal(t, apperrors.ExitLookupFailed, apperrors.ExitCode(err))

	// stopwords are never indexed, and queries are not stopword-filtered
	_, err = r.Term("the")
	assert.ErrorIs(t, err, apperrors.ErrTermNotFound)

	_, err = r.Term("dog")
	assert.NoError(t, err)
}

func TestTermInDocument(t *testing.T) {
	r, err := Open(buildIndex(t, sampleCorpus))
	require.NoError(t, err)

	got, err := r.TermInDocument("cat", "a.html")
	require.NoError(t, err)
	assert.Equal(t, TermDocumentInfo{
		Term:      "cat",
		Document:  "a.html",
		TermID:    1,
		DocID:     1,
		Frequency: 2,
		Positions: []int{1, 3},
	}, got)

	got, err = r.TermInDocument("BIRDS", "c.html")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got.Positions)
}

func TestTermInDocumentErrorsAreDistinct(t *testing.T) {
	r, err := Open(buildIndex(t, sampleCorpus))
	require.NoError(t, err)

	_, err = r.TermInDocument("bird", "a.html")
	assert.ErrorIs(t, err, apperrors.ErrTermNotInDocument)
	assert.NotErrorIs(t, err, apperrors.ErrTermNotFound)
	assert.NotErrorIs(t, err, apperrors.ErrDocumentNotFound)

	_, err = r.TermInDocument("zebra", "a.html")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = r.TermInDocument("cat", "missing.html")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestTermInDocumentRoundTrip(t *testing.T) {
	opts := buildIndex(t, sampleCorpus)
	r, err := Open(opts)
	require.NoError(t, err)

	names := make(map[int]string)
	docs, err := index.ReadDocIDs(filepath.Join(opts.TokenizerDir, index.DocIDsFile))
	require.NoError(t, err)
	for _, d := range docs {
		names[d.DocID] = d.Name
	}
	terms := make(map[int]string)
	termRecords, err := index.ReadTermIDs(filepath.Join(opts.TokenizerDir, index.TermIDsFile))
	require.NoError(t, err)
	for _, tr := range termRecords {
		terms[tr.TermID] = tr.Term
	}

	var checked int
	err = index.ScanDocIndex(filepath.Join(opts.TokenizerDir, index.DocIndexFile), func(e index.DocTermEntry) error {
		got, err := r.TermInDocument(terms[e.TermID], names[e.DocID])
		require.NoError(t, err)
		assert.Equal(t, e.Positions, got.Positions)
		checked++
		return nil
	})
	require.NoError(t, err)
	assert.Positive(t, checked)
}

func TestStatisticsAreConsistent(t *testing.T) {
	opts := buildIndex(t, sampleCorpus)
	r, err := Open(opts)
	require.NoError(t, err)

	var totalTerms, totalOccurrences int
	for _, st := range r.docStats {
		totalTerms += st.TotalTerms
	}
	docsPerTerm := make(map[int]int)
	err = index.ScanDocIndex(filepath.Join(opts.TokenizerDir, index.DocIndexFile), func(e index.DocTermEntry) error {
		docsPerTerm[e.TermID]++
		return nil
	})
	require.NoError(t, err)
	for termID, entry := range r.directory {
		totalOccurrences += entry.TotalOccurrences
		assert.Equal(t, docsPerTerm[termID], entry.DocumentCount, "term %d", termID)
	}
	assert.Equal(t, totalTerms, totalOccurrences)
}

func TestMaxLineBytes(t *testing.T) {
	opts := buildIndex(t, sampleCorpus)
	opts.MaxLineBytes = 4
	r, err := Open(opts)
	require.NoError(t, err)

	_, err = r.TermInDocument("cat", "a.html")
	assert.ErrorIs(t, err, apperrors.ErrMalformedIndex)
	assert.Equal(t, apperrors.ExitMalformedIndex, apperrors.ExitCode(err))
}

func TestCorruptOffsetIsMalformed(t *testing.T) {
	opts := buildIndex(t, sampleCorpus)
	infoPath := filepath.Join(opts.ConstructDir, index.TermInfoFile)
	infos, err := index.ReadTermInfo(infoPath)
	require.NoError(t, err)
	require.Greater(t, len(infos), 2)

	// Point term 1 one byte into its own line.
	infos[0].Offset = 1
	var content string
	for _, info := range infos {
		content += index.FormatTermInfo(info) + "\n"
	}
	require.NoError(t, os.WriteFile(infoPath, []byte(content), 0o644))

	r, err := Open(opts)
	require.NoError(t, err)
	_, err = r.TermInDocument("cat", "a.html")
	assert.ErrorIs(t, err, apperrors.ErrMalformedIndex)
}

func TestUnderstatedLineEndIsMalformed(t *testing.T) {
	opts := buildIndex(t, sampleCorpus)
	infoPath := filepath.Join(opts.ConstructDir, index.TermInfoFile)
	infos, err := index.ReadTermInfo(infoPath)
	require.NoError(t, err)
	require.Greater(t, len(infos), 2)

	// Term 1's window now stops one byte short of its newline.
	infos[1].Offset--
	var content string
	for _, info := range infos {
		content += index.FormatTermInfo(info) + "\n"
	}
	require.NoError(t, os.WriteFile(infoPath, []byte(content), 0o644))

	r, err := Open(opts)
	require.NoError(t, err)
	_, err = r.TermInDocument("cat", "a.html")
	assert.ErrorIs(t, err, apperrors.ErrMalformedIndex)
	assert.Equal(t, apperrors.ExitMalformedIndex, apperrors.ExitCode(err))
}

func TestOpenRejectsNonIncreasingOffsets(t *testing.T) {
	opts := buildIndex(t, sampleCorpus)
	infoPath := filepath.Join(opts.ConstructDir, index.TermInfoFile)
	require.NoError(t, os.WriteFile(infoPath, []byte("1\t0\t1\t1\n2\t0\t1\t1\n"), 0o644))

	_, err := Open(opts)
	assert.ErrorIs(t, err, apperrors.ErrMalformedIndex)
}

func TestOpenMissingIndex(t *testing.T) {
	_, err := Open(Options{TokenizerDir: t.TempDir(), ConstructDir: t.TempDir()})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrCorpusIO)
	assert.Equal(t, apperrors.ExitIOFailed, apperrors.ExitCode(err))
}

func TestHolderReload(t *testing.T) {
	opts := buildIndex(t, sampleCorpus)
	h := NewHolder(opts)

	_, err := h.Load()
	require.Error(t, err)

	first, changed, err := h.Reload()
	require.NoError(t, err)
	assert.True(t, changed)

	second, changed, err := h.Reload()
	require.NoError(t, err)
	assert.False(t, changed)
	assert.NotSame(t, first, second)
	assert.Equal(t, first.Checksum(), second.Checksum())

	require.NoError(t, os.Remove(filepath.Join(opts.TokenizerDir, index.DocIDsFile)))
	_, _, err = h.Reload()
	require.Error(t, err)

	current, err := h.Load()
	require.NoError(t, err)
	assert.Same(t, second, current)
}
