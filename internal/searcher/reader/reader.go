// Package reader answers document, term and term-in-document lookups against
// a finished index. Dictionaries, the term directory and per-document
// statistics are held in memory; postings are read with a single positioned
// read per lookup.
package reader

import (
	"fmt"
	"hash/crc32"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/posindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/posindex/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/posindex/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/posindex/pkg/errors"
)

// Options locates an index on disk.
type Options struct {
	TokenizerDir string
	ConstructDir string
	// MaxLineBytes rejects postings lines longer than this; 0 disables the
	// check.
	MaxLineBytes int64
	// Normalizer maps query terms onto index vocabulary. Nil selects the
	// default English normalizer.
	Normalizer *tokenizer.Normalizer
}

type DocumentInfo struct {
	Name          string `json:"name"`
	DocID         int    `json:"docId"`
	DistinctTerms int    `json:"distinctTerms"`
	TotalTerms    int    `json:"totalTerms"`
}

type TermInfo struct {
	Term             string `json:"term"`
	Normalized       string `json:"normalized"`
	TermID           int    `json:"termId"`
	DocumentCount    int    `json:"documentCount"`
	TotalOccurrences int    `json:"totalOccurrences"`
	Offset           int64  `json:"offset"`
}

type TermDocumentInfo struct {
	Term      string `json:"term"`
	Document  string `json:"document"`
	TermID    int    `json:"termId"`
	DocID     int    `json:"docId"`
	Frequency int    `json:"frequency"`
	Positions []int  `json:"positions"`
}

type directoryEntry struct {
	index.TermInfo
	// end is the offset of the next line, or -1 for the last line.
	end int64
}

// Reader is immutable after Open and safe for concurrent use.
type Reader struct {
	normalizer   *tokenizer.Normalizer
	postingsPath string
	maxLineBytes int64
	checksum     uint32

	docIDs    map[string]int
	termIDs   map[string]int
	directory map[int]directoryEntry
	docStats  map[int]index.DocStats
}

// Open loads an index. It reads docids.txt, termids.txt, doc_index.txt and
// term_info.txt; term_index.txt is only opened by lookups.
func Open(opts Options) (*Reader, error) {
	n := opts.Normalizer
	if n == nil {
		n = tokenizer.New(nil)
	}
	r := &Reader{
		normalizer:   n,
		postingsPath: filepath.Join(opts.ConstructDir, index.TermIndexFile),
		maxLineBytes: opts.MaxLineBytes,
		docIDs:       make(map[string]int),
		termIDs:      make(map[string]int),
		directory:    make(map[int]directoryEntry),
		docStats:     make(map[int]index.DocStats),
	}
	if err := r.loadDocuments(filepath.Join(opts.TokenizerDir, index.DocIDsFile)); err != nil {
		return nil, err
	}
	if err := r.loadTerms(filepath.Join(opts.TokenizerDir, index.TermIDsFile)); err != nil {
		return nil, err
	}
	if err := r.loadStats(filepath.Join(opts.TokenizerDir, index.DocIndexFile)); err != nil {
		return nil, err
	}
	if err := r.loadDirectory(filepath.Join(opts.ConstructDir, index.TermInfoFile)); err != nil {
		return nil, err
	}
	slog.Default().With("component", "reader").Info("index loaded",
		"documents", len(r.docIDs),
		"terms", len(r.termIDs),
		"checksum", fmt.Sprintf("%08x", r.checksum),
	)
	return r, nil
}

func (r *Reader) loadDocuments(path string) error {
	records, err := index.ReadDocIDs(path)
	if err != nil {
		return fmt.Errorf("loading documents: %w", err)
	}
	for _, rec := range records {
		if _, dup := r.docIDs[rec.Name]; dup {
			return apperrors.Newf(apperrors.ErrMalformedIndex, http.StatusInternalServerError,
				"%s: document %q listed twice", index.DocIDsFile, rec.Name)
		}
		r.docIDs[rec.Name] = rec.DocID
	}
	return nil
}

func (r *Reader) loadTerms(path string) error {
	records, err := index.ReadTermIDs(path)
	if err != nil {
		return fmt.Errorf("loading terms: %w", err)
	}
	for _, rec := range records {
		if _, dup := r.termIDs[rec.Term]; dup {
			return apperrors.Newf(apperrors.ErrMalformedIndex, http.StatusInternalServerError,
				"%s: term %q listed twice", index.TermIDsFile, rec.Term)
		}
		r.termIDs[rec.Term] = rec.TermID
	}
	return nil
}

func (r *Reader) loadStats(path string) error {
	err := index.ScanDocIndex(path, func(e index.DocTermEntry) error {
		st := r.docStats[e.DocID]
		st.DocID = e.DocID
		st.DistinctTerms++
		st.TotalTerms += len(e.Positions)
		r.docStats[e.DocID] = st
		return nil
	})
	if err != nil {
		return fmt.Errorf("loading document statistics: %w", err)
	}
	return nil
}

func (r *Reader) loadDirectory(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("loading term directory %s: %w: %w", path, apperrors.ErrCorpusIO, err)
	}
	r.checksum = crc32.ChecksumIEEE(data)

	infos, err := index.ReadTermInfo(path)
	if err != nil {
		return fmt.Errorf("loading term directory: %w", err)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].TermID < infos[j].TermID
	})
	for i, info := range infos {
		end := int64(-1)
		if i+1 < len(infos) {
			next := infos[i+1]
			if next.TermID == info.TermID || next.Offset <= info.Offset {
				return apperrors.Newf(apperrors.ErrMalformedIndex, http.StatusInternalServerError,
					"%s: offsets not strictly increasing at term %d", index.TermInfoFile, next.TermID)
			}
			end = next.Offset
		}
		r.directory[info.TermID] = directoryEntry{TermInfo: info, end: end}
	}
	return nil
}

// Checksum is the CRC-32 of term_info.txt. It changes whenever the index is
// rebuilt with different content.
func (r *Reader) Checksum() uint32 {
	return r.checksum
}

func (r *Reader) Documents() int {
	return len(r.docIDs)
}

func (r *Reader) Terms() int {
	return len(r.termIDs)
}

// NormalizeTerm exposes the query-side normalization: lower-case and stem,
// without stopword filtering.
func (r *Reader) NormalizeTerm(raw string) string {
	return r.normalizer.NormalizeQuery(raw)
}

// Document returns statistics for the named document. A document that
// contributed no terms has no statistics and is reported as not found.
func (r *Reader) Document(name string) (DocumentInfo, error) {
	docID, ok := r.docIDs[name]
	if !ok {
		return DocumentInfo{}, apperrors.New(apperrors.ErrDocumentNotFound, http.StatusNotFound, name)
	}
	st, ok := r.docStats[docID]
	if !ok {
		return DocumentInfo{}, apperrors.New(apperrors.ErrDocumentNotFound, http.StatusNotFound, name)
	}
	return DocumentInfo{
		Name:          name,
		DocID:         docID,
		DistinctTerms: st.DistinctTerms,
		TotalTerms:    st.TotalTerms,
	}, nil
}

// Term resolves raw through the query normalization and returns its
// directory entry. It never touches the postings file.
func (r *Reader) Term(raw string) (TermInfo, error) {
	term := r.normalizer.NormalizeQuery(raw)
	entry, ok := r.lookupTerm(term)
	if !ok {
		return TermInfo{}, apperrors.New(apperrors.ErrTermNotFound, http.StatusNotFound, raw)
	}
	return TermInfo{
		Term:             raw,
		Normalized:       term,
		TermID:           entry.TermID,
		DocumentCount:    entry.DocumentCount,
		TotalOccurrences: entry.TotalOccurrences,
		Offset:           entry.Offset,
	}, nil
}

func (r *Reader) lookupTerm(term string) (directoryEntry, bool) {
	termID, ok := r.termIDs[term]
	if !ok {
		return directoryEntry{}, false
	}
	entry, ok := r.directory[termID]
	return entry, ok
}

// TermInDocument returns the positions of raw within the named document.
// The postings file is opened, read once at the term's offset, and closed.
func (r *Reader) TermInDocument(raw, name string) (TermDocumentInfo, error) {
	entry, termOK := r.lookupTerm(r.normalizer.NormalizeQuery(raw))
	docID, docOK := r.docIDs[name]
	if !termOK || !docOK {
		return TermDocumentInfo{}, apperrors.Newf(apperrors.ErrNotFound, http.StatusNotFound,
			"term %q, document %q", raw, name)
	}

	line, err := r.readLine(entry)
	if err != nil {
		return TermDocumentInfo{}, err
	}
	dec, err := segment.NewDecoder(line)
	if err != nil {
		return TermDocumentInfo{}, err
	}
	if dec.TermID() != entry.TermID {
		return TermDocumentInfo{}, apperrors.Newf(apperrors.ErrMalformedIndex, http.StatusInternalServerError,
			"offset %d holds term %d, expected %d", entry.Offset, dec.TermID(), entry.TermID)
	}
	positions, err := dec.FindDocument(docID)
	if err != nil {
		return TermDocumentInfo{}, err
	}
	if len(positions) == 0 {
		return TermDocumentInfo{}, apperrors.Newf(apperrors.ErrTermNotInDocument, http.StatusNotFound,
			"term %q, document %q", raw, name)
	}
	return TermDocumentInfo{
		Term:      raw,
		Document:  name,
		TermID:    entry.TermID,
		DocID:     docID,
		Frequency: len(positions),
		Positions: positions,
	}, nil
}

func (r *Reader) readLine(entry directoryEntry) ([]byte, error) {
	f, err := os.Open(r.postingsPath)
	if err != nil {
		return nil, fmt.Errorf("opening postings %s: %w: %w", r.postingsPath, apperrors.ErrCorpusIO, err)
	}
	defer f.Close()

	end := entry.end
	last := end < 0
	if last {
		st, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("stat postings %s: %w: %w", r.postingsPath, apperrors.ErrCorpusIO, err)
		}
		end = st.Size()
	}
	length := end - entry.Offset
	if r.maxLineBytes > 0 && length > r.maxLineBytes {
		return nil, apperrors.Newf(apperrors.ErrMalformedIndex, http.StatusInternalServerError,
			"term %d: postings line of %d bytes exceeds limit of %d", entry.TermID, length, r.maxLineBytes)
	}
	return segment.ReadLine(f, entry.TermID, entry.Offset, length, last)
}
