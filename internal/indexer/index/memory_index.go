package index

import (
	"net/http"
	"sort"

	apperrors "github.com/Adithya-Monish-Kumar-K/posindex/pkg/errors"
)

// MemoryIndex groups doc_index occurrences by term ahead of encoding. It is
// filled once and snapshotted once; no locking is needed.
type MemoryIndex struct {
	index    map[int]PostingList
	docs     map[int]struct{}
	postings int64
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		index: make(map[int]PostingList),
		docs:  make(map[int]struct{}),
	}
}

// Add expands one doc_index line into individual postings.
func (m *MemoryIndex) Add(entry DocTermEntry) {
	pl := m.index[entry.TermID]
	for _, pos := range entry.Positions {
		pl = append(pl, Posting{DocID: entry.DocID, Position: pos})
	}
	m.index[entry.TermID] = pl
	m.docs[entry.DocID] = struct{}{}
	m.postings += int64(len(entry.Positions))
}

// Snapshot returns every term in ascending TermID order with its postings
// sorted by (DocID, Position). A repeated (DocID, Position) pair for the same
// term means the input was malformed.
func (m *MemoryIndex) Snapshot() ([]TermEntry, error) {
	entries := make([]TermEntry, 0, len(m.index))
	for termID, pl := range m.index {
		sort.Slice(pl, func(i, j int) bool {
			return pl[i].Less(pl[j])
		})
		for i := 1; i < len(pl); i++ {
			if pl[i] == pl[i-1] {
				return nil, apperrors.Newf(apperrors.ErrMalformedIndex, http.StatusInternalServerError,
					"term %d has duplicate posting doc=%d pos=%d", termID, pl[i].DocID, pl[i].Position)
			}
		}
		entries = append(entries, TermEntry{
			TermID:   termID,
			Postings: pl,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].TermID < entries[j].TermID
	})
	return entries, nil
}

func (m *MemoryIndex) Terms() int {
	return len(m.index)
}

func (m *MemoryIndex) DocCount() int {
	return len(m.docs)
}

func (m *MemoryIndex) Postings() int64 {
	return m.postings
}
