package index

// Posting is one occurrence of a term: the document and the term's 1-based
// position among that document's retained tokens.
type Posting struct {
	DocID    int `json:"docId"`
	Position int `json:"position"`
}

// PostingList is a term's postings ordered by (DocID, Position).
type PostingList []Posting

// Less orders postings by document, then position.
func (p Posting) Less(o Posting) bool {
	if p.DocID != o.DocID {
		return p.DocID < o.DocID
	}
	return p.Position < o.Position
}

// DocumentCount returns the number of distinct documents in a sorted list.
func (pl PostingList) DocumentCount() int {
	count := 0
	for i, p := range pl {
		if i == 0 || p.DocID != pl[i-1].DocID {
			count++
		}
	}
	return count
}

// TermEntry is a term and its full, sorted posting list.
type TermEntry struct {
	TermID   int
	Postings PostingList
}

// DocRecord is one line of docids.txt.
type DocRecord struct {
	DocID int
	Name  string
}

// TermRecord is one line of termids.txt.
type TermRecord struct {
	TermID int
	Term   string
}

// DocTermEntry is one line of doc_index.txt: every position of one term in
// one document, in encounter order.
type DocTermEntry struct {
	DocID     int
	TermID    int
	Positions []int
}

// TermInfo is one line of term_info.txt.
type TermInfo struct {
	TermID           int   `json:"termId"`
	Offset           int64 `json:"offset"`
	TotalOccurrences int   `json:"totalOccurrences"`
	DocumentCount    int   `json:"documentCount"`
}

// DocStats aggregates a document's doc_index.txt lines.
type DocStats struct {
	DocID         int `json:"docId"`
	DistinctTerms int `json:"distinctTerms"`
	TotalTerms    int `json:"totalTerms"`
}
