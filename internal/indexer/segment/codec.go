package segment

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/posindex/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/posindex/pkg/errors"
)

// EncodeLine renders one term_index.txt line, newline included. Postings
// must be non-empty and strictly ascending by (DocID, Position).
//
// Each posting becomes a docDelta:value token. When the document changes the
// value is the absolute position; within a document it is the gap from the
// previous position and docDelta is 0.
func EncodeLine(termID int, postings index.PostingList) ([]byte, error) {
	if len(postings) == 0 {
		return nil, fmt.Errorf("encoding term %d: empty posting list", termID)
	}
	buf := make([]byte, 0, 16+len(postings)*6)
	buf = strconv.AppendInt(buf, int64(termID), 10)

	lastDoc, lastPos := 0, 0
	for i, p := range postings {
		if i > 0 && !postings[i-1].Less(p) {
			return nil, fmt.Errorf("encoding term %d: postings not strictly ascending at index %d", termID, i)
		}
		buf = append(buf, '\t')
		if i == 0 || p.DocID != lastDoc {
			buf = strconv.AppendInt(buf, int64(p.DocID-lastDoc), 10)
			buf = append(buf, ':')
			buf = strconv.AppendInt(buf, int64(p.Position), 10)
		} else {
			buf = append(buf, '0', ':')
			buf = strconv.AppendInt(buf, int64(p.Position-lastPos), 10)
		}
		lastDoc, lastPos = p.DocID, p.Position
	}
	return append(buf, '\n'), nil
}

// Decoder walks the tokens of one encoded line, reconstructing absolute
// postings as it goes. It never rescans: each call to Next consumes exactly
// one token.
type Decoder struct {
	line    []byte
	pos     int
	termID  int
	doc     int
	lastPos int
	n       int
}

// NewDecoder parses the termId prefix of line. A trailing newline is
// tolerated.
func NewDecoder(line []byte) (*Decoder, error) {
	line = bytes.TrimRight(line, "\r\n")
	tab := bytes.IndexByte(line, '\t')
	if tab <= 0 {
		return nil, malformedLine("missing termId separator")
	}
	termID, err := strconv.Atoi(string(line[:tab]))
	if err != nil || termID < 1 {
		return nil, malformedLine("invalid termId %q", line[:tab])
	}
	return &Decoder{line: line, pos: tab + 1, termID: termID}, nil
}

func (d *Decoder) TermID() int {
	return d.termID
}

// Next returns the next posting. ok is false once the line is exhausted.
func (d *Decoder) Next() (p index.Posting, ok bool, err error) {
	if d.pos >= len(d.line) {
		return index.Posting{}, false, nil
	}
	end := bytes.IndexByte(d.line[d.pos:], '\t')
	var tok []byte
	if end < 0 {
		tok = d.line[d.pos:]
		d.pos = len(d.line)
	} else {
		tok = d.line[d.pos : d.pos+end]
		d.pos += end + 1
	}

	colon := bytes.IndexByte(tok, ':')
	if colon < 0 {
		return index.Posting{}, false, malformedLine("token %d %q has no ':'", d.n+1, tok)
	}
	docDelta, err1 := strconv.Atoi(string(tok[:colon]))
	value, err2 := strconv.Atoi(string(tok[colon+1:]))
	if err1 != nil || err2 != nil || docDelta < 0 || value < 1 {
		return index.Posting{}, false, malformedLine("token %d %q is not docDelta:value", d.n+1, tok)
	}

	switch {
	case d.n == 0 && docDelta == 0:
		return index.Posting{}, false, malformedLine("first token has zero docDelta")
	case docDelta == 0:
		d.lastPos += value
	default:
		d.doc += docDelta
		d.lastPos = value
	}
	d.n++
	return index.Posting{DocID: d.doc, Position: d.lastPos}, true, nil
}

// FindDocument returns the positions recorded for docID. The scan stops as
// soon as the document's run ends or a later document is reached, so
// lookups for early documents do not pay for the rest of the line. An empty
// result with a nil error means the term does not occur in the document.
func (d *Decoder) FindDocument(docID int) ([]int, error) {
	var positions []int
	for {
		p, ok, err := d.Next()
		if err != nil {
			return nil, err
		}
		if !ok || p.DocID > docID {
			return positions, nil
		}
		if p.DocID == docID {
			positions = append(positions, p.Position)
		}
	}
}

// DecodeLine fully decodes an encoded line.
func DecodeLine(line []byte) (int, index.PostingList, error) {
	d, err := NewDecoder(line)
	if err != nil {
		return 0, nil, err
	}
	var postings index.PostingList
	for {
		p, ok, err := d.Next()
		if err != nil {
			return 0, nil, err
		}
		if !ok {
			return d.termID, postings, nil
		}
		postings = append(postings, p)
	}
}

func malformedLine(format string, args ...any) error {
	return apperrors.Newf(apperrors.ErrMalformedIndex, http.StatusInternalServerError,
		"postings line: "+format, args...)
}
