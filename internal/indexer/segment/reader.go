package segment

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	apperrors "github.com/Adithya-Monish-Kumar-K/posindex/pkg/errors"
)

// ReadLine captures exactly length bytes at offset and checks that they form
// the encoded line for termID. The window must end on the line's newline
// unless last is set, in which case the line may run to end of file without
// one. A window shorter or longer than the line is a malformed index.
func ReadLine(r io.ReaderAt, termID int, offset, length int64, last bool) ([]byte, error) {
	if length <= 0 {
		return nil, apperrors.Newf(apperrors.ErrMalformedIndex, http.StatusInternalServerError,
			"term %d: postings line at offset %d has length %d", termID, offset, length)
	}
	buf := make([]byte, length)
	n, err := r.ReadAt(buf, offset)
	if err != nil && !(errors.Is(err, io.EOF) && int64(n) == length) {
		if errors.Is(err, io.EOF) {
			return nil, apperrors.Newf(apperrors.ErrMalformedIndex, http.StatusInternalServerError,
				"term %d: postings line truncated at offset %d (%d of %d bytes)", termID, offset, n, length)
		}
		return nil, fmt.Errorf("reading postings for term %d: %w: %w", termID, apperrors.ErrCorpusIO, err)
	}

	prefix := strconv.AppendInt(nil, int64(termID), 10)
	prefix = append(prefix, '\t')
	if !bytes.HasPrefix(buf, prefix) {
		return nil, apperrors.Newf(apperrors.ErrMalformedIndex, http.StatusInternalServerError,
			"term %d: no postings line starts at offset %d", termID, offset)
	}
	i := bytes.IndexByte(buf, '\n')
	switch {
	case i >= 0 && i != len(buf)-1:
		return nil, apperrors.Newf(apperrors.ErrMalformedIndex, http.StatusInternalServerError,
			"term %d: postings line at offset %d ends after %d of %d bytes", termID, offset, i+1, length)
	case i < 0 && !last:
		return nil, apperrors.Newf(apperrors.ErrMalformedIndex, http.StatusInternalServerError,
			"term %d: postings line at offset %d runs past its %d-byte window", termID, offset, length)
	}
	return buf, nil
}
