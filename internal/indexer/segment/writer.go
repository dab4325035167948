package segment

import (
	"fmt"
	"hash/crc32"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/posindex/internal/indexer/index"
)

// Summary describes a written postings file and its directory.
type Summary struct {
	Terms         int
	Postings      int64
	Bytes         int64
	Checksum      uint32
	TermIndexPath string
	TermInfoPath  string
}

// Writer serialises TermEntry slices into term_index.txt and term_info.txt.
type Writer struct {
	dir string
}

// NewWriter creates a Writer that writes into the given directory.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Write encodes entries in the order given, which must be ascending TermID.
// Both files are written to .tmp paths and renamed only once both are
// complete; on error neither target is touched.
func (w *Writer) Write(entries []index.TermEntry) (Summary, error) {
	summary := Summary{
		TermIndexPath: filepath.Join(w.dir, index.TermIndexFile),
		TermInfoPath:  filepath.Join(w.dir, index.TermInfoFile),
	}

	postings, err := index.CreateAtomic(summary.TermIndexPath)
	if err != nil {
		return Summary{}, err
	}
	info, err := index.CreateAtomic(summary.TermInfoPath)
	if err != nil {
		postings.Abort()
		return Summary{}, err
	}
	abort := func() {
		postings.Abort()
		info.Abort()
	}

	crc := crc32.NewIEEE()
	prevTerm := 0
	for _, entry := range entries {
		if entry.TermID <= prevTerm {
			abort()
			return Summary{}, fmt.Errorf("writing postings: term %d follows term %d", entry.TermID, prevTerm)
		}
		prevTerm = entry.TermID

		line, err := EncodeLine(entry.TermID, entry.Postings)
		if err != nil {
			abort()
			return Summary{}, err
		}
		offset := postings.Written()
		if _, err := postings.WriteEncoded(line); err != nil {
			abort()
			return Summary{}, fmt.Errorf("writing postings for term %d: %w", entry.TermID, err)
		}

		infoLine := index.FormatTermInfo(index.TermInfo{
			TermID:           entry.TermID,
			Offset:           offset,
			TotalOccurrences: len(entry.Postings),
			DocumentCount:    entry.Postings.DocumentCount(),
		})
		if _, err := info.WriteLine(infoLine); err != nil {
			abort()
			return Summary{}, err
		}
		crc.Write([]byte(infoLine))
		crc.Write([]byte{'\n'})

		summary.Terms++
		summary.Postings += int64(len(entry.Postings))
	}

	if err := postings.Commit(); err != nil {
		info.Abort()
		return Summary{}, err
	}
	if err := info.Commit(); err != nil {
		return Summary{}, err
	}
	summary.Bytes = postings.Written()
	summary.Checksum = crc.Sum32()
	return summary, nil
}
