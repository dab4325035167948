package index

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/posindex/pkg/errors"
)

// On-disk file names. The tokenizer writes the first three, the index
// constructor the last two.
const (
	DocIDsFile    = "docids.txt"
	TermIDsFile   = "termids.txt"
	DocIndexFile  = "doc_index.txt"
	TermIndexFile = "term_index.txt"
	TermInfoFile  = "term_info.txt"
)

// ResetDir empties dir, creating it if needed. Subdirectories are left
// alone; only files a previous run could have written are removed.
func ResetDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory %s: %w: %w", dir, apperrors.ErrCorpusIO, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading output directory %s: %w: %w", dir, apperrors.ErrCorpusIO, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("clearing output directory %s: %w: %w", dir, apperrors.ErrCorpusIO, err)
		}
	}
	return nil
}

// AtomicFile buffers writes into a temp file that replaces the target on
// Commit. Abort (or a failed Commit) removes the temp file.
type AtomicFile struct {
	*bufio.Writer
	f       *os.File
	path    string
	tmpPath string
	written int64
}

func CreateAtomic(path string) (*AtomicFile, error) {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w: %w", tmpPath, apperrors.ErrCorpusIO, err)
	}
	return &AtomicFile{
		Writer:  bufio.NewWriterSize(f, 64*1024),
		f:       f,
		path:    path,
		tmpPath: tmpPath,
	}, nil
}

// WriteLine writes line followed by a newline and returns the bytes added.
func (a *AtomicFile) WriteLine(line string) (int, error) {
	n, err := a.WriteString(line)
	if err == nil {
		err = a.WriteByte('\n')
		if err == nil {
			n++
		}
	}
	a.written += int64(n)
	if err != nil {
		return n, fmt.Errorf("writing %s: %w: %w", a.path, apperrors.ErrCorpusIO, err)
	}
	return n, nil
}

// WriteEncoded writes an already newline-terminated record as-is and returns
// the bytes added.
func (a *AtomicFile) WriteEncoded(record []byte) (int, error) {
	n, err := a.Write(record)
	a.written += int64(n)
	if err != nil {
		return n, fmt.Errorf("writing %s: %w: %w", a.path, apperrors.ErrCorpusIO, err)
	}
	return n, nil
}

// Written is the number of bytes written through WriteLine and WriteEncoded.
// It is the offset at which the next record will start.
func (a *AtomicFile) Written() int64 {
	return a.written
}

func (a *AtomicFile) Commit() error {
	if err := a.Flush(); err != nil {
		a.Abort()
		return fmt.Errorf("flushing %s: %w: %w", a.path, apperrors.ErrCorpusIO, err)
	}
	if err := a.f.Sync(); err != nil {
		a.Abort()
		return fmt.Errorf("syncing %s: %w: %w", a.path, apperrors.ErrCorpusIO, err)
	}
	if err := a.f.Close(); err != nil {
		os.Remove(a.tmpPath)
		return fmt.Errorf("closing %s: %w: %w", a.path, apperrors.ErrCorpusIO, err)
	}
	if err := os.Rename(a.tmpPath, a.path); err != nil {
		os.Remove(a.tmpPath)
		return fmt.Errorf("renaming %s: %w: %w", a.path, apperrors.ErrCorpusIO, err)
	}
	return nil
}

func (a *AtomicFile) Abort() {
	a.f.Close()
	os.Remove(a.tmpPath)
}

// ScanLines calls fn with the tab-separated fields of every non-blank line
// of path. Lines may be arbitrarily long.
func ScanLines(path string, fn func(lineNo int, fields []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w: %w", path, apperrors.ErrCorpusIO, err)
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 64*1024)
	lineNo := 0
	for {
		line, err := r.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("reading %s: %w: %w", path, apperrors.ErrCorpusIO, err)
		}
		if line != "" {
			lineNo++
			line = strings.TrimRight(line, "\r\n")
			if strings.TrimSpace(line) != "" {
				if ferr := fn(lineNo, strings.Split(line, "\t")); ferr != nil {
					return ferr
				}
			}
		}
		if err != nil {
			return nil
		}
	}
}

func malformed(path string, lineNo int, format string, args ...any) error {
	return apperrors.Newf(apperrors.ErrMalformedIndex, http.StatusInternalServerError,
		"%s:%d: %s", filepath.Base(path), lineNo, fmt.Sprintf(format, args...))
}

func parseID(path string, lineNo int, field, name string) (int, error) {
	v, err := strconv.Atoi(field)
	if err != nil || v < 1 {
		return 0, malformed(path, lineNo, "invalid %s %q", name, field)
	}
	return v, nil
}

func FormatDocRecord(r DocRecord) string {
	return strconv.Itoa(r.DocID) + "\t" + r.Name
}

func FormatTermRecord(r TermRecord) string {
	return strconv.Itoa(r.TermID) + "\t" + r.Term
}

func FormatDocTermEntry(e DocTermEntry) string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(e.DocID))
	sb.WriteByte('\t')
	sb.WriteString(strconv.Itoa(e.TermID))
	for _, pos := range e.Positions {
		sb.WriteByte('\t')
		sb.WriteString(strconv.Itoa(pos))
	}
	return sb.String()
}

func FormatTermInfo(ti TermInfo) string {
	return fmt.Sprintf("%d\t%d\t%d\t%d", ti.TermID, ti.Offset, ti.TotalOccurrences, ti.DocumentCount)
}

// ReadDocIDs loads docids.txt.
func ReadDocIDs(path string) ([]DocRecord, error) {
	var records []DocRecord
	err := ScanLines(path, func(lineNo int, fields []string) error {
		if len(fields) < 2 {
			return malformed(path, lineNo, "expected docId and name, got %d fields", len(fields))
		}
		id, err := parseID(path, lineNo, fields[0], "docId")
		if err != nil {
			return err
		}
		// names may themselves contain tabs
		records = append(records, DocRecord{DocID: id, Name: strings.Join(fields[1:], "\t")})
		return nil
	})
	return records, err
}

// ReadTermIDs loads termids.txt.
func ReadTermIDs(path string) ([]TermRecord, error) {
	var records []TermRecord
	err := ScanLines(path, func(lineNo int, fields []string) error {
		if len(fields) != 2 {
			return malformed(path, lineNo, "expected termId and term, got %d fields", len(fields))
		}
		id, err := parseID(path, lineNo, fields[0], "termId")
		if err != nil {
			return err
		}
		records = append(records, TermRecord{TermID: id, Term: fields[1]})
		return nil
	})
	return records, err
}

// ScanDocIndex streams doc_index.txt one entry at a time.
func ScanDocIndex(path string, fn func(DocTermEntry) error) error {
	return ScanLines(path, func(lineNo int, fields []string) error {
		if len(fields) < 3 {
			return malformed(path, lineNo, "expected docId, termId and at least one position, got %d fields", len(fields))
		}
		docID, err := parseID(path, lineNo, fields[0], "docId")
		if err != nil {
			return err
		}
		termID, err := parseID(path, lineNo, fields[1], "termId")
		if err != nil {
			return err
		}
		positions := make([]int, 0, len(fields)-2)
		for _, f := range fields[2:] {
			pos, err := parseID(path, lineNo, f, "position")
			if err != nil {
				return err
			}
			positions = append(positions, pos)
		}
		return fn(DocTermEntry{DocID: docID, TermID: termID, Positions: positions})
	})
}

// ReadTermInfo loads term_info.txt.
func ReadTermInfo(path string) ([]TermInfo, error) {
	var infos []TermInfo
	err := ScanLines(path, func(lineNo int, fields []string) error {
		if len(fields) != 4 {
			return malformed(path, lineNo, "expected 4 fields, got %d", len(fields))
		}
		termID, err := parseID(path, lineNo, fields[0], "termId")
		if err != nil {
			return err
		}
		offset, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil || offset < 0 {
			return malformed(path, lineNo, "invalid byteOffset %q", fields[1])
		}
		total, err := parseID(path, lineNo, fields[2], "totalOccurrences")
		if err != nil {
			return err
		}
		docs, err := parseID(path, lineNo, fields[3], "documentCount")
		if err != nil {
			return err
		}
		infos = append(infos, TermInfo{
			TermID:           termID,
			Offset:           offset,
			TotalOccurrences: total,
			DocumentCount:    docs,
		})
		return nil
	})
	return infos, err
}
