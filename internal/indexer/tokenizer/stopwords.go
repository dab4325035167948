package tokenizer

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
)

//go:embed stoplist.txt
var embeddedStoplist string

// DefaultStopwords returns a fresh copy of the embedded English stoplist.
func DefaultStopwords() map[string]struct{} {
	set, _ := ParseStopwords(strings.NewReader(embeddedStoplist))
	return set
}

// LoadStopwords reads a newline-separated stoplist from path.
func LoadStopwords(path string) (map[string]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening stoplist: %w", err)
	}
	defer f.Close()
	set, err := ParseStopwords(f)
	if err != nil {
		return nil, fmt.Errorf("reading stoplist %s: %w", path, err)
	}
	return set, nil
}

// ParseStopwords reads one word per line. Blank lines are ignored and
// words are lower-cased.
func ParseStopwords(r io.Reader) (map[string]struct{}, error) {
	set := make(map[string]struct{})
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		word := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if word == "" {
			continue
		}
		set[word] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return set, nil
}
