// Package content supplies candidate messages for posting: uniform random
// selection from a static corpus, plus an optional generative fallback
// that can never fail outward.
package content

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// MaxMessageLen is the platform's hard cap on post length.
const MaxMessageLen = 280

// ErrEmptyCorpus means the corpus file contained no usable lines.
// It is fatal at startup.
var ErrEmptyCorpus = errors.New("corpus has no messages")

// LoadCorpus reads the corpus file: one message per line, trimmed, blank
// lines ignored, over-length lines cut to the platform cap. A missing
// file or an empty corpus is an error; the process fails fast rather
// than running with nothing to post.
func LoadCorpus(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus %s: %w", path, err)
	}
	defer f.Close()

	var msgs []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		msgs = append(msgs, Truncate(line))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", path, err)
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyCorpus)
	}
	return msgs, nil
}
