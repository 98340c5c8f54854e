package session

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/pithecene-io/rtkrelay/iox"
)

// maxSolutionLine bounds a single line of the solution file.
const maxSolutionLine = 1 << 20

// ExtractSolution returns the last non-empty line of the solution file at
// path that is not a '%' comment, with surrounding whitespace trimmed.
// A missing file or a file without such a line yields ErrNoSolution.
func ExtractSolution(path string) (string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: solution file not produced", ErrNoSolution)
	}
	if err != nil {
		return "", fmt.Errorf("open solution file: %w", err)
	}
	defer iox.DiscardClose(f)

	var last string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxSolutionLine)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		last = line
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("read solution file: %w", err)
	}
	if last == "" {
		return "", fmt.Errorf("%w in solution file", ErrNoSolution)
	}
	return last, nil
}
