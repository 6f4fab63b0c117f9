package batch

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ReadCodes reads one code per line. Blank lines and lines starting with
// "#" are skipped.
func ReadCodes(r io.Reader) ([]Input, error) {
	var out []Input
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, Input{Code: line})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("batch: read codes: %w", err)
	}
	return out, nil
}

// FromColumn maps the cells of a spreadsheet column read from row 2 to
// inputs carrying their row. Blank cells are skipped.
func FromColumn(cells []string) []Input {
	var out []Input
	for i, c := range cells {
		if strings.TrimSpace(c) == "" {
			continue
		}
		out = append(out, Input{Row: i + 2, Code: c})
	}
	return out
}

// FromCodes wraps plain codes.
func FromCodes(codes []string) []Input {
	out := make([]Input, 0, len(codes))
	for _, c := range codes {
		out = append(out, Input{Code: c})
	}
	return out
}
