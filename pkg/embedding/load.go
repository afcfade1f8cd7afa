package embedding

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// LoadFile reads a table in word2vec/fastText text format from path.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("embedding: open %s: %w", path, err)
	}
	defer f.Close()
	t, err := LoadText(f)
	if err != nil {
		return nil, fmt.Errorf("embedding: load %s: %w", path, err)
	}
	return t, nil
}

// LoadText reads a table in word2vec/fastText text format:
//
//	[<count> <dim>]
//	word v1 v2 ... vdim
//
// The optional header line is detected by having exactly two integer
// fields. Blank lines are skipped.
func LoadText(r io.Reader) (*Table, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	t := NewTable(0)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if line == 1 && isHeader(fields) {
			dim, _ := strconv.Atoi(fields[1])
			t.dim = dim
			continue
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: expected word and vector", line)
		}
		vec := make([]float64, len(fields)-1)
		for i, f := range fields[1:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			vec[i] = v
		}
		if err := t.Add(fields[0], vec); err != nil {
			return nil, fmt.Errorf("line %d: %w (got %d, want %d)", line, err, len(vec), t.dim)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

func isHeader(fields []string) bool {
	if len(fields) != 2 {
		return false
	}
	for _, f := range fields {
		if _, err := strconv.Atoi(f); err != nil {
			return false
		}
	}
	return true
}
