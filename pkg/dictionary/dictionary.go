// Package dictionary provides natural-language dictionary lookups and
// word-list heuristics used as classifier features.
//
// A Dictionary is loaded once from plain files and is read-only afterwards,
// so lookups are safe from concurrent requests. Words missing from every
// source never produce an error: POS returns Unknown and the membership
// tests return false.
package dictionary

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Unknown is the POS tag returned for words not in the dictionary.
const Unknown = "unknown"

// Dictionary holds POS candidates and an abbreviation/word list.
type Dictionary struct {
	pos   map[string][]string
	abbrs map[string]struct{}
}

// New returns an empty dictionary. Closed-class lookups still work.
func New() *Dictionary {
	return &Dictionary{
		pos:   make(map[string][]string),
		abbrs: make(map[string]struct{}),
	}
}

// Open loads the POS dictionary at dictPath and, if abbrPath is not empty,
// the abbreviation list. An empty dictPath yields an empty POS table.
func Open(dictPath, abbrPath string) (*Dictionary, error) {
	d := New()
	if dictPath != "" {
		if err := loadFile(dictPath, d.LoadDictionary); err != nil {
			return nil, err
		}
	}
	if abbrPath != "" {
		if err := loadFile(abbrPath, d.LoadAbbreviations); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func loadFile(path string, fn func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("dictionary: open %s: %w", path, err)
	}
	defer f.Close()
	if err := fn(f); err != nil {
		return fmt.Errorf("dictionary: load %s: %w", path, err)
	}
	return nil
}

// LoadDictionary reads tab-separated "word<TAB>POS[,POS...]" lines. Lines
// starting with '#' are comments. Candidates keep file order; a word listed
// twice accumulates candidates.
func (d *Dictionary) LoadDictionary(r io.Reader) error {
	return scanLines(r, func(n int, line string) error {
		word, tags, ok := strings.Cut(line, "\t")
		if !ok {
			return fmt.Errorf("line %d: missing tab separator", n)
		}
		word = normalize(word)
		for _, tag := range strings.Split(tags, ",") {
			tag = strings.TrimSpace(tag)
			if tag == "" {
				continue
			}
			d.pos[word] = appendUnique(d.pos[word], tag)
		}
		return nil
	})
}

// LoadAbbreviations reads one accepted abbreviation or word per line.
func (d *Dictionary) LoadAbbreviations(r io.Reader) error {
	return scanLines(r, func(_ int, line string) error {
		d.abbrs[normalize(line)] = struct{}{}
		return nil
	})
}

// POS returns the primary POS candidate for word, or Unknown.
func (d *Dictionary) POS(word string) string {
	if c := d.Candidates(word); len(c) > 0 {
		return c[0]
	}
	return Unknown
}

// Candidates returns all POS candidates for word. The slice must not be
// modified.
func (d *Dictionary) Candidates(word string) []string {
	if d == nil {
		return nil
	}
	return d.pos[normalize(word)]
}

// IsAbbreviation reports whether word is in the abbreviation/word list.
func (d *Dictionary) IsAbbreviation(word string) bool {
	if d == nil {
		return false
	}
	_, ok := d.abbrs[normalize(word)]
	return ok
}

// Len returns the number of dictionary words.
func (d *Dictionary) Len() int {
	if d == nil {
		return 0
	}
	return len(d.pos)
}

func normalize(w string) string {
	return strings.ToLower(strings.TrimSpace(w))
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

func scanLines(r io.Reader, fn func(n int, line string) error) error {
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := fn(n, line); err != nil {
			return err
		}
	}
	return sc.Err()
}
