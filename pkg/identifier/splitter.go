package identifier

import (
	"unicode"
)

// Splitter breaks an identifier name into words.
type Splitter interface {
	Split(name string) []string
}

// SplitterFunc adapts a function to the Splitter interface.
type SplitterFunc func(name string) []string

// Split calls f(name).
func (f SplitterFunc) Split(name string) []string { return f(name) }

// DefaultSplitter splits camelCase, PascalCase and snake_case names.
var DefaultSplitter Splitter = CamelSnake{}

// CamelSnake splits on underscores, '$' and whitespace, and on case
// transitions:
//
//	numberArray   -> number Array
//	HTTPServer    -> HTTP Server
//	max_value     -> max value
//	utf8Decoder   -> utf8 Decoder
//
// Hyphens are not separators: "kebab-case" stays a single word. Trained
// models expect this, so it must not change.
type CamelSnake struct{}

// Split implements Splitter.
func (CamelSnake) Split(name string) []string {
	rs := []rune(name)
	var words []string
	start := -1
	flush := func(end int) {
		if start >= 0 && end > start {
			words = append(words, string(rs[start:end]))
		}
		start = -1
	}
	for i, r := range rs {
		if isSeparator(r) {
			flush(i)
			continue
		}
		if start < 0 {
			start = i
			continue
		}
		prev := rs[i-1]
		switch {
		case unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)):
			// numberArray, utf8Decoder
			flush(i)
			start = i
		case unicode.IsUpper(r) && unicode.IsUpper(prev) && i+1 < len(rs) && unicode.IsLower(rs[i+1]):
			// HTTPServer: the last capital starts the next word.
			flush(i)
			start = i
		}
	}
	flush(len(rs))
	return words
}

func isSeparator(r rune) bool {
	return r == '_' || r == '$' || unicode.IsSpace(r)
}
