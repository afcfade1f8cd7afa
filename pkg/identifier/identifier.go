// Package identifier models source-code identifiers and the words they are
// made of.
//
// An [Identifier] is a raw name as written in source code together with the
// syntactic [Context] it appears in. A [Splitter] breaks the name into
// [Word]s, each carrying its position so that downstream feature extraction
// can compute positional features.
//
//	id := identifier.New("numberArray", identifier.Declaration, identifier.DefaultSplitter)
//	for _, w := range id.Words {
//		fmt.Println(w.Position, w.Text) // 0 number, 1 Array
//	}
package identifier

import (
	"errors"
	"fmt"
	"strings"
)

// Context is the syntactic role of an identifier.
type Context string

// The five supported contexts. Values are case-sensitive on the wire.
const (
	Function    Context = "FUNCTION"
	Attribute   Context = "ATTRIBUTE"
	Class       Context = "CLASS"
	Declaration Context = "DECLARATION"
	Parameter   Context = "PARAMETER"
)

// ErrInvalidContext is returned by ParseContext for unknown context names.
var ErrInvalidContext = errors.New("identifier: invalid context")

// Contexts returns all supported contexts in a stable order.
func Contexts() []Context {
	return []Context{Function, Attribute, Class, Declaration, Parameter}
}

// ParseContext parses a context name. Matching is case-sensitive.
func ParseContext(s string) (Context, error) {
	switch c := Context(s); c {
	case Function, Attribute, Class, Declaration, Parameter:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q (want one of %s)", ErrInvalidContext, s, contextList())
}

func contextList() string {
	cs := Contexts()
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

// String implements fmt.Stringer.
func (c Context) String() string { return string(c) }

// Word is one lexical unit of an identifier.
type Word struct {
	// Text is the word as it appears in the identifier (case preserved).
	Text string `json:"text"`

	// Position is the zero-based index of the word in the identifier.
	Position int `json:"position"`

	// MaxPosition is the total number of words in the identifier.
	MaxPosition int `json:"max_position"`
}

// Identifier is a source-code name decomposed into words.
type Identifier struct {
	Name    string  `json:"name"`
	Context Context `json:"context"`
	Words   []Word  `json:"words"`
}

// New splits name with s and returns the resulting Identifier.
// A nil splitter uses DefaultSplitter.
func New(name string, ctx Context, s Splitter) Identifier {
	if s == nil {
		s = DefaultSplitter
	}
	parts := s.Split(name)
	words := make([]Word, len(parts))
	for i, p := range parts {
		words[i] = Word{Text: p, Position: i, MaxPosition: len(parts)}
	}
	return Identifier{Name: name, Context: ctx, Words: words}
}

// FromWords builds an Identifier from an already split word list. It is
// used when a corpus ships pre-split identifiers.
func FromWords(name string, ctx Context, parts []string) Identifier {
	words := make([]Word, len(parts))
	for i, p := range parts {
		words[i] = Word{Text: p, Position: i, MaxPosition: len(parts)}
	}
	return Identifier{Name: name, Context: ctx, Words: words}
}

// Texts returns the word texts in order.
func (id Identifier) Texts() []string {
	out := make([]string, len(id.Words))
	for i, w := range id.Words {
		out[i] = w.Text
	}
	return out
}

// Len returns the number of words.
func (id Identifier) Len() int { return len(id.Words) }
