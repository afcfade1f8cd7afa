package features

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/haivivi/identag/pkg/dictionary"
	"github.com/haivivi/identag/pkg/embedding"
	"github.com/haivivi/identag/pkg/identifier"
)

// Extractor computes feature vectors. Both providers are optional; a nil
// provider behaves as one that never matches. An Extractor holds no state of
// its own and is safe for concurrent use when its providers are.
type Extractor struct {
	Embeddings *embedding.Provider
	Dictionary *dictionary.Dictionary
}

var scoreAnchors = []struct {
	name   string
	anchor embedding.Anchor
}{
	{VerbScore, embedding.Verb},
	{DetScore, embedding.Determiner},
	{PrepScore, embedding.Preposition},
	{ConjScore, embedding.Conjunction},
	{EnglishNounScore, embedding.EnglishNoun},
	{EnglishVerbScore, embedding.EnglishVerb},
	{EnglishPrefixScore, embedding.EnglishPrefix},
	{MethodNounScore, embedding.MethodNoun},
	{MethodVerbScore, embedding.MethodVerb},
	{CodePrefixScore, embedding.CodePrefix},
	{MethodPrefixScore, embedding.MethodPrefix},
}

// Extract returns the complete feature vector of the word at position.
func (e *Extractor) Extract(id identifier.Identifier, position int) (Vector, error) {
	if position < 0 || position >= len(id.Words) {
		return nil, fmt.Errorf("features: position %d out of range [0, %d)", position, len(id.Words))
	}
	w := id.Words[position]
	text := w.Text

	v := make(Vector, len(names))
	v[WordPosition] = Num(float64(w.Position))
	v[MaxPosition] = Num(float64(w.MaxPosition))
	v[NormalizedPosition] = Num(normalizedPosition(w.Position, w.MaxPosition))
	v[LastLetter] = Num(lastLetter(text))
	v[Context] = Cat(string(id.Context))
	v[NLPPOS] = Cat(e.pos(text))
	v[SurroundingPOS] = Cat(e.surrounding(id, position))

	for _, s := range scoreAnchors {
		v[s.name] = Num(e.Embeddings.Similarity(text, s.anchor))
	}

	v[Preposition] = Bool(dictionary.IsPreposition(text))
	v[Determiner] = Bool(dictionary.IsDeterminer(text))
	v[Conjunction] = Bool(dictionary.IsConjunction(text))
	v[Abbreviation] = Bool(e.Dictionary.IsAbbreviation(text))
	v[Digits] = Bool(strings.ContainsFunc(text, unicode.IsDigit))
	return v, nil
}

// ExtractAll returns one vector per word, in word order.
func (e *Extractor) ExtractAll(id identifier.Identifier) ([]Vector, error) {
	out := make([]Vector, len(id.Words))
	for i := range id.Words {
		v, err := e.Extract(id, i)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *Extractor) pos(word string) string {
	return e.Dictionary.POS(word)
}

func (e *Extractor) surrounding(id identifier.Identifier, position int) string {
	prev, next := Start, End
	if position > 0 {
		prev = e.pos(id.Words[position-1].Text)
	}
	if position+1 < len(id.Words) {
		next = e.pos(id.Words[position+1].Text)
	}
	return prev + "|" + next
}

// normalizedPosition buckets a position: 0 for the first word, 2 for the
// last, 1 for anything in between. A single word counts as first.
func normalizedPosition(pos, max int) float64 {
	switch {
	case pos == 0:
		return 0
	case pos == max-1:
		return 2
	default:
		return 1
	}
}

func lastLetter(word string) float64 {
	r, _ := utf8.DecodeLastRuneInString(word)
	if r == utf8.RuneError {
		return 0
	}
	return float64(unicode.ToLower(r))
}
