// Package features turns a word of an identifier into the named feature
// vector consumed by the classifier.
//
// The same Extractor is used when building a training corpus and when
// serving requests, so a word always produces the same vector in both. Every
// vector is complete: provider misses fall back to fixed sentinel values
// instead of leaving a feature out.
package features

import (
	"strconv"
)

// Feature names. They are column names in training data and keys of the
// categorical encoding stored in models, so they must never be renamed.
const (
	WordPosition       = "WORD_POSITION"
	MaxPosition        = "MAXPOSITION"
	NormalizedPosition = "NORMALIZED_POSITION"
	LastLetter         = "LAST_LETTER"
	Context            = "CONTEXT"
	NLPPOS             = "NLP_POS"
	SurroundingPOS     = "SURROUNDING_POS"

	VerbScore          = "VERB_SCORE"
	DetScore           = "DET_SCORE"
	PrepScore          = "PREP_SCORE"
	ConjScore          = "CONJ_SCORE"
	EnglishNounScore   = "ENGLISHN_SCORE"
	EnglishVerbScore   = "ENGLISHV_SCORE"
	EnglishPrefixScore = "ENGLISHPRE_SCORE"
	MethodNounScore    = "METHODN_SCORE"
	MethodVerbScore    = "METHODV_SCORE"
	CodePrefixScore    = "CODEPRE_SCORE"
	MethodPrefixScore  = "METHODPRE_SCORE"

	Preposition  = "PREPOSITION"
	Determiner   = "DETERMINER"
	Conjunction  = "CONJUNCTION"
	Abbreviation = "ABBREVIATION"
	Digits       = "DIGITS"
)

// Boundary markers used in SurroundingPOS.
const (
	Start = "START"
	End   = "END"
)

var names = []string{
	WordPosition, MaxPosition, NormalizedPosition, LastLetter,
	Context, NLPPOS, SurroundingPOS,
	VerbScore, DetScore, PrepScore, ConjScore,
	EnglishNounScore, EnglishVerbScore, EnglishPrefixScore,
	MethodNounScore, MethodVerbScore, CodePrefixScore, MethodPrefixScore,
	Preposition, Determiner, Conjunction, Abbreviation, Digits,
}

var categorical = map[string]bool{
	Context:        true,
	NLPPOS:         true,
	SurroundingPOS: true,
}

// Names returns every feature name in a stable order.
func Names() []string {
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// IsCategorical reports whether the named feature holds categories.
func IsCategorical(name string) bool { return categorical[name] }

// DefaultCategorical returns the categorical feature names in Names order.
func DefaultCategorical() []string {
	var out []string
	for _, n := range names {
		if categorical[n] {
			out = append(out, n)
		}
	}
	return out
}

// Kind distinguishes numeric and categorical values.
type Kind uint8

const (
	Numeric Kind = iota
	Categorical
)

// Value is a single feature value.
type Value struct {
	Kind     Kind
	Number   float64
	Category string
}

// Num returns a numeric value.
func Num(f float64) Value { return Value{Kind: Numeric, Number: f} }

// Cat returns a categorical value.
func Cat(s string) Value { return Value{Kind: Categorical, Category: s} }

// Bool returns 1 for true and 0 for false.
func Bool(b bool) Value {
	if b {
		return Num(1)
	}
	return Num(0)
}

// String renders the value the way it is stored in training tables.
func (v Value) String() string {
	if v.Kind == Categorical {
		return v.Category
	}
	return strconv.FormatFloat(v.Number, 'g', -1, 64)
}

// Vector maps feature names to values.
type Vector map[string]Value

// Row returns the values of the named columns rendered as strings. Missing
// columns render as the empty string.
func (v Vector) Row(columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		if val, ok := v[c]; ok {
			out[i] = val.String()
		}
	}
	return out
}

// Strings renders every value as text.
func (v Vector) Strings() map[string]string {
	out := make(map[string]string, len(v))
	for k, val := range v {
		out[k] = val.String()
	}
	return out
}
