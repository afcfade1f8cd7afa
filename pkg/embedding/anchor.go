package embedding

// Source selects which table an anchor is scored against.
type Source int

const (
	// Token is the per-word table.
	Token Source = iota
	// Target is the per-identifier table.
	Target
)

// Anchor is a linguistic concept represented by the centroid of its seed
// words in the source table.
type Anchor struct {
	Name   string
	Source Source
	Seeds  []string
}

// Built-in anchors. Feature extraction depends on their names and seed
// lists; changing either invalidates trained models.
var (
	Verb = Anchor{"verb", Token, []string{
		"get", "set", "add", "remove", "create", "update", "delete", "find", "compute",
		"make", "run", "read", "write", "load", "save", "parse", "build", "check",
	}}
	Determiner = Anchor{"determiner", Token, []string{
		"the", "a", "an", "this", "that", "these", "those", "each", "every", "all",
		"any", "some", "no",
	}}
	Preposition = Anchor{"preposition", Token, []string{
		"to", "from", "in", "on", "at", "by", "for", "with", "of", "into", "over",
		"under", "between", "through", "about", "after", "before",
	}}
	Conjunction = Anchor{"conjunction", Token, []string{
		"and", "or", "but", "nor", "yet", "so", "if", "while",
	}}
	EnglishNoun = Anchor{"english-noun", Token, []string{
		"time", "person", "year", "way", "day", "thing", "world", "life", "hand",
		"part", "child", "place", "work", "week", "case", "point", "number",
	}}
	EnglishVerb = Anchor{"english-verb", Token, []string{
		"be", "have", "do", "say", "go", "know", "think", "take", "see", "come",
		"want", "look", "use", "give", "tell",
	}}
	EnglishPrefix = Anchor{"english-prefix", Token, []string{
		"un", "re", "dis", "en", "non", "pre", "mis", "sub", "inter", "over",
	}}
	MethodNoun = Anchor{"method-noun", Target, []string{
		"name", "value", "list", "count", "size", "index", "data", "result", "item", "id",
	}}
	MethodVerb = Anchor{"method-verb", Target, []string{
		"get", "set", "is", "has", "add", "remove", "create", "update", "init", "handle",
	}}
	CodePrefix = Anchor{"code-prefix", Target, []string{
		"m", "s", "g", "p", "k", "str", "int", "arr", "ptr", "obj",
	}}
	MethodPrefix = Anchor{"method-prefix", Target, []string{
		"get", "set", "is", "has", "can", "should", "on", "do", "to", "as",
	}}
)

// DefaultAnchors returns the built-in anchors in a stable order.
func DefaultAnchors() []Anchor {
	return []Anchor{
		Verb, Determiner, Preposition, Conjunction,
		EnglishNoun, EnglishVerb, EnglishPrefix,
		MethodNoun, MethodVerb, CodePrefix, MethodPrefix,
	}
}
