package dictionary

// Closed word classes. These are small, fixed English lists and are not
// loaded from files.
var (
	prepositions = set(
		"about", "above", "across", "after", "against", "along", "among", "around",
		"as", "at", "before", "behind", "below", "beneath", "beside", "between",
		"beyond", "by", "down", "during", "except", "for", "from", "in", "inside",
		"into", "like", "near", "of", "off", "on", "onto", "out", "outside", "over",
		"past", "per", "since", "through", "throughout", "till", "to", "toward",
		"towards", "under", "until", "up", "upon", "via", "with", "within", "without",
	)
	determiners = set(
		"a", "all", "an", "another", "any", "both", "each", "either", "every", "few",
		"many", "much", "neither", "no", "some", "such", "that", "the", "these",
		"this", "those", "what", "which",
	)
	conjunctions = set(
		"and", "but", "either", "neither", "nor", "or", "so", "yet", "if", "while",
		"because", "unless", "whether",
	)
)

func set(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// IsPreposition reports whether word is an English preposition.
func IsPreposition(word string) bool {
	_, ok := prepositions[normalize(word)]
	return ok
}

// IsDeterminer reports whether word is an English determiner.
func IsDeterminer(word string) bool {
	_, ok := determiners[normalize(word)]
	return ok
}

// IsConjunction reports whether word is an English conjunction.
func IsConjunction(word string) bool {
	_, ok := conjunctions[normalize(word)]
	return ok
}
