// Package embedding provides read-only pretrained embedding tables and
// similarity scores between words and fixed linguistic anchor concepts.
//
// Two tables are used by the tagger: a token table trained on individual
// words and a target table trained on whole identifiers. A [Provider] holds
// both and precomputes one centroid vector per [Anchor]; scoring a word is
// then a single cosine similarity.
//
// Tables are loaded once and never mutated, so a Provider is safe for
// concurrent use without locking.
package embedding

import (
	"errors"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Sentinel is returned by Provider.Similarity when no score can be computed.
const Sentinel = 0.0

// ErrDimensionMismatch is returned when a table row has a different
// dimensionality than the rest of the table.
var ErrDimensionMismatch = errors.New("embedding: dimension mismatch")

// Table maps vocabulary entries to dense vectors. Keys are lower-cased.
type Table struct {
	dim     int
	vectors map[string][]float64
}

// NewTable creates an empty table with the given dimensionality.
func NewTable(dim int) *Table {
	return &Table{dim: dim, vectors: make(map[string][]float64)}
}

// Add inserts or replaces a vector. It is meant for table construction
// only; a table must not be modified once shared.
func (t *Table) Add(word string, vec []float64) error {
	if t.dim == 0 {
		t.dim = len(vec)
	}
	if len(vec) != t.dim {
		return ErrDimensionMismatch
	}
	cp := make([]float64, len(vec))
	copy(cp, vec)
	t.vectors[strings.ToLower(word)] = cp
	return nil
}

// Lookup returns the vector for word. The returned slice must not be
// modified.
func (t *Table) Lookup(word string) ([]float64, bool) {
	if t == nil {
		return nil, false
	}
	v, ok := t.vectors[strings.ToLower(word)]
	return v, ok
}

// Dimension returns the vector dimensionality (0 for an empty table).
func (t *Table) Dimension() int {
	if t == nil {
		return 0
	}
	return t.dim
}

// Len returns the vocabulary size.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.vectors)
}

// CosineSimilarity returns the cosine similarity of a and b in [-1, 1].
// Mismatched dimensions or a zero vector yield Sentinel.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return Sentinel
	}
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return Sentinel
	}
	s := floats.Dot(a, b) / (na * nb)
	// Clamp to [-1, 1] to handle floating point errors.
	if s > 1 {
		s = 1
	}
	if s < -1 {
		s = -1
	}
	return s
}
