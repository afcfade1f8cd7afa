package features

import (
	"reflect"
	"strings"
	"testing"

	"github.com/haivivi/identag/pkg/dictionary"
	"github.com/haivivi/identag/pkg/embedding"
	"github.com/haivivi/identag/pkg/identifier"
)

func newExtractor(t *testing.T) *Extractor {
	t.Helper()
	tok, err := embedding.LoadText(strings.NewReader(
		"get 1 0 0\nset 0.9 0.1 0\nnumber 0 1 0\narray 0.1 0.9 0\nthe 0 0 1\n"))
	if err != nil {
		t.Fatal(err)
	}
	d := dictionary.New()
	if err := d.LoadDictionary(strings.NewReader("number\tNN\narray\tNN\nget\tVB\n")); err != nil {
		t.Fatal(err)
	}
	if err := d.LoadAbbreviations(strings.NewReader("str\n")); err != nil {
		t.Fatal(err)
	}
	return &Extractor{
		Embeddings: embedding.NewProvider(tok, tok, embedding.DefaultAnchors()),
		Dictionary: d,
	}
}

func TestExtractComplete(t *testing.T) {
	e := newExtractor(t)
	id := identifier.New("getNumberArray", identifier.Function, nil)
	vecs, err := e.ExtractAll(id)
	if err != nil {
		t.Fatalf("ExtractAll: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("got %d vectors, want 3", len(vecs))
	}
	for i, v := range vecs {
		for _, n := range Names() {
			val, ok := v[n]
			if !ok {
				t.Errorf("vector %d missing %s", i, n)
				continue
			}
			wantKind := Numeric
			if IsCategorical(n) {
				wantKind = Categorical
			}
			if val.Kind != wantKind {
				t.Errorf("vector %d %s kind = %v, want %v", i, n, val.Kind, wantKind)
			}
		}
		if len(v) != len(Names()) {
			t.Errorf("vector %d has %d features, want %d", i, len(v), len(Names()))
		}
	}

	first, mid, last := vecs[0], vecs[1], vecs[2]
	if first[NormalizedPosition].Number != 0 || mid[NormalizedPosition].Number != 1 || last[NormalizedPosition].Number != 2 {
		t.Error("normalized positions wrong")
	}
	if first[NLPPOS].Category != "VB" || mid[NLPPOS].Category != "NN" {
		t.Errorf("NLP_POS = %q/%q", first[NLPPOS].Category, mid[NLPPOS].Category)
	}
	if got := first[SurroundingPOS].Category; got != "START|NN" {
		t.Errorf("first SURROUNDING_POS = %q", got)
	}
	if got := last[SurroundingPOS].Category; got != "NN|END" {
		t.Errorf("last SURROUNDING_POS = %q", got)
	}
	if first[Context].Category != "FUNCTION" {
		t.Errorf("CONTEXT = %q", first[Context].Category)
	}
	if first[LastLetter].Number != float64('t') {
		t.Errorf("LAST_LETTER = %v", first[LastLetter].Number)
	}
	if first[VerbScore].Number < 0.9 {
		t.Errorf("VERB_SCORE(get) = %v, want high", first[VerbScore].Number)
	}
	if first[MaxPosition].Number != 3 || last[WordPosition].Number != 2 {
		t.Error("positions wrong")
	}
}

func TestExtractDeterministic(t *testing.T) {
	e := newExtractor(t)
	id := identifier.New("the_number_of_str2", identifier.Declaration, nil)
	a, err := e.ExtractAll(id)
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.ExtractAll(id)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatal("vectors differ between runs")
	}
	if a[0][Determiner].Number != 1 || a[2][Preposition].Number != 1 {
		t.Error("closed class flags not set")
	}
	if a[3][Digits].Number != 1 || a[3][Abbreviation].Number != 0 {
		t.Errorf("str2 flags: digits=%v abbr=%v", a[3][Digits].Number, a[3][Abbreviation].Number)
	}
}

func TestExtractSentinels(t *testing.T) {
	e := &Extractor{}
	id := identifier.New("zzzUnknown", identifier.Class, nil)
	vecs, err := e.ExtractAll(id)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range vecs {
		for _, s := range scoreAnchors {
			if v[s.name].Number != embedding.Sentinel {
				t.Errorf("%s = %v, want sentinel", s.name, v[s.name].Number)
			}
		}
		if v[NLPPOS].Category != dictionary.Unknown {
			t.Errorf("NLP_POS = %q, want unknown", v[NLPPOS].Category)
		}
	}
}

func TestExtractOutOfRange(t *testing.T) {
	e := &Extractor{}
	id := identifier.New("a", identifier.Class, nil)
	if _, err := e.Extract(id, 1); err == nil {
		t.Error("expected error for position 1")
	}
	if _, err := e.Extract(id, -1); err == nil {
		t.Error("expected error for position -1")
	}
	vecs, err := e.ExtractAll(identifier.New("", identifier.Class, nil))
	if err != nil || len(vecs) != 0 {
		t.Errorf("empty identifier: %v, %d vectors", err, len(vecs))
	}
}

func TestVectorRow(t *testing.T) {
	v := Vector{WordPosition: Num(1), Context: Cat("CLASS"), VerbScore: Num(0.25)}
	got := v.Row([]string{Context, WordPosition, VerbScore, Digits})
	want := []string{"CLASS", "1", "0.25", ""}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Row = %q, want %q", got, want)
	}
	if s := v.Strings(); s[Context] != "CLASS" || s[VerbScore] != "0.25" {
		t.Errorf("Strings = %v", s)
	}
}

func TestDefaultCategorical(t *testing.T) {
	want := []string{Context, NLPPOS, SurroundingPOS}
	if got := DefaultCategorical(); !reflect.DeepEqual(got, want) {
		t.Errorf("DefaultCategorical = %v, want %v", got, want)
	}
}
