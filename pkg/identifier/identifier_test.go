package identifier

import (
	"errors"
	"slices"
	"testing"
)

func TestCamelSnakeSplit(t *testing.T) {
	tests := []struct {
		name string
		want []string
	}{
		{"numberArray", []string{"number", "Array"}},
		{"NumberArray", []string{"Number", "Array"}},
		{"HTTPServer", []string{"HTTP", "Server"}},
		{"getHTTPResponseCode", []string{"get", "HTTP", "Response", "Code"}},
		{"max_value", []string{"max", "value"}},
		{"__init__", []string{"init"}},
		{"MAX_BUFFER_SIZE", []string{"MAX", "BUFFER", "SIZE"}},
		{"utf8Decoder", []string{"utf8", "Decoder"}},
		{"kebab-case-name", []string{"kebab-case-name"}},
		{"x", []string{"x"}},
		{"", nil},
		{"___", nil},
		{"  spaced  out ", []string{"spaced", "out"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CamelSnake{}.Split(tt.name)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Split(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestNewPositions(t *testing.T) {
	id := New("getUserName", Function, nil)
	if id.Len() != 3 {
		t.Fatalf("Len = %d, want 3", id.Len())
	}
	for i, w := range id.Words {
		if w.Position != i {
			t.Errorf("word %d Position = %d", i, w.Position)
		}
		if w.MaxPosition != 3 {
			t.Errorf("word %d MaxPosition = %d, want 3", i, w.MaxPosition)
		}
	}
	if got := id.Texts(); !slices.Equal(got, []string{"get", "User", "Name"}) {
		t.Errorf("Texts = %q", got)
	}
}

func TestParseContext(t *testing.T) {
	for _, c := range Contexts() {
		got, err := ParseContext(string(c))
		if err != nil {
			t.Fatalf("ParseContext(%q): %v", c, err)
		}
		if got != c {
			t.Errorf("ParseContext(%q) = %q", c, got)
		}
	}
	for _, bad := range []string{"function", "Declaration", "", "METHOD"} {
		if _, err := ParseContext(bad); !errors.Is(err, ErrInvalidContext) {
			t.Errorf("ParseContext(%q) err = %v, want ErrInvalidContext", bad, err)
		}
	}
}

func TestSplitterFunc(t *testing.T) {
	s := SplitterFunc(func(name string) []string { return []string{name, name} })
	id := New("ab", Class, s)
	if id.Len() != 2 || id.Words[1].Text != "ab" {
		t.Errorf("unexpected words: %+v", id.Words)
	}
}
