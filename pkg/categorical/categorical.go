// Package categorical maps categorical feature values to stable integer
// codes.
//
// An Encoding is built from training data and stored inside the model
// artifact, so inference encodes categories exactly as training did. Codes
// are assigned in sorted value order per column, which makes the encoding
// independent of row order. Values never seen during training encode to
// Fallback instead of failing.
package categorical

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Version is the current encoding format version.
const Version = 1

// Fallback is the code of any value not present in the encoding.
const Fallback = -1

// ErrVersion is returned when decoding an encoding of another version.
var ErrVersion = errors.New("categorical: unsupported encoding version")

// Encoding is an immutable column -> category -> code mapping. It is safe
// for concurrent use.
type Encoding struct {
	columns map[string][]string
	index   map[string]map[string]int
}

// Builder collects observed values per column.
type Builder struct {
	seen map[string]map[string]struct{}
}

// NewBuilder creates a Builder for the given columns. Columns with no
// observed values still appear in the built encoding.
func NewBuilder(columns ...string) *Builder {
	b := &Builder{seen: make(map[string]map[string]struct{}, len(columns))}
	for _, c := range columns {
		b.seen[c] = make(map[string]struct{})
	}
	return b
}

// Observe records a value for column.
func (b *Builder) Observe(column, value string) {
	m, ok := b.seen[column]
	if !ok {
		m = make(map[string]struct{})
		b.seen[column] = m
	}
	m[value] = struct{}{}
}

// Build returns the encoding.
func (b *Builder) Build() *Encoding {
	cols := make(map[string][]string, len(b.seen))
	for c, vals := range b.seen {
		list := make([]string, 0, len(vals))
		for v := range vals {
			list = append(list, v)
		}
		sort.Strings(list)
		cols[c] = list
	}
	return newEncoding(cols)
}

func newEncoding(cols map[string][]string) *Encoding {
	e := &Encoding{columns: cols, index: make(map[string]map[string]int, len(cols))}
	for c, vals := range cols {
		idx := make(map[string]int, len(vals))
		for i, v := range vals {
			idx[v] = i
		}
		e.index[c] = idx
	}
	return e
}

// Encode returns the code of value in column. Unknown columns and values
// return Fallback and false.
func (e *Encoding) Encode(column, value string) (int, bool) {
	idx, ok := e.index[column]
	if !ok {
		return Fallback, false
	}
	code, ok := idx[value]
	if !ok {
		return Fallback, false
	}
	return code, true
}

// Decode returns the category for code in column.
func (e *Encoding) Decode(column string, code int) (string, bool) {
	vals := e.columns[column]
	if code < 0 || code >= len(vals) {
		return "", false
	}
	return vals[code], true
}

// Has reports whether column is encoded.
func (e *Encoding) Has(column string) bool {
	_, ok := e.columns[column]
	return ok
}

// Columns returns the encoded column names, sorted.
func (e *Encoding) Columns() []string {
	out := make([]string, 0, len(e.columns))
	for c := range e.columns {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Categories returns the categories of column in code order.
func (e *Encoding) Categories(column string) []string {
	return slices.Clone(e.columns[column])
}

// Format renders one column as "value=code" pairs in code order.
func (e *Encoding) Format(column string) string {
	vals := e.columns[column]
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprintf("%s=%d", v, i)
	}
	return strings.Join(parts, " ")
}

type wire struct {
	Version int                 `msgpack:"version"`
	Columns map[string][]string `msgpack:"columns"`
}

// EncodeMsgpack implements msgpack.CustomEncoder.
func (e *Encoding) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(wire{Version: Version, Columns: e.columns})
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (e *Encoding) DecodeMsgpack(dec *msgpack.Decoder) error {
	var w wire
	if err := dec.Decode(&w); err != nil {
		return err
	}
	if w.Version != Version {
		return fmt.Errorf("%w: %d", ErrVersion, w.Version)
	}
	if w.Columns == nil {
		w.Columns = map[string][]string{}
	}
	*e = *newEncoding(w.Columns)
	return nil
}
