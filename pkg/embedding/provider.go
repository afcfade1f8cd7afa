package embedding

// Provider scores words against anchor concepts using a token table and a
// target table. It is immutable after NewProvider.
type Provider struct {
	token   *Table
	target  *Table
	anchors map[string][]float64
}

// NewProvider builds a provider and precomputes the anchor centroids. Either
// table may be nil, in which case every score against it is Sentinel.
// Anchors whose seeds are all missing from their table also score Sentinel.
func NewProvider(token, target *Table, anchors []Anchor) *Provider {
	p := &Provider{
		token:   token,
		target:  target,
		anchors: make(map[string][]float64, len(anchors)),
	}
	for _, a := range anchors {
		if c := centroid(p.table(a.Source), a.Seeds); c != nil {
			p.anchors[a.Name] = c
		}
	}
	return p
}

func (p *Provider) table(s Source) *Table {
	if s == Target {
		return p.target
	}
	return p.token
}

// Similarity returns the cosine similarity between word and the anchor's
// centroid, or Sentinel if either is unavailable.
func (p *Provider) Similarity(word string, a Anchor) float64 {
	if p == nil {
		return Sentinel
	}
	c, ok := p.anchors[a.Name]
	if !ok {
		return Sentinel
	}
	v, ok := p.table(a.Source).Lookup(word)
	if !ok {
		return Sentinel
	}
	return CosineSimilarity(v, c)
}

// Covered reports whether the anchor has a centroid.
func (p *Provider) Covered(a Anchor) bool {
	if p == nil {
		return false
	}
	_, ok := p.anchors[a.Name]
	return ok
}

// centroid averages the vectors of seeds found in t. Seeds are visited in
// order so the floating point sum is reproducible.
func centroid(t *Table, seeds []string) []float64 {
	if t.Len() == 0 {
		return nil
	}
	sum := make([]float64, t.Dimension())
	n := 0
	for _, s := range seeds {
		v, ok := t.Lookup(s)
		if !ok {
			continue
		}
		for i := range sum {
			sum[i] += v[i]
		}
		n++
	}
	if n == 0 {
		return nil
	}
	for i := range sum {
		sum[i] /= float64(n)
	}
	return sum
}
