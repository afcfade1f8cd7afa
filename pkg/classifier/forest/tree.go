package forest

import (
	"math/rand/v2"
	"sort"

	"github.com/haivivi/identag/pkg/classifier"
)

// minGain is the impurity decrease below which a node becomes a leaf.
const minGain = 1e-12

type builder struct {
	ds          *classifier.Dataset
	params      Params
	maxFeatures int
	rng         *rand.Rand
	nodes       []Node
}

func (b *builder) grow() Tree {
	n := len(b.ds.X)
	sample := make([]int, n)
	for i := range sample {
		sample[i] = b.rng.IntN(n)
	}
	b.nodes = b.nodes[:0]
	b.build(sample, 0)
	return Tree{Nodes: b.nodes}
}

// build appends the subtree for sample in depth-first order and returns its
// root index.
func (b *builder) build(sample []int, depth int) int {
	idx := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1})

	counts := b.counts(sample)
	parent := gini(counts, len(sample))
	if parent == 0 ||
		len(sample) < b.params.MinSamplesSplit ||
		(b.params.MaxDepth > 0 && depth >= b.params.MaxDepth) {
		b.nodes[idx].Dist = distribution(counts, len(sample))
		return idx
	}

	feature, threshold, score, ok := b.bestSplit(sample)
	if !ok || parent-score < minGain {
		b.nodes[idx].Dist = distribution(counts, len(sample))
		return idx
	}

	var left, right []int
	for _, s := range sample {
		if b.ds.X[s][feature] <= threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		// Threshold rounded onto one side of the sample.
		b.nodes[idx].Dist = distribution(counts, len(sample))
		return idx
	}
	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[idx] = Node{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return idx
}

// bestSplit returns the lowest weighted Gini split over a random subset of
// features.
func (b *builder) bestSplit(sample []int) (feature int, threshold, score float64, ok bool) {
	nf := len(b.ds.Features)
	perm := make([]int, nf)
	for i := range perm {
		perm[i] = i
	}
	// Partial Fisher-Yates: the first maxFeatures entries are the draw.
	for i := 0; i < b.maxFeatures; i++ {
		j := i + b.rng.IntN(nf-i)
		perm[i], perm[j] = perm[j], perm[i]
	}

	nl := len(b.ds.Labels)
	n := len(sample)
	minLeaf := b.params.MinSamplesLeaf
	sorted := make([]int, n)
	score = 2
	for _, f := range perm[:b.maxFeatures] {
		copy(sorted, sample)
		sort.Slice(sorted, func(i, j int) bool {
			vi, vj := b.ds.X[sorted[i]][f], b.ds.X[sorted[j]][f]
			if vi != vj {
				return vi < vj
			}
			return sorted[i] < sorted[j]
		})

		left := make([]int, nl)
		right := b.counts(sorted)
		for i := 1; i < n; i++ {
			y := b.ds.Y[sorted[i-1]]
			left[y]++
			right[y]--
			prev, cur := b.ds.X[sorted[i-1]][f], b.ds.X[sorted[i]][f]
			if prev == cur || i < minLeaf || n-i < minLeaf {
				continue
			}
			s := (float64(i)*gini(left, i) + float64(n-i)*gini(right, n-i)) / float64(n)
			if s < score {
				score = s
				feature = f
				threshold = prev + (cur-prev)/2
				ok = true
			}
		}
	}
	return feature, threshold, score, ok
}

func (b *builder) counts(sample []int) []int {
	c := make([]int, len(b.ds.Labels))
	for _, s := range sample {
		c[b.ds.Y[s]]++
	}
	return c
}

func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		g -= p * p
	}
	return g
}

func distribution(counts []int, n int) []float64 {
	d := make([]float64, len(counts))
	if n == 0 {
		return d
	}
	for i, c := range counts {
		d[i] = float64(c) / float64(n)
	}
	return d
}
