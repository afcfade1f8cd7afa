// Package forest implements a random forest of CART decision trees.
//
// Trees are grown on bootstrap samples with Gini impurity splits over a
// random subset of features at each node. Every tree draws from its own
// generator seeded with (seed, tree index), so the fitted forest does not
// depend on how trees are scheduled across workers: the same data and seed
// always produce byte-identical encodings.
//
// Importing the package registers the "random_forest" algorithm with
// package classifier.
package forest

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/errgroup"

	"github.com/haivivi/identag/pkg/classifier"
)

// Name is the registry name of the algorithm.
const Name = "random_forest"

func init() {
	classifier.MustRegister(Name, func(params map[string]any) (classifier.Algorithm, error) {
		p, err := ParseParams(params)
		if err != nil {
			return nil, err
		}
		return New(p), nil
	})
}

// Params configures forest growth.
type Params struct {
	// NEstimators is the number of trees. Default 100.
	NEstimators int `yaml:"n_estimators"`

	// MaxDepth limits tree depth; 0 means unlimited.
	MaxDepth int `yaml:"max_depth"`

	// MinSamplesSplit is the minimum node size eligible for splitting.
	// Default 2.
	MinSamplesSplit int `yaml:"min_samples_split"`

	// MinSamplesLeaf is the minimum number of samples in each child.
	// Default 1.
	MinSamplesLeaf int `yaml:"min_samples_leaf"`

	// MaxFeatures is the number of features tried per split; 0 means
	// ceil(sqrt(n_features)).
	MaxFeatures int `yaml:"max_features"`

	// Workers bounds parallel tree fitting; 0 means GOMAXPROCS. It does not
	// affect the result.
	Workers int `yaml:"workers"`
}

// DefaultParams returns the default parameters.
func DefaultParams() Params {
	return Params{NEstimators: 100, MinSamplesSplit: 2, MinSamplesLeaf: 1}
}

// ParseParams reads parameters from a decoded config map. Unknown keys are
// rejected.
func ParseParams(m map[string]any) (Params, error) {
	p := DefaultParams()
	fields := map[string]*int{
		"n_estimators":      &p.NEstimators,
		"max_depth":         &p.MaxDepth,
		"min_samples_split": &p.MinSamplesSplit,
		"min_samples_leaf":  &p.MinSamplesLeaf,
		"max_features":      &p.MaxFeatures,
		"workers":           &p.Workers,
	}
	for k, v := range m {
		dst, ok := fields[k]
		if !ok {
			return p, fmt.Errorf("forest: unknown parameter %q", k)
		}
		n, err := toInt(v)
		if err != nil {
			return p, fmt.Errorf("forest: parameter %s: %w", k, err)
		}
		*dst = n
	}
	return p, p.validate()
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("not an integer: %v", v)
	}
}

func (p Params) validate() error {
	switch {
	case p.NEstimators < 1:
		return fmt.Errorf("forest: n_estimators must be >= 1, got %d", p.NEstimators)
	case p.MaxDepth < 0:
		return fmt.Errorf("forest: max_depth must be >= 0, got %d", p.MaxDepth)
	case p.MinSamplesSplit < 2:
		return fmt.Errorf("forest: min_samples_split must be >= 2, got %d", p.MinSamplesSplit)
	case p.MinSamplesLeaf < 1:
		return fmt.Errorf("forest: min_samples_leaf must be >= 1, got %d", p.MinSamplesLeaf)
	case p.MaxFeatures < 0:
		return fmt.Errorf("forest: max_features must be >= 0, got %d", p.MaxFeatures)
	}
	return nil
}

// Algorithm fits random forests.
type Algorithm struct {
	params Params
}

// New returns a random forest algorithm.
func New(p Params) *Algorithm {
	return &Algorithm{params: p}
}

// Name implements classifier.Algorithm.
func (a *Algorithm) Name() string { return Name }

// Params returns the configured parameters.
func (a *Algorithm) Params() Params { return a.params }

// Fit implements classifier.Algorithm.
func (a *Algorithm) Fit(ctx context.Context, ds *classifier.Dataset, seed uint64) (classifier.Estimator, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	if err := a.params.validate(); err != nil {
		return nil, err
	}
	nf := len(ds.Features)
	maxFeatures := a.params.MaxFeatures
	if maxFeatures == 0 {
		maxFeatures = int(math.Ceil(math.Sqrt(float64(nf))))
	}
	maxFeatures = min(maxFeatures, nf)
	workers := a.params.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	f := &Forest{
		NLabels:   len(ds.Labels),
		NFeatures: nf,
		Trees:     make([]Tree, a.params.NEstimators),
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range f.Trees {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(seed, uint64(i)))
			b := &builder{
				ds:          ds,
				params:      a.params,
				maxFeatures: maxFeatures,
				rng:         rng,
			}
			f.Trees[i] = b.grow()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return f, nil
}

// Decode implements classifier.Algorithm.
func (a *Algorithm) Decode(payload []byte) (classifier.Estimator, error) {
	f := &Forest{}
	if err := msgpack.Unmarshal(payload, f); err != nil {
		return nil, err
	}
	if len(f.Trees) == 0 {
		return nil, fmt.Errorf("forest: payload has no trees")
	}
	return f, nil
}

// Forest is a fitted random forest.
type Forest struct {
	NLabels   int    `msgpack:"n_labels"`
	NFeatures int    `msgpack:"n_features"`
	Trees     []Tree `msgpack:"trees"`
}

// Tree is a flattened decision tree; Nodes[0] is the root.
type Tree struct {
	Nodes []Node `msgpack:"nodes"`
}

// Node is a split node (Feature >= 0) or a leaf (Feature == -1).
type Node struct {
	Feature   int       `msgpack:"f"`
	Threshold float64   `msgpack:"t"`
	Left      int       `msgpack:"l"`
	Right     int       `msgpack:"r"`
	Dist      []float64 `msgpack:"d,omitempty"`
}

// PredictProba implements classifier.Estimator by averaging the leaf
// distributions of all trees.
func (f *Forest) PredictProba(x []float64) []float64 {
	out := make([]float64, f.NLabels)
	for i := range f.Trees {
		for j, p := range f.Trees[i].leaf(x) {
			out[j] += p
		}
	}
	n := float64(len(f.Trees))
	for j := range out {
		out[j] /= n
	}
	return out
}

// MarshalBinary implements classifier.Estimator.
func (f *Forest) MarshalBinary() ([]byte, error) {
	return msgpack.Marshal(f)
}

func (t *Tree) leaf(x []float64) []float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Feature < 0 {
			return n.Dist
		}
		if n.Feature < len(x) && x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}
