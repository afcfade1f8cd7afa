// Package classifier defines the trained model artifact and the pluggable
// learning algorithms behind it.
//
// An [Algorithm] fits an [Estimator] on an encoded [Dataset]. The resulting
// [Model] bundles the estimator payload with everything inference needs to
// reproduce training-time inputs: the ordered feature list, the categorical
// encoding and the label set. Algorithms are looked up by name so training
// configs can select them:
//
//	alg, err := classifier.New("random_forest", params)
//	est, err := alg.Fit(ctx, ds, seed)
package classifier

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Common errors.
var (
	// ErrUnknownAlgorithm is returned for names with no registered factory.
	ErrUnknownAlgorithm = errors.New("classifier: unknown algorithm")

	// ErrEmptyDataset is returned by Fit when there is nothing to learn from.
	ErrEmptyDataset = errors.New("classifier: empty dataset")
)

// Dataset is an encoded, dense training matrix.
type Dataset struct {
	// Features names the columns of X.
	Features []string

	// X holds one row per sample.
	X [][]float64

	// Y holds the label index of each row.
	Y []int

	// Labels maps label indices to label strings.
	Labels []string
}

// Validate checks the dataset shape.
func (ds *Dataset) Validate() error {
	if ds == nil || len(ds.X) == 0 {
		return ErrEmptyDataset
	}
	if len(ds.X) != len(ds.Y) {
		return fmt.Errorf("classifier: %d rows but %d labels", len(ds.X), len(ds.Y))
	}
	for i, row := range ds.X {
		if len(row) != len(ds.Features) {
			return fmt.Errorf("classifier: row %d has %d values, want %d", i, len(row), len(ds.Features))
		}
		if ds.Y[i] < 0 || ds.Y[i] >= len(ds.Labels) {
			return fmt.Errorf("classifier: row %d label index %d out of range", i, ds.Y[i])
		}
	}
	return nil
}

// Estimator is a fitted model.
type Estimator interface {
	// PredictProba returns one probability per label index.
	PredictProba(x []float64) []float64

	// MarshalBinary encodes the estimator. Equal estimators must encode to
	// equal bytes.
	MarshalBinary() ([]byte, error)
}

// Algorithm fits estimators.
type Algorithm interface {
	// Name returns the registry name.
	Name() string

	// Fit trains an estimator. All randomness must derive from seed.
	Fit(ctx context.Context, ds *Dataset, seed uint64) (Estimator, error)

	// Decode restores an estimator produced by MarshalBinary.
	Decode(payload []byte) (Estimator, error)
}

// Factory builds an Algorithm from algorithm-specific parameters, as found
// in a training config. A nil map selects defaults.
type Factory func(params map[string]any) (Algorithm, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes an algorithm available under name.
func Register(name string, f Factory) error {
	if name == "" {
		return fmt.Errorf("classifier: empty algorithm name")
	}
	if f == nil {
		return fmt.Errorf("classifier: nil factory for %s", name)
	}
	mu.Lock()
	defer mu.Unlock()
	if _, ok := factories[name]; ok {
		return fmt.Errorf("classifier: algorithm already registered for %s", name)
	}
	factories[name] = f
	return nil
}

// MustRegister is like Register but panics on error. It is meant for
// package init functions.
func MustRegister(name string, f Factory) {
	if err := Register(name, f); err != nil {
		panic(err)
	}
}

// New builds the named algorithm.
func New(name string, params map[string]any) (Algorithm, error) {
	mu.RLock()
	f, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s (available: %v)", ErrUnknownAlgorithm, name, Algorithms())
	}
	return f(params)
}

// Algorithms returns the registered names, sorted.
func Algorithms() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
