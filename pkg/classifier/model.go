package classifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/identag/pkg/categorical"
	"github.com/haivivi/identag/pkg/features"
	"github.com/haivivi/identag/pkg/storage"
)

// ModelVersion is the artifact format version.
const ModelVersion = 1

// Model errors.
var (
	ErrMissingFeature = errors.New("classifier: missing feature")
	ErrModelVersion   = errors.New("classifier: unsupported model version")
)

// Prediction is the classifier output for one word.
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Predictor predicts a label for a feature vector. *Model implements it.
type Predictor interface {
	Predict(vec features.Vector) (Prediction, error)
}

// Model is a trained estimator plus its input/output contract. A loaded
// Model is read-only and safe for concurrent Predict calls.
type Model struct {
	Version   int                   `msgpack:"version"`
	Algorithm string                `msgpack:"algorithm"`
	Features  []string              `msgpack:"features"`
	Encoding  *categorical.Encoding `msgpack:"encoding"`
	Labels    []string              `msgpack:"labels"`
	Seeds     map[string]uint64     `msgpack:"seeds"`
	CreatedAt time.Time             `msgpack:"created_at"`
	Payload   []byte                `msgpack:"payload"`

	estimator Estimator
	unseen    atomic.Int64
	logger    *slog.Logger
}

// SetLogger makes Predict log unseen categorical values at debug level.
// Call it before the model is shared. Without a logger they are only
// counted.
func (m *Model) SetLogger(l *slog.Logger) { m.logger = l }

// NewModel assembles a model from a fitted estimator.
func NewModel(alg Algorithm, ds *Dataset, enc *categorical.Encoding, est Estimator, seeds map[string]uint64) (*Model, error) {
	payload, err := est.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("classifier: encode estimator: %w", err)
	}
	return &Model{
		Version:   ModelVersion,
		Algorithm: alg.Name(),
		Features:  append([]string(nil), ds.Features...),
		Encoding:  enc,
		Labels:    append([]string(nil), ds.Labels...),
		Seeds:     seeds,
		CreatedAt: time.Now().UTC(),
		Payload:   payload,
		estimator: est,
	}, nil
}

// Encode converts a feature vector to the dense row the estimator was
// trained on. Categorical values unseen in training map to
// categorical.Fallback; the second return value counts them.
func (m *Model) Encode(vec features.Vector) ([]float64, int, error) {
	x := make([]float64, len(m.Features))
	unseen := 0
	for i, name := range m.Features {
		v, ok := vec[name]
		if !ok {
			return nil, 0, fmt.Errorf("%w: %s", ErrMissingFeature, name)
		}
		if m.Encoding != nil && m.Encoding.Has(name) {
			code, ok := m.Encoding.Encode(name, v.String())
			if !ok {
				unseen++
			}
			x[i] = float64(code)
			continue
		}
		if v.Kind == features.Categorical {
			f, err := strconv.ParseFloat(v.Category, 64)
			if err != nil {
				return nil, 0, fmt.Errorf("classifier: feature %s: non-numeric value %q", name, v.Category)
			}
			x[i] = f
			continue
		}
		x[i] = v.Number
	}
	return x, unseen, nil
}

// Predict implements Predictor.
func (m *Model) Predict(vec features.Vector) (Prediction, error) {
	x, unseen, err := m.Encode(vec)
	if err != nil {
		return Prediction{}, err
	}
	if unseen > 0 {
		m.unseen.Add(int64(unseen))
		if m.logger != nil {
			m.logger.Debug("classifier: unseen categorical values mapped to fallback", "count", unseen)
		}
	}
	return m.PredictRow(x), nil
}

// PredictRow predicts an already encoded row. Ties resolve to the lowest
// label index.
func (m *Model) PredictRow(x []float64) Prediction {
	proba := m.estimator.PredictProba(x)
	best := 0
	for i := 1; i < len(proba); i++ {
		if proba[i] > proba[best] {
			best = i
		}
	}
	if best >= len(m.Labels) {
		return Prediction{}
	}
	return Prediction{Label: m.Labels[best], Confidence: proba[best]}
}

// LabelIndex returns the index of label, or -1.
func (m *Model) LabelIndex(label string) int {
	for i, l := range m.Labels {
		if l == label {
			return i
		}
	}
	return -1
}

// UnseenCount returns how many unseen categorical values Predict has mapped
// to the fallback code since load.
func (m *Model) UnseenCount() int64 { return m.unseen.Load() }

// WriteTo encodes the model to w.
func (m *Model) WriteTo(w io.Writer) (int64, error) {
	data, err := msgpack.Marshal(m)
	if err != nil {
		return 0, fmt.Errorf("classifier: encode model: %w", err)
	}
	n, err := w.Write(data)
	return int64(n), err
}

// Save writes the model to path in store. The artifact is fully encoded
// before the store is touched.
func (m *Model) Save(ctx context.Context, store storage.FileStore, path string) error {
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return err
	}
	w, err := store.Write(ctx, path)
	if err != nil {
		return fmt.Errorf("classifier: open %s: %w", path, err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		w.Close()
		return fmt.Errorf("classifier: write %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("classifier: write %s: %w", path, err)
	}
	return nil
}

// Read decodes a model and restores its estimator.
func Read(r io.Reader) (*Model, error) {
	m := &Model{}
	if err := msgpack.NewDecoder(r).Decode(m); err != nil {
		return nil, fmt.Errorf("classifier: decode model: %w", err)
	}
	if m.Version != ModelVersion {
		return nil, fmt.Errorf("%w: %d", ErrModelVersion, m.Version)
	}
	alg, err := New(m.Algorithm, nil)
	if err != nil {
		return nil, err
	}
	est, err := alg.Decode(m.Payload)
	if err != nil {
		return nil, fmt.Errorf("classifier: decode %s estimator: %w", m.Algorithm, err)
	}
	m.estimator = est
	return m, nil
}

// Load reads a model from path in store.
func Load(ctx context.Context, store storage.FileStore, path string) (*Model, error) {
	r, err := store.Read(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("classifier: open %s: %w", path, err)
	}
	defer r.Close()
	return Read(r)
}
