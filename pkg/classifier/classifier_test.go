package classifier_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"github.com/haivivi/identag/pkg/categorical"
	"github.com/haivivi/identag/pkg/classifier"
	"github.com/haivivi/identag/pkg/classifier/forest"
	"github.com/haivivi/identag/pkg/features"
	"github.com/haivivi/identag/pkg/storage"
)

// firstCode predicts label 0 when the first column encodes to 0 and label 1
// otherwise.
type firstCode struct{}

func (firstCode) Name() string { return "first_code" }

func (firstCode) Fit(_ context.Context, ds *classifier.Dataset, _ uint64) (classifier.Estimator, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return firstCodeEstimator{}, nil
}

func (firstCode) Decode(payload []byte) (classifier.Estimator, error) {
	if string(payload) != "first_code" {
		return nil, errors.New("bad payload")
	}
	return firstCodeEstimator{}, nil
}

type firstCodeEstimator struct{}

func (firstCodeEstimator) PredictProba(x []float64) []float64 {
	if x[0] == 0 {
		return []float64{0.9, 0.1}
	}
	return []float64{0.2, 0.8}
}

func (firstCodeEstimator) MarshalBinary() ([]byte, error) { return []byte("first_code"), nil }

func init() {
	classifier.MustRegister("first_code", func(map[string]any) (classifier.Algorithm, error) {
		return firstCode{}, nil
	})
}

func newModel(t *testing.T) *classifier.Model {
	t.Helper()
	b := categorical.NewBuilder(features.NLPPOS)
	b.Observe(features.NLPPOS, "NN")
	b.Observe(features.NLPPOS, "VB")
	enc := b.Build()

	ds := &classifier.Dataset{
		Features: []string{features.NLPPOS, features.WordPosition},
		X:        [][]float64{{0, 0}, {1, 1}},
		Y:        []int{0, 1},
		Labels:   []string{"N", "V"},
	}
	alg, err := classifier.New("first_code", nil)
	if err != nil {
		t.Fatal(err)
	}
	est, err := alg.Fit(context.Background(), ds, 1)
	if err != nil {
		t.Fatal(err)
	}
	m, err := classifier.NewModel(alg, ds, enc, est, map[string]uint64{"classifier": 1})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func vec(pos string) features.Vector {
	return features.Vector{
		features.NLPPOS:       features.Cat(pos),
		features.WordPosition: features.Num(0),
	}
}

func TestRegistry(t *testing.T) {
	if err := classifier.Register("first_code", func(map[string]any) (classifier.Algorithm, error) { return nil, nil }); err == nil {
		t.Fatal("duplicate Register should fail")
	}
	if err := classifier.Register("", nil); err == nil {
		t.Fatal("empty name should fail")
	}
	if _, err := classifier.New("gradient_boosting", nil); !errors.Is(err, classifier.ErrUnknownAlgorithm) {
		t.Fatalf("New unknown err = %v", err)
	}
	names := classifier.Algorithms()
	if !slices.IsSorted(names) || !slices.Contains(names, forest.Name) || !slices.Contains(names, "first_code") {
		t.Fatalf("Algorithms() = %v", names)
	}
}

func TestDatasetValidate(t *testing.T) {
	tests := []struct {
		name string
		ds   *classifier.Dataset
	}{
		{"nil", nil},
		{"empty", &classifier.Dataset{}},
		{"label count", &classifier.Dataset{Features: []string{"a"}, X: [][]float64{{1}}, Labels: []string{"N"}}},
		{"row width", &classifier.Dataset{Features: []string{"a"}, X: [][]float64{{1, 2}}, Y: []int{0}, Labels: []string{"N"}}},
		{"label range", &classifier.Dataset{Features: []string{"a"}, X: [][]float64{{1}}, Y: []int{3}, Labels: []string{"N"}}},
	}
	for _, tt := range tests {
		if err := tt.ds.Validate(); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestModelPredict(t *testing.T) {
	m := newModel(t)

	got, err := m.Predict(vec("NN"))
	if err != nil {
		t.Fatal(err)
	}
	if got.Label != "N" || got.Confidence != 0.9 {
		t.Fatalf("Predict(NN) = %+v", got)
	}

	got, err = m.Predict(vec("VB"))
	if err != nil {
		t.Fatal(err)
	}
	if got.Label != "V" {
		t.Fatalf("Predict(VB) = %+v", got)
	}
	if m.UnseenCount() != 0 {
		t.Fatalf("UnseenCount = %d", m.UnseenCount())
	}
}

func TestModelUnseenCategory(t *testing.T) {
	m := newModel(t)

	x, unseen, err := m.Encode(vec("JJ"))
	if err != nil {
		t.Fatal(err)
	}
	if unseen != 1 || x[0] != categorical.Fallback {
		t.Fatalf("Encode(JJ) = %v, unseen %d", x, unseen)
	}
	if _, err := m.Predict(vec("JJ")); err != nil {
		t.Fatal(err)
	}
	if m.UnseenCount() != 1 {
		t.Fatalf("UnseenCount = %d, want 1", m.UnseenCount())
	}
}

func TestModelLogsUnseenThroughOwnLogger(t *testing.T) {
	var global bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&global, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	m := newModel(t)
	if _, err := m.Predict(vec("JJ")); err != nil {
		t.Fatal(err)
	}
	if global.Len() != 0 {
		t.Fatalf("model wrote to the default logger: %s", global.String())
	}

	var buf bytes.Buffer
	m.SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	if _, err := m.Predict(vec("JJ")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "unseen categorical values") || !strings.Contains(buf.String(), "count=1") {
		t.Fatalf("log = %q", buf.String())
	}
	if global.Len() != 0 {
		t.Fatalf("model wrote to the default logger: %s", global.String())
	}
	if m.UnseenCount() != 2 {
		t.Fatalf("UnseenCount = %d, want 2", m.UnseenCount())
	}
}

func TestModelMissingFeature(t *testing.T) {
	m := newModel(t)
	_, err := m.Predict(features.Vector{features.NLPPOS: features.Cat("NN")})
	if !errors.Is(err, classifier.ErrMissingFeature) {
		t.Fatalf("err = %v, want ErrMissingFeature", err)
	}
}

func TestModelSaveLoad(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	m := newModel(t)
	if err := m.Save(ctx, store, "models/pos.msgpack"); err != nil {
		t.Fatal(err)
	}

	loaded, err := classifier.Load(ctx, store, "models/pos.msgpack")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Algorithm != "first_code" || !slices.Equal(loaded.Features, m.Features) || !slices.Equal(loaded.Labels, m.Labels) {
		t.Fatalf("loaded model = %+v", loaded)
	}
	if loaded.Seeds["classifier"] != 1 {
		t.Fatalf("seeds = %v", loaded.Seeds)
	}
	code, ok := loaded.Encoding.Encode(features.NLPPOS, "VB")
	if !ok || code != 1 {
		t.Fatalf("encoding lost: %d %v", code, ok)
	}
	got, err := loaded.Predict(vec("NN"))
	if err != nil || got.Label != "N" {
		t.Fatalf("Predict after load = %+v, %v", got, err)
	}

	if _, err := classifier.Load(ctx, store, "missing.msgpack"); err == nil {
		t.Fatal("expected error for missing artifact")
	}
}

func TestReadVersionMismatch(t *testing.T) {
	m := newModel(t)
	m.Version = classifier.ModelVersion + 1
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	if _, err := classifier.Read(&buf); !errors.Is(err, classifier.ErrModelVersion) {
		t.Fatalf("err = %v, want ErrModelVersion", err)
	}
}

func TestForestModelRoundTrip(t *testing.T) {
	ds := &classifier.Dataset{
		Features: []string{features.WordPosition, features.Digits},
		Labels:   []string{"NM", "N", "D"},
	}
	for i := 0; i < 30; i++ {
		switch i % 3 {
		case 0:
			ds.X = append(ds.X, []float64{0, 0})
		case 1:
			ds.X = append(ds.X, []float64{1, 0})
		default:
			ds.X = append(ds.X, []float64{1, 1})
		}
		ds.Y = append(ds.Y, i%3)
	}
	alg, err := classifier.New(forest.Name, map[string]any{"n_estimators": 10})
	if err != nil {
		t.Fatal(err)
	}
	est, err := alg.Fit(context.Background(), ds, 7)
	if err != nil {
		t.Fatal(err)
	}
	m, err := classifier.NewModel(alg, ds, nil, est, nil)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	loaded, err := classifier.Read(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(loaded.Payload, m.Payload) {
		t.Fatal("payload changed across round trip")
	}
	for i, want := range []string{"NM", "N", "D"} {
		got := loaded.PredictRow(ds.X[i])
		if got.Label != want {
			t.Errorf("row %d: got %s, want %s", i, got.Label, want)
		}
	}
}
