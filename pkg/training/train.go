// Package training fits a classifier from a labeled corpus of precomputed
// feature rows.
//
// A run reads rows through a [Source], shuffles them, encodes categorical
// columns, holds out a validation share, fits the configured algorithm and
// persists the resulting [classifier.Model]. Every step that involves
// randomness draws from its own configured seed, so identical configs and
// rows yield byte-identical estimators. Each run appends a section to a
// plain-text report.
package training

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/haivivi/identag/pkg/categorical"
	"github.com/haivivi/identag/pkg/classifier"
	"github.com/haivivi/identag/pkg/metrics"
	"github.com/haivivi/identag/pkg/storage"
)

// Options carries the collaborators of Train. Zero values select the
// defaults noted on each field.
type Options struct {
	// Store receives the model at Config.ModelOutput. Default: the local
	// directory or S3 bucket named by Config.ModelOutput.
	Store storage.FileStore

	// S3 builds the client when ModelOutput is an s3:// location and Store
	// is nil.
	S3 storage.ClientFunc

	// Report receives the run section. Default: Config.Report opened in
	// append mode.
	Report io.Writer

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Source defaults to SQLiteSource.
	Source Source
}

// Importance is the validation accuracy lost when one feature column is
// permuted.
type Importance struct {
	Feature  string  `json:"feature" yaml:"feature"`
	Decrease float64 `json:"decrease" yaml:"decrease"`
}

// Result summarizes a finished run.
type Result struct {
	RunID          string
	Model          *classifier.Model
	ModelPath      string
	Rows           int
	TrainRows      int
	ValidationRows int
	LabelCounts    map[string]int
	Validation     *metrics.Report
	Importance     []Importance
}

// Train runs the full pipeline. Configuration problems yield *ConfigError
// before any I/O and input problems yield *DataError; in both cases, and on
// any other failure before the final save, no model is written.
func Train(ctx context.Context, cfg *Config, opts Options) (*Result, error) {
	if cfg == nil {
		return nil, configErr("(file)", "no config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	src := opts.Source
	if src == nil {
		src = SQLiteSource{}
	}
	alg, err := cfg.NewAlgorithm()
	if err != nil {
		return nil, err
	}

	table, err := src.Query(ctx, cfg.Input, cfg.Query)
	if err != nil {
		return nil, dataErr(err, "query %s", cfg.Input)
	}
	if len(table.Rows) == 0 {
		return nil, dataErr(nil, "query returned zero rows")
	}
	cols, err := resolveColumns(cfg, table)
	if err != nil {
		return nil, err
	}
	logger.Info("training: rows loaded", "input", cfg.Input, "rows", len(table.Rows))

	rows := table.Rows
	rand.New(rand.NewPCG(*cfg.Seeds.Random, 0)).Shuffle(len(rows), func(i, j int) {
		rows[i], rows[j] = rows[j], rows[i]
	})

	enc := buildEncoding(cfg, cols, rows)
	ds, labelCounts, err := encodeRows(cfg, cols, enc, rows)
	if err != nil {
		return nil, err
	}

	w, closeReport, err := openReport(cfg, opts)
	if err != nil {
		return nil, err
	}
	defer closeReport()

	res := &Result{RunID: uuid.NewString(), Rows: len(rows), LabelCounts: labelCounts}
	rw := &reportWriter{w: w, runID: res.RunID}
	rw.header(cfg, timeNow())
	rw.encoding(enc)
	if rw.err != nil {
		return nil, fmt.Errorf("training: write report: %w", rw.err)
	}

	if err := fitAndSave(ctx, cfg, opts, alg, ds, enc, res, rw, logger); err != nil {
		rw.failed(err)
		return nil, err
	}
	rw.labels(labelCounts, len(rows))
	rw.split(res.TrainRows, res.ValidationRows)
	rw.metrics(res.Validation)
	rw.importance(res.Importance)
	rw.done(res.ModelPath)
	if rw.err != nil {
		return res, fmt.Errorf("training: write report: %w", rw.err)
	}
	return res, nil
}

func fitAndSave(ctx context.Context, cfg *Config, opts Options, alg classifier.Algorithm,
	ds *classifier.Dataset, enc *categorical.Encoding, res *Result, rw *reportWriter, logger *slog.Logger) error {

	trainIdx, valIdx := partition(len(ds.X), *cfg.ValidationFraction, *cfg.Seeds.Training)
	trainDS := subset(ds, trainIdx)
	res.TrainRows, res.ValidationRows = len(trainIdx), len(valIdx)

	logger.Info("training: fitting", "algorithm", alg.Name(), "train", len(trainIdx), "validation", len(valIdx))
	est, err := alg.Fit(ctx, trainDS, *cfg.Seeds.Classifier)
	if err != nil {
		return fmt.Errorf("training: fit %s: %w", alg.Name(), err)
	}
	model, err := classifier.NewModel(alg, trainDS, enc, est, cfg.Seeds.Map())
	if err != nil {
		return err
	}
	res.Model = model

	if len(valIdx) > 0 {
		valDS := subset(ds, valIdx)
		res.Validation, err = validate(model, valDS)
		if err != nil {
			return err
		}
		res.Importance, err = permutationImportance(ctx, model, valDS, *cfg.Seeds.Numpy)
		if err != nil {
			return err
		}
		logger.Info("training: validated", "accuracy", res.Validation.Accuracy)
	}

	store, path := opts.Store, cfg.ModelOutput
	if store == nil {
		store, path, err = storage.Open(ctx, cfg.ModelOutput, opts.S3)
		if err != nil {
			return fmt.Errorf("training: model output: %w", err)
		}
	}
	if exists, err := store.Exists(ctx, path); err != nil {
		return fmt.Errorf("training: model output: %w", err)
	} else if exists {
		logger.Info("training: replacing existing model", "path", cfg.ModelOutput)
	}
	if err := model.Save(ctx, store, path); err != nil {
		return err
	}
	res.ModelPath = cfg.ModelOutput
	logger.Info("training: model saved", "path", cfg.ModelOutput, "run", res.RunID)
	return nil
}

// timeNow is replaced in tests.
var timeNow = func() time.Time { return time.Now().UTC() }

type columns struct {
	id, label int
	features  []int
}

func resolveColumns(cfg *Config, t *Table) (columns, error) {
	var missing []string
	find := func(name string) int {
		i := t.Column(name)
		if i < 0 {
			missing = append(missing, name)
		}
		return i
	}
	c := columns{id: find(cfg.IdentifierColumn), label: find(cfg.DependentVariable)}
	for _, f := range cfg.IndependentVariables {
		c.features = append(c.features, find(f))
	}
	if len(missing) > 0 {
		return columns{}, dataErr(nil, "columns absent from rows: %v", missing)
	}
	return c, nil
}

func buildEncoding(cfg *Config, cols columns, rows [][]string) *categorical.Encoding {
	b := categorical.NewBuilder(cfg.CategoricalVariables...)
	for j, name := range cfg.IndependentVariables {
		if !cfg.IsCategorical(name) {
			continue
		}
		for _, row := range rows {
			b.Observe(name, row[cols.features[j]])
		}
	}
	return b.Build()
}

func encodeRows(cfg *Config, cols columns, enc *categorical.Encoding, rows [][]string) (*classifier.Dataset, map[string]int, error) {
	counts := make(map[string]int)
	for _, row := range rows {
		counts[row[cols.label]]++
	}
	labels := make([]string, 0, len(counts))
	for l := range counts {
		labels = append(labels, l)
	}
	slices.Sort(labels)
	labelIdx := make(map[string]int, len(labels))
	for i, l := range labels {
		labelIdx[l] = i
	}

	ds := &classifier.Dataset{
		Features: slices.Clone(cfg.IndependentVariables),
		X:        make([][]float64, len(rows)),
		Y:        make([]int, len(rows)),
		Labels:   labels,
	}
	for r, row := range rows {
		x := make([]float64, len(cols.features))
		for j, name := range cfg.IndependentVariables {
			v := row[cols.features[j]]
			if cfg.IsCategorical(name) {
				code, _ := enc.Encode(name, v)
				x[j] = float64(code)
				continue
			}
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, nil, dataErr(nil, "row %s: column %s: %q is not numeric", row[cols.id], name, v)
			}
			x[j] = f
		}
		ds.X[r] = x
		ds.Y[r] = labelIdx[row[cols.label]]
	}
	return ds, counts, nil
}

// partition splits n row indices into train and validation sets. At least
// one row always stays in training.
func partition(n int, fraction float64, seed uint64) (train, validation []int) {
	nVal := int(math.Round(fraction * float64(n)))
	if nVal >= n {
		nVal = n - 1
	}
	perm := rand.New(rand.NewPCG(seed, 1)).Perm(n)
	validation = slices.Clone(perm[:nVal])
	train = slices.Clone(perm[nVal:])
	slices.Sort(validation)
	slices.Sort(train)
	return train, validation
}

func subset(ds *classifier.Dataset, idx []int) *classifier.Dataset {
	out := &classifier.Dataset{
		Features: ds.Features,
		Labels:   ds.Labels,
		X:        make([][]float64, len(idx)),
		Y:        make([]int, len(idx)),
	}
	for i, r := range idx {
		out.X[i] = ds.X[r]
		out.Y[i] = ds.Y[r]
	}
	return out
}

func validate(m *classifier.Model, ds *classifier.Dataset) (*metrics.Report, error) {
	conf := metrics.NewConfusion(ds.Labels)
	for i, x := range ds.X {
		conf.Add(ds.Labels[ds.Y[i]], m.PredictRow(x).Label)
	}
	return conf.Compute()
}

func accuracy(m *classifier.Model, ds *classifier.Dataset) float64 {
	correct := 0
	for i, x := range ds.X {
		if m.PredictRow(x).Label == ds.Labels[ds.Y[i]] {
			correct++
		}
	}
	return float64(correct) / float64(len(ds.X))
}

// permutationImportance measures, per feature, the validation accuracy lost
// when that column is shuffled. Column j is shuffled by a generator seeded
// with (seed, j).
func permutationImportance(ctx context.Context, m *classifier.Model, ds *classifier.Dataset, seed uint64) ([]Importance, error) {
	base := accuracy(m, ds)
	out := make([]Importance, len(ds.Features))
	for j, name := range ds.Features {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		col := make([]float64, len(ds.X))
		for i, x := range ds.X {
			col[i] = x[j]
		}
		rand.New(rand.NewPCG(seed, uint64(j))).Shuffle(len(col), func(a, b int) {
			col[a], col[b] = col[b], col[a]
		})
		permuted := &classifier.Dataset{Features: ds.Features, Labels: ds.Labels, Y: ds.Y, X: make([][]float64, len(ds.X))}
		for i, x := range ds.X {
			row := slices.Clone(x)
			row[j] = col[i]
			permuted.X[i] = row
		}
		out[j] = Importance{Feature: name, Decrease: base - accuracy(m, permuted)}
	}
	return out, nil
}

func openReport(cfg *Config, opts Options) (io.Writer, func(), error) {
	if opts.Report != nil {
		return opts.Report, func() {}, nil
	}
	f, err := os.OpenFile(cfg.Report, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("training: open report: %w", err)
	}
	return f, func() { f.Close() }, nil
}
