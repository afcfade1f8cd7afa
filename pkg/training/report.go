package training

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/haivivi/identag/pkg/categorical"
	"github.com/haivivi/identag/pkg/metrics"
)

// reportWriter appends one run to the training report. The first write
// error sticks and is returned by err.
type reportWriter struct {
	w     io.Writer
	runID string
	err   error
}

func (r *reportWriter) printf(format string, args ...any) {
	if r.err != nil {
		return
	}
	_, r.err = fmt.Fprintf(r.w, format, args...)
}

func (r *reportWriter) header(cfg *Config, at time.Time) {
	r.printf("=== run %s %s ===\n", r.runID, at.Format(time.RFC3339))
	r.printf("input: %s\n", cfg.Input)
	r.printf("query: %s\n", strings.TrimSpace(cfg.Query))
	r.printf("algorithm: %s\n", cfg.Algorithm)
	if len(cfg.Params) > 0 {
		keys := slices.Sorted(maps.Keys(cfg.Params))
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s=%v", k, cfg.Params[k])
		}
		r.printf("params: %s\n", strings.Join(parts, " "))
	}
	r.printf("seeds: numpy=%d random=%d training=%d classifier=%d\n",
		*cfg.Seeds.Numpy, *cfg.Seeds.Random, *cfg.Seeds.Training, *cfg.Seeds.Classifier)
	r.printf("features: %s\n", strings.Join(cfg.IndependentVariables, ", "))
}

func (r *reportWriter) encoding(enc *categorical.Encoding) {
	r.printf("categorical encoding (fallback=%d):\n", categorical.Fallback)
	for _, col := range enc.Columns() {
		r.printf("  %s: %s\n", col, enc.Format(col))
	}
}

func (r *reportWriter) labels(counts map[string]int, total int) {
	r.printf("label distribution (%d rows):\n", total)
	for _, l := range slices.Sorted(maps.Keys(counts)) {
		r.printf("  %-6s %6d  %5.1f%%\n", l, counts[l], 100*float64(counts[l])/float64(total))
	}
}

func (r *reportWriter) split(train, validation int) {
	r.printf("split: train=%d validation=%d\n", train, validation)
}

func (r *reportWriter) metrics(m *metrics.Report) {
	if m == nil {
		r.printf("validation: skipped\n")
		return
	}
	r.printf("validation accuracy: %.4f\n", m.Accuracy)
	r.printf("  %-6s %9s %9s %9s %9s %7s\n", "label", "precision", "recall", "f1", "mcc", "support")
	for _, c := range m.Classes {
		r.printf("  %-6s %9.4f %9.4f %9.4f %9.4f %7d\n", c.Label, c.Precision, c.Recall, c.F1, c.MCC, c.Support)
	}
	r.printf("  macro    precision=%.4f recall=%.4f f1=%.4f\n", m.Macro.Precision, m.Macro.Recall, m.Macro.F1)
	r.printf("  weighted precision=%.4f recall=%.4f f1=%.4f\n", m.Weighted.Precision, m.Weighted.Recall, m.Weighted.F1)
}

func (r *reportWriter) importance(imp []Importance) {
	if len(imp) == 0 {
		return
	}
	sorted := slices.Clone(imp)
	slices.SortStableFunc(sorted, func(a, b Importance) int {
		switch {
		case a.Decrease > b.Decrease:
			return -1
		case a.Decrease < b.Decrease:
			return 1
		}
		return 0
	})
	r.printf("feature importance (accuracy decrease):\n")
	for _, i := range sorted {
		r.printf("  %-20s %8.4f\n", i.Feature, i.Decrease)
	}
}

func (r *reportWriter) done(modelPath string) {
	r.printf("model: %s\n", modelPath)
	r.printf("result: ok\n\n")
}

func (r *reportWriter) failed(err error) {
	r.printf("result: failed: %v\n\n", err)
}
