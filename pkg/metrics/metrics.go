// Package metrics computes classification metrics from a confusion matrix.
//
// Rows of the matrix are actual labels and columns are predicted labels.
// Every ratio with a zero denominator is reported as 0.
package metrics

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// ErrShape is returned when a confusion matrix is not square or does not
// match its label list.
var ErrShape = errors.New("metrics: malformed confusion matrix")

// Confusion is a square confusion matrix. Counts[i][j] is the number of
// samples with actual label Labels[i] predicted as Labels[j].
type Confusion struct {
	Labels []string `json:"labels" yaml:"labels"`
	Counts [][]int  `json:"counts" yaml:"counts"`
}

// NewConfusion returns an empty matrix over labels.
func NewConfusion(labels []string) *Confusion {
	c := &Confusion{Labels: slices.Clone(labels)}
	c.Counts = make([][]int, len(labels))
	for i := range c.Counts {
		c.Counts[i] = make([]int, len(labels))
	}
	return c
}

// Add records one prediction. Labels not yet in the matrix are appended.
func (c *Confusion) Add(actual, predicted string) {
	i := c.index(actual)
	j := c.index(predicted)
	c.Counts[i][j]++
}

func (c *Confusion) index(label string) int {
	if i := slices.Index(c.Labels, label); i >= 0 {
		return i
	}
	c.Labels = append(c.Labels, label)
	for i := range c.Counts {
		c.Counts[i] = append(c.Counts[i], 0)
	}
	c.Counts = append(c.Counts, make([]int, len(c.Labels)))
	return len(c.Labels) - 1
}

// Total returns the number of recorded samples.
func (c *Confusion) Total() int {
	n := 0
	for _, row := range c.Counts {
		for _, v := range row {
			n += v
		}
	}
	return n
}

// Validate checks that the matrix is square and labelled.
func (c *Confusion) Validate() error {
	if len(c.Counts) != len(c.Labels) {
		return fmt.Errorf("%w: %d labels, %d rows", ErrShape, len(c.Labels), len(c.Counts))
	}
	for i, row := range c.Counts {
		if len(row) != len(c.Labels) {
			return fmt.Errorf("%w: row %d has %d columns", ErrShape, i, len(row))
		}
		for _, v := range row {
			if v < 0 {
				return fmt.Errorf("%w: negative count in row %d", ErrShape, i)
			}
		}
	}
	return nil
}

// Class holds the one-vs-rest metrics of a single label.
type Class struct {
	Label            string  `json:"label" yaml:"label"`
	Support          int     `json:"support" yaml:"support"`
	Precision        float64 `json:"precision" yaml:"precision"`
	Recall           float64 `json:"recall" yaml:"recall"`
	F1               float64 `json:"f1" yaml:"f1"`
	BalancedAccuracy float64 `json:"balanced_accuracy" yaml:"balanced_accuracy"`
	WeightedAccuracy float64 `json:"weighted_accuracy" yaml:"weighted_accuracy"`
	MCC              float64 `json:"mcc" yaml:"mcc"`
}

// Average holds one averaging of the per-class metrics.
type Average struct {
	Precision        float64 `json:"precision" yaml:"precision"`
	Recall           float64 `json:"recall" yaml:"recall"`
	F1               float64 `json:"f1" yaml:"f1"`
	BalancedAccuracy float64 `json:"balanced_accuracy" yaml:"balanced_accuracy"`
	WeightedAccuracy float64 `json:"weighted_accuracy" yaml:"weighted_accuracy"`
	MCC              float64 `json:"mcc" yaml:"mcc"`
}

// Report is the full result of Compute.
type Report struct {
	Total    int     `json:"total" yaml:"total"`
	Accuracy float64 `json:"accuracy" yaml:"accuracy"`
	Classes  []Class `json:"classes" yaml:"classes"`
	Macro    Average `json:"macro" yaml:"macro"`
	Weighted Average `json:"weighted" yaml:"weighted"`
}

// Compute derives every metric from the matrix.
func (c *Confusion) Compute() (*Report, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	n := len(c.Labels)
	total := float64(c.Total())
	r := &Report{Total: c.Total(), Classes: make([]Class, n)}

	var correct float64
	colSum := make([]float64, n)
	rowSum := make([]float64, n)
	for i, row := range c.Counts {
		correct += float64(row[i])
		for j, v := range row {
			rowSum[i] += float64(v)
			colSum[j] += float64(v)
		}
	}
	r.Accuracy = ratio(correct, total)

	for i, label := range c.Labels {
		tp := float64(c.Counts[i][i])
		fp := colSum[i] - tp
		fn := rowSum[i] - tp
		tn := total - tp - fp - fn

		precision := ratio(tp, tp+fp)
		recall := ratio(tp, tp+fn)
		specificity := ratio(tn, tn+fp)
		r.Classes[i] = Class{
			Label:            label,
			Support:          int(rowSum[i]),
			Precision:        precision,
			Recall:           recall,
			F1:               ratio(2*precision*recall, precision+recall),
			BalancedAccuracy: (recall + specificity) / 2,
			WeightedAccuracy: ratio(tp+tn, total),
			MCC:              ratio(tp*tn-fp*fn, math.Sqrt((tp+fp)*(tp+fn)*(tn+fp)*(tn+fn))),
		}
	}

	r.Macro = average(r.Classes, nil)
	r.Weighted = average(r.Classes, rowSum)
	return r, nil
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// average returns the mean of each metric, weighted by weights when non-nil.
func average(classes []Class, weights []float64) Average {
	if len(classes) == 0 {
		return Average{}
	}
	if weights != nil && stat.Mean(weights, nil) == 0 {
		return Average{}
	}
	col := func(f func(Class) float64) float64 {
		xs := make([]float64, len(classes))
		for i, c := range classes {
			xs[i] = f(c)
		}
		return stat.Mean(xs, weights)
	}
	return Average{
		Precision:        col(func(c Class) float64 { return c.Precision }),
		Recall:           col(func(c Class) float64 { return c.Recall }),
		F1:               col(func(c Class) float64 { return c.F1 }),
		BalancedAccuracy: col(func(c Class) float64 { return c.BalancedAccuracy }),
		WeightedAccuracy: col(func(c Class) float64 { return c.WeightedAccuracy }),
		MCC:              col(func(c Class) float64 { return c.MCC }),
	}
}
