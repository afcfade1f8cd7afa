package metrics

import (
	"errors"
	"math"
	"testing"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-4 }

func TestComputeHandChecked(t *testing.T) {
	c := &Confusion{
		Labels: []string{"N", "V"},
		Counts: [][]int{{3, 1}, {2, 4}},
	}
	r, err := c.Compute()
	if err != nil {
		t.Fatal(err)
	}
	if r.Total != 10 || !near(r.Accuracy, 0.7) {
		t.Fatalf("total %d accuracy %v", r.Total, r.Accuracy)
	}

	tests := []struct {
		got, want float64
		name      string
	}{
		{r.Classes[0].Precision, 0.6, "N precision"},
		{r.Classes[0].Recall, 0.75, "N recall"},
		{r.Classes[0].F1, 0.66667, "N f1"},
		{r.Classes[0].BalancedAccuracy, 0.70833, "N balanced"},
		{r.Classes[0].WeightedAccuracy, 0.7, "N weighted accuracy"},
		{r.Classes[0].MCC, 0.40825, "N mcc"},
		{r.Classes[1].Precision, 0.8, "V precision"},
		{r.Classes[1].Recall, 0.66667, "V recall"},
		{r.Classes[1].F1, 0.72727, "V f1"},
		{r.Macro.Precision, 0.7, "macro precision"},
		{r.Weighted.Precision, 0.72, "weighted precision"},
		{r.Weighted.Recall, 0.7, "weighted recall"},
	}
	for _, tt := range tests {
		if !near(tt.got, tt.want) {
			t.Errorf("%s = %.5f, want %.5f", tt.name, tt.got, tt.want)
		}
	}
	if r.Classes[0].Support != 4 || r.Classes[1].Support != 6 {
		t.Errorf("support = %d, %d", r.Classes[0].Support, r.Classes[1].Support)
	}
}

func TestZeroDenominators(t *testing.T) {
	c := NewConfusion([]string{"N", "CJ"})
	c.Add("N", "N")
	c.Add("N", "N")
	r, err := c.Compute()
	if err != nil {
		t.Fatal(err)
	}
	cj := r.Classes[1]
	if cj.Precision != 0 || cj.Recall != 0 || cj.F1 != 0 || cj.MCC != 0 {
		t.Fatalf("CJ metrics = %+v, want zeros", cj)
	}
	for _, v := range []float64{r.Macro.F1, r.Weighted.F1, r.Accuracy} {
		if math.IsNaN(v) {
			t.Fatal("NaN in averages")
		}
	}

	empty, err := NewConfusion([]string{"N"}).Compute()
	if err != nil {
		t.Fatal(err)
	}
	if empty.Accuracy != 0 || empty.Weighted != (Average{}) {
		t.Fatalf("empty report = %+v", empty)
	}
}

func TestAddGrowsLabels(t *testing.T) {
	c := NewConfusion(nil)
	c.Add("N", "V")
	c.Add("V", "V")
	c.Add("NM", "N")
	if len(c.Labels) != 3 || c.Total() != 3 {
		t.Fatalf("labels %v total %d", c.Labels, c.Total())
	}
	if c.Counts[0][1] != 1 || c.Counts[2][0] != 1 {
		t.Fatalf("counts = %v", c.Counts)
	}
	if err := c.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestValidateShape(t *testing.T) {
	bad := []*Confusion{
		{Labels: []string{"N"}, Counts: [][]int{{1}, {2}}},
		{Labels: []string{"N", "V"}, Counts: [][]int{{1, 2}, {3}}},
		{Labels: []string{"N"}, Counts: [][]int{{-1}}},
	}
	for i, c := range bad {
		if _, err := c.Compute(); !errors.Is(err, ErrShape) {
			t.Errorf("case %d: err = %v, want ErrShape", i, err)
		}
	}
}
