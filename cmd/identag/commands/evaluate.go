package commands

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/haivivi/identag/pkg/cli"
	"github.com/haivivi/identag/pkg/metrics"
)

var evaluateFile string

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Compute metrics from a confusion matrix",
	Long: `Compute per-label precision, recall, F1, balanced accuracy, weighted
accuracy and MCC, plus macro and support-weighted averages.

Rows are actual labels, columns are predicted labels:

  labels: [N, V, NM]
  counts:
    - [50, 2, 3]
    - [1, 40, 0]
    - [4, 0, 30]

Examples:
  identag evaluate -f matrix.yaml
  identag evaluate -f matrix.yaml --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(evaluateFile)
		if err != nil {
			return err
		}
		var c metrics.Confusion
		dec := yaml.NewDecoder(bytes.NewReader(data), yaml.DisallowUnknownField())
		if err := dec.Decode(&c); err != nil {
			return fmt.Errorf("parse %s: %w", evaluateFile, err)
		}
		report, err := c.Compute()
		if err != nil {
			return err
		}
		return output((*evaluation)(report))
	},
}

func init() {
	evaluateCmd.Flags().StringVarP(&evaluateFile, "file", "f", "", "confusion matrix YAML (required)")
	evaluateCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(evaluateCmd)
}

// evaluation renders a report as tables while keeping its YAML/JSON shape.
type evaluation metrics.Report

func (e *evaluation) Tables() []cli.Table {
	return reportTables((*metrics.Report)(e))
}

// reportTables renders per-label metrics followed by the two averages.
func reportTables(r *metrics.Report) []cli.Table {
	headers := []string{"label", "support", "precision", "recall", "f1", "balanced acc", "weighted acc", "mcc"}
	t := cli.Table{
		Title:   fmt.Sprintf("Metrics (n=%d, accuracy=%s)", r.Total, cli.Float(r.Accuracy)),
		Headers: headers,
	}
	for _, c := range r.Classes {
		t.Rows = append(t.Rows, []string{
			c.Label, strconv.Itoa(c.Support),
			cli.Float(c.Precision), cli.Float(c.Recall), cli.Float(c.F1),
			cli.Float(c.BalancedAccuracy), cli.Float(c.WeightedAccuracy), cli.Float(c.MCC),
		})
	}
	for _, a := range []struct {
		name string
		avg  metrics.Average
	}{{"macro", r.Macro}, {"weighted", r.Weighted}} {
		t.Rows = append(t.Rows, []string{
			a.name, strconv.Itoa(r.Total),
			cli.Float(a.avg.Precision), cli.Float(a.avg.Recall), cli.Float(a.avg.F1),
			cli.Float(a.avg.BalancedAccuracy), cli.Float(a.avg.WeightedAccuracy), cli.Float(a.avg.MCC),
		})
	}
	return []cli.Table{t}
}
