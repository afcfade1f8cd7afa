package commands

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/haivivi/identag/cmd/identag/internal/config"
	"github.com/haivivi/identag/pkg/cli"
	"github.com/haivivi/identag/pkg/metrics"
	"github.com/haivivi/identag/pkg/training"
)

var (
	trainFile     string
	trainRegion   string
	trainEndpoint string
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Fit a model from a labeled SQLite corpus",
	Long: `Fit a classifier from the rows returned by the configured query.

The run is appended to the training report and the model is written to
model_output, a local path or s3://bucket/key.

Example config:

  input: corpus.db
  query: SELECT * FROM training_set
  identifier_column: IDENTIFIER
  dependent_variable: CORRECT_TAG
  independent_variables: [WORD_POSITION, MAXPOSITION, NORMALIZED_POSITION, CONTEXT]
  algorithm: random_forest
  params:
    n_estimators: 100
  validation_fraction: 0.2
  seeds: {numpy: 1, random: 2, training: 3, classifier: 4}
  model_output: model.msgpack
  report: training_report.txt

Examples:
  identag train -f training.yaml
  identag train -f training.yaml --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := training.LoadConfig(trainFile)
		if err != nil {
			return err
		}
		res, err := training.Train(cmd.Context(), cfg, training.Options{
			S3:     s3Client(config.S3{Region: trainRegion, Endpoint: trainEndpoint}),
			Logger: slog.Default(),
		})
		if err != nil {
			return err
		}
		return output(newTrainSummary(res))
	},
}

func init() {
	trainCmd.Flags().StringVarP(&trainFile, "file", "f", "", "training config YAML (required)")
	trainCmd.Flags().StringVar(&trainRegion, "s3-region", "", "region for s3:// model outputs")
	trainCmd.Flags().StringVar(&trainEndpoint, "s3-endpoint", "", "custom S3 endpoint (path-style)")
	trainCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(trainCmd)
}

type trainSummary struct {
	RunID          string                `json:"run_id" yaml:"run_id"`
	Model          string                `json:"model" yaml:"model"`
	Rows           int                   `json:"rows" yaml:"rows"`
	TrainRows      int                   `json:"train_rows" yaml:"train_rows"`
	ValidationRows int                   `json:"validation_rows" yaml:"validation_rows"`
	Labels         map[string]int        `json:"labels" yaml:"labels"`
	Validation     *metrics.Report       `json:"validation,omitempty" yaml:"validation,omitempty"`
	Importance     []training.Importance `json:"importance,omitempty" yaml:"importance,omitempty"`
}

func newTrainSummary(res *training.Result) trainSummary {
	return trainSummary{
		RunID:          res.RunID,
		Model:          res.ModelPath,
		Rows:           res.Rows,
		TrainRows:      res.TrainRows,
		ValidationRows: res.ValidationRows,
		Labels:         res.LabelCounts,
		Validation:     res.Validation,
		Importance:     res.Importance,
	}
}

func (s trainSummary) Tables() []cli.Table {
	run := cli.Table{
		Title:   "Run " + s.RunID,
		Headers: []string{"key", "value"},
		Rows: [][]string{
			{"model", s.Model},
			{"rows", strconv.Itoa(s.Rows)},
			{"train", strconv.Itoa(s.TrainRows)},
			{"validation", strconv.Itoa(s.ValidationRows)},
		},
	}
	labels := cli.Table{Title: "Labels", Headers: []string{"label", "count", "share"}}
	for _, l := range slices.Sorted(maps.Keys(s.Labels)) {
		n := s.Labels[l]
		labels.Rows = append(labels.Rows, []string{l, strconv.Itoa(n), fmt.Sprintf("%.1f%%", 100*float64(n)/float64(max(s.Rows, 1)))})
	}
	tables := []cli.Table{run, labels}
	if s.Validation != nil {
		tables = append(tables, reportTables(s.Validation)...)
	}
	if len(s.Importance) > 0 {
		imp := cli.Table{Title: "Feature importance", Headers: []string{"feature", "decrease"}}
		for _, i := range s.Importance {
			imp.Rows = append(imp.Rows, []string{i.Feature, cli.Float(i.Decrease)})
		}
		tables = append(tables, imp)
	}
	return tables
}
