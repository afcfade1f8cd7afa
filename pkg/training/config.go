package training

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/goccy/go-yaml"

	"github.com/haivivi/identag/pkg/classifier"
	"github.com/haivivi/identag/pkg/classifier/forest"
	"github.com/haivivi/identag/pkg/features"
)

// Defaults applied by Config.Validate.
const (
	DefaultAlgorithm          = forest.Name
	DefaultValidationFraction = 0.2
	DefaultModelOutput        = "model.msgpack"
	DefaultReport             = "training_report.txt"
)

// Seeds are the four RNG seeds of a training run.
//
//   - Numpy drives permutation feature importance.
//   - Random drives the full shuffle of the input rows.
//   - Training drives the train/validation partition.
//   - Classifier drives the algorithm's own randomness.
type Seeds struct {
	Numpy      *uint64 `yaml:"numpy"`
	Random     *uint64 `yaml:"random"`
	Training   *uint64 `yaml:"training"`
	Classifier *uint64 `yaml:"classifier"`
}

// Map returns the seeds keyed by role, as recorded in the model.
func (s *Seeds) Map() map[string]uint64 {
	return map[string]uint64{
		"numpy":      *s.Numpy,
		"random":     *s.Random,
		"training":   *s.Training,
		"classifier": *s.Classifier,
	}
}

// Config describes one training run.
type Config struct {
	Input                string         `yaml:"input"`
	Query                string         `yaml:"query"`
	IdentifierColumn     string         `yaml:"identifier_column"`
	DependentVariable    string         `yaml:"dependent_variable"`
	IndependentVariables []string       `yaml:"independent_variables"`
	CategoricalVariables []string       `yaml:"categorical_variables,omitempty"`
	Algorithm            string         `yaml:"algorithm,omitempty"`
	Params               map[string]any `yaml:"params,omitempty"`
	ValidationFraction   *float64       `yaml:"validation_fraction,omitempty"`
	Seeds                *Seeds         `yaml:"seeds"`
	ModelOutput          string         `yaml:"model_output,omitempty"`
	Report               string         `yaml:"report,omitempty"`
}

// LoadConfig reads a YAML config file. Unknown keys are rejected. The
// returned config is not yet validated.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("training: read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML config.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data), yaml.DisallowUnknownField())
	if err := dec.Decode(&cfg); err != nil {
		return nil, &ConfigError{Key: "(file)", Reason: "invalid YAML", Err: err}
	}
	return &cfg, nil
}

// Validate checks every required key and fills defaults. It performs no I/O.
func (c *Config) Validate() error {
	required := []struct {
		key, val string
	}{
		{"input", c.Input},
		{"query", c.Query},
		{"identifier_column", c.IdentifierColumn},
		{"dependent_variable", c.DependentVariable},
	}
	for _, r := range required {
		if r.val == "" {
			return configErr(r.key, "required")
		}
	}
	if len(c.IndependentVariables) == 0 {
		return configErr("independent_variables", "at least one column required")
	}
	seen := make(map[string]bool, len(c.IndependentVariables))
	for _, v := range c.IndependentVariables {
		switch {
		case v == "":
			return configErr("independent_variables", "empty column name")
		case seen[v]:
			return configErr("independent_variables", "duplicate column %s", v)
		case v == c.DependentVariable || v == c.IdentifierColumn:
			return configErr("independent_variables", "%s is not a feature column", v)
		}
		seen[v] = true
	}

	if c.Seeds == nil {
		return configErr("seeds", "required")
	}
	for _, s := range []struct {
		key string
		v   *uint64
	}{
		{"seeds.numpy", c.Seeds.Numpy},
		{"seeds.random", c.Seeds.Random},
		{"seeds.training", c.Seeds.Training},
		{"seeds.classifier", c.Seeds.Classifier},
	} {
		if s.v == nil {
			return configErr(s.key, "required")
		}
	}

	if c.CategoricalVariables == nil {
		for _, name := range features.DefaultCategorical() {
			if seen[name] {
				c.CategoricalVariables = append(c.CategoricalVariables, name)
			}
		}
	}
	for _, v := range c.CategoricalVariables {
		if !seen[v] {
			return configErr("categorical_variables", "%s is not an independent variable", v)
		}
	}

	if c.Algorithm == "" {
		c.Algorithm = DefaultAlgorithm
	}
	if _, err := c.NewAlgorithm(); err != nil {
		if errors.Is(err, classifier.ErrUnknownAlgorithm) {
			return &ConfigError{Key: "algorithm", Reason: "unknown", Err: err}
		}
		return &ConfigError{Key: "params", Reason: "invalid", Err: err}
	}

	if c.ValidationFraction == nil {
		f := DefaultValidationFraction
		c.ValidationFraction = &f
	}
	if f := *c.ValidationFraction; f < 0 || f >= 1 {
		return configErr("validation_fraction", "must be in [0, 1), got %v", f)
	}

	if c.ModelOutput == "" {
		c.ModelOutput = DefaultModelOutput
	}
	if c.Report == "" {
		c.Report = DefaultReport
	}
	return nil
}

// NewAlgorithm builds the configured algorithm.
func (c *Config) NewAlgorithm() (classifier.Algorithm, error) {
	return classifier.New(c.Algorithm, c.Params)
}

// IsCategorical reports whether column is encoded categorically.
func (c *Config) IsCategorical(column string) bool {
	return slices.Contains(c.CategoricalVariables, column)
}
