package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/identag/pkg/cli"
)

var (
	// Global flags
	verbose      bool
	formatOutput string
	outputFile   string

	// logLevel is shared by every handler installed through setupLogging.
	logLevel slog.LevelVar
)

var rootCmd = &cobra.Command{
	Use:   "identag",
	Short: "Part-of-speech tagging for source-code identifiers",
	Long: `identag - tags every word of a source-code identifier with a
part-of-speech label.

Commands:
  train     Fit a model from a labeled SQLite corpus
  serve     Serve the tagger over HTTP
  tag       Tag one identifier with a local model
  probe     Check whether a cache namespace exists
  evaluate  Compute metrics from a confusion matrix

Serving configuration is read from the OS config directory unless -f is
given:
  macOS:   ~/Library/Application Support/identag/serve.yaml
  Linux:   ~/.config/identag/serve.yaml
  Windows: %AppData%/identag/serve.yaml
IDENTAG_CONFIG_DIR overrides the directory. The model named in serve.yaml
is a path relative to that file or an s3://bucket/key location.

Examples:
  identag train -f training.yaml
  identag serve --addr :5000
  identag tag getFileName FUNCTION`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&formatOutput, "format", "table", "output format (table, yaml, json)")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "output file (default: stdout)")
}

// setupLogging installs a text handler on stderr. Verbose mode logs debug
// records.
func setupLogging() {
	if verbose {
		logLevel.Set(slog.LevelDebug)
	} else {
		logLevel.Set(slog.LevelInfo)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &logLevel})))
}

// IsVerbose returns whether verbose mode is enabled.
func IsVerbose() bool {
	return verbose
}

func output(result any) error {
	format, err := cli.ParseFormat(formatOutput)
	if err != nil {
		return err
	}
	return cli.Output(result, cli.OutputOptions{Format: format, File: outputFile})
}
