// Package cli provides output helpers shared by the identag commands.
//
// Results are written as YAML, JSON, or a styled table:
//
//	cli.Output(result, cli.OutputOptions{
//	    Format: cli.FormatTable,
//	    File:   outputPath,
//	})
//
// A result renders as a table when it implements [Tabular]; anything else
// falls back to YAML.
package cli
