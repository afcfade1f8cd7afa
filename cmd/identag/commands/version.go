package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/haivivi/identag/cmd/identag/internal/build"
	"github.com/haivivi/identag/cmd/identag/internal/config"
	"github.com/haivivi/identag/pkg/classifier"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(build.String())
		if IsVerbose() {
			fmt.Printf("  go:         %s\n", runtime.Version())
			fmt.Printf("  model:      v%d\n", classifier.ModelVersion)
			fmt.Printf("  algorithms: %v\n", classifier.Algorithms())
			if dir, err := config.Dir(); err == nil {
				fmt.Printf("  config:     %s\n", dir)
			} else {
				fmt.Printf("  config:     (unavailable: %v)\n", err)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
