// Package cli implements the observix command line client: a thin HTTP
// wrapper over the control plane API.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd is the base command for observix.
var rootCmd = &cobra.Command{
	Use:           "observix",
	Short:         "Observix CLI: manage pipelines, assignments, and agents",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(newCPCmd())
}

// Execute runs the root command and returns the process exit code: 0 on
// success, 1 on transport or usage failure, 2 when the control plane
// answered with a non-2xx status.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) {
			fmt.Fprintln(os.Stderr, apiErr.body)
			return 2
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
