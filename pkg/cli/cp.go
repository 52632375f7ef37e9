package cli

import (
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

// newCPCmd builds the "observix cp" command group. The control plane URL
// comes from --url, OBSERVIX_CP_URL, or the local default, in that order.
func newCPCmd() *cobra.Command {
	var flagURL string

	cmd := &cobra.Command{
		Use:   "cp",
		Short: "Control plane operations",
	}
	cmd.PersistentFlags().StringVar(&flagURL, "url", "",
		"Control plane base URL (env: OBSERVIX_CP_URL, default "+defaultCPURL+")")

	baseURL := func() string {
		if flagURL != "" {
			return flagURL
		}
		if env := os.Getenv("OBSERVIX_CP_URL"); env != "" {
			return env
		}
		return defaultCPURL
	}

	cmd.AddCommand(
		newHealthCmd(baseURL),
		newAgentsCmd(baseURL),
		newPipelinesCmd(baseURL),
		newAssignmentsCmd(baseURL),
	)
	return cmd
}

func newHealthCmd(baseURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check control plane health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(baseURL(), http.MethodGet, "/healthz", nil)
		},
	}
}

func newAgentsCmd(baseURL func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Agent operations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List agents with computed online/offline status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(baseURL(), http.MethodGet, "/v1/agents", nil)
		},
	})
	return cmd
}
