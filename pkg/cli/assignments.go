package cli

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/observix/observix/pkg/models"
)

func newAssignmentsCmd(baseURL func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assignments",
		Short: "Assignment operations",
	}
	cmd.AddCommand(
		newAssignmentsGetCmd(baseURL),
		newAssignmentsCreateCmd(baseURL),
		newAssignmentsDeleteCmd(baseURL),
	)
	return cmd
}

// newAssignmentsGetCmd shows what an agent is currently expected to run —
// the same view the agent itself polls.
func newAssignmentsGetCmd(baseURL func() string) *cobra.Command {
	var (
		agentID string
		region  string
	)

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show the assignment view for an agent and region",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/v1/agents/%s/assignments?region=%s",
				url.PathEscape(agentID), url.QueryEscape(region))
			return request(baseURL(), http.MethodGet, path, nil)
		},
	}
	cmd.Flags().StringVar(&agentID, "agent-id", "", "Agent identifier")
	cmd.Flags().StringVar(&region, "region", "", "Region scoping the assignments")
	_ = cmd.MarkFlagRequired("agent-id")
	_ = cmd.MarkFlagRequired("region")
	return cmd
}

func newAssignmentsCreateCmd(baseURL func() string) *cobra.Command {
	var (
		agentID    string
		region     string
		pipelineID string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Assign a pipeline to an agent in a region",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			body := models.CreateAssignmentRequest{
				AgentID:    agentID,
				Region:     region,
				PipelineID: pipelineID,
			}
			return request(baseURL(), http.MethodPost, "/v1/assignments", body)
		},
	}
	cmd.Flags().StringVar(&agentID, "agent-id", "", "Agent identifier")
	cmd.Flags().StringVar(&region, "region", "", "Region scoping the assignment")
	cmd.Flags().StringVar(&pipelineID, "pipeline-id", "", "Pipeline identifier")
	_ = cmd.MarkFlagRequired("agent-id")
	_ = cmd.MarkFlagRequired("region")
	_ = cmd.MarkFlagRequired("pipeline-id")
	return cmd
}

func newAssignmentsDeleteCmd(baseURL func() string) *cobra.Command {
	var assignmentID string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete an assignment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(baseURL(), http.MethodDelete, "/v1/assignments/"+url.PathEscape(assignmentID), nil)
		},
	}
	cmd.Flags().StringVar(&assignmentID, "assignment-id", "", "Assignment identifier")
	_ = cmd.MarkFlagRequired("assignment-id")
	return cmd
}
