package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/observix/observix/pkg/models"
)

func newPipelinesCmd(baseURL func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipelines",
		Short: "Pipeline operations",
	}
	cmd.AddCommand(
		newPipelinesListCmd(baseURL),
		newPipelinesGetCmd(baseURL),
		newPipelinesCreateCmd(baseURL),
		newPipelinesUpdateCmd(baseURL),
		newPipelinesDeleteCmd(baseURL),
	)
	return cmd
}

func newPipelinesListCmd(baseURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pipelines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(baseURL(), http.MethodGet, "/v1/pipelines", nil)
		},
	}
}

func newPipelinesGetCmd(baseURL func() string) *cobra.Command {
	var pipelineID string

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show one pipeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(baseURL(), http.MethodGet, "/v1/pipelines/"+url.PathEscape(pipelineID), nil)
		},
	}
	cmd.Flags().StringVar(&pipelineID, "pipeline-id", "", "Pipeline identifier")
	_ = cmd.MarkFlagRequired("pipeline-id")
	return cmd
}

// readSpecFile loads a pipeline spec from a JSON file.
func readSpecFile(path string) (*models.PipelineSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read spec file: %w", err)
	}
	var spec models.PipelineSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("invalid JSON in %s: %w", path, err)
	}
	return &spec, nil
}

func newPipelinesCreateCmd(baseURL func() string) *cobra.Command {
	var (
		name     string
		specFile string
		enabled  bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a pipeline from a JSON spec file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := readSpecFile(specFile)
			if err != nil {
				return err
			}
			body := models.CreatePipelineRequest{Name: name, Enabled: &enabled, Spec: *spec}
			return request(baseURL(), http.MethodPost, "/v1/pipelines", body)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Pipeline name")
	cmd.Flags().StringVarP(&specFile, "spec-file", "f", "", "JSON file containing the pipeline spec")
	cmd.Flags().BoolVar(&enabled, "enabled", true, "Whether the pipeline is enabled")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("spec-file")
	return cmd
}

func newPipelinesUpdateCmd(baseURL func() string) *cobra.Command {
	var (
		pipelineID string
		name       string
		specFile   string
		enabled    bool
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update a pipeline",
		Long: `Update a pipeline's name, spec, or enabled state. Only flags that are
actually set are sent; an omitted --enabled leaves the current state
unchanged.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var body models.UpdatePipelineRequest
			if cmd.Flags().Changed("name") {
				body.Name = &name
			}
			if cmd.Flags().Changed("enabled") {
				body.Enabled = &enabled
			}
			if cmd.Flags().Changed("spec-file") {
				spec, err := readSpecFile(specFile)
				if err != nil {
					return err
				}
				body.Spec = spec
			}
			return request(baseURL(), http.MethodPut, "/v1/pipelines/"+url.PathEscape(pipelineID), body)
		},
	}
	cmd.Flags().StringVar(&pipelineID, "pipeline-id", "", "Pipeline identifier")
	cmd.Flags().StringVar(&name, "name", "", "New pipeline name")
	cmd.Flags().StringVarP(&specFile, "spec-file", "f", "", "JSON file containing the new spec")
	cmd.Flags().BoolVar(&enabled, "enabled", true, "Enable or disable the pipeline")
	_ = cmd.MarkFlagRequired("pipeline-id")
	return cmd
}

func newPipelinesDeleteCmd(baseURL func() string) *cobra.Command {
	var pipelineID string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a pipeline and its assignments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(baseURL(), http.MethodDelete, "/v1/pipelines/"+url.PathEscape(pipelineID), nil)
		},
	}
	cmd.Flags().StringVar(&pipelineID, "pipeline-id", "", "Pipeline identifier")
	_ = cmd.MarkFlagRequired("pipeline-id")
	return cmd
}
