package api

import (
	"github.com/observix/observix/pkg/database"
	"github.com/observix/observix/pkg/models"
)

// CreatePipelineResponse is returned by POST /v1/pipelines.
type CreatePipelineResponse struct {
	PipelineID string `json:"pipeline_id"`
	Version    int    `json:"version"`
}

// UpdatePipelineResponse is returned by PUT /v1/pipelines/:id.
type UpdatePipelineResponse struct {
	Version int `json:"version"`
}

// ListPipelinesResponse is returned by GET /v1/pipelines.
type ListPipelinesResponse struct {
	Pipelines []*models.Pipeline `json:"pipelines"`
}

// CreateAssignmentResponse is returned by POST /v1/assignments.
type CreateAssignmentResponse struct {
	AssignmentID string `json:"assignment_id"`
}

// ListAgentsResponse is returned by GET /v1/agents.
type ListAgentsResponse struct {
	Agents []*models.Agent `json:"agents"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status   string                 `json:"status"`
	Version  string                 `json:"version"`
	Database *database.HealthStatus `json:"database"`
}
