package models

// CreatePipelineRequest is the POST /v1/pipelines body. Enabled defaults to
// true when omitted.
type CreatePipelineRequest struct {
	Name    string       `json:"name"`
	Enabled *bool        `json:"enabled"`
	Spec    PipelineSpec `json:"spec"`
}

// UpdatePipelineRequest is the PUT /v1/pipelines/{id} body. Every field is
// optional; only fields that actually change bump the pipeline version.
type UpdatePipelineRequest struct {
	Name    *string       `json:"name,omitempty"`
	Enabled *bool         `json:"enabled,omitempty"`
	Spec    *PipelineSpec `json:"spec,omitempty"`
}

// CreateAssignmentRequest is the POST /v1/assignments body.
type CreateAssignmentRequest struct {
	AgentID    string `json:"agent_id"`
	Region     string `json:"region"`
	PipelineID string `json:"pipeline_id"`
}
