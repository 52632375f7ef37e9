package models

import "time"

// Agent liveness as computed by the control plane from last_seen_at.
const (
	AgentStatusOnline  = "online"
	AgentStatusOffline = "offline"
)

// Pipeline is the control-plane record for one pipeline: the spec plus the
// catalog fields the control plane owns. Version increases on every actual
// change to name, enabled, or spec.
type Pipeline struct {
	PipelineID string       `json:"pipeline_id"`
	Name       string       `json:"name"`
	Enabled    bool         `json:"enabled"`
	Spec       PipelineSpec `json:"spec"`
	Version    int          `json:"version"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// Agent is the control-plane view of an edge agent. Status is computed at
// read time and never stored.
type Agent struct {
	AgentID     string    `json:"agent_id"`
	Region      string    `json:"region"`
	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	Status      string    `json:"status"`
}

// Assignment binds a pipeline to an (agent, region) pair.
type Assignment struct {
	AssignmentID string    `json:"assignment_id"`
	AgentID      string    `json:"agent_id"`
	Region       string    `json:"region"`
	PipelineID   string    `json:"pipeline_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// AssignedPipeline is one entry of an assignment view: everything the agent
// needs to run (or decline to run) a pipeline.
type AssignedPipeline struct {
	PipelineID string       `json:"pipeline_id"`
	Version    int          `json:"version"`
	Enabled    bool         `json:"enabled"`
	Spec       PipelineSpec `json:"spec"`
}

// AssignmentView is the per-poll response consumed by an agent. Revision is
// an opaque token that changes iff the set of (pipeline_id, version, enabled)
// for this agent and region changes.
type AssignmentView struct {
	Revision  string             `json:"revision"`
	Pipelines []AssignedPipeline `json:"pipelines"`
}
