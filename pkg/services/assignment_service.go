package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/observix/observix/pkg/models"
)

// AssignmentService binds pipelines to (agent, region) pairs and serves the
// assignment view agents poll.
type AssignmentService struct {
	db *sqlx.DB
}

// NewAssignmentService creates a new AssignmentService
func NewAssignmentService(db *sqlx.DB) *AssignmentService {
	return &AssignmentService{db: db}
}

// Create binds a pipeline to an (agent, region) pair. The pipeline must
// exist; the agent need not (fleets may be assigned before first poll).
// A duplicate triple returns ErrAlreadyExists.
func (s *AssignmentService) Create(ctx context.Context, req models.CreateAssignmentRequest) (*models.Assignment, error) {
	if req.AgentID == "" {
		return nil, NewValidationError("agent_id", "required")
	}
	if req.Region == "" {
		return nil, NewValidationError("region", "required")
	}
	if req.PipelineID == "" {
		return nil, NewValidationError("pipeline_id", "required")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.GetContext(ctx, &exists,
		`SELECT COUNT(*) FROM pipelines WHERE pipeline_id = ?`, req.PipelineID)
	if err != nil {
		return nil, fmt.Errorf("failed to check pipeline: %w", err)
	}
	if exists == 0 {
		return nil, ErrNotFound
	}

	err = tx.GetContext(ctx, &exists,
		`SELECT COUNT(*) FROM assignments WHERE agent_id = ? AND region = ? AND pipeline_id = ?`,
		req.AgentID, req.Region, req.PipelineID)
	if err != nil {
		return nil, fmt.Errorf("failed to check assignment: %w", err)
	}
	if exists > 0 {
		return nil, ErrAlreadyExists
	}

	a := &models.Assignment{
		AssignmentID: uuid.NewString(),
		AgentID:      req.AgentID,
		Region:       req.Region,
		PipelineID:   req.PipelineID,
		CreatedAt:    time.Now().UTC(),
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO assignments (assignment_id, agent_id, region, pipeline_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		a.AssignmentID, a.AgentID, a.Region, a.PipelineID, a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create assignment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit assignment: %w", err)
	}

	return a, nil
}

// Delete removes one assignment by id.
func (s *AssignmentService) Delete(ctx context.Context, assignmentID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM assignments WHERE assignment_id = ?`, assignmentID)
	if err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type assignedRow struct {
	PipelineID string `db:"pipeline_id"`
	Version    int    `db:"version"`
	Enabled    bool   `db:"enabled"`
	SpecJSON   string `db:"spec_json"`
}

// ViewFor returns the assignment view for one (agent, region): every
// assigned pipeline (disabled ones included, so agents can stop them) plus a
// revision token covering exactly the (pipeline_id, version, enabled) set.
func (s *AssignmentService) ViewFor(ctx context.Context, agentID, region string) (*models.AssignmentView, error) {
	var rows []assignedRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT p.pipeline_id, p.version, p.enabled, p.spec_json
		 FROM assignments a
		 JOIN pipelines p ON p.pipeline_id = a.pipeline_id
		 WHERE a.agent_id = ? AND a.region = ?
		 ORDER BY p.pipeline_id`,
		agentID, region)
	if errors.Is(err, sql.ErrNoRows) {
		rows = nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to load assignments: %w", err)
	}

	view := &models.AssignmentView{
		Pipelines: make([]models.AssignedPipeline, 0, len(rows)),
	}
	for _, row := range rows {
		var spec models.PipelineSpec
		if err := json.Unmarshal([]byte(row.SpecJSON), &spec); err != nil {
			return nil, fmt.Errorf("failed to decode stored spec for %s: %w", row.PipelineID, err)
		}
		view.Pipelines = append(view.Pipelines, models.AssignedPipeline{
			PipelineID: row.PipelineID,
			Version:    row.Version,
			Enabled:    row.Enabled,
			Spec:       spec,
		})
	}
	view.Revision = computeRevision(view.Pipelines)

	return view, nil
}

// computeRevision hashes the sorted (pipeline_id, version, enabled) tuples.
// The token changes iff what this agent should run changes; edits to
// unrelated pipelines or agents leave it alone.
func computeRevision(pipelines []models.AssignedPipeline) string {
	var b strings.Builder
	for _, p := range pipelines {
		fmt.Fprintf(&b, "%s:%d:%t\n", p.PipelineID, p.Version, p.Enabled)
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(b.String()))
}
