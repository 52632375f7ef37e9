// Package services implements the control plane's catalog operations on top
// of the SQLite store: pipelines, assignments, and agent liveness.
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/observix/observix/pkg/models"
)

// PipelineService manages the pipeline catalog.
type PipelineService struct {
	db *sqlx.DB
}

// NewPipelineService creates a new PipelineService
func NewPipelineService(db *sqlx.DB) *PipelineService {
	return &PipelineService{db: db}
}

type pipelineRow struct {
	PipelineID string    `db:"pipeline_id"`
	Name       string    `db:"name"`
	Enabled    bool      `db:"enabled"`
	SpecJSON   string    `db:"spec_json"`
	Version    int       `db:"version"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (r pipelineRow) toModel() (*models.Pipeline, error) {
	var spec models.PipelineSpec
	if err := json.Unmarshal([]byte(r.SpecJSON), &spec); err != nil {
		return nil, fmt.Errorf("failed to decode stored spec for %s: %w", r.PipelineID, err)
	}
	return &models.Pipeline{
		PipelineID: r.PipelineID,
		Name:       r.Name,
		Enabled:    r.Enabled,
		Spec:       spec,
		Version:    r.Version,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}, nil
}

// Create validates the spec and stores a new pipeline at version 1.
// Enabled defaults to true when the request omits it.
func (s *PipelineService) Create(ctx context.Context, req models.CreatePipelineRequest) (*models.Pipeline, error) {
	if req.Name == "" {
		return nil, NewValidationError("name", "required")
	}

	spec := req.Spec
	spec.Normalize()
	if err := spec.Validate(); err != nil {
		return nil, NewValidationError("spec", err.Error())
	}

	specJSON, err := spec.CanonicalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode spec: %w", err)
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	now := time.Now().UTC()
	p := &models.Pipeline{
		PipelineID: uuid.NewString(),
		Name:       req.Name,
		Enabled:    enabled,
		Spec:       spec,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pipelines (pipeline_id, name, enabled, spec_json, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.PipelineID, p.Name, p.Enabled, string(specJSON), p.Version, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	return p, nil
}

// Get returns one pipeline by id.
func (s *PipelineService) Get(ctx context.Context, pipelineID string) (*models.Pipeline, error) {
	var row pipelineRow
	err := s.db.GetContext(ctx, &row,
		`SELECT pipeline_id, name, enabled, spec_json, version, created_at, updated_at
		 FROM pipelines WHERE pipeline_id = ?`, pipelineID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pipeline: %w", err)
	}
	return row.toModel()
}

// List returns all pipelines, oldest first.
func (s *PipelineService) List(ctx context.Context) ([]*models.Pipeline, error) {
	var rows []pipelineRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT pipeline_id, name, enabled, spec_json, version, created_at, updated_at
		 FROM pipelines ORDER BY created_at, pipeline_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pipelines: %w", err)
	}

	pipelines := make([]*models.Pipeline, 0, len(rows))
	for _, row := range rows {
		p, err := row.toModel()
		if err != nil {
			return nil, err
		}
		pipelines = append(pipelines, p)
	}
	return pipelines, nil
}

// Update applies a partial update. The version is bumped by exactly one when
// any of name, enabled, or spec actually changes; a no-op update returns the
// pipeline untouched.
func (s *PipelineService) Update(ctx context.Context, pipelineID string, req models.UpdatePipelineRequest) (*models.Pipeline, error) {
	var newSpecJSON string
	if req.Spec != nil {
		spec := *req.Spec
		spec.Normalize()
		if err := spec.Validate(); err != nil {
			return nil, NewValidationError("spec", err.Error())
		}
		b, err := spec.CanonicalJSON()
		if err != nil {
			return nil, fmt.Errorf("failed to encode spec: %w", err)
		}
		*req.Spec = spec
		newSpecJSON = string(b)
	}
	if req.Name != nil && *req.Name == "" {
		return nil, NewValidationError("name", "required")
	}

	// The read-check-write must hold the store's single connection so a
	// concurrent update cannot slip between the read and the version bump.
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var row pipelineRow
	err = tx.GetContext(ctx, &row,
		`SELECT pipeline_id, name, enabled, spec_json, version, created_at, updated_at
		 FROM pipelines WHERE pipeline_id = ?`, pipelineID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pipeline: %w", err)
	}

	changed := false
	if req.Name != nil && *req.Name != row.Name {
		row.Name = *req.Name
		changed = true
	}
	if req.Enabled != nil && *req.Enabled != row.Enabled {
		row.Enabled = *req.Enabled
		changed = true
	}
	if req.Spec != nil && newSpecJSON != row.SpecJSON {
		row.SpecJSON = newSpecJSON
		changed = true
	}

	if !changed {
		return row.toModel()
	}

	row.Version++
	row.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx,
		`UPDATE pipelines SET name = ?, enabled = ?, spec_json = ?, version = ?, updated_at = ?
		 WHERE pipeline_id = ?`,
		row.Name, row.Enabled, row.SpecJSON, row.Version, row.UpdatedAt, row.PipelineID)
	if err != nil {
		return nil, fmt.Errorf("failed to update pipeline: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit update: %w", err)
	}

	return row.toModel()
}

// Delete removes a pipeline; its assignments go with it via the FK cascade.
func (s *PipelineService) Delete(ctx context.Context, pipelineID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM pipelines WHERE pipeline_id = ?`, pipelineID)
	if err != nil {
		return fmt.Errorf("failed to delete pipeline: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete pipeline: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
