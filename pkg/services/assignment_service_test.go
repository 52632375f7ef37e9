package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/observix/observix/pkg/models"
)

func TestAssignmentService_Create(t *testing.T) {
	db := newTestDB(t)
	pipelines := NewPipelineService(db)
	assignments := NewAssignmentService(db)
	ctx := context.Background()

	p := mustCreatePipeline(t, pipelines, "edge-syslog")

	a, err := assignments.Create(ctx, models.CreateAssignmentRequest{
		AgentID: "edge-1", Region: "eu-1", PipelineID: p.PipelineID,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, a.AssignmentID)

	// Same triple again is a conflict.
	_, err = assignments.Create(ctx, models.CreateAssignmentRequest{
		AgentID: "edge-1", Region: "eu-1", PipelineID: p.PipelineID,
	})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	// Same pipeline for another agent or region is fine.
	_, err = assignments.Create(ctx, models.CreateAssignmentRequest{
		AgentID: "edge-2", Region: "eu-1", PipelineID: p.PipelineID,
	})
	assert.NoError(t, err)
	_, err = assignments.Create(ctx, models.CreateAssignmentRequest{
		AgentID: "edge-1", Region: "us-1", PipelineID: p.PipelineID,
	})
	assert.NoError(t, err)
}

func TestAssignmentService_CreateUnknownPipeline(t *testing.T) {
	assignments := NewAssignmentService(newTestDB(t))

	_, err := assignments.Create(context.Background(), models.CreateAssignmentRequest{
		AgentID: "edge-1", Region: "eu-1", PipelineID: "missing",
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAssignmentService_CreateValidation(t *testing.T) {
	assignments := NewAssignmentService(newTestDB(t))
	ctx := context.Background()

	_, err := assignments.Create(ctx, models.CreateAssignmentRequest{Region: "eu-1", PipelineID: "p"})
	assert.True(t, IsValidationError(err))
	_, err = assignments.Create(ctx, models.CreateAssignmentRequest{AgentID: "a", PipelineID: "p"})
	assert.True(t, IsValidationError(err))
	_, err = assignments.Create(ctx, models.CreateAssignmentRequest{AgentID: "a", Region: "eu-1"})
	assert.True(t, IsValidationError(err))
}

func TestAssignmentService_Delete(t *testing.T) {
	db := newTestDB(t)
	pipelines := NewPipelineService(db)
	assignments := NewAssignmentService(db)
	ctx := context.Background()

	p := mustCreatePipeline(t, pipelines, "edge-syslog")
	a, err := assignments.Create(ctx, models.CreateAssignmentRequest{
		AgentID: "edge-1", Region: "eu-1", PipelineID: p.PipelineID,
	})
	require.NoError(t, err)

	require.NoError(t, assignments.Delete(ctx, a.AssignmentID))
	assert.ErrorIs(t, assignments.Delete(ctx, a.AssignmentID), ErrNotFound)
}

func TestAssignmentService_ViewFor(t *testing.T) {
	db := newTestDB(t)
	pipelines := NewPipelineService(db)
	assignments := NewAssignmentService(db)
	ctx := context.Background()

	p1 := mustCreatePipeline(t, pipelines, "one")
	p2 := mustCreatePipeline(t, pipelines, "two")
	for _, id := range []string{p1.PipelineID, p2.PipelineID} {
		_, err := assignments.Create(ctx, models.CreateAssignmentRequest{
			AgentID: "edge-1", Region: "eu-1", PipelineID: id,
		})
		require.NoError(t, err)
	}

	view, err := assignments.ViewFor(ctx, "edge-1", "eu-1")
	require.NoError(t, err)
	require.Len(t, view.Pipelines, 2)
	assert.NotEmpty(t, view.Revision)

	// Disabled pipelines stay in the view, flagged disabled.
	_, err = pipelines.Update(ctx, p1.PipelineID, models.UpdatePipelineRequest{Enabled: boolPtr(false)})
	require.NoError(t, err)

	view2, err := assignments.ViewFor(ctx, "edge-1", "eu-1")
	require.NoError(t, err)
	require.Len(t, view2.Pipelines, 2)
	for _, ap := range view2.Pipelines {
		if ap.PipelineID == p1.PipelineID {
			assert.False(t, ap.Enabled)
		}
	}
	assert.NotEqual(t, view.Revision, view2.Revision, "enabled flip changes the revision")
}

func TestAssignmentService_RevisionStability(t *testing.T) {
	db := newTestDB(t)
	pipelines := NewPipelineService(db)
	assignments := NewAssignmentService(db)
	ctx := context.Background()

	assigned := mustCreatePipeline(t, pipelines, "assigned")
	unrelated := mustCreatePipeline(t, pipelines, "unrelated")
	_, err := assignments.Create(ctx, models.CreateAssignmentRequest{
		AgentID: "edge-1", Region: "eu-1", PipelineID: assigned.PipelineID,
	})
	require.NoError(t, err)

	before, err := assignments.ViewFor(ctx, "edge-1", "eu-1")
	require.NoError(t, err)

	// Repeated reads yield the identical token.
	again, err := assignments.ViewFor(ctx, "edge-1", "eu-1")
	require.NoError(t, err)
	assert.Equal(t, before.Revision, again.Revision)

	// Changing a pipeline this agent does not run leaves the token alone.
	_, err = pipelines.Update(ctx, unrelated.PipelineID, models.UpdatePipelineRequest{Name: strPtr("renamed")})
	require.NoError(t, err)
	after, err := assignments.ViewFor(ctx, "edge-1", "eu-1")
	require.NoError(t, err)
	assert.Equal(t, before.Revision, after.Revision)

	// Changing the assigned pipeline's version does not.
	spec := testSpec()
	spec.BatchMaxEvents = 10
	_, err = pipelines.Update(ctx, assigned.PipelineID, models.UpdatePipelineRequest{Spec: &spec})
	require.NoError(t, err)
	bumped, err := assignments.ViewFor(ctx, "edge-1", "eu-1")
	require.NoError(t, err)
	assert.NotEqual(t, before.Revision, bumped.Revision)
}

func TestAssignmentService_ViewForEmpty(t *testing.T) {
	assignments := NewAssignmentService(newTestDB(t))

	view, err := assignments.ViewFor(context.Background(), "nobody", "nowhere")
	require.NoError(t, err)
	assert.NotNil(t, view.Pipelines)
	assert.Empty(t, view.Pipelines)
	assert.NotEmpty(t, view.Revision)
}

func TestPipelineDeleteCascadesAssignments(t *testing.T) {
	db := newTestDB(t)
	pipelines := NewPipelineService(db)
	assignments := NewAssignmentService(db)
	ctx := context.Background()

	p := mustCreatePipeline(t, pipelines, "doomed")
	a, err := assignments.Create(ctx, models.CreateAssignmentRequest{
		AgentID: "edge-1", Region: "eu-1", PipelineID: p.PipelineID,
	})
	require.NoError(t, err)

	require.NoError(t, pipelines.Delete(ctx, p.PipelineID))

	view, err := assignments.ViewFor(ctx, "edge-1", "eu-1")
	require.NoError(t, err)
	assert.Empty(t, view.Pipelines)

	// The assignment row itself is gone.
	assert.ErrorIs(t, assignments.Delete(ctx, a.AssignmentID), ErrNotFound)
}
