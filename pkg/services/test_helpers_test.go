package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/observix/observix/pkg/database"
	"github.com/observix/observix/pkg/models"
)

// newTestDB opens a fresh migrated store in a temp directory.
func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	client, err := database.NewClient(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client.DB()
}

func testSpec() models.PipelineSpec {
	return models.PipelineSpec{
		Source: models.SourceSpec{
			Type:    models.SourceSyslogUDP,
			Options: map[string]any{"port": 15514},
		},
		Processor: models.ProcessorSpec{Mode: models.ProcessorRaw},
		Destination: models.DestinationSpec{
			Type:    models.DestinationSyslogUDP,
			Options: map[string]any{"host": "127.0.0.1", "port": 15515},
		},
	}
}

func mustCreatePipeline(t *testing.T, svc *PipelineService, name string) *models.Pipeline {
	t.Helper()

	p, err := svc.Create(context.Background(), models.CreatePipelineRequest{
		Name: name,
		Spec: testSpec(),
	})
	require.NoError(t, err)
	return p
}

func boolPtr(b bool) *bool    { return &b }
func strPtr(s string) *string { return &s }
