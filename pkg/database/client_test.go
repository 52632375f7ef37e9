package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	ctx := context.Background()
	client, err := NewClient(ctx, filepath.Join(t.TempDir(), "observix.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestNewClientAppliesMigrations(t *testing.T) {
	client := newTestClient(t)

	var tables []string
	err := client.DB().Select(&tables,
		`SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`)
	require.NoError(t, err)

	assert.Contains(t, tables, "pipelines")
	assert.Contains(t, tables, "assignments")
	assert.Contains(t, tables, "agents")
}

func TestNewClientIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "observix.db")

	first, err := NewClient(ctx, path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// Reopening applies no pending migrations and must not fail.
	second, err := NewClient(ctx, path)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestNewClientEnforcesForeignKeys(t *testing.T) {
	client := newTestClient(t)

	var enabled int
	err := client.DB().Get(&enabled, "PRAGMA foreign_keys")
	require.NoError(t, err)
	assert.Equal(t, 1, enabled)
}

func TestHealth(t *testing.T) {
	client := newTestClient(t)

	status, err := Health(context.Background(), client.DB())
	require.NoError(t, err)

	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, 1, status.MaxOpenConns)
	assert.GreaterOrEqual(t, status.ResponseTime, int64(0))
}

func TestNormalizeDSN(t *testing.T) {
	assert.Equal(t,
		"file:observix.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
		normalizeDSN("observix.db"))
	assert.Equal(t,
		"file:/var/lib/observix.db?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
		normalizeDSN("file:/var/lib/observix.db?mode=rwc"))
}
