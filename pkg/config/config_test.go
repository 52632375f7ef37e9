package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadAgent(t *testing.T) {
	t.Setenv("CP_URL", "http://cp.internal:7000")

	path := writeConfig(t, "agent.yaml", `
agent_id: edge-1
region: eu-1
control_plane:
  url: "{{.CP_URL}}/"
`)

	cfg, err := LoadAgent(path)
	require.NoError(t, err)

	assert.Equal(t, "edge-1", cfg.AgentID)
	assert.Equal(t, "eu-1", cfg.Region)
	assert.Equal(t, "http://cp.internal:7000", cfg.ControlPlaneURL(), "trailing slash trimmed")
	assert.Equal(t, 5*time.Second, cfg.PollInterval(), "default applied")
	assert.Equal(t, 5*time.Second, cfg.ShutdownDeadline(), "default applied")
}

func TestLoadAgentMissingRequiredFields(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{
			name:  "missing agent_id",
			yaml:  "region: eu-1\ncontrol_plane:\n  url: http://127.0.0.1:7000\n",
			field: "agent_id",
		},
		{
			name:  "missing region",
			yaml:  "agent_id: edge-1\ncontrol_plane:\n  url: http://127.0.0.1:7000\n",
			field: "region",
		},
		{
			name:  "missing control plane url",
			yaml:  "agent_id: edge-1\nregion: eu-1\n",
			field: "control_plane.url",
		},
		{
			name:  "relative control plane url",
			yaml:  "agent_id: edge-1\nregion: eu-1\ncontrol_plane:\n  url: cp.internal\n",
			field: "control_plane.url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadAgent(writeConfig(t, "agent.yaml", tt.yaml))
			require.Error(t, err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestLoadAgentFileNotFound(t *testing.T) {
	_, err := LoadAgent(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigNotFound)

	var lerr *LoadError
	assert.ErrorAs(t, err, &lerr)
}

func TestLoadAgentInvalidYAML(t *testing.T) {
	_, err := LoadAgent(writeConfig(t, "agent.yaml", "agent_id: [unclosed"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidYAML)
}

func TestLoadControlPlaneDefaults(t *testing.T) {
	cfg, err := LoadControlPlane("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7000", cfg.Addr())
	assert.Equal(t, "file:observix.db", cfg.DatabaseURL)
	assert.Equal(t, 20*time.Second, cfg.AgentOfflineThreshold())
	assert.Equal(t, []string{"*"}, cfg.AllowOrigins)
}

func TestLoadControlPlaneOverrides(t *testing.T) {
	path := writeConfig(t, "control-plane.yaml", `
host: 0.0.0.0
port: 9000
database_url: file:/tmp/cp.db
agent_offline_threshold_seconds: 45
allow_origins: ["http://ui.internal"]
`)

	cfg, err := LoadControlPlane(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Addr())
	assert.Equal(t, "file:/tmp/cp.db", cfg.DatabaseURL)
	assert.Equal(t, 45*time.Second, cfg.AgentOfflineThreshold())
	assert.Equal(t, []string{"http://ui.internal"}, cfg.AllowOrigins)
}

func TestLoadControlPlaneInvalidPort(t *testing.T) {
	_, err := LoadControlPlane(writeConfig(t, "control-plane.yaml", "port: 99999\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestLoadIndexerDefaults(t *testing.T) {
	cfg, err := LoadIndexer("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7100", cfg.Addr())
	assert.Empty(t, cfg.ProfilesDir)
	assert.Equal(t, int64(DefaultMaxRequestBytes), cfg.MaxRequestBytes)
}

func TestLoadIndexerOverrides(t *testing.T) {
	path := writeConfig(t, "indexer.yaml", `
port: 7200
profiles_dir: /etc/observix/profiles
max_request_bytes: 4096
`)

	cfg, err := LoadIndexer(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7200", cfg.Addr(), "host keeps its default")
	assert.Equal(t, "/etc/observix/profiles", cfg.ProfilesDir)
	assert.Equal(t, int64(4096), cfg.MaxRequestBytes)
}

func TestValidationErrorUnwraps(t *testing.T) {
	err := NewValidationError("agent", "region", ErrMissingRequiredField)
	assert.True(t, errors.Is(err, ErrMissingRequiredField))
	assert.Contains(t, err.Error(), "agent config")
	assert.Contains(t, err.Error(), "region")
}
