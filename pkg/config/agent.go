package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"dario.cat/mergo"
)

// AgentConfig is the agent's configuration (agent.yaml).
type AgentConfig struct {
	// AgentID identifies this agent to the control plane. Required.
	AgentID string `yaml:"agent_id"`

	// Region scopes this agent's assignments. Required.
	Region string `yaml:"region"`

	// ControlPlane points at the control plane the agent polls.
	ControlPlane ControlPlaneRef `yaml:"control_plane"`

	// PollIntervalSeconds is the base assignment poll interval. The actual
	// interval is jittered ±20% so agent fleets don't poll in lockstep.
	PollIntervalSeconds float64 `yaml:"poll_interval_seconds"`

	// ShutdownDeadlineSeconds bounds how long each pipeline gets to drain
	// on stop before its remaining work is abandoned.
	ShutdownDeadlineSeconds float64 `yaml:"shutdown_deadline_seconds"`
}

// ControlPlaneRef locates the control plane API.
type ControlPlaneRef struct {
	URL string `yaml:"url"`
}

// DefaultAgentConfig returns the built-in agent defaults.
func DefaultAgentConfig() *AgentConfig {
	return &AgentConfig{
		PollIntervalSeconds:     5,
		ShutdownDeadlineSeconds: 5,
	}
}

// LoadAgent loads and validates the agent configuration from path.
func LoadAgent(path string) (*AgentConfig, error) {
	var user AgentConfig
	if err := loadYAML(path, &user); err != nil {
		return nil, NewLoadError(path, err)
	}

	cfg := DefaultAgentConfig()
	if err := mergo.Merge(cfg, &user, mergo.WithOverride); err != nil {
		return nil, NewLoadError(path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	slog.Info("Agent configuration loaded",
		"agent_id", cfg.AgentID,
		"region", cfg.Region,
		"control_plane_url", cfg.ControlPlane.URL,
		"poll_interval_seconds", cfg.PollIntervalSeconds)

	return cfg, nil
}

func (c *AgentConfig) validate() error {
	if c.AgentID == "" {
		return NewValidationError("agent", "agent_id", ErrMissingRequiredField)
	}
	if c.Region == "" {
		return NewValidationError("agent", "region", ErrMissingRequiredField)
	}
	if c.ControlPlane.URL == "" {
		return NewValidationError("agent", "control_plane.url", ErrMissingRequiredField)
	}
	u, err := url.Parse(c.ControlPlane.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return NewValidationError("agent", "control_plane.url",
			fmt.Errorf("%w: %q is not an absolute URL", ErrInvalidValue, c.ControlPlane.URL))
	}
	if c.PollIntervalSeconds <= 0 {
		return NewValidationError("agent", "poll_interval_seconds",
			fmt.Errorf("%w: must be > 0", ErrInvalidValue))
	}
	if c.ShutdownDeadlineSeconds <= 0 {
		return NewValidationError("agent", "shutdown_deadline_seconds",
			fmt.Errorf("%w: must be > 0", ErrInvalidValue))
	}
	return nil
}

// ControlPlaneURL returns the control plane base URL without a trailing slash.
func (c *AgentConfig) ControlPlaneURL() string {
	return strings.TrimRight(c.ControlPlane.URL, "/")
}

// PollInterval returns the poll interval as a duration.
func (c *AgentConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds * float64(time.Second))
}

// ShutdownDeadline returns the per-pipeline drain deadline as a duration.
func (c *AgentConfig) ShutdownDeadline() time.Duration {
	return time.Duration(c.ShutdownDeadlineSeconds * float64(time.Second))
}
