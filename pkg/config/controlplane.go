package config

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"dario.cat/mergo"
)

// ControlPlaneConfig is the control plane's configuration
// (control-plane.yaml). Every field has a default, so the control plane can
// run without a config file.
type ControlPlaneConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// DatabaseURL is the SQLite DSN for the catalog store.
	DatabaseURL string `yaml:"database_url"`

	// AgentOfflineThresholdSeconds is how long an agent may go without
	// polling before it is reported offline.
	AgentOfflineThresholdSeconds float64 `yaml:"agent_offline_threshold_seconds"`

	// AllowOrigins is the CORS allow-list. "*" allows any origin.
	AllowOrigins []string `yaml:"allow_origins"`
}

// DefaultControlPlaneConfig returns the built-in control plane defaults.
func DefaultControlPlaneConfig() *ControlPlaneConfig {
	return &ControlPlaneConfig{
		Host:                         "127.0.0.1",
		Port:                         7000,
		DatabaseURL:                  "file:observix.db",
		AgentOfflineThresholdSeconds: 20,
		AllowOrigins:                 []string{"*"},
	}
}

// LoadControlPlane loads and validates the control plane configuration.
// An empty path yields pure defaults.
func LoadControlPlane(path string) (*ControlPlaneConfig, error) {
	cfg := DefaultControlPlaneConfig()

	if path != "" {
		var user ControlPlaneConfig
		if err := loadYAML(path, &user); err != nil {
			return nil, NewLoadError(path, err)
		}
		if err := mergo.Merge(cfg, &user, mergo.WithOverride); err != nil {
			return nil, NewLoadError(path, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	slog.Info("Control plane configuration loaded",
		"addr", cfg.Addr(),
		"database_url", cfg.DatabaseURL,
		"agent_offline_threshold_seconds", cfg.AgentOfflineThresholdSeconds)

	return cfg, nil
}

func (c *ControlPlaneConfig) validate() error {
	if err := validatePort("control_plane", c.Port); err != nil {
		return err
	}
	if c.DatabaseURL == "" {
		return NewValidationError("control_plane", "database_url", ErrMissingRequiredField)
	}
	if c.AgentOfflineThresholdSeconds <= 0 {
		return NewValidationError("control_plane", "agent_offline_threshold_seconds",
			fmt.Errorf("%w: must be > 0", ErrInvalidValue))
	}
	return nil
}

// Addr returns the host:port the API server binds.
func (c *ControlPlaneConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// AgentOfflineThreshold returns the liveness threshold as a duration.
func (c *ControlPlaneConfig) AgentOfflineThreshold() time.Duration {
	return time.Duration(c.AgentOfflineThresholdSeconds * float64(time.Second))
}
