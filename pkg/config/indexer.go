package config

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"dario.cat/mergo"
)

// DefaultMaxRequestBytes caps normalize request bodies at 1 MiB.
const DefaultMaxRequestBytes = 1 << 20

// IndexerConfig is the indexer's configuration (indexer.yaml). Every field
// has a default, so the indexer can run without a config file.
type IndexerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// ProfilesDir holds custom profile YAML files. Empty disables custom
	// profiles; the directory is watched for changes when set.
	ProfilesDir string `yaml:"profiles_dir"`

	// MaxRequestBytes caps the normalize request body size.
	MaxRequestBytes int64 `yaml:"max_request_bytes"`
}

// DefaultIndexerConfig returns the built-in indexer defaults.
func DefaultIndexerConfig() *IndexerConfig {
	return &IndexerConfig{
		Host:            "127.0.0.1",
		Port:            7100,
		MaxRequestBytes: DefaultMaxRequestBytes,
	}
}

// LoadIndexer loads and validates the indexer configuration. An empty path
// yields pure defaults.
func LoadIndexer(path string) (*IndexerConfig, error) {
	cfg := DefaultIndexerConfig()

	if path != "" {
		var user IndexerConfig
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

	slog.Info("Indexer configuration loaded",
		"addr", cfg.Addr(),
		"profiles_dir", cfg.ProfilesDir,
		"max_request_bytes", cfg.MaxRequestBytes)

	return cfg, nil
}

func (c *IndexerConfig) validate() error {
	if err := validatePort("indexer", c.Port); err != nil {
		return err
	}
	if c.MaxRequestBytes < 1 {
		return NewValidationError("indexer", "max_request_bytes",
			fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
	}
	return nil
}

// Addr returns the host:port the API server binds.
func (c *IndexerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
