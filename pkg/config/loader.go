// Package config loads and validates the per-service YAML configuration for
// the agent, the control plane, and the indexer.
//
// Each service has one YAML file. Loading expands {{.VAR}} environment
// references, unmarshals, overlays built-in defaults for anything unset, and
// validates. Services without required fields (control plane, indexer) run on
// pure defaults when no file is given.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// loadYAML reads a configuration file, expands environment variables, and
// unmarshals it into target. A missing file surfaces ErrConfigNotFound so
// callers can distinguish it from a malformed one.
func loadYAML(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	// Expand environment variables using {{.VAR}} template syntax.
	// Note: ExpandEnv passes through original data on parse/execution errors,
	// allowing the YAML parser to produce the clearer error message.
	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func validatePort(component string, port int) error {
	if port < 1 || port > 65535 {
		return NewValidationError(component, "port",
			fmt.Errorf("%w: must be within 1..65535, got %d", ErrInvalidValue, port))
	}
	return nil
}
