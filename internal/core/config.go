// Package core contains the task lifecycle engine, the reconciliation
// sweeper, and configuration loading for the executor fleet.
package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"agentherd/pkg/models"
)

// Defaults applied when the config file does not say otherwise.
const (
	DefaultHeartbeatInterval = 30
	DefaultStaleFactor       = 10
	DefaultMaxConcurrent     = 4
	DefaultMaxTurns          = 100
	DefaultAgentPath         = "claude"
)

// DefaultConfigPath returns the standard config file location.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "/etc"
	}
	return filepath.Join(dir, "agentherd", "agentherd.yaml")
}

// DataDir returns the directory holding task metadata, heartbeats, and the
// event log. Overridable via AGENTHERD_DATA.
func DataDir() string {
	if dir := os.Getenv("AGENTHERD_DATA"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("/tmp", "agentherd")
	}
	return filepath.Join(home, ".local", "share", "agentherd")
}

// LoadConfig reads the executor fleet configuration via Viper. An empty
// path means the default location; a missing default file yields a config
// with defaults and no executors.
func LoadConfig(path string) (*models.Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("defaults.agent_path", DefaultAgentPath)
	v.SetDefault("defaults.max_turns", DefaultMaxTurns)
	v.SetDefault("defaults.heartbeat_interval", DefaultHeartbeatInterval)
	v.SetDefault("defaults.stale_factor", DefaultStaleFactor)
	v.SetDefault("defaults.max_concurrent", DefaultMaxConcurrent)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		v.SetConfigFile(DefaultConfigPath())
		if err := v.ReadInConfig(); err != nil {
			if !os.IsNotExist(err) {
				if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
					return nil, fmt.Errorf("reading config: %w", err)
				}
			}
			// No config file: defaults only, no executors.
		}
	}

	var cfg models.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validateConfig checks the executor fleet for invalid entries.
func validateConfig(cfg *models.Config) error {
	var errs []string
	seen := make(map[string]bool)

	for _, e := range cfg.Executors {
		if e.Name == "" {
			errs = append(errs, "executor name must not be empty")
			continue
		}
		if seen[e.Name] {
			errs = append(errs, fmt.Sprintf("duplicate executor name %q", e.Name))
		}
		seen[e.Name] = true

		switch e.Type {
		case models.ExecutorSSH:
			if e.Host == "" {
				errs = append(errs, fmt.Sprintf("executor %q: ssh requires host", e.Name))
			}
			if e.User == "" {
				errs = append(errs, fmt.Sprintf("executor %q: ssh requires user", e.Name))
			}
		case models.ExecutorContainer:
			if e.Image == "" {
				errs = append(errs, fmt.Sprintf("executor %q: container requires image", e.Name))
			}
			if r := e.Runtime; r != "" && r != models.RuntimeDocker && r != models.RuntimePodman {
				errs = append(errs, fmt.Sprintf("executor %q: unknown runtime %q", e.Name, r))
			}
		case models.ExecutorLocal:
			// No required parameters.
		default:
			errs = append(errs, fmt.Sprintf("executor %q: unknown type %q", e.Name, e.Type))
		}

		if e.MaxConcurrent < 0 {
			errs = append(errs, fmt.Sprintf("executor %q: max_concurrent must be non-negative", e.Name))
		}
	}

	if cfg.Defaults.HeartbeatInterval < 0 {
		errs = append(errs, "defaults.heartbeat_interval must be non-negative")
	}
	if cfg.Defaults.StaleFactor < 0 {
		errs = append(errs, "defaults.stale_factor must be non-negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// sampleConfig is written by `agentherd config --init`.
const sampleConfig = `# agentherd executor fleet configuration
defaults:
  agent_path: claude
  max_turns: 100
  heartbeat_interval: 30
  stale_factor: 10
  max_concurrent: 4
  # webhook_url: https://example.com/hooks/agentherd

executors:
  - name: workstation
    type: local
  - name: buildbox
    type: ssh
    host: buildbox.internal
    user: agent
    key_path: ~/.ssh/id_ed25519
    labels: [linux, gpu]
  - name: sandbox
    type: container
    image: agent-sandbox:latest
    runtime: docker
    volumes:
      - /srv/workspaces:/workspaces
`

// WriteSampleConfig writes a starter config file, refusing to overwrite an
// existing one.
func WriteSampleConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("writing sample config: %w", err)
	}
	return nil
}
