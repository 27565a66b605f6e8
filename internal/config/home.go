package config

import (
	"os"
	"path/filepath"
)

// HomeEnvVar overrides the default state directory when set.
const HomeEnvVar = "TASKFLOW_HOME"

// DefaultStateDir returns the taskflow state directory
// Priority order:
//  1. TASKFLOW_HOME environment variable (if set)
//  2. .taskflow in the current working directory
func DefaultStateDir() string {
	if home := os.Getenv(HomeEnvVar); home != "" {
		return home
	}
	return ".taskflow"
}

// DefaultConfigPath returns the configuration file to load when none is given.
// The first existing of config.yaml, config.yml, config.json in the state
// directory wins; config.yaml is returned when none exists.
func DefaultConfigPath() string {
	stateDir := DefaultStateDir()
	for _, name := range []string{"config.yaml", "config.yml", "config.json"} {
		candidate := filepath.Join(stateDir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return filepath.Join(stateDir, "config.yaml")
}

// StatusPath returns the path of the published orchestrator status snapshot
func (c *Config) StatusPath() string {
	return filepath.Join(c.StateDir, "status.json")
}

// LogFilePath returns the path of the append-only log file
func (c *Config) LogFilePath() string {
	return filepath.Join(c.LogDir, "taskflow.log")
}
