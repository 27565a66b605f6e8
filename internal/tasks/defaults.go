package tasks

import (
	"errors"
	"fmt"
	"os"

	"github.com/harrison/taskflow/internal/config"
	"github.com/harrison/taskflow/internal/registry"
	"github.com/joho/godotenv"
)

// Built-in task names.
const (
	TaskValidateData = "validate-data"
	TaskBackup       = "backup"
	TaskCleanup      = "cleanup"
	TaskHealthCheck  = "health-check"
)

// DefaultCommands returns the external commands behind the default tasks.
func DefaultCommands() map[string]registry.CommandSpec {
	return map[string]registry.CommandSpec{
		"generate-campaigns": {Path: "node", Args: []string{"scripts/generate-campaigns.js"}},
		"generate-donations": {Path: "node", Args: []string{"scripts/generate-donations.js"}},
		"update-milestones":  {Path: "node", Args: []string{"scripts/update-milestones.js"}},
		"test":               {Path: "npm", Args: []string{"test"}},
		"build":              {Path: "npm", Args: []string{"run", "build"}},
		"deploy":             {Path: "npm", Args: []string{"run", "deploy"}},
	}
}

// RegisterBuiltins registers the in-process tasks.
func RegisterBuiltins(reg *registry.Registry, s Settings) {
	reg.Register(TaskValidateData, ValidateData(s))
	reg.Register(TaskBackup, Backup(s))
	reg.Register(TaskCleanup, Cleanup(s))
	reg.Register(TaskHealthCheck, HealthCheck(s))
}

// RegisterDefaults populates reg with the built-in tasks, the default external
// commands, and finally the tasks declared in configuration. A configured task
// replaces a default of the same name.
func RegisterDefaults(reg *registry.Registry, cfg *config.Config, runner registry.CommandRunner) {
	RegisterBuiltins(reg, SettingsFromConfig(cfg))

	for name, spec := range DefaultCommands() {
		reg.Register(name, registry.NewCommandHandler(spec, runner))
	}

	for name, task := range cfg.Tasks {
		reg.Register(name, registry.NewCommandHandler(CommandSpecFor(task), runner))
	}
}

// CommandSpecFor converts a configured task into a command spec.
func CommandSpecFor(task config.TaskConfig) registry.CommandSpec {
	return registry.CommandSpec{
		Path: task.Command,
		Args: append([]string(nil), task.Args...),
		Dir:  task.Dir,
		Env:  task.Env,
	}
}

// LoadEnvFile reads a dotenv file for the environment of external tasks.
// An empty path or a missing file yields an empty map.
func LoadEnvFile(path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}

	env, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return env, nil
}
