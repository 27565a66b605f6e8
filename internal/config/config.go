package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harrison/taskflow/internal/models"
)

// ErrConfigNotFound is reported (wrapped) when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// TaskConfig defines an external command bound to a task name
type TaskConfig struct {
	// Command is the executable to run (resolved via PATH)
	Command string `yaml:"command" json:"command"`

	// Args are passed to Command
	Args []string `yaml:"args,omitempty" json:"args,omitempty"`

	// Dir is the working directory (empty = current directory)
	Dir string `yaml:"dir,omitempty" json:"dir,omitempty"`

	// Env holds extra environment variables for the command
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
}

// NotificationConfig controls post-run notifications
type NotificationConfig struct {
	// OnSuccess sends a notification after successful runs
	OnSuccess bool `yaml:"on_success" json:"on_success"`

	// OnFailure sends a notification after failed runs
	OnFailure bool `yaml:"on_failure" json:"on_failure"`

	// Command is executed to deliver the notification (empty = disabled)
	Command string `yaml:"command" json:"command"`

	// Args are passed to Command
	Args []string `yaml:"args,omitempty" json:"args,omitempty"`
}

// DeploymentConfig controls manual approval of deploying workflows
type DeploymentConfig struct {
	// RequireApproval makes approval workflows ask for confirmation
	RequireApproval bool `yaml:"require_approval" json:"require_approval"`

	// ApprovalWorkflows lists workflows that need approval
	ApprovalWorkflows []string `yaml:"approval_workflows" json:"approval_workflows"`
}

// MonitoringConfig controls metrics export
type MonitoringConfig struct {
	// Enabled turns on metrics collection
	Enabled bool `yaml:"enabled" json:"enabled"`

	// MetricsFile is the Prometheus textfile written after each run
	MetricsFile string `yaml:"metrics_file" json:"metrics_file"`
}

// HistoryConfig controls the run history database
type HistoryConfig struct {
	// Enabled records every run in the history database
	Enabled bool `yaml:"enabled" json:"enabled"`

	// DBPath is the SQLite database path (empty = <state_dir>/history.db)
	DBPath string `yaml:"db_path" json:"db_path"`
}

// ReportsConfig controls report artifacts
type ReportsConfig struct {
	// HTML also renders an HTML summary next to each JSON report
	HTML bool `yaml:"html" json:"html"`
}

// Config represents taskflow configuration options
type Config struct {
	// StateDir holds logs, reports, backups, history and status
	StateDir string `yaml:"state_dir" json:"state_dir"`

	// DataDir is the site's JSON data directory
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// LogDir is the directory of the append-only log (empty = <state_dir>/logs)
	LogDir string `yaml:"log_dir" json:"log_dir"`

	// ReportDir is where run reports are written (empty = <state_dir>/reports)
	ReportDir string `yaml:"report_dir" json:"report_dir"`

	// BackupDir is where data backups are written (empty = <state_dir>/backups)
	BackupDir string `yaml:"backup_dir" json:"backup_dir"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level"`

	// TaskTimeout bounds each task invocation (0 = no limit)
	TaskTimeout time.Duration `yaml:"-" json:"-"`

	// RetentionDays is how long cleanup keeps reports, logs and backups
	RetentionDays int `yaml:"retention_days" json:"retention_days"`

	// EnvFile is a dotenv file loaded into the environment of external tasks
	EnvFile string `yaml:"env_file" json:"env_file"`

	// Workflows maps workflow names to ordered task names
	Workflows map[string][]string `yaml:"workflows" json:"workflows"`

	// Tasks defines or overrides external command tasks
	Tasks map[string]TaskConfig `yaml:"tasks" json:"tasks"`

	// Schedules maps workflow names to 5-field cron expressions
	Schedules map[string]string `yaml:"schedules" json:"schedules"`

	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`
	Deployment    DeploymentConfig   `yaml:"deployment" json:"deployment"`
	Monitoring    MonitoringConfig   `yaml:"monitoring" json:"monitoring"`
	History       HistoryConfig      `yaml:"history" json:"history"`
	Reports       ReportsConfig      `yaml:"reports" json:"reports"`
}

// DefaultWorkflows returns the built-in workflow definitions
func DefaultWorkflows() map[string][]string {
	return map[string][]string{
		"development": {"validate-data", "generate-campaigns", "generate-donations", "update-milestones"},
		"staging":     {"validate-data", "test", "build", "health-check"},
		"production":  {"validate-data", "test", "build", "backup", "deploy", "health-check"},
		"maintenance": {"cleanup", "backup", "health-check"},
	}
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	cfg := &Config{
		StateDir:      DefaultStateDir(),
		DataDir:       "data",
		LogLevel:      "info",
		TaskTimeout:   0, // No limit
		RetentionDays: 30,
		EnvFile:       ".env",
		Workflows:     DefaultWorkflows(),
		Tasks:         map[string]TaskConfig{},
		Schedules: map[string]string{
			"maintenance": "0 3 * * *",
		},
		Notifications: NotificationConfig{
			OnSuccess: false,
			OnFailure: true,
		},
		Deployment: DeploymentConfig{
			RequireApproval:   true,
			ApprovalWorkflows: []string{"production"},
		},
		Monitoring: MonitoringConfig{
			Enabled: false,
		},
		History: HistoryConfig{
			Enabled: true,
		},
		Reports: ReportsConfig{
			HTML: true,
		},
	}
	cfg.applyDerivedDefaults()
	return cfg
}

// fileConfig mirrors Config with pointer fields so that keys present in the
// file can be told apart from keys that were omitted.
type fileConfig struct {
	StateDir      *string               `yaml:"state_dir"`
	DataDir       *string               `yaml:"data_dir"`
	LogDir        *string               `yaml:"log_dir"`
	ReportDir     *string               `yaml:"report_dir"`
	BackupDir     *string               `yaml:"backup_dir"`
	LogLevel      *string               `yaml:"log_level"`
	TaskTimeout   *string               `yaml:"task_timeout"`
	RetentionDays *int                  `yaml:"retention_days"`
	EnvFile       *string               `yaml:"env_file"`
	Workflows     map[string][]string   `yaml:"workflows"`
	Tasks         map[string]TaskConfig `yaml:"tasks"`
	Schedules     map[string]string     `yaml:"schedules"`
	Notifications *struct {
		OnSuccess *bool    `yaml:"on_success"`
		OnFailure *bool    `yaml:"on_failure"`
		Command   *string  `yaml:"command"`
		Args      []string `yaml:"args"`
	} `yaml:"notifications"`
	Deployment *struct {
		RequireApproval   *bool    `yaml:"require_approval"`
		ApprovalWorkflows []string `yaml:"approval_workflows"`
	} `yaml:"deployment"`
	Monitoring *struct {
		Enabled     *bool   `yaml:"enabled"`
		MetricsFile *string `yaml:"metrics_file"`
	} `yaml:"monitoring"`
	History *struct {
		Enabled *bool   `yaml:"enabled"`
		DBPath  *string `yaml:"db_path"`
	} `yaml:"history"`
	Reports *struct {
		HTML *bool `yaml:"html"`
	} `yaml:"reports"`
}

// LoadConfig loads configuration from the specified file path.
//
// LoadConfig never fails: when the file is missing, unparseable, or invalid it
// returns the default configuration together with a non-nil warning that the
// caller should log. JSON files are accepted since JSON is valid YAML.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("%w: %s (using built-in defaults)", ErrConfigNotFound, path)
		}
		return cfg, fmt.Errorf("failed to read config file %s (using built-in defaults): %w", path, err)
	}

	merged, err := parseAndMerge(data)
	if err != nil {
		return DefaultConfig(), fmt.Errorf("ignoring config file %s (using built-in defaults): %w", path, err)
	}

	return merged, nil
}

// parseAndMerge parses raw config data, validates it against the schema, and
// merges it over the defaults.
func parseAndMerge(data []byte) (*Config, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// An empty file is a valid, empty configuration
	if raw == nil {
		return DefaultConfig(), nil
	}

	jsonDoc, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to convert config to JSON: %w", err)
	}
	if err := ValidateSchema(jsonDoc); err != nil {
		return nil, err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := cfg.merge(&fc); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// merge applies the keys present in fc over c.
func (c *Config) merge(fc *fileConfig) error {
	// Derived directories follow state_dir unless they are set explicitly
	stateDirChanged := fc.StateDir != nil && *fc.StateDir != c.StateDir
	if stateDirChanged {
		c.StateDir = *fc.StateDir
		c.LogDir, c.ReportDir, c.BackupDir = "", "", ""
		c.History.DBPath, c.Monitoring.MetricsFile = "", ""
	}

	if fc.DataDir != nil {
		c.DataDir = *fc.DataDir
	}
	if fc.LogDir != nil {
		c.LogDir = *fc.LogDir
	}
	if fc.ReportDir != nil {
		c.ReportDir = *fc.ReportDir
	}
	if fc.BackupDir != nil {
		c.BackupDir = *fc.BackupDir
	}
	if fc.LogLevel != nil {
		c.LogLevel = *fc.LogLevel
	}
	if fc.TaskTimeout != nil {
		timeout, err := time.ParseDuration(*fc.TaskTimeout)
		if err != nil {
			return fmt.Errorf("invalid task_timeout format %q: %w", *fc.TaskTimeout, err)
		}
		c.TaskTimeout = timeout
	}
	if fc.RetentionDays != nil {
		c.RetentionDays = *fc.RetentionDays
	}
	if fc.EnvFile != nil {
		c.EnvFile = *fc.EnvFile
	}

	// Maps merge per key: a workflow or task in the file replaces the default
	// of the same name, others are kept.
	for name, tasks := range fc.Workflows {
		c.Workflows[name] = tasks
	}
	for name, task := range fc.Tasks {
		c.Tasks[name] = task
	}
	for name, expr := range fc.Schedules {
		c.Schedules[name] = expr
	}

	if n := fc.Notifications; n != nil {
		if n.OnSuccess != nil {
			c.Notifications.OnSuccess = *n.OnSuccess
		}
		if n.OnFailure != nil {
			c.Notifications.OnFailure = *n.OnFailure
		}
		if n.Command != nil {
			c.Notifications.Command = *n.Command
		}
		if n.Args != nil {
			c.Notifications.Args = n.Args
		}
	}
	if d := fc.Deployment; d != nil {
		if d.RequireApproval != nil {
			c.Deployment.RequireApproval = *d.RequireApproval
		}
		if d.ApprovalWorkflows != nil {
			c.Deployment.ApprovalWorkflows = d.ApprovalWorkflows
		}
	}
	if m := fc.Monitoring; m != nil {
		if m.Enabled != nil {
			c.Monitoring.Enabled = *m.Enabled
		}
		if m.MetricsFile != nil {
			c.Monitoring.MetricsFile = *m.MetricsFile
		}
	}
	if h := fc.History; h != nil {
		if h.Enabled != nil {
			c.History.Enabled = *h.Enabled
		}
		if h.DBPath != nil {
			c.History.DBPath = *h.DBPath
		}
	}
	if r := fc.Reports; r != nil && r.HTML != nil {
		c.Reports.HTML = *r.HTML
	}

	c.applyDerivedDefaults()
	return nil
}

// applyDerivedDefaults fills directory settings that default to a location
// under StateDir.
func (c *Config) applyDerivedDefaults() {
	if c.LogDir == "" {
		c.LogDir = filepath.Join(c.StateDir, "logs")
	}
	if c.ReportDir == "" {
		c.ReportDir = filepath.Join(c.StateDir, "reports")
	}
	if c.BackupDir == "" {
		c.BackupDir = filepath.Join(c.StateDir, "backups")
	}
	if c.History.DBPath == "" {
		c.History.DBPath = filepath.Join(c.StateDir, "history.db")
	}
	if c.Monitoring.MetricsFile == "" {
		c.Monitoring.MetricsFile = filepath.Join(c.StateDir, "metrics.prom")
	}
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
func (c *Config) MergeWithFlags(logLevel *string, taskTimeout *time.Duration) {
	if logLevel != nil {
		c.LogLevel = *logLevel
	}
	if taskTimeout != nil {
		c.TaskTimeout = *taskTimeout
	}
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if c.TaskTimeout < 0 {
		return fmt.Errorf("task_timeout must be >= 0, got %v", c.TaskTimeout)
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("retention_days must be >= 0, got %d", c.RetentionDays)
	}
	if c.StateDir == "" {
		return fmt.Errorf("state_dir cannot be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir cannot be empty")
	}

	for _, name := range sortedKeys(c.Workflows) {
		if name == "" {
			return fmt.Errorf("workflow names cannot be empty")
		}
		wf := models.Workflow{Name: name, Tasks: c.Workflows[name]}
		if err := wf.Validate(); err != nil {
			return err
		}
	}

	for name, task := range c.Tasks {
		if task.Command == "" {
			return fmt.Errorf("task %s: command cannot be empty", name)
		}
	}

	for name := range c.Schedules {
		if _, ok := c.Workflows[name]; !ok {
			return fmt.Errorf("schedule references unknown workflow %q", name)
		}
	}

	return nil
}

// RequiresApproval reports whether running the workflow needs confirmation
func (c *Config) RequiresApproval(workflow string) bool {
	if !c.Deployment.RequireApproval {
		return false
	}
	for _, name := range c.Deployment.ApprovalWorkflows {
		if name == workflow {
			return true
		}
	}
	return false
}

// Directories returns the working directories that must exist before a run
func (c *Config) Directories() []string {
	return []string{c.StateDir, c.DataDir, c.LogDir, c.ReportDir, c.BackupDir}
}

// DirectoryError reports a working directory that could not be created.
type DirectoryError struct {
	Path string
	Err  error
}

// Error implements the error interface for DirectoryError.
func (e *DirectoryError) Error() string {
	return fmt.Sprintf("create directory %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying filesystem error.
func (e *DirectoryError) Unwrap() error {
	return e.Err
}

// EnsureDirectories creates every working directory, recursively.
// Existing directories are left untouched, so calling it twice is safe.
func (c *Config) EnsureDirectories() error {
	for _, dir := range c.Directories() {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return &DirectoryError{Path: dir, Err: err}
		}
	}
	return nil
}

// sortedKeys returns the keys of m in sorted order
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
