// Package tasks provides the built-in task handlers and registers the
// default task set of the donation site.
//
// In-process tasks (validate-data, backup, cleanup, health-check) operate on
// the configured working directories. Everything else runs as an external
// command through registry.CommandHandler.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/harrison/taskflow/internal/config"
	"github.com/harrison/taskflow/internal/filelock"
	"github.com/harrison/taskflow/internal/fileutil"
	"github.com/harrison/taskflow/internal/registry"
)

// BackupTimeFormat names backup directories.
const BackupTimeFormat = "20060102-150405"

// Settings locates the directories the built-in tasks operate on.
type Settings struct {
	DataDir       string
	LogDir        string
	ReportDir     string
	BackupDir     string
	RetentionDays int              // 0 disables cleanup
	Now           func() time.Time // Defaults to time.Now
}

// SettingsFromConfig extracts task settings from the loaded configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		DataDir:       cfg.DataDir,
		LogDir:        cfg.LogDir,
		ReportDir:     cfg.ReportDir,
		BackupDir:     cfg.BackupDir,
		RetentionDays: cfg.RetentionDays,
	}
}

func (s Settings) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// InvalidDataError lists data files that are not valid JSON.
type InvalidDataError struct {
	Files map[string]string // path -> parse error
}

// Error implements the error interface for InvalidDataError.
func (e *InvalidDataError) Error() string {
	paths := make([]string, 0, len(e.Files))
	for path := range e.Files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d invalid data file(s)", len(paths)))
	for _, path := range paths {
		sb.WriteString(fmt.Sprintf("; %s: %s", path, e.Files[path]))
	}
	return sb.String()
}

// scanData returns every JSON file under the data directory.
func (s Settings) scanData() (*fileutil.ScanResult, error) {
	return fileutil.ScanDirectory(s.DataDir, fileutil.ScanOptions{
		Extensions:  []string{".json"},
		Recursive:   true,
		ExcludeDirs: []string{"node_modules"},
	})
}

// ValidateData checks that every JSON file under the data directory parses.
func ValidateData(s Settings) registry.HandlerFunc {
	return func(ctx context.Context, opts registry.Options) (string, error) {
		scan, err := s.scanData()
		if err != nil {
			return "", fmt.Errorf("scan data directory: %w", err)
		}

		invalid := make(map[string]string)
		for _, f := range scan.Files {
			if err := ctx.Err(); err != nil {
				return "", err
			}

			data, err := os.ReadFile(f.Path)
			if err != nil {
				invalid[f.Path] = err.Error()
				continue
			}
			var doc any
			if err := json.Unmarshal(data, &doc); err != nil {
				invalid[f.Path] = err.Error()
			}
		}

		if len(invalid) > 0 {
			return "", &InvalidDataError{Files: invalid}
		}
		return fmt.Sprintf("validated %d data file(s)", len(scan.Files)), nil
	}
}

// Backup copies the data directory's JSON files into a new directory under
// the backup directory. The output is the backup id.
func Backup(s Settings) registry.HandlerFunc {
	return func(ctx context.Context, opts registry.Options) (string, error) {
		scan, err := s.scanData()
		if err != nil {
			return "", fmt.Errorf("scan data directory: %w", err)
		}

		id, dest, err := s.reserveBackupDir()
		if err != nil {
			return "", err
		}

		root, err := filepath.Abs(s.DataDir)
		if err != nil {
			return "", fmt.Errorf("resolve data directory: %w", err)
		}

		for _, f := range scan.Files {
			if err := ctx.Err(); err != nil {
				return "", err
			}

			rel, err := filepath.Rel(root, f.Path)
			if err != nil {
				return "", fmt.Errorf("backup %s: %w", f.Path, err)
			}
			data, err := os.ReadFile(f.Path)
			if err != nil {
				return "", fmt.Errorf("backup %s: %w", rel, err)
			}
			if err := filelock.AtomicWrite(filepath.Join(dest, rel), data); err != nil {
				return "", fmt.Errorf("backup %s: %w", rel, err)
			}
		}

		return id, nil
	}
}

// reserveBackupDir creates a fresh directory named after the current time.
// A numeric suffix is added if a backup already exists for that second.
func (s Settings) reserveBackupDir() (string, string, error) {
	if err := os.MkdirAll(s.BackupDir, 0755); err != nil {
		return "", "", fmt.Errorf("create backup directory: %w", err)
	}

	base := s.now().UTC().Format(BackupTimeFormat)
	for attempt := 1; attempt <= 100; attempt++ {
		id := base
		if attempt > 1 {
			id = base + "-" + strconv.Itoa(attempt)
		}
		dest := filepath.Join(s.BackupDir, id)
		err := os.Mkdir(dest, 0755)
		if err == nil {
			return id, dest, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", "", fmt.Errorf("create backup %s: %w", id, err)
		}
	}
	return "", "", fmt.Errorf("too many backups for %s", base)
}

// Cleanup removes reports, rotated logs and backups older than the retention
// period. The output is the number of removed entries.
func Cleanup(s Settings) registry.HandlerFunc {
	return func(ctx context.Context, opts registry.Options) (string, error) {
		if s.RetentionDays <= 0 {
			return "0", nil
		}
		cutoff := s.now().Add(-time.Duration(s.RetentionDays) * 24 * time.Hour)

		targets := []struct {
			dir  string
			opts fileutil.ScanOptions
		}{
			{s.ReportDir, fileutil.ScanOptions{Extensions: []string{".json", ".html"}, ModifiedBefore: cutoff}},
			{s.LogDir, fileutil.ScanOptions{Extensions: []string{".log"}, Pattern: `^taskflow-`, ModifiedBefore: cutoff}},
			{s.BackupDir, fileutil.ScanOptions{IncludeDirs: true, ModifiedBefore: cutoff}},
		}

		removed := 0
		var errs []error
		for _, target := range targets {
			if err := ctx.Err(); err != nil {
				return strconv.Itoa(removed), err
			}
			if target.dir == "" {
				continue
			}

			scan, err := fileutil.ScanDirectory(target.dir, target.opts)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					continue
				}
				errs = append(errs, err)
				continue
			}

			for _, f := range scan.Files {
				if err := os.RemoveAll(f.Path); err != nil {
					errs = append(errs, fmt.Errorf("remove %s: %w", f.Path, err))
					continue
				}
				removed++
			}
		}

		return strconv.Itoa(removed), errors.Join(errs...)
	}
}

// HealthCheck verifies that every working directory exists and is writable.
func HealthCheck(s Settings) registry.HandlerFunc {
	return func(ctx context.Context, opts registry.Options) (string, error) {
		dirs := []string{s.DataDir, s.LogDir, s.ReportDir, s.BackupDir}

		var errs []error
		checked := 0
		for _, dir := range dirs {
			if dir == "" {
				continue
			}
			checked++
			if err := checkWritable(dir); err != nil {
				errs = append(errs, err)
			}
		}

		if err := errors.Join(errs...); err != nil {
			return "", fmt.Errorf("health check failed: %w", err)
		}
		return fmt.Sprintf("%d directories healthy", checked), nil
	}
}

// checkWritable creates and removes a scratch file in dir.
func checkWritable(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: not a directory", dir)
	}

	scratch, err := os.CreateTemp(dir, ".health-*")
	if err != nil {
		return fmt.Errorf("%s: not writable: %w", dir, err)
	}
	name := scratch.Name()
	scratch.Close()
	return os.Remove(name)
}
