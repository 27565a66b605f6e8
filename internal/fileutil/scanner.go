// Package fileutil scans working directories for data files, reports,
// logs and backups.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// ScanOptions configures the directory scanning behavior
type ScanOptions struct {
	// Pattern is a regex matched against the filename without extension
	Pattern string
	// Extensions limits results to these extensions (e.g., ".json")
	Extensions []string
	// Recursive enables recursive directory scanning
	Recursive bool
	// ExcludeDirs lists directory names to skip (hidden directories are always skipped)
	ExcludeDirs []string
	// MaxDepth limits recursion depth (0 = unlimited, 1 = current dir only)
	MaxDepth int
	// ModifiedBefore keeps only files last modified before this time (zero = no filter)
	ModifiedBefore time.Time
	// IncludeDirs also reports matching directories and does not descend into them
	IncludeDirs bool
}

// FileInfo describes a matched file
type FileInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// ScanResult contains the results of a directory scan
type ScanResult struct {
	// Files holds matched entries sorted by path
	Files []FileInfo
	// Errors holds non-fatal errors encountered while walking
	Errors []error
}

// Paths returns the matched paths in order.
func (r *ScanResult) Paths() []string {
	paths := make([]string, len(r.Files))
	for i, f := range r.Files {
		paths[i] = f.Path
	}
	return paths
}

// TotalSize sums the size of all matched files.
func (r *ScanResult) TotalSize() int64 {
	var total int64
	for _, f := range r.Files {
		total += f.Size
	}
	return total
}

// ScanDirectory scans a directory for files matching the provided options
func ScanDirectory(dir string, opts ScanOptions) (*ScanResult, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to access directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir)
	}

	result := &ScanResult{
		Files:  make([]FileInfo, 0),
		Errors: make([]error, 0),
	}

	var patternRegex *regexp.Regexp
	if opts.Pattern != "" {
		patternRegex, err = regexp.Compile(opts.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern: %w", err)
		}
	}

	extMap := make(map[string]bool)
	for _, ext := range opts.Extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		extMap[strings.ToLower(ext)] = true
	}

	excludeMap := make(map[string]bool)
	for _, name := range opts.ExcludeDirs {
		excludeMap[name] = true
	}

	matches := func(name string, modTime time.Time) bool {
		if len(extMap) > 0 && !extMap[strings.ToLower(filepath.Ext(name))] {
			return false
		}
		if patternRegex != nil && !patternRegex.MatchString(strings.TrimSuffix(name, filepath.Ext(name))) {
			return false
		}
		if !opts.ModifiedBefore.IsZero() && !modTime.Before(opts.ModifiedBefore) {
			return false
		}
		return true
	}

	add := func(path string, d os.DirEntry) {
		fi, err := d.Info()
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("failed to stat %s: %w", path, err))
			return
		}
		if !matches(d.Name(), fi.ModTime()) {
			return
		}
		absPath, err := filepath.Abs(path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("failed to resolve path %s: %w", path, err))
			return
		}
		result.Files = append(result.Files, FileInfo{
			Path:    absPath,
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
			IsDir:   d.IsDir(),
		})
	}

	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("error accessing %s: %w", path, err))
			return nil
		}

		if path == dir {
			return nil
		}

		if d.IsDir() {
			if excludeMap[d.Name()] || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if opts.IncludeDirs {
				add(path, d)
				return filepath.SkipDir
			}
			if !opts.Recursive {
				return filepath.SkipDir
			}
			if opts.MaxDepth > 0 {
				relPath, _ := filepath.Rel(dir, path)
				depth := strings.Count(relPath, string(filepath.Separator)) + 1
				if depth >= opts.MaxDepth {
					return filepath.SkipDir
				}
			}
			return nil
		}

		// Lock and temp files belong to in-flight writers
		if strings.HasPrefix(d.Name(), ".") || strings.HasSuffix(d.Name(), ".lock") {
			return nil
		}

		add(path, d)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	sort.Slice(result.Files, func(i, j int) bool {
		return result.Files[i].Path < result.Files[j].Path
	})

	return result, nil
}
