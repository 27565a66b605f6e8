package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harrison/taskflow/internal/filelock"
	"github.com/harrison/taskflow/internal/fileutil"
	"github.com/harrison/taskflow/internal/models"
)

// IDTimeFormat is the timestamp layout embedded in report ids.
const IDTimeFormat = "20060102T150405Z"

// maxIDAttempts bounds retries when a generated id is already taken.
const maxIDAttempts = 5

// ErrReportNotFound is returned by Load for unknown report ids.
var ErrReportNotFound = errors.New("report not found")

// Writer stores reports in a directory.
// File: {dir}/{workflow}-{timestamp}-{suffix}.json
type Writer struct {
	dir    string
	html   bool
	suffix func() string
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithHTML also renders {id}.html next to every JSON report.
func WithHTML(enabled bool) WriterOption {
	return func(w *Writer) {
		w.html = enabled
	}
}

// NewWriter creates a Writer for dir.
func NewWriter(dir string, opts ...WriterOption) *Writer {
	w := &Writer{
		dir:    dir,
		suffix: func() string { return uuid.NewString()[:8] },
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Dir returns the report directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Write persists the run and returns the report id.
// An existing report is never overwritten: the id is reserved under a lock
// and a fresh suffix is drawn if it is taken.
func (w *Writer) Write(run *models.WorkflowRun) (string, error) {
	if !models.ValidWorkflowName(run.WorkflowName) {
		return "", fmt.Errorf("cannot write report: invalid workflow name %q", run.WorkflowName)
	}
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	completed := run.EndTime
	if completed.IsZero() {
		completed = time.Now()
	}
	prefix := fmt.Sprintf("%s-%s-", run.WorkflowName, completed.UTC().Format(IDTimeFormat))

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id := prefix + w.suffix()
		data, err := json.MarshalIndent(FromRun(id, run), "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal report: %w", err)
		}

		err = filelock.WriteNew(w.path(id), append(data, '\n'))
		if errors.Is(err, filelock.ErrExists) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to write report: %w", err)
		}

		if w.html {
			if err := w.writeHTML(id, run); err != nil {
				return id, err
			}
		}
		return id, nil
	}

	return "", fmt.Errorf("failed to reserve a unique report id for %s after %d attempts", run.WorkflowName, maxIDAttempts)
}

// writeHTML renders the HTML summary for a stored report.
func (w *Writer) writeHTML(id string, run *models.WorkflowRun) error {
	page, err := RenderHTML(FromRun(id, run))
	if err != nil {
		return fmt.Errorf("failed to render HTML report: %w", err)
	}
	if err := filelock.AtomicWrite(filepath.Join(w.dir, id+".html"), page); err != nil {
		return fmt.Errorf("failed to write HTML report: %w", err)
	}
	return nil
}

func (w *Writer) path(id string) string {
	return filepath.Join(w.dir, id+".json")
}

// Load reads the report with the given id.
func (w *Writer) Load(id string) (*Report, error) {
	if id == "" || filepath.Base(id) != id || strings.Contains(id, "..") {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, id)
	}
	data, err := os.ReadFile(w.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrReportNotFound, id)
		}
		return nil, fmt.Errorf("failed to read report: %w", err)
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report %s: %w", id, err)
	}
	return &r, nil
}

// List returns stored reports newest first, optionally limited to one
// workflow. Unreadable files are skipped.
func (w *Writer) List(workflow string) ([]*Report, error) {
	if _, err := os.Stat(w.dir); os.IsNotExist(err) {
		return []*Report{}, nil
	}

	opts := fileutil.ScanOptions{Extensions: []string{".json"}}
	if workflow != "" {
		opts.Pattern = "^" + regexp.QuoteMeta(workflow) + `-\d{8}T\d{6}Z-`
	}

	scan, err := fileutil.ScanDirectory(w.dir, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to scan report directory: %w", err)
	}

	reports := make([]*Report, 0, len(scan.Files))
	for _, f := range scan.Files {
		r, err := w.Load(strings.TrimSuffix(filepath.Base(f.Path), ".json"))
		if err != nil {
			continue
		}
		if workflow != "" && r.Workflow != workflow {
			continue
		}
		reports = append(reports, r)
	}

	sort.SliceStable(reports, func(i, j int) bool {
		if !reports[i].CompletedAt.Equal(reports[j].CompletedAt) {
			return reports[i].CompletedAt.After(reports[j].CompletedAt)
		}
		return reports[i].ID > reports[j].ID
	})
	return reports, nil
}
