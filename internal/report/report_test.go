package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harrison/taskflow/internal/executor"
	"github.com/harrison/taskflow/internal/models"
)

var (
	_ executor.ReportWriter    = (*Writer)(nil)
	_ executor.StatusPublisher = (*StatusFile)(nil)
)

func testRun(workflow string, end time.Time) *models.WorkflowRun {
	start := end.Add(-1500 * time.Millisecond)
	return &models.WorkflowRun{
		ID:           "run-" + workflow,
		WorkflowName: workflow,
		Tasks:        []string{"validate-data", "build", "deploy"},
		StartTime:    start,
		EndTime:      end,
		TaskResults: []models.TaskResult{
			{Name: "validate-data", Success: true, StartTime: start, EndTime: start.Add(time.Second), DurationMs: 1000, Output: "validated 3 data file(s)"},
			{Name: "build", Success: false, StartTime: start.Add(time.Second), EndTime: end, DurationMs: 500, Error: "command \"npm run build\" exited with status 2: ERR | missing module"},
		},
		ContinueOnError: false,
	}
}

func TestWriteReport(t *testing.T) {
	dir := t.TempDir()
	end := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	w := NewWriter(dir)

	id, err := w.Write(testRun("production", end))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.HasPrefix(id, "production-20260301T100000Z-") {
		t.Errorf("unexpected id %q", id)
	}

	data, err := os.ReadFile(filepath.Join(dir, id+".json"))
	if err != nil {
		t.Fatalf("report file missing: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("report is not JSON: %v", err)
	}
	for _, key := range []string{"id", "workflow", "completed_at", "duration_ms", "overall_success", "interrupted", "options", "tasks", "summary"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("report missing key %q", key)
		}
	}
	if doc["completed_at"] != "2026-03-01T10:00:00Z" {
		t.Errorf("completed_at = %v", doc["completed_at"])
	}

	r, err := w.Load(id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if r.DurationMs != 1500 {
		t.Errorf("DurationMs = %d, want 1500", r.DurationMs)
	}
	if r.Summary != (models.Summary{Total: 2, Successful: 1, Failed: 1, Skipped: 1}) {
		t.Errorf("unexpected summary %+v", r.Summary)
	}
	if len(r.Tasks) != 2 || r.Tasks[0].Name != "validate-data" || r.Tasks[1].Name != "build" {
		t.Fatalf("tasks out of order: %+v", r.Tasks)
	}
	if r.Tasks[0].Output == "" || r.Tasks[1].Error == "" {
		t.Error("output and error must be kept")
	}
	if failed := r.FailedTasks(); len(failed) != 1 || failed[0].Name != "build" {
		t.Errorf("FailedTasks = %+v", failed)
	}
}

// TestWriteNeverOverwrites verifies reports for the same workflow and second
// get distinct ids, and a colliding suffix is redrawn.
func TestWriteNeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	end := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	suffixes := []string{"aaaa0000", "aaaa0000", "bbbb1111"}
	var mu sync.Mutex
	w := NewWriter(dir)
	w.suffix = func() string {
		mu.Lock()
		defer mu.Unlock()
		s := suffixes[0]
		suffixes = suffixes[1:]
		return s
	}

	first, err := w.Write(testRun("production", end))
	if err != nil {
		t.Fatal(err)
	}
	second, err := w.Write(testRun("production", end))
	if err != nil {
		t.Fatal(err)
	}

	if first == second {
		t.Fatalf("ids collided: %s", first)
	}
	if !strings.HasSuffix(second, "bbbb1111") {
		t.Errorf("expected redrawn suffix, got %s", second)
	}
}

func TestWriteConcurrentUnique(t *testing.T) {
	dir := t.TempDir()
	end := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	w := NewWriter(dir)

	const writers = 10
	ids := make([]string, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := w.Write(testRun("staging", end))
			if err != nil {
				t.Errorf("Write: %v", err)
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, id := range ids {
		if seen[id] {
			t.Errorf("duplicate id %s", id)
		}
		seen[id] = true
	}

	reports, err := w.List("staging")
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != writers {
		t.Errorf("expected %d reports on disk, got %d", writers, len(reports))
	}
}

func TestWriteExhaustedSuffixes(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	w.suffix = func() string { return "same" }

	run := testRun("production", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	if _, err := w.Write(run); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(run); err == nil {
		t.Error("expected error once every attempt collides")
	}
}

func TestWriteHTML(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, WithHTML(true))

	id, err := w.Write(testRun("production", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatal(err)
	}

	page, err := os.ReadFile(filepath.Join(dir, id+".html"))
	if err != nil {
		t.Fatalf("HTML report missing: %v", err)
	}
	html := string(page)
	for _, want := range []string{"<title>" + id + "</title>", "<h1>Workflow production</h1>", "<table>", "<td>validate-data</td>", "FAILED"} {
		if !strings.Contains(html, want) {
			t.Errorf("expected %q in HTML:\n%s", want, html)
		}
	}
}

func TestRenderMarkdown(t *testing.T) {
	r := FromRun("id-1", testRun("production", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)))
	md := RenderMarkdown(r)

	for _, want := range []string{
		"# Workflow production",
		"- **Status:** FAILED",
		"| 2 | 1 | 1 | 1 |",
		"| 1 | validate-data | ok | 1000ms | validated 3 data file(s) |",
		`ERR \| missing module`,
	} {
		if !strings.Contains(md, want) {
			t.Errorf("expected %q in markdown:\n%s", want, md)
		}
	}

	r.Tasks = nil
	if !strings.Contains(RenderMarkdown(r), "No task ran.") {
		t.Error("empty runs must say so")
	}
}

func TestLoadMissing(t *testing.T) {
	w := NewWriter(t.TempDir())
	if _, err := w.Load("nope"); !errors.Is(err, ErrReportNotFound) {
		t.Errorf("expected ErrReportNotFound, got %v", err)
	}
}

func TestWriteRejectsUnsafeWorkflowName(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(filepath.Join(root, "reports"))
	end := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for _, name := range []string{"../escaped", "deploy/eu", ""} {
		if id, err := w.Write(testRun(name, end)); err == nil {
			t.Errorf("Write(%q) = %q, want error", name, id)
		}
	}

	var written []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			written = append(written, path)
		}
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(written) != 0 {
		t.Errorf("no file may be written for an unsafe name, got %v", written)
	}

	if _, err := w.Load("../escaped-20260301T100000Z-0000"); !errors.Is(err, ErrReportNotFound) {
		t.Errorf("Load outside the directory: expected ErrReportNotFound, got %v", err)
	}
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, wf := range []string{"staging", "production", "staging", "production-eu"} {
		if _, err := w.Write(testRun(wf, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatal(err)
		}
	}
	// Garbage in the directory is ignored
	if err := os.WriteFile(filepath.Join(dir, "notes.json"), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}

	all, err := w.List("")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 reports, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].CompletedAt.After(all[i-1].CompletedAt) {
			t.Errorf("reports not newest first: %v", all)
		}
	}

	prod, err := w.List("production")
	if err != nil {
		t.Fatal(err)
	}
	if len(prod) != 1 || prod[0].Workflow != "production" {
		t.Errorf("production filter returned %d reports", len(prod))
	}

	staging, _ := w.List("staging")
	if len(staging) != 2 || !staging[0].CompletedAt.After(staging[1].CompletedAt) {
		t.Errorf("unexpected staging list: %+v", staging)
	}
}

func TestListMissingDir(t *testing.T) {
	w := NewWriter(filepath.Join(t.TempDir(), "missing"))
	reports, err := w.List("")
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 0 {
		t.Errorf("expected no reports, got %d", len(reports))
	}
}

func TestStatusFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "status.json")

	if _, err := ReadStatus(path); !errors.Is(err, ErrNoStatus) {
		t.Fatalf("expected ErrNoStatus, got %v", err)
	}

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	pub := NewStatusFile(path)
	for i := 0; i < 3; i++ {
		snap := models.StatusSnapshot{
			CurrentWorkflow: "production",
			RunningTasks:    []string{fmt.Sprintf("task-%d", i)},
			CompletedTasks:  []string{},
			FailedTasks:     []string{},
			StartTime:       &start,
			ElapsedMs:       int64(i * 100),
		}
		if err := pub.Publish(snap); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	got, err := ReadStatus(path)
	if err != nil {
		t.Fatalf("ReadStatus: %v", err)
	}
	if got.CurrentWorkflow != "production" || got.RunningTasks[0] != "task-2" || got.ElapsedMs != 200 {
		t.Errorf("unexpected snapshot %+v", got)
	}
	if !got.StartTime.Equal(start) {
		t.Errorf("StartTime = %v", got.StartTime)
	}
}
