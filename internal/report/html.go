package report

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// RenderMarkdown returns the run summary as a markdown document.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	status := "SUCCESS"
	switch {
	case r.Interrupted:
		status = "INTERRUPTED"
	case !r.OverallSuccess:
		status = "FAILED"
	}

	fmt.Fprintf(&sb, "# Workflow %s\n\n", escapeInline(r.Workflow))
	fmt.Fprintf(&sb, "- **Status:** %s\n", status)
	fmt.Fprintf(&sb, "- **Report:** `%s`\n", r.ID)
	fmt.Fprintf(&sb, "- **Completed:** %s\n", r.CompletedAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "- **Duration:** %dms\n", r.DurationMs)
	fmt.Fprintf(&sb, "- **Continue on error:** %t\n\n", r.Options.ContinueOnError)

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Total | Successful | Failed | Skipped |\n")
	sb.WriteString("|------:|-----------:|-------:|--------:|\n")
	fmt.Fprintf(&sb, "| %d | %d | %d | %d |\n\n", r.Summary.Total, r.Summary.Successful, r.Summary.Failed, r.Summary.Skipped)

	sb.WriteString("## Tasks\n\n")
	if len(r.Tasks) == 0 {
		sb.WriteString("No task ran.\n")
		return sb.String()
	}
	sb.WriteString("| # | Task | Result | Duration | Details |\n")
	sb.WriteString("|--:|------|--------|---------:|---------|\n")
	for i, t := range r.Tasks {
		result, details := "ok", t.Output
		if !t.Success {
			result, details = "**failed**", t.Error
		}
		fmt.Fprintf(&sb, "| %d | %s | %s | %dms | %s |\n", i+1, escapeCell(t.Name), result, t.DurationMs, escapeCell(details))
	}

	return sb.String()
}

// RenderHTML renders the markdown summary into a standalone HTML page.
func RenderHTML(r *Report) ([]byte, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(RenderMarkdown(r)), &body); err != nil {
		return nil, err
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>%s</title>\n", html.EscapeString(r.ID))
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}

// escapeCell makes text safe inside a single table cell.
func escapeCell(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.Join(strings.Fields(strings.ReplaceAll(s, "\n", " / ")), " ")
	s = strings.ReplaceAll(s, "|", `\|`)
	return escapeInline(s)
}

// escapeInline neutralises markdown emphasis and raw HTML.
func escapeInline(s string) string {
	replacer := strings.NewReplacer("*", `\*`, "_", `\_`, "`", "\\`", "<", "&lt;", ">", "&gt;")
	return replacer.Replace(s)
}
