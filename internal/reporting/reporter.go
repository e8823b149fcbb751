// internal/reporting/reporter.go

// Package reporting renders terminal FlowReports to JSON or a human-readable
// text summary.
package reporting

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/flowpilot-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Reporter writes flow reports to an output.
type Reporter interface {
	// Write renders a single report.
	Write(report *schemas.FlowReport) error
	// Close finalizes the report and closes any underlying resources.
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a reporter for the given format and output path. An empty path
// or "stdout" writes to standard output.
func New(format, outputPath string) (Reporter, error) {
	var writer io.WriteCloser
	isStdOut := outputPath == "" || outputPath == "stdout"

	if isStdOut {
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	cleanup := func() {
		if !isStdOut {
			writer.Close()
		}
	}

	switch format {
	case "", "json":
		return &jsonReporter{w: writer}, nil
	case "text":
		return &textReporter{w: writer}, nil
	default:
		cleanup()
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// DefaultReportPath derives the output file name for a session inside the
// configured report directory.
func DefaultReportPath(outputDir, sessionID string) string {
	name := fmt.Sprintf("flow-report-%s-%s.json", time.Now().UTC().Format("20060102-150405"), sessionID)
	return filepath.Join(outputDir, name)
}

// -- JSON --

type jsonReporter struct {
	w io.WriteCloser
}

func (r *jsonReporter) Write(report *schemas.FlowReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal flow report: %w", err)
	}
	data = append(data, '\n')
	if _, err := r.w.Write(data); err != nil {
		return fmt.Errorf("failed to write flow report: %w", err)
	}
	return nil
}

func (r *jsonReporter) Close() error {
	return r.w.Close()
}

// -- Text --

type textReporter struct {
	w io.WriteCloser
}

func (r *textReporter) Write(report *schemas.FlowReport) error {
	var sb strings.Builder

	status := "FAILED"
	if report.Success {
		status = "COMPLETED"
	}

	fmt.Fprintf(&sb, "Session %s: %s\n", report.SessionID, status)
	fmt.Fprintf(&sb, "  Flow type:   %s\n", report.FlowType)
	fmt.Fprintf(&sb, "  Duration:    %s\n", (time.Duration(report.DurationMs) * time.Millisecond).Round(time.Millisecond))
	fmt.Fprintf(&sb, "  Questions:   %d/%d (%.1f%%)\n",
		report.Stats.QuestionsAnswered, report.Stats.TotalQuestions, report.Stats.CompletionPercentage)
	fmt.Fprintf(&sb, "  Steps:       %d/%d\n", report.Stats.CurrentStep, report.Stats.TotalSteps)
	fmt.Fprintf(&sb, "  Actions:     %d executed, %d retries\n", report.Stats.ActionsExecuted, report.Stats.RetryAttempts)
	fmt.Fprintf(&sb, "  Pages seen:  %d\n", report.Stats.PagesVisited)

	if report.FatalError != "" {
		fmt.Fprintf(&sb, "  Fatal error: %s\n", report.FatalError)
	}

	if len(report.Errors) > 0 {
		fmt.Fprintf(&sb, "  Errors (%d):\n", len(report.Errors))
		for _, e := range report.Errors {
			fmt.Fprintf(&sb, "    - %s\n", e)
		}
	}

	if v := report.FinalValidation; v != nil && len(v.IssuesDetected) > 0 {
		fmt.Fprintf(&sb, "  Issues:\n")
		for _, issue := range v.IssuesDetected {
			fmt.Fprintf(&sb, "    - %s\n", issue)
		}
	}

	if len(report.ActionHistory) > 0 {
		fmt.Fprintf(&sb, "  Recent actions:\n")
		for _, rec := range report.ActionHistory {
			mark := "ok"
			if !rec.Success {
				mark = "FAIL"
			}
			fmt.Fprintf(&sb, "    [%s] %-17s %s\n", mark, rec.Action, rec.Error)
		}
	}

	if _, err := io.WriteString(r.w, sb.String()); err != nil {
		return fmt.Errorf("failed to write flow report: %w", err)
	}
	return nil
}

func (r *textReporter) Close() error {
	return r.w.Close()
}
