package reporting

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/flowpilot-cli/api/schemas"
)

func sampleReport() *schemas.FlowReport {
	return &schemas.FlowReport{
		Success:    true,
		SessionID:  "sess-render",
		DurationMs: 61500,
		FlowType:   schemas.FlowTypeMultiStep,
		Stats: schemas.FlowStats{
			CurrentStep:          3,
			TotalSteps:           3,
			QuestionsAnswered:    9,
			TotalQuestions:       9,
			CompletionPercentage: 100,
			ActionsExecuted:      12,
			PagesVisited:         3,
		},
		Errors: []string{},
		ActionHistory: []schemas.ActionRecord{
			{Action: schemas.ActionAnswerQuestions, Success: true},
			{Action: schemas.ActionSubmit, Success: true},
		},
	}
}

func TestJSONReporterWritesParsableOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")

	r, err := New("json", path)
	require.NoError(t, err)
	require.NoError(t, r.Write(sampleReport()))
	require.NoError(t, r.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded schemas.FlowReport
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.Success)
	assert.Equal(t, "sess-render", decoded.SessionID)
	assert.Equal(t, 9, decoded.Stats.QuestionsAnswered)
}

func TestTextReporterRendersSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")

	r, err := New("text", path)
	require.NoError(t, err)
	require.NoError(t, r.Write(sampleReport()))
	require.NoError(t, r.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, "Session sess-render: COMPLETED")
	assert.Contains(t, out, "9/9")
	assert.Contains(t, out, "multi_step")
	assert.Contains(t, out, "SUBMIT")
}

func TestTextReporterMarksFailures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")

	report := sampleReport()
	report.Success = false
	report.FatalError = "orchestration failure: boom"
	report.ActionHistory = []schemas.ActionRecord{
		{Action: schemas.ActionSubmit, Success: false, Error: "No submit button found"},
	}

	r, err := New("text", path)
	require.NoError(t, err)
	require.NoError(t, r.Write(report))
	require.NoError(t, r.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "Fatal error: orchestration failure: boom")
	assert.Contains(t, out, "[FAIL]")
	assert.Contains(t, out, "No submit button found")
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := New("xml", "")
	assert.Error(t, err)
}

func TestNewDefaultsToJSONOnStdout(t *testing.T) {
	r, err := New("", "stdout")
	require.NoError(t, err)
	assert.IsType(t, &jsonReporter{}, r)
	// Closing a stdout-backed reporter must not close stdout itself.
	assert.NoError(t, r.Close())
}

func TestDefaultReportPathShape(t *testing.T) {
	path := DefaultReportPath("reports", "abc123")

	assert.Equal(t, "reports", filepath.Dir(path))
	base := filepath.Base(path)
	assert.True(t, strings.HasPrefix(base, "flow-report-"))
	assert.True(t, strings.HasSuffix(base, "-abc123.json"))
}
