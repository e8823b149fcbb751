package flow

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/flowpilot-cli/api/schemas"
)

func TestReportCarriesStateSnapshot(t *testing.T) {
	r := NewReporter()
	s := NewFlowState("sess-report")

	s.SetClassification(&schemas.FlowClassification{Type: schemas.FlowTypeMultiStep, EstimatedSteps: 3})
	s.UpdateFromObservation(&schemas.PageAnalysis{
		FormData: schemas.FormData{TotalQuestions: 6, AnsweredQuestions: 6},
	})
	s.RecordAction(schemas.ActionRecord{Action: schemas.ActionSubmit, Success: true})
	s.SetValidation(&schemas.Validation{QuestionsProgress: 100})

	report := r.Report(s, true)

	require.NotNil(t, report)
	assert.True(t, report.Success)
	assert.Equal(t, "sess-report", report.SessionID)
	assert.Equal(t, schemas.FlowTypeMultiStep, report.FlowType)
	assert.Equal(t, 6, report.Stats.QuestionsAnswered)
	require.NotNil(t, report.FinalValidation)
	assert.InDelta(t, 100.0, report.FinalValidation.QuestionsProgress, 0.001)
	assert.Empty(t, report.FatalError)
}

func TestReportTruncatesActionHistory(t *testing.T) {
	r := NewReporter()
	s := NewFlowState("sess-report")

	for i := 0; i < 25; i++ {
		s.RecordAction(schemas.ActionRecord{Action: schemas.ActionWait})
	}

	report := r.Report(s, false)
	assert.Len(t, report.ActionHistory, reportHistoryLimit)
	// The full count survives in the stats even though the history is cut.
	assert.Equal(t, 25, report.Stats.ActionsExecuted)
}

func TestErrorReportCarriesPartialProgress(t *testing.T) {
	r := NewReporter()
	s := NewFlowState("sess-report")

	s.RecordAction(schemas.ActionRecord{Action: schemas.ActionAnswerQuestions, Success: true})
	s.AppendError("mid-flight failure")

	report := r.ErrorReport(s, errors.New("orchestration failure: boom"))

	require.NotNil(t, report)
	assert.False(t, report.Success)
	assert.Equal(t, "orchestration failure: boom", report.FatalError)
	assert.Equal(t, 1, report.Stats.ActionsExecuted)
	assert.Contains(t, report.Errors, "mid-flight failure")
}

// Downstream consumers parse the report by field name; the JSON keys are a
// wire contract.
func TestReportWireFieldNames(t *testing.T) {
	r := NewReporter()
	s := NewFlowState("sess-wire")
	s.SetValidation(&schemas.Validation{})

	raw, err := json.Marshal(r.Report(s, true))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	for _, key := range []string{
		"success", "sessionId", "durationMs", "stats", "flowType",
		"errors", "actionHistory", "finalValidation",
	} {
		assert.Contains(t, decoded, key)
	}

	stats, ok := decoded["stats"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{
		"currentStep", "totalSteps", "questionsAnswered", "totalQuestions",
		"completionPercentage", "pagesVisited", "actionsExecuted",
		"errorsEncountered", "retryAttempts",
	} {
		assert.Contains(t, stats, key)
	}
}
