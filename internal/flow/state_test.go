package flow

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/flowpilot-cli/api/schemas"
)

func TestPageHistoryEvictsBeyondBound(t *testing.T) {
	s := NewFlowState("sess")

	for i := 0; i < 15; i++ {
		s.RecordVisit(schemas.PageVisit{URL: fmt.Sprintf("https://example.com/p/%d", i), Timestamp: time.Now()})
	}

	assert.Equal(t, maxPageHistory, s.PagesVisited())
}

func TestActionHistoryGrowsUnbounded(t *testing.T) {
	s := NewFlowState("sess")

	for i := 0; i < 30; i++ {
		s.RecordAction(schemas.ActionRecord{Action: schemas.ActionWait, Success: true})
	}

	assert.Equal(t, 30, s.ActionsExecuted())
	assert.Len(t, s.TailActions(10), 10)
	assert.Len(t, s.RecentActions(5), 5)
}

func TestRetryCounterIncrementsAndResets(t *testing.T) {
	s := NewFlowState("sess")

	s.UpdateFromResult(&schemas.ActionResult{Success: false, Error: "boom"})
	s.UpdateFromResult(&schemas.ActionResult{Success: false, Error: "boom"})
	assert.Equal(t, 2, s.RetryAttempts())

	s.UpdateFromResult(&schemas.ActionResult{Success: true})
	assert.Equal(t, 0, s.RetryAttempts())
}

func TestCompletionPercentageClampedToFullRange(t *testing.T) {
	s := NewFlowState("sess")

	s.UpdateFromObservation(&schemas.PageAnalysis{
		FormData: schemas.FormData{TotalQuestions: 4, AnsweredQuestions: 1},
	})
	assert.InDelta(t, 25.0, s.CompletionPercentage(), 0.001)

	// Answer counts from results accumulate but never exceed the total.
	s.UpdateFromResult(&schemas.ActionResult{Success: true, QuestionsAnswered: 10})
	assert.Equal(t, 4, s.QuestionsAnswered())
	assert.InDelta(t, 100.0, s.CompletionPercentage(), 0.001)
}

func TestClassificationAppliesOnlyOnce(t *testing.T) {
	s := NewFlowState("sess")

	s.SetClassification(&schemas.FlowClassification{
		Type:           schemas.FlowTypeMultiStep,
		Pattern:        "wizard",
		EstimatedSteps: 4,
	})
	require.Equal(t, schemas.FlowTypeMultiStep, s.FlowType())
	require.Equal(t, 4, s.TotalSteps())

	// A second classification must not overwrite the first.
	s.SetClassification(&schemas.FlowClassification{Type: schemas.FlowTypeSinglePage, EstimatedSteps: 1})
	assert.Equal(t, schemas.FlowTypeMultiStep, s.FlowType())
	assert.Equal(t, 4, s.TotalSteps())
	assert.Equal(t, "wizard", s.ExpectedPattern())
}

func TestNegativeStepFlooredAtZero(t *testing.T) {
	s := NewFlowState("sess")

	step := -3
	s.UpdateFromResult(&schemas.ActionResult{Success: true, NewStep: &step})
	assert.Equal(t, 0, s.CurrentStep())
}

func TestResultErrorsAccumulate(t *testing.T) {
	s := NewFlowState("sess")

	s.UpdateFromResult(&schemas.ActionResult{
		Success:     false,
		Error:       "click failed",
		ErrorsFound: []string{"Field is required", "Invalid email"},
	})

	errs := s.Errors()
	require.Len(t, errs, 3)
	assert.Equal(t, "click failed", errs[0])
	assert.Equal(t, 3, s.ErrorsEncountered())
}

func TestRecentActionsReturnsTailInOrder(t *testing.T) {
	s := NewFlowState("sess")

	sequence := []schemas.DecisionAction{
		schemas.ActionAnswerQuestions,
		schemas.ActionProceedNext,
		schemas.ActionAnswerQuestions,
		schemas.ActionSubmit,
	}
	for _, a := range sequence {
		s.RecordAction(schemas.ActionRecord{Action: a})
	}

	recent := s.RecentActions(2)
	require.Len(t, recent, 2)
	assert.Equal(t, schemas.ActionAnswerQuestions, recent[0])
	assert.Equal(t, schemas.ActionSubmit, recent[1])

	// Asking for more than exists returns everything.
	assert.Len(t, s.RecentActions(10), 4)
}

func TestStatsSnapshotMatchesCounters(t *testing.T) {
	s := NewFlowState("sess")

	s.UpdateFromObservation(&schemas.PageAnalysis{
		FormData: schemas.FormData{TotalQuestions: 5, AnsweredQuestions: 2},
	})
	s.RecordVisit(schemas.PageVisit{URL: testURL})
	s.RecordAction(schemas.ActionRecord{Action: schemas.ActionAnswerQuestions, Success: true})

	stats := s.Stats()
	assert.Equal(t, 5, stats.TotalQuestions)
	assert.Equal(t, 2, stats.QuestionsAnswered)
	assert.Equal(t, 1, stats.PagesVisited)
	assert.Equal(t, 1, stats.ActionsExecuted)
	assert.InDelta(t, 40.0, stats.CompletionPercentage, 0.001)
}

func TestBuildDecisionContextWindows(t *testing.T) {
	s := NewFlowState("sess-ctx")

	for i := 0; i < 8; i++ {
		s.RecordAction(schemas.ActionRecord{Action: schemas.ActionWait})
		s.AppendError(fmt.Sprintf("error %d", i))
	}
	page := surveyPage(testURL, []schemas.Question{textQuestion(0, false)})

	dc := BuildDecisionContext(s, page)

	assert.Equal(t, "sess-ctx", dc.SessionID)
	assert.Same(t, page, dc.Page)
	assert.Len(t, dc.RecentActions, recentActionWindow)
	require.Len(t, dc.RecentErrors, recentErrorWindow)
	assert.Equal(t, "error 7", dc.RecentErrors[recentErrorWindow-1])
	assert.GreaterOrEqual(t, dc.ElapsedMs, int64(0))
}
