// internal/flow/state.go

// Package flow implements the perceive-decide-act orchestration engine that
// drives a form or survey flow to completion: the control loop, its action
// dispatch table, bounded-retry and stuck-state detection, error recovery,
// and terminal reporting.
package flow

import (
	"time"

	"github.com/xkilldash9x/flowpilot-cli/api/schemas"
)

// maxPageHistory bounds the page visit ring; the oldest entry is evicted.
const maxPageHistory = 10

// FlowState is the mutable record of one session's progress. It is owned
// exclusively by a single Orchestrator and mutated only through its methods;
// concurrent sessions each own their own instance, so no locking is needed.
type FlowState struct {
	sessionID string
	startTime time.Time

	currentStep       int
	totalSteps        int
	questionsAnswered int
	totalQuestions    int

	// completionPercentage is derived from the question counters and always
	// kept in [0, 100].
	completionPercentage float64

	retryAttempts int

	errors   []string
	warnings []string

	pageHistory   []schemas.PageVisit
	actionHistory []schemas.ActionRecord

	flowType        schemas.FlowType
	expectedPattern string
	classified      bool

	lastValidation *schemas.Validation
}

// NewFlowState creates the state record for a fresh session.
func NewFlowState(sessionID string) *FlowState {
	return &FlowState{
		sessionID: sessionID,
		startTime: time.Now(),
		flowType:  schemas.FlowTypeUnknown,
	}
}

func (s *FlowState) SessionID() string    { return s.sessionID }
func (s *FlowState) StartTime() time.Time { return s.startTime }
func (s *FlowState) CurrentStep() int     { return s.currentStep }
func (s *FlowState) TotalSteps() int      { return s.totalSteps }
func (s *FlowState) QuestionsAnswered() int {
	return s.questionsAnswered
}
func (s *FlowState) TotalQuestions() int            { return s.totalQuestions }
func (s *FlowState) CompletionPercentage() float64  { return s.completionPercentage }
func (s *FlowState) RetryAttempts() int             { return s.retryAttempts }
func (s *FlowState) FlowType() schemas.FlowType     { return s.flowType }
func (s *FlowState) ExpectedPattern() string        { return s.expectedPattern }
func (s *FlowState) Elapsed() time.Duration         { return time.Since(s.startTime) }
func (s *FlowState) ActionsExecuted() int           { return len(s.actionHistory) }
func (s *FlowState) PagesVisited() int              { return len(s.pageHistory) }
func (s *FlowState) ErrorsEncountered() int         { return len(s.errors) }
func (s *FlowState) LastValidation() *schemas.Validation {
	return s.lastValidation
}

// Errors returns a copy of the accumulated error messages.
func (s *FlowState) Errors() []string {
	out := make([]string, len(s.errors))
	copy(out, s.errors)
	return out
}

// Warnings returns a copy of the accumulated warnings.
func (s *FlowState) Warnings() []string {
	out := make([]string, len(s.warnings))
	copy(out, s.warnings)
	return out
}

// SetClassification stores the oracle's flow-type prediction. It applies only
// once; later calls are ignored so the classification stays immutable.
func (s *FlowState) SetClassification(c *schemas.FlowClassification) {
	if s.classified || c == nil {
		return
	}
	s.classified = true
	s.flowType = c.Type
	s.expectedPattern = c.Pattern
	if c.EstimatedSteps > 0 {
		s.totalSteps = c.EstimatedSteps
	}
	if c.EstimatedQuestions > 0 && s.totalQuestions == 0 {
		s.totalQuestions = c.EstimatedQuestions
	}
}

// RecordVisit appends a page visit, evicting the oldest entry beyond the
// history bound.
func (s *FlowState) RecordVisit(v schemas.PageVisit) {
	s.pageHistory = append(s.pageHistory, v)
	if len(s.pageHistory) > maxPageHistory {
		s.pageHistory = s.pageHistory[len(s.pageHistory)-maxPageHistory:]
	}
}

// RecordAction appends an action record. The action history grows unbounded
// during a run; only the reporter truncates it.
func (s *FlowState) RecordAction(rec schemas.ActionRecord) {
	s.actionHistory = append(s.actionHistory, rec)
}

// RecentActions returns the action tags of the most recent n records, oldest
// first.
func (s *FlowState) RecentActions(n int) []schemas.DecisionAction {
	start := len(s.actionHistory) - n
	if start < 0 {
		start = 0
	}
	out := make([]schemas.DecisionAction, 0, len(s.actionHistory)-start)
	for _, rec := range s.actionHistory[start:] {
		out = append(out, rec.Action)
	}
	return out
}

// TailActions returns a copy of the last n full action records.
func (s *FlowState) TailActions(n int) []schemas.ActionRecord {
	start := len(s.actionHistory) - n
	if start < 0 {
		start = 0
	}
	out := make([]schemas.ActionRecord, len(s.actionHistory)-start)
	copy(out, s.actionHistory[start:])
	return out
}

// UpdateFromObservation refreshes the question counters from a fresh page
// snapshot.
func (s *FlowState) UpdateFromObservation(page *schemas.PageAnalysis) {
	if page == nil {
		return
	}
	if page.FormData.TotalQuestions > 0 {
		s.totalQuestions = page.FormData.TotalQuestions
		s.questionsAnswered = page.FormData.AnsweredQuestions
	}
	s.recomputeCompletion()
}

// UpdateFromResult applies an action outcome: a success resets the retry
// counter, a failure increments it. Step and question counters follow the
// result's action-specific fields.
func (s *FlowState) UpdateFromResult(res *schemas.ActionResult) {
	if res == nil {
		return
	}

	if res.Success {
		s.retryAttempts = 0
	} else {
		s.retryAttempts++
	}

	if res.QuestionsAnswered > 0 {
		s.questionsAnswered += res.QuestionsAnswered
		if s.questionsAnswered > s.totalQuestions && s.totalQuestions > 0 {
			s.questionsAnswered = s.totalQuestions
		}
	}

	if res.NewStep != nil {
		step := *res.NewStep
		if step < 0 {
			step = 0
		}
		s.currentStep = step
	}

	if res.Error != "" {
		s.AppendError(res.Error)
	}
	for _, e := range res.ErrorsFound {
		s.AppendError(e)
	}

	s.recomputeCompletion()
}

func (s *FlowState) recomputeCompletion() {
	if s.totalQuestions <= 0 {
		return
	}
	pct := float64(s.questionsAnswered) / float64(s.totalQuestions) * 100
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	s.completionPercentage = pct
}

// AppendError records an error message.
func (s *FlowState) AppendError(msg string) {
	if msg == "" {
		return
	}
	s.errors = append(s.errors, msg)
}

// AppendWarning records a warning.
func (s *FlowState) AppendWarning(msg string) {
	if msg == "" {
		return
	}
	s.warnings = append(s.warnings, msg)
}

// SetValidation overwrites the last validation verdict.
func (s *FlowState) SetValidation(v *schemas.Validation) {
	s.lastValidation = v
}

// Stats assembles the aggregate counter block for reporting.
func (s *FlowState) Stats() schemas.FlowStats {
	return schemas.FlowStats{
		CurrentStep:          s.currentStep,
		TotalSteps:           s.totalSteps,
		QuestionsAnswered:    s.questionsAnswered,
		TotalQuestions:       s.totalQuestions,
		CompletionPercentage: s.completionPercentage,
		PagesVisited:         len(s.pageHistory),
		ActionsExecuted:      len(s.actionHistory),
		ErrorsEncountered:    len(s.errors),
		RetryAttempts:        s.retryAttempts,
	}
}
