// internal/flow/context.go
package flow

import (
	"github.com/xkilldash9x/flowpilot-cli/api/schemas"
)

const (
	recentActionWindow = 5
	recentErrorWindow  = 3
)

// BuildDecisionContext serializes the current page snapshot and session state
// for the oracle. It is a pure function of its inputs and mutates nothing.
func BuildDecisionContext(state *FlowState, page *schemas.PageAnalysis) *schemas.DecisionContext {
	dc := &schemas.DecisionContext{
		SessionID:            state.SessionID(),
		Page:                 page,
		FlowType:             state.FlowType(),
		CurrentStep:          state.CurrentStep(),
		TotalSteps:           state.TotalSteps(),
		QuestionsAnswered:    state.QuestionsAnswered(),
		TotalQuestions:       state.TotalQuestions(),
		CompletionPercentage: state.CompletionPercentage(),
		ElapsedMs:            state.Elapsed().Milliseconds(),
	}

	for _, a := range state.RecentActions(recentActionWindow) {
		dc.RecentActions = append(dc.RecentActions, string(a))
	}

	errs := state.Errors()
	if len(errs) > recentErrorWindow {
		errs = errs[len(errs)-recentErrorWindow:]
	}
	dc.RecentErrors = errs

	return dc
}
