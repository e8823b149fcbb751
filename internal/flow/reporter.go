// internal/flow/reporter.go
package flow

import (
	"github.com/xkilldash9x/flowpilot-cli/api/schemas"
)

// reportHistoryLimit caps how much action history a report carries; full
// history persistence is the session sink's concern, not the reporter's.
const reportHistoryLimit = 10

// Reporter builds the terminal summary from flow state. Reports are immutable
// once produced and their field names are wire stable.
type Reporter struct{}

// NewReporter builds a Reporter.
func NewReporter() *Reporter {
	return &Reporter{}
}

// Report assembles the terminal report for a run that ended through the
// normal loop exit.
func (r *Reporter) Report(state *FlowState, success bool) *schemas.FlowReport {
	return &schemas.FlowReport{
		Success:         success,
		SessionID:       state.SessionID(),
		DurationMs:      state.Elapsed().Milliseconds(),
		Stats:           state.Stats(),
		FlowType:        state.FlowType(),
		Errors:          state.Errors(),
		ActionHistory:   state.TailActions(reportHistoryLimit),
		FinalValidation: state.LastValidation(),
	}
}

// ErrorReport assembles the report for a run torn down by an unrecoverable
// orchestration error. Partial progress is carried, never discarded.
func (r *Reporter) ErrorReport(state *FlowState, err error) *schemas.FlowReport {
	report := r.Report(state, false)
	if err != nil {
		report.FatalError = err.Error()
	}
	return report
}
