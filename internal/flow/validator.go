// internal/flow/validator.go
package flow

import (
	"time"

	"github.com/xkilldash9x/flowpilot-cli/api/schemas"
)

const (
	// stuckWindow is how many trailing actions the stuck-state heuristic
	// examines; stuckDistinctMax is the variety threshold at or below which
	// the session is flagged.
	stuckWindow      = 5
	stuckDistinctMax = 2

	defaultTimeBudget = 10 * time.Minute
)

// Validator inspects recent history for stalled or overlong sessions. Its
// verdicts are advisory: they surface in the final report but never halt the
// loop on their own.
type Validator struct {
	timeBudget time.Duration
}

// NewValidator builds a Validator; a non-positive budget falls back to the
// ten-minute default.
func NewValidator(timeBudget time.Duration) *Validator {
	if timeBudget <= 0 {
		timeBudget = defaultTimeBudget
	}
	return &Validator{timeBudget: timeBudget}
}

// Validate produces the per-iteration verdict. Pure function of the state.
func (v *Validator) Validate(state *FlowState) *schemas.Validation {
	verdict := &schemas.Validation{
		QuestionsProgress: state.CompletionPercentage(),
		TimeElapsedMs:     state.Elapsed().Milliseconds(),
		Timestamp:         time.Now().UTC(),
	}

	if total := state.TotalSteps(); total > 0 {
		verdict.StepsProgress = float64(state.CurrentStep()) / float64(total) * 100
	}

	if isStuck(state.RecentActions(stuckWindow)) {
		verdict.IssuesDetected = append(verdict.IssuesDetected, msgStuckState)
	}

	if state.Elapsed() > v.timeBudget {
		verdict.IssuesDetected = append(verdict.IssuesDetected, msgTimeBudget)
	}

	return verdict
}

// isStuck reports whether the trailing window shows too little action
// variety. A healthy flow alternates between answering, proceeding and
// waiting; one or two repeated actions signal the oracle or the page is
// spinning in place.
func isStuck(recent []schemas.DecisionAction) bool {
	if len(recent) < stuckWindow {
		return false
	}

	distinct := map[schemas.DecisionAction]struct{}{}
	for _, a := range recent {
		distinct[a] = struct{}{}
	}
	return len(distinct) <= stuckDistinctMax
}
