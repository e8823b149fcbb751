// internal/flow/errors.go
package flow

// Error codes carried on ActionResult and surfaced in reports. These are
// wire-stable tags, not prose; the human-readable message lives alongside
// them in ActionResult.Error.
const (
	ErrCodeNoSubmitButton    = "NO_SUBMIT_BUTTON"
	ErrCodeNoNextButton      = "NO_NEXT_BUTTON"
	ErrCodeInteractionFailed = "INTERACTION_FAILED"
	ErrCodeObservationFailed = "OBSERVATION_FAILED"
	ErrCodeNoQuestions       = "NO_QUESTIONS_ANSWERED"
)

// Stable messages asserted by downstream consumers.
const (
	msgNoSubmitButton = "No submit button found"
	msgNoNextButton   = "No next button found"
	msgStuckState     = "Potential stuck state detected"
	msgTimeBudget     = "Session taking too long"
)
