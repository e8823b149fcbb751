package schemas

import (
	"context"
)

// -- External collaborator interfaces --

// PageObserver produces an immutable PageAnalysis snapshot of the current
// page on demand. Implementations must return within a bounded time or fail
// with an error; the orchestrator treats observation failure as an ordinary
// recoverable condition, never as fatal.
type PageObserver interface {
	Observe(ctx context.Context) (*PageAnalysis, error)
}

// DecisionOracle maps serialized session context to structured directives.
// Adapters may return errors normally; the flow layer substitutes
// deterministic fallbacks and never propagates an oracle failure.
type DecisionOracle interface {
	// Decide chooses the next action for the current iteration.
	Decide(ctx context.Context, dc *DecisionContext) (*Decision, error)
	// Classify predicts the flow's overall shape during initialization.
	Classify(ctx context.Context, dc *DecisionContext) (*FlowClassification, error)
	// Recover produces a directive after an action failure.
	Recover(ctx context.Context, rc *RecoveryContext) (*RecoveryDirective, error)
	// AnswerQuestion generates an answer for a single form question.
	AnswerQuestion(ctx context.Context, q Question, pageContext string) (*Answer, error)
}

// InteractionSurface is the low-level UI primitive layer consumed by action
// handlers. All methods respect context cancellation.
type InteractionSurface interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	SelectOption(ctx context.Context, selector, value string) error
	Back(ctx context.Context) error
	WaitForIdle(ctx context.Context) error
	WaitMs(ctx context.Context, ms int) error
	Screenshot(ctx context.Context) ([]byte, error)
	// VisibleErrorText scrapes text from visible error-indicator elements.
	VisibleErrorText(ctx context.Context) ([]string, error)
	CurrentURL(ctx context.Context) (string, error)
}

// RedirectHandler deals with clicks whose navigation may open a new browser
// context (target=_blank, window.open). The implementation adopts the new
// target so subsequent observations see the right page.
type RedirectHandler interface {
	HandleRedirectClick(ctx context.Context, selector string) error
}

// SessionSink receives per-iteration telemetry. Emit is fire-and-forget:
// it must never block the control loop for long and its failures are only
// logged, never surfaced.
type SessionSink interface {
	Emit(ctx context.Context, rec *SessionRecord)
	Close() error
}

// -- LLM client schemas and interface --

// ModelTier selects a model by a speed/capability preference.
type ModelTier string

const (
	TierFast     ModelTier = "fast"
	TierPowerful ModelTier = "powerful"
)

// GenerationOptions controls the text generation process.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`
	ForceJSONFormat bool    `json:"force_json_format"`
	TopP            float64 `json:"top_p"`
	TopK            int     `json:"top_k"`
}

// GenerationRequest is a complete request to the LLM.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"`
	UserPrompt   string            `json:"user_prompt"`
	Tier         ModelTier         `json:"tier"`
	Options      GenerationOptions `json:"options"`
}

// LLMClient abstracts the underlying model provider.
type LLMClient interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	Close() error
}
