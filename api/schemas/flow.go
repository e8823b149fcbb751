// api/schemas/flow.go
package schemas

import (
	"time"
)

// FlowType categorizes the overall shape of the interactive process being
// automated, as classified by the Decision Oracle during initialization.
type FlowType string

const (
	FlowTypeSinglePage FlowType = "single_page" // All questions on one page, one submit.
	FlowTypeMultiStep  FlowType = "multi_step"  // A wizard with next/previous navigation.
	FlowTypePaginated  FlowType = "paginated"   // Questions spread over numbered pages.
	FlowTypeUnknown    FlowType = "unknown"     // Classification failed or was ambiguous.
)

// DecisionAction is the closed set of actions the Decision Oracle may direct
// the orchestrator to take. Values outside this set are coerced to
// ActionAnalyzeDeeper before dispatch.
type DecisionAction string

const (
	ActionAnswerQuestions DecisionAction = "ANSWER_QUESTIONS" // Fill in unanswered questions.
	ActionProceedNext     DecisionAction = "PROCEED_NEXT"     // Click the "next" navigation button.
	ActionSubmit          DecisionAction = "SUBMIT"           // Click the final submit button.
	ActionComplete        DecisionAction = "COMPLETE"         // The flow is finished; terminal no-op.
	ActionWait            DecisionAction = "WAIT"             // Pause to let the page settle.
	ActionAnalyzeError    DecisionAction = "ANALYZE_ERROR"    // Scrape visible error indicators.
	ActionAnalyzeDeeper   DecisionAction = "ANALYZE_DEEPER"   // Capture a diagnostic screenshot.
	ActionGoBack          DecisionAction = "GO_BACK"          // Navigate one step backward.
)

// KnownActions enumerates every valid DecisionAction. The Action Executor's
// dispatch table is built over exactly this set.
var KnownActions = []DecisionAction{
	ActionAnswerQuestions,
	ActionProceedNext,
	ActionSubmit,
	ActionComplete,
	ActionWait,
	ActionAnalyzeError,
	ActionAnalyzeDeeper,
	ActionGoBack,
}

// IsKnownAction reports whether a raw action tag belongs to the closed action set.
func IsKnownAction(a DecisionAction) bool {
	for _, known := range KnownActions {
		if a == known {
			return true
		}
	}
	return false
}

// ButtonAction is the inferred semantic role of a clickable navigation element.
type ButtonAction string

const (
	ButtonNext     ButtonAction = "next"
	ButtonSubmit   ButtonAction = "submit"
	ButtonPrevious ButtonAction = "previous"
	ButtonSave     ButtonAction = "save"
	ButtonSkip     ButtonAction = "skip"
	ButtonUnknown  ButtonAction = "unknown"
)

// QuestionType mirrors the question taxonomy of the form being automated.
type QuestionType string

const (
	QuestionSingleChoice   QuestionType = "single-choice"
	QuestionMultipleChoice QuestionType = "multiple-choice"
	QuestionYesNo          QuestionType = "yes-no"
	QuestionText           QuestionType = "text"
	QuestionRating         QuestionType = "rating"
)

// QuestionOption is one selectable option of a choice question.
type QuestionOption struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Selector string `json:"selector,omitempty"`
}

// Question describes a single form question as extracted by the Page Observer.
type Question struct {
	Index    int              `json:"index"`
	Text     string           `json:"text"`
	Type     QuestionType     `json:"type"`
	Selector string           `json:"selector"`
	Options  []QuestionOption `json:"options,omitempty"`
	Required bool             `json:"required"`
	Answered bool             `json:"answered"`
}

// Answer is the oracle's response to a single question, including the
// confidence it assigns to its own choice.
type Answer struct {
	QuestionIndex int     `json:"question_index"`
	Value         string  `json:"value"`
	Confidence    float64 `json:"confidence"`
	Reasoning     string  `json:"reasoning,omitempty"`
}

// ButtonInfo describes a clickable element found in the page's navigation area.
type ButtonInfo struct {
	Selector string       `json:"selector"`
	Text     string       `json:"text"`
	Action   ButtonAction `json:"action"`
	Visible  bool         `json:"visible"`
}

// FormData summarizes the form content of an observed page.
type FormData struct {
	TotalQuestions    int        `json:"total_questions"`
	AnsweredQuestions int        `json:"answered_questions"`
	CompletionRate    float64    `json:"completion_rate"`
	Questions         []Question `json:"questions"`
}

// Unanswered returns the questions that have not been answered yet, in page order.
func (f FormData) Unanswered() []Question {
	var out []Question
	for _, q := range f.Questions {
		if !q.Answered {
			out = append(out, q)
		}
	}
	return out
}

// NavigationElements summarizes the navigation affordances of an observed page.
type NavigationElements struct {
	HasNext     bool         `json:"has_next"`
	HasSubmit   bool         `json:"has_submit"`
	HasPrevious bool         `json:"has_previous"`
	Buttons     []ButtonInfo `json:"buttons"`
}

// FirstButton returns the first button tagged with the given semantic action.
func (n NavigationElements) FirstButton(action ButtonAction) (ButtonInfo, bool) {
	for _, b := range n.Buttons {
		if b.Action == action {
			return b, true
		}
	}
	return ButtonInfo{}, false
}

// PageInfo carries page-level metadata that is not form specific.
type PageInfo struct {
	Title         string `json:"title"`
	HasErrorText  bool   `json:"has_error_text"`
	BodyTextChars int    `json:"body_text_chars"`
}

// PageAnalysis is an immutable snapshot of observable page state, produced
// fresh by the Page Observer on every loop iteration.
type PageAnalysis struct {
	URL                string             `json:"url"`
	Timestamp          time.Time          `json:"timestamp"`
	PageInfo           PageInfo           `json:"page_info"`
	FormData           FormData           `json:"form_data"`
	NavigationElements NavigationElements `json:"navigation_elements"`
}

// DecisionContext is the serialized view of the current page and session
// state handed to the Decision Oracle. It is a pure function of its inputs.
type DecisionContext struct {
	SessionID            string        `json:"session_id"`
	Page                 *PageAnalysis `json:"page"`
	FlowType             FlowType      `json:"flow_type"`
	CurrentStep          int           `json:"current_step"`
	TotalSteps           int           `json:"total_steps"`
	QuestionsAnswered    int           `json:"questions_answered"`
	TotalQuestions       int           `json:"total_questions"`
	CompletionPercentage float64       `json:"completion_percentage"`
	RecentActions        []string      `json:"recent_actions"`
	RecentErrors         []string      `json:"recent_errors"`
	ElapsedMs            int64         `json:"elapsed_ms"`
}

// RiskLevel grades the oracle's assessment of how detectable or destructive
// an action might be.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Priority grades how urgent the oracle considers its chosen action.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Decision is the oracle's directive for the next step of the flow.
type Decision struct {
	Action            DecisionAction `json:"action"`
	Reasoning         string         `json:"reasoning,omitempty"`
	Confidence        float64        `json:"confidence"`
	Priority          Priority       `json:"priority,omitempty"`
	ExpectedOutcome   string         `json:"expected_outcome,omitempty"`
	QuestionsToAnswer []int          `json:"questions_to_answer,omitempty"`
	ButtonToClick     string         `json:"button_to_click,omitempty"`
	WaitTimeMs        int            `json:"wait_time_ms,omitempty"`
	FallbackAction    DecisionAction `json:"fallback_action,omitempty"`
	RiskAssessment    RiskLevel      `json:"risk_assessment,omitempty"`
}

// FallbackDecision is the deterministic substitute used whenever the oracle
// fails to produce a parsable Decision. Oracle failure is never fatal.
func FallbackDecision() *Decision {
	return &Decision{
		Action:     ActionAnalyzeDeeper,
		Reasoning:  "oracle unavailable; capturing diagnostics",
		Confidence: 0.1,
	}
}

// FlowClassification is the oracle's prediction of the flow's overall shape,
// produced once during initialization.
type FlowClassification struct {
	Type               FlowType `json:"type"`
	Pattern            string   `json:"pattern"`
	EstimatedSteps     int      `json:"estimated_steps"`
	EstimatedQuestions int      `json:"estimated_questions"`
	Complexity         string   `json:"complexity"`
}

// ActionResult is the standardized outcome of one executed action.
type ActionResult struct {
	Success           bool           `json:"success"`
	Action            DecisionAction `json:"action"`
	Error             string         `json:"error,omitempty"`
	ErrorCode         string         `json:"error_code,omitempty"`
	DurationMs        int64          `json:"duration_ms"`
	Decision          *Decision      `json:"decision,omitempty"`
	QuestionsAnswered int            `json:"questions_answered,omitempty"`
	ButtonClicked     string         `json:"button_clicked,omitempty"`
	NewStep           *int           `json:"new_step,omitempty"`
	Completed         bool           `json:"completed,omitempty"`
	Submitted         bool           `json:"submitted,omitempty"`
	ErrorsFound       []string       `json:"errors_found,omitempty"`
	ScreenshotBytes   int            `json:"screenshot_bytes,omitempty"`
}

// Failed reports whether the result carries an action-level error.
func (r *ActionResult) Failed() bool {
	return r != nil && r.Error != ""
}

// PageVisit is one bounded pageHistory entry.
type PageVisit struct {
	URL           string    `json:"url"`
	Timestamp     time.Time `json:"timestamp"`
	QuestionCount int       `json:"question_count"`
	AnsweredCount int       `json:"answered_count"`
}

// ActionRecord is one actionHistory entry; the sole source of truth for
// stuck-state detection and report history.
type ActionRecord struct {
	Action    DecisionAction `json:"action"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	URL       string         `json:"url"`
}

// Validation is the Progress Validator's per-iteration verdict. It is
// overwritten each iteration, never accumulated.
type Validation struct {
	QuestionsProgress float64   `json:"questions_progress"`
	StepsProgress     float64   `json:"steps_progress"`
	TimeElapsedMs     int64     `json:"time_elapsed_ms"`
	IssuesDetected    []string  `json:"issues_detected"`
	Timestamp         time.Time `json:"timestamp"`
}

// RecoveryContext is the serialized failure context handed to the oracle
// when an action fails.
type RecoveryContext struct {
	SessionID     string         `json:"session_id"`
	FailedAction  DecisionAction `json:"failed_action"`
	ErrorMessage  string         `json:"error_message"`
	RetryAttempts int            `json:"retry_attempts"`
	MaxRetries    int            `json:"max_retries"`
	PageHasError  bool           `json:"page_has_error"`
	CurrentStep   int            `json:"current_step"`
	URL           string         `json:"url"`
}

// RecoveryDirective is the oracle's guidance after an action failure. The
// coordinator only reports whether the outer loop may continue; it never
// re-invokes the failed handler itself.
type RecoveryDirective struct {
	CanContinue bool    `json:"can_continue"`
	Action      string  `json:"action"` // retry | skip | go_back | analyze | abort
	Reasoning   string  `json:"reasoning,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// FlowStats is the aggregate counter block of a FlowReport.
type FlowStats struct {
	CurrentStep          int     `json:"currentStep"`
	TotalSteps           int     `json:"totalSteps"`
	QuestionsAnswered    int     `json:"questionsAnswered"`
	TotalQuestions       int     `json:"totalQuestions"`
	CompletionPercentage float64 `json:"completionPercentage"`
	PagesVisited         int     `json:"pagesVisited"`
	ActionsExecuted      int     `json:"actionsExecuted"`
	ErrorsEncountered    int     `json:"errorsEncountered"`
	RetryAttempts        int     `json:"retryAttempts"`
}

// FlowReport is the terminal, immutable summary of one session. Its field
// names are wire stable; downstream consumers parse them verbatim.
type FlowReport struct {
	Success         bool           `json:"success"`
	SessionID       string         `json:"sessionId"`
	DurationMs      int64          `json:"durationMs"`
	Stats           FlowStats      `json:"stats"`
	FlowType        FlowType       `json:"flowType"`
	Errors          []string       `json:"errors"`
	ActionHistory   []ActionRecord `json:"actionHistory"`
	FinalValidation *Validation    `json:"finalValidation,omitempty"`
	FatalError      string         `json:"fatalError,omitempty"`
}

// SessionRecord is the fire-and-forget telemetry envelope emitted to the
// Session Sink after each iteration.
type SessionRecord struct {
	SessionID    string        `json:"session_id"`
	Iteration    int           `json:"iteration"`
	Timestamp    time.Time     `json:"timestamp"`
	PageAnalysis *PageAnalysis `json:"page_analysis,omitempty"`
	Decision     *Decision     `json:"decision,omitempty"`
	ActionResult *ActionResult `json:"action_result,omitempty"`
}
