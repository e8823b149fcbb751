// internal/flow/executor.go
package flow

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/flowpilot-cli/api/schemas"
	"github.com/xkilldash9x/flowpilot-cli/internal/config"
)

// handlerFunc realizes one decision variant against the interaction surface.
// Handlers report failure through the ActionResult, never by panicking; any
// error inside a handler stays recoverable.
type handlerFunc func(ctx context.Context, decision *schemas.Decision, page *schemas.PageAnalysis) *schemas.ActionResult

// Executor is the dispatch table over the closed action set. Decisions whose
// action lies outside the known set are coerced to ANALYZE_DEEPER before
// dispatch rather than rejected.
type Executor struct {
	surface  schemas.InteractionSurface
	redirect schemas.RedirectHandler
	oracle   schemas.DecisionOracle
	state    *FlowState
	cfg      config.FlowConfig
	logger   *zap.Logger

	handlers map[schemas.DecisionAction]handlerFunc
}

// NewExecutor wires the dispatch table. redirect may be nil, in which case
// navigation clicks go through the plain surface.
func NewExecutor(
	surface schemas.InteractionSurface,
	redirect schemas.RedirectHandler,
	oracle schemas.DecisionOracle,
	state *FlowState,
	cfg config.FlowConfig,
	logger *zap.Logger,
) *Executor {
	e := &Executor{
		surface:  surface,
		redirect: redirect,
		oracle:   oracle,
		state:    state,
		cfg:      cfg,
		logger:   logger.Named("executor"),
	}

	e.handlers = map[schemas.DecisionAction]handlerFunc{
		schemas.ActionAnswerQuestions: e.handleAnswerQuestions,
		schemas.ActionProceedNext:     e.handleProceedNext,
		schemas.ActionSubmit:          e.handleSubmit,
		schemas.ActionComplete:        e.handleComplete,
		schemas.ActionWait:            e.handleWait,
		schemas.ActionAnalyzeError:    e.handleAnalyzeError,
		schemas.ActionAnalyzeDeeper:   e.handleAnalyzeDeeper,
		schemas.ActionGoBack:          e.handleGoBack,
	}

	return e
}

// Execute dispatches a decision to its handler and stamps the result with
// the action and duration.
func (e *Executor) Execute(ctx context.Context, decision *schemas.Decision, page *schemas.PageAnalysis) *schemas.ActionResult {
	action := decision.Action
	if !schemas.IsKnownAction(action) {
		e.logger.Warn("Decision carries an unknown action; coercing to diagnostics.",
			zap.String("action", string(action)))
		action = schemas.ActionAnalyzeDeeper
	}

	start := time.Now()
	result := e.handlers[action](ctx, decision, page)
	result.Action = action
	result.Decision = decision
	result.DurationMs = time.Since(start).Milliseconds()

	e.logger.Debug("Action executed",
		zap.String("action", string(action)),
		zap.Bool("success", result.Success),
		zap.Int64("duration_ms", result.DurationMs),
		zap.String("error", result.Error),
	)
	return result
}

// failure builds a failed result carrying a recoverable error.
func failure(code, msg string) *schemas.ActionResult {
	return &schemas.ActionResult{Success: false, Error: msg, ErrorCode: code}
}

// -- handlers --

// handleAnswerQuestions answers the questions the decision names, or the
// first batch of unanswered ones when it names none. Each answer comes from
// the oracle and is applied through the interaction surface.
func (e *Executor) handleAnswerQuestions(ctx context.Context, decision *schemas.Decision, page *schemas.PageAnalysis) *schemas.ActionResult {
	if page == nil {
		return failure(ErrCodeNoQuestions, "no page snapshot to answer questions on")
	}

	questions := e.selectQuestions(decision, page)
	if len(questions) == 0 {
		return failure(ErrCodeNoQuestions, "no unanswered questions available")
	}

	pageContext := fmt.Sprintf("Page: %s. Progress: %d of %d questions answered.",
		page.PageInfo.Title, page.FormData.AnsweredQuestions, page.FormData.TotalQuestions)

	answered := 0
	var lastErr error
	for _, q := range questions {
		if err := ctx.Err(); err != nil {
			break
		}

		answer, err := e.oracle.AnswerQuestion(ctx, q, pageContext)
		if err != nil || answer == nil {
			e.logger.Warn("Answer generation failed; skipping question.",
				zap.Int("index", q.Index), zap.Error(err))
			lastErr = err
			continue
		}

		if err := e.applyAnswer(ctx, q, answer); err != nil {
			e.logger.Warn("Failed to apply answer.",
				zap.Int("index", q.Index),
				zap.String("question", clipText(q.Text, 80)),
				zap.Error(err))
			lastErr = err
			continue
		}
		answered++
	}

	if answered == 0 {
		msg := "failed to answer any question"
		if lastErr != nil {
			msg = fmt.Sprintf("%s: %v", msg, lastErr)
		}
		return failure(ErrCodeNoQuestions, msg)
	}

	return &schemas.ActionResult{Success: true, QuestionsAnswered: answered}
}

// selectQuestions resolves the decision's indices against the page, falling
// back to the first unanswered batch.
func (e *Executor) selectQuestions(decision *schemas.Decision, page *schemas.PageAnalysis) []schemas.Question {
	all := page.FormData.Questions

	if len(decision.QuestionsToAnswer) > 0 {
		var out []schemas.Question
		for _, idx := range decision.QuestionsToAnswer {
			if idx >= 0 && idx < len(all) {
				out = append(out, all[idx])
			}
		}
		return out
	}

	batch := e.cfg.AnswerBatchSize
	if batch <= 0 {
		batch = 3
	}
	unanswered := page.FormData.Unanswered()
	if len(unanswered) > batch {
		unanswered = unanswered[:batch]
	}
	return unanswered
}

// applyAnswer realizes one answer against the page.
func (e *Executor) applyAnswer(ctx context.Context, q schemas.Question, answer *schemas.Answer) error {
	switch q.Type {
	case schemas.QuestionText:
		return e.surface.Fill(ctx, q.Selector, answer.Value)

	case schemas.QuestionRating:
		if opt, ok := matchOption(q.Options, answer.Value); ok {
			return e.clickOption(ctx, q, opt)
		}
		return e.surface.Fill(ctx, q.Selector, answer.Value)

	case schemas.QuestionSingleChoice, schemas.QuestionMultipleChoice, schemas.QuestionYesNo:
		opt, ok := matchOption(q.Options, answer.Value)
		if !ok {
			return fmt.Errorf("answer '%s' matches no option of question %d", clipText(answer.Value, 40), q.Index)
		}
		return e.clickOption(ctx, q, opt)

	default:
		return e.surface.Fill(ctx, q.Selector, answer.Value)
	}
}

// clickOption clicks the option's own element when it has one; options
// without a selector belong to a <select> and go through SelectOption.
func (e *Executor) clickOption(ctx context.Context, q schemas.Question, opt schemas.QuestionOption) error {
	if opt.Selector != "" {
		return e.surface.Click(ctx, opt.Selector)
	}
	return e.surface.SelectOption(ctx, q.Selector, opt.Value)
}

// handleProceedNext clicks the first button tagged "next".
func (e *Executor) handleProceedNext(ctx context.Context, _ *schemas.Decision, page *schemas.PageAnalysis) *schemas.ActionResult {
	btn, ok := navButton(page, schemas.ButtonNext)
	if !ok {
		return failure(ErrCodeNoNextButton, msgNoNextButton)
	}

	if err := e.navigationClick(ctx, btn.Selector); err != nil {
		return failure(ErrCodeInteractionFailed, fmt.Sprintf("failed to click next button: %v", err))
	}

	step := e.state.CurrentStep() + 1
	return &schemas.ActionResult{Success: true, ButtonClicked: btn.Selector, NewStep: &step}
}

// handleSubmit clicks the first button tagged "submit". A missing submit
// button is a recoverable failure, not a fatal one.
func (e *Executor) handleSubmit(ctx context.Context, _ *schemas.Decision, page *schemas.PageAnalysis) *schemas.ActionResult {
	btn, ok := navButton(page, schemas.ButtonSubmit)
	if !ok {
		return failure(ErrCodeNoSubmitButton, msgNoSubmitButton)
	}

	if err := e.navigationClick(ctx, btn.Selector); err != nil {
		return failure(ErrCodeInteractionFailed, fmt.Sprintf("failed to click submit button: %v", err))
	}

	return &schemas.ActionResult{Success: true, ButtonClicked: btn.Selector, Submitted: true}
}

// handleComplete is the terminal no-op.
func (e *Executor) handleComplete(context.Context, *schemas.Decision, *schemas.PageAnalysis) *schemas.ActionResult {
	return &schemas.ActionResult{Success: true, Completed: true}
}

// handleWait suspends for the decision's wait time.
func (e *Executor) handleWait(ctx context.Context, decision *schemas.Decision, _ *schemas.PageAnalysis) *schemas.ActionResult {
	ms := decision.WaitTimeMs
	if ms <= 0 {
		ms = e.cfg.DefaultWaitMs
	}
	if ms <= 0 {
		ms = 3000
	}

	if err := e.surface.WaitMs(ctx, ms); err != nil {
		return failure(ErrCodeInteractionFailed, fmt.Sprintf("wait interrupted: %v", err))
	}
	return &schemas.ActionResult{Success: true}
}

// handleAnalyzeError scrapes visible error text. Observation cannot fail the
// flow, so the result is always a success.
func (e *Executor) handleAnalyzeError(ctx context.Context, _ *schemas.Decision, _ *schemas.PageAnalysis) *schemas.ActionResult {
	found, err := e.surface.VisibleErrorText(ctx)
	if err != nil {
		e.logger.Warn("Error text scrape failed.", zap.Error(err))
		return &schemas.ActionResult{Success: true}
	}
	return &schemas.ActionResult{Success: true, ErrorsFound: found}
}

// handleAnalyzeDeeper captures a diagnostic screenshot. Like ANALYZE_ERROR
// this never fails the flow.
func (e *Executor) handleAnalyzeDeeper(ctx context.Context, _ *schemas.Decision, _ *schemas.PageAnalysis) *schemas.ActionResult {
	shot, err := e.surface.Screenshot(ctx)
	if err != nil {
		e.logger.Warn("Diagnostic screenshot failed.", zap.Error(err))
		return &schemas.ActionResult{Success: true}
	}
	return &schemas.ActionResult{Success: true, ScreenshotBytes: len(shot)}
}

// handleGoBack navigates backward and decrements the step, floored at zero.
func (e *Executor) handleGoBack(ctx context.Context, _ *schemas.Decision, _ *schemas.PageAnalysis) *schemas.ActionResult {
	if err := e.surface.Back(ctx); err != nil {
		return failure(ErrCodeInteractionFailed, fmt.Sprintf("backward navigation failed: %v", err))
	}

	step := e.state.CurrentStep() - 1
	if step < 0 {
		step = 0
	}
	return &schemas.ActionResult{Success: true, NewStep: &step}
}

// -- helpers --

// navigationClick prefers the redirect handler, which can adopt a new browser
// target, and waits for the page to settle afterwards.
func (e *Executor) navigationClick(ctx context.Context, selector string) error {
	if e.redirect != nil {
		return e.redirect.HandleRedirectClick(ctx, selector)
	}
	if err := e.surface.Click(ctx, selector); err != nil {
		return err
	}
	return e.surface.WaitForIdle(ctx)
}

// navButton resolves the decision's target button on the observed page.
func navButton(page *schemas.PageAnalysis, action schemas.ButtonAction) (schemas.ButtonInfo, bool) {
	if page == nil {
		return schemas.ButtonInfo{}, false
	}
	return page.NavigationElements.FirstButton(action)
}

func matchOption(options []schemas.QuestionOption, answer string) (schemas.QuestionOption, bool) {
	for _, opt := range options {
		if opt.Value == answer || opt.Label == answer {
			return opt, true
		}
	}
	return schemas.QuestionOption{}, false
}

func clipText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
