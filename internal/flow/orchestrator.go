// internal/flow/orchestrator.go
package flow

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/flowpilot-cli/api/schemas"
	"github.com/xkilldash9x/flowpilot-cli/internal/config"
)

// Pacer provides the bounded randomized delay between iterations.
type Pacer interface {
	Pace(ctx context.Context) error
}

// Orchestrator runs the perceive-decide-act loop for one session. Each
// instance owns its FlowState outright; concurrent sessions are independent
// Orchestrators sharing nothing.
type Orchestrator struct {
	observer  schemas.PageObserver
	oracle    schemas.DecisionOracle
	executor  *Executor
	validator *Validator
	recovery  *RecoveryCoordinator
	reporter  *Reporter
	sink      schemas.SessionSink
	pacer     Pacer

	state  *FlowState
	cfg    config.FlowConfig
	logger *zap.Logger
}

// NewOrchestrator wires one session's control loop. redirect may be nil;
// sink and pacer may be nil and are replaced with no-ops.
func NewOrchestrator(
	sessionID string,
	observer schemas.PageObserver,
	oracle schemas.DecisionOracle,
	surface schemas.InteractionSurface,
	redirect schemas.RedirectHandler,
	sink schemas.SessionSink,
	pacer Pacer,
	cfg config.FlowConfig,
	logger *zap.Logger,
) *Orchestrator {
	log := logger.Named("flow").With(zap.String("session_id", sessionID))
	state := NewFlowState(sessionID)

	if sink == nil {
		sink = nopSink{}
	}
	if pacer == nil {
		pacer = nopPacer{}
	}

	return &Orchestrator{
		observer:  observer,
		oracle:    oracle,
		executor:  NewExecutor(surface, redirect, oracle, state, cfg, log),
		validator: NewValidator(cfg.TimeBudget),
		recovery:  NewRecoveryCoordinator(oracle, cfg.MaxRetries, log),
		reporter:  NewReporter(),
		sink:      sink,
		pacer:     pacer,
		state:     state,
		cfg:       cfg,
		logger:    log,
	}
}

// State exposes the session state for inspection after a run.
func (o *Orchestrator) State() *FlowState {
	return o.state
}

func (o *Orchestrator) maxIterations() int {
	if o.cfg.MaxIterations > 0 {
		return o.cfg.MaxIterations
	}
	return 50
}

func (o *Orchestrator) maxRetries() int {
	if o.cfg.MaxRetries > 0 {
		return o.cfg.MaxRetries
	}
	return 3
}

// Run drives the flow to a terminal state and always returns a FlowReport;
// it never raises to the caller. On cancellation the report reflects partial
// progress.
func (o *Orchestrator) Run(ctx context.Context) (report *schemas.FlowReport) {
	// A defect in the loop itself (not inside a handler) still yields a
	// report carrying partial progress.
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Orchestration loop panicked.", zap.Any("panic", r))
			report = o.reporter.ErrorReport(o.state, fmt.Errorf("orchestration failure: %v", r))
		}
	}()

	o.logger.Info("Flow session starting.")
	o.initialize(ctx)

	flowComplete := false
	succeeded := false

	for iteration := 1; !flowComplete && iteration <= o.maxIterations(); iteration++ {
		if err := ctx.Err(); err != nil {
			o.logger.Warn("Session cancelled; exiting with partial progress.", zap.Error(err))
			o.state.AppendWarning("session cancelled before completion")
			break
		}

		page, decision, result := o.iterate(ctx, iteration)

		o.state.UpdateFromResult(result)
		o.state.RecordAction(schemas.ActionRecord{
			Action:    result.Action,
			Success:   result.Success,
			Error:     result.Error,
			Timestamp: time.Now().UTC(),
			URL:       pageURL(page),
		})

		flowComplete = o.isFlowComplete(result, decision)
		if terminalSuccess(result, decision) {
			succeeded = true
		}

		if result.Failed() {
			directive := o.recovery.Recover(ctx, result, page, o.state)
			if !directive.CanContinue {
				o.logger.Warn("Recovery declared the session unrecoverable.",
					zap.String("reasoning", directive.Reasoning))
				o.state.AppendError(fmt.Sprintf("recovery aborted session after: %s", result.Error))
				break
			}
		}

		o.state.SetValidation(o.validator.Validate(o.state))
		o.emit(ctx, iteration, page, decision, result)

		if !flowComplete {
			// Pacing failure only means cancellation, caught at the top of
			// the next iteration.
			_ = o.pacer.Pace(ctx)
		}
	}

	o.logger.Info("Flow session finished.",
		zap.Bool("success", succeeded),
		zap.Int("actions", o.state.ActionsExecuted()),
		zap.Float64("completion", o.state.CompletionPercentage()))

	return o.reporter.Report(o.state, succeeded)
}

// initialize observes once and classifies the flow type. Failure here is
// ordinary: the loop re-observes anyway, and classification falls back to
// unknown.
func (o *Orchestrator) initialize(ctx context.Context) {
	page, err := o.observer.Observe(ctx)
	if err != nil {
		o.logger.Warn("Initial observation failed; classification skipped.", zap.Error(err))
		o.state.AppendError(fmt.Sprintf("initial observation failed: %v", err))
		return
	}

	o.state.UpdateFromObservation(page)
	o.state.RecordVisit(visitFromPage(page))

	classification, err := o.oracle.Classify(ctx, BuildDecisionContext(o.state, page))
	if err != nil || classification == nil {
		o.logger.Warn("Flow classification failed; treating flow type as unknown.", zap.Error(err))
		classification = &schemas.FlowClassification{Type: schemas.FlowTypeUnknown}
	}
	o.state.SetClassification(classification)

	o.logger.Info("Flow classified.",
		zap.String("type", string(classification.Type)),
		zap.String("pattern", classification.Pattern),
		zap.Int("estimated_steps", classification.EstimatedSteps))
}

// iterate performs one observe-decide-execute cycle. Observation failure is
// a transient, action-independent error feeding recovery like any handler
// failure.
func (o *Orchestrator) iterate(ctx context.Context, iteration int) (*schemas.PageAnalysis, *schemas.Decision, *schemas.ActionResult) {
	page, err := o.observer.Observe(ctx)
	if err != nil {
		o.logger.Warn("Observation failed.", zap.Int("iteration", iteration), zap.Error(err))
		return nil, nil, failure(ErrCodeObservationFailed, fmt.Sprintf("observation failed: %v", err))
	}

	o.state.UpdateFromObservation(page)
	o.state.RecordVisit(visitFromPage(page))

	decision, err := o.oracle.Decide(ctx, BuildDecisionContext(o.state, page))
	if err != nil || decision == nil {
		o.logger.Warn("Decision oracle failed; substituting fallback decision.",
			zap.Int("iteration", iteration), zap.Error(err))
		decision = schemas.FallbackDecision()
	}

	o.logger.Debug("Decision received.",
		zap.Int("iteration", iteration),
		zap.String("action", string(decision.Action)),
		zap.Float64("confidence", decision.Confidence))

	return page, decision, o.executor.Execute(ctx, decision, page)
}

// isFlowComplete is the OR of the independent terminal conditions. Every
// disjunct is checked each iteration.
func (o *Orchestrator) isFlowComplete(result *schemas.ActionResult, decision *schemas.Decision) bool {
	if result != nil && (result.Completed || result.Submitted) {
		return true
	}
	if decision != nil && decision.Action == schemas.ActionComplete {
		return true
	}
	return o.state.RetryAttempts() >= o.maxRetries()
}

// terminalSuccess reports whether the iteration reached a positive terminal
// state, as opposed to being forced out by the retry cap.
func terminalSuccess(result *schemas.ActionResult, decision *schemas.Decision) bool {
	if result != nil && result.Success && (result.Completed || result.Submitted) {
		return true
	}
	return decision != nil && decision.Action == schemas.ActionComplete
}

// emit sends one telemetry record to the sink. Fire-and-forget.
func (o *Orchestrator) emit(ctx context.Context, iteration int, page *schemas.PageAnalysis, decision *schemas.Decision, result *schemas.ActionResult) {
	o.sink.Emit(ctx, &schemas.SessionRecord{
		SessionID:    o.state.SessionID(),
		Iteration:    iteration,
		Timestamp:    time.Now().UTC(),
		PageAnalysis: page,
		Decision:     decision,
		ActionResult: result,
	})
}

func visitFromPage(page *schemas.PageAnalysis) schemas.PageVisit {
	return schemas.PageVisit{
		URL:           page.URL,
		Timestamp:     page.Timestamp,
		QuestionCount: page.FormData.TotalQuestions,
		AnsweredCount: page.FormData.AnsweredQuestions,
	}
}

func pageURL(page *schemas.PageAnalysis) string {
	if page == nil {
		return ""
	}
	return page.URL
}

// -- no-op collaborators --

type nopSink struct{}

func (nopSink) Emit(context.Context, *schemas.SessionRecord) {}
func (nopSink) Close() error                                 { return nil }

type nopPacer struct{}

func (nopPacer) Pace(context.Context) error { return nil }
