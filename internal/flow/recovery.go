// internal/flow/recovery.go
package flow

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/flowpilot-cli/api/schemas"
)

// RecoveryCoordinator consults the oracle after an action failure and applies
// the bounded retry policy. It never re-invokes the failed handler itself; it
// only reports whether the outer loop may continue, and the next iteration
// re-observes and re-decides from scratch.
type RecoveryCoordinator struct {
	oracle     schemas.DecisionOracle
	maxRetries int
	logger     *zap.Logger
}

// NewRecoveryCoordinator builds the coordinator.
func NewRecoveryCoordinator(oracle schemas.DecisionOracle, maxRetries int, logger *zap.Logger) *RecoveryCoordinator {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &RecoveryCoordinator{
		oracle:     oracle,
		maxRetries: maxRetries,
		logger:     logger.Named("recovery"),
	}
}

// Recover produces a directive for a failed action. Oracle failure falls back
// deterministically to retry-while-budget-lasts.
func (rc *RecoveryCoordinator) Recover(
	ctx context.Context,
	result *schemas.ActionResult,
	page *schemas.PageAnalysis,
	state *FlowState,
) *schemas.RecoveryDirective {
	rctx := &schemas.RecoveryContext{
		SessionID:     state.SessionID(),
		FailedAction:  result.Action,
		ErrorMessage:  result.Error,
		RetryAttempts: state.RetryAttempts(),
		MaxRetries:    rc.maxRetries,
		CurrentStep:   state.CurrentStep(),
	}
	if page != nil {
		rctx.PageHasError = page.PageInfo.HasErrorText
		rctx.URL = page.URL
	}

	directive, err := rc.oracle.Recover(ctx, rctx)
	if err != nil || directive == nil {
		rc.logger.Warn("Recovery oracle unavailable; applying deterministic fallback.",
			zap.String("failed_action", string(result.Action)),
			zap.Int("retry_attempts", state.RetryAttempts()),
			zap.Error(err))
		return rc.fallback(state)
	}

	if directive.Action == "abort" {
		directive.CanContinue = false
	}

	rc.logger.Info("Recovery directive received.",
		zap.String("action", directive.Action),
		zap.Bool("can_continue", directive.CanContinue),
		zap.Float64("confidence", directive.Confidence))
	return directive
}

// fallback continues while the retry budget lasts.
func (rc *RecoveryCoordinator) fallback(state *FlowState) *schemas.RecoveryDirective {
	return &schemas.RecoveryDirective{
		CanContinue: state.RetryAttempts() < rc.maxRetries,
		Action:      "retry",
		Reasoning:   "recovery oracle unavailable",
	}
}
