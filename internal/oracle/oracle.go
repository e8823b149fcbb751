// internal/oracle/oracle.go
package oracle

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/flowpilot-cli/api/schemas"
	"github.com/xkilldash9x/flowpilot-cli/internal/config"
)

// LLMOracle implements the DecisionOracle contract on top of an LLM client.
// All methods may return errors; deterministic fallback substitution is the
// caller's responsibility (the flow layer), so the adapter stays honest
// about failures.
type LLMOracle struct {
	logger    *zap.Logger
	llmClient schemas.LLMClient
	profile   string

	mu  sync.Mutex
	rng *rand.Rand
}

// Statically assert that LLMOracle satisfies the contract.
var _ schemas.DecisionOracle = (*LLMOracle)(nil)

// New creates an LLMOracle. If cfg.AnswerProfile names a readable file, its
// contents are injected into answer-generation prompts as persona context.
func New(logger *zap.Logger, client schemas.LLMClient, cfg config.OracleConfig) *LLMOracle {
	profile := ""
	if cfg.AnswerProfile != "" {
		data, err := os.ReadFile(cfg.AnswerProfile)
		if err != nil {
			logger.Warn("Failed to read answer profile, continuing without persona context",
				zap.String("path", cfg.AnswerProfile), zap.Error(err))
		} else {
			profile = strings.TrimSpace(string(data))
		}
	}

	return &LLMOracle{
		logger:    logger.Named("oracle"),
		llmClient: client,
		profile:   profile,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Decide chooses the next action for the current iteration.
func (o *LLMOracle) Decide(ctx context.Context, dc *schemas.DecisionContext) (*schemas.Decision, error) {
	userPrompt, err := buildDecisionPrompt(dc)
	if err != nil {
		return nil, err
	}

	response, err := o.generate(ctx, decisionSystemPrompt, userPrompt, schemas.TierPowerful, 0.2)
	if err != nil {
		return nil, fmt.Errorf("decision generation failed: %w", err)
	}

	decision, err := parseDecision(response)
	if err != nil {
		o.logger.Warn("Failed to parse oracle decision", zap.String("raw_response", clip(response)), zap.Error(err))
		return nil, err
	}
	return decision, nil
}

// Classify predicts the flow's overall shape from the initial observation.
func (o *LLMOracle) Classify(ctx context.Context, dc *schemas.DecisionContext) (*schemas.FlowClassification, error) {
	userPrompt, err := buildClassificationPrompt(dc)
	if err != nil {
		return nil, err
	}

	response, err := o.generate(ctx, classificationSystemPrompt, userPrompt, schemas.TierFast, 0.2)
	if err != nil {
		return nil, fmt.Errorf("classification generation failed: %w", err)
	}

	classification, err := parseClassification(response)
	if err != nil {
		o.logger.Warn("Failed to parse flow classification", zap.String("raw_response", clip(response)), zap.Error(err))
		return nil, err
	}
	return classification, nil
}

// Recover produces a directive after an action failure.
func (o *LLMOracle) Recover(ctx context.Context, rc *schemas.RecoveryContext) (*schemas.RecoveryDirective, error) {
	userPrompt, err := buildRecoveryPrompt(rc)
	if err != nil {
		return nil, err
	}

	response, err := o.generate(ctx, recoverySystemPrompt, userPrompt, schemas.TierFast, 0.2)
	if err != nil {
		return nil, fmt.Errorf("recovery generation failed: %w", err)
	}

	directive, err := parseRecoveryDirective(response)
	if err != nil {
		o.logger.Warn("Failed to parse recovery directive", zap.String("raw_response", clip(response)), zap.Error(err))
		return nil, err
	}
	return directive, nil
}

// AnswerQuestion generates an answer for a single form question. LLM or
// parse failures fall back to text extraction and finally to a deterministic
// moderate answer, so the returned error is always nil unless the context is
// cancelled.
func (o *LLMOracle) AnswerQuestion(ctx context.Context, q schemas.Question, pageContext string) (*schemas.Answer, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	response, err := o.generate(ctx, answerSystemPrompt, buildAnswerPrompt(q, pageContext, o.profile), schemas.TierFast, 0.7)
	if err != nil {
		o.logger.Warn("Answer generation failed, using fallback",
			zap.Int("question_index", q.Index), zap.Error(err))
		return o.humanize(o.fallbackAnswer(q), q), nil
	}

	answer, err := parseAnswer(q, response)
	if err != nil {
		answer = &schemas.Answer{
			QuestionIndex: q.Index,
			Value:         o.extractAnswerFromText(q, response),
			Confidence:    0.7,
			Reasoning:     "parsed from text response",
		}
	}
	return o.humanize(answer, q), nil
}

// generate wraps the LLM call with a bounded per-request timeout.
func (o *LLMOracle) generate(ctx context.Context, systemPrompt, userPrompt string, tier schemas.ModelTier, temperature float64) (string, error) {
	apiCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
	defer cancel()

	req := schemas.GenerationRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Tier:         tier,
		Options: schemas.GenerationOptions{
			ForceJSONFormat: true,
			Temperature:     temperature,
		},
	}
	return o.llmClient.Generate(apiCtx, req)
}

func clip(s string) string {
	const maxLen = 400
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
