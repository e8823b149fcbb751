package oracle

import (
	"fmt"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/flowpilot-cli/api/schemas"
)

const decisionSystemPrompt = `You are the decision engine of 'flowpilot', an autonomous agent that completes multi-page form and survey flows.
You receive the current page state and session progress as JSON and must respond with a single JSON object describing the next action.

Available actions:
- ANSWER_QUESTIONS: Fill in unanswered questions. Optionally set "questions_to_answer" to a list of question indices.
- PROCEED_NEXT: Click the button that advances to the next page. Only when the current page's questions are answered.
- SUBMIT: Click the final submit button. Only when the flow is ready to be finalized.
- COMPLETE: The flow has finished (confirmation/thank-you page). Terminal.
- WAIT: Pause to let dynamic content settle. Set "wait_time_ms".
- ANALYZE_ERROR: The page shows validation or error text worth reading before acting.
- ANALYZE_DEEPER: The state is confusing; capture diagnostics before deciding again.
- GO_BACK: Navigate one step backward to correct an earlier page.

Respond with exactly one JSON object:
{"action": "...", "reasoning": "...", "confidence": 0.0-1.0, "priority": "high|medium|low",
 "expected_outcome": "...", "questions_to_answer": [0,1], "button_to_click": "css selector or empty",
 "wait_time_ms": 3000, "fallback_action": "...", "risk_assessment": "low|medium|high"}

Prefer answering visible questions before navigating. Never submit a page with required questions unanswered.`

const classificationSystemPrompt = `You classify an interactive form/survey flow from its first observed page.
Respond with exactly one JSON object:
{"type": "single_page|multi_step|paginated|unknown", "pattern": "short description",
 "estimated_steps": 1, "estimated_questions": 1, "complexity": "low|medium|high"}`

const recoverySystemPrompt = `An action in an automated form flow has failed. Decide whether the session can continue and how.
Respond with exactly one JSON object:
{"can_continue": true, "action": "retry|skip|go_back|analyze|abort", "reasoning": "...", "confidence": 0.0-1.0}
Prefer "retry" for transient interaction failures, "go_back" when the page itself shows errors,
and "abort" only when the retry budget is nearly exhausted and nothing has changed.`

const answerSystemPrompt = `You are answering form/survey questions the way a typical person would.

IMPORTANT RULES:
1. Give realistic, human-like answers - avoid showing superhuman knowledge
2. For impossible questions, respond with uncertainty
3. Add natural speech patterns like "I think", "probably", "not sure"
4. Keep answers concise and natural
5. For multiple choice, pick the most reasonable option
6. For rating questions, avoid extreme scores unless warranted
7. Show some uncertainty - people don't know everything

Return your answer in this exact JSON format:
{"answer": "your answer here", "confidence": 0.8, "reasoning": "brief explanation"}`

// buildDecisionPrompt serializes the decision context for the LLM.
func buildDecisionPrompt(dc *schemas.DecisionContext) (string, error) {
	contextJSON, err := json.MarshalIndent(dc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal decision context: %w", err)
	}

	return fmt.Sprintf(`Current session state:
%s

Determine the next action. Respond with a single JSON object.`, string(contextJSON)), nil
}

// buildClassificationPrompt serializes the first observation for flow-type
// classification.
func buildClassificationPrompt(dc *schemas.DecisionContext) (string, error) {
	pageJSON, err := json.MarshalIndent(dc.Page, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal page analysis: %w", err)
	}

	return fmt.Sprintf(`First observed page of a new flow:
%s

Classify the flow. Respond with a single JSON object.`, string(pageJSON)), nil
}

// buildRecoveryPrompt serializes the failure context.
func buildRecoveryPrompt(rc *schemas.RecoveryContext) (string, error) {
	contextJSON, err := json.MarshalIndent(rc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal recovery context: %w", err)
	}

	return fmt.Sprintf(`Failure context:
%s

Decide how to proceed. Respond with a single JSON object.`, string(contextJSON)), nil
}

// buildAnswerPrompt mirrors the question presentation of the original
// answering service: text, type, options, then optional page and persona
// context.
func buildAnswerPrompt(q schemas.Question, pageContext, profile string) string {
	prompt := fmt.Sprintf("Question: %s\nType: %s\n", q.Text, q.Type)

	if len(q.Options) > 0 {
		prompt += "Options:\n"
		for i, opt := range q.Options {
			label := opt.Label
			if label == "" {
				label = opt.Value
			}
			prompt += fmt.Sprintf("%d. %s\n", i+1, label)
		}
	}
	if q.Required {
		prompt += "This question is required.\n"
	}
	if pageContext != "" {
		prompt += fmt.Sprintf("\nContext: %s\n", pageContext)
	}
	if profile != "" {
		prompt += fmt.Sprintf("\nAnswer as this person:\n%s\n", profile)
	}

	prompt += "\nPlease provide a human-like answer."
	return prompt
}
