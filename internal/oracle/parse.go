package oracle

import (
	"fmt"
	"regexp"
	"strings"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/flowpilot-cli/api/schemas"
)

// jsonBlockRegex extracts a JSON object from a markdown code block.
var jsonBlockRegex = regexp.MustCompile(fmt.Sprintf("(?s)%s(?:json)?\\s*(.*?)\\s*%s", "```", "```"))

// extractJSON robustly pulls a JSON object out of an LLM response, handling
// markdown fences and surrounding prose.
func extractJSON(response string) (string, error) {
	response = strings.TrimSpace(response)

	var candidate string
	if matches := jsonBlockRegex.FindStringSubmatch(response); len(matches) > 1 {
		candidate = strings.TrimSpace(matches[1])
	} else {
		firstBracket := strings.Index(response, "{")
		lastBracket := strings.LastIndex(response, "}")
		if firstBracket != -1 && lastBracket > firstBracket {
			candidate = response[firstBracket : lastBracket+1]
		} else {
			candidate = response
		}
	}

	if candidate == "" {
		return "", fmt.Errorf("could not find any JSON in the LLM response")
	}
	return candidate, nil
}

// parseDecision decodes the oracle's decision response. A response without a
// recognizable action tag is an error; the caller substitutes the fallback.
func parseDecision(response string) (*schemas.Decision, error) {
	payload, err := extractJSON(response)
	if err != nil {
		return nil, err
	}

	var decision schemas.Decision
	if err := json.Unmarshal([]byte(payload), &decision); err != nil {
		return nil, fmt.Errorf("failed to unmarshal extracted JSON: %w", err)
	}
	if decision.Action == "" {
		return nil, fmt.Errorf("oracle response missing required 'action' field")
	}

	decision.Action = schemas.DecisionAction(strings.ToUpper(string(decision.Action)))
	if decision.Confidence < 0 {
		decision.Confidence = 0
	}
	if decision.Confidence > 1 {
		decision.Confidence = 1
	}
	return &decision, nil
}

// parseClassification decodes the flow-type classification response.
func parseClassification(response string) (*schemas.FlowClassification, error) {
	payload, err := extractJSON(response)
	if err != nil {
		return nil, err
	}

	var fc schemas.FlowClassification
	if err := json.Unmarshal([]byte(payload), &fc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal classification: %w", err)
	}

	switch fc.Type {
	case schemas.FlowTypeSinglePage, schemas.FlowTypeMultiStep, schemas.FlowTypePaginated:
	default:
		fc.Type = schemas.FlowTypeUnknown
	}
	return &fc, nil
}

// parseRecoveryDirective decodes the recovery response.
func parseRecoveryDirective(response string) (*schemas.RecoveryDirective, error) {
	payload, err := extractJSON(response)
	if err != nil {
		return nil, err
	}

	var rd schemas.RecoveryDirective
	if err := json.Unmarshal([]byte(payload), &rd); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recovery directive: %w", err)
	}
	if rd.Action == "" {
		return nil, fmt.Errorf("recovery directive missing required 'action' field")
	}
	return &rd, nil
}

// answerPayload is the JSON shape the answering prompt asks for.
type answerPayload struct {
	Answer     string  `json:"answer"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// parseAnswer decodes a structured answer response.
func parseAnswer(q schemas.Question, response string) (*schemas.Answer, error) {
	payload, err := extractJSON(response)
	if err != nil {
		return nil, err
	}

	var ap answerPayload
	if err := json.Unmarshal([]byte(payload), &ap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal answer: %w", err)
	}
	if ap.Answer == "" {
		return nil, fmt.Errorf("answer response missing 'answer' field")
	}

	confidence := ap.Confidence
	if confidence <= 0 || confidence > 1 {
		confidence = 0.7
	}
	return &schemas.Answer{
		QuestionIndex: q.Index,
		Value:         ap.Answer,
		Confidence:    confidence,
		Reasoning:     ap.Reasoning,
	}, nil
}
