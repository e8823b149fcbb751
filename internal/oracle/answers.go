package oracle

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/xkilldash9x/flowpilot-cli/api/schemas"
)

// Speech patterns sprinkled into text answers so they read like a person
// wrote them, mirroring the original answering service.
var (
	uncertaintyPatterns = []string{
		"I'm not entirely sure, but I think",
		"If I had to guess, I'd say",
		"From what I remember",
		"I believe",
		"As far as I know",
	}
	hedgingWords = []string{
		"probably", "likely", "I suppose", "perhaps",
		"it seems to me", "in my opinion", "I'd say",
	}
	stockUncertainAnswers = []string{
		"I'm not sure about this",
		"I don't have a strong opinion",
		"I'd need to think about this more",
		"Not really sure",
	}
)

var ratingRegex = regexp.MustCompile(`\b([1-9]|10)\b`)

// extractAnswerFromText recovers an answer from a free-form LLM response
// that failed structured parsing, keyed by question type.
func (o *LLMOracle) extractAnswerFromText(q schemas.Question, text string) string {
	text = strings.TrimSpace(text)
	lower := strings.ToLower(text)

	switch q.Type {
	case schemas.QuestionYesNo:
		if containsAny(lower, "yes", "true", "agree", "correct") {
			return "yes"
		}
		if containsAny(lower, "no", "false", "disagree", "incorrect") {
			return "no"
		}
		return o.pick([]string{"yes", "no"})

	case schemas.QuestionSingleChoice, schemas.QuestionMultipleChoice:
		for _, opt := range q.Options {
			label := strings.ToLower(optionLabel(opt))
			if label != "" && strings.Contains(lower, label) {
				return optionValue(opt)
			}
		}
		if len(q.Options) > 0 {
			return optionValue(q.Options[o.intn(len(q.Options))])
		}
		return text

	case schemas.QuestionRating:
		if m := ratingRegex.FindString(text); m != "" {
			return m
		}
		return fmt.Sprintf("%d", 3+o.intn(5)) // moderate rating, 3..7

	default:
		if len(text) > 200 {
			return text[:200] + "..."
		}
		if text == "" {
			return "I'm not sure about this one."
		}
		return text
	}
}

// fallbackAnswer is the deterministic last resort when the LLM is
// unreachable entirely. Confidence is fixed low.
func (o *LLMOracle) fallbackAnswer(q schemas.Question) *schemas.Answer {
	var value string
	switch q.Type {
	case schemas.QuestionYesNo:
		value = o.pick([]string{"yes", "no"})
	case schemas.QuestionSingleChoice, schemas.QuestionMultipleChoice:
		if len(q.Options) > 0 {
			value = optionValue(q.Options[o.intn(len(q.Options))])
		} else {
			value = o.pick(stockUncertainAnswers)
		}
	case schemas.QuestionRating:
		value = fmt.Sprintf("%d", 3+o.intn(5))
	default:
		value = o.pick(stockUncertainAnswers)
	}

	return &schemas.Answer{
		QuestionIndex: q.Index,
		Value:         value,
		Confidence:    0.3,
		Reasoning:     "fallback answer due to generation failure",
	}
}

// humanize adds hedging to text answers and shaves confidence so the output
// reads less mechanical.
func (o *LLMOracle) humanize(a *schemas.Answer, q schemas.Question) *schemas.Answer {
	if q.Type == schemas.QuestionText && a.Value != "" {
		if o.chance(0.3) {
			prefix := o.pick(uncertaintyPatterns)
			r, size := utf8.DecodeRuneInString(a.Value)
			a.Value = prefix + " " + string(unicode.ToLower(r)) + a.Value[size:]
		}
		if o.chance(0.2) {
			a.Value = a.Value + ", " + o.pick(hedgingWords)
		}
	}

	a.Confidence = a.Confidence - (0.1 + o.float()*0.2)
	if a.Confidence < 0.2 {
		a.Confidence = 0.2
	}
	return a
}

// -- RNG helpers; serialized so AnswerQuestion is safe for concurrent use --

func (o *LLMOracle) intn(n int) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rng.Intn(n)
}

func (o *LLMOracle) float() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rng.Float64()
}

func (o *LLMOracle) chance(p float64) bool {
	return o.float() < p
}

func (o *LLMOracle) pick(options []string) string {
	return options[o.intn(len(options))]
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func optionLabel(opt schemas.QuestionOption) string {
	if opt.Label != "" {
		return opt.Label
	}
	return opt.Value
}

func optionValue(opt schemas.QuestionOption) string {
	if opt.Value != "" {
		return opt.Value
	}
	return opt.Label
}
