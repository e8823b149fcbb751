package flow

import (
	"context"
	"fmt"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/flowpilot-cli/api/schemas"
)

// -- Page Observer Mock --

// MockObserver mocks the schemas.PageObserver interface.
type MockObserver struct {
	mock.Mock
}

// Observe mocks a page snapshot.
func (m *MockObserver) Observe(ctx context.Context) (*schemas.PageAnalysis, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.PageAnalysis), args.Error(1)
}

// -- Decision Oracle Mock --

// MockOracle mocks the schemas.DecisionOracle interface.
type MockOracle struct {
	mock.Mock
}

func (m *MockOracle) Decide(ctx context.Context, dc *schemas.DecisionContext) (*schemas.Decision, error) {
	args := m.Called(ctx, dc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.Decision), args.Error(1)
}

func (m *MockOracle) Classify(ctx context.Context, dc *schemas.DecisionContext) (*schemas.FlowClassification, error) {
	args := m.Called(ctx, dc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.FlowClassification), args.Error(1)
}

func (m *MockOracle) Recover(ctx context.Context, rc *schemas.RecoveryContext) (*schemas.RecoveryDirective, error) {
	args := m.Called(ctx, rc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.RecoveryDirective), args.Error(1)
}

func (m *MockOracle) AnswerQuestion(ctx context.Context, q schemas.Question, pageContext string) (*schemas.Answer, error) {
	args := m.Called(ctx, q, pageContext)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.Answer), args.Error(1)
}

// -- Interaction Surface Mock --

// MockSurface mocks the schemas.InteractionSurface interface.
type MockSurface struct {
	mock.Mock
}

func (m *MockSurface) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockSurface) Click(ctx context.Context, selector string) error {
	return m.Called(ctx, selector).Error(0)
}

func (m *MockSurface) Fill(ctx context.Context, selector, value string) error {
	return m.Called(ctx, selector, value).Error(0)
}

func (m *MockSurface) SelectOption(ctx context.Context, selector, value string) error {
	return m.Called(ctx, selector, value).Error(0)
}

func (m *MockSurface) Back(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockSurface) WaitForIdle(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockSurface) WaitMs(ctx context.Context, ms int) error {
	return m.Called(ctx, ms).Error(0)
}

func (m *MockSurface) Screenshot(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockSurface) VisibleErrorText(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockSurface) CurrentURL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

// -- Redirect Handler Mock --

// MockRedirect mocks the schemas.RedirectHandler interface.
type MockRedirect struct {
	mock.Mock
}

func (m *MockRedirect) HandleRedirectClick(ctx context.Context, selector string) error {
	return m.Called(ctx, selector).Error(0)
}

// -- Session Sink Mock --

// recordingSink captures every emitted record for inspection. Emit never
// fails, matching the fire-and-forget contract.
type recordingSink struct {
	records []*schemas.SessionRecord
}

func (s *recordingSink) Emit(_ context.Context, rec *schemas.SessionRecord) {
	s.records = append(s.records, rec)
}

func (s *recordingSink) Close() error { return nil }

// -- Pacer Mock --

// countingPacer counts Pace invocations without sleeping.
type countingPacer struct {
	calls int
}

func (p *countingPacer) Pace(context.Context) error {
	p.calls++
	return nil
}

// -- Page fixtures --

func textQuestion(index int, answered bool) schemas.Question {
	return schemas.Question{
		Index:    index,
		Text:     "How satisfied are you with the service?",
		Type:     schemas.QuestionText,
		Selector: fmt.Sprintf("#q%d", index),
		Answered: answered,
	}
}

// surveyPage builds a snapshot with the given questions and navigation
// buttons.
func surveyPage(url string, questions []schemas.Question, buttons ...schemas.ButtonInfo) *schemas.PageAnalysis {
	answered := 0
	for _, q := range questions {
		if q.Answered {
			answered++
		}
	}

	nav := schemas.NavigationElements{Buttons: buttons}
	for _, b := range buttons {
		switch b.Action {
		case schemas.ButtonNext:
			nav.HasNext = true
		case schemas.ButtonSubmit:
			nav.HasSubmit = true
		case schemas.ButtonPrevious:
			nav.HasPrevious = true
		}
	}

	return &schemas.PageAnalysis{
		URL: url,
		PageInfo: schemas.PageInfo{
			Title: "Customer Survey",
		},
		FormData: schemas.FormData{
			TotalQuestions:    len(questions),
			AnsweredQuestions: answered,
			Questions:         questions,
		},
		NavigationElements: nav,
	}
}

func submitButton() schemas.ButtonInfo {
	return schemas.ButtonInfo{Selector: "#submit", Text: "Submit", Action: schemas.ButtonSubmit, Visible: true}
}

func nextButton() schemas.ButtonInfo {
	return schemas.ButtonInfo{Selector: "#next", Text: "Next", Action: schemas.ButtonNext, Visible: true}
}
