package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsKnownActionCoversClosedSet(t *testing.T) {
	for _, a := range KnownActions {
		assert.True(t, IsKnownAction(a), "action %s should be known", a)
	}

	assert.False(t, IsKnownAction("REBOOT_UNIVERSE"))
	assert.False(t, IsKnownAction(""))
	// Case matters; normalization happens at parse time, not here.
	assert.False(t, IsKnownAction("submit"))
}

func TestFormDataUnansweredPreservesOrder(t *testing.T) {
	fd := FormData{
		Questions: []Question{
			{Index: 0, Answered: true},
			{Index: 1, Answered: false},
			{Index: 2, Answered: false},
			{Index: 3, Answered: true},
		},
	}

	open := fd.Unanswered()
	require.Len(t, open, 2)
	assert.Equal(t, 1, open[0].Index)
	assert.Equal(t, 2, open[1].Index)
}

func TestNavigationElementsFirstButton(t *testing.T) {
	nav := NavigationElements{
		Buttons: []ButtonInfo{
			{Selector: "#skip", Action: ButtonSkip},
			{Selector: "#next-a", Action: ButtonNext},
			{Selector: "#next-b", Action: ButtonNext},
		},
	}

	btn, ok := nav.FirstButton(ButtonNext)
	require.True(t, ok)
	assert.Equal(t, "#next-a", btn.Selector)

	_, ok = nav.FirstButton(ButtonSubmit)
	assert.False(t, ok)
}

func TestActionResultFailed(t *testing.T) {
	assert.False(t, (*ActionResult)(nil).Failed())
	assert.False(t, (&ActionResult{Success: true}).Failed())
	assert.True(t, (&ActionResult{Success: false, Error: "boom"}).Failed())
	// A result without an error message is not a failure, whatever Success says.
	assert.False(t, (&ActionResult{Success: false}).Failed())
}

func TestFallbackDecisionIsDiagnosticsWithLowConfidence(t *testing.T) {
	d := FallbackDecision()
	require.NotNil(t, d)
	assert.Equal(t, ActionAnalyzeDeeper, d.Action)
	assert.InDelta(t, 0.1, d.Confidence, 0.001)
}
