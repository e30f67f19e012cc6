package diagnostics

import (
	"testing"

	"github.com/helmcode/pairprog-ai/pkg/document"
	"github.com/helmcode/pairprog-ai/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func pyDoc(text string) *document.Document {
	return document.New("file:///tmp/main.py", "/tmp/main.py", "python", text)
}

func TestToFindingUnbalancedParenthesis(t *testing.T) {
	doc := pyDoc("print('hi'")
	s := model.Suggestion{LineNumber: 1, ErrorDescription: "Unbalanced parenthesis", SuggestedFix: "Add closing ')'"}

	f, ok := ToFinding(doc, s, LinePolicyDrop)
	require.True(t, ok)

	assert.Equal(t, model.Range{
		Start: model.Position{Line: 0, Character: 0},
		End:   model.Position{Line: 0, Character: 10},
	}, f.Range)
	assert.Equal(t, "Unbalanced parenthesis\nSuggested Fix: Add closing ')'", f.Message)
	assert.Equal(t, model.SeverityError, f.Severity)
	assert.Equal(t, "AI Pair Programmer", f.Source)
}

func TestToFindingRangeSpansIndentedLine(t *testing.T) {
	doc := pyDoc("def f():\n    return x  \n\n")

	tests := []struct {
		lineNumber int
		want       model.Range
	}{
		{lineNumber: 1, want: model.Range{Start: model.Position{Line: 0, Character: 0}, End: model.Position{Line: 0, Character: 8}}},
		{lineNumber: 2, want: model.Range{Start: model.Position{Line: 1, Character: 4}, End: model.Position{Line: 1, Character: 14}}},
		{lineNumber: 3, want: model.Range{Start: model.Position{Line: 2, Character: 0}, End: model.Position{Line: 2, Character: 0}}},
	}

	for _, tt := range tests {
		f, ok := ToFinding(doc, model.Suggestion{LineNumber: tt.lineNumber}, LinePolicyDrop)
		require.True(t, ok)
		assert.Equal(t, tt.want, f.Range, "line %d", tt.lineNumber)
	}
}

func TestToFindingOutOfRange(t *testing.T) {
	doc := pyDoc("a = 1\n  b = 2")

	tests := []struct {
		name       string
		lineNumber int
		policy     LinePolicy
		wantOK     bool
		wantLine   int
		wantStart  int
	}{
		{name: "zero dropped", lineNumber: 0, policy: LinePolicyDrop},
		{name: "negative dropped", lineNumber: -3, policy: LinePolicyDrop},
		{name: "past end dropped", lineNumber: 3, policy: LinePolicyDrop},
		{name: "zero clamped", lineNumber: 0, policy: LinePolicyClamp, wantOK: true, wantLine: 0, wantStart: 0},
		{name: "past end clamped", lineNumber: 42, policy: LinePolicyClamp, wantOK: true, wantLine: 1, wantStart: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := ToFinding(doc, model.Suggestion{LineNumber: tt.lineNumber}, tt.policy)
			assert.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantLine, f.Range.Start.Line)
			assert.Equal(t, tt.wantLine, f.Range.End.Line)
			assert.Equal(t, tt.wantStart, f.Range.Start.Character)
		})
	}
}

func TestMapperKeepsOrderAndCountsDropped(t *testing.T) {
	doc := pyDoc("x = 1\ny = 2\n")
	m := Mapper{Policy: LinePolicyDrop, Logger: zap.NewNop()}

	findings, dropped := m.Map(doc, []model.Suggestion{
		{LineNumber: 2, ErrorDescription: "second"},
		{LineNumber: 99, ErrorDescription: "gone"},
		{LineNumber: 1, ErrorDescription: "first"},
	})

	assert.Equal(t, 1, dropped)
	require.Len(t, findings, 2)
	assert.Equal(t, 1, findings[0].Range.Start.Line)
	assert.Equal(t, 0, findings[1].Range.Start.Line)
}

func TestMapperEmpty(t *testing.T) {
	findings, dropped := Mapper{Policy: LinePolicyDrop}.Map(pyDoc("x"), nil)
	assert.NotNil(t, findings)
	assert.Empty(t, findings)
	assert.Zero(t, dropped)
}

func TestParseLinePolicy(t *testing.T) {
	p, err := ParseLinePolicy("Clamp")
	require.NoError(t, err)
	assert.Equal(t, LinePolicyClamp, p)

	_, err = ParseLinePolicy("ignore")
	assert.Error(t, err)
}
