package diagnostics

import (
	"fmt"
	"strings"

	"github.com/helmcode/pairprog-ai/pkg/document"
	"github.com/helmcode/pairprog-ai/pkg/model"
	"go.uber.org/zap"
)

// LinePolicy decides what happens to a suggestion whose line number does not
// exist in the document.
type LinePolicy string

const (
	// LinePolicyDrop discards the suggestion and logs a warning.
	LinePolicyDrop LinePolicy = "drop"
	// LinePolicyClamp moves the suggestion to the first or last line.
	LinePolicyClamp LinePolicy = "clamp"
)

func ParseLinePolicy(s string) (LinePolicy, error) {
	switch LinePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case LinePolicyDrop:
		return LinePolicyDrop, nil
	case LinePolicyClamp:
		return LinePolicyClamp, nil
	default:
		return "", fmt.Errorf("unsupported line policy: %s (supported: drop, clamp)", s)
	}
}

// Message joins the description and the fix the way findings display them.
func Message(s model.Suggestion) string {
	return s.ErrorDescription + "\n" + "Suggested Fix: " + s.SuggestedFix
}

// ToFinding maps one suggestion onto doc. The second result is false when the
// suggestion was dropped by policy.
func ToFinding(doc *document.Document, s model.Suggestion, policy LinePolicy) (model.Finding, bool) {
	lineNumber := s.LineNumber
	count := doc.LineCount()
	if lineNumber < 1 || lineNumber > count {
		if policy != LinePolicyClamp {
			return model.Finding{}, false
		}
		if lineNumber < 1 {
			lineNumber = 1
		} else {
			lineNumber = count
		}
	}

	line := lineNumber - 1
	text, _ := doc.Line(line)

	return model.Finding{
		Range: model.Range{
			Start: model.Position{Line: line, Character: document.FirstNonWhitespace(text)},
			End:   model.Position{Line: line, Character: document.Length(text)},
		},
		Message:  Message(s),
		Severity: model.SeverityError,
		Source:   model.FindingSource,
	}, true
}

// Mapper converts backend suggestions into findings for one document.
type Mapper struct {
	Policy LinePolicy
	Logger *zap.Logger
}

// Map converts suggestions in order and reports how many were dropped.
func (m Mapper) Map(doc *document.Document, suggestions []model.Suggestion) ([]model.Finding, int) {
	findings := make([]model.Finding, 0, len(suggestions))
	dropped := 0
	for _, s := range suggestions {
		f, ok := ToFinding(doc, s, m.Policy)
		if !ok {
			dropped++
			if m.Logger != nil {
				m.Logger.Warn("dropping suggestion with out-of-range line",
					zap.String("uri", doc.URI),
					zap.Int("line_number", s.LineNumber),
					zap.Int("line_count", doc.LineCount()),
				)
			}
			continue
		}
		findings = append(findings, f)
	}
	return findings, dropped
}
