package model

import (
	"bytes"
	"encoding/json"
)

// FindingSource is attached to every finding produced from backend suggestions.
const FindingSource = "AI Pair Programmer"

type Severity string

const (
	SeverityError       Severity = "error"
	SeverityWarning     Severity = "warning"
	SeverityInformation Severity = "information"
	SeverityHint        Severity = "hint"
)

// Suggestion is one issue reported by the query protocol.
type Suggestion struct {
	LineNumber       int    `json:"lineNumber" yaml:"lineNumber"`
	ErrorDescription string `json:"errorDescription" yaml:"errorDescription"`
	SuggestedFix     string `json:"suggestedFix" yaml:"suggestedFix"`
}

// Position is a 0-based line/column pair. Columns count UTF-16 code units.
type Position struct {
	Line      int `json:"line" yaml:"line"`
	Character int `json:"character" yaml:"character"`
}

type Range struct {
	Start Position `json:"start" yaml:"start"`
	End   Position `json:"end" yaml:"end"`
}

// Finding is a normalized, location-anchored diagnostic.
type Finding struct {
	Range    Range    `json:"range" yaml:"range"`
	Message  string   `json:"message" yaml:"message"`
	Severity Severity `json:"severity" yaml:"severity"`
	Source   string   `json:"source" yaml:"source"`
}

// AnalysisResult is the free-form body returned by the REST protocol.
// It is kept verbatim and never interpreted.
type AnalysisResult struct {
	Raw json.RawMessage `json:"raw"`
}

// MarshalJSON emits the backend document itself rather than a wrapper.
func (r AnalysisResult) MarshalJSON() ([]byte, error) {
	if len(r.Raw) == 0 {
		return []byte("null"), nil
	}
	return r.Raw, nil
}

// Indent pretty-prints the raw document with the given indentation,
// preserving the key order chosen by the backend.
func (r AnalysisResult) Indent(indent string) (string, error) {
	if len(r.Raw) == 0 {
		return "null", nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, r.Raw, "", indent); err != nil {
		return "", err
	}
	return buf.String(), nil
}
