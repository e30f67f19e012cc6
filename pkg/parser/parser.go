package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/helmcode/pairprog-ai/pkg/model"
)

// ShapeError reports a response that does not have the expected structure.
type ShapeError struct {
	Reason string
}

func (e *ShapeError) Error() string {
	return "unexpected response shape: " + e.Reason
}

func shapeErrorf(format string, args ...interface{}) error {
	return &ShapeError{Reason: fmt.Sprintf(format, args...)}
}

type graphQLError struct {
	Message string `json:"message"`
}

type queryEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// ParseQueryResponse extracts data.analyzeCode from a query response body.
// A null or empty analyzeCode list yields no suggestions; a missing one is a
// shape error.
func ParseQueryResponse(raw []byte) ([]model.Suggestion, error) {
	var env queryEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, shapeErrorf("body is not a JSON object: %v", err)
	}

	if isNull(env.Data) {
		if len(env.Errors) > 0 {
			return nil, shapeErrorf("backend reported errors: %s", joinErrors(env.Errors))
		}
		return nil, shapeErrorf("missing data")
	}

	var data map[string]json.RawMessage
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, shapeErrorf("data is not an object: %v", err)
	}

	field, ok := data["analyzeCode"]
	if !ok {
		if len(env.Errors) > 0 {
			return nil, shapeErrorf("missing data.analyzeCode: %s", joinErrors(env.Errors))
		}
		return nil, shapeErrorf("missing data.analyzeCode")
	}
	if isNull(field) {
		// a null result next to errors is a resolver failure, not "no issues"
		if len(env.Errors) > 0 {
			return nil, shapeErrorf("backend reported errors: %s", joinErrors(env.Errors))
		}
		return []model.Suggestion{}, nil
	}

	var suggestions []model.Suggestion
	if err := json.Unmarshal(field, &suggestions); err != nil {
		return nil, shapeErrorf("data.analyzeCode is not a list of suggestions: %v", err)
	}
	if suggestions == nil {
		suggestions = []model.Suggestion{}
	}
	return suggestions, nil
}

// ParseRESTResponse validates that a REST body is a JSON document and wraps
// it verbatim.
func ParseRESTResponse(raw []byte) (*model.AnalysisResult, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, shapeErrorf("empty body")
	}
	if !json.Valid(trimmed) {
		return nil, shapeErrorf("body is not valid JSON")
	}
	return &model.AnalysisResult{Raw: json.RawMessage(trimmed)}, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func joinErrors(errs []graphQLError) string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}
