package parser

import (
	"errors"
	"testing"

	"github.com/helmcode/pairprog-ai/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQueryResponse(t *testing.T) {
	raw := `{"data":{"analyzeCode":[
		{"lineNumber":1,"errorDescription":"Unbalanced parenthesis","suggestedFix":"Add closing ')'"},
		{"lineNumber":3,"errorDescription":"Undefined name","suggestedFix":"Define x"}
	]}}`

	suggestions, err := ParseQueryResponse([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, []model.Suggestion{
		{LineNumber: 1, ErrorDescription: "Unbalanced parenthesis", SuggestedFix: "Add closing ')'"},
		{LineNumber: 3, ErrorDescription: "Undefined name", SuggestedFix: "Define x"},
	}, suggestions)
}

func TestParseQueryResponseEmpty(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty list", raw: `{"data":{"analyzeCode":[]}}`},
		{name: "null list", raw: `{"data":{"analyzeCode":null}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			suggestions, err := ParseQueryResponse([]byte(tt.raw))
			require.NoError(t, err)
			assert.NotNil(t, suggestions)
			assert.Empty(t, suggestions)
		})
	}
}

func TestParseQueryResponseMalformed(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		reason string
	}{
		{name: "not json", raw: `<html>oops</html>`, reason: "not a JSON object"},
		{name: "missing data", raw: `{}`, reason: "missing data"},
		{name: "graphql errors", raw: `{"data":null,"errors":[{"message":"boom"}]}`, reason: "boom"},
		{name: "null analyzeCode with errors", raw: `{"data":{"analyzeCode":null},"errors":[{"message":"resolver failed"}]}`, reason: "resolver failed"},
		{name: "data not object", raw: `{"data":[1,2]}`, reason: "data is not an object"},
		{name: "missing analyzeCode", raw: `{"data":{"other":[]}}`, reason: "missing data.analyzeCode"},
		{name: "wrong element type", raw: `{"data":{"analyzeCode":[{"lineNumber":"one"}]}}`, reason: "not a list of suggestions"},
		{name: "analyzeCode object", raw: `{"data":{"analyzeCode":{"lineNumber":1}}}`, reason: "not a list of suggestions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseQueryResponse([]byte(tt.raw))
			require.Error(t, err)

			var shapeErr *ShapeError
			require.True(t, errors.As(err, &shapeErr))
			assert.Contains(t, shapeErr.Reason, tt.reason)
		})
	}
}

func TestParseRESTResponse(t *testing.T) {
	result, err := ParseRESTResponse([]byte("  {\"b\":1,\"a\":[true]}\n"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"b":1,"a":[true]}`, string(result.Raw))

	_, err = ParseRESTResponse([]byte(""))
	assert.Error(t, err)

	_, err = ParseRESTResponse([]byte("plain text"))
	var shapeErr *ShapeError
	assert.True(t, errors.As(err, &shapeErr))
}
