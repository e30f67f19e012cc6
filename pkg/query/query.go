package query

import (
	"encoding/json"
	"fmt"
)

// AnalyzeCodeQuery is the fixed query document sent to the query endpoint.
const AnalyzeCodeQuery = "query AnalyzeCode($code: String!) { analyzeCode(code: $code) { lineNumber errorDescription suggestedFix } }"

// Request is the body accepted by a GraphQL-style endpoint.
type Request struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

// AnalyzeRequest is the REST endpoint body.
type AnalyzeRequest struct {
	Code string `json:"code"`
}

// BuildAnalyzeRequest marshals the REST body for code.
func BuildAnalyzeRequest(code string) ([]byte, error) {
	body, err := json.Marshal(AnalyzeRequest{Code: code})
	if err != nil {
		return nil, fmt.Errorf("marshal analyze request: %w", err)
	}
	return body, nil
}

// BuildAnalyzeCodeQuery marshals the query body for code.
func BuildAnalyzeCodeQuery(code string) ([]byte, error) {
	body, err := json.Marshal(Request{
		Query:     AnalyzeCodeQuery,
		Variables: map[string]interface{}{"code": code},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal analyzeCode query: %w", err)
	}
	return body, nil
}
