package backend

import (
	"context"

	"github.com/helmcode/pairprog-ai/pkg/parser"
	"github.com/helmcode/pairprog-ai/pkg/query"
)

// Query sends the AnalyzeCode query to /graphql and returns the suggestions.
type Query struct {
	core *httpCore
}

func NewQuery(opts Options) *Query {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	return &Query{core: newHTTPCore(opts)}
}

func (q *Query) Protocol() Protocol { return ProtocolQuery }

func (q *Query) Analyze(ctx context.Context, code string) (*Response, error) {
	body, err := query.BuildAnalyzeCodeQuery(code)
	if err != nil {
		return nil, err
	}

	raw, err := q.core.post(ctx, ProtocolQuery, GraphQLPath, body)
	if err != nil {
		return nil, err
	}

	suggestions, err := parser.ParseQueryResponse(raw.body)
	if err != nil {
		err = malformed(err, raw.body)
	}
	q.core.finish(ProtocolQuery, raw, err)
	if err != nil {
		return nil, err
	}

	return &Response{
		Protocol:    ProtocolQuery,
		RequestID:   raw.requestID,
		Suggestions: suggestions,
	}, nil
}
