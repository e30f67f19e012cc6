package backend

import (
	"context"

	"github.com/helmcode/pairprog-ai/pkg/parser"
	"github.com/helmcode/pairprog-ai/pkg/query"
)

// REST posts {"code": ...} to /analyze and returns whatever JSON comes back.
type REST struct {
	core *httpCore
}

func NewREST(opts Options) *REST {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	return &REST{core: newHTTPCore(opts)}
}

func (r *REST) Protocol() Protocol { return ProtocolREST }

func (r *REST) Analyze(ctx context.Context, code string) (*Response, error) {
	body, err := query.BuildAnalyzeRequest(code)
	if err != nil {
		return nil, err
	}

	raw, err := r.core.post(ctx, ProtocolREST, AnalyzePath, body)
	if err != nil {
		return nil, err
	}

	result, err := parser.ParseRESTResponse(raw.body)
	if err != nil {
		err = malformed(err, raw.body)
	}
	r.core.finish(ProtocolREST, raw, err)
	if err != nil {
		return nil, err
	}

	return &Response{
		Protocol:  ProtocolREST,
		RequestID: raw.requestID,
		Result:    result,
	}, nil
}
