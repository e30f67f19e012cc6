package backend

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/helmcode/pairprog-ai/pkg/metrics"
	"github.com/helmcode/pairprog-ai/pkg/model"
	"go.uber.org/zap"
)

// Protocol selects how the backend is spoken to.
type Protocol string

const (
	ProtocolREST  Protocol = "rest"
	ProtocolQuery Protocol = "query"
)

// DefaultBaseURL is where the analysis backend listens unless configured.
const DefaultBaseURL = "http://127.0.0.1:8000"

const (
	AnalyzePath = "/analyze"
	GraphQLPath = "/graphql"
)

// ParseProtocol accepts "rest" or "query" (and "graphql" as an alias).
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rest":
		return ProtocolREST, nil
	case "query", "graphql":
		return ProtocolQuery, nil
	default:
		return "", fmt.Errorf("unsupported protocol: %s (supported: rest, query)", s)
	}
}

// Options configure a Backend.
type Options struct {
	BaseURL string
	// Timeout bounds a whole call. Zero leaves the transport default in place.
	Timeout time.Duration
	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
	Logger     *zap.Logger
	Recorder   *metrics.Recorder
}

// Response is the successful answer of one call. Exactly one of Result
// (ProtocolREST) or Suggestions (ProtocolQuery) is set.
type Response struct {
	Protocol    Protocol
	RequestID   string
	Result      *model.AnalysisResult
	Suggestions []model.Suggestion
}

// Backend analyzes source code remotely.
type Backend interface {
	Protocol() Protocol
	Analyze(ctx context.Context, code string) (*Response, error)
}

// New builds the Backend for protocol.
func New(protocol Protocol, opts Options) (Backend, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	switch protocol {
	case ProtocolREST:
		return NewREST(opts), nil
	case ProtocolQuery:
		return NewQuery(opts), nil
	default:
		return nil, fmt.Errorf("unsupported protocol: %s (supported: rest, query)", protocol)
	}
}

// AvailableProtocols lists the protocols New accepts.
func AvailableProtocols() []Protocol {
	return []Protocol{ProtocolREST, ProtocolQuery}
}
