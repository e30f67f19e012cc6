package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/helmcode/pairprog-ai/pkg/backend"
	"github.com/helmcode/pairprog-ai/pkg/diagnostics"
	"github.com/helmcode/pairprog-ai/pkg/document"
	"github.com/helmcode/pairprog-ai/pkg/metrics"
	"github.com/helmcode/pairprog-ai/pkg/model"
	"go.uber.org/zap"
)

var (
	ErrNoActiveDocument = errors.New("no active document found, open a file to analyze")
	ErrEmptyDocument    = errors.New("the file is empty, write some code to analyze")
)

// DefaultLanguage is the language the backend is tuned for.
const DefaultLanguage = "python"

type NoticeKind string

const NoticeUnsupportedLanguage NoticeKind = "unsupported_language"

// Notice is advisory: it never stops an analysis.
type Notice struct {
	Kind    NoticeKind `json:"kind" yaml:"kind"`
	Message string     `json:"message" yaml:"message"`
}

// Outcome is the result of one successful analysis. Result is set for the
// REST protocol, Findings for the query protocol.
type Outcome struct {
	Protocol  backend.Protocol `json:"protocol" yaml:"protocol"`
	URI       string           `json:"uri" yaml:"uri"`
	Path      string           `json:"path" yaml:"path"`
	RequestID string           `json:"request_id" yaml:"request_id"`
	Notices   []Notice         `json:"notices,omitempty" yaml:"notices,omitempty"`

	Result *model.AnalysisResult `json:"result,omitempty" yaml:"-"`

	Findings []model.Finding `json:"findings,omitempty" yaml:"findings,omitempty"`
	// Dropped counts suggestions discarded by the line policy.
	Dropped int `json:"dropped,omitempty" yaml:"dropped,omitempty"`
	// Stale is set when a newer request for the same document superseded
	// this one, so Findings were not applied to the store.
	Stale bool `json:"stale,omitempty" yaml:"stale,omitempty"`
}

type Options struct {
	// ExpectedLanguage triggers an advisory notice for other languages.
	// Empty means DefaultLanguage.
	ExpectedLanguage string
	LinePolicy       diagnostics.LinePolicy
	Logger           *zap.Logger
	Recorder         *metrics.Recorder
}

// Analyzer runs "Analyze Code" invocations against one backend and owns the
// diagnostic collection they update.
type Analyzer struct {
	backend          backend.Backend
	store            *diagnostics.Store
	mapper           diagnostics.Mapper
	expectedLanguage string
	logger           *zap.Logger
	recorder         *metrics.Recorder
}

func New(b backend.Backend, store *diagnostics.Store, opts Options) *Analyzer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if store == nil {
		store = diagnostics.NewStore(diagnostics.StoreOptions{StrictOrder: true})
	}
	policy := opts.LinePolicy
	if policy == "" {
		policy = diagnostics.LinePolicyDrop
	}
	lang := opts.ExpectedLanguage
	if lang == "" {
		lang = DefaultLanguage
	}
	return &Analyzer{
		backend:          b,
		store:            store,
		mapper:           diagnostics.Mapper{Policy: policy, Logger: logger},
		expectedLanguage: lang,
		logger:           logger,
		recorder:         opts.Recorder,
	}
}

// Store returns the diagnostic collection updated by query analyses.
func (a *Analyzer) Store() *diagnostics.Store {
	return a.store
}

func (a *Analyzer) Protocol() backend.Protocol {
	return a.backend.Protocol()
}

// Analyze sends doc to the backend. Empty or missing documents are rejected
// before any request is made. On failure the diagnostic collection is left
// untouched.
func (a *Analyzer) Analyze(ctx context.Context, doc *document.Document) (*Outcome, error) {
	if doc == nil {
		return nil, ErrNoActiveDocument
	}
	if doc.IsBlank() {
		return nil, ErrEmptyDocument
	}

	outcome := &Outcome{
		Protocol: a.backend.Protocol(),
		URI:      doc.URI,
		Path:     doc.Path,
	}
	if !strings.EqualFold(doc.LanguageID, a.expectedLanguage) {
		outcome.Notices = append(outcome.Notices, languageNotice(a.expectedLanguage, doc.LanguageID))
	}

	logger := a.logger.With(
		zap.String("uri", doc.URI),
		zap.String("protocol", string(outcome.Protocol)),
	)

	var ticket diagnostics.Ticket
	if outcome.Protocol == backend.ProtocolQuery {
		ticket = a.store.Begin(doc.URI)
	}

	resp, err := a.backend.Analyze(ctx, doc.Text)
	if err != nil {
		logger.Debug("analysis failed", zap.String("kind", string(backend.Classify(err))), zap.Error(err))
		return nil, fmt.Errorf("analyze %s: %w", displayName(doc), err)
	}
	outcome.RequestID = resp.RequestID

	switch resp.Protocol {
	case backend.ProtocolREST:
		outcome.Result = resp.Result
	case backend.ProtocolQuery:
		findings, dropped := a.mapper.Map(doc, resp.Suggestions)
		outcome.Findings = findings
		outcome.Dropped = dropped
		a.recorder.AddDropped(dropped)
		a.recorder.ObserveFindings(doc.LanguageID, len(findings))

		if !a.store.Replace(ticket, findings) {
			outcome.Stale = true
			a.recorder.IncStale()
			logger.Info("discarding superseded analysis", zap.Uint64("seq", ticket.Seq))
		}
	default:
		return nil, fmt.Errorf("analyze %s: unexpected protocol %q in response", displayName(doc), resp.Protocol)
	}

	logger.Debug("analysis complete",
		zap.String("request_id", resp.RequestID),
		zap.Int("findings", len(outcome.Findings)),
		zap.Int("dropped", outcome.Dropped),
	)
	return outcome, nil
}

func languageNotice(expected, actual string) Notice {
	return Notice{
		Kind: NoticeUnsupportedLanguage,
		Message: fmt.Sprintf("This tool is optimized for %s. Analysis for %s may not be accurate.",
			languageName(expected), languageName(actual)),
	}
}

func languageName(id string) string {
	if id == "" {
		return "unknown languages"
	}
	return strings.ToUpper(id[:1]) + id[1:]
}

func displayName(doc *document.Document) string {
	if doc.Path != "" {
		return doc.Path
	}
	return doc.URI
}
