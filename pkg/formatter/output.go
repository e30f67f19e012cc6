package formatter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/helmcode/pairprog-ai/pkg/analyzer"
	"github.com/helmcode/pairprog-ai/pkg/backend"
	"github.com/helmcode/pairprog-ai/pkg/model"
	"gopkg.in/yaml.v3"
)

// Entry is the result of analyzing one document: an outcome or an error.
// Cleared marks a document that disappeared and had its findings removed.
type Entry struct {
	Path    string
	Outcome *analyzer.Outcome
	Err     error
	Cleared bool
}

// ErrorReport is the machine-readable form of a failed analysis.
type ErrorReport struct {
	Kind       string      `json:"kind" yaml:"kind"`
	Message    string      `json:"message" yaml:"message"`
	StatusCode int         `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	StatusText string      `json:"status_text,omitempty" yaml:"status_text,omitempty"`
	Body       interface{} `json:"body,omitempty" yaml:"body,omitempty"`
}

type entryReport struct {
	Path     string            `json:"path" yaml:"path"`
	Protocol string            `json:"protocol,omitempty" yaml:"protocol,omitempty"`
	Notices  []analyzer.Notice `json:"notices,omitempty" yaml:"notices,omitempty"`
	Result   interface{}       `json:"result,omitempty" yaml:"result,omitempty"`
	Findings []model.Finding   `json:"findings,omitempty" yaml:"findings,omitempty"`
	Dropped  int               `json:"dropped,omitempty" yaml:"dropped,omitempty"`
	Stale    bool              `json:"stale,omitempty" yaml:"stale,omitempty"`
	Cleared  bool              `json:"cleared,omitempty" yaml:"cleared,omitempty"`
	Error    *ErrorReport      `json:"error,omitempty" yaml:"error,omitempty"`
}

// DisplayResults writes entries to w in the given format.
func DisplayResults(w io.Writer, entries []Entry, format string) error {
	switch format {
	case "json":
		return displayJSON(w, entries)
	case "yaml":
		return displayYAML(w, entries)
	case "human":
		fallthrough
	default:
		displayHuman(w, entries)
	}
	return nil
}

func displayJSON(w io.Writer, entries []Entry) error {
	reports := buildReports(entries)
	output, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(output))
	return nil
}

func displayYAML(w io.Writer, entries []Entry) error {
	reports := buildReports(entries)
	for i := range reports {
		if err := reports[i].toYAML(); err != nil {
			return err
		}
	}
	output, err := yaml.Marshal(reports)
	if err != nil {
		return err
	}
	fmt.Fprint(w, string(output))
	return nil
}

func buildReports(entries []Entry) []entryReport {
	reports := make([]entryReport, 0, len(entries))
	for _, e := range entries {
		r := entryReport{Path: e.Path, Cleared: e.Cleared}
		if e.Err != nil {
			r.Error = NewErrorReport(e.Err)
		}
		if o := e.Outcome; o != nil {
			r.Protocol = string(o.Protocol)
			r.Notices = o.Notices
			r.Findings = o.Findings
			r.Dropped = o.Dropped
			r.Stale = o.Stale
			if o.Protocol == backend.ProtocolQuery && r.Findings == nil {
				r.Findings = []model.Finding{}
			}
			if o.Result != nil && len(o.Result.Raw) > 0 {
				r.Result = o.Result.Raw
			}
		}
		reports = append(reports, r)
	}
	return reports
}

// NewErrorReport classifies err for machine-readable output.
func NewErrorReport(err error) *ErrorReport {
	report := &ErrorReport{Message: err.Error()}

	var rejected *backend.RejectedError
	switch {
	case errors.Is(err, analyzer.ErrNoActiveDocument):
		report.Kind = "no_active_document"
	case errors.Is(err, analyzer.ErrEmptyDocument):
		report.Kind = "empty_document"
	case errors.As(err, &rejected):
		report.Kind = string(backend.KindRejected)
		report.StatusCode = rejected.StatusCode
		report.StatusText = rejected.StatusText
		report.Body = rawBody(rejected.Body)
	default:
		report.Kind = string(backend.Classify(err))
	}
	return report
}

// rawBody keeps a JSON body byte for byte; anything else becomes text.
func rawBody(body []byte) interface{} {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	return string(body)
}

// toYAML swaps raw JSON values for YAML nodes built from the same tokens,
// since yaml.v3 would otherwise emit the bytes as binary.
func (r *entryReport) toYAML() error {
	if raw, ok := r.Result.(json.RawMessage); ok {
		node, err := jsonToNode(raw)
		if err != nil {
			return fmt.Errorf("converting result of %s: %w", r.Path, err)
		}
		r.Result = node
	}
	if r.Error != nil {
		if raw, ok := r.Error.Body.(json.RawMessage); ok {
			node, err := jsonToNode(raw)
			if err != nil {
				return fmt.Errorf("converting error body of %s: %w", r.Path, err)
			}
			r.Error.Body = node
		}
	}
	return nil
}

func displayHuman(w io.Writer, entries []Entry) {
	green := color.New(color.FgGreen, color.Bold)

	total := 0
	for i, e := range entries {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if e.Err != nil {
			displayHumanError(w, e.Path, e.Err)
			continue
		}
		if e.Cleared {
			color.New(color.FgCyan).Fprintf(w, "ℹ️  %s was removed, findings cleared\n", e.Path)
			continue
		}
		if e.Outcome == nil {
			continue
		}
		displayNotices(w, e.Outcome.Notices)
		switch e.Outcome.Protocol {
		case backend.ProtocolREST:
			displayHumanResult(w, e.Outcome)
		case backend.ProtocolQuery:
			total += len(e.Outcome.Findings)
			displayHumanFindings(w, e.Path, e.Outcome)
		}
	}

	if len(entries) > 1 && hasQuery(entries) {
		fmt.Fprintln(w, strings.Repeat("─", 80))
		green.Fprintf(w, "%s across %d documents\n", issueCount(total), len(entries))
	}
}

func displayNotices(w io.Writer, notices []analyzer.Notice) {
	yellow := color.New(color.FgYellow)
	for _, n := range notices {
		yellow.Fprintf(w, "⚠️  %s\n", n.Message)
	}
}

func displayHumanResult(w io.Writer, o *analyzer.Outcome) {
	green := color.New(color.FgGreen)

	green.Fprintln(w, "✅ Analysis complete!")
	fmt.Fprintln(w, "---")
	pretty, err := o.Result.Indent("    ")
	if err != nil {
		fmt.Fprintln(w, string(o.Result.Raw))
		return
	}
	fmt.Fprintln(w, pretty)
}

func displayHumanFindings(w io.Writer, path string, o *analyzer.Outcome) {
	cyan := color.New(color.FgCyan, color.Bold)
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)

	cyan.Fprintln(w, path)
	if len(o.Findings) == 0 {
		green.Fprintln(w, "   ✓ No issues found")
	}
	for _, f := range o.Findings {
		lines := strings.Split(f.Message, "\n")
		loc := fmt.Sprintf("%d:%d", f.Range.Start.Line+1, f.Range.Start.Character+1)
		fmt.Fprintf(w, "   %-8s %s  %s\n", loc, red.Sprint(string(f.Severity)), lines[0])
		for _, extra := range lines[1:] {
			fmt.Fprintf(w, "   %-8s %s  %s\n", "", strings.Repeat(" ", len(f.Severity)), extra)
		}
	}
	if o.Dropped > 0 {
		fmt.Fprintf(w, "   %s\n", color.HiBlackString("%d suggestion(s) pointed outside the document and were skipped", o.Dropped))
	}
	if o.Stale {
		fmt.Fprintf(w, "   %s\n", color.HiBlackString("a newer analysis superseded this one; findings were not applied"))
	}
	fmt.Fprintf(w, "   %s\n", issueCount(len(o.Findings)))
}

func displayHumanError(w io.Writer, path string, err error) {
	red := color.New(color.FgRed, color.Bold)
	cyan := color.New(color.FgCyan)

	if errors.Is(err, analyzer.ErrEmptyDocument) || errors.Is(err, analyzer.ErrNoActiveDocument) {
		if path == "" {
			cyan.Fprintf(w, "ℹ️  %s\n", capitalize(err.Error()))
		} else {
			cyan.Fprintf(w, "ℹ️  %s: %s\n", path, err)
		}
		return
	}

	red.Fprintf(w, "❌ An error occurred while analyzing %s\n", path)

	var rejected *backend.RejectedError
	var unreachable *backend.UnreachableError
	var malformed *backend.MalformedResponseError
	switch {
	case errors.As(err, &rejected):
		fmt.Fprintf(w, "Error from backend: %d %s\n", rejected.StatusCode, rejected.StatusText)
		fmt.Fprintln(w, prettyBody(rejected.Body))
	case errors.As(err, &unreachable):
		fmt.Fprintln(w, "Could not connect to the AI backend. Is it running?")
		fmt.Fprintln(w, unreachable.Err.Error())
	case errors.As(err, &malformed):
		fmt.Fprintln(w, "Unexpected response from the AI backend.")
		fmt.Fprintln(w, malformed.Reason)
	default:
		fmt.Fprintln(w, err.Error())
	}
}

func prettyBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	pretty, err := model.AnalysisResult{Raw: body}.Indent("    ")
	if err != nil {
		return string(body)
	}
	return pretty
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func issueCount(n int) string {
	switch n {
	case 0:
		return "No issues found"
	case 1:
		return "Found 1 issue"
	default:
		return fmt.Sprintf("Found %d issues", n)
	}
}

func hasQuery(entries []Entry) bool {
	for _, e := range entries {
		if e.Outcome != nil && e.Outcome.Protocol == backend.ProtocolQuery {
			return true
		}
	}
	return false
}
