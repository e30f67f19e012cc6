package backend

import (
	"errors"
	"fmt"

	"github.com/helmcode/pairprog-ai/pkg/parser"
)

// Kind classifies backend failures.
type Kind string

const (
	KindNone        Kind = ""
	KindUnreachable Kind = "unreachable"
	KindRejected    Kind = "rejected"
	KindMalformed   Kind = "malformed"
	KindUnknown     Kind = "unknown"
)

// UnreachableError is a transport-level failure: the backend never answered.
type UnreachableError struct {
	URL string
	Err error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("could not connect to backend at %s: %v", e.URL, e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// RejectedError is a non-2xx answer. The body is kept verbatim.
type RejectedError struct {
	StatusCode int
	StatusText string
	Body       []byte
}

func (e *RejectedError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("backend rejected request: %d %s", e.StatusCode, e.StatusText)
	}
	return fmt.Sprintf("backend rejected request: %d %s: %s", e.StatusCode, e.StatusText, string(e.Body))
}

// MalformedResponseError is a 2xx answer whose body has an unexpected shape.
type MalformedResponseError struct {
	Reason string
	Body   []byte
	Err    error
}

func (e *MalformedResponseError) Error() string {
	return "malformed backend response: " + e.Reason
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

func malformed(err error, body []byte) *MalformedResponseError {
	reason := err.Error()
	var shapeErr *parser.ShapeError
	if errors.As(err, &shapeErr) {
		reason = shapeErr.Reason
	}
	return &MalformedResponseError{Reason: reason, Body: body, Err: err}
}

// Classify maps an error returned by a Backend onto a Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	var unreachable *UnreachableError
	var rejected *RejectedError
	var malformedErr *MalformedResponseError
	switch {
	case errors.As(err, &unreachable):
		return KindUnreachable
	case errors.As(err, &rejected):
		return KindRejected
	case errors.As(err, &malformedErr):
		return KindMalformed
	default:
		return KindUnknown
	}
}

func outcomeLabel(err error) string {
	if err == nil {
		return "success"
	}
	return string(Classify(err))
}
