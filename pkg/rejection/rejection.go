// Package rejection defines the typed outcome of a transition that did not complete normally.
//
// Most rejections are control flow rather than failures: a transition that was
// superseded, redirected, ignored or aborted produces a Rejection that well-behaved
// callers should not report as an application error. Only Error-typed rejections
// carry a genuine failure, available through Unwrap.
package rejection

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/atomic"
)

// Type classifies a Rejection. The numeric values are stable and public.
type Type int

const (
	// Superseded means a newer transition started, or a hook requested a redirect.
	Superseded Type = 2
	// Aborted means a hook returned false, the transition was aborted, or the router was disposed.
	Aborted Type = 3
	// Invalid means the target state or its parameters are not valid.
	Invalid Type = 4
	// Ignored means the transition would not change anything.
	Ignored Type = 5
	// Error means a hook or resolve function failed.
	Error Type = 6
)

func (t Type) String() string {
	switch t {
	case Superseded:
		return "superseded"
	case Aborted:
		return "aborted"
	case Invalid:
		return "invalid"
	case Ignored:
		return "ignored"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

var nextID atomic.Int64

// Rejection is an immutable control-flow value. It implements error.
type Rejection struct {
	ID         int64
	Type       Type
	Message    string
	Detail     any
	Redirected bool
}

func newRejection(t Type, message string, detail any) *Rejection {
	return &Rejection{
		ID:      nextID.Inc() - 1,
		Type:    t,
		Message: message,
		Detail:  detail,
	}
}

const supersededMessage = "The transition has been superseded by a different transition"

// NewSuperseded creates a Superseded rejection. detail is usually the superseding transition.
func NewSuperseded(detail any) *Rejection {
	return newRejection(Superseded, supersededMessage, detail)
}

// NewRedirected creates a Superseded rejection flagged as a redirect. detail is the redirect target.
func NewRedirected(detail any) *Rejection {
	r := newRejection(Superseded, supersededMessage, detail)
	r.Redirected = true
	return r
}

// NewInvalid creates an Invalid rejection.
func NewInvalid(detail any) *Rejection {
	return newRejection(Invalid, "This transition is invalid", detail)
}

// NewIgnored creates an Ignored rejection.
func NewIgnored(detail any) *Rejection {
	return newRejection(Ignored, "The transition was ignored", detail)
}

// NewAborted creates an Aborted rejection.
func NewAborted(detail any) *Rejection {
	return newRejection(Aborted, "The transition has been aborted", detail)
}

// NewErrored creates an Error rejection wrapping detail.
func NewErrored(detail any) *Rejection {
	return newRejection(Error, "The transition errored", detail)
}

// Normalize returns v unchanged if it is (or wraps) a Rejection, otherwise wraps it as an Error rejection.
func Normalize(v any) *Rejection {
	if err, ok := v.(error); ok {
		if r, ok := As(err); ok {
			return r
		}
	}
	return NewErrored(v)
}

// As extracts a Rejection from err's chain.
func As(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// IsType reports whether err is a Rejection of type t.
func IsType(err error, t Type) bool {
	r, ok := As(err)
	return ok && r.Type == t
}

// Error implements error.
func (r *Rejection) Error() string {
	return fmt.Sprintf("Transition Rejection($id: %d type: %d, message: %s, detail: %s)",
		r.ID, int(r.Type), r.Message, detailString(r.Detail))
}

// Unwrap exposes an error carried as Detail, so errors.Is/As reach the original failure.
func (r *Rejection) Unwrap() error {
	if err, ok := r.Detail.(error); ok {
		return err
	}
	return nil
}

func detailString(d any) string {
	switch v := d.(type) {
	case nil:
		return "undefined"
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case error:
		return v.Error()
	}
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Sprintf("%v", d)
	}
	return string(b)
}
