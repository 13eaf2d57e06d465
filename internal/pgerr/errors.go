// Package pgerr defines the error taxonomy shared by every pgbranch
// component, so CLI output and --json error objects stay consistent
// regardless of which layer failed.
package pgerr

import (
	"fmt"

	goerrors "github.com/go-errors/errors"
)

// Kind is one of the fixed error categories from the error handling design.
type Kind string

const (
	ConfigInvalid       Kind = "ConfigInvalid"
	ConfigMissing       Kind = "ConfigMissing"
	StateIncompatible   Kind = "StateIncompatible"
	NameCollision       Kind = "NameCollision"
	ParentMissing       Kind = "ParentMissing"
	BackendUnavailable  Kind = "BackendUnavailable"
	TemplateBusy        Kind = "TemplateBusy"
	StorageUnavailable  Kind = "StorageUnavailable"
	SourceBusy          Kind = "SourceBusy"
	ContainerFailed     Kind = "ContainerFailed"
	ReadinessTimeout    Kind = "ReadinessTimeout"
	PermissionDenied    Kind = "PermissionDenied"
	PolicyBlocked       Kind = "PolicyBlocked"
	Timeout             Kind = "Timeout"
	UserAborted         Kind = "UserAborted"
	IoError             Kind = "IoError"
	RemoteApiError      Kind = "RemoteApiError"
)

// Context carries the operation metadata every wrapped error should report:
// which project, which branch, and which phase of the lifecycle failed.
type Context struct {
	Project string
	Branch  string
	Phase   string
}

// Error is the structured error type returned across layer boundaries. It
// implements error and carries enough detail to render both the
// interactive single-line-cause-and-hint form and the --json form.
type Error struct {
	Kind    Kind
	Message string
	Context Context
	Hint    string
	cause   error
}

func (e *Error) Error() string {
	if e.Context.Branch != "" {
		return fmt.Sprintf("%s: %s (project=%s branch=%s phase=%s)", e.Kind, e.Message, e.Context.Project, e.Context.Branch, e.Context.Phase)
	}
	if e.Context.Project != "" {
		return fmt.Sprintf("%s: %s (project=%s phase=%s)", e.Kind, e.Message, e.Context.Project, e.Context.Phase)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an Error wrapped with a stack trace via go-errors, so
// boundary failures stay reportable with their origin.
func New(kind Kind, ctx Context, cause error, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	var wrapped error
	if cause != nil {
		wrapped = goerrors.WrapPrefix(cause, msg, 1)
	} else {
		wrapped = goerrors.New(msg)
	}
	return &Error{Kind: kind, Message: msg, Context: ctx, cause: wrapped}
}

// WithHint attaches a user-facing suggestion to the error value.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// As returns the first *Error in err's Unwrap chain and whether one was
// found, for callers that branch on error taxonomy (e.g. cmd exit codes).
func As(err error) (*Error, bool) {
	var target *Error
	for err != nil {
		if pe, ok := err.(*Error); ok {
			target = pe
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return target, target != nil
}

// JSON is the stable shape emitted on stdout in --json error mode.
type JSON struct {
	OK    bool   `json:"ok"`
	Error *Body  `json:"error,omitempty"`
}

type Body struct {
	Kind    Kind    `json:"kind"`
	Message string  `json:"message"`
	Context Context `json:"context"`
}

// ToJSON renders the stable {ok:false, error:{...}} envelope for --json mode.
func ToJSON(err error) JSON {
	if pe, ok := As(err); ok {
		return JSON{OK: false, Error: &Body{Kind: pe.Kind, Message: pe.Message, Context: pe.Context}}
	}
	return JSON{OK: false, Error: &Body{Kind: IoError, Message: err.Error()}}
}
