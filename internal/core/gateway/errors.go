package gateway

import (
	"fmt"

	"github.com/xzzpig/graph-gateway/internal/core/errs"
)

const (
	// ErrMissingQuery is returned for a request without a query string.
	ErrMissingQuery errs.ConstError = "request has no query"
	// ErrSubscriptionsUnsupported rejects subscription operations.
	ErrSubscriptionsUnsupported errs.ConstError = "subscriptions are not supported"
	// ErrMutationNotAllowed rejects mutations sent where only queries are accepted.
	ErrMutationNotAllowed errs.ConstError = "mutations are not allowed over GET"
)

// ParseError wraps a syntax error reported by the query parser.
type ParseError struct {
	Cause error
}

func (e *ParseError) Error() string { return "failed to parse query: " + e.Cause.Error() }

// Unwrap returns the parser error.
func (e *ParseError) Unwrap() error { return e.Cause }

// UnknownRootFieldError rejects a root field no upstream service provides.
type UnknownRootFieldError struct {
	Field string
}

func (e *UnknownRootFieldError) Error() string {
	return fmt.Sprintf("no upstream service provides root field %q", e.Field)
}

// Unwrap makes the error match errs.ErrInvalidInput.
func (e *UnknownRootFieldError) Unwrap() error { return errs.ErrInvalidInput }

// UnknownFragmentError rejects a spread of an undefined fragment.
type UnknownFragmentError struct {
	Name string
}

func (e *UnknownFragmentError) Error() string {
	return fmt.Sprintf("unknown fragment %q", e.Name)
}

// Unwrap makes the error match errs.ErrInvalidInput.
func (e *UnknownFragmentError) Unwrap() error { return errs.ErrInvalidInput }

// UpstreamError reports a failed call to one upstream service. It is placed
// into the response errors, never returned from Execute.
type UpstreamError struct {
	Service string
	Cause   error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s failed: %v", e.Service, e.Cause)
}

// Unwrap returns the transport error.
func (e *UpstreamError) Unwrap() error { return e.Cause }
