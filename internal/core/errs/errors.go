// Package errs holds the sentinel errors shared across the gateway's layers.
package errs

import "errors"

// ConstError is a string-backed error usable as a constant sentinel.
type ConstError string

func (e ConstError) Error() string {
	return string(e)
}

// Sentinel errors for the domain layer.
// Lower layers wrap these so the API layer can map them to responses without
// knowing where they came from.
var (
	// ErrNotFound is returned when a requested resource is not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when the input provided is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSystem is returned when an unexpected system error occurs.
	ErrSystem = errors.New("system error")

	// ErrUnavailable is returned when a dependency (an upstream service) cannot be reached.
	ErrUnavailable = errors.New("service unavailable")
)
