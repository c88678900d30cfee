package admission

import (
	"fmt"

	"github.com/xzzpig/graph-gateway/internal/core/errs"
)

const (
	// ErrQueryTooExpensive matches every *QueryTooExpensiveError.
	ErrQueryTooExpensive errs.ConstError = "query too expensive"
	// ErrMalformedVariableBinding matches every *MalformedVariableBindingError.
	ErrMalformedVariableBinding errs.ConstError = "malformed variable binding"
	// ErrOperationNotFound is returned when the request names an operation the
	// document does not contain, or names none while the document has several.
	ErrOperationNotFound errs.ConstError = "operation not found"
)

// QueryTooExpensiveError rejects a request whose computed cost exceeds the budget.
type QueryTooExpensiveError struct {
	RequestID string
	Cost      int
	Budget    int
}

func (e *QueryTooExpensiveError) Error() string {
	return fmt.Sprintf("query cost %d exceeds maximum cost %d", e.Cost, e.Budget)
}

// Is reports whether target is ErrQueryTooExpensive.
func (e *QueryTooExpensiveError) Is(target error) bool {
	return target == ErrQueryTooExpensive
}

// MalformedVariableBindingError is returned under MultiplierPolicyStrict when a
// multiplier argument is unbound or not a non-negative number.
type MalformedVariableBindingError struct {
	Field    string
	Argument string
	Value    any
}

func (e *MalformedVariableBindingError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("multiplier argument %q of field %q is not bound", e.Argument, e.Field)
	}
	return fmt.Sprintf("multiplier argument %q of field %q has non-numeric value %v", e.Argument, e.Field, e.Value)
}

// Is reports whether target is ErrMalformedVariableBinding.
func (e *MalformedVariableBindingError) Is(target error) bool {
	return target == ErrMalformedVariableBinding
}
