package gateway

import (
	"context"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/xzzpig/graph-gateway/internal/core/admission"
	"github.com/xzzpig/graph-gateway/internal/core/ports"
)

// RequestContext is what pre-execution hooks see of a request. Hooks may add
// response extensions; they must not modify the request.
type RequestContext struct {
	Request    *admission.Request
	Operation  *ast.OperationDefinition
	Extensions map[string]any
}

// PreExecutionHook runs once per request after parsing and before any upstream
// is contacted. A non-nil error rejects the request.
type PreExecutionHook interface {
	BeforeExecute(ctx context.Context, rc *RequestContext) error
}

// HookFunc adapts a function to PreExecutionHook.
type HookFunc func(ctx context.Context, rc *RequestContext) error

// BeforeExecute calls f.
func (f HookFunc) BeforeExecute(ctx context.Context, rc *RequestContext) error {
	return f(ctx, rc)
}

// CostExtensionKey is the response extension holding the cost report.
const CostExtensionKey = "cost"

// AdmissionHook registers the admission gate as a pre-execution hook.
type AdmissionHook struct {
	gates ports.GateProvider
}

// NewAdmissionHook creates a hook evaluating requests with the gate gates
// currently provides.
func NewAdmissionHook(gates ports.GateProvider) *AdmissionHook {
	return &AdmissionHook{gates: gates}
}

// BeforeExecute evaluates the request and records the cost report. Rejections
// are returned as *admission.QueryTooExpensiveError.
func (h *AdmissionHook) BeforeExecute(_ context.Context, rc *RequestContext) error {
	report, err := h.gates.Load().Evaluate(rc.Request)
	if report != nil {
		rc.Extensions[CostExtensionKey] = report
	}
	return err
}

var (
	_ PreExecutionHook = HookFunc(nil)
	_ PreExecutionHook = (*AdmissionHook)(nil)
)
