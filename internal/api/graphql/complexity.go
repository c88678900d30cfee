package graphql

import (
	"context"

	"github.com/99designs/gqlgen/graphql"
	"github.com/99designs/gqlgen/graphql/handler"
	"github.com/google/uuid"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/xzzpig/graph-gateway/internal/core/admission"
	"github.com/xzzpig/graph-gateway/internal/core/gateway"
	"github.com/xzzpig/graph-gateway/internal/core/ports"
)

// AdmissionExtension runs the admission gate inside a gqlgen server, after the
// operation has been parsed and validated against the schema and before any
// resolver runs. Rejected operations never execute.
type AdmissionExtension struct {
	Gates ports.GateProvider
}

// ExtensionName returns the extension name.
func (AdmissionExtension) ExtensionName() string {
	return "AdmissionGate"
}

// Validate validates the extension configuration.
func (e AdmissionExtension) Validate(_ graphql.ExecutableSchema) error {
	if e.Gates == nil {
		return ErrNoGate
	}
	return nil
}

// MutateOperationContext evaluates the operation and records the report
// under the "cost" response extension.
func (e AdmissionExtension) MutateOperationContext(ctx context.Context, oc *graphql.OperationContext) *gqlerror.Error {
	req := &admission.Request{
		ID:            uuid.NewString(),
		Document:      oc.Doc,
		OperationName: oc.OperationName,
		Variables:     oc.Variables,
	}

	report, err := e.Gates.Load().Evaluate(req)
	if report != nil {
		oc.Stats.SetExtension(gateway.CostExtensionKey, report)
	}
	if err != nil {
		return ErrorPresenter(ctx, err)
	}
	return nil
}

// ErrNoGate is returned by Validate when the extension has no gate provider.
const ErrNoGate ConstError = "admission extension has no gate provider"

// ConfigureAdmission installs the admission gate and operation logging on a
// gqlgen server.
func ConfigureAdmission(srv *handler.Server, gates ports.GateProvider) {
	srv.SetErrorPresenter(ErrorPresenter)
	srv.SetRecoverFunc(RecoverFunc)
	srv.Use(AdmissionExtension{Gates: gates})
	srv.Use(NewLoggingExtension())
}

var (
	_ graphql.HandlerExtension        = AdmissionExtension{}
	_ graphql.OperationContextMutator = AdmissionExtension{}
)
