package graphql

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"go.uber.org/zap"

	"github.com/xzzpig/graph-gateway/internal/core/admission"
	"github.com/xzzpig/graph-gateway/internal/core/errs"
	"github.com/xzzpig/graph-gateway/internal/core/gateway"
	"github.com/xzzpig/graph-gateway/internal/core/logger"
	"github.com/xzzpig/graph-gateway/internal/i18n"
)

// ConstError is an alias to errs.ConstError for defining sentinel errors in this package.
type ConstError = errs.ConstError

const (
	// ErrInternalServer is returned when an internal server error occurs during GraphQL execution.
	ErrInternalServer ConstError = "internal server error"
)

// Error codes set in extensions.code.
const (
	CodeQueryTooExpensive        = "QUERY_TOO_EXPENSIVE"
	CodeMalformedVariableBinding = "MALFORMED_VARIABLE_BINDING"
	CodeParseFailed              = "GRAPHQL_PARSE_FAILED"
	CodeValidationFailed         = "GRAPHQL_VALIDATION_FAILED"
	CodeBadRequest               = "BAD_REQUEST"
	CodeInternal                 = "INTERNAL_SERVER_ERROR"
)

// errorsLog returns a named logger for the graphql errors package.
func errorsLog() *zap.Logger {
	return logger.Named("api.graphql.errors")
}

// ErrorPresenter turns request-level errors into localized GraphQL errors with
// an extensions.code. Cost rejections also carry extensions.cost and
// extensions.budget.
func ErrorPresenter(ctx context.Context, err error) *gqlerror.Error {
	var (
		tooExpensive *admission.QueryTooExpensiveError
		malformed    *admission.MalformedVariableBindingError
		parseErr     *gateway.ParseError
		unknownField *gateway.UnknownRootFieldError
		unknownFrag  *gateway.UnknownFragmentError
	)

	switch {
	case errors.As(err, &tooExpensive):
		return presented(err, i18n.CtxWithData(ctx, i18n.ErrQueryTooExpensive, map[string]interface{}{
			"Cost":   tooExpensive.Cost,
			"Budget": tooExpensive.Budget,
		}), map[string]any{
			"code":   CodeQueryTooExpensive,
			"cost":   tooExpensive.Cost,
			"budget": tooExpensive.Budget,
		})

	case errors.As(err, &malformed):
		return presented(err, i18n.CtxWithData(ctx, i18n.ErrMalformedVariableBinding, map[string]interface{}{
			"Field":    malformed.Field,
			"Argument": malformed.Argument,
		}), map[string]any{"code": CodeMalformedVariableBinding})

	case errors.As(err, &parseErr):
		gqlErr := presented(err, i18n.CtxWithData(ctx, i18n.ErrQueryParseFailed, map[string]interface{}{
			"Detail": parseDetail(parseErr),
		}), map[string]any{"code": CodeParseFailed})
		var cause *gqlerror.Error
		if errors.As(parseErr.Cause, &cause) {
			gqlErr.Locations = cause.Locations
		}
		return gqlErr

	case errors.Is(err, admission.ErrOperationNotFound):
		return presented(err, i18n.Ctx(ctx, i18n.ErrOperationNotFound), map[string]any{"code": CodeValidationFailed})

	case errors.Is(err, gateway.ErrSubscriptionsUnsupported):
		return presented(err, i18n.Ctx(ctx, i18n.ErrSubscriptionsUnsupported), map[string]any{"code": CodeValidationFailed})

	case errors.Is(err, gateway.ErrMutationNotAllowed):
		return presented(err, i18n.Ctx(ctx, i18n.ErrMutationNotAllowed), map[string]any{"code": CodeValidationFailed})

	case errors.As(err, &unknownField):
		return presented(err, i18n.CtxWithData(ctx, i18n.ErrUnknownRootField, map[string]interface{}{
			"Field": unknownField.Field,
		}), map[string]any{"code": CodeValidationFailed})

	case errors.As(err, &unknownFrag):
		return presented(err, i18n.CtxWithData(ctx, i18n.ErrUnknownFragment, map[string]interface{}{
			"Name": unknownFrag.Name,
		}), map[string]any{"code": CodeValidationFailed})

	case errors.Is(err, gateway.ErrMissingQuery):
		return presented(err, i18n.Ctx(ctx, i18n.ErrMissingQuery), map[string]any{"code": CodeBadRequest})
	}

	if i18nErr, ok := i18n.IsI18nError(err); ok {
		return presented(err, i18nErr.TranslateCtx(ctx), map[string]any{"code": i18nErr.MsgID})
	}

	gqlErr := graphql.DefaultErrorPresenter(ctx, err)
	if gqlErr.Extensions == nil {
		gqlErr.Extensions = map[string]any{"code": CodeInternal}
	}
	return gqlErr
}

func presented(err error, message string, extensions map[string]any) *gqlerror.Error {
	return &gqlerror.Error{Err: err, Message: message, Extensions: extensions}
}

func parseDetail(e *gateway.ParseError) string {
	var cause *gqlerror.Error
	if errors.As(e.Cause, &cause) {
		return cause.Message
	}
	return e.Cause.Error()
}

// StatusFor maps a request-level error to an HTTP status code.
func StatusFor(err error) int {
	if i18nErr, ok := i18n.IsI18nError(err); ok {
		return i18nErr.StatusCode
	}
	var parseErr *gateway.ParseError
	switch {
	case errors.Is(err, admission.ErrQueryTooExpensive),
		errors.Is(err, admission.ErrMalformedVariableBinding),
		errors.Is(err, admission.ErrOperationNotFound),
		errors.As(err, &parseErr),
		errors.Is(err, gateway.ErrMissingQuery),
		errors.Is(err, gateway.ErrSubscriptionsUnsupported),
		errors.Is(err, gateway.ErrMutationNotAllowed),
		errors.Is(err, errs.ErrInvalidInput):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// localizeUpstreamErrors rewrites the messages of errors produced by failed
// upstream calls in the caller's language. Errors reported by the upstream
// services themselves are passed through.
func localizeUpstreamErrors(ctx context.Context, list gqlerror.List) {
	for _, e := range list {
		var upErr *gateway.UpstreamError
		if errors.As(e.Err, &upErr) {
			e.Message = i18n.CtxWithData(ctx, i18n.ErrUpstreamFailed, map[string]interface{}{
				"Service": upErr.Service,
			})
		}
	}
}

// RecoverFunc is a panic recovery function for GraphQL.
// It logs the panic details including stack trace for debugging purposes.
func RecoverFunc(_ context.Context, p interface{}) error {
	stack := string(debug.Stack())

	errorsLog().Error("GraphQL panic recovered",
		zap.Any("panic", p),
		zap.String("panic_details", fmt.Sprintf("%v", p)),
		zap.String("stack", stack),
	)

	// don't expose internal details
	return ErrInternalServer
}
