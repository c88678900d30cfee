package graphql

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/xzzpig/graph-gateway/internal/core/admission"
	"github.com/xzzpig/graph-gateway/internal/core/gateway"
	"github.com/xzzpig/graph-gateway/internal/i18n"
)

func TestErrorPresenter(t *testing.T) {
	require.NoError(t, i18n.Init())
	ctx := context.Background()

	t.Run("query too expensive", func(t *testing.T) {
		gqlErr := ErrorPresenter(ctx, &admission.QueryTooExpensiveError{Cost: 1200, Budget: 750})

		assert.Equal(t, CodeQueryTooExpensive, gqlErr.Extensions["code"])
		assert.Equal(t, 1200, gqlErr.Extensions["cost"])
		assert.Equal(t, 750, gqlErr.Extensions["budget"])
		assert.Contains(t, gqlErr.Message, "1200")
		assert.Contains(t, gqlErr.Message, "750")
	})

	t.Run("malformed variable binding", func(t *testing.T) {
		gqlErr := ErrorPresenter(ctx, &admission.MalformedVariableBindingError{Field: "reviews", Argument: "first", Value: "many"})

		assert.Equal(t, CodeMalformedVariableBinding, gqlErr.Extensions["code"])
		assert.Contains(t, gqlErr.Message, "reviews")
		assert.Contains(t, gqlErr.Message, "first")
	})

	t.Run("parse error keeps locations", func(t *testing.T) {
		_, err := parser.ParseQuery(&ast.Source{Input: "{ reviews "})
		require.Error(t, err)

		gqlErr := ErrorPresenter(ctx, &gateway.ParseError{Cause: err})

		assert.Equal(t, CodeParseFailed, gqlErr.Extensions["code"])
		assert.NotEmpty(t, gqlErr.Locations)
	})

	t.Run("validation failures", func(t *testing.T) {
		for _, err := range []error{
			fmt.Errorf("%w: %q", admission.ErrOperationNotFound, "Missing"),
			gateway.ErrSubscriptionsUnsupported,
			gateway.ErrMutationNotAllowed,
			&gateway.UnknownRootFieldError{Field: "planets"},
			&gateway.UnknownFragmentError{Name: "Frag"},
		} {
			gqlErr := ErrorPresenter(ctx, err)
			assert.Equal(t, CodeValidationFailed, gqlErr.Extensions["code"], err.Error())
		}
	})

	t.Run("i18n error uses message id as code", func(t *testing.T) {
		gqlErr := ErrorPresenter(ctx, i18n.ErrBadRequestI18n(i18n.ErrInvalidRequestBody))

		assert.Equal(t, i18n.ErrInvalidRequestBody, gqlErr.Extensions["code"])
		assert.Equal(t, "Invalid request body", gqlErr.Message)
	})

	t.Run("localizes from context", func(t *testing.T) {
		zhCtx := i18n.WithLocalizer(ctx, i18n.NewLocalizer("zh-CN"))
		gqlErr := ErrorPresenter(zhCtx, gateway.ErrSubscriptionsUnsupported)

		assert.Equal(t, "该网关不支持订阅", gqlErr.Message)
	})

	t.Run("unknown errors are internal", func(t *testing.T) {
		gqlErr := ErrorPresenter(ctx, errors.New("boom"))

		assert.Equal(t, CodeInternal, gqlErr.Extensions["code"])
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "too expensive", err: &admission.QueryTooExpensiveError{Cost: 2, Budget: 1}, want: http.StatusBadRequest},
		{name: "malformed binding", err: &admission.MalformedVariableBindingError{}, want: http.StatusBadRequest},
		{name: "parse error", err: &gateway.ParseError{Cause: errors.New("syntax")}, want: http.StatusBadRequest},
		{name: "missing query", err: gateway.ErrMissingQuery, want: http.StatusBadRequest},
		{name: "unknown root field", err: &gateway.UnknownRootFieldError{Field: "x"}, want: http.StatusBadRequest},
		{name: "i18n error", err: i18n.NewI18nError(i18n.ErrGeneric).WithStatus(http.StatusBadGateway), want: http.StatusBadGateway},
		{name: "internal", err: ErrInternalServer, want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestRecoverFunc(t *testing.T) {
	err := RecoverFunc(context.Background(), "something broke")
	assert.ErrorIs(t, err, ErrInternalServer)
}
