// Package graphql serves the gateway over HTTP and adapts the admission gate
// to gqlgen servers.
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/99designs/gqlgen/graphql"
	"github.com/gin-gonic/gin"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"go.uber.org/zap"

	"github.com/xzzpig/graph-gateway/internal/core/gateway"
	"github.com/xzzpig/graph-gateway/internal/core/logger"
	"github.com/xzzpig/graph-gateway/internal/i18n"
)

// maxBodyBytes bounds the size of a POST body.
const maxBodyBytes = 1 << 20

// Executor runs GraphQL requests. *gateway.Runtime implements it.
type Executor interface {
	Execute(ctx context.Context, params *graphql.RawParams, opts ...gateway.ExecOption) (*graphql.Response, *gateway.RequestContext, error)
}

// Handler is the HTTP transport of the gateway.
type Handler struct {
	exec   Executor
	logger *zap.Logger
}

// NewHandler creates a Handler executing requests with exec.
func NewHandler(exec Executor) *Handler {
	return &Handler{
		exec:   exec,
		logger: logger.Named("api.graphql"),
	}
}

// Post handles application/json POST requests.
func (h *Handler) Post(c *gin.Context) {
	params, err := decodeBody(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		h.writeError(c, i18n.ErrBadRequestI18n(i18n.ErrInvalidRequestBody).WithCause(err), nil)
		return
	}
	h.serve(c, params)
}

// Get handles GET requests carrying the operation in the query string. Only
// queries are accepted over GET.
func (h *Handler) Get(c *gin.Context) {
	params := &graphql.RawParams{
		Query:         c.Query("query"),
		OperationName: c.Query("operationName"),
	}
	if raw := c.Query("variables"); raw != "" {
		if err := decodeJSON([]byte(raw), &params.Variables); err != nil {
			h.writeError(c, i18n.ErrBadRequestI18n(i18n.ErrInvalidRequestBody).WithCause(err), nil)
			return
		}
	}
	if raw := c.Query("extensions"); raw != "" {
		if err := decodeJSON([]byte(raw), &params.Extensions); err != nil {
			h.writeError(c, i18n.ErrBadRequestI18n(i18n.ErrInvalidRequestBody).WithCause(err), nil)
			return
		}
	}
	h.serve(c, params, gateway.QueriesOnly())
}

func (h *Handler) serve(c *gin.Context, params *graphql.RawParams, opts ...gateway.ExecOption) {
	ctx := c.Request.Context()
	start := time.Now()
	params.Headers = c.Request.Header
	params.ReadTime = graphql.TraceTiming{Start: start, End: start}

	resp, rc, err := h.execute(ctx, params, opts...)

	op := operationLog{
		OperationName: params.OperationName,
		RawQuery:      params.Query,
		Variables:     params.Variables,
		Latency:       time.Since(start),
	}
	if rc != nil {
		if rc.Request != nil {
			op.RequestID = rc.Request.ID
			op.OperationName = rc.Request.OperationName
		}
		if rc.Operation != nil {
			op.Operation = string(rc.Operation.Operation)
		}
	}

	if err != nil {
		gqlErr := ErrorPresenter(ctx, err)
		op.Errors = gqlerror.List{gqlErr}
		logOperation(h.logger, op)
		h.writeError(c, err, rc)
		return
	}

	localizeUpstreamErrors(ctx, resp.Errors)
	op.Errors = resp.Errors
	logOperation(h.logger, op)
	c.JSON(http.StatusOK, resp)
}

// execute calls the executor and turns a panic into ErrInternalServer.
func (h *Handler) execute(ctx context.Context, params *graphql.RawParams, opts ...gateway.ExecOption) (resp *graphql.Response, rc *gateway.RequestContext, err error) {
	defer func() {
		if p := recover(); p != nil {
			resp, rc, err = nil, nil, RecoverFunc(ctx, p)
		}
	}()
	return h.exec.Execute(ctx, params, opts...)
}

// writeError writes a GraphQL error response. The hook extensions (the cost
// report of a rejected request) are kept.
func (h *Handler) writeError(c *gin.Context, err error, rc *gateway.RequestContext) {
	resp := &graphql.Response{
		Errors: gqlerror.List{ErrorPresenter(c.Request.Context(), err)},
	}
	if rc != nil && len(rc.Extensions) > 0 {
		resp.Extensions = rc.Extensions
	}
	c.JSON(StatusFor(err), resp)
}

func decodeBody(r io.Reader) (*graphql.RawParams, error) {
	var params graphql.RawParams
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&params); err != nil {
		return nil, err
	}
	return &params, nil
}

func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
