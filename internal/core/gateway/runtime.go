// Package gateway is the graph gateway runtime: it parses an incoming GraphQL
// operation, runs the pre-execution hooks (the admission gate among them),
// splits the operation by root field across the upstream services and merges
// their responses.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/99designs/gqlgen/graphql"
	"github.com/tidwall/gjson"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xzzpig/graph-gateway/internal/core/admission"
	"github.com/xzzpig/graph-gateway/internal/core/errs"
	"github.com/xzzpig/graph-gateway/internal/core/logger"
	"github.com/xzzpig/graph-gateway/internal/core/ports"
	"github.com/xzzpig/graph-gateway/internal/core/upstream"
)

// ErrorCodeUpstreamFailed marks response errors produced by a failed upstream call.
const ErrorCodeUpstreamFailed = "UPSTREAM_FAILED"

// Config wires a Runtime.
type Config struct {
	Registry *upstream.Registry
	Client   ports.UpstreamClient
	// Hooks run in order before every execution.
	Hooks []PreExecutionHook
	// MaxConcurrency bounds parallel upstream calls per request; 0 means unbounded.
	MaxConcurrency int
	// Debug adds the upstream sub-queries to the response extensions.
	Debug bool
}

// Runtime executes GraphQL requests against the upstream services.
type Runtime struct {
	registry       *upstream.Registry
	client         ports.UpstreamClient
	hooks          []PreExecutionHook
	maxConcurrency int
	debug          bool
	logger         *zap.Logger
}

// New creates a Runtime.
func New(cfg Config) (*Runtime, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("%w: gateway needs an upstream registry", errs.ErrInvalidInput)
	}
	if cfg.Client == nil {
		cfg.Client = upstream.NewClient(nil)
	}
	return &Runtime{
		registry:       cfg.Registry,
		client:         cfg.Client,
		hooks:          append([]PreExecutionHook(nil), cfg.Hooks...),
		maxConcurrency: cfg.MaxConcurrency,
		debug:          cfg.Debug,
		logger:         logger.Named("core.gateway"),
	}, nil
}

// ExecOption adjusts a single Execute call.
type ExecOption func(*execOptions)

type execOptions struct {
	queriesOnly bool
}

// QueriesOnly rejects mutations with ErrMutationNotAllowed. HTTP GET requests
// use it.
func QueriesOnly() ExecOption {
	return func(o *execOptions) { o.queriesOnly = true }
}

// Execute runs one request. A non-nil error means the request was rejected
// before any upstream was contacted (syntax, unknown operation, a hook
// rejection, planning); the returned RequestContext is still set when parsing
// succeeded so callers can report hook results. Upstream failures do not
// produce an error: they become entries in the response errors.
func (r *Runtime) Execute(ctx context.Context, params *graphql.RawParams, opts ...ExecOption) (*graphql.Response, *RequestContext, error) {
	var eo execOptions
	for _, opt := range opts {
		opt(&eo)
	}
	if params == nil || params.Query == "" {
		return nil, nil, ErrMissingQuery
	}

	doc, err := parser.ParseQuery(&ast.Source{Name: "request", Input: params.Query})
	if err != nil {
		return nil, nil, &ParseError{Cause: err}
	}

	op := doc.Operations.ForName(params.OperationName)
	if op == nil {
		return nil, nil, fmt.Errorf("%w: %q", admission.ErrOperationNotFound, params.OperationName)
	}
	if op.Operation == ast.Subscription {
		return nil, nil, ErrSubscriptionsUnsupported
	}
	if eo.queriesOnly && op.Operation == ast.Mutation {
		return nil, nil, ErrMutationNotAllowed
	}

	rc := &RequestContext{
		Request:    admission.NewRequest(doc, params.OperationName, params.Variables),
		Operation:  op,
		Extensions: make(map[string]any),
	}
	if rc.Request.OperationName == "" {
		rc.Request.OperationName = op.Name
	}

	for _, hook := range r.hooks {
		if err := hook.BeforeExecute(ctx, rc); err != nil {
			r.logger.Debug("Request rejected by pre-execution hook",
				zap.String("requestId", rc.Request.ID),
				zap.Error(err),
			)
			return nil, rc, err
		}
	}

	pl, err := (&planner{registry: r.registry, doc: doc, op: op, vars: params.Variables}).build()
	if err != nil {
		return nil, rc, err
	}

	results := r.dispatch(ctx, pl)
	resp := merge(pl, rootTypeName(op), results)
	if r.debug {
		rc.Extensions["plan"] = describePlan(pl)
	}
	if len(rc.Extensions) > 0 {
		resp.Extensions = rc.Extensions
	}
	return resp, rc, nil
}

// stepResult is the outcome of one step.
type stepResult struct {
	result *upstream.Result
	err    error
}

func (r *Runtime) dispatch(ctx context.Context, pl *plan) []stepResult {
	results := make([]stepResult, len(pl.steps))

	if pl.serial {
		for i, s := range pl.steps {
			results[i] = r.call(ctx, s)
		}
		return results
	}

	var g errgroup.Group
	if r.maxConcurrency > 0 {
		g.SetLimit(r.maxConcurrency)
	}
	for i, s := range pl.steps {
		g.Go(func() error {
			results[i] = r.call(ctx, s)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (r *Runtime) call(ctx context.Context, s *step) stepResult {
	res, err := r.client.Do(ctx, s.service, upstream.Request{Query: s.query, Variables: s.variables})
	if err != nil {
		r.logger.Warn("Upstream call failed", zap.String("service", s.service.Name), zap.Error(err))
		return stepResult{err: &UpstreamError{Service: s.service.Name, Cause: err}}
	}
	return stepResult{result: res}
}

// merge assembles the response object in root key order.
func merge(pl *plan, typename string, results []stepResult) *graphql.Response {
	values := make(map[string]json.RawMessage, len(pl.keys))
	var errList gqlerror.List

	for key := range pl.typename {
		values[key], _ = json.Marshal(typename)
	}

	for i, s := range pl.steps {
		res := results[i]
		if res.err != nil {
			var upErr *UpstreamError
			errors.As(res.err, &upErr)
			for _, key := range s.keys {
				errList = append(errList, &gqlerror.Error{
					Err:     res.err,
					Message: res.err.Error(),
					Path:    ast.Path{ast.PathName(key)},
					Extensions: map[string]any{
						"code":    ErrorCodeUpstreamFailed,
						"service": upErr.Service,
					},
				})
			}
			continue
		}

		errList = append(errList, res.result.Errors...)
		for _, key := range s.keys {
			if v := gjson.GetBytes(res.result.Data, gjson.Escape(key)); v.Exists() {
				values[key] = json.RawMessage(v.Raw)
			}
		}
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range pl.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		if v, ok := values[key]; ok {
			buf.Write(v)
		} else {
			buf.WriteString("null")
		}
	}
	buf.WriteByte('}')

	return &graphql.Response{Data: buf.Bytes(), Errors: errList}
}

func rootTypeName(op *ast.OperationDefinition) string {
	if op.Operation == ast.Mutation {
		return "Mutation"
	}
	return "Query"
}

// planStep is the debug view of a step.
type planStep struct {
	Service string   `json:"service"`
	Fields  []string `json:"fields"`
	Query   string   `json:"query"`
}

func describePlan(pl *plan) []planStep {
	out := make([]planStep, len(pl.steps))
	for i, s := range pl.steps {
		out[i] = planStep{Service: s.service.Name, Fields: s.keys, Query: s.query}
	}
	return out
}
