// Package admission implements the cost-based admission gate: it estimates the
// cost of a parsed GraphQL operation from per-field cost rules and rejects the
// request before execution when the estimate exceeds the configured budget.
//
// A Gate is immutable after construction and Evaluate is a pure function of
// its input, so a single Gate can be shared by any number of goroutines.
package admission

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/vektah/gqlparser/v2/ast"
	"go.uber.org/zap"

	"github.com/xzzpig/graph-gateway/internal/core/errs"
	"github.com/xzzpig/graph-gateway/internal/core/logger"
)

// MultiplierPolicy decides what happens when a multiplier argument is missing
// or not a non-negative number.
type MultiplierPolicy string

const (
	// MultiplierPolicyPermissive uses a multiplier of 1.
	MultiplierPolicyPermissive MultiplierPolicy = "permissive"
	// MultiplierPolicyStrict fails the evaluation with *MalformedVariableBindingError.
	MultiplierPolicyStrict MultiplierPolicy = "strict"
)

// ParseMultiplierPolicy parses a policy name; the empty string means permissive.
func ParseMultiplierPolicy(s string) (MultiplierPolicy, error) {
	switch MultiplierPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", MultiplierPolicyPermissive:
		return MultiplierPolicyPermissive, nil
	case MultiplierPolicyStrict:
		return MultiplierPolicyStrict, nil
	default:
		return "", fmt.Errorf("%w: unknown multiplier policy %q", errs.ErrInvalidInput, s)
	}
}

// Config is the construction-time configuration of a Gate.
type Config struct {
	// MaximumCost is the budget: the highest total cost that is still admitted.
	MaximumCost int
	// DefaultCost applies to every field without a rule.
	DefaultCost int
	Rules       []CostRule
	// MultiplierPolicy defaults to MultiplierPolicyPermissive.
	MultiplierPolicy MultiplierPolicy
}

// Request is one operation to evaluate. The gate only reads it.
type Request struct {
	// ID identifies the request in reports and logs. NewRequest fills it in.
	ID            string
	Document      *ast.QueryDocument
	OperationName string
	Variables     map[string]any
}

// NewRequest builds a Request with a fresh ID.
func NewRequest(doc *ast.QueryDocument, operationName string, variables map[string]any) *Request {
	return &Request{
		ID:            uuid.NewString(),
		Document:      doc,
		OperationName: operationName,
		Variables:     variables,
	}
}

// CostReport is the outcome of one evaluation.
type CostReport struct {
	RequestID     string `json:"requestId"`
	OperationName string `json:"operationName,omitempty"`
	Cost          int    `json:"cost"`
	Budget        int    `json:"budget"`
	Admitted      bool   `json:"admitted"`
}

// Gate evaluates requests against a fixed budget and rule set.
type Gate struct {
	maximumCost int
	defaultCost int
	policy      MultiplierPolicy
	rules       ruleSet
	observers   []Observer
	logger      *zap.Logger
}

// Option customizes a Gate.
type Option func(*Gate)

// WithObserver registers an observer notified after every completed evaluation.
func WithObserver(o Observer) Option {
	return func(g *Gate) {
		if o != nil {
			g.observers = append(g.observers, o)
		}
	}
}

// WithLogger overrides the gate's logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

// New validates cfg and builds a Gate.
func New(cfg Config, opts ...Option) (*Gate, error) {
	if cfg.MaximumCost < 0 {
		return nil, fmt.Errorf("%w: maximum cost must not be negative, got %d", errs.ErrInvalidInput, cfg.MaximumCost)
	}
	if cfg.DefaultCost < 0 {
		return nil, fmt.Errorf("%w: default cost must not be negative, got %d", errs.ErrInvalidInput, cfg.DefaultCost)
	}
	policy, err := ParseMultiplierPolicy(string(cfg.MultiplierPolicy))
	if err != nil {
		return nil, err
	}
	rules, err := newRuleSet(cfg.Rules)
	if err != nil {
		return nil, err
	}

	g := &Gate{
		maximumCost: cfg.MaximumCost,
		defaultCost: cfg.DefaultCost,
		policy:      policy,
		rules:       rules,
		logger:      logger.Named("core.admission"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Budget returns the maximum admitted cost.
func (g *Gate) Budget() int { return g.maximumCost }

// DefaultCost returns the cost of fields without a rule.
func (g *Gate) DefaultCost() int { return g.defaultCost }

// Policy returns the multiplier policy.
func (g *Gate) Policy() MultiplierPolicy { return g.policy }

// Rules returns a copy of the rules ordered by field name.
func (g *Gate) Rules() []CostRule { return g.rules.sorted() }

// WithoutObservers returns a copy of g sharing its rules but notifying no
// observers. Dry-run estimates use it so they do not show up in telemetry.
func (g *Gate) WithoutObservers() *Gate {
	c := *g
	c.observers = nil
	return &c
}

// Evaluate computes the cost of req and decides admission.
//
// The report is returned whenever the cost could be computed: with a nil error
// when the cost is within budget, and together with a *QueryTooExpensiveError
// when it is not. Under MultiplierPolicyStrict a malformed multiplier yields
// (nil, *MalformedVariableBindingError). A request without a document or with
// an empty selection costs 0.
func (g *Gate) Evaluate(req *Request) (*CostReport, error) {
	if req == nil {
		req = &Request{}
	}

	op, err := selectOperation(req.Document, req.OperationName)
	if err != nil {
		return nil, err
	}

	cost, err := g.cost(req, op)
	if err != nil {
		return nil, err
	}

	report := &CostReport{
		RequestID:     req.ID,
		OperationName: req.OperationName,
		Cost:          cost,
		Budget:        g.maximumCost,
		Admitted:      cost <= g.maximumCost,
	}
	if op != nil && report.OperationName == "" {
		report.OperationName = op.Name
	}

	g.notify(*report)

	if !report.Admitted {
		return report, &QueryTooExpensiveError{RequestID: req.ID, Cost: cost, Budget: g.maximumCost}
	}
	return report, nil
}

func (g *Gate) cost(req *Request, op *ast.OperationDefinition) (int, error) {
	if op == nil {
		return 0, nil
	}
	w := &costWalker{
		gate:      g,
		doc:       req.Document,
		op:        op,
		vars:      req.Variables,
		visiting:  make(map[string]bool),
		fragments: make(map[string]int),
	}
	return w.selectionSet(op.SelectionSet)
}

// selectOperation picks the operation to cost. A nil document or a document
// without operations yields (nil, nil).
func selectOperation(doc *ast.QueryDocument, name string) (*ast.OperationDefinition, error) {
	if doc == nil || len(doc.Operations) == 0 {
		return nil, nil
	}
	op := doc.Operations.ForName(name)
	if op == nil {
		if name == "" {
			return nil, fmt.Errorf("%w: document has %d operations and no operation name was given", ErrOperationNotFound, len(doc.Operations))
		}
		return nil, fmt.Errorf("%w: %q", ErrOperationNotFound, name)
	}
	return op, nil
}

func (g *Gate) notify(report CostReport) {
	for _, o := range g.observers {
		g.safeObserve(o, report)
	}
}

func (g *Gate) safeObserve(o Observer, report CostReport) {
	defer func() {
		if p := recover(); p != nil {
			g.logger.Warn("Cost observer panicked",
				zap.String("requestId", report.RequestID),
				zap.Any("panic", p),
			)
		}
	}()
	o.ObserveCost(report)
}
