package admission

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/xzzpig/graph-gateway/internal/core/errs"
)

func parse(t *testing.T, query string) *ast.QueryDocument {
	t.Helper()
	doc, err := parser.ParseQuery(&ast.Source{Input: query})
	require.NoError(t, err)
	return doc
}

func newGate(t *testing.T, cfg Config, opts ...Option) *Gate {
	t.Helper()
	g, err := New(cfg, opts...)
	require.NoError(t, err)
	return g
}

func evaluate(t *testing.T, g *Gate, query string, vars map[string]any) (*CostReport, error) {
	t.Helper()
	return g.Evaluate(&Request{ID: "req-1", Document: parse(t, query), Variables: vars})
}

func TestGate_AdmitsWithinBudget(t *testing.T) {
	g := newGate(t, Config{
		MaximumCost: 10,
		DefaultCost: 1,
		Rules:       []CostRule{{FieldName: "reviews", Cost: 5}},
	})

	report, err := evaluate(t, g, `{ reviews me shop }`, nil)
	require.NoError(t, err)
	assert.Equal(t, &CostReport{RequestID: "req-1", Cost: 7, Budget: 10, Admitted: true}, report)
}

func TestGate_RejectsOverBudget(t *testing.T) {
	g := newGate(t, Config{
		MaximumCost: 6,
		DefaultCost: 1,
		Rules:       []CostRule{{FieldName: "reviews", Cost: 5}},
	})

	report, err := evaluate(t, g, `{ reviews me shop }`, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrQueryTooExpensive))

	var tooExpensive *QueryTooExpensiveError
	require.ErrorAs(t, err, &tooExpensive)
	assert.Equal(t, 7, tooExpensive.Cost)
	assert.Equal(t, 6, tooExpensive.Budget)
	assert.Equal(t, "req-1", tooExpensive.RequestID)

	require.NotNil(t, report)
	assert.Equal(t, 7, report.Cost)
	assert.False(t, report.Admitted)
}

func TestGate_BudgetIsInclusive(t *testing.T) {
	g := newGate(t, Config{MaximumCost: 3, DefaultCost: 1})

	report, err := evaluate(t, g, `{ a b c }`, nil)
	require.NoError(t, err)
	assert.True(t, report.Admitted)

	_, err = evaluate(t, g, `{ a b c d }`, nil)
	assert.ErrorIs(t, err, ErrQueryTooExpensive)
}

func TestGate_Multiplier(t *testing.T) {
	rules := []CostRule{{FieldName: "reviews", Cost: 2, MultiplierArgument: "first"}}

	tests := []struct {
		name  string
		query string
		vars  map[string]any
		want  int
	}{
		{name: "bound variable of the same name", query: `{ reviews }`, vars: map[string]any{"first": 50}, want: 100},
		{name: "unbound", query: `{ reviews }`, want: 2},
		{name: "literal argument", query: `{ reviews(first: 10) }`, want: 20},
		{name: "argument wins over variable", query: `{ reviews(first: 3) }`, vars: map[string]any{"first": 50}, want: 6},
		{name: "argument bound to variable", query: `query($n: Int) { reviews(first: $n) }`, vars: map[string]any{"n": int64(4)}, want: 8},
		{name: "variable default", query: `query($n: Int = 7) { reviews(first: $n) }`, want: 14},
		{name: "variable overrides default", query: `query($n: Int = 7) { reviews(first: $n) }`, vars: map[string]any{"n": 1}, want: 2},
		{name: "explicit null overrides default", query: `query($n: Int = 7) { reviews(first: $n) }`, vars: map[string]any{"n": nil}, want: 2},
		{name: "null variable of the same name", query: `{ reviews }`, vars: map[string]any{"first": nil}, want: 2},
		{name: "float truncates", query: `{ reviews }`, vars: map[string]any{"first": 2.9}, want: 4},
		{name: "numeric string", query: `{ reviews }`, vars: map[string]any{"first": "5"}, want: 10},
		{name: "zero", query: `{ reviews(first: 0) }`, want: 0},
		{name: "non-numeric falls back to 1", query: `{ reviews }`, vars: map[string]any{"first": "many"}, want: 2},
		{name: "negative falls back to 1", query: `{ reviews(first: -3) }`, want: 2},
		{name: "null falls back to 1", query: `{ reviews(first: null) }`, want: 2},
		{name: "children are not multiplied", query: `{ reviews(first: 10) { id body } }`, want: 22},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGate(t, Config{MaximumCost: math.MaxInt, DefaultCost: 1, Rules: rules})
			report, err := evaluate(t, g, tt.query, tt.vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, report.Cost)
		})
	}
}

func TestGate_StrictPolicy(t *testing.T) {
	g := newGate(t, Config{
		MaximumCost:      1000,
		DefaultCost:      1,
		MultiplierPolicy: MultiplierPolicyStrict,
		Rules:            []CostRule{{FieldName: "reviews", Cost: 2, MultiplierArgument: "first"}},
	})

	t.Run("unbound", func(t *testing.T) {
		report, err := evaluate(t, g, `{ reviews }`, nil)
		assert.Nil(t, report)
		require.ErrorIs(t, err, ErrMalformedVariableBinding)

		var malformed *MalformedVariableBindingError
		require.ErrorAs(t, err, &malformed)
		assert.Equal(t, "reviews", malformed.Field)
		assert.Equal(t, "first", malformed.Argument)
		assert.Nil(t, malformed.Value)
	})

	t.Run("non-numeric", func(t *testing.T) {
		_, err := evaluate(t, g, `{ reviews }`, map[string]any{"first": "lots"})
		var malformed *MalformedVariableBindingError
		require.ErrorAs(t, err, &malformed)
		assert.Equal(t, "lots", malformed.Value)
	})

	t.Run("negative", func(t *testing.T) {
		_, err := evaluate(t, g, `{ reviews(first: -1) }`, nil)
		assert.ErrorIs(t, err, ErrMalformedVariableBinding)
	})

	t.Run("bound", func(t *testing.T) {
		report, err := evaluate(t, g, `{ reviews(first: 5) }`, nil)
		require.NoError(t, err)
		assert.Equal(t, 10, report.Cost)
	})
}

func TestGate_EmptySelection(t *testing.T) {
	g := newGate(t, Config{MaximumCost: 0, DefaultCost: 1})

	for _, req := range []*Request{nil, {}, {Document: &ast.QueryDocument{}}} {
		report, err := g.Evaluate(req)
		require.NoError(t, err)
		assert.Equal(t, 0, report.Cost)
		assert.True(t, report.Admitted)
	}
}

func TestGate_Fragments(t *testing.T) {
	g := newGate(t, Config{
		MaximumCost: 100,
		DefaultCost: 1,
		Rules:       []CostRule{{FieldName: "reviews", Cost: 5}},
	})

	t.Run("named fragment", func(t *testing.T) {
		report, err := evaluate(t, g, `
			query { me { ...UserFields } }
			fragment UserFields on User { id reviews }
		`, nil)
		require.NoError(t, err)
		assert.Equal(t, 7, report.Cost)
	})

	t.Run("inline fragment", func(t *testing.T) {
		report, err := evaluate(t, g, `{ node { ... on User { id name } } }`, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, report.Cost)
	})

	t.Run("fragment used twice is counted twice", func(t *testing.T) {
		report, err := evaluate(t, g, `
			query { a: me { ...F } b: me { ...F } }
			fragment F on User { id }
		`, nil)
		require.NoError(t, err)
		assert.Equal(t, 4, report.Cost)
	})

	t.Run("cyclic fragments terminate", func(t *testing.T) {
		report, err := evaluate(t, g, `
			query { me { ...A } }
			fragment A on User { id ...B }
			fragment B on User { name ...A }
		`, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, report.Cost)
	})

	t.Run("unknown fragment costs nothing", func(t *testing.T) {
		report, err := evaluate(t, g, `{ me { ...Missing } }`, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Cost)
	})
}

// doublingChain returns a document whose fragment F{i} spreads F{i+1} twice,
// so its inlined size grows as 2^depth.
func doublingChain(depth int) string {
	var sb strings.Builder
	sb.WriteString("{ ...F0 }\n")
	for i := 0; i < depth; i++ {
		fmt.Fprintf(&sb, "fragment F%d on Query { a: x { ...F%d } b: x { ...F%d } }\n", i, i+1, i+1)
	}
	fmt.Fprintf(&sb, "fragment F%d on Query { x }\n", depth)
	return sb.String()
}

func TestGate_RepeatedFragmentSpreadsStayLinear(t *testing.T) {
	g := newGate(t, Config{MaximumCost: math.MaxInt, DefaultCost: 1})

	start := time.Now()
	report, err := evaluate(t, g, doublingChain(30), nil)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)

	// cost(F30) = 1 and cost(Fi) = 2*(1+cost(Fi+1)), so cost(F0) = 3*2^30 - 2.
	assert.Equal(t, 3*(1<<30)-2, report.Cost)
}

func TestGate_TypenameCountsDefaultCost(t *testing.T) {
	g := newGate(t, Config{MaximumCost: 100, DefaultCost: 2})

	report, err := evaluate(t, g, `{ __typename me { __typename } }`, nil)
	require.NoError(t, err)
	assert.Equal(t, 6, report.Cost)
}

func TestGate_OperationSelection(t *testing.T) {
	g := newGate(t, Config{MaximumCost: 100, DefaultCost: 1})
	doc := parse(t, `
		query Small { a }
		query Large { a b c }
	`)

	report, err := g.Evaluate(&Request{Document: doc, OperationName: "Large"})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Cost)
	assert.Equal(t, "Large", report.OperationName)

	_, err = g.Evaluate(&Request{Document: doc, OperationName: "Missing"})
	assert.ErrorIs(t, err, ErrOperationNotFound)

	_, err = g.Evaluate(&Request{Document: doc})
	assert.ErrorIs(t, err, ErrOperationNotFound)

	report, err = g.Evaluate(&Request{Document: parse(t, `query Only { a b }`)})
	require.NoError(t, err)
	assert.Equal(t, "Only", report.OperationName)
}

func TestGate_Saturates(t *testing.T) {
	g := newGate(t, Config{
		MaximumCost: 1000,
		DefaultCost: 1,
		Rules:       []CostRule{{FieldName: "items", Cost: math.MaxInt / 2, MultiplierArgument: "first"}},
	})

	report, err := evaluate(t, g, `{ items(first: 3) other: items(first: 3) }`, nil)
	require.ErrorIs(t, err, ErrQueryTooExpensive)
	assert.Equal(t, math.MaxInt, report.Cost)
}

func TestGate_Deterministic(t *testing.T) {
	g := newGate(t, Config{
		MaximumCost: 1000,
		DefaultCost: 1,
		Rules: []CostRule{
			{FieldName: "reviews", Cost: 2, MultiplierArgument: "first"},
			{FieldName: "products", Cost: 3},
		},
	})
	doc := parse(t, `query($first: Int) { products { reviews(first: $first) { id } } }`)
	req := &Request{ID: "r", Document: doc, Variables: map[string]any{"first": 10}}

	first, err := g.Evaluate(req)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := g.Evaluate(req)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, 3+20+1, first.Cost)
}

func TestGate_ConcurrentEvaluate(t *testing.T) {
	var observed atomic.Int64
	g := newGate(t, Config{
		MaximumCost: 50,
		DefaultCost: 1,
		Rules:       []CostRule{{FieldName: "reviews", Cost: 2, MultiplierArgument: "first"}},
	}, WithObserver(ObserverFunc(func(CostReport) { observed.Add(1) })))
	doc := parse(t, `query($first: Int) { reviews(first: $first) { id } }`)

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			report, err := g.Evaluate(&Request{Document: doc, Variables: map[string]any{"first": n}})
			want := 2*n + 1
			assert.Equal(t, want, report.Cost)
			assert.Equal(t, want <= 50, err == nil)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int64(64), observed.Load())
}

func TestGate_Observers(t *testing.T) {
	var reports []CostReport
	g := newGate(t, Config{MaximumCost: 1, DefaultCost: 1},
		WithObserver(ObserverFunc(func(CostReport) { panic("boom") })),
		WithObserver(ObserverFunc(func(r CostReport) { reports = append(reports, r) })),
		WithObserver(nil),
	)

	_, err := evaluate(t, g, `{ a }`, nil)
	require.NoError(t, err)
	_, err = evaluate(t, g, `{ a b }`, nil)
	require.ErrorIs(t, err, ErrQueryTooExpensive)

	require.Len(t, reports, 2)
	assert.True(t, reports[0].Admitted)
	assert.False(t, reports[1].Admitted)
	assert.Equal(t, 2, reports[1].Cost)
}

func TestGate_ObserversNotCalledOnError(t *testing.T) {
	calls := 0
	g := newGate(t, Config{
		MaximumCost:      10,
		MultiplierPolicy: MultiplierPolicyStrict,
		Rules:            []CostRule{{FieldName: "reviews", Cost: 1, MultiplierArgument: "first"}},
	}, WithObserver(ObserverFunc(func(CostReport) { calls++ })))

	_, err := evaluate(t, g, `{ reviews }`, nil)
	require.Error(t, err)
	assert.Zero(t, calls)
}

func TestGate_WithoutObservers(t *testing.T) {
	calls := 0
	g := newGate(t, Config{MaximumCost: 10, DefaultCost: 1},
		WithObserver(ObserverFunc(func(CostReport) { calls++ })))

	quiet := g.WithoutObservers()
	_, err := evaluate(t, quiet, `{ a }`, nil)
	require.NoError(t, err)
	assert.Zero(t, calls)
	assert.Equal(t, g.Budget(), quiet.Budget())

	_, err = evaluate(t, g, `{ a }`, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "negative maximum cost", cfg: Config{MaximumCost: -1}},
		{name: "negative default cost", cfg: Config{DefaultCost: -1}},
		{name: "negative rule cost", cfg: Config{Rules: []CostRule{{FieldName: "a", Cost: -1}}}},
		{name: "rule without field", cfg: Config{Rules: []CostRule{{Cost: 1}}}},
		{name: "duplicate rule", cfg: Config{Rules: []CostRule{{FieldName: "a"}, {FieldName: "a"}}}},
		{name: "unknown policy", cfg: Config{MultiplierPolicy: "lenient"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := New(tt.cfg)
			assert.Nil(t, g)
			assert.ErrorIs(t, err, errs.ErrInvalidInput)
		})
	}
}

func TestGate_Accessors(t *testing.T) {
	g := newGate(t, Config{
		MaximumCost: 20,
		DefaultCost: 2,
		Rules: []CostRule{
			{FieldName: "reviews", Cost: 5},
			{FieldName: "products", Cost: 3, MultiplierArgument: "first"},
		},
	})

	assert.Equal(t, 20, g.Budget())
	assert.Equal(t, 2, g.DefaultCost())
	assert.Equal(t, MultiplierPolicyPermissive, g.Policy())
	assert.Equal(t, []CostRule{
		{FieldName: "products", Cost: 3, MultiplierArgument: "first"},
		{FieldName: "reviews", Cost: 5},
	}, g.Rules())
}

func TestParseMultiplierPolicy(t *testing.T) {
	for in, want := range map[string]MultiplierPolicy{
		"":           MultiplierPolicyPermissive,
		"permissive": MultiplierPolicyPermissive,
		" Strict ":   MultiplierPolicyStrict,
		"PERMISSIVE": MultiplierPolicyPermissive,
	} {
		got, err := ParseMultiplierPolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseMultiplierPolicy("other")
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestNewRequest(t *testing.T) {
	a := NewRequest(nil, "Op", nil)
	b := NewRequest(nil, "Op", nil)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "Op", a.OperationName)
}
