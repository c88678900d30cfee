package admission

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
)

// costWalker sums field costs over one operation. It lives for one evaluation.
type costWalker struct {
	gate *Gate
	doc  *ast.QueryDocument
	op   *ast.OperationDefinition
	vars map[string]any
	// visiting holds the fragments on the current spread path.
	visiting map[string]bool
	// fragments caches the cost of each fragment already walked.
	fragments map[string]int
}

func (w *costWalker) selectionSet(set ast.SelectionSet) (int, error) {
	total := 0
	for _, sel := range set {
		var (
			c   int
			err error
		)
		switch s := sel.(type) {
		case *ast.Field:
			c, err = w.field(s)
		case *ast.InlineFragment:
			c, err = w.selectionSet(s.SelectionSet)
		case *ast.FragmentSpread:
			c, err = w.fragmentSpread(s)
		}
		if err != nil {
			return 0, err
		}
		total = addSaturating(total, c)
	}
	return total, nil
}

func (w *costWalker) field(f *ast.Field) (int, error) {
	cost := w.gate.defaultCost
	if rule, ok := w.gate.rules.lookup(f.Name); ok {
		multiplier, err := w.multiplier(f, rule)
		if err != nil {
			return 0, err
		}
		cost = mulSaturating(rule.Cost, multiplier)
	}

	children, err := w.selectionSet(f.SelectionSet)
	if err != nil {
		return 0, err
	}
	return addSaturating(cost, children), nil
}

func (w *costWalker) fragmentSpread(s *ast.FragmentSpread) (int, error) {
	if w.visiting[s.Name] {
		return 0, nil
	}
	def := s.Definition
	if def == nil && w.doc != nil {
		def = w.doc.Fragments.ForName(s.Name)
	}
	if def == nil {
		// Unknown fragments are a validation error reported by the runtime.
		return 0, nil
	}

	if c, ok := w.fragments[s.Name]; ok {
		return c, nil
	}

	w.visiting[s.Name] = true
	c, err := w.selectionSet(def.SelectionSet)
	delete(w.visiting, s.Name)
	if err != nil {
		return 0, err
	}
	w.fragments[s.Name] = c
	return c, nil
}

// multiplier resolves the multiplier of a rule for one field selection.
// An argument on the field wins over a bound variable of the same name.
func (w *costWalker) multiplier(f *ast.Field, rule CostRule) (int, error) {
	if rule.MultiplierArgument == "" {
		return 1, nil
	}

	var (
		raw   any
		bound bool
	)
	if arg := f.Arguments.ForName(rule.MultiplierArgument); arg != nil {
		raw, bound = w.value(arg.Value)
	} else {
		raw, bound = w.variable(rule.MultiplierArgument)
	}

	if bound {
		if n, ok := toMultiplier(raw); ok {
			return n, nil
		}
	}

	if w.gate.policy == MultiplierPolicyStrict {
		err := &MalformedVariableBindingError{Field: f.Name, Argument: rule.MultiplierArgument}
		if bound {
			err.Value = raw
		}
		return 0, err
	}
	return 1, nil
}

// value resolves an argument value. The bool is false when the value is null
// or refers to a variable that is neither bound nor defaulted.
func (w *costWalker) value(v *ast.Value) (any, bool) {
	if v == nil {
		return nil, false
	}
	switch v.Kind {
	case ast.Variable:
		return w.variable(v.Raw)
	case ast.NullValue:
		return nil, false
	}
	out, err := v.Value(w.vars)
	if err != nil {
		return nil, false
	}
	return out, true
}

// variable resolves a bound variable, then its default. An explicit null
// binding overrides the default.
func (w *costWalker) variable(name string) (any, bool) {
	if x, ok := w.vars[name]; ok {
		return x, x != nil
	}
	if w.op != nil {
		if def := w.op.VariableDefinitions.ForName(name); def != nil && def.DefaultValue != nil {
			return w.value(def.DefaultValue)
		}
	}
	return nil, false
}

// toMultiplier converts a bound value to a non-negative int. Floats truncate.
func toMultiplier(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return nonNegative(int64(n))
	case int8:
		return nonNegative(int64(n))
	case int16:
		return nonNegative(int64(n))
	case int32:
		return nonNegative(int64(n))
	case int64:
		return nonNegative(n)
	case uint:
		return fromUint(uint64(n))
	case uint8:
		return fromUint(uint64(n))
	case uint16:
		return fromUint(uint64(n))
	case uint32:
		return fromUint(uint64(n))
	case uint64:
		return fromUint(n)
	case float32:
		return fromFloat(float64(n))
	case float64:
		return fromFloat(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return nonNegative(i)
		}
		if f, err := n.Float64(); err == nil {
			return fromFloat(f)
		}
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return nonNegative(i)
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return fromFloat(f)
		}
	}
	return 0, false
}

func nonNegative(i int64) (int, bool) {
	if i < 0 {
		return 0, false
	}
	if i > math.MaxInt {
		return math.MaxInt, true
	}
	return int(i), true
}

func fromUint(u uint64) (int, bool) {
	if u > math.MaxInt {
		return math.MaxInt, true
	}
	return int(u), true
}

func fromFloat(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, false
	}
	if f >= math.MaxInt {
		return math.MaxInt, true
	}
	return int(f), true
}

func addSaturating(a, b int) int {
	if a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}

func mulSaturating(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxInt/b {
		return math.MaxInt
	}
	return a * b
}
