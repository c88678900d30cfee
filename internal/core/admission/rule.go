package admission

import (
	"fmt"
	"sort"

	"github.com/xzzpig/graph-gateway/internal/core/errs"
)

// CostRule assigns a cost to every selection of a field name. When
// MultiplierArgument is set, the cost is multiplied by the numeric value bound
// to that argument (typically a page size such as "first").
type CostRule struct {
	FieldName          string `json:"field"`
	Cost               int    `json:"cost"`
	MultiplierArgument string `json:"multiplier,omitempty"`
}

// ruleSet is an immutable field name -> rule index.
type ruleSet map[string]CostRule

func newRuleSet(rules []CostRule) (ruleSet, error) {
	set := make(ruleSet, len(rules))
	for i, r := range rules {
		if r.FieldName == "" {
			return nil, fmt.Errorf("%w: rule %d has no field name", errs.ErrInvalidInput, i)
		}
		if r.Cost < 0 {
			return nil, fmt.Errorf("%w: rule for field %q has negative cost %d", errs.ErrInvalidInput, r.FieldName, r.Cost)
		}
		if _, dup := set[r.FieldName]; dup {
			return nil, fmt.Errorf("%w: duplicate rule for field %q", errs.ErrInvalidInput, r.FieldName)
		}
		set[r.FieldName] = r
	}
	return set, nil
}

func (s ruleSet) lookup(field string) (CostRule, bool) {
	r, ok := s[field]
	return r, ok
}

// sorted returns a copy of the rules ordered by field name.
func (s ruleSet) sorted() []CostRule {
	out := make([]CostRule, 0, len(s))
	for _, r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FieldName < out[j].FieldName })
	return out
}

// MergeRules overlays rules onto base: a rule in overlay replaces the base rule
// with the same field name, other overlay rules are appended in order.
func MergeRules(base, overlay []CostRule) []CostRule {
	out := make([]CostRule, 0, len(base)+len(overlay))
	index := make(map[string]int, len(base))
	for _, r := range base {
		index[r.FieldName] = len(out)
		out = append(out, r)
	}
	for _, r := range overlay {
		if i, ok := index[r.FieldName]; ok {
			out[i] = r
			continue
		}
		index[r.FieldName] = len(out)
		out = append(out, r)
	}
	return out
}
