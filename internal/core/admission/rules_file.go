package admission

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/xzzpig/graph-gateway/internal/core/errs"
)

// RulesFile is a standalone TOML file of cost settings. Set values override
// the main configuration; rules are merged by field name.
//
//	maximum_cost = 750
//	default_cost = 1
//	multiplier_policy = "permissive"
//
//	[[rules]]
//	field = "reviews"
//	cost = 2
//	multiplier = "first"
type RulesFile struct {
	MaximumCost      *int       `toml:"maximum_cost"`
	DefaultCost      *int       `toml:"default_cost"`
	MultiplierPolicy string     `toml:"multiplier_policy"`
	Rules            []FileRule `toml:"rules"`
}

// FileRule is one [[rules]] entry.
type FileRule struct {
	Field      string `toml:"field"`
	Cost       int    `toml:"cost"`
	Multiplier string `toml:"multiplier"`
}

// LoadRulesFile decodes the rules file at path. Unknown keys are an error so
// typos do not silently drop a rule.
func LoadRulesFile(path string) (*RulesFile, error) {
	var f RulesFile
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode rules file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("%w: unknown keys in rules file %s: %s", errs.ErrInvalidInput, path, strings.Join(keys, ", "))
	}
	return &f, nil
}

// CostRules converts the file's rules.
func (f *RulesFile) CostRules() []CostRule {
	out := make([]CostRule, len(f.Rules))
	for i, r := range f.Rules {
		out[i] = CostRule{FieldName: r.Field, Cost: r.Cost, MultiplierArgument: r.Multiplier}
	}
	return out
}

// Apply returns cfg with the file's settings layered on top.
func (f *RulesFile) Apply(cfg Config) Config {
	if f.MaximumCost != nil {
		cfg.MaximumCost = *f.MaximumCost
	}
	if f.DefaultCost != nil {
		cfg.DefaultCost = *f.DefaultCost
	}
	if f.MultiplierPolicy != "" {
		cfg.MultiplierPolicy = MultiplierPolicy(f.MultiplierPolicy)
	}
	cfg.Rules = MergeRules(cfg.Rules, f.CostRules())
	return cfg
}
