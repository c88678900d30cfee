package gateway

import (
	"bytes"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"

	"github.com/xzzpig/graph-gateway/internal/core/upstream"
)

// step is one upstream call of a plan.
type step struct {
	service upstream.Service
	// keys are the response keys this step resolves, in document order.
	keys      []string
	query     string
	variables map[string]any
}

// plan is the execution plan of one operation.
type plan struct {
	// keys lists every root response key in document order, deduplicated.
	keys []string
	// typename holds response keys answered locally with the root type name.
	typename map[string]bool
	steps    []*step
	// serial is set for mutations: steps run one after another.
	serial bool
}

// planner splits an operation by root field across upstream services.
type planner struct {
	registry *upstream.Registry
	doc      *ast.QueryDocument
	op       *ast.OperationDefinition
	vars     map[string]any
}

func (p *planner) build() (*plan, error) {
	roots, err := p.rootFields()
	if err != nil {
		return nil, err
	}

	pl := &plan{typename: make(map[string]bool), serial: p.op.Operation == ast.Mutation}
	seen := make(map[string]bool)
	var groups []*fieldGroup
	byService := make(map[string]*fieldGroup)

	for _, f := range roots {
		key := responseKey(f)
		if !seen[key] {
			seen[key] = true
			pl.keys = append(pl.keys, key)
		}

		if f.Name == "__typename" {
			pl.typename[key] = true
			continue
		}

		svc, ok := p.registry.OwnerOf(f.Name)
		if !ok {
			return nil, &UnknownRootFieldError{Field: f.Name}
		}

		// Mutation root fields run in document order, so only consecutive
		// fields of the same service share a step.
		var g *fieldGroup
		if pl.serial {
			if n := len(groups); n > 0 && groups[n-1].service.Name == svc.Name {
				g = groups[n-1]
			}
		} else {
			g = byService[svc.Name]
		}
		if g == nil {
			g = &fieldGroup{service: svc, keySeen: make(map[string]bool)}
			groups = append(groups, g)
			byService[svc.Name] = g
		}
		g.add(f, key)
	}

	for _, g := range groups {
		s, err := p.step(g)
		if err != nil {
			return nil, err
		}
		pl.steps = append(pl.steps, s)
	}
	return pl, nil
}

type fieldGroup struct {
	service upstream.Service
	fields  ast.SelectionSet
	keys    []string
	keySeen map[string]bool
}

func (g *fieldGroup) add(f *ast.Field, key string) {
	g.fields = append(g.fields, f)
	if !g.keySeen[key] {
		g.keySeen[key] = true
		g.keys = append(g.keys, key)
	}
}

// rootFields flattens fragments at the root of the operation. Each named
// fragment is collected once, so repeated spreads and cycles add nothing.
func (p *planner) rootFields() ([]*ast.Field, error) {
	var out []*ast.Field
	collected := make(map[string]bool)

	var walk func(set ast.SelectionSet) error
	walk = func(set ast.SelectionSet) error {
		for _, sel := range set {
			switch s := sel.(type) {
			case *ast.Field:
				out = append(out, s)
			case *ast.InlineFragment:
				if err := walk(s.SelectionSet); err != nil {
					return err
				}
			case *ast.FragmentSpread:
				if collected[s.Name] {
					continue
				}
				def := p.doc.Fragments.ForName(s.Name)
				if def == nil {
					return &UnknownFragmentError{Name: s.Name}
				}
				collected[s.Name] = true
				if err := walk(def.SelectionSet); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := walk(p.op.SelectionSet); err != nil {
		return nil, err
	}
	return out, nil
}

// step renders the sub-operation of one field group. It keeps only the
// variables and fragments the group's selections reference, since GraphQL
// servers reject unused ones.
func (p *planner) step(g *fieldGroup) (*step, error) {
	refs := &references{fragments: make(map[string]bool), variables: make(map[string]bool)}
	if err := refs.selectionSet(p.doc, g.fields); err != nil {
		return nil, err
	}
	refs.directives(p.op.Directives)

	sub := &ast.OperationDefinition{
		Operation:    p.op.Operation,
		Name:         p.op.Name,
		Directives:   p.op.Directives,
		SelectionSet: g.fields,
	}
	variables := make(map[string]any)
	for _, def := range p.op.VariableDefinitions {
		if !refs.variables[def.Variable] {
			continue
		}
		sub.VariableDefinitions = append(sub.VariableDefinitions, def)
		if v, ok := p.vars[def.Variable]; ok {
			variables[def.Variable] = v
		}
	}

	doc := &ast.QueryDocument{Operations: ast.OperationList{sub}}
	for _, frag := range p.doc.Fragments {
		if refs.fragments[frag.Name] {
			doc.Fragments = append(doc.Fragments, frag)
		}
	}

	var buf bytes.Buffer
	formatter.NewFormatter(&buf).FormatQueryDocument(doc)

	return &step{
		service:   g.service,
		keys:      g.keys,
		query:     buf.String(),
		variables: variables,
	}, nil
}

// references collects the fragments and variables a selection set reaches.
type references struct {
	fragments map[string]bool
	variables map[string]bool
}

func (r *references) selectionSet(doc *ast.QueryDocument, set ast.SelectionSet) error {
	for _, sel := range set {
		switch s := sel.(type) {
		case *ast.Field:
			r.arguments(s.Arguments)
			r.directives(s.Directives)
			if err := r.selectionSet(doc, s.SelectionSet); err != nil {
				return err
			}
		case *ast.InlineFragment:
			r.directives(s.Directives)
			if err := r.selectionSet(doc, s.SelectionSet); err != nil {
				return err
			}
		case *ast.FragmentSpread:
			r.directives(s.Directives)
			if r.fragments[s.Name] {
				continue
			}
			def := doc.Fragments.ForName(s.Name)
			if def == nil {
				return &UnknownFragmentError{Name: s.Name}
			}
			r.fragments[s.Name] = true
			r.directives(def.Directives)
			if err := r.selectionSet(doc, def.SelectionSet); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *references) directives(list ast.DirectiveList) {
	for _, d := range list {
		r.arguments(d.Arguments)
	}
}

func (r *references) arguments(list ast.ArgumentList) {
	for _, a := range list {
		r.value(a.Value)
	}
}

func (r *references) value(v *ast.Value) {
	if v == nil {
		return
	}
	if v.Kind == ast.Variable {
		r.variables[v.Raw] = true
		return
	}
	for _, child := range v.Children {
		r.value(child.Value)
	}
}

func responseKey(f *ast.Field) string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}
