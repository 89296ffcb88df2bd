package runtime

import (
	"fmt"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/glob"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Criterion selects the states a hook applies to.
type Criterion interface {
	Match(state *domain.StateNode, t *Transition) bool
}

type always struct{}

func (always) Match(*domain.StateNode, *Transition) bool { return true }

// Always matches any path, including an empty one. It is the default for
// every criteria path.
func Always() Criterion { return always{} }

type globCriterion struct {
	patterns []string
	globs    []*glob.Glob
}

func (c globCriterion) Match(state *domain.StateNode, _ *Transition) bool {
	for i, g := range c.globs {
		if g != nil && g.Matches(state.Name) {
			return true
		}
		if g == nil && c.patterns[i] == state.Name {
			return true
		}
	}
	return false
}

// Glob matches states by name. A pattern without glob syntax matches the
// exact name.
func Glob(pattern string) Criterion {
	return AnyOf(pattern)
}

// AnyOf matches states whose name matches any of patterns.
func AnyOf(patterns ...string) Criterion {
	c := globCriterion{patterns: patterns, globs: make([]*glob.Glob, len(patterns))}
	for i, p := range patterns {
		if glob.IsGlob(p) {
			c.globs[i] = glob.Compile(p)
		}
	}
	return c
}

// Predicate matches states for which the function returns true. Unlike
// Always, it never matches an empty path.
type Predicate func(state *domain.StateNode, t *Transition) bool

func (p Predicate) Match(state *domain.StateNode, t *Transition) bool { return p(state, t) }

type exprCriterion struct {
	source  string
	program *vm.Program
}

// MatchExpr compiles a boolean expression matched against each state. The
// expression sees:
//
//	state.name, state.data, state.abstract, state.depth
//	transition.id, transition.params, transition.from, transition.to, transition.source
func MatchExpr(source string) (Criterion, error) {
	program, err := expr.Compile(source,
		expr.Env(map[string]any{
			"state":      map[string]any{},
			"transition": map[string]any{},
		}),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid hook expression %q: %w", source, err)
	}
	return &exprCriterion{source: source, program: program}, nil
}

func (c *exprCriterion) Match(state *domain.StateNode, t *Transition) bool {
	env := map[string]any{
		"state": map[string]any{
			"name":     state.Name,
			"data":     state.Data,
			"abstract": state.Abstract,
			"depth":    state.Depth(),
		},
		"transition": map[string]any{},
	}
	if t != nil {
		env["transition"] = map[string]any{
			"id":     t.ID(),
			"params": map[string]any(t.Params()),
			"from":   t.From().Name,
			"to":     t.To().Name,
			"source": string(t.Options().Source),
		}
	}
	out, err := expr.Run(c.program, env)
	if err != nil {
		return false
	}
	ok, _ := out.(bool)
	return ok
}

func (c *exprCriterion) String() string { return c.source }

// HookCriteria restricts a hook to transitions whose paths match. A nil field
// matches anything.
type HookCriteria struct {
	To       Criterion
	From     Criterion
	Entering Criterion
	Exiting  Criterion
	Retained Criterion
}

func (c HookCriteria) get(path domain.PathType) Criterion {
	var crit Criterion
	switch path {
	case domain.PathTo:
		crit = c.To
	case domain.PathFrom:
		crit = c.From
	case domain.PathEntering:
		crit = c.Entering
	case domain.PathExiting:
		crit = c.Exiting
	case domain.PathRetained:
		crit = c.Retained
	}
	if crit == nil {
		return Always()
	}
	return crit
}

// matchingNodes filters nodes by crit. Always keeps every node, even none.
// Any other criterion must match at least one node.
func matchingNodes(nodes []*domain.PathNode, crit Criterion, t *Transition) ([]*domain.PathNode, bool) {
	if _, ok := crit.(always); ok {
		return nodes, true
	}
	var out []*domain.PathNode
	for _, n := range nodes {
		if n != nil && crit.Match(n.State, t) {
			out = append(out, n)
		}
	}
	return out, len(out) > 0
}
