package domain

import (
	"context"
	"slices"

	"github.com/aretw0/waypoint/pkg/params"
)

// URLMatcher is the compiled URL pattern of a state.
type URLMatcher interface {
	// Pattern returns the source pattern.
	Pattern() string
	// Parameters returns the parameters declared by the pattern, path first.
	Parameters() []*params.Param
	// Exec matches a URL and returns the raw parameter values, or nil.
	Exec(path string, search map[string][]string) params.Values
	// Format renders values into a URL.
	Format(values params.Values) (string, error)
}

// DeclHook is a lifecycle callback declared on a state.
type DeclHook func(ctx context.Context, trans Transition, state *StateNode) (any, error)

// RedirectFn computes a redirect target for a state. It may return a state
// name, a *TargetState, or nil for no redirect.
type RedirectFn func(ctx context.Context, trans Transition) (any, error)

// ResolveDecl declares a resolvable on a state. Exactly one of Fn and Value is used:
// when Fn is nil the resolvable is pre-resolved to Value.
type ResolveDecl struct {
	Token  Token         `mapstructure:"-"`
	Deps   []Token       `mapstructure:"-"`
	Fn     ResolveFn     `mapstructure:"-"`
	Value  any           `mapstructure:"value"`
	Policy ResolvePolicy `mapstructure:"policy"`
}

// Declaration is the user-supplied definition of a state.
type Declaration struct {
	Name   string
	Parent string
	URL    string
	// Params configures parameters, both URL and non-URL ones.
	Params        map[string]params.Declared
	Resolve       []ResolveDecl
	ResolvePolicy ResolvePolicy
	Abstract      bool
	Data          map[string]any
	Views         map[string]ViewDecl

	OnEnter  DeclHook
	OnExit   DeclHook
	OnRetain DeclHook
	// RedirectTo is a state name, a *TargetState or a RedirectFn.
	RedirectTo any
}

// StateNode is a registered state, built from a Declaration.
type StateNode struct {
	Name   string
	Parent *StateNode
	// Self is the declaration the node was built from.
	Self          *Declaration
	URL           URLMatcher
	Params        []*params.Param
	Resolvables   []*Resolvable
	ResolvePolicy ResolvePolicy
	Abstract      bool
	// Data is the declaration's data merged over the parent's.
	Data     map[string]any
	Views    []ViewDecl
	Includes map[string]bool

	path []*StateNode
}

// Root reports whether this is the unnamed root state.
func (s *StateNode) Root() bool {
	return s.Parent == nil
}

// Path returns the states from the root down to s.
func (s *StateNode) Path() []*StateNode {
	if s.path != nil {
		return s.path
	}
	var path []*StateNode
	for n := s; n != nil; n = n.Parent {
		path = append(path, n)
	}
	slices.Reverse(path)
	return path
}

// SetPath caches the ancestor chain. The registry calls it once the tree is built.
func (s *StateNode) SetPath() {
	s.path = nil
	s.path = s.Path()
}

// Depth is the number of ancestors of s.
func (s *StateNode) Depth() int {
	return len(s.Path()) - 1
}

// Parameters returns the parameters of s, preceded by those of its ancestors when inherit is true.
func (s *StateNode) Parameters(inherit bool) []*params.Param {
	if !inherit || s.Parent == nil {
		return s.Params
	}
	return append(slices.Clone(s.Parent.Parameters(true)), s.Params...)
}

// Parameter finds a parameter of s or its ancestors by id.
func (s *StateNode) Parameter(id string) *params.Param {
	for n := s; n != nil; n = n.Parent {
		for _, p := range n.Params {
			if p.ID == id {
				return p
			}
		}
	}
	return nil
}

// Is reports whether ref identifies s. ref may be a name, a *StateNode or a *Declaration.
func (s *StateNode) Is(ref any) bool {
	switch r := ref.(type) {
	case string:
		return s.Name == r
	case *StateNode:
		return s == r
	case *Declaration:
		return s.Self != nil && s.Self == r
	}
	return false
}

// IncludesState reports whether name is s or one of its ancestors.
func (s *StateNode) IncludesState(name string) bool {
	return s.Includes[name]
}

func (s *StateNode) String() string {
	if s == nil {
		return "(nil)"
	}
	if s.Name == "" {
		return "(root)"
	}
	return s.Name
}
