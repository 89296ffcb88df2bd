package dsl

import (
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/params"
)

// StateBuilder provides a fluent API for declaring a state.
type StateBuilder struct {
	decl    *domain.Declaration
	builder *Builder
}

// URL sets the state's URL pattern, relative to its parent's.
func (s *StateBuilder) URL(pattern string) *StateBuilder {
	s.decl.URL = pattern
	return s
}

// Parent sets the parent explicitly instead of deriving it from the dotted name.
func (s *StateBuilder) Parent(name string) *StateBuilder {
	s.decl.Parent = name
	return s
}

// Abstract marks the state as not directly activatable.
func (s *StateBuilder) Abstract() *StateBuilder {
	s.decl.Abstract = true
	return s
}

// Param configures a parameter.
func (s *StateBuilder) Param(id string, decl params.Declared) *StateBuilder {
	if s.decl.Params == nil {
		s.decl.Params = make(map[string]params.Declared)
	}
	s.decl.Params[id] = decl
	return s
}

// Resolve adds a resolvable computed by fn from the named dependencies.
func (s *StateBuilder) Resolve(token string, fn domain.ResolveFn, deps ...string) *StateBuilder {
	s.decl.Resolve = append(s.decl.Resolve, domain.ResolveDecl{
		Token: domain.Named(token),
		Fn:    fn,
		Deps:  domain.Tokens(deps...),
	})
	return s
}

// ResolveWith adds a fully specified resolvable.
func (s *StateBuilder) ResolveWith(rd domain.ResolveDecl) *StateBuilder {
	s.decl.Resolve = append(s.decl.Resolve, rd)
	return s
}

// Value adds a pre-resolved resolvable.
func (s *StateBuilder) Value(token string, v any) *StateBuilder {
	s.decl.Resolve = append(s.decl.Resolve, domain.ResolveDecl{Token: domain.Named(token), Value: v})
	return s
}

// Policy sets the default resolve policy of the state.
func (s *StateBuilder) Policy(p domain.ResolvePolicy) *StateBuilder {
	s.decl.ResolvePolicy = p
	return s
}

// Data adds a data value, inherited by child states.
func (s *StateBuilder) Data(key string, value any) *StateBuilder {
	if s.decl.Data == nil {
		s.decl.Data = make(map[string]any)
	}
	s.decl.Data[key] = value
	return s
}

// View declares a named view.
func (s *StateBuilder) View(name, component string) *StateBuilder {
	if s.decl.Views == nil {
		s.decl.Views = make(map[string]domain.ViewDecl)
	}
	s.decl.Views[name] = domain.ViewDecl{Name: name, Component: component}
	return s
}

// OnEnter sets the state's enter hook.
func (s *StateBuilder) OnEnter(fn domain.DeclHook) *StateBuilder {
	s.decl.OnEnter = fn
	return s
}

// OnExit sets the state's exit hook.
func (s *StateBuilder) OnExit(fn domain.DeclHook) *StateBuilder {
	s.decl.OnExit = fn
	return s
}

// OnRetain sets the state's retain hook.
func (s *StateBuilder) OnRetain(fn domain.DeclHook) *StateBuilder {
	s.decl.OnRetain = fn
	return s
}

// RedirectTo redirects transitions targeting this state. target is a state
// name, a *domain.TargetState or a domain.RedirectFn.
func (s *StateBuilder) RedirectTo(target any) *StateBuilder {
	s.decl.RedirectTo = target
	return s
}

// State continues with another state of the same builder.
func (s *StateBuilder) State(name string) *StateBuilder {
	return s.builder.State(name)
}

// Build returns the underlying declaration.
func (s *StateBuilder) Build() *domain.Declaration {
	return s.decl
}
