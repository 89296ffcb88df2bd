package domain

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/aretw0/waypoint/pkg/params"
)

// StateFinder resolves state references. ref may be a name (possibly relative,
// like "^.sibling" or ".child"), a *StateNode or a *Declaration; base is the
// state relative names are resolved from, or nil.
type StateFinder interface {
	Find(ref any, base any) *StateNode
}

// TargetState is an immutable description of a transition destination: a
// state reference, param values and options. The reference may not resolve.
type TargetState struct {
	finder     StateFinder
	identifier any
	definition *StateNode
	params     params.Values
	options    TransitionOptions
}

// NewTargetState resolves identifier with finder and builds a TargetState.
func NewTargetState(finder StateFinder, identifier any, vals params.Values, opts TransitionOptions) *TargetState {
	t := &TargetState{
		finder:     finder,
		identifier: identifier,
		params:     maps.Clone(vals),
		options:    opts,
	}
	if t.params == nil {
		t.params = params.Values{}
	}
	if finder != nil {
		t.definition = finder.Find(identifier, opts.Relative)
	}
	return t
}

// Name returns the resolved state name, or the identifier as given.
func (t *TargetState) Name() string {
	if t.definition != nil {
		return t.definition.Name
	}
	return refName(t.identifier)
}

// Identifier returns the reference the target was created with.
func (t *TargetState) Identifier() any { return t.identifier }

// Params returns a copy of the target's param values.
func (t *TargetState) Params() params.Values { return maps.Clone(t.params) }

// State returns the resolved state, or nil.
func (t *TargetState) State() *StateNode { return t.definition }

// Declaration returns the declaration of the resolved state, or nil.
func (t *TargetState) Declaration() *Declaration {
	if t.definition == nil {
		return nil
	}
	return t.definition.Self
}

// Options returns the target's transition options.
func (t *TargetState) Options() TransitionOptions { return t.options }

// Exists reports whether the reference resolved to a state.
func (t *TargetState) Exists() bool { return t.definition != nil }

// Valid reports whether the target can be transitioned to.
func (t *TargetState) Valid() bool { return t.Error() == "" }

// Error describes why the target is not valid, or returns "".
func (t *TargetState) Error() string {
	base := t.options.Relative
	if t.definition == nil && base != nil {
		return fmt.Sprintf("Could not resolve '%s' from state '%s'", t.Name(), refName(base))
	}
	if t.definition == nil {
		return fmt.Sprintf("No such state '%s'", t.Name())
	}
	if t.definition.Self == nil {
		return fmt.Sprintf("State '%s' has an invalid definition", t.Name())
	}
	return ""
}

// WithState returns a copy targeting ref.
func (t *TargetState) WithState(ref any) *TargetState {
	return NewTargetState(t.finder, ref, t.params, t.options)
}

// WithParams returns a copy with vals merged over the current values, or
// replacing them when replace is true.
func (t *TargetState) WithParams(vals params.Values, replace bool) *TargetState {
	next := vals
	if !replace {
		next = maps.Clone(t.params)
		maps.Copy(next, vals)
	}
	return NewTargetState(t.finder, t.identifier, next, t.options)
}

// WithOptions returns a copy with opts applied to the current options, or to
// the defaults when replace is true.
func (t *TargetState) WithOptions(replace bool, opts ...TransitionOption) *TargetState {
	base := t.options
	if replace {
		base = DefaultTransitionOptions()
	}
	return NewTargetState(t.finder, t.identifier, t.params, base.Apply(opts...))
}

func (t *TargetState) String() string {
	b, err := json.Marshal(t.params)
	if err != nil {
		b = []byte(fmt.Sprint(map[string]any(t.params)))
	}
	return fmt.Sprintf("'%s'%s", t.Name(), b)
}

func refName(ref any) string {
	switch r := ref.(type) {
	case string:
		return r
	case *StateNode:
		return r.Name
	case *Declaration:
		return r.Name
	case nil:
		return ""
	}
	return fmt.Sprint(ref)
}
