package domain

import (
	"maps"

	"github.com/aretw0/waypoint/pkg/params"
)

// Transition is the view of a running transition that state declarations see
// in their hooks.
type Transition interface {
	ID() int64
	From() *StateNode
	To() *StateNode
	// Params returns the merged param values of the "to" path, or of the named path.
	Params(path ...PathType) params.Values
	Options() TransitionOptions
	TargetState() *TargetState
	// Injector returns an injector scoped to state within the "to" path. A nil
	// state scopes it to the whole path.
	Injector(state *StateNode) *Injector
	String() string
}

// Location says how a transition updates the URL.
type Location string

const (
	LocationPush    Location = "push"
	LocationReplace Location = "replace"
	LocationNone    Location = "none"
)

// Source says what started a transition.
type Source string

const (
	SourceUnknown  Source = "unknown"
	SourceURL      Source = "url"
	SourceRedirect Source = "redirect"
	SourceAPI      Source = "api"
)

// TransitionOptions control a single transition.
type TransitionOptions struct {
	Location Location
	// Relative is the base for relative state references: a name, *StateNode or *Declaration.
	Relative any
	Inherit  bool
	// Reload forces states to exit and re-enter. With ReloadRef unset it reloads from the root.
	Reload    bool
	ReloadRef any
	// ReloadState is Reload resolved to a state; set by the router.
	ReloadState    *StateNode
	Custom         map[string]any
	Supersede      bool
	Source         Source
	RedirectedFrom Transition
}

// DefaultTransitionOptions are the options of a plain TransitionTo.
func DefaultTransitionOptions() TransitionOptions {
	return TransitionOptions{
		Location:  LocationPush,
		Supersede: true,
		Source:    SourceUnknown,
	}
}

// TransitionOption configures TransitionOptions.
type TransitionOption func(*TransitionOptions)

// Apply returns a copy of o with opts applied.
func (o TransitionOptions) Apply(opts ...TransitionOption) TransitionOptions {
	o.Custom = maps.Clone(o.Custom)
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithReload reloads every state of the destination.
func WithReload() TransitionOption {
	return func(o *TransitionOptions) {
		o.Reload = true
	}
}

// WithReloadState reloads ref and its descendants.
func WithReloadState(ref any) TransitionOption {
	return func(o *TransitionOptions) {
		o.Reload = true
		o.ReloadRef = ref
	}
}

// WithInherit inherits unspecified param values from the current path.
func WithInherit(inherit bool) TransitionOption {
	return func(o *TransitionOptions) {
		o.Inherit = inherit
	}
}

// WithRelative resolves relative references against ref.
func WithRelative(ref any) TransitionOption {
	return func(o *TransitionOptions) {
		o.Relative = ref
	}
}

// WithLocation sets how the URL is updated.
func WithLocation(l Location) TransitionOption {
	return func(o *TransitionOptions) {
		o.Location = l
	}
}

// WithSupersede sets whether the transition may replace a running one.
func WithSupersede(supersede bool) TransitionOption {
	return func(o *TransitionOptions) {
		o.Supersede = supersede
	}
}

// WithCustom attaches an arbitrary value to the transition options.
func WithCustom(key string, value any) TransitionOption {
	return func(o *TransitionOptions) {
		if o.Custom == nil {
			o.Custom = map[string]any{}
		}
		o.Custom[key] = value
	}
}

// WithSource records what started the transition.
func WithSource(s Source) TransitionOption {
	return func(o *TransitionOptions) {
		o.Source = s
	}
}

// WithRedirectedFrom links a redirect to the transition it replaces.
func WithRedirectedFrom(t Transition) TransitionOption {
	return func(o *TransitionOptions) {
		o.RedirectedFrom = t
	}
}
