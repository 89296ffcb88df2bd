package domain

import "context"

// When controls whether a resolvable is fetched before the transition starts
// (Eager) or when its state is entered (Lazy).
type When string

const (
	WhenLazy  When = "LAZY"
	WhenEager When = "EAGER"
)

// Async controls whether a transition waits for a resolvable.
type Async string

const (
	AsyncWait   Async = "WAIT"
	AsyncNoWait Async = "NOWAIT"
)

// AsyncTransform post-processes a resolved value before it is stored, for
// example to unwrap a value that itself needs awaiting.
type AsyncTransform func(ctx context.Context, v any) (any, error)

// ResolvePolicy is the fetch policy of a resolvable. Zero fields are inherited
// from the state's policy and then from the router default.
type ResolvePolicy struct {
	When      When           `mapstructure:"when" json:"when,omitempty" yaml:"when,omitempty"`
	Async     Async          `mapstructure:"async" json:"async,omitempty" yaml:"async,omitempty"`
	Transform AsyncTransform `mapstructure:"-" json:"-" yaml:"-"`
}

// DefaultResolvePolicy is the fallback policy: lazy fetch, wait for the value.
var DefaultResolvePolicy = ResolvePolicy{When: WhenLazy, Async: AsyncWait}

// Or fills unset fields of p from fallback.
func (p ResolvePolicy) Or(fallback ResolvePolicy) ResolvePolicy {
	if p.When == "" {
		p.When = fallback.When
	}
	if p.Async == "" {
		p.Async = fallback.Async
	}
	if p.Transform == nil {
		p.Transform = fallback.Transform
	}
	return p
}
