package dsl

import (
	"errors"
	"fmt"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/registry"
)

// Builder collects state declarations.
type Builder struct {
	order  []string
	states map[string]*StateBuilder
}

// New creates a new state tree builder.
func New() *Builder {
	return &Builder{
		states: make(map[string]*StateBuilder),
	}
}

// State starts (or continues) the declaration of a state.
// If the state already exists, it returns the existing builder.
func (b *Builder) State(name string) *StateBuilder {
	if sb, ok := b.states[name]; ok {
		return sb
	}
	sb := &StateBuilder{
		decl:    &domain.Declaration{Name: name},
		builder: b,
	}
	b.states[name] = sb
	b.order = append(b.order, name)
	return sb
}

// Declarations returns the declarations in the order they were started.
func (b *Builder) Declarations() []*domain.Declaration {
	out := make([]*domain.Declaration, 0, len(b.order))
	for _, name := range b.order {
		out = append(out, b.states[name].decl)
	}
	return out
}

// Register adds every declaration to reg. Declarations may be given in any
// order; it fails if some parent never gets registered.
func (b *Builder) Register(reg *registry.Registry) error {
	var errs []error
	for _, decl := range b.Declarations() {
		if _, err := reg.Register(decl); err != nil {
			errs = append(errs, err)
		}
	}
	if pending := reg.Pending(); len(pending) > 0 {
		errs = append(errs, fmt.Errorf("states with unregistered parents: %v", pending))
	}
	return errors.Join(errs...)
}

// Build registers the declarations into a new registry.
func (b *Builder) Build(opts ...registry.Option) (*registry.Registry, error) {
	reg := registry.New(opts...)
	if err := b.Register(reg); err != nil {
		return nil, fmt.Errorf("failed to build state tree: %w", err)
	}
	return reg, nil
}
