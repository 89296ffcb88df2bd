package domain_test

import (
	"testing"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/params"
	"github.com/stretchr/testify/assert"
)

type finderFunc func(ref, base any) *domain.StateNode

func (f finderFunc) Find(ref, base any) *domain.StateNode { return f(ref, base) }

func TestTargetState_Errors(t *testing.T) {
	good := newState("good", nil)
	broken := &domain.StateNode{Name: "broken"}
	finder := finderFunc(func(ref, base any) *domain.StateNode {
		switch ref {
		case "good":
			return good
		case "broken":
			return broken
		}
		return nil
	})
	opts := domain.DefaultTransitionOptions()

	target := domain.NewTargetState(finder, "good", nil, opts)
	assert.True(t, target.Exists())
	assert.True(t, target.Valid())
	assert.Empty(t, target.Error())

	target = domain.NewTargetState(finder, "missing", nil, opts)
	assert.False(t, target.Exists())
	assert.Equal(t, "No such state 'missing'", target.Error())

	target = domain.NewTargetState(finder, "^.missing", nil, opts.Apply(domain.WithRelative("good")))
	assert.Equal(t, "Could not resolve '^.missing' from state 'good'", target.Error())

	target = domain.NewTargetState(finder, "broken", nil, opts)
	assert.True(t, target.Exists())
	assert.False(t, target.Valid())
	assert.Equal(t, "State 'broken' has an invalid definition", target.Error())
}

func TestTargetState_IsImmutable(t *testing.T) {
	s := newState("s", nil)
	other := newState("other", nil)
	finder := finderFunc(func(ref, base any) *domain.StateNode {
		switch ref {
		case "s":
			return s
		case "other":
			return other
		}
		return nil
	})

	orig := domain.NewTargetState(finder, "s", params.Values{"a": 1}, domain.DefaultTransitionOptions())

	merged := orig.WithParams(params.Values{"b": 2}, false)
	assert.Equal(t, params.Values{"a": 1, "b": 2}, merged.Params())
	assert.Equal(t, params.Values{"a": 1}, orig.Params())

	replaced := orig.WithParams(params.Values{"b": 2}, true)
	assert.Equal(t, params.Values{"b": 2}, replaced.Params())

	moved := orig.WithState("other")
	assert.Same(t, other, moved.State())
	assert.Same(t, s, orig.State())

	reloading := orig.WithOptions(false, domain.WithReload())
	assert.True(t, reloading.Options().Reload)
	assert.False(t, orig.Options().Reload)

	assert.Equal(t, `'s'{"a":1}`, orig.String())
}

func TestMakeTargetState(t *testing.T) {
	parent := newState("a", nil)
	child := newState("a.b", parent)
	p1, p2 := domain.NewPathNode(parent), domain.NewPathNode(child)
	p1.ParamValues = params.Values{"x": 1}
	p2.ParamValues = params.Values{"y": 2}
	finder := finderFunc(func(ref, _ any) *domain.StateNode {
		s, _ := ref.(*domain.StateNode)
		return s
	})

	target := domain.MakeTargetState(finder, []*domain.PathNode{p1, p2})
	assert.Same(t, child, target.State())
	assert.Equal(t, params.Values{"x": 1, "y": 2}, target.Params())
}
