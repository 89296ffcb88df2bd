package validator

import (
	"context"
	"testing"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echo(_ context.Context, deps ...any) (any, error) { return deps, nil }

func build(t *testing.T, b *dsl.Builder) []*domain.StateNode {
	t.Helper()
	reg, err := b.Build()
	require.NoError(t, err)
	return reg.All()
}

func TestValidateTree(t *testing.T) {
	// 1. Scenario A: Valid Tree
	b := dsl.New()
	b.State("app").Abstract().Value("user", "ann")
	b.State("app.home").Resolve("greeting", echo, "user", "$stateParams")
	b.State("start").RedirectTo("app.home")

	core := func(tok domain.Token) bool { return tok == domain.TokenStateParams }
	assert.NoError(t, ValidateTree(build(t, b), core))

	// 2. Scenario B: every kind of problem
	b = dsl.New()
	b.State("empty").Abstract()
	b.State("ghost").RedirectTo("nowhere")
	b.State("wrapper").Abstract().State("wrapper.child")
	b.State("to-abstract").RedirectTo("wrapper")
	b.State("ping").RedirectTo("pong")
	b.State("pong").RedirectTo("ping")
	b.State("orphan-dep").Resolve("report", echo, "missing")

	err := ValidateTree(build(t, b), nil)
	require.ErrorIs(t, err, ErrInvalidTree)
	msg := err.Error()
	assert.Contains(t, msg, "found 6 errors")
	assert.Contains(t, msg, "abstract state 'empty' has no children")
	assert.Contains(t, msg, "state 'ghost' redirects to missing state 'nowhere'")
	assert.Contains(t, msg, "state 'to-abstract' redirects to abstract state 'wrapper'")
	assert.Contains(t, msg, "redirect loop: ping -> pong -> ping")
	assert.Contains(t, msg, "redirect loop: pong -> ping -> pong")
	assert.Contains(t, msg, `resolve "report" depends on "missing"`)
	assert.NotContains(t, msg, "'wrapper' has no children")
}
