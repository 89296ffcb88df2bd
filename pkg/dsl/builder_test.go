package dsl_test

import (
	"context"
	"testing"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/dsl"
	"github.com/aretw0/waypoint/pkg/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_Build(t *testing.T) {
	b := dsl.New()

	// children first: the registry queues them until the parent arrives
	b.State("users.detail").
		URL("/{id:int}").
		Param("tab", params.Declared{Value: "profile"}).
		Resolve("user", func(_ context.Context, deps ...any) (any, error) {
			return deps[0], nil
		}, "id").
		View("main", "UserDetail")

	b.State("users").
		URL("/users?q").
		Data("title", "Users").
		Value("pageSize", 20)

	reg, err := b.Build()
	require.NoError(t, err)

	detail := reg.Get("users.detail")
	require.NotNil(t, detail)
	assert.Equal(t, "users", detail.Parent.Name)
	assert.Equal(t, "Users", detail.Data["title"])
	assert.Equal(t, "int", detail.Parameter("id").Type.Name())
	tab, err := detail.Parameter("tab").Value(nil)
	require.NoError(t, err)
	assert.Equal(t, "profile", tab)
	require.Len(t, detail.Views, 1)
	assert.Equal(t, "UserDetail", detail.Views[0].Component)

	users := reg.Get("users")
	require.Len(t, users.Resolvables, 1)
	assert.True(t, users.Resolvables[0].Resolved())
	assert.Equal(t, 20, users.Resolvables[0].Data())
}

func TestBuilder_StateIsIdempotent(t *testing.T) {
	b := dsl.New()
	first := b.State("a").URL("/a")
	again := b.State("a").Abstract()

	assert.Same(t, first, again)
	decls := b.Declarations()
	require.Len(t, decls, 1)
	assert.Equal(t, "/a", decls[0].URL)
	assert.True(t, decls[0].Abstract)
}

func TestBuilder_MissingParent(t *testing.T) {
	b := dsl.New()
	b.State("a.b")

	_, err := b.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a.b")
}

func TestBuilder_DuplicateParamFails(t *testing.T) {
	b := dsl.New()
	b.State("x").URL("/:id/:id")

	_, err := b.Build()
	assert.ErrorIs(t, err, domain.ErrDuplicateParam)
}

func TestStateBuilder_Hooks(t *testing.T) {
	enter := func(context.Context, domain.Transition, *domain.StateNode) (any, error) { return nil, nil }
	decl := dsl.New().State("h").
		OnEnter(enter).
		OnExit(enter).
		OnRetain(enter).
		RedirectTo("elsewhere").
		Policy(domain.ResolvePolicy{When: domain.WhenEager}).
		Build()

	assert.NotNil(t, decl.OnEnter)
	assert.NotNil(t, decl.OnExit)
	assert.NotNil(t, decl.OnRetain)
	assert.Equal(t, "elsewhere", decl.RedirectTo)
	assert.Equal(t, domain.WhenEager, decl.ResolvePolicy.When)
}
