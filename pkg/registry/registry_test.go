package registry_test

import (
	"context"
	"testing"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/params"
	"github.com/aretw0/waypoint/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRegister(t *testing.T, r *registry.Registry, decl *domain.Declaration) *domain.StateNode {
	t.Helper()
	s, err := r.Register(decl)
	require.NoError(t, err)
	require.NotNil(t, s)
	return s
}

func TestRegister_BuildsTree(t *testing.T) {
	r := registry.New()
	users := mustRegister(t, r, &domain.Declaration{Name: "users", URL: "/users?sort", Data: map[string]any{"title": "Users"}})
	detail := mustRegister(t, r, &domain.Declaration{
		Name: "users.detail",
		URL:  "/{id:int}",
		Params: map[string]params.Declared{
			"tab": {Value: "profile"},
		},
		Resolve: []domain.ResolveDecl{
			{Token: domain.Named("user"), Fn: func(_ context.Context, deps ...any) (any, error) { return deps[0], nil }, Deps: domain.Tokens("id")},
		},
	})

	assert.Same(t, users, detail.Parent)
	assert.Same(t, r.Root(), users.Parent)
	assert.Equal(t, []*domain.StateNode{r.Root(), users, detail}, detail.Path())
	assert.True(t, detail.IncludesState("users"))
	assert.Equal(t, "Users", detail.Data["title"])

	ids := []string{}
	for _, p := range detail.Params {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"id", "tab"}, ids)
	assert.Equal(t, "int", detail.Parameter("id").Type.Name())
	assert.Equal(t, params.Config, detail.Parameter("tab").Location)
	assert.NotNil(t, detail.Parameter("sort"), "ancestor params are visible")
	assert.Len(t, detail.Resolvables, 1)
}

func TestRegister_QueuesOrphans(t *testing.T) {
	r := registry.New()
	var events [][]string
	r.OnStatesChanged(func(e registry.Event, states []*domain.StateNode) {
		var names []string
		for _, s := range states {
			names = append(names, s.Name)
		}
		events = append(events, names)
	})

	s, err := r.Register(&domain.Declaration{Name: "a.b.c"})
	require.NoError(t, err)
	assert.Nil(t, s)
	_, err = r.Register(&domain.Declaration{Name: "a.b"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.b", "a.b.c"}, r.Pending())

	mustRegister(t, r, &domain.Declaration{Name: "a"})
	assert.Empty(t, r.Pending())
	require.NotNil(t, r.Get("a.b.c"))
	assert.Equal(t, [][]string{{"a", "a.b", "a.b.c"}}, events)
}

func TestRegister_Errors(t *testing.T) {
	r := registry.New()
	mustRegister(t, r, &domain.Declaration{Name: "a"})

	_, err := r.Register(&domain.Declaration{Name: "a"})
	assert.ErrorIs(t, err, domain.ErrDuplicateState)

	_, err = r.Register(&domain.Declaration{Name: "b", URL: "/:id/:id"})
	assert.ErrorIs(t, err, domain.ErrDuplicateParam)

	_, err = r.Register(&domain.Declaration{Name: "c", Params: map[string]params.Declared{"x": {Value: 1, Squash: 2.5}}})
	assert.ErrorIs(t, err, params.ErrInvalidSquashPolicy)
}

func TestFind_Relative(t *testing.T) {
	r := registry.New()
	mustRegister(t, r, &domain.Declaration{Name: "a"})
	b := mustRegister(t, r, &domain.Declaration{Name: "a.b"})
	c := mustRegister(t, r, &domain.Declaration{Name: "a.c"})
	d := mustRegister(t, r, &domain.Declaration{Name: "a.b.d"})

	assert.Same(t, c, r.Find("^.c", "a.b"))
	assert.Same(t, d, r.Find(".d", "a.b"))
	assert.Same(t, b, r.Find("^", "a.b.d"))
	assert.Same(t, r.Root(), r.Find("^.^", "a.b"))
	assert.Nil(t, r.Find(".d", nil), "relative refs need a base")
	assert.Nil(t, r.Find("^.^.^", "a"))

	assert.Same(t, b, r.Find(b.Self, nil))
	assert.Nil(t, r.Find(&domain.Declaration{Name: "a.b"}, nil), "a different declaration with the same name")
}

func TestDeregister_RemovesSubtree(t *testing.T) {
	r := registry.New()
	mustRegister(t, r, &domain.Declaration{Name: "a"})
	mustRegister(t, r, &domain.Declaration{Name: "a.b"})
	mustRegister(t, r, &domain.Declaration{Name: "a.b.c"})
	mustRegister(t, r, &domain.Declaration{Name: "z"})

	removed, err := r.Deregister("a.b")
	require.NoError(t, err)
	require.Len(t, removed, 2)
	assert.Equal(t, "a.b.c", removed[0].Name, "deepest first")
	assert.Nil(t, r.Get("a.b.c"))
	assert.Len(t, r.All(), 2)

	_, err = r.Deregister("nope")
	assert.ErrorIs(t, err, domain.ErrStateNotFound)
}

func TestMatchAndHref(t *testing.T) {
	r := registry.New()
	mustRegister(t, r, &domain.Declaration{Name: "users", URL: "/users?q"})
	mustRegister(t, r, &domain.Declaration{Name: "users.new", URL: "/new"})
	detail := mustRegister(t, r, &domain.Declaration{Name: "users.detail", URL: "/{id:int}"})

	s, vals := r.Match("/users/new", nil)
	require.NotNil(t, s)
	assert.Equal(t, "users.new", s.Name, "static segments win over params")

	s, vals = r.Match("/users/42", map[string][]string{"q": {"bob"}})
	require.NotNil(t, s)
	assert.Same(t, detail, s)
	assert.Equal(t, 42, vals["id"])
	assert.Equal(t, "bob", vals["q"])

	s, _ = r.Match("/nowhere", nil)
	assert.Nil(t, s)

	href, err := r.Href(detail, params.Values{"id": 7, "q": "x"})
	require.NoError(t, err)
	assert.Equal(t, "/users/7?q=x", href)

	_, err = r.Href(detail, params.Values{})
	assert.Error(t, err)
}
