package observability_test

import (
	"context"
	"strings"
	"testing"

	"github.com/aretw0/waypoint"
	"github.com/aretw0/waypoint/pkg/dsl"
	"github.com/aretw0/waypoint/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGraphRouter(t *testing.T) *waypoint.Router {
	t.Helper()
	b := dsl.New()
	b.State("users").URL("/users?q").Abstract()
	b.State("users.list").URL("")
	b.State("users.detail").URL("/{id:int}")
	b.State("legacy-users").RedirectTo("users.list")
	b.State("settings")

	r, err := waypoint.New(context.Background(), waypoint.WithStates(b.Declarations()...))
	require.NoError(t, err)
	t.Cleanup(r.Dispose)
	return r
}

func TestGenerateMermaid(t *testing.T) {
	r := newGraphRouter(t)

	tests := []struct {
		name     string
		contains []string
		excludes []string
	}{
		{
			name:     "Root Node Shape",
			contains: []string{"root((\"root\"))", "root --> s_users", "root --> s_settings"},
		},
		{
			name:     "Abstract Node Shape",
			contains: []string{"s_users([\"users <br/> /users?q\"])"},
		},
		{
			name:     "URL Labels",
			contains: []string{"s_users_detail[\"users.detail <br/> /users/{id:int}?q\"]", "s_settings[\"settings\"]"},
		},
		{
			name:     "ID Sanitization",
			contains: []string{"s_legacy_users[\"legacy-users\"]"},
		},
		{
			name:     "Parent And Redirect Edges",
			contains: []string{"s_users --> s_users_detail", "s_legacy_users -. redirect .-> s_users_list"},
		},
		{
			name:     "No Overlay",
			excludes: []string{"classDef"},
		},
	}

	got := observability.GenerateMermaid(r.States(), nil)
	require.True(t, strings.HasPrefix(got, "graph TD\n"))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, want := range tt.contains {
				assert.Contains(t, got, want)
			}
			for _, unwanted := range tt.excludes {
				assert.NotContains(t, got, unwanted)
			}
		})
	}
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	r := newGraphRouter(t)
	ctx := context.Background()

	_, err := r.TransitionTo(ctx, "settings", nil)
	require.NoError(t, err)
	_, err = r.TransitionTo(ctx, "users.detail", waypoint.Values{"id": 3})
	require.NoError(t, err)

	overlay := observability.OverlayOf(r)
	assert.Equal(t, "users.detail", overlay.CurrentState)
	assert.Equal(t, []string{"users", "users.detail"}, overlay.ActivePath)
	assert.ElementsMatch(t, []string{"settings", "users", "users.detail"}, overlay.VisitedStates)

	got := observability.GenerateMermaid(r.States(), overlay)
	assert.Contains(t, got, "classDef current")
	assert.Contains(t, got, "class s_users_detail current;")
	assert.Contains(t, got, "class s_users active;")
	assert.Contains(t, got, "class s_settings visited;")
	assert.Equal(t, 1, strings.Count(got, "class s_users_detail "), "one class per state")
}
