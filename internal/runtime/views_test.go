package runtime_test

import (
	"context"
	"testing"

	"github.com/aretw0/waypoint/internal/runtime"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeView struct {
	decl   domain.ViewDecl
	path   []*domain.PathNode
	loaded bool
	err    error
}

func (v *fakeView) Decl() domain.ViewDecl      { return v.decl }
func (v *fakeView) Path() []*domain.PathNode   { return v.path }
func (v *fakeView) Loaded() bool               { return v.loaded }
func (v *fakeView) Load(context.Context) error { v.loaded = v.err == nil; return v.err }

type mockViews struct{ mock.Mock }

func (m *mockViews) CreateViewConfig(path []*domain.PathNode, decl domain.ViewDecl) []domain.ViewConfig {
	args := m.Called(path, decl)
	return args.Get(0).([]domain.ViewConfig)
}

func (m *mockViews) ActivateViewConfig(cfg domain.ViewConfig)   { m.Called(cfg) }
func (m *mockViews) DeactivateViewConfig(cfg domain.ViewConfig) { m.Called(cfg) }
func (m *mockViews) Sync()                                      { m.Called() }

func component(name string) any {
	return mock.MatchedBy(func(d domain.ViewDecl) bool { return d.Component == name })
}

func TestViews_Lifecycle(t *testing.T) {
	views := &mockViews{}
	e := newEngine(t, func(b *dsl.Builder) {
		b.State("a").View("main", "A")
		b.State("b").View("main", "B")
	}, runtime.WithViewService(views))

	va := &fakeView{decl: domain.ViewDecl{Name: "main", Component: "A"}}
	vb := &fakeView{decl: domain.ViewDecl{Name: "main", Component: "B"}}
	views.On("CreateViewConfig", mock.Anything, component("A")).Return([]domain.ViewConfig{va}).Once()
	views.On("CreateViewConfig", mock.Anything, component("B")).Return([]domain.ViewConfig{vb}).Once()
	views.On("ActivateViewConfig", va).Once()
	views.On("DeactivateViewConfig", va).Once()
	views.On("ActivateViewConfig", vb).Once()
	views.On("Sync").Twice()

	_, err := e.TransitionTo(context.Background(), "a", nil)
	require.NoError(t, err)
	assert.True(t, va.Loaded())

	_, err = e.TransitionTo(context.Background(), "b", nil)
	require.NoError(t, err)
	assert.True(t, vb.Loaded())

	views.AssertExpectations(t)
}

func TestViews_LoadFailureRejects(t *testing.T) {
	views := &mockViews{}
	e := newEngine(t, func(b *dsl.Builder) {
		b.State("broken").View("main", "X")
	}, runtime.WithViewService(views), runtime.WithErrorHandler(func(error) {}))

	bad := &fakeView{err: assert.AnError}
	views.On("CreateViewConfig", mock.Anything, mock.Anything).Return([]domain.ViewConfig{bad})

	_, err := e.TransitionTo(context.Background(), "broken", nil)
	assert.ErrorIs(t, err, assert.AnError)
	views.AssertNotCalled(t, "ActivateViewConfig", mock.Anything)
	views.AssertNotCalled(t, "Sync")
}
