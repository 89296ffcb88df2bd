package runtime_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/waypoint/internal/runtime"
	"github.com/aretw0/waypoint/pkg/async"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/dsl"
	"github.com/aretw0/waypoint/pkg/params"
	"github.com/aretw0/waypoint/pkg/rejection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func newEngine(t *testing.T, build func(b *dsl.Builder), opts ...runtime.Option) *runtime.Engine {
	t.Helper()
	b := dsl.New()
	build(b)
	reg, err := b.Build()
	require.NoError(t, err)
	return runtime.NewEngine(append([]runtime.Option{runtime.WithRegistry(reg)}, opts...)...)
}

func names(states []*domain.StateNode) []string {
	out := []string{}
	for _, s := range states {
		out = append(out, s.Name)
	}
	return out
}

func constant(v any) domain.ResolveFn {
	return func(context.Context, ...any) (any, error) { return v, nil }
}

func TestEngine_EndToEnd(t *testing.T) {
	var got any
	e := newEngine(t, func(b *dsl.Builder) {
		b.State("foo").ResolveWith(domain.ResolveDecl{
			Token:  domain.Named("X"),
			Fn:     constant(42),
			Policy: domain.ResolvePolicy{When: domain.WhenEager},
		})
		b.State("foo.bar").OnEnter(func(_ context.Context, trans domain.Transition, state *domain.StateNode) (any, error) {
			v, err := trans.Injector(state).Get(domain.Named("X"))
			got = v
			return nil, err
		})
	})

	tr, err := e.TransitionTo(context.Background(), "foo.bar", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"foo", "foo.bar"}, names(tr.Entering()))
	assert.Empty(t, tr.Exiting())
	assert.Equal(t, 42, got)
	assert.Equal(t, "foo.bar", e.Current().Name)

	ok, settled := tr.Success()
	assert.True(t, settled)
	assert.True(t, ok)
	select {
	case <-tr.Done():
	default:
		t.Fatal("transition should be settled")
	}
}

func TestEngine_LazyResolvesBeforeEnterHook(t *testing.T) {
	var got any
	e := newEngine(t, func(b *dsl.Builder) {
		b.State("lazy").
			Resolve("data", constant("v")).
			Resolve("derived", func(_ context.Context, deps ...any) (any, error) {
				return deps[0].(string) + "!", nil
			}, "data").
			OnEnter(func(_ context.Context, trans domain.Transition, state *domain.StateNode) (any, error) {
				v, err := trans.Injector(state).Get(domain.Named("derived"))
				got = v
				return nil, err
			})
	})

	_, err := e.TransitionTo(context.Background(), "lazy", nil)
	require.NoError(t, err)
	assert.Equal(t, "v!", got)
}

func TestEngine_NoWaitResolvableDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	var got any
	e := newEngine(t, func(b *dsl.Builder) {
		b.State("s").
			ResolveWith(domain.ResolveDecl{
				Token: domain.Named("slow"),
				Fn: func(context.Context, ...any) (any, error) {
					<-release
					return "done", nil
				},
				Policy: domain.ResolvePolicy{Async: domain.AsyncNoWait},
			}).
			OnEnter(func(_ context.Context, trans domain.Transition, state *domain.StateNode) (any, error) {
				v, err := trans.Injector(state).Get(domain.Named("slow"))
				got = v
				return nil, err
			})
	})

	_, err := e.TransitionTo(context.Background(), "s", nil)
	require.NoError(t, err)

	f, ok := got.(*async.Future[any])
	require.True(t, ok, "a NOWAIT resolvable is injected as a future, got %T", got)
	assert.False(t, f.Settled())
	close(release)
	v, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "done", v)
}

func TestEngine_CoreResolvables(t *testing.T) {
	var state, trans, engine any
	e := newEngine(t, func(b *dsl.Builder) {
		b.State("a").OnEnter(func(_ context.Context, tr domain.Transition, s *domain.StateNode) (any, error) {
			inj := tr.Injector(s)
			state, _ = inj.Get(domain.TokenState)
			trans, _ = inj.Get(domain.TokenTransition)
			engine, _ = inj.Get(runtime.TokenEngine)
			return nil, nil
		})
	})

	tr, err := e.TransitionTo(context.Background(), "a", nil)
	require.NoError(t, err)
	assert.Same(t, e.Registry().Get("a"), state)
	assert.Same(t, tr, trans)
	assert.Same(t, e, engine)

	after, err := tr.Injector(nil).Get(domain.TokenTransition)
	require.NoError(t, err)
	assert.Nil(t, after, "successful transitions drop references to themselves")
}

func TestEngine_IgnoresSameTarget(t *testing.T) {
	var entered, exited int
	e := newEngine(t, func(b *dsl.Builder) {
		b.State("a")
		b.State("a.b")
	})
	e.OnEnter(runtime.HookCriteria{}, func(context.Context, *runtime.Transition, *domain.StateNode) (any, error) {
		entered++
		return nil, nil
	})
	e.OnExit(runtime.HookCriteria{}, func(context.Context, *runtime.Transition, *domain.StateNode) (any, error) {
		exited++
		return nil, nil
	})

	_, err := e.TransitionTo(context.Background(), "a.b", nil)
	require.NoError(t, err)
	require.Equal(t, 2, entered)

	tr, err := e.TransitionTo(context.Background(), "a.b", nil)
	require.NoError(t, err, "ignored transitions are not errors")
	assert.True(t, rejection.IsType(tr.Err(), rejection.Ignored))
	assert.Equal(t, 2, entered)
	assert.Zero(t, exited)
}

func TestEngine_DynamicParamsDoNotReenter(t *testing.T) {
	dynamic := true
	e := newEngine(t, func(b *dsl.Builder) {
		b.State("a")
		b.State("a.b").Param("q", params.Declared{Value: "x", Dynamic: &dynamic})
	})

	_, err := e.TransitionTo(context.Background(), "a.b", params.Values{"q": "1"})
	require.NoError(t, err)

	tr, err := e.TransitionTo(context.Background(), "a.b", params.Values{"q": "2"})
	require.NoError(t, err)
	assert.Empty(t, tr.Entering())
	assert.Empty(t, tr.Exiting())
	assert.Equal(t, []string{"", "a", "a.b"}, names(tr.Retained()))
	assert.True(t, tr.Dynamic())
	assert.Equal(t, params.Values{"q": "2"}, tr.ParamsChanged())
	assert.Equal(t, "2", e.Params()["q"])
}

func TestEngine_ReloadForcesExitAndEnter(t *testing.T) {
	e := newEngine(t, func(b *dsl.Builder) {
		b.State("a")
		b.State("a.b")
	})
	_, err := e.TransitionTo(context.Background(), "a.b", nil)
	require.NoError(t, err)

	tr, err := e.TransitionTo(context.Background(), "a.b", nil, domain.WithReloadState("a.b"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a.b"}, names(tr.Entering()))
	assert.Equal(t, []string{"a.b"}, names(tr.Exiting()))

	tr, err = e.Reload(context.Background(), nil)
	require.NoError(t, err)
	assert.Subset(t, names(tr.Entering()), []string{"a", "a.b"})

	_, err = e.TransitionTo(context.Background(), "a", nil, domain.WithReloadState("nope"))
	assert.ErrorIs(t, err, domain.ErrStateNotFound)
}

func TestEngine_RedirectLoopGuard(t *testing.T) {
	e := newEngine(t, func(b *dsl.Builder) { b.State("a") })
	target, err := e.Target("a", nil)
	require.NoError(t, err)

	first, err := e.Create(e.CurrentPath(), target)
	require.NoError(t, err)
	tr := first
	for i := 0; i < 20; i++ {
		tr, err = tr.Redirect(target)
		require.NoError(t, err, "redirect %d", i+1)
	}
	_, err = tr.Redirect(target)
	assert.ErrorIs(t, err, domain.ErrTooManyRedirects)
	assert.Same(t, first, tr.OriginalTransition())
}

func TestEngine_HookRedirect(t *testing.T) {
	e := newEngine(t, func(b *dsl.Builder) {
		b.State("a")
		b.State("b")
	})
	e.OnStart(runtime.HookCriteria{To: runtime.Glob("a")}, func(context.Context, *runtime.Transition, *domain.StateNode) (any, error) {
		target, err := e.Target("b", nil)
		return target, err
	})

	tr, err := e.TransitionTo(context.Background(), "a", nil)
	require.NoError(t, err)
	assert.Equal(t, "b", tr.To().Name)
	require.NotNil(t, tr.RedirectedFrom())
	assert.Equal(t, "a", tr.RedirectedFrom().To().Name)
	assert.Equal(t, domain.SourceRedirect, tr.Options().Source)
	assert.Equal(t, "b", e.Current().Name)
}

func TestEngine_DeclaredRedirect(t *testing.T) {
	e := newEngine(t, func(b *dsl.Builder) {
		b.State("old").RedirectTo("new")
		b.State("new")
		b.State("computed").RedirectTo(domain.RedirectFn(func(context.Context, domain.Transition) (any, error) {
			return "new", nil
		}))
	})

	tr, err := e.TransitionTo(context.Background(), "old", nil)
	require.NoError(t, err)
	assert.Equal(t, "new", tr.To().Name)

	_, err = e.TransitionTo(context.Background(), "old", nil)
	require.NoError(t, err)

	tr, err = e.TransitionTo(context.Background(), "computed", nil)
	require.NoError(t, err)
	assert.Equal(t, "new", e.Current().Name)
	assert.True(t, rejection.IsType(tr.Err(), rejection.Ignored), "already in 'new'")
}

func TestEngine_RedirectReusesResolvables(t *testing.T) {
	calls := 0
	e := newEngine(t, func(b *dsl.Builder) {
		b.State("parent").ResolveWith(domain.ResolveDecl{
			Token: domain.Named("p"),
			Fn: func(context.Context, ...any) (any, error) {
				calls++
				return calls, nil
			},
			Policy: domain.ResolvePolicy{When: domain.WhenEager},
		})
		b.State("parent.a")
		b.State("parent.b")
	})
	e.OnFinish(runtime.HookCriteria{To: runtime.Glob("parent.a")}, func(context.Context, *runtime.Transition, *domain.StateNode) (any, error) {
		return e.Target("parent.b", nil)
	})

	tr, err := e.TransitionTo(context.Background(), "parent.a", nil)
	require.NoError(t, err)
	assert.Equal(t, "parent.b", tr.To().Name)
	assert.Equal(t, 1, calls)
}

func TestEngine_HookAbort(t *testing.T) {
	e := newEngine(t, func(b *dsl.Builder) { b.State("a") })
	e.OnBefore(runtime.HookCriteria{}, func(context.Context, *runtime.Transition, *domain.StateNode) (any, error) {
		return false, nil
	})

	_, err := e.TransitionTo(context.Background(), "a", nil)
	assert.True(t, rejection.IsType(err, rejection.Aborted))
	assert.Equal(t, "", e.Current().Name)
}

func TestEngine_HookErrorRejects(t *testing.T) {
	boom := errors.New("boom")
	var reported error
	var errorHooks int
	e := newEngine(t, func(b *dsl.Builder) { b.State("a") }, runtime.WithErrorHandler(func(err error) { reported = err }))
	e.OnStart(runtime.HookCriteria{}, func(context.Context, *runtime.Transition, *domain.StateNode) (any, error) {
		return nil, boom
	})
	e.OnError(runtime.HookCriteria{}, func(context.Context, *runtime.Transition, *domain.StateNode) (any, error) {
		errorHooks++
		return nil, nil
	})

	tr, err := e.TransitionTo(context.Background(), "a", nil)
	require.Error(t, err)
	assert.True(t, rejection.IsType(err, rejection.Error))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, err, reported)
	assert.Equal(t, 1, errorHooks)
	assert.ErrorIs(t, tr.Err(), boom)
}

func TestEngine_HookPanicBecomesError(t *testing.T) {
	e := newEngine(t, func(b *dsl.Builder) { b.State("a") })
	e.OnEnter(runtime.HookCriteria{}, func(context.Context, *runtime.Transition, *domain.StateNode) (any, error) {
		panic("kaboom")
	})

	_, err := e.TransitionTo(context.Background(), "a", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestEngine_Supersede(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	e := newEngine(t, func(b *dsl.Builder) {
		b.State("slow").OnEnter(func(context.Context, domain.Transition, *domain.StateNode) (any, error) {
			close(started)
			<-release
			return nil, nil
		})
		b.State("fast")
	})

	var slowErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, slowErr = e.TransitionTo(context.Background(), "slow", nil)
	}()
	<-started

	_, err := e.TransitionTo(context.Background(), "fast", nil)
	require.NoError(t, err)
	close(release)
	<-done

	assert.True(t, rejection.IsType(slowErr, rejection.Superseded))
	assert.Equal(t, "fast", e.Current().Name)
}

func TestEngine_NoSupersedeWhileRunning(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	e := newEngine(t, func(b *dsl.Builder) {
		b.State("slow").OnEnter(func(context.Context, domain.Transition, *domain.StateNode) (any, error) {
			close(started)
			<-release
			return nil, nil
		})
		b.State("other")
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = e.TransitionTo(context.Background(), "slow", nil)
	}()
	<-started

	_, err := e.TransitionTo(context.Background(), "other", nil, domain.WithSupersede(false))
	assert.True(t, rejection.IsType(err, rejection.Ignored))
	close(release)
	<-done
	assert.Equal(t, "slow", e.Current().Name)
}

func TestEngine_InvalidTargets(t *testing.T) {
	e := newEngine(t, func(b *dsl.Builder) {
		b.State("home")
		b.State("abstract").Abstract()
		b.State("user").Param("id", params.Declared{Type: "int"})
	}, runtime.WithErrorHandler(func(error) {}))

	_, err := e.TransitionTo(context.Background(), "missing", nil)
	assert.True(t, rejection.IsType(err, rejection.Invalid))
	assert.Contains(t, err.Error(), "No such state 'missing'")

	_, err = e.TransitionTo(context.Background(), "abstract", nil)
	assert.True(t, rejection.IsType(err, rejection.Invalid))
	assert.Contains(t, err.Error(), "abstract")

	_, err = e.TransitionTo(context.Background(), "user", params.Values{"id": "nope"})
	assert.True(t, rejection.IsType(err, rejection.Invalid))

	remove := e.OnInvalid(func(_ context.Context, to, _ *domain.TargetState, _ *domain.Injector) (*domain.TargetState, error) {
		assert.Equal(t, "missing", to.Name())
		return e.Target("home", nil)
	})
	tr, err := e.TransitionTo(context.Background(), "missing", nil)
	require.NoError(t, err)
	assert.Equal(t, "home", tr.To().Name)

	remove()
	_, err = e.TransitionTo(context.Background(), "missing", nil)
	assert.True(t, rejection.IsType(err, rejection.Invalid))
}

func TestEngine_InvalidHandlersRunInOrder(t *testing.T) {
	e := newEngine(t, func(b *dsl.Builder) { b.State("fallback") })
	var order []int
	e.OnInvalid(func(context.Context, *domain.TargetState, *domain.TargetState, *domain.Injector) (*domain.TargetState, error) {
		order = append(order, 1)
		return nil, nil
	})
	e.OnInvalid(func(context.Context, *domain.TargetState, *domain.TargetState, *domain.Injector) (*domain.TargetState, error) {
		order = append(order, 2)
		return e.Target("fallback", nil)
	})
	e.OnInvalid(func(context.Context, *domain.TargetState, *domain.TargetState, *domain.Injector) (*domain.TargetState, error) {
		order = append(order, 3)
		return nil, nil
	})

	_, err := e.TransitionTo(context.Background(), "nowhere", nil)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, order)
	assert.Equal(t, "fallback", e.Current().Name)
}

func TestEngine_Dispose(t *testing.T) {
	e := newEngine(t, func(b *dsl.Builder) { b.State("a") })
	disposed := false
	e.OnDispose(func() { disposed = true })

	e.Dispose()
	e.Dispose()
	assert.True(t, disposed)
	assert.True(t, e.Disposed())

	_, err := e.TransitionTo(context.Background(), "a", nil)
	assert.ErrorIs(t, err, domain.ErrRouterDisposed)
}

func TestEngine_DisposeAbortsRunningTransition(t *testing.T) {
	e := newEngine(t, func(b *dsl.Builder) { b.State("a") })
	e.OnStart(runtime.HookCriteria{}, func(context.Context, *runtime.Transition, *domain.StateNode) (any, error) {
		e.Dispose()
		return nil, nil
	})

	_, err := e.TransitionTo(context.Background(), "a", nil)
	assert.True(t, rejection.IsType(err, rejection.Aborted))
}

func TestEngine_ContextCancelAborts(t *testing.T) {
	e := newEngine(t, func(b *dsl.Builder) { b.State("a") })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.TransitionTo(ctx, "a", nil)
	assert.True(t, rejection.IsType(err, rejection.Aborted))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_ContextCancelDuringResolveAborts(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	var reported []error
	e := newEngine(t, func(b *dsl.Builder) {
		b.State("a").Resolve("slow", func(context.Context, ...any) (any, error) {
			close(started)
			<-release
			return "late", nil
		})
	}, runtime.WithErrorHandler(func(err error) { reported = append(reported, err) }))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := e.TransitionTo(ctx, "a", nil)
	assert.True(t, rejection.IsType(err, rejection.Aborted), "got %v", err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, reported)
	assert.Equal(t, "", e.Current().Name)
}

func TestEngine_IgnoresSameTargetAsPending(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var enters atomic.Int32
	e := newEngine(t, func(b *dsl.Builder) {
		b.State("slow").OnEnter(func(context.Context, domain.Transition, *domain.StateNode) (any, error) {
			if enters.Inc() == 1 {
				close(started)
				<-release
			}
			return nil, nil
		})
	})

	var slowErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, slowErr = e.TransitionTo(context.Background(), "slow", nil)
	}()
	<-started

	tr, err := e.TransitionTo(context.Background(), "slow", nil)
	require.NoError(t, err)
	assert.True(t, rejection.IsType(tr.Err(), rejection.Ignored))

	close(release)
	<-done
	require.NoError(t, slowErr)
	assert.Equal(t, int32(1), enters.Load())
	assert.Equal(t, "slow", e.Current().Name)
}

func TestEngine_PendingReload(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var enters atomic.Int32
	e := newEngine(t, func(b *dsl.Builder) {
		b.State("a").OnEnter(func(context.Context, domain.Transition, *domain.StateNode) (any, error) {
			if enters.Inc() == 2 {
				close(started)
				<-release
			}
			return nil, nil
		})
	})
	_, err := e.TransitionTo(context.Background(), "a", nil)
	require.NoError(t, err)

	var pendingErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, pendingErr = e.TransitionTo(context.Background(), "a", nil, domain.WithReloadState("a"))
	}()
	<-started

	// the pending reload exits "a" and a plain request does not, so the plain
	// request is compared with the current location and ignored
	tr, err := e.TransitionTo(context.Background(), "a", nil)
	require.NoError(t, err)
	assert.True(t, rejection.IsType(tr.Err(), rejection.Ignored))
	assert.Equal(t, int32(2), enters.Load())

	// a reload is never ignored, even when the same reload is pending
	tr, err = e.TransitionTo(context.Background(), "a", nil, domain.WithReloadState("a"))
	require.NoError(t, err)
	assert.NoError(t, tr.Err())
	assert.Equal(t, []string{"a"}, names(tr.Exiting()))
	assert.Equal(t, int32(3), enters.Load())

	close(release)
	<-done
	assert.True(t, rejection.IsType(pendingErr, rejection.Superseded), "got %v", pendingErr)
	assert.Equal(t, "a", e.Current().Name)
}

func TestEngine_HistoryIsBounded(t *testing.T) {
	e := newEngine(t, func(b *dsl.Builder) {
		b.State("a")
		b.State("b")
		b.State("c")
	}, runtime.WithHistoryLimit(2))

	for _, s := range []string{"a", "b", "c"} {
		_, err := e.TransitionTo(context.Background(), s, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, e.Globals().SuccessfulTransitions.Len())
	last, ok := e.Globals().SuccessfulTransitions.PeekTail()
	require.True(t, ok)
	assert.Equal(t, "c", last.To().Name)
	assert.Nil(t, e.Globals().Transition())
	assert.Equal(t, last.ID(), e.Globals().LastStartedTransitionID())
}
